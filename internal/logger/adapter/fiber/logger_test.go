package fiber_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberportal/memberportal/internal/logger"
	adapter "github.com/memberportal/memberportal/internal/logger/adapter/fiber"
)

type accessEntry struct {
	Status int    `json:"status"`
	URI    string `json:"URI"`
	Method string `json:"method"`
	Host   string `json:"host"`
}

func consoleConfig() adapter.Config {
	return adapter.Config{
		Config: logger.Log{
			EnableAccessLogToConsole: true,
			DisableCheckAlive:        true,
			Console:                  logger.Console{Enabled: true},
		},
		CheckAliveURI: "/checkalive",
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		config     adapter.Config
		targetPath string
		want       *accessEntry
	}{
		{
			name:       "no writer no output",
			targetPath: "/",
		},
		{
			name:       "get root",
			config:     consoleConfig(),
			targetPath: "/",
			want:       &accessEntry{Status: 200, URI: "/", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "query string kept",
			config:     consoleConfig(),
			targetPath: "/?group=Altos",
			want:       &accessEntry{Status: 200, URI: "/?group=Altos", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "unknown route",
			config:     consoleConfig(),
			targetPath: "/missing",
			want:       &accessEntry{Status: 404, URI: "/missing", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "check alive is not logged",
			config:     consoleConfig(),
			targetPath: "/checkalive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := serve(t, tt.targetPath, tt.config)

			if tt.want == nil {
				assert.Empty(t, output)
				return
			}

			var got accessEntry
			require.NoError(t, json.Unmarshal([]byte(output), &got), output)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func serve(t *testing.T, targetPath string, cfg adapter.Config) string {
	t.Helper()

	stdout := os.Stdout

	r, w, _ := os.Pipe()
	os.Stdout = w

	app := fiber.New()
	app.Use(adapter.New(cfg))
	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("hello test")
	})
	app.Get("/checkalive", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, targetPath, nil))

	outC := make(chan string)

	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	_ = w.Close()
	os.Stdout = stdout
	out := <-outC

	require.NoError(t, err)

	return out
}
