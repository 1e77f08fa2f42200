package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/memberportal/memberportal/internal/config"
)

func TestOIDCStateSingleUse(t *testing.T) {
	f := newOIDCFlow(nil, nil, &config.Config{Webserver: config.Webserver{URL: "https://portal.example.com"}})
	assert.Equal(t, "https://portal.example.com", f.home)

	f.remember("abc")

	assert.True(t, f.redeem("abc"))
	assert.False(t, f.redeem("abc"), "state is single use")
	assert.False(t, f.redeem(""))
	assert.False(t, f.redeem("unknown"))
}

func TestOIDCStateExpires(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	f := newOIDCFlow(nil, nil, nil)
	f.now = func() time.Time { return now }
	assert.Equal(t, "/", f.home)

	f.remember("old")
	f.remember("fresh")

	now = now.Add(stateTTL + time.Second)
	assert.False(t, f.redeem("old"))

	f.remember("new")
	assert.Len(t, f.states, 1, "expired states are swept on remember")
	assert.True(t, f.redeem("new"))
}
