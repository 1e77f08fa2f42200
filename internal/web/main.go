// Package web runs the JSON API of the portal on fiber.
package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/config"
	fiberlog "github.com/memberportal/memberportal/internal/logger/adapter/fiber"
	"github.com/memberportal/memberportal/internal/reconciler"
	"github.com/memberportal/memberportal/internal/web/handler"
	"github.com/memberportal/memberportal/internal/web/handler/admin"
	"github.com/memberportal/memberportal/internal/web/handler/auth"
	"github.com/memberportal/memberportal/internal/web/handler/profile"
	"github.com/memberportal/memberportal/internal/web/handler/session"
)

const (
	// CheckAlivePath answers 503 while the service shuts down.
	CheckAlivePath = "/checkalive"
	// MetricsPath serves prometheus metrics.
	MetricsPath = "/metrics"
)

// ErrNilDeps is returned by New without config or handler deps.
var ErrNilDeps = errors.New("config or handler deps is nil")

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	session      *session.Service
}

// Start starts the web service on the given address and blocks until it
// is shut down.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		err := s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: !s.cfg.DevMode})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// Follow forwards reconciler outcomes to the session handler until ctx ends.
func (s *Service) Follow(ctx context.Context, outcomes <-chan reconciler.Outcome) {
	s.session.Follow(ctx, outcomes)
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the server down.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown fails checkalive for ShutDownTime seconds so load balancers can
// drain the instance, then stops the server.
func (s *Service) Shutdown() {
	s.alive.Store(false)

	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// CheckAlive answers 200 while the service accepts traffic.
func (s *Service) CheckAlive(c fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendString("OK")
}

// errorHandler keeps the json shape for errors raised by fiber itself.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := actions.MsgUnexpected

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(code).JSON(actions.Result{Message: msg})
}

// New creates the web service and registers every route.
func New(cfg *config.Config, deps *handler.Deps) (*Service, error) {
	if cfg == nil || deps == nil {
		return nil, ErrNilDeps
	}

	deps.Config = cfg

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Immutable:      true,
			ErrorHandler:   errorHandler,
		},
	)

	app.Use(fiberlog.New(fiberlog.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
	}))

	s := &Service{
		App:          app,
		cfg:          cfg,
		fastShutDown: cfg.DevMode,
		session:      &session.Service{},
	}
	s.alive.Store(true)

	app.Get(CheckAlivePath, s.CheckAlive)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group(handler.APIPath)

	for _, h := range []handler.Service{s.session, &auth.Service{}, &profile.Service{}, &admin.Service{}} {
		if err := h.Init(api, deps); err != nil {
			return nil, err
		}
	}

	return s, nil
}
