package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/intake"
	"github.com/dokzlo13/rgbd/internal/server"
)

// HTTPService wraps the colour API server.
type HTTPService struct {
	cfg    *config.Config
	server *server.Server

	// done is closed once the server has drained; nil until Start.
	done chan struct{}
}

// NewHTTPService creates a new HTTPService. history may be nil.
func NewHTTPService(cfg *config.Config, engine server.Engine, in *intake.Intake, history server.History) *HTTPService {
	srv := server.NewServer(cfg.HTTPAddr(), engine, in, history, cfg.HTTP.RateLimitRPS)
	return &HTTPService{
		cfg:    cfg,
		server: srv,
	}
}

// Start begins the colour API server if enabled. A listen failure is fatal:
// without it the controller cannot be reached.
func (s *HTTPService) Start(ctx context.Context, onFatalError func(error)) {
	if !s.cfg.HTTP.IsEnabled() {
		log.Info().Msg("Color API server disabled")
		return
	}

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("Color API server error")
			onFatalError(err)
		}
	}()
}

// Wait blocks until the server started by Start has finished shutting down,
// or the timeout elapses. It reports whether the server stopped.
func (s *HTTPService) Wait(timeout time.Duration) bool {
	if s.done == nil {
		return true
	}
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
