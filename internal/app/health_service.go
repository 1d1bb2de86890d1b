package app

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/config"
)

// HealthService reports liveness and output readiness of the controller.
type HealthService struct {
	cfg    *config.Config
	output *OutputService
	server *http.Server
}

type healthStatus struct {
	Status        string `json:"status"`
	Color         string `json:"color,omitempty"`
	Target        string `json:"target,omitempty"`
	Transitioning bool   `json:"transitioning"`
}

// NewHealthService creates a new HealthService for the given output.
func NewHealthService(cfg *config.Config, output *OutputService) *HealthService {
	return &HealthService{
		cfg:    cfg,
		output: output,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

func (s *HealthService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := s.output.Engine.Snapshot()
		writeStatus(w, http.StatusOK, healthStatus{
			Status:        "healthy",
			Color:         snap.Color.Hex(),
			Target:        snap.Target.Hex(),
			Transitioning: snap.Transitioning,
		})
	})

	// Ready once the sink is enabled and the tick loop is applying frames.
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.output.Running() {
			writeStatus(w, http.StatusServiceUnavailable, healthStatus{Status: "starting"})
			return
		}
		writeStatus(w, http.StatusOK, healthStatus{Status: "ready"})
	})

	return mux
}

func writeStatus(w http.ResponseWriter, code int, status healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Debug().Err(err).Msg("Failed to write health status")
	}
}

func (s *HealthService) run(ctx context.Context) {
	addr := s.cfg.HealthAddr()

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler(),
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}
