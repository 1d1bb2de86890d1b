package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/db"
	"github.com/dokzlo13/rgbd/internal/eventbus"
	"github.com/dokzlo13/rgbd/internal/intake"
	"github.com/dokzlo13/rgbd/internal/ledger"
	"github.com/dokzlo13/rgbd/internal/mqtt"
	"github.com/dokzlo13/rgbd/internal/server"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Output: PWM sink + transition engine + tick loop
	Output *OutputService

	// Request validation shared by every boundary
	Intake *intake.Intake

	// High-level services
	History *LedgerService
	HTTP    *HTTPService
	MQTT    *mqtt.Service
	Health  *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Ledger storage is only opened when something will be recorded
	if cfg.Ledger.IsEnabled() {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	output, err := NewOutputService(cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to set up output: %w", err)
	}
	s.Output = output

	s.Intake = intake.New(s.Output.Engine, s.Bus)

	if s.Ledger != nil {
		s.History = NewLedgerService(cfg, s.Ledger)
		s.History.Subscribe(s.Bus)
	}

	var history server.History
	if s.Ledger != nil {
		history = s.Ledger
	}
	s.HTTP = NewHTTPService(cfg, s.Output.Engine, s.Intake, history)

	if cfg.MQTT.Enabled {
		s.MQTT = mqtt.New(cfg.MQTT, s.Intake, s.Bus)
	}

	s.Health = NewHealthService(cfg, s.Output)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a service cannot keep running.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Output first so the strip shows the initial colour before any request arrives
	if err := s.Output.Start(ctx); err != nil {
		return err
	}

	if s.History != nil {
		s.History.Start(ctx)
	}

	if s.MQTT != nil {
		if err := s.MQTT.Start(ctx); err != nil {
			return err
		}
	}

	s.HTTP.Start(ctx, onFatalError)
	s.Health.Start(ctx)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	// Requests still in flight publish to the bus; let them finish first.
	if s.HTTP != nil && !s.HTTP.Wait(s.cfg.ShutdownTimeout.Duration()) {
		log.Warn().Msg("Color API server did not stop before shutdown timeout")
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
