package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/brightness"
	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/pwm"
	"github.com/dokzlo13/rgbd/internal/transition"
)

// OutputService owns the PWM sink, the transition engine and its tick loop.
type OutputService struct {
	cfg    *config.Config
	Sink   pwm.Sink
	Engine *transition.Engine

	running atomic.Bool
}

// NewOutputService configures the sink selected by pwm.backend and builds the engine.
func NewOutputService(cfg *config.Config) (*OutputService, error) {
	sink, err := newSink(cfg.PWM)
	if err != nil {
		return nil, err
	}
	if err := sink.Configure(cfg.PWM.Period, pwm.Channels, cfg.PWM.Pins); err != nil {
		return nil, fmt.Errorf("failed to configure pwm: %w", err)
	}

	initial, err := cfg.InitialColor()
	if err != nil {
		return nil, err
	}

	steps := transition.StepsFor(cfg.Transition.Duration.Duration(), cfg.Transition.Step.Duration())
	engine := transition.New(brightness.New(cfg.PWM.Period, cfg.PWM.Gamma), sink, steps, initial)

	log.Info().
		Str("backend", cfg.PWM.Backend).
		Uint32("period", cfg.PWM.Period).
		Float64("gamma", cfg.PWM.Gamma).
		Int("steps", steps).
		Str("initial_color", initial.Hex()).
		Msg("Output configured")

	return &OutputService{
		cfg:    cfg,
		Sink:   sink,
		Engine: engine,
	}, nil
}

func newSink(cfg config.PWMConfig) (pwm.Sink, error) {
	switch cfg.Backend {
	case "log":
		return pwm.NewLogSink(), nil
	case "sysfs":
		return pwm.NewSysfsSink(cfg.Sysfs.Root, cfg.Sysfs.Chip, cfg.Sysfs.PeriodNs), nil
	case "none":
		return pwm.NewRecorder(0), nil
	default:
		return nil, fmt.Errorf("unknown pwm backend %q", cfg.Backend)
	}
}

// Start enables the outputs and begins ticking.
func (s *OutputService) Start(ctx context.Context) error {
	if err := s.Sink.Start(); err != nil {
		return fmt.Errorf("failed to start pwm: %w", err)
	}
	s.running.Store(true)

	go func() {
		defer s.running.Store(false)
		if err := s.Engine.Run(ctx, s.cfg.Transition.Step.Duration()); err != nil {
			log.Error().Err(err).Msg("Transition loop error")
		}
	}()
	return nil
}

// Running reports whether the outputs are enabled and the tick loop is live.
func (s *OutputService) Running() bool {
	return s.running.Load()
}
