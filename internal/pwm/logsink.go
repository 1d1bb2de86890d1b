package pwm

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// LogSink prints duty changes at debug level instead of driving hardware.
type LogSink struct {
	mu     sync.Mutex
	period uint32
	last   Duties
	seen   bool
}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Configure(period uint32, channels int, pins []uint32) error {
	if err := validateConfig(period, channels, pins); err != nil {
		return err
	}
	s.mu.Lock()
	s.period = period
	s.mu.Unlock()

	log.Info().
		Uint32("period", period).
		Interface("pins", pins).
		Msg("PWM log sink configured")
	return nil
}

func (s *LogSink) Apply(d Duties) {
	s.mu.Lock()
	changed := !s.seen || d != s.last
	s.last = d
	s.seen = true
	s.mu.Unlock()

	if changed {
		log.Debug().
			Uint32("red", d[0]).
			Uint32("green", d[1]).
			Uint32("blue", d[2]).
			Msg("PWM duties")
	}
}

func (s *LogSink) Start() error {
	log.Info().Msg("PWM log sink started")
	return nil
}
