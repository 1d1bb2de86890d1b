package transition

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Run ticks the engine every interval until ctx is cancelled.
// The first tick happens immediately so the initial colour reaches the sink.
// A slow consumer only delays the fade: the plan ends when its steps are
// used up, not when a deadline passes.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	log.Info().
		Dur("interval", interval).
		Int("steps", e.Steps()).
		Msg("Transition loop started")

	e.Tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Transition loop stopping")
			return nil

		case <-ticker.C:
			e.Tick()
		}
	}
}
