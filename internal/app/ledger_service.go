package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/config"
	"github.com/dokzlo13/rgbd/internal/eventbus"
	"github.com/dokzlo13/rgbd/internal/ledger"
)

// LedgerService records colour requests and enforces ledger retention.
type LedgerService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(cfg *config.Config, l *ledger.Ledger) *LedgerService {
	return &LedgerService{
		cfg:    cfg,
		ledger: l,
	}
}

// Subscribe records request events from the bus. Writes run on bus workers.
func (s *LedgerService) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeColorRequested, func(e eventbus.Event) {
		s.record(ledger.EventColorRequested, e, "color")
	})
	bus.Subscribe(eventbus.EventTypeColorRejected, func(e eventbus.Event) {
		s.record(ledger.EventColorRejected, e, "reason", "body")
	})
}

func (s *LedgerService) record(eventType ledger.EventType, e eventbus.Event, keys ...string) {
	payload := make(map[string]any, len(keys))
	for _, k := range keys {
		payload[k] = e.Str(k)
	}
	if err := s.ledger.Append(eventType, e.Str("source"), e.Str("request_id"), payload); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to record color request")
	}
}

// Start begins the retention sweep.
func (s *LedgerService) Start(ctx context.Context) {
	go s.runCleanup(ctx)
}

// runCleanup periodically removes entries older than the retention window.
func (s *LedgerService) runCleanup(ctx context.Context) {
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("Ledger cleanup disabled: interval must be positive")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(retention)
		}
	}
}

func (s *LedgerService) cleanup(retention time.Duration) {
	deleted, err := s.ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}
