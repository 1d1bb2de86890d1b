package pwm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// DefaultSysfsRoot is where the Linux kernel exposes PWM controllers.
const DefaultSysfsRoot = "/sys/class/pwm"

// SysfsSink drives channels of one pwmchip through the kernel sysfs interface.
// Duty units are scaled onto the hardware period in nanoseconds.
type SysfsSink struct {
	chipDir  string
	periodNs uint64

	mu       sync.Mutex
	period   uint32
	pins     []uint32
	last     Duties
	written  [Channels]bool
	failures atomic.Int64
}

// NewSysfsSink creates a sink for root/pwmchip<chip>. An empty root uses DefaultSysfsRoot.
func NewSysfsSink(root string, chip int, periodNs uint64) *SysfsSink {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsSink{
		chipDir:  filepath.Join(root, fmt.Sprintf("pwmchip%d", chip)),
		periodNs: periodNs,
	}
}

// Configure exports every pin and programs the hardware period.
// Channels start at full duty, which is dark on this hardware.
func (s *SysfsSink) Configure(period uint32, channels int, pins []uint32) error {
	if err := validateConfig(period, channels, pins); err != nil {
		return err
	}
	if s.periodNs == 0 {
		return errors.New("sysfs pwm period_ns must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.period = period
	s.pins = append([]uint32(nil), pins...)

	exported := make(map[uint32]bool, len(pins))
	for _, pin := range pins {
		if exported[pin] {
			continue
		}
		exported[pin] = true

		if err := s.export(pin); err != nil {
			return err
		}
		if err := s.write(pin, "period", strconv.FormatUint(s.periodNs, 10)); err != nil {
			return err
		}
		if err := s.write(pin, "duty_cycle", strconv.FormatUint(s.periodNs, 10)); err != nil {
			return err
		}
	}

	log.Info().
		Str("chip", s.chipDir).
		Uint64("period_ns", s.periodNs).
		Interface("pins", pins).
		Msg("Sysfs PWM configured")
	return nil
}

// Apply writes the duty of every channel whose value changed.
func (s *SysfsSink) Apply(d Duties) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.period == 0 {
		return
	}

	for ch, duty := range d {
		if s.written[ch] && s.last[ch] == duty {
			continue
		}
		if err := s.write(s.pins[ch], "duty_cycle", strconv.FormatUint(s.toNs(duty), 10)); err != nil {
			if s.failures.Add(1) == 1 {
				log.Error().Err(err).Int("channel", ch).Msg("Failed to write PWM duty")
			}
			continue
		}
		s.last[ch] = duty
		s.written[ch] = true
	}
}

// Start enables the configured outputs.
func (s *SysfsSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.period == 0 {
		return errors.New("sysfs pwm started before Configure")
	}
	for _, pin := range s.pins {
		if err := s.write(pin, "enable", "1"); err != nil {
			return err
		}
	}
	log.Info().Str("chip", s.chipDir).Msg("Sysfs PWM enabled")
	return nil
}

// Failures returns the number of duty writes that failed.
func (s *SysfsSink) Failures() int64 {
	return s.failures.Load()
}

func (s *SysfsSink) toNs(duty uint32) uint64 {
	if duty > s.period {
		duty = s.period
	}
	return uint64(duty) * s.periodNs / uint64(s.period)
}

func (s *SysfsSink) channelDir(pin uint32) string {
	return filepath.Join(s.chipDir, fmt.Sprintf("pwm%d", pin))
}

func (s *SysfsSink) export(pin uint32) error {
	if _, err := os.Stat(s.channelDir(pin)); err == nil {
		return nil
	}
	path := filepath.Join(s.chipDir, "export")
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uint64(pin), 10)), 0o644); err != nil {
		return fmt.Errorf("failed to export pwm%d: %w", pin, err)
	}
	if _, err := os.Stat(s.channelDir(pin)); err != nil {
		return fmt.Errorf("pwm%d not present after export: %w", pin, err)
	}
	return nil
}

func (s *SysfsSink) write(pin uint32, attr, value string) error {
	path := filepath.Join(s.channelDir(pin), attr)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
