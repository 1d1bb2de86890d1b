// Package pwm defines the output side of the controller: a sink that accepts
// one duty value per channel and pushes it to hardware.
package pwm

import "fmt"

// Channels is the number of outputs driven by the controller (R, G, B).
const Channels = 3

// Duties holds one duty magnitude per channel in [0, period].
type Duties [Channels]uint32

// Sink is the hardware collaborator fed by the transition engine.
//
// Apply is called on every tick while the engine state is locked, so it must
// not block. Backends own their failures: Apply logs and moves on.
type Sink interface {
	Configure(period uint32, channels int, pins []uint32) error
	Apply(d Duties)
	Start() error
}

func validateConfig(period uint32, channels int, pins []uint32) error {
	if period == 0 {
		return fmt.Errorf("pwm period must be positive")
	}
	if channels != Channels {
		return fmt.Errorf("pwm expects %d channels, got %d", Channels, channels)
	}
	if len(pins) != channels {
		return fmt.Errorf("pwm expects %d pins, got %d", channels, len(pins))
	}
	return nil
}
