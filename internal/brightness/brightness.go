// Package brightness maps perceptual channel values onto hardware duty
// cycles.
//
// The strip is wired active-low: a duty of 0 is full brightness and a duty of
// Period is dark. Values are first normalised to [0, 1], raised to Gamma and
// then inverted onto [0, Period].
package brightness

import (
	"math"

	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/mathx"
	"github.com/dokzlo13/rgbd/internal/pwm"
)

const (
	DefaultPeriod uint32  = 1000
	DefaultGamma  float64 = 3.0
)

// Mapper is a pure value; copies are safe to share between goroutines.
type Mapper struct {
	Period uint32
	Gamma  float64
}

// New returns a Mapper, falling back to defaults for non-positive arguments.
func New(period uint32, gamma float64) Mapper {
	if period == 0 {
		period = DefaultPeriod
	}
	if gamma <= 0 || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		gamma = DefaultGamma
	}
	return Mapper{Period: period, Gamma: gamma}
}

// Duty returns the duty cycle for one channel value.
func (m Mapper) Duty(value uint8) uint32 {
	v := float64(value) / 255.0
	corrected := math.Pow(v, m.Gamma)
	on := math.Round(float64(m.Period) * corrected)
	on = mathx.Clamp(on, 0, float64(m.Period))
	return m.Period - uint32(on)
}

// Duties maps every channel of c.
func (m Mapper) Duties(c color.Color) pwm.Duties {
	var d pwm.Duties
	for i, v := range c.Channels() {
		d[i] = m.Duty(v)
	}
	return d
}
