package pwm

import (
	"errors"
	"sync"
)

// Recorder is an in-memory sink. It backs the "none" backend and tests.
type Recorder struct {
	mu      sync.Mutex
	period  uint32
	pins    []uint32
	started bool
	last    Duties
	applied int
	history []Duties
	keep    int
}

// NewRecorder creates a Recorder keeping up to keep applied triples (0 keeps none).
func NewRecorder(keep int) *Recorder {
	return &Recorder{keep: keep}
}

func (r *Recorder) Configure(period uint32, channels int, pins []uint32) error {
	if err := validateConfig(period, channels, pins); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.period = period
	r.pins = append([]uint32(nil), pins...)
	return nil
}

func (r *Recorder) Apply(d Duties) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = d
	r.applied++
	if r.keep > 0 {
		if len(r.history) == r.keep {
			r.history = r.history[1:]
		}
		r.history = append(r.history, d)
	}
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.period == 0 {
		return errors.New("pwm recorder started before Configure")
	}
	r.started = true
	return nil
}

// Last returns the most recently applied duties.
func (r *Recorder) Last() Duties {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Applied returns how many times Apply was called.
func (r *Recorder) Applied() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// History returns a copy of the retained duties, oldest first.
func (r *Recorder) History() []Duties {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Duties(nil), r.history...)
}

// Started reports whether Start succeeded.
func (r *Recorder) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Period returns the configured period.
func (r *Recorder) Period() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.period
}
