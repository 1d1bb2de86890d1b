// Package transition animates the strip from the displayed colour to a
// requested target over a fixed number of ticks.
//
// An Engine is either settled (the last plan step has been applied and the
// output is pinned at the target) or transitioning. SetTarget always plans
// from the colour currently on the strip, so a new request issued mid-fade
// continues from where the fade is instead of jumping back to its start.
package transition

import (
	"math"
	"sync"
	"time"

	"github.com/dokzlo13/rgbd/internal/brightness"
	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/mathx"
	"github.com/dokzlo13/rgbd/internal/pwm"
)

// StepsFor returns the plan length for a transition of duration ticked every step.
// The result is at least 1; a single step snaps straight to the target.
func StepsFor(duration, step time.Duration) int {
	if step <= 0 {
		return 1
	}
	n := int(duration / step)
	if n < 1 {
		return 1
	}
	return n
}

// Engine owns the displayed colour and the active plan. SetTarget and the
// readers are safe for concurrent use with Tick; Tick itself has a single
// caller, the Run loop.
type Engine struct {
	mapper brightness.Mapper
	sink   pwm.Sink

	mu        sync.Mutex
	plan      []color.Color // fixed length, rewritten in place
	cursor    int
	settled   bool
	displayed color.Color
	target    color.Color
	duties    pwm.Duties
}

// New creates an Engine with a plan of steps entries, displaying initial.
// Nothing is written to the sink until the first Tick.
func New(mapper brightness.Mapper, sink pwm.Sink, steps int, initial color.Color) *Engine {
	if steps < 1 {
		steps = 1
	}
	e := &Engine{
		mapper:    mapper,
		sink:      sink,
		plan:      make([]color.Color, steps),
		cursor:    steps - 1,
		settled:   true,
		displayed: initial,
		target:    initial,
		duties:    mapper.Duties(initial),
	}
	for i := range e.plan {
		e.plan[i] = initial
	}
	return e
}

// SetTarget replaces the plan with a linear fade from the displayed colour to c.
// It does not touch the output; the next Tick applies the first step.
func (e *Engine) SetTarget(c color.Color) {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.displayed.Channels()
	to := c.Channels()
	n := len(e.plan)

	for i := range e.plan {
		w := float64(i+1) / float64(n)
		var ch [3]int
		for k := range ch {
			ch[k] = int(math.Round(mathx.Lerp(float64(from[k]), float64(to[k]), w)))
		}
		e.plan[i] = color.Clamped(ch[0], ch[1], ch[2])
	}
	e.cursor = 0
	e.settled = false
	e.target = c
}

// Tick applies the current plan step and pushes its duties to the sink.
// Once the plan is exhausted every Tick re-applies the final step.
// The sink is called after the lock is released so a slow backend never
// stalls readers or SetTarget. Tick must only be called from one goroutine.
func (e *Engine) Tick() {
	e.mu.Lock()
	last := len(e.plan) - 1
	if e.cursor == last {
		e.settled = true
	}
	e.displayed = e.plan[e.cursor]
	e.cursor = mathx.Min(e.cursor+1, last)

	e.duties = e.mapper.Duties(e.displayed)
	duties := e.duties
	e.mu.Unlock()

	e.sink.Apply(duties)
}

// Current returns the colour last written to the output, not the target.
func (e *Engine) Current() color.Color {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayed
}

// Target returns the most recently requested colour.
func (e *Engine) Target() color.Color {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// Duties returns the duties emitted by the last Tick.
func (e *Engine) Duties() pwm.Duties {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duties
}

// Transitioning reports whether plan steps remain to be applied.
func (e *Engine) Transitioning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.settled
}

// Steps returns the fixed plan length.
func (e *Engine) Steps() int {
	return len(e.plan)
}

// Snapshot is a consistent view of the engine state.
type Snapshot struct {
	Color         color.Color `json:"color"`
	Target        color.Color `json:"target"`
	Transitioning bool        `json:"transitioning"`
	Duties        pwm.Duties  `json:"duties"`
}

// Snapshot reads all observable state under one lock.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Color:         e.displayed,
		Target:        e.target,
		Transitioning: !e.settled,
		Duties:        e.duties,
	}
}
