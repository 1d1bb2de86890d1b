package transition

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/rgbd/internal/brightness"
	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/pwm"
)

func newTestEngine(t *testing.T, steps int) (*Engine, *pwm.Recorder) {
	t.Helper()
	rec := pwm.NewRecorder(64)
	require.NoError(t, rec.Configure(1000, pwm.Channels, []uint32{0, 1, 2}))
	return New(brightness.New(1000, 3.0), rec, steps, color.Black), rec
}

func drain(e *Engine) {
	for i := 0; i < e.Steps(); i++ {
		e.Tick()
	}
}

func blend(from, to uint8, n int) uint8 {
	w := 1.0 / float64(n)
	return uint8(math.Round(float64(from)*(1-w) + float64(to)*w))
}

func TestStepsFor(t *testing.T) {
	assert.Equal(t, 30, StepsFor(300*time.Millisecond, 10*time.Millisecond))
	assert.Equal(t, 1, StepsFor(5*time.Millisecond, 10*time.Millisecond))
	assert.Equal(t, 1, StepsFor(time.Second, 0))
	assert.Equal(t, 2, StepsFor(25*time.Millisecond, 10*time.Millisecond))
}

func TestInitialStateIsSettled(t *testing.T) {
	e, rec := newTestEngine(t, 30)

	assert.False(t, e.Transitioning())
	assert.Equal(t, color.Black, e.Current())
	assert.Zero(t, rec.Applied(), "nothing is emitted before the first tick")

	e.Tick()
	assert.Equal(t, color.Black, e.Current())
	assert.Equal(t, pwm.Duties{1000, 1000, 1000}, rec.Last())
}

func TestDrainReachesTarget(t *testing.T) {
	targets := []color.Color{
		{R: 255, G: 255, B: 255},
		{R: 1, G: 2, B: 3},
		{R: 0xff, G: 0x80, B: 0x00},
		{R: 17, G: 200, B: 99},
		color.Black,
	}
	for _, steps := range []int{1, 2, 7, 30} {
		e, _ := newTestEngine(t, steps)
		for _, target := range targets {
			e.SetTarget(target)
			assert.True(t, e.Transitioning())
			drain(e)
			assert.Equal(t, target, e.Current(), "steps=%d", steps)
			assert.False(t, e.Transitioning())
		}
	}
}

func TestSetTargetDoesNotEmit(t *testing.T) {
	e, rec := newTestEngine(t, 30)
	e.SetTarget(color.Color{R: 255})
	assert.Zero(t, rec.Applied())
	assert.Equal(t, color.Black, e.Current())
	assert.Equal(t, color.Color{R: 255}, e.Target())
}

func TestPlanIsLinear(t *testing.T) {
	e, _ := newTestEngine(t, 4)
	e.SetTarget(color.Color{R: 200, G: 100, B: 40})

	var got []color.Color
	for i := 0; i < 4; i++ {
		e.Tick()
		got = append(got, e.Current())
	}
	assert.Equal(t, []color.Color{
		{R: 50, G: 25, B: 10},
		{R: 100, G: 50, B: 20},
		{R: 150, G: 75, B: 30},
		{R: 200, G: 100, B: 40},
	}, got)
}

func TestRetargetMidTransitionContinuesFromDisplayed(t *testing.T) {
	const n = 30
	e, _ := newTestEngine(t, n)

	e.SetTarget(color.Color{R: 255})
	e.Tick()
	mid := e.Current()
	require.Equal(t, color.Color{R: blend(0, 255, n)}, mid)

	e.SetTarget(color.Color{G: 255})
	e.Tick()

	want := color.Color{
		R: blend(mid.R, 0, n),
		G: blend(mid.G, 255, n),
		B: blend(mid.B, 0, n),
	}
	assert.Equal(t, want, e.Current())
	assert.NotZero(t, e.Current().R, "no jump back to the original start")

	drain(e)
	assert.Equal(t, color.Color{G: 255}, e.Current())
}

func TestIdempotentAtRest(t *testing.T) {
	e, rec := newTestEngine(t, 10)
	e.SetTarget(color.Color{R: 10, G: 20, B: 30})
	drain(e)

	settled := e.Current()
	duties := rec.Last()
	applied := rec.Applied()

	for i := 0; i < 5; i++ {
		e.Tick()
		assert.Equal(t, settled, e.Current())
		assert.Equal(t, duties, rec.Last())
	}
	assert.Equal(t, applied+5, rec.Applied(), "every tick re-emits")
	assert.Equal(t, duties, e.Duties())
}

func TestSameColorStillRunsFullPlan(t *testing.T) {
	e, rec := newTestEngine(t, 5)
	e.SetTarget(color.Black)
	assert.True(t, e.Transitioning())

	for i := 0; i < 4; i++ {
		e.Tick()
		assert.Equal(t, color.Black, e.Current())
		assert.True(t, e.Transitioning())
	}
	e.Tick()
	assert.False(t, e.Transitioning())
	assert.Equal(t, 5, rec.Applied())
}

func TestEndToEndOrange(t *testing.T) {
	e, rec := newTestEngine(t, 30)
	e.SetTarget(color.Color{R: 0xff, G: 0x80, B: 0x00})
	for i := 0; i < 30; i++ {
		e.Tick()
	}
	assert.Equal(t, color.Color{R: 255, G: 128, B: 0}, e.Current())
	assert.Equal(t, uint32(0), rec.Last()[0])
	assert.Equal(t, uint32(1000), rec.Last()[2])
	assert.Equal(t, "ff8000", e.Current().Hex())
}

func TestSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	e.SetTarget(color.Color{R: 255, G: 255, B: 255})
	e.Tick()

	snap := e.Snapshot()
	assert.Equal(t, color.Color{R: 128, G: 128, B: 128}, snap.Color)
	assert.Equal(t, color.Color{R: 255, G: 255, B: 255}, snap.Target)
	assert.True(t, snap.Transitioning)
	assert.Equal(t, e.Duties(), snap.Duties)
}

func TestConcurrentSetTargetAndTick(t *testing.T) {
	e, _ := newTestEngine(t, 30)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			e.Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			e.SetTarget(color.Color{R: uint8(i), G: uint8(255 - i), B: 7})
		}
	}()
	wg.Wait()

	final := color.Color{R: 99, G: 156, B: 7}
	assert.Equal(t, final, e.Target())
	drain(e)
	assert.Equal(t, final, e.Current())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	e, rec := newTestEngine(t, 3)
	e.SetTarget(color.Color{R: 255, G: 255, B: 255})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return !e.Transitioning() }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, color.Color{R: 255, G: 255, B: 255}, e.Current())
	assert.Equal(t, pwm.Duties{0, 0, 0}, rec.Last())
}

// stallingSink blocks in Apply until released, like a backend stuck on I/O.
type stallingSink struct {
	entered chan struct{}
	release chan struct{}
}

func (s *stallingSink) Configure(uint32, int, []uint32) error { return nil }
func (s *stallingSink) Start() error                          { return nil }
func (s *stallingSink) Apply(pwm.Duties) {
	s.entered <- struct{}{}
	<-s.release
}

func TestSlowSinkDoesNotBlockReaders(t *testing.T) {
	sink := &stallingSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	e := New(brightness.New(1000, 3.0), sink, 1, color.Black)
	e.SetTarget(color.Color{R: 255})

	ticked := make(chan struct{})
	go func() {
		e.Tick()
		close(ticked)
	}()
	<-sink.entered

	current := make(chan color.Color, 1)
	go func() {
		e.SetTarget(color.Color{B: 255})
		current <- e.Current()
	}()

	select {
	case c := <-current:
		assert.Equal(t, color.Color{R: 255}, c)
	case <-time.After(time.Second):
		t.Fatal("engine lock held while the sink was applying")
	}
	assert.Equal(t, color.Color{B: 255}, e.Target())

	close(sink.release)
	<-ticked
}
