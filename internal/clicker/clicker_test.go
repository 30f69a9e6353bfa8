package clicker

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoilctl/internal/clock"
	"recoilctl/internal/input"
	"recoilctl/internal/state"
	"recoilctl/internal/synth"
)

type press struct {
	button  input.Button
	pressed bool
}

type fakeBackend struct {
	mu      sync.Mutex
	presses []press
	onPress func(b input.Button, pressed bool)
}

func (f *fakeBackend) MoveMouseRelative(dx, dy int) {}
func (f *fakeBackend) KeyDown(ch rune)              {}
func (f *fakeBackend) KeyUp(ch rune)                {}
func (f *fakeBackend) KeyTap(ch rune)               {}

func (f *fakeBackend) MouseButton(b input.Button, pressed bool) {
	f.mu.Lock()
	f.presses = append(f.presses, press{b, pressed})
	hook := f.onPress
	f.mu.Unlock()
	if hook != nil {
		hook(b, pressed)
	}
}

func (f *fakeBackend) clicks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.presses {
		if !p.pressed {
			n++
		}
	}
	return n
}

type harness struct {
	backend  *fakeBackend
	guard    *synth.Guard
	runtime  *state.Runtime
	clock    *clock.Manual
	physical bool
	clicker  *Clicker
}

func newHarness(t *testing.T, rnd func(int) int) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{},
		guard:   &synth.Guard{},
		clock:   clock.NewManual(time.Unix(1700000000, 0)),
	}
	h.runtime = state.New(h.guard)
	h.clicker = New(Config{
		Backend:      h.backend,
		State:        h.runtime.Snapshot,
		Guard:        h.guard,
		PhysicalLeft: func() bool { return h.physical },
		Logger:       zerolog.Nop(),
		Clock:        h.clock,
		Rand:         rnd,
		DelayMillis:  20,
		JitterMillis: 20,
	})
	return h
}

func TestClickWhileHeld(t *testing.T) {
	h := newHarness(t, func(int) int { return 20 })
	h.runtime.SetAutoClickEnabled(true)
	h.runtime.ObserveButton(state.ButtonLeft, true)

	wait := h.clicker.Tick()

	assert.Equal(t, 20*time.Millisecond, wait)
	assert.True(t, h.clicker.Clicking())
	assert.Equal(t, []press{{input.ButtonLeft, true}, {input.ButtonLeft, false}}, h.backend.presses)
	assert.False(t, h.guard.Active())
	assert.Equal(t, []time.Duration{DefaultPostClickHold}, h.clock.Sleeps())
}

func TestIdleWhenDisabledOrReleased(t *testing.T) {
	h := newHarness(t, nil)
	h.runtime.ObserveButton(state.ButtonLeft, true)

	assert.Equal(t, DefaultIdle, h.clicker.Tick())
	assert.Zero(t, h.backend.clicks())

	h.runtime.SetAutoClickEnabled(true)
	h.runtime.ObserveButton(state.ButtonLeft, false)
	assert.Equal(t, DefaultIdle, h.clicker.Tick())
	assert.Zero(t, h.backend.clicks())
	assert.False(t, h.clicker.Clicking())
}

func TestPhysicalProbeAloneHolds(t *testing.T) {
	h := newHarness(t, nil)
	h.runtime.SetAutoClickEnabled(true)
	h.physical = true

	h.clicker.Tick()
	assert.Equal(t, 1, h.backend.clicks())
}

func TestInterClickDelayBounds(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 2000; i++ {
		d := h.clicker.nextDelay()
		require.GreaterOrEqual(t, d, time.Millisecond)
		require.LessOrEqual(t, d, 40*time.Millisecond)
	}

	low := newHarness(t, func(int) int { return 0 })
	assert.Equal(t, time.Millisecond, low.clicker.nextDelay(), "delay-jitter of 0 clamps to 1ms")

	high := newHarness(t, func(n int) int { return n - 1 })
	assert.Equal(t, 40*time.Millisecond, high.clicker.nextDelay())
}

func TestSetDelayAndJitterClamp(t *testing.T) {
	h := newHarness(t, func(int) int { return 0 })

	h.clicker.SetDelay(0)
	h.clicker.SetJitter(-3)
	assert.Equal(t, 1, h.clicker.Delay())
	assert.Equal(t, 0, h.clicker.Jitter())
	assert.Equal(t, time.Millisecond, h.clicker.nextDelay())

	h.clicker.SetDelay(75)
	assert.Equal(t, 75*time.Millisecond, h.clicker.nextDelay())
}

func TestClearClickStateStopsClicking(t *testing.T) {
	h := newHarness(t, nil)
	h.runtime.SetAutoClickEnabled(true)
	h.runtime.ObserveButton(state.ButtonLeft, true)
	h.clicker.Tick()
	require.True(t, h.clicker.Clicking())

	h.runtime.SetAutoClickEnabled(false)
	h.clicker.ClearClickState()
	assert.False(t, h.clicker.Clicking())

	for i := 0; i < 5; i++ {
		h.clicker.Tick()
	}
	assert.Equal(t, 1, h.backend.clicks())
}

func TestClearDuringTickPreventsClick(t *testing.T) {
	h := newHarness(t, nil)
	h.runtime.SetAutoClickEnabled(true)
	h.runtime.ObserveButton(state.ButtonLeft, true)
	h.clicker.Tick()
	require.Equal(t, 1, h.backend.clicks())

	// The clear lands after the tick has read its inputs.
	cleared := false
	h.clicker.physical = func() bool {
		if !cleared {
			cleared = true
			h.runtime.SetAutoClickEnabled(false)
			h.clicker.ClearClickState()
		}
		return true
	}

	assert.Equal(t, DefaultIdle, h.clicker.Tick())
	assert.False(t, h.clicker.Clicking())
	assert.Equal(t, 1, h.backend.clicks())

	h.clicker.Tick()
	assert.Equal(t, 1, h.backend.clicks())
}

func TestEchoOfSyntheticClickIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.runtime.SetAutoClickEnabled(true)
	h.runtime.ObserveButton(state.ButtonLeft, true)
	h.backend.onPress = func(b input.Button, pressed bool) {
		assert.True(t, h.guard.Active())
		h.runtime.ObserveButton(state.ButtonLeft, pressed)
	}

	h.clicker.Tick()
	h.clicker.Tick()

	assert.True(t, h.runtime.Snapshot().LeftHeld)
	assert.Equal(t, 2, h.backend.clicks())
}

func TestShadowLatchSurvivesInFlightClick(t *testing.T) {
	h := newHarness(t, nil)
	c := h.clicker
	now := h.clock.Now()

	// The observer saw the press, then missed the release.
	assert.True(t, c.reconcile(true, false, now))

	h.guard.Begin()
	assert.True(t, c.reconcile(false, false, now.Add(time.Second)), "guard open keeps the latch")
	h.guard.End()

	c.lastSynth.Store(now.UnixNano())
	assert.True(t, c.reconcile(false, false, now.Add(DefaultGrace)), "within grace")
	assert.False(t, c.reconcile(false, false, now.Add(DefaultGrace+time.Millisecond)))
}

func TestPhysicalHoldKeepsLatch(t *testing.T) {
	h := newHarness(t, nil)
	c := h.clicker
	now := h.clock.Now()

	c.reconcile(true, false, now)
	assert.True(t, c.reconcile(false, true, now.Add(time.Minute)))
	assert.True(t, c.shadow.Load())
}

func TestGuardBalancedWhenBackendPanics(t *testing.T) {
	h := newHarness(t, nil)
	h.runtime.SetAutoClickEnabled(true)
	h.runtime.ObserveButton(state.ButtonLeft, true)
	h.backend.onPress = func(input.Button, bool) { panic("device removed") }

	assert.Panics(t, func() { h.clicker.Tick() })
	assert.EqualValues(t, 0, h.guard.Depth())
}

func TestStartStop(t *testing.T) {
	backend := &fakeBackend{}
	guard := &synth.Guard{}
	rt := state.New(guard)
	rt.SetAutoClickEnabled(true)
	rt.ObserveButton(state.ButtonLeft, true)

	c := New(Config{
		Backend:     backend,
		State:       rt.Snapshot,
		Guard:       guard,
		Logger:      zerolog.Nop(),
		DelayMillis: 1,
	})
	c.Start()
	require.Eventually(t, func() bool { return backend.clicks() >= 3 }, time.Second, time.Millisecond)

	c.Stop()
	assert.False(t, c.Running())
	assert.False(t, c.Clicking())
	assert.False(t, guard.Active())

	after := backend.clicks()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, backend.clicks())
}
