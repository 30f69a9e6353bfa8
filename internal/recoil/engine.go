// Package recoil runs the compensation loop: while fire is enabled and both
// mouse buttons are held it pulls the cursor down along the selected
// profile's curve and optionally holds a trigger key.
package recoil

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"recoilctl/internal/clock"
	"recoilctl/internal/input"
	"recoilctl/internal/metrics"
	"recoilctl/internal/profile"
	"recoilctl/internal/state"
)

// DefaultTriggerKey is used when the configured key is blank.
const DefaultTriggerKey = input.DefaultTriggerKey

const (
	defaultIdlePoll    = 2 * time.Millisecond
	defaultJoinTimeout = time.Second
	debugEvery         = 10
)

// Config wires an Engine to its collaborators. Backend, State and Weapon are
// required.
type Config struct {
	Backend input.Backend
	State   func() state.Snapshot
	Weapon  func() *profile.Weapon
	// Pull optionally returns a custom pull function for the current tick.
	Pull   func() profile.PullFunc
	Logger zerolog.Logger
	Clock  clock.Clock

	TriggerKey  rune
	IdlePoll    time.Duration
	JoinTimeout time.Duration
}

// Engine is the Idle/Shooting state machine plus its goroutine lifecycle.
type Engine struct {
	backend     input.Backend
	snapshot    func() state.Snapshot
	weapon      func() *profile.Weapon
	pull        func() profile.PullFunc
	log         zerolog.Logger
	clock       clock.Clock
	idlePoll    time.Duration
	joinTimeout time.Duration

	// trigger key state, shared with control-surface callers
	keyMu       sync.Mutex
	triggerKey  rune
	triggerHeld bool
	stopping    bool

	// session state, written only by whoever drives Tick
	shooting atomic.Bool
	ticks    int
	start    time.Time

	lifeMu  sync.Mutex
	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
}

func New(cfg Config) *Engine {
	e := &Engine{
		backend:     cfg.Backend,
		snapshot:    cfg.State,
		weapon:      cfg.Weapon,
		pull:        cfg.Pull,
		log:         cfg.Logger,
		clock:       cfg.Clock,
		idlePoll:    cfg.IdlePoll,
		joinTimeout: cfg.JoinTimeout,
		triggerKey:  input.NormalizeKey(string(cfg.TriggerKey)),
	}
	if e.clock == nil {
		e.clock = clock.Real{}
	}
	if e.idlePoll <= 0 {
		e.idlePoll = defaultIdlePoll
	}
	if e.joinTimeout <= 0 {
		e.joinTimeout = defaultJoinTimeout
	}
	return e
}

// Start launches the loop goroutine. It is a no-op while already running.
func (e *Engine) Start() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.running.Load() {
		return
	}
	if e.done != nil {
		// A previous loop outlived its join timeout; let it finish first.
		<-e.done
	}

	e.keyMu.Lock()
	e.stopping = false
	e.keyMu.Unlock()

	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	e.running.Store(true)
	go e.loop(e.stopCh, e.done)
	e.log.Info().Msg("recoil engine started")
}

// Stop signals the loop, waits up to the join timeout, and releases the
// trigger key whether or not the loop has exited.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.keyMu.Lock()
	e.stopping = true
	e.keyMu.Unlock()

	if e.running.Swap(false) {
		close(e.stopCh)
		select {
		case <-e.done:
		case <-time.After(e.joinTimeout):
			e.log.Warn().Dur("timeout", e.joinTimeout).Msg("recoil loop did not exit in time")
		}
	}
	e.ReleaseTrigger()
	e.log.Info().Msg("recoil engine stopped")
}

// Running reports whether the loop goroutine is active.
func (e *Engine) Running() bool { return e.running.Load() }

func (e *Engine) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer e.endSession()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		wait := e.Tick()

		select {
		case <-stopCh:
			return
		case <-e.clock.After(wait):
		}
	}
}

// Tick advances the state machine by one step and returns how long to wait
// before the next one. It must not be called while the loop goroutine runs.
func (e *Engine) Tick() time.Duration {
	snap := e.snapshot()
	fire := snap.ShouldFire()

	if !snap.PressKeyEnabled {
		e.ReleaseTrigger()
	}

	if fire && !e.shooting.Load() {
		e.beginSession(snap)
	}
	if !fire {
		if e.shooting.Load() {
			e.endSession()
		}
		return e.idlePoll
	}

	w := e.weapon()
	if w == nil {
		w = profile.Default()
	}
	return e.shoot(snap, w)
}

// Shooting reports whether a session is active.
func (e *Engine) Shooting() bool { return e.shooting.Load() }

func (e *Engine) beginSession(snap state.Snapshot) {
	e.shooting.Store(true)
	e.ticks = 0
	e.start = e.clock.Now()
	if snap.PressKeyEnabled {
		e.ensureTriggerDown()
	}
	metrics.ShootingSessionsTotal.Inc()
	metrics.Shooting.Set(1)
	e.log.Debug().Msg("shooting started")
}

func (e *Engine) endSession() {
	e.ReleaseTrigger()
	if !e.shooting.Load() {
		return
	}
	e.log.Debug().Int("ticks", e.ticks).Msg("shooting stopped")
	e.shooting.Store(false)
	e.ticks = 0
	e.start = time.Time{}
	metrics.Shooting.Set(0)
}

func (e *Engine) shoot(snap state.Snapshot, w *profile.Weapon) time.Duration {
	if snap.PressKeyEnabled {
		e.ensureTriggerDown()
	} else {
		e.ReleaseTrigger()
	}

	e.ticks++
	elapsed := e.clock.Now().Sub(e.start)
	pull := e.computePull(w, elapsed, e.ticks)
	dy := int(math.Round(pull))
	e.backend.MoveMouseRelative(0, dy)
	metrics.RecoilTicksTotal.Inc()

	if e.ticks%debugEvery == 0 {
		e.log.Debug().
			Str("profile", w.Name).
			Float64("elapsed", elapsed.Seconds()).
			Int("count", e.ticks).
			Float64("pull", pull).
			Int("dy", dy).
			Msg("recoil tick")
	}
	return w.Interval()
}

func (e *Engine) computePull(w *profile.Weapon, elapsed time.Duration, count int) (pull float64) {
	var fn profile.PullFunc
	if e.pull != nil {
		fn = e.pull()
	}
	if fn == nil {
		return w.Pull(elapsed, count)
	}

	defer func() {
		if r := recover(); r != nil {
			e.pullFailed(w, fmt.Errorf("panic: %v", r))
			pull = w.SteadyPull
		}
	}()
	v, err := fn(elapsed, count)
	if err != nil {
		e.pullFailed(w, err)
		return w.SteadyPull
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		e.pullFailed(w, fmt.Errorf("non-finite pull %v", v))
		return w.SteadyPull
	}
	return v
}

func (e *Engine) pullFailed(w *profile.Weapon, err error) {
	metrics.PullFailuresTotal.Inc()
	e.log.Warn().Err(err).Str("profile", w.Name).Msg("custom pull failed, using steady pull")
}

// TriggerKey returns the key held while shooting.
func (e *Engine) TriggerKey() rune {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	return e.triggerKey
}

// SetTriggerKey switches the held key. Only the first character of key is
// used, lowercased; blank selects DefaultTriggerKey. If the old key is held it
// is released before the new one is pressed.
func (e *Engine) SetTriggerKey(key string) {
	next := input.NormalizeKey(key)

	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if next == e.triggerKey {
		return
	}
	prev := e.triggerKey
	e.triggerKey = next
	if !e.triggerHeld {
		return
	}
	e.backend.KeyUp(prev)
	e.triggerHeld = false
	if !e.stopping {
		e.backend.KeyDown(next)
		e.triggerHeld = true
	}
	e.log.Info().Str("from", string(prev)).Str("to", string(next)).Msg("trigger key rebound while held")
}

// ReleaseTrigger lifts the trigger key if it is held.
func (e *Engine) ReleaseTrigger() {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if !e.triggerHeld {
		return
	}
	e.backend.KeyUp(e.triggerKey)
	e.triggerHeld = false
}

// TriggerHeld reports whether a key-down was issued without its key-up.
func (e *Engine) TriggerHeld() bool {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	return e.triggerHeld
}

func (e *Engine) ensureTriggerDown() {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if e.triggerHeld || e.stopping {
		return
	}
	e.backend.KeyDown(e.triggerKey)
	e.triggerHeld = true
}

