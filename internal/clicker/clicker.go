// Package clicker repeats left clicks while the left button is held and
// auto-click is enabled.
package clicker

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"recoilctl/internal/clock"
	"recoilctl/internal/input"
	"recoilctl/internal/metrics"
	"recoilctl/internal/state"
	"recoilctl/internal/synth"
)

// Defaults for Options.
const (
	DefaultGrace         = 30 * time.Millisecond
	DefaultPostClickHold = 2 * time.Millisecond
	DefaultIdle          = 10 * time.Millisecond
	DefaultJoinTimeout   = time.Second
	DefaultDelayMillis   = 20
	DefaultJitterMillis  = 20
)

// Options tunes the hold reconciliation and loop cadence. Zero values take
// the defaults above.
type Options struct {
	// Grace keeps the hold latched this long after the last synthetic click.
	Grace time.Duration
	// PostClickHold keeps the synth guard open after the button-up.
	PostClickHold time.Duration
	Idle          time.Duration
	JoinTimeout   time.Duration
}

// Config wires a Clicker. Backend, State and Guard are required.
type Config struct {
	Backend input.Backend
	State   func() state.Snapshot
	Guard   *synth.Guard
	// PhysicalLeft probes the hardware button; nil means no probe.
	PhysicalLeft func() bool
	Logger       zerolog.Logger
	Clock        clock.Clock
	// Rand returns a value in [0, n).
	Rand func(n int) int

	DelayMillis  int
	JitterMillis int
	Options      Options
}

type Clicker struct {
	backend  input.Backend
	snapshot func() state.Snapshot
	guard    *synth.Guard
	physical func() bool
	log      zerolog.Logger
	clock    clock.Clock
	rand     func(int) int
	opts     Options

	delay  atomic.Int64
	jitter atomic.Int64

	// clickMu serializes ClearClickState with the click decision and the
	// click itself; clearGen tells a tick that a clear landed after it read
	// its inputs.
	clickMu  sync.Mutex
	clearGen atomic.Uint64
	clicking atomic.Bool
	shadow   atomic.Bool
	// unix nanos of the last finished click, 0 before the first
	lastSynth atomic.Int64

	lifeMu  sync.Mutex
	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
}

func New(cfg Config) *Clicker {
	c := &Clicker{
		backend:  cfg.Backend,
		snapshot: cfg.State,
		guard:    cfg.Guard,
		physical: cfg.PhysicalLeft,
		log:      cfg.Logger,
		clock:    cfg.Clock,
		rand:     cfg.Rand,
		opts:     cfg.Options,
	}
	if c.guard == nil {
		c.guard = &synth.Guard{}
	}
	if c.physical == nil {
		c.physical = func() bool { return false }
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if c.rand == nil {
		c.rand = rand.IntN
	}
	if c.opts.Grace <= 0 {
		c.opts.Grace = DefaultGrace
	}
	if c.opts.PostClickHold <= 0 {
		c.opts.PostClickHold = DefaultPostClickHold
	}
	if c.opts.Idle <= 0 {
		c.opts.Idle = DefaultIdle
	}
	if c.opts.JoinTimeout <= 0 {
		c.opts.JoinTimeout = DefaultJoinTimeout
	}
	delay, jitter := cfg.DelayMillis, cfg.JitterMillis
	if delay == 0 && jitter == 0 {
		delay, jitter = DefaultDelayMillis, DefaultJitterMillis
	}
	c.SetDelay(delay)
	c.SetJitter(jitter)
	return c
}

// SetDelay sets the base inter-click delay in milliseconds, at least 1.
func (c *Clicker) SetDelay(ms int) {
	c.delay.Store(int64(max(1, ms)))
}

// SetJitter sets the uniform jitter half-width in milliseconds, at least 0.
func (c *Clicker) SetJitter(ms int) {
	c.jitter.Store(int64(max(0, ms)))
}

func (c *Clicker) Delay() int  { return int(c.delay.Load()) }
func (c *Clicker) Jitter() int { return int(c.jitter.Load()) }

// Clicking reports whether the loop is currently repeating clicks.
func (c *Clicker) Clicking() bool { return c.clicking.Load() }

// ClearClickState drops the hold latch and the clicking flag. A tick that
// read its inputs before the clear does not click afterwards.
func (c *Clicker) ClearClickState() {
	c.clickMu.Lock()
	defer c.clickMu.Unlock()
	c.clearGen.Add(1)
	c.shadow.Store(false)
	c.clicking.Store(false)
}

func (c *Clicker) Start() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.running.Load() {
		return
	}
	if c.done != nil {
		<-c.done
	}
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	c.running.Store(true)
	go c.loop(c.stopCh, c.done)
	c.log.Info().Msg("auto click loop started")
}

// Stop signals the loop, waits up to the join timeout, and clears click state.
func (c *Clicker) Stop() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.running.Swap(false) {
		close(c.stopCh)
		select {
		case <-c.done:
		case <-time.After(c.opts.JoinTimeout):
			c.log.Warn().Dur("timeout", c.opts.JoinTimeout).Msg("auto click loop did not exit in time")
		}
	}
	c.ClearClickState()
	c.log.Info().Msg("auto click loop stopped")
}

func (c *Clicker) Running() bool { return c.running.Load() }

func (c *Clicker) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		wait := c.Tick()

		select {
		case <-stopCh:
			return
		case <-c.clock.After(wait):
		}
	}
}

// Tick reconciles the hold state, clicks once if wanted, and returns how long
// to wait before the next tick.
func (c *Clicker) Tick() time.Duration {
	gen := c.clearGen.Load()
	snap := c.snapshot()
	held := c.reconcile(snap.LeftHeld, c.physical(), c.clock.Now())

	c.clickMu.Lock()
	defer c.clickMu.Unlock()
	if c.clearGen.Load() != gen {
		c.shadow.Store(false)
		return c.opts.Idle
	}

	if snap.AutoClickEnabled && held {
		if !c.clicking.Swap(true) {
			c.log.Debug().Msg("auto click engaged")
		}
		c.click()
		return c.nextDelay()
	}

	if c.clicking.Swap(false) {
		c.log.Debug().Msg("auto click released")
	}
	return c.opts.Idle
}

// reconcile updates the shadow latch and returns the effective hold. The
// latch clears only when nothing is being synthesized and the grace period
// since the last click has elapsed.
func (c *Clicker) reconcile(userHold, physicalHold bool, now time.Time) bool {
	if userHold {
		c.shadow.Store(true)
	} else if !physicalHold && !c.guard.Active() && c.sinceLastSynth(now) > c.opts.Grace {
		c.shadow.Store(false)
	}
	return physicalHold || c.shadow.Load()
}

func (c *Clicker) sinceLastSynth(now time.Time) time.Duration {
	last := c.lastSynth.Load()
	if last == 0 {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(time.Unix(0, last))
}

func (c *Clicker) click() {
	c.guard.Begin()
	defer func() {
		c.clock.Sleep(c.opts.PostClickHold)
		c.guard.End()
		c.lastSynth.Store(c.clock.Now().UnixNano())
	}()

	c.backend.MouseButton(input.ButtonLeft, true)
	c.backend.MouseButton(input.ButtonLeft, false)
	metrics.ClicksTotal.Inc()
}

func (c *Clicker) nextDelay() time.Duration {
	delay := c.delay.Load()
	jitter := c.jitter.Load()
	ms := delay
	if jitter > 0 {
		ms += int64(c.rand(int(2*jitter+1))) - jitter
	}
	return time.Duration(max(1, ms)) * time.Millisecond
}
