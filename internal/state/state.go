// Package state holds the runtime flags shared between the control surface,
// the hook thread and the two control loops.
package state

import (
	"sync/atomic"

	"recoilctl/internal/profile"
	"recoilctl/internal/synth"
)

// Button identifies a physical mouse button reported by the observer.
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonRight
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	}
	return "unknown"
}

// Snapshot is a point-in-time copy of the runtime flags.
type Snapshot struct {
	FireEnabled      bool
	FlashEnabled     bool
	AutoClickEnabled bool
	PressKeyEnabled  bool
	LeftHeld         bool
	RightHeld        bool
	Profile          *profile.Weapon
}

// ShouldFire reports whether compensation is wanted: enabled and both buttons down.
func (s Snapshot) ShouldFire() bool {
	return s.FireEnabled && s.RightHeld && s.LeftHeld
}

// Runtime is safe for concurrent use. Each field has a single writer.
type Runtime struct {
	fire      atomic.Bool
	flash     atomic.Bool
	autoClick atomic.Bool
	pressKey  atomic.Bool
	left      atomic.Bool
	right     atomic.Bool
	profile   atomic.Pointer[profile.Weapon]

	guard *synth.Guard
}

// New returns a Runtime with fire and press-key enabled. guard covers the
// left channel, the only button the clicker synthesizes; left transitions
// are dropped while it is active.
func New(guard *synth.Guard) *Runtime {
	if guard == nil {
		guard = &synth.Guard{}
	}
	r := &Runtime{guard: guard}
	r.fire.Store(true)
	r.pressKey.Store(true)
	return r
}

func (r *Runtime) Guard() *synth.Guard { return r.guard }

// The setters return true when the stored value changed.

func (r *Runtime) SetFireEnabled(v bool) bool      { return r.fire.Swap(v) != v }
func (r *Runtime) SetFlashEnabled(v bool) bool     { return r.flash.Swap(v) != v }
func (r *Runtime) SetAutoClickEnabled(v bool) bool { return r.autoClick.Swap(v) != v }
func (r *Runtime) SetPressKeyEnabled(v bool) bool  { return r.pressKey.Swap(v) != v }

func (r *Runtime) FireEnabled() bool      { return r.fire.Load() }
func (r *Runtime) FlashEnabled() bool     { return r.flash.Load() }
func (r *Runtime) AutoClickEnabled() bool { return r.autoClick.Load() }
func (r *Runtime) PressKeyEnabled() bool  { return r.pressKey.Load() }

// SetProfile swaps the selected profile. nil clears the selection.
func (r *Runtime) SetProfile(w *profile.Weapon) { r.profile.Store(w) }

// Profile returns the selected profile, or nil.
func (r *Runtime) Profile() *profile.Weapon { return r.profile.Load() }

// ObserveButton records a physical button transition. It returns false when
// the transition was dropped because synthetic input is in flight on that
// channel.
func (r *Runtime) ObserveButton(b Button, pressed bool) bool {
	switch b {
	case ButtonLeft:
		if r.guard.Active() {
			return false
		}
		r.left.Store(pressed)
	case ButtonRight:
		r.right.Store(pressed)
	default:
		return false
	}
	return true
}

func (r *Runtime) Snapshot() Snapshot {
	return Snapshot{
		FireEnabled:      r.fire.Load(),
		FlashEnabled:     r.flash.Load(),
		AutoClickEnabled: r.autoClick.Load(),
		PressKeyEnabled:  r.pressKey.Load(),
		LeftHeld:         r.left.Load(),
		RightHeld:        r.right.Load(),
		Profile:          r.profile.Load(),
	}
}
