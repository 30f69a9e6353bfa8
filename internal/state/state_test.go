package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"recoilctl/internal/profile"
	"recoilctl/internal/synth"
)

func TestDefaults(t *testing.T) {
	s := New(nil).Snapshot()
	assert.True(t, s.FireEnabled)
	assert.True(t, s.PressKeyEnabled)
	assert.False(t, s.FlashEnabled)
	assert.False(t, s.AutoClickEnabled)
	assert.Nil(t, s.Profile)
	assert.False(t, s.ShouldFire())
}

func TestShouldFireNeedsBothButtons(t *testing.T) {
	r := New(nil)

	r.ObserveButton(ButtonRight, true)
	assert.False(t, r.Snapshot().ShouldFire())

	r.ObserveButton(ButtonLeft, true)
	assert.True(t, r.Snapshot().ShouldFire())

	r.SetFireEnabled(false)
	assert.False(t, r.Snapshot().ShouldFire())
}

func TestObserverIgnoresSyntheticWindow(t *testing.T) {
	g := &synth.Guard{}
	r := New(g)
	assert.True(t, r.ObserveButton(ButtonLeft, true))

	g.Begin()
	assert.False(t, r.ObserveButton(ButtonLeft, false))
	g.End()

	assert.True(t, r.Snapshot().LeftHeld)
	assert.True(t, r.ObserveButton(ButtonLeft, false))
	assert.False(t, r.Snapshot().LeftHeld)
}

func TestRightChannelObservedDuringLeftSynthesis(t *testing.T) {
	g := &synth.Guard{}
	r := New(g)
	r.ObserveButton(ButtonLeft, true)
	r.ObserveButton(ButtonRight, true)
	r.SetFireEnabled(true)
	assert.True(t, r.Snapshot().ShouldFire())

	g.Begin()
	assert.True(t, r.ObserveButton(ButtonRight, false))
	g.End()

	s := r.Snapshot()
	assert.False(t, s.RightHeld)
	assert.True(t, s.LeftHeld)
	assert.False(t, s.ShouldFire())
}

func TestSettersReportChange(t *testing.T) {
	r := New(nil)
	assert.False(t, r.SetFireEnabled(true))
	assert.True(t, r.SetFireEnabled(false))
	assert.True(t, r.SetAutoClickEnabled(true))
	assert.False(t, r.SetAutoClickEnabled(true))
}

func TestProfileSwap(t *testing.T) {
	r := New(nil)
	w := profile.Default()
	r.SetProfile(w)
	assert.Same(t, w, r.Snapshot().Profile)
	r.SetProfile(nil)
	assert.Nil(t, r.Profile())
}
