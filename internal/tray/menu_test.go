package tray

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoilctl/internal/config"
	"recoilctl/internal/profile"
	"recoilctl/internal/protocol"
)

type fakeController struct {
	status    protocol.Status
	toggled   []string
	steps     []int
	reloads   int
	listeners []func(protocol.Status)
}

func (f *fakeController) Status() protocol.Status { return f.status }

func (f *fakeController) Toggle(action string) error {
	f.toggled = append(f.toggled, action)
	return nil
}

func (f *fakeController) StepProfile(delta int) *profile.Weapon {
	f.steps = append(f.steps, delta)
	return nil
}

func (f *fakeController) RefreshProfiles() error {
	f.reloads++
	return nil
}

func (f *fakeController) Subscribe(fn func(protocol.Status)) {
	f.listeners = append(f.listeners, fn)
}

func findItem(t *testing.T, m *Menu, title string) MenuItem {
	t.Helper()
	for i := 0; ; i++ {
		mi, ok := m.Item(i)
		if !ok && i >= len(m.items) {
			t.Fatalf("menu item %q not found", title)
		}
		if ok && mi.Title == title {
			return mi
		}
	}
}

func TestMenu_InitialState(t *testing.T) {
	ctrl := &fakeController{status: protocol.Status{FireEnabled: true, CurrentWeapon: "AK"}}
	m := NewMenu(ctrl, zerolog.Nop(), func() {})

	fire, ok := m.Item(m.toggles[config.ActionFire])
	require.True(t, ok)
	assert.True(t, fire.Checkable)
	assert.True(t, fire.Checked)

	auto, _ := m.Item(m.toggles[config.ActionAutoClick])
	assert.False(t, auto.Checked)

	label, _ := m.Item(m.weapon)
	assert.Equal(t, "Weapon: AK", label.Title)
	assert.True(t, label.Disabled)
}

func TestMenu_FollowsStatus(t *testing.T) {
	ctrl := &fakeController{status: protocol.Status{FireEnabled: true}}
	m := NewMenu(ctrl, zerolog.Nop(), func() {})
	require.Len(t, ctrl.listeners, 1)

	ctrl.listeners[0](protocol.Status{AutoClickEnabled: true, FlashMode: true})

	fire, _ := m.Item(m.toggles[config.ActionFire])
	assert.False(t, fire.Checked)
	auto, _ := m.Item(m.toggles[config.ActionAutoClick])
	assert.True(t, auto.Checked)
	flash, _ := m.Item(m.toggles[config.ActionFlash])
	assert.True(t, flash.Checked)
	label, _ := m.Item(m.weapon)
	assert.Equal(t, "Weapon: (default)", label.Title)
}

func TestMenu_Callbacks(t *testing.T) {
	ctrl := &fakeController{}
	quit := false
	m := NewMenu(ctrl, zerolog.Nop(), func() { quit = true })

	item, _ := m.Item(m.toggles[config.ActionPressKey])
	item.Callback()
	assert.Equal(t, []string{config.ActionPressKey}, ctrl.toggled)

	findItem(t, m, "Previous weapon").Callback()
	findItem(t, m, "Next weapon").Callback()
	assert.Equal(t, []int{-1, 1}, ctrl.steps)

	findItem(t, m, "Reload profiles").Callback()
	assert.Equal(t, 1, ctrl.reloads)

	findItem(t, m, "Quit").Callback()
	assert.True(t, quit)
}
