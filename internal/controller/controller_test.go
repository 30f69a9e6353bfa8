package controller

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoilctl/internal/config"
	"recoilctl/internal/input"
	"recoilctl/internal/protocol"
	"recoilctl/internal/state"
)

type fakeBackend struct {
	mu   sync.Mutex
	ops  []string
	taps []rune
	ups  []rune
}

func (f *fakeBackend) MoveMouseRelative(dx, dy int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "move")
}

func (f *fakeBackend) KeyDown(ch rune) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "down:"+string(ch))
}

func (f *fakeBackend) KeyUp(ch rune) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "up:"+string(ch))
	f.ups = append(f.ups, ch)
}

func (f *fakeBackend) KeyTap(ch rune) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taps = append(f.taps, ch)
}

func (f *fakeBackend) MouseButton(b input.Button, pressed bool) {}

func (f *fakeBackend) tapped() []rune {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rune(nil), f.taps...)
}

const weaponsYAML = `weapons:
  - name: AK
    defaultPull: 3
    sleepTime: 8
  - name: M4
  - name: SMG
    steadyPull: 1
`

type harness struct {
	ctrl    *Controller
	backend *fakeBackend
	cfgDir  string
	plugins string
}

func newHarness(t *testing.T, settings string, weapons string) *harness {
	t.Helper()
	cfgDir := t.TempDir()
	plugins := filepath.Join(cfgDir, "plugins")
	require.NoError(t, os.MkdirAll(plugins, 0755))
	if settings != "" {
		require.NoError(t, os.WriteFile(filepath.Join(cfgDir, config.FileName), []byte(settings), 0644))
	}
	if weapons != "" {
		require.NoError(t, os.WriteFile(filepath.Join(plugins, "weapons.yaml"), []byte(weapons), 0644))
	}

	fb := &fakeBackend{}
	ctrl, err := New(Options{
		ConfigDir:      cfgDir,
		Logger:         zerolog.Nop(),
		Device:         fb,
		LeftProbe:      func() bool { return false },
		DisableHooks:   true,
		DisableWatcher: true,
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Shutdown)
	return &harness{ctrl: ctrl, backend: fb, cfgDir: cfgDir, plugins: plugins}
}

func (h *harness) saved(t *testing.T) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.cfgDir, config.FileName))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNew_DefaultsWithoutFiles(t *testing.T) {
	h := newHarness(t, "", "")
	st := h.ctrl.Status()

	assert.True(t, st.FireEnabled)
	assert.True(t, st.PressKeyEnabled)
	assert.False(t, st.FlashMode)
	assert.False(t, st.AutoClickEnabled)
	assert.Equal(t, "p", st.PressKeyChar)
	assert.Equal(t, 20, st.ClickDelay)
	assert.Equal(t, 20, st.ClickRand)
	assert.Empty(t, st.CurrentWeapon)
	assert.Empty(t, st.Profiles)
	assert.Equal(t, "custom", st.Backend)
}

func TestNew_RestoresSettingsAndWeapon(t *testing.T) {
	h := newHarness(t, `{"fire_enabled": false, "press_key_char": "K", "click_delay": 50, "click_rand": 5, "current_weapon": "M4"}`, weaponsYAML)
	st := h.ctrl.Status()

	assert.False(t, st.FireEnabled)
	assert.Equal(t, "k", st.PressKeyChar)
	assert.Equal(t, 50, st.ClickDelay)
	assert.Equal(t, 5, st.ClickRand)
	assert.Equal(t, "M4", st.CurrentWeapon)
	assert.Equal(t, []string{"AK", "M4", "SMG"}, st.Profiles)
}

func TestNew_MissingSavedWeaponFallsBackToFirst(t *testing.T) {
	h := newHarness(t, `{"current_weapon": "gone"}`, weaponsYAML)
	assert.Equal(t, "AK", h.ctrl.Status().CurrentWeapon)
}

func TestToggles_PersistAndNotify(t *testing.T) {
	h := newHarness(t, "", "")

	var mu sync.Mutex
	var seen []protocol.Status
	h.ctrl.Subscribe(func(s protocol.Status) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	h.ctrl.SetFireEnabled(false)
	h.ctrl.SetFireEnabled(false) // no change, no event
	require.NoError(t, h.ctrl.Toggle(config.ActionAutoClick))

	mu.Lock()
	require.Len(t, seen, 2)
	assert.False(t, seen[0].FireEnabled)
	assert.True(t, seen[1].AutoClickEnabled)
	mu.Unlock()

	saved := h.saved(t)
	assert.Equal(t, false, saved["fire_enabled"])
	assert.Equal(t, true, saved["auto_click_enabled"])
}

func TestSetAction(t *testing.T) {
	h := newHarness(t, "", "")
	off := false

	require.NoError(t, h.ctrl.SetAction(config.ActionPressKey, &off))
	assert.False(t, h.ctrl.Status().PressKeyEnabled)
	require.NoError(t, h.ctrl.SetAction(config.ActionPressKey, nil))
	assert.True(t, h.ctrl.Status().PressKeyEnabled)

	err := h.ctrl.SetAction("teleport", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestPressKeyDisabledReleasesTrigger(t *testing.T) {
	h := newHarness(t, "", "")
	h.ctrl.engine.Tick() // press key enabled: nothing held yet
	h.ctrl.runtime.ObserveButton(state.ButtonLeft, true)
	h.ctrl.runtime.ObserveButton(state.ButtonRight, true)
	h.ctrl.engine.Tick()
	require.True(t, h.ctrl.engine.TriggerHeld())

	h.ctrl.SetPressKeyEnabled(false)
	assert.False(t, h.ctrl.engine.TriggerHeld())
	assert.Contains(t, h.backend.ups, 'p')
}

func TestUpdateClickParams(t *testing.T) {
	h := newHarness(t, "", "")

	require.NoError(t, h.ctrl.UpdateClickParams(35, 0))
	st := h.ctrl.Status()
	assert.Equal(t, 35, st.ClickDelay)
	assert.Equal(t, 0, st.ClickRand)
	assert.EqualValues(t, 35, h.saved(t)["click_delay"])

	assert.ErrorIs(t, h.ctrl.UpdateClickParams(0, 5), ErrInvalidParam)
	assert.ErrorIs(t, h.ctrl.UpdateClickParams(5, -1), ErrInvalidParam)
	assert.Equal(t, 35, h.ctrl.Status().ClickDelay)
}

func TestSetTriggerKey(t *testing.T) {
	h := newHarness(t, "", "")

	require.NoError(t, h.ctrl.SetTriggerKey("Xyz"))
	assert.Equal(t, "x", h.ctrl.Status().PressKeyChar)
	assert.Equal(t, "x", h.saved(t)["press_key_char"])

	require.NoError(t, h.ctrl.SetTriggerKey(""))
	assert.Equal(t, "p", h.ctrl.Status().PressKeyChar)

	require.NoError(t, h.ctrl.SetTriggerKey("\xff"))
	assert.Equal(t, "p", h.ctrl.Status().PressKeyChar)
	assert.Equal(t, "p", h.saved(t)["press_key_char"])
	assert.Equal(t, 'p', h.ctrl.engine.TriggerKey())

	assert.ErrorIs(t, h.ctrl.SetTriggerKey("\x01"), ErrInvalidParam)
}

func TestProfileSelection(t *testing.T) {
	h := newHarness(t, "", weaponsYAML)

	require.NoError(t, h.ctrl.SelectProfile("SMG"))
	assert.Equal(t, "SMG", h.ctrl.Status().CurrentWeapon)
	assert.Equal(t, "SMG", h.saved(t)["current_weapon"])

	assert.ErrorIs(t, h.ctrl.SelectProfile("nope"), ErrUnknownProfile)
	assert.Equal(t, "SMG", h.ctrl.Status().CurrentWeapon)

	require.NoError(t, h.ctrl.SelectIndex(0))
	assert.Equal(t, "AK", h.ctrl.Status().CurrentWeapon)
	assert.ErrorIs(t, h.ctrl.SelectIndex(3), ErrUnknownProfile)

	assert.Equal(t, "AK", h.ctrl.StepProfile(-1).Name)
	assert.Equal(t, "M4", h.ctrl.StepProfile(1).Name)
	assert.Equal(t, "SMG", h.ctrl.StepProfile(5).Name)
}

func TestStepProfile_Empty(t *testing.T) {
	h := newHarness(t, "", "")
	assert.Nil(t, h.ctrl.StepProfile(1))
}

func TestRefreshProfiles_KeepsCurrent(t *testing.T) {
	h := newHarness(t, "", weaponsYAML)
	require.NoError(t, h.ctrl.SelectProfile("M4"))

	require.NoError(t, os.WriteFile(filepath.Join(h.plugins, "weapons.yaml"),
		[]byte("weapons:\n  - name: M4\n  - name: Sniper\n"), 0644))
	require.NoError(t, h.ctrl.RefreshProfiles())

	st := h.ctrl.Status()
	assert.Equal(t, "M4", st.CurrentWeapon)
	assert.Equal(t, []string{"M4", "Sniper"}, st.Profiles)
}

func TestRefreshProfiles_CurrentRemoved(t *testing.T) {
	h := newHarness(t, "", weaponsYAML)
	require.NoError(t, h.ctrl.SelectProfile("SMG"))

	require.NoError(t, os.Remove(filepath.Join(h.plugins, "weapons.yaml")))
	require.NoError(t, h.ctrl.RefreshProfiles())
	assert.Empty(t, h.ctrl.Status().CurrentWeapon)
	assert.Nil(t, h.ctrl.Runtime().Profile())
}

func TestCustomPullStrategy(t *testing.T) {
	h := newHarness(t, "", weaponsYAML)
	require.NoError(t, h.ctrl.SelectProfile("AK"))
	assert.Nil(t, h.ctrl.currentPull())

	h.ctrl.Strategies().Register("AK", func(time.Duration, int) (float64, error) { return 9, nil })
	pull := h.ctrl.currentPull()
	require.NotNil(t, pull)
	v, err := pull(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)
}

func TestUpdateHotkey(t *testing.T) {
	h := newHarness(t, "", "")

	require.NoError(t, h.ctrl.UpdateHotkey(config.ActionFire, "Ctrl+F7"))
	assert.Equal(t, "ctrl+f7", h.ctrl.Hotkeys().Bindings()[config.ActionFire])
	assert.Equal(t, "ctrl+f7", h.ctrl.Status().KeyBindings[config.ActionFire])

	require.NoError(t, h.ctrl.UpdateHotkey(config.ActionFire, ""))
	_, bound := h.ctrl.Hotkeys().Bindings()[config.ActionFire]
	assert.False(t, bound)

	assert.ErrorIs(t, h.ctrl.UpdateHotkey("jump", "f1"), ErrUnknownAction)
	assert.ErrorIs(t, h.ctrl.UpdateHotkey(config.ActionFire, "ctrl++x"), ErrInvalidParam)
}

func TestHotkeyTogglesAction(t *testing.T) {
	h := newHarness(t, "", "")
	require.True(t, h.ctrl.Status().FireEnabled)

	h.ctrl.Hotkeys().UpdateState("F8", true)
	assert.Eventually(t, func() bool { return !h.ctrl.Runtime().FireEnabled() }, time.Second, 5*time.Millisecond)
	h.ctrl.Hotkeys().UpdateState("F8", false)
}

func TestNavigationHotkeys(t *testing.T) {
	h := newHarness(t, "", weaponsYAML)
	hk := h.ctrl.Hotkeys()

	hk.UpdateState("ALT", true)
	hk.UpdateState("RIGHT", true)
	assert.Eventually(t, func() bool { return h.ctrl.Status().CurrentWeapon == "M4" }, time.Second, 5*time.Millisecond)
	hk.UpdateState("RIGHT", false)
	hk.UpdateState("LEFT", true)
	assert.Eventually(t, func() bool { return h.ctrl.Status().CurrentWeapon == "AK" }, time.Second, 5*time.Millisecond)
}

func TestFlashRemap(t *testing.T) {
	h := newHarness(t, "", "")
	hk := h.ctrl.Hotkeys()

	assert.False(t, hk.UpdateState("F", true))
	hk.UpdateState("F", false)

	h.ctrl.SetFlashMode(true)
	assert.True(t, hk.UpdateState("F", true))
	assert.Eventually(t, func() bool { return len(h.backend.tapped()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []rune{'i'}, h.backend.tapped())
	hk.UpdateState("F", false)

	h.ctrl.SetFlashMode(false)
	assert.Empty(t, hk.Remapped())
}

func TestShutdown_ReleasesAndSaves(t *testing.T) {
	h := newHarness(t, "", "")
	h.ctrl.Start()
	h.ctrl.SetFlashMode(true)

	h.ctrl.runtime.ObserveButton(state.ButtonLeft, true)
	h.ctrl.runtime.ObserveButton(state.ButtonRight, true)
	assert.Eventually(t, h.ctrl.engine.TriggerHeld, time.Second, time.Millisecond)

	h.ctrl.Shutdown()
	h.ctrl.Shutdown()

	assert.False(t, h.ctrl.engine.TriggerHeld())
	assert.False(t, h.ctrl.engine.Running())
	assert.False(t, h.ctrl.clicker.Running())
	assert.Empty(t, h.ctrl.Hotkeys().Remapped())
	assert.Equal(t, true, h.saved(t)["flash_mode"])
}
