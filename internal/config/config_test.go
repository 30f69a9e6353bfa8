package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoilctl/internal/input"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(dir, zerolog.Nop())
	require.NoError(t, err)
	return m, dir
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load())
	assert.Equal(t, DefaultSettings(), m.Get())
}

func TestLoadPartialFile(t *testing.T) {
	m, dir := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{
		"fire_enabled": false,
		"auto_click_enabled": "yes",
		"press_key_char": "Kx",
		"click_delay": 0,
		"click_rand": -4,
		"key_bindings": {"fire": " F6 ", "teleport": "f1"},
		"current_weapon": "AK-47"
	}`), 0644))

	require.NoError(t, m.Load())
	s := m.Get()

	assert.False(t, s.FireEnabled)
	assert.False(t, s.AutoClickEnabled, "invalid value keeps default")
	assert.True(t, s.PressKeyEnabled)
	assert.Equal(t, "k", s.PressKeyChar)
	assert.Equal(t, 1, s.ClickDelay)
	assert.Equal(t, 0, s.ClickRand)
	assert.Equal(t, "f6", s.KeyBindings[ActionFire])
	assert.Equal(t, "f9", s.KeyBindings[ActionFlash])
	assert.NotContains(t, s.KeyBindings, "teleport")
	assert.Equal(t, "AK-47", s.Weapon())
}

func TestLoadCorruptFile(t *testing.T) {
	m, dir := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644))

	assert.Error(t, m.Load())
	assert.Equal(t, DefaultSettings(), m.Get())
}

func TestSaveWritesAllKeys(t *testing.T) {
	m, dir := newTestManager(t)
	m.Update(func(s *Settings) {
		s.FlashMode = true
		s.ClickDelay = 35
	})
	require.NoError(t, m.Save())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{
		"fire_enabled", "flash_mode", "auto_click_enabled", "press_key_enabled",
		"press_key_char", "click_delay", "click_rand", "key_bindings", "current_weapon",
	} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, true, raw["flash_mode"])
	assert.Equal(t, 35.0, raw["click_delay"])
	assert.Nil(t, raw["current_weapon"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is renamed away")

	reloaded, err := NewManager(dir, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, m.Get(), reloaded.Get())
}

func TestGetReturnsCopy(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Get()
	s.KeyBindings[ActionFire] = "f1"
	assert.Equal(t, "f8", m.Get().KeyBindings[ActionFire])
}

func TestChangeCallback(t *testing.T) {
	m, _ := newTestManager(t)
	var got []Settings
	m.RegisterChangeCallback(func(s Settings) { got = append(got, s) })

	m.Update(func(s *Settings) { s.AutoClickEnabled = true })
	require.Len(t, got, 1)
	assert.True(t, got[0].AutoClickEnabled)
}

func TestNormalizeKeyChar(t *testing.T) {
	assert.Equal(t, "p", NormalizeKeyChar(""))
	assert.Equal(t, "p", NormalizeKeyChar("  "))
	assert.Equal(t, "q", NormalizeKeyChar("Quit"))
	assert.Equal(t, "é", NormalizeKeyChar("É"))
	assert.Equal(t, "p", NormalizeKeyChar("\xff"))
	assert.Equal(t, "p", NormalizeKeyChar("\x00"))
}

func TestNormalizeKeyCharMatchesEngineKey(t *testing.T) {
	for _, in := range []string{"", "Quit", "É", "\xff", "\xffa", " ;"} {
		assert.Equal(t, string(input.NormalizeKey(in)), NormalizeKeyChar(in), "input %q", in)
	}
}
