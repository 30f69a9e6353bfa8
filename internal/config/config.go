// Package config persists the user-facing settings snapshot.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"recoilctl/internal/input"
)

// FileName is the settings file inside the config directory.
const FileName = "user_settings.json"

// Hotkey actions.
const (
	ActionFire      = "fire"
	ActionFlash     = "flash"
	ActionAutoClick = "auto_click"
	ActionPressKey  = "press_key"
)

// Actions lists the bindable actions in display order.
var Actions = []string{ActionFire, ActionPressKey, ActionFlash, ActionAutoClick}

// Settings is the persisted snapshot.
type Settings struct {
	FireEnabled      bool              `json:"fire_enabled"`
	FlashMode        bool              `json:"flash_mode"`
	AutoClickEnabled bool              `json:"auto_click_enabled"`
	PressKeyEnabled  bool              `json:"press_key_enabled"`
	PressKeyChar     string            `json:"press_key_char"`
	ClickDelay       int               `json:"click_delay"`
	ClickRand        int               `json:"click_rand"`
	KeyBindings      map[string]string `json:"key_bindings"`
	CurrentWeapon    *string           `json:"current_weapon"`
}

// DefaultSettings returns the first-run snapshot.
func DefaultSettings() Settings {
	return Settings{
		FireEnabled:      true,
		FlashMode:        false,
		AutoClickEnabled: false,
		PressKeyEnabled:  true,
		PressKeyChar:     "p",
		ClickDelay:       20,
		ClickRand:        20,
		KeyBindings: map[string]string{
			ActionFire:      "f8",
			ActionFlash:     "f9",
			ActionAutoClick: "=",
			ActionPressKey:  "f10",
		},
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.KeyBindings = maps.Clone(s.KeyBindings)
	if s.CurrentWeapon != nil {
		name := *s.CurrentWeapon
		s.CurrentWeapon = &name
	}
	return s
}

// Weapon returns the selected profile name, or "".
func (s Settings) Weapon() string {
	if s.CurrentWeapon == nil {
		return ""
	}
	return *s.CurrentWeapon
}

// IsAction reports whether name is a bindable action.
func IsAction(name string) bool {
	for _, a := range Actions {
		if a == name {
			return true
		}
	}
	return false
}

// NormalizeKeyChar is input.NormalizeKey in string form, so the persisted
// key always matches the one the engine holds.
func NormalizeKeyChar(s string) string {
	return string(input.NormalizeKey(s))
}

// Manager guards the snapshot and its file.
type Manager struct {
	mu        sync.Mutex
	path      string
	settings  Settings
	log       zerolog.Logger
	onChanged func(Settings)
}

// NewManager returns a Manager for dir holding the defaults. An empty dir
// selects DefaultDir.
func NewManager(dir string, log zerolog.Logger) (*Manager, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	return &Manager{
		path:     filepath.Join(dir, FileName),
		settings: DefaultSettings(),
		log:      log,
	}, nil
}

// DefaultDir returns the per-user config directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "recoilctl"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "recoilctl"), nil
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "recoilctl"), nil
		}
		return filepath.Join(home, ".config", "recoilctl"), nil
	}
}

func (m *Manager) Path() string { return m.path }

// Load reads the file over the defaults. Absent or undecodable keys keep
// their defaults; a missing file is not an error.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}

	m.mu.Lock()
	s := m.settings.Clone()
	m.decodeInto(raw, &s)
	m.settings = s
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb(s.Clone())
	}
	return nil
}

func (m *Manager) decodeInto(raw map[string]json.RawMessage, s *Settings) {
	field := func(key string, dst any) {
		v, ok := raw[key]
		if !ok {
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			m.log.Warn().Err(err).Str("key", key).Msg("ignoring invalid setting")
		}
	}

	field("fire_enabled", &s.FireEnabled)
	field("flash_mode", &s.FlashMode)
	field("auto_click_enabled", &s.AutoClickEnabled)
	field("press_key_enabled", &s.PressKeyEnabled)
	field("click_delay", &s.ClickDelay)
	field("click_rand", &s.ClickRand)

	var char string
	field("press_key_char", &char)
	if strings.TrimSpace(char) != "" {
		s.PressKeyChar = NormalizeKeyChar(char)
	}

	var bindings map[string]string
	field("key_bindings", &bindings)
	for action, key := range bindings {
		if IsAction(action) {
			s.KeyBindings[action] = strings.ToLower(strings.TrimSpace(key))
		}
	}

	var weapon *string
	field("current_weapon", &weapon)
	if weapon != nil && *weapon != "" {
		s.CurrentWeapon = weapon
	}

	s.ClickDelay = max(1, s.ClickDelay)
	s.ClickRand = max(0, s.ClickRand)
}

// Save writes the snapshot through a temp file and rename.
func (m *Manager) Save() error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m.settings, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	m.log.Debug().Str("path", m.path).Int("bytes", len(data)).Msg("settings saved")
	return nil
}

// Get returns a copy of the snapshot.
func (m *Manager) Get() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Clone()
}

// Update applies fn to the snapshot and returns the result.
func (m *Manager) Update(fn func(*Settings)) Settings {
	m.mu.Lock()
	s := m.settings.Clone()
	fn(&s)
	m.settings = s
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb(s.Clone())
	}
	return s.Clone()
}

// RegisterChangeCallback registers a function called after Load and Update.
func (m *Manager) RegisterChangeCallback(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
