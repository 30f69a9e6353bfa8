// Package hotkey watches global keyboard and mouse input. It dispatches
// bound hotkeys, reports physical mouse buttons to an observer and can
// replace a key with another action.
package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"recoilctl/internal/state"
)

// Manager handles global hotkey registration and matching.
type Manager struct {
	mu           sync.RWMutex
	hotkeys      map[string]*registeredHotkey
	currentState map[string]bool // keys/buttons currently pressed
	remaps       map[string]func()
	onButton     func(state.Button, bool)
	log          zerolog.Logger
	dispatch     func(func())

	stopPlatform func()
}

type registeredHotkey struct {
	parts    []string // e.g. ["ALT", "LEFT"]
	original string
	callback func()
}

var aliases = map[string]string{
	"CONTROL": "CTRL",
	"OPTION":  "ALT",
	"WIN":     "CMD",
	"WINDOWS": "CMD",
	"SUPER":   "CMD",
	"ESCAPE":  "ESC",
	"RETURN":  "ENTER",
	"PLUS":    "=",
}

// NewManager creates a manager whose callbacks run on their own goroutines.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		hotkeys:      make(map[string]*registeredHotkey),
		currentState: make(map[string]bool),
		remaps:       make(map[string]func()),
		log:          log,
		dispatch:     func(fn func()) { go fn() },
	}
}

// ParseCombo splits "alt+left" into normalized key names.
func ParseCombo(combo string) ([]string, error) {
	combo = strings.TrimSpace(combo)
	if combo == "" {
		return nil, fmt.Errorf("empty hotkey")
	}
	if combo == "+" {
		return []string{"="}, nil
	}
	parts := strings.Split(strings.ToUpper(combo), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("malformed hotkey %q", combo)
		}
		if alias, ok := aliases[p]; ok {
			p = alias
		}
		parts[i] = p
	}
	return parts, nil
}

// Register binds combo to callback under id, replacing any previous binding
// for id. A blank combo removes the binding.
func (m *Manager) Register(id, combo string, callback func()) error {
	if strings.TrimSpace(combo) == "" {
		m.Unregister(id)
		return nil
	}
	parts, err := ParseCombo(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys[id] = &registeredHotkey{
		parts:    parts,
		original: strings.ToLower(strings.TrimSpace(combo)),
		callback: callback,
	}
	return nil
}

func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hotkeys, id)
}

// Clear removes all registered hotkeys.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = make(map[string]*registeredHotkey)
}

// Bindings returns id -> combo for every registered hotkey.
func (m *Manager) Bindings() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.hotkeys))
	for id, hk := range m.hotkeys {
		out[id] = hk.original
	}
	return out
}

// SetButtonObserver receives left/right button transitions from the hooks.
func (m *Manager) SetButtonObserver(fn func(state.Button, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onButton = fn
}

// SetRemap swallows key where the platform allows it and runs fn on each
// fresh key-down instead. A nil fn removes the remap.
func (m *Manager) SetRemap(key string, fn func()) {
	key = strings.ToUpper(strings.TrimSpace(key))
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		delete(m.remaps, key)
		return
	}
	m.remaps[key] = fn
}

// Remapped reports the keys that currently have a remap.
func (m *Manager) Remapped() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.remaps))
	for k := range m.remaps {
		keys = append(keys, k)
	}
	return keys
}

// UpdateState records a key transition, fires matching hotkeys on a fresh
// key-down and reports whether the event should be swallowed.
func (m *Manager) UpdateState(key string, isDown bool) bool {
	key = strings.ToUpper(key)

	m.mu.Lock()
	repeat := isDown && m.currentState[key]
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	remap := m.remaps[key]
	var fire []*registeredHotkey
	if isDown && !repeat {
		fire = m.matchLocked(key)
	}
	m.mu.Unlock()

	for _, hk := range fire {
		m.log.Debug().Str("hotkey", hk.original).Msg("hotkey triggered")
		m.dispatch(hk.callback)
	}
	if remap != nil {
		if isDown && !repeat {
			m.dispatch(remap)
		}
		return true
	}
	return false
}

// matchLocked returns hotkeys that include key and whose parts are all down.
func (m *Manager) matchLocked(key string) []*registeredHotkey {
	var out []*registeredHotkey
	for _, hk := range m.hotkeys {
		includes := false
		match := true
		for _, part := range hk.parts {
			if part == key {
				includes = true
			}
			if !m.currentState[part] {
				match = false
				break
			}
		}
		if match && includes {
			out = append(out, hk)
		}
	}
	return out
}

// ButtonEvent reports a physical mouse button transition.
func (m *Manager) ButtonEvent(b state.Button, isDown bool) {
	m.mu.RLock()
	observer := m.onButton
	m.mu.RUnlock()
	if observer != nil {
		observer(b, isDown)
	}

	switch b {
	case state.ButtonLeft:
		m.UpdateState("MOUSE1", isDown)
	case state.ButtonRight:
		m.UpdateState("MOUSE2", isDown)
	}
}

// Start installs the platform hooks.
func (m *Manager) Start() error {
	return m.startPlatform()
}

// Stop removes the platform hooks.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop := m.stopPlatform
	m.stopPlatform = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}
