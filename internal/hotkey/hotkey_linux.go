//go:build linux

package hotkey

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	evdev "github.com/holoplot/go-evdev"

	"recoilctl/internal/input"
	"recoilctl/internal/state"
)

type deviceKind int

const (
	kindKeyboard deviceKind = 1 << iota
	kindMouse
)

var keyNames = map[evdev.EvCode]string{
	evdev.KEY_A: "A", evdev.KEY_B: "B", evdev.KEY_C: "C", evdev.KEY_D: "D",
	evdev.KEY_E: "E", evdev.KEY_F: "F", evdev.KEY_G: "G", evdev.KEY_H: "H",
	evdev.KEY_I: "I", evdev.KEY_J: "J", evdev.KEY_K: "K", evdev.KEY_L: "L",
	evdev.KEY_M: "M", evdev.KEY_N: "N", evdev.KEY_O: "O", evdev.KEY_P: "P",
	evdev.KEY_Q: "Q", evdev.KEY_R: "R", evdev.KEY_S: "S", evdev.KEY_T: "T",
	evdev.KEY_U: "U", evdev.KEY_V: "V", evdev.KEY_W: "W", evdev.KEY_X: "X",
	evdev.KEY_Y: "Y", evdev.KEY_Z: "Z",

	evdev.KEY_1: "1", evdev.KEY_2: "2", evdev.KEY_3: "3", evdev.KEY_4: "4",
	evdev.KEY_5: "5", evdev.KEY_6: "6", evdev.KEY_7: "7", evdev.KEY_8: "8",
	evdev.KEY_9: "9", evdev.KEY_0: "0",

	evdev.KEY_MINUS:      "-",
	evdev.KEY_EQUAL:      "=",
	evdev.KEY_LEFTBRACE:  "[",
	evdev.KEY_RIGHTBRACE: "]",
	evdev.KEY_SEMICOLON:  ";",
	evdev.KEY_APOSTROPHE: "'",
	evdev.KEY_GRAVE:      "`",
	evdev.KEY_BACKSLASH:  "\\",
	evdev.KEY_COMMA:      ",",
	evdev.KEY_DOT:        ".",
	evdev.KEY_SLASH:      "/",

	evdev.KEY_ENTER:     "ENTER",
	evdev.KEY_TAB:       "TAB",
	evdev.KEY_BACKSPACE: "BACKSPACE",
	evdev.KEY_SPACE:     "SPACE",
	evdev.KEY_ESC:       "ESC",

	evdev.KEY_F1: "F1", evdev.KEY_F2: "F2", evdev.KEY_F3: "F3",
	evdev.KEY_F4: "F4", evdev.KEY_F5: "F5", evdev.KEY_F6: "F6",
	evdev.KEY_F7: "F7", evdev.KEY_F8: "F8", evdev.KEY_F9: "F9",
	evdev.KEY_F10: "F10", evdev.KEY_F11: "F11", evdev.KEY_F12: "F12",

	evdev.KEY_INSERT:   "INSERT",
	evdev.KEY_DELETE:   "DELETE",
	evdev.KEY_HOME:     "HOME",
	evdev.KEY_END:      "END",
	evdev.KEY_PAGEUP:   "PAGEUP",
	evdev.KEY_PAGEDOWN: "PAGEDOWN",
	evdev.KEY_UP:       "UP",
	evdev.KEY_DOWN:     "DOWN",
	evdev.KEY_LEFT:     "LEFT",
	evdev.KEY_RIGHT:    "RIGHT",

	evdev.KEY_LEFTCTRL:   "CTRL",
	evdev.KEY_RIGHTCTRL:  "CTRL",
	evdev.KEY_LEFTALT:    "ALT",
	evdev.KEY_RIGHTALT:   "ALT",
	evdev.KEY_LEFTSHIFT:  "SHIFT",
	evdev.KEY_RIGHTSHIFT: "SHIFT",
	evdev.KEY_LEFTMETA:   "CMD",
	evdev.KEY_RIGHTMETA:  "CMD",
}

func (m *Manager) startPlatform() error {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return fmt.Errorf("list input devices: %w", err)
	}

	var (
		devices []*evdev.InputDevice
		unwatch []func()
		wg      sync.WaitGroup
	)
	for _, path := range matches {
		dev, err := evdev.Open(path)
		if err != nil {
			if os.IsPermission(err) {
				m.log.Warn().Str("path", path).Msg("permission denied opening input device; add the user to the input group")
			}
			continue
		}

		name, _ := dev.Name()
		kind := classifyDevice(dev)
		if kind == 0 || name == input.VirtualDeviceName {
			dev.Close()
			continue
		}

		m.log.Info().
			Str("path", path).
			Str("name", name).
			Bool("keyboard", kind&kindKeyboard != 0).
			Bool("mouse", kind&kindMouse != 0).
			Msg("observing input device")
		devices = append(devices, dev)
		if kind&kindMouse != 0 {
			unwatch = append(unwatch, input.WatchMouse(dev))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.readLoop(dev, kind)
		}()
	}

	if len(devices) == 0 {
		return fmt.Errorf("no readable keyboard or mouse under /dev/input")
	}
	m.log.Warn().Msg("key suppression is not available with evdev; remapped keys also reach the focused window")

	m.mu.Lock()
	m.stopPlatform = func() {
		for _, fn := range unwatch {
			fn()
		}
		for _, dev := range devices {
			dev.Close()
		}
		wg.Wait()
	}
	m.mu.Unlock()
	return nil
}

// classifyDevice reports whether dev looks like a keyboard, a mouse, or both.
func classifyDevice(dev *evdev.InputDevice) deviceKind {
	types := dev.CapableTypes()
	if !slices.Contains(types, evdev.EV_KEY) {
		return 0
	}
	codes := dev.CapableEvents(evdev.EV_KEY)

	var kind deviceKind
	if slices.Contains(codes, evdev.KEY_A) {
		kind |= kindKeyboard
	}
	if slices.Contains(codes, evdev.BTN_LEFT) && slices.Contains(types, evdev.EV_REL) {
		kind |= kindMouse
	}
	return kind
}

// readLoop runs until the device is closed.
func (m *Manager) readLoop(dev *evdev.InputDevice, kind deviceKind) {
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		// 0 release, 1 press, 2 autorepeat
		isDown := ev.Value != 0

		if kind&kindMouse != 0 {
			switch ev.Code {
			case evdev.BTN_LEFT:
				m.ButtonEvent(state.ButtonLeft, isDown)
				continue
			case evdev.BTN_RIGHT:
				m.ButtonEvent(state.ButtonRight, isDown)
				continue
			case evdev.BTN_MIDDLE:
				m.UpdateState("MOUSE3", isDown)
				continue
			case evdev.BTN_SIDE:
				m.UpdateState("MOUSE4", isDown)
				continue
			case evdev.BTN_EXTRA:
				m.UpdateState("MOUSE5", isDown)
				continue
			}
		}
		if name, ok := keyNames[ev.Code]; ok {
			m.UpdateState(name, isDown)
		}
	}
}
