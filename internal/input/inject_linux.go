//go:build linux

package input

import (
	"fmt"
	"slices"
	"sync"
	"unicode"

	evdev "github.com/holoplot/go-evdev"
)

// VirtualDeviceName is the name of the uinput device. Observers skip it.
const VirtualDeviceName = "recoilctl-virtual"

var runeCodes = map[rune]evdev.EvCode{
	'a': evdev.KEY_A, 'b': evdev.KEY_B, 'c': evdev.KEY_C, 'd': evdev.KEY_D,
	'e': evdev.KEY_E, 'f': evdev.KEY_F, 'g': evdev.KEY_G, 'h': evdev.KEY_H,
	'i': evdev.KEY_I, 'j': evdev.KEY_J, 'k': evdev.KEY_K, 'l': evdev.KEY_L,
	'm': evdev.KEY_M, 'n': evdev.KEY_N, 'o': evdev.KEY_O, 'p': evdev.KEY_P,
	'q': evdev.KEY_Q, 'r': evdev.KEY_R, 's': evdev.KEY_S, 't': evdev.KEY_T,
	'u': evdev.KEY_U, 'v': evdev.KEY_V, 'w': evdev.KEY_W, 'x': evdev.KEY_X,
	'y': evdev.KEY_Y, 'z': evdev.KEY_Z,

	'1': evdev.KEY_1, '2': evdev.KEY_2, '3': evdev.KEY_3, '4': evdev.KEY_4,
	'5': evdev.KEY_5, '6': evdev.KEY_6, '7': evdev.KEY_7, '8': evdev.KEY_8,
	'9': evdev.KEY_9, '0': evdev.KEY_0,

	'-':  evdev.KEY_MINUS,
	'=':  evdev.KEY_EQUAL,
	'[':  evdev.KEY_LEFTBRACE,
	']':  evdev.KEY_RIGHTBRACE,
	';':  evdev.KEY_SEMICOLON,
	'\'': evdev.KEY_APOSTROPHE,
	'`':  evdev.KEY_GRAVE,
	'\\': evdev.KEY_BACKSLASH,
	',':  evdev.KEY_COMMA,
	'.':  evdev.KEY_DOT,
	'/':  evdev.KEY_SLASH,
	' ':  evdev.KEY_SPACE,
}

func openInjector(k Kind) (Injector, error) {
	if k != KindLowLevel {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, k)
	}

	keys := []evdev.EvCode{evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE}
	for _, code := range runeCodes {
		keys = append(keys, code)
	}
	capabilities := map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y},
	}
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}

	dev, err := evdev.CreateDevice(VirtualDeviceName, id, capabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: create uinput device: %v", ErrUnavailable, err)
	}
	return &uinputInjector{dev: dev}, nil
}

// keyStater is the part of *evdev.InputDevice the left-button probe needs.
type keyStater interface {
	State(t evdev.EvType) (evdev.StateMap, error)
}

var probed struct {
	mu   sync.Mutex
	devs []keyStater
}

// WatchMouse adds a physical mouse to the LeftButtonDown probe. The returned
// func removes it and must be called before the device is closed.
func WatchMouse(dev *evdev.InputDevice) (unwatch func()) {
	return watchStater(dev)
}

func watchStater(dev keyStater) func() {
	probed.mu.Lock()
	probed.devs = append(probed.devs, dev)
	probed.mu.Unlock()
	return func() {
		probed.mu.Lock()
		defer probed.mu.Unlock()
		if i := slices.Index(probed.devs, dev); i >= 0 {
			probed.devs = slices.Delete(probed.devs, i, i+1)
		}
	}
}

// LeftButtonDown queries the kernel key state of every watched mouse. It is
// false until the hotkey observer has registered at least one.
func LeftButtonDown() bool {
	probed.mu.Lock()
	defer probed.mu.Unlock()
	for _, dev := range probed.devs {
		st, err := dev.State(evdev.EV_KEY)
		if err != nil {
			continue
		}
		if st[evdev.BTN_LEFT] {
			return true
		}
	}
	return false
}

type uinputInjector struct {
	dev *evdev.InputDevice
}

func (u *uinputInjector) write(events ...evdev.InputEvent) error {
	events = append(events, evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.EvCode(evdev.SYN_REPORT)})
	for i := range events {
		if err := u.dev.WriteOne(&events[i]); err != nil {
			return fmt.Errorf("write uinput event: %w", err)
		}
	}
	return nil
}

func (u *uinputInjector) InjectMouseMove(dx, dy int) error {
	var events []evdev.InputEvent
	if dx != 0 {
		events = append(events, evdev.InputEvent{Type: evdev.EV_REL, Code: evdev.EvCode(evdev.REL_X), Value: int32(dx)})
	}
	if dy != 0 {
		events = append(events, evdev.InputEvent{Type: evdev.EV_REL, Code: evdev.EvCode(evdev.REL_Y), Value: int32(dy)})
	}
	if len(events) == 0 {
		return nil
	}
	return u.write(events...)
}

func (u *uinputInjector) InjectMouseButton(b Button, pressed bool) error {
	var code evdev.EvCode
	switch b {
	case ButtonLeft:
		code = evdev.BTN_LEFT
	case ButtonRight:
		code = evdev.BTN_RIGHT
	case ButtonMiddle:
		code = evdev.BTN_MIDDLE
	default:
		return fmt.Errorf("unsupported mouse button %v", b)
	}
	return u.write(evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: boolValue(pressed)})
}

func (u *uinputInjector) InjectKey(ch rune, pressed bool) error {
	code, ok := runeCodes[unicode.ToLower(ch)]
	if !ok {
		return fmt.Errorf("no evdev key for %q", ch)
	}
	return u.write(evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: boolValue(pressed)})
}

func (u *uinputInjector) Close() error {
	if u.dev == nil {
		return nil
	}
	return u.dev.Close()
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
