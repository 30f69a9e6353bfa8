//go:build windows

package input

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procSendInput        = user32.NewProc("SendInput")
	procVkKeyScanW       = user32.NewProc("VkKeyScanW")
	procMapVirtualKeyW   = user32.NewProc("MapVirtualKeyW")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
	procKeybdEvent       = user32.NewProc("keybd_event")
	procMouseEvent       = user32.NewProc("mouse_event")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseeventfMove       = 0x0001
	mouseeventfLeftDown   = 0x0002
	mouseeventfLeftUp     = 0x0004
	mouseeventfRightDown  = 0x0008
	mouseeventfRightUp    = 0x0010
	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040

	keyeventfKeyUp    = 0x0002
	keyeventfScanCode = 0x0008

	mapvkVkToVsc = 0
	vkLButton    = 0x01
)

type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type keybdInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// INPUT is a union sized by its mouse member; the keyboard variant pads up to it.
type mouseEvent struct {
	Type uint32
	Mi   mouseInput
}

type keyboardEvent struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte
}

func openInjector(k Kind) (Injector, error) {
	switch k {
	case KindLowLevel:
		if err := procSendInput.Find(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return sendInputInjector{}, nil
	case KindController:
		if err := procKeybdEvent.Find(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return legacyInjector{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, k)
}

// LeftButtonDown probes the physical left button.
func LeftButtonDown() bool {
	r, _, _ := procGetAsyncKeyState.Call(vkLButton)
	return r&0x8000 != 0
}

func buttonFlags(b Button, pressed bool) (uint32, error) {
	switch b {
	case ButtonLeft:
		if pressed {
			return mouseeventfLeftDown, nil
		}
		return mouseeventfLeftUp, nil
	case ButtonRight:
		if pressed {
			return mouseeventfRightDown, nil
		}
		return mouseeventfRightUp, nil
	case ButtonMiddle:
		if pressed {
			return mouseeventfMiddleDown, nil
		}
		return mouseeventfMiddleUp, nil
	}
	return 0, fmt.Errorf("unsupported mouse button %v", b)
}

func keyCodes(ch rune) (vk, scan uint16, err error) {
	r, _, _ := procVkKeyScanW.Call(uintptr(ch))
	if int16(r) == -1 {
		v, ok := virtualKey(ch)
		if !ok {
			return 0, 0, fmt.Errorf("no virtual key for %q", ch)
		}
		vk = v
	} else {
		vk = uint16(r) & 0xFF
	}
	s, _, _ := procMapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)
	if s == 0 {
		return vk, 0, fmt.Errorf("no scan code for %q", ch)
	}
	return vk, uint16(s), nil
}

// sendInputInjector emits hardware scan codes through SendInput.
type sendInputInjector struct{}

func sendInput(ptr unsafe.Pointer, size uintptr) error {
	n, _, err := procSendInput.Call(1, uintptr(ptr), size)
	if n != 1 {
		return fmt.Errorf("SendInput: %w", err)
	}
	return nil
}

func (sendInputInjector) InjectMouseMove(dx, dy int) error {
	ev := mouseEvent{
		Type: inputMouse,
		Mi:   mouseInput{Dx: int32(dx), Dy: int32(dy), Flags: mouseeventfMove},
	}
	return sendInput(unsafe.Pointer(&ev), unsafe.Sizeof(ev))
}

func (sendInputInjector) InjectMouseButton(b Button, pressed bool) error {
	flags, err := buttonFlags(b, pressed)
	if err != nil {
		return err
	}
	ev := mouseEvent{Type: inputMouse, Mi: mouseInput{Flags: flags}}
	return sendInput(unsafe.Pointer(&ev), unsafe.Sizeof(ev))
}

func (sendInputInjector) InjectKey(ch rune, pressed bool) error {
	_, scan, err := keyCodes(ch)
	if err != nil {
		return err
	}
	flags := uint32(keyeventfScanCode)
	if !pressed {
		flags |= keyeventfKeyUp
	}
	ev := keyboardEvent{Type: inputKeyboard, Ki: keybdInput{Scan: scan, Flags: flags}}
	return sendInput(unsafe.Pointer(&ev), unsafe.Sizeof(ev))
}

func (sendInputInjector) Close() error { return nil }

// legacyInjector uses keybd_event and mouse_event with virtual keys.
type legacyInjector struct{}

func (legacyInjector) InjectMouseMove(dx, dy int) error {
	procMouseEvent.Call(mouseeventfMove, uintptr(uint32(int32(dx))), uintptr(uint32(int32(dy))), 0, 0)
	return nil
}

func (legacyInjector) InjectMouseButton(b Button, pressed bool) error {
	flags, err := buttonFlags(b, pressed)
	if err != nil {
		return err
	}
	procMouseEvent.Call(uintptr(flags), 0, 0, 0, 0)
	return nil
}

func (legacyInjector) InjectKey(ch rune, pressed bool) error {
	vk, scan, err := keyCodes(ch)
	if vk == 0 {
		return err
	}
	var flags uintptr
	if !pressed {
		flags = keyeventfKeyUp
	}
	procKeybdEvent.Call(uintptr(vk), uintptr(scan), flags, 0)
	return nil
}

func (legacyInjector) Close() error { return nil }
