//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"recoilctl/internal/state"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procSetHook          = user32.NewProc("SetWindowsHookExW")
	procCallNextHook     = user32.NewProc("CallNextHookEx")
	procUnhook           = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage       = user32.NewProc("GetMessageW")
	procPostThreadMsg    = user32.NewProc("PostThreadMessageW")
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandleW = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit       = 0x0012
	wmKeyDown    = 0x0100
	wmSysKeyDown = 0x0104

	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C

	// flags set on events produced by SendInput and friends
	llkhfInjected = 0x10
	llmhfInjected = 0x01
)

type kbdHookInfo struct {
	VkCode    uint32
	ScanCode  uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type mouseHookInfo struct {
	X, Y      int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type winMsg struct {
	Hwnd    syscall.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	X, Y    int32
}

// Low-level hook callbacks carry no user pointer, so the active hook set is
// package state. Only one Manager can hook at a time.
var active *hookSet

type hookSet struct {
	m        *Manager
	keyboard uintptr
	mouse    uintptr
}

func (m *Manager) startPlatform() error {
	started := make(chan error, 1)

	// Hooks belong to the thread that installed them; it must pump messages.
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		hs := &hookSet{m: m}
		if err := hs.install(); err != nil {
			started <- err
			return
		}
		active = hs

		threadID := windows.GetCurrentThreadId()
		m.mu.Lock()
		m.stopPlatform = func() {
			procPostThreadMsg.Call(uintptr(threadID), wmQuit, 0, 0)
		}
		m.mu.Unlock()
		started <- nil
		m.log.Info().Msg("low-level keyboard and mouse hooks installed")

		var msg winMsg
		for {
			// Hook callbacks run inside GetMessage; nothing needs dispatching.
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}

		hs.uninstall()
		active = nil
		m.log.Info().Msg("low-level hooks removed")
	}()

	return <-started
}

func (hs *hookSet) install() error {
	mod, _, _ := procGetModuleHandleW.Call(0)

	h, _, err := procSetHook.Call(whKeyboardLL, syscall.NewCallback(keyboardProc), mod, 0)
	if h == 0 {
		return fmt.Errorf("set keyboard hook: %w", err)
	}
	hs.keyboard = h

	h, _, err = procSetHook.Call(whMouseLL, syscall.NewCallback(mouseProc), mod, 0)
	if h == 0 {
		hs.uninstall()
		return fmt.Errorf("set mouse hook: %w", err)
	}
	hs.mouse = h
	return nil
}

func (hs *hookSet) uninstall() {
	for _, h := range []*uintptr{&hs.keyboard, &hs.mouse} {
		if *h != 0 {
			procUnhook.Call(*h)
			*h = 0
		}
	}
}

func callNext(nCode int, wParam, lParam uintptr) uintptr {
	ret, _, _ := procCallNextHook.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func keyboardProc(nCode int, wParam, lParam uintptr) uintptr {
	hs := active
	if nCode != 0 || hs == nil {
		return callNext(nCode, wParam, lParam)
	}
	info := (*kbdHookInfo)(unsafe.Pointer(lParam))
	if info.Flags&llkhfInjected != 0 {
		return callNext(nCode, wParam, lParam)
	}
	name, ok := vkNames[info.VkCode]
	if !ok {
		return callNext(nCode, wParam, lParam)
	}
	down := wParam == wmKeyDown || wParam == wmSysKeyDown
	if hs.m.UpdateState(name, down) {
		// swallowed
		return 1
	}
	return callNext(nCode, wParam, lParam)
}

func mouseProc(nCode int, wParam, lParam uintptr) uintptr {
	hs := active
	if nCode != 0 || hs == nil {
		return callNext(nCode, wParam, lParam)
	}
	info := (*mouseHookInfo)(unsafe.Pointer(lParam))
	if info.Flags&llmhfInjected != 0 {
		return callNext(nCode, wParam, lParam)
	}

	switch wParam {
	case wmLButtonDown, wmLButtonUp:
		hs.m.ButtonEvent(state.ButtonLeft, wParam == wmLButtonDown)
	case wmRButtonDown, wmRButtonUp:
		hs.m.ButtonEvent(state.ButtonRight, wParam == wmRButtonDown)
	case wmMButtonDown, wmMButtonUp:
		hs.m.UpdateState("MOUSE3", wParam == wmMButtonDown)
	case wmXButtonDown, wmXButtonUp:
		name := "MOUSE5"
		if info.MouseData>>16 == 1 {
			name = "MOUSE4"
		}
		hs.m.UpdateState(name, wParam == wmXButtonDown)
	}
	return callNext(nCode, wParam, lParam)
}

// vkNames maps virtual-key codes to hotkey names. Left and right variants of
// a modifier share one name.
var vkNames = func() map[uint32]string {
	names := map[uint32]string{
		0x10: "SHIFT", 0xA0: "SHIFT", 0xA1: "SHIFT",
		0x11: "CTRL", 0xA2: "CTRL", 0xA3: "CTRL",
		0x12: "ALT", 0xA4: "ALT", 0xA5: "ALT",
		0x5B: "CMD", 0x5C: "CMD",

		0x08: "BACKSPACE", 0x09: "TAB", 0x0D: "ENTER", 0x13: "PAUSE",
		0x14: "CAPSLOCK", 0x1B: "ESC", 0x20: "SPACE", 0x91: "SCROLLLOCK",
		0x21: "PAGEUP", 0x22: "PAGEDOWN", 0x23: "END", 0x24: "HOME",
		0x25: "LEFT", 0x26: "UP", 0x27: "RIGHT", 0x28: "DOWN",
		0x2C: "PRINTSCREEN", 0x2D: "INSERT", 0x2E: "DELETE",

		// OEM keys on a US layout
		0xBA: ";", 0xBB: "=", 0xBC: ",", 0xBD: "-", 0xBE: ".", 0xBF: "/",
		0xC0: "`", 0xDB: "[", 0xDC: "\\", 0xDD: "]", 0xDE: "'",
	}
	for vk := uint32('A'); vk <= 'Z'; vk++ {
		names[vk] = string(rune(vk))
	}
	for vk := uint32('0'); vk <= '9'; vk++ {
		names[vk] = string(rune(vk))
	}
	for i := uint32(1); i <= 24; i++ {
		names[0x6F+i] = fmt.Sprintf("F%d", i)
	}
	return names
}()
