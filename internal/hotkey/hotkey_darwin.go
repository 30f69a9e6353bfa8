//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>
#include <unistd.h>

// Forward declaration of the callback
CGEventRef eventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFRunLoopRef tapLoop;

static inline int64_t eventSourcePID(CGEventRef event) {
    return CGEventGetIntegerValueField(event, kCGEventSourceUnixProcessID);
}

static inline int64_t selfPID(void) {
    return (int64_t)getpid();
}

// Takes uintptr_t to avoid Go unsafe.Pointer conversion. Returns 0 when the
// tap cannot be created, otherwise blocks until stopEventTap.
static inline int runEventTap(uintptr_t refcon) {
    CGEventMask mask = kCGEventMaskForAllEvents;
    CFMachPortRef tap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionDefault,
        mask,
        eventCallback,
        (void*)refcon
    );
    if (!tap) {
        return 0;
    }

    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    tapLoop = CFRunLoopGetCurrent();
    CFRunLoopAddSource(tapLoop, source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    CFRunLoopRun();

    CGEventTapEnable(tap, false);
    CFRelease(source);
    CFRelease(tap);
    return 1;
}

static inline void stopEventTap(void) {
    if (tapLoop) {
        CFRunLoopStop(tapLoop);
    }
}
*/
import "C"
import (
	"errors"
	"runtime"
	"runtime/cgo"
	"time"
	"unsafe"

	"recoilctl/internal/state"
)

//export eventCallback
func eventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	h := cgo.Handle(uintptr(refcon))
	m := h.Value().(*Manager)

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		// Our own synthetic keys never trigger hotkeys.
		if C.eventSourcePID(event) == C.selfPID() {
			return event
		}
		isDown := eventType == C.kCGEventKeyDown
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		if keyName := macKeyCodeToName(keyCode); keyName != "" {
			if m.UpdateState(keyName, isDown) {
				return nil
			}
		}

	case C.kCGEventFlagsChanged:
		flags := C.CGEventGetFlags(event)
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))

		switch keyCode {
		case 55, 54: // Command keys
			m.UpdateState("CMD", (flags&C.kCGEventFlagMaskCommand) != 0)
		case 56, 60: // Shift keys
			m.UpdateState("SHIFT", (flags&C.kCGEventFlagMaskShift) != 0)
		case 58, 61: // Alt/Option keys
			m.UpdateState("ALT", (flags&C.kCGEventFlagMaskAlternate) != 0)
		case 59, 62: // Control keys
			m.UpdateState("CTRL", (flags&C.kCGEventFlagMaskControl) != 0)
		}

	case C.kCGEventLeftMouseDown, C.kCGEventLeftMouseUp:
		m.ButtonEvent(state.ButtonLeft, eventType == C.kCGEventLeftMouseDown)

	case C.kCGEventRightMouseDown, C.kCGEventRightMouseUp:
		m.ButtonEvent(state.ButtonRight, eventType == C.kCGEventRightMouseDown)

	case C.kCGEventOtherMouseDown, C.kCGEventOtherMouseUp:
		isDown := eventType == C.kCGEventOtherMouseDown
		switch int64(C.CGEventGetIntegerValueField(event, C.kCGMouseEventButtonNumber)) {
		case 2:
			m.UpdateState("MOUSE3", isDown)
		case 3:
			m.UpdateState("MOUSE4", isDown)
		case 4:
			m.UpdateState("MOUSE5", isDown)
		}
	}

	return event
}

func (m *Manager) startPlatform() error {
	handle := cgo.NewHandle(m)
	failed := make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer handle.Delete()

		m.log.Info().Msg("macOS event tap starting")
		if C.runEventTap(C.uintptr_t(handle)) == 0 {
			close(failed)
			return
		}
		m.log.Info().Msg("macOS event tap stopped")
	}()

	select {
	case <-failed:
		return errors.New("create CGEventTap: accessibility permission missing")
	case <-time.After(200 * time.Millisecond):
	}

	m.mu.Lock()
	m.stopPlatform = func() { C.stopEventTap() }
	m.mu.Unlock()
	return nil
}

func macKeyCodeToName(code uint16) string {
	switch code {
	case 55, 54:
		return "CMD"
	case 56, 60:
		return "SHIFT"
	case 58, 61:
		return "ALT"
	case 59, 62:
		return "CTRL"
	case 49:
		return "SPACE"
	case 36:
		return "ENTER"
	case 53:
		return "ESC"

	case 0:
		return "A"
	case 11:
		return "B"
	case 8:
		return "C"
	case 2:
		return "D"
	case 14:
		return "E"
	case 3:
		return "F"
	case 5:
		return "G"
	case 4:
		return "H"
	case 34:
		return "I"
	case 38:
		return "J"
	case 40:
		return "K"
	case 37:
		return "L"
	case 46:
		return "M"
	case 45:
		return "N"
	case 31:
		return "O"
	case 35:
		return "P"
	case 12:
		return "Q"
	case 15:
		return "R"
	case 1:
		return "S"
	case 17:
		return "T"
	case 32:
		return "U"
	case 9:
		return "V"
	case 13:
		return "W"
	case 7:
		return "X"
	case 16:
		return "Y"
	case 6:
		return "Z"

	case 29:
		return "0"
	case 18:
		return "1"
	case 19:
		return "2"
	case 20:
		return "3"
	case 21:
		return "4"
	case 23:
		return "5"
	case 22:
		return "6"
	case 26:
		return "7"
	case 28:
		return "8"
	case 25:
		return "9"

	case 122:
		return "F1"
	case 120:
		return "F2"
	case 99:
		return "F3"
	case 118:
		return "F4"
	case 96:
		return "F5"
	case 97:
		return "F6"
	case 98:
		return "F7"
	case 100:
		return "F8"
	case 101:
		return "F9"
	case 109:
		return "F10"
	case 103:
		return "F11"
	case 111:
		return "F12"

	case 24:
		return "="
	case 27:
		return "-"
	case 33:
		return "["
	case 30:
		return "]"
	case 41:
		return ";"
	case 39:
		return "'"
	case 43:
		return ","
	case 47:
		return "."
	case 44:
		return "/"
	case 42:
		return "\\"
	case 50:
		return "`"

	case 123:
		return "LEFT"
	case 124:
		return "RIGHT"
	case 125:
		return "DOWN"
	case 126:
		return "UP"
	}
	return ""
}
