//go:build darwin

package input

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <stdbool.h>
#include <ApplicationServices/ApplicationServices.h>
#include <CoreGraphics/CoreGraphics.h>

static bool hasAccessibility(void) {
    return AXIsProcessTrusted();
}

static bool leftButtonDown(void) {
    return CGEventSourceButtonState(kCGEventSourceStateHIDSystemState, kCGMouseButtonLeft);
}

static CGPoint cursorLocation(void) {
    CGEventRef probe = CGEventCreate(NULL);
    CGPoint pos = CGEventGetLocation(probe);
    CFRelease(probe);
    return pos;
}

static void postMouseDelta(int dx, int dy) {
    CGPoint pos = cursorLocation();
    CGPoint next = CGPointMake(pos.x + dx, pos.y + dy);
    CGEventType type = leftButtonDown() ? kCGEventLeftMouseDragged : kCGEventMouseMoved;
    CGEventRef ev = CGEventCreateMouseEvent(NULL, type, next, kCGMouseButtonLeft);
    CGEventSetIntegerValueField(ev, kCGMouseEventDeltaX, dx);
    CGEventSetIntegerValueField(ev, kCGMouseEventDeltaY, dy);
    CGEventPost(kCGHIDEventTap, ev);
    CFRelease(ev);
}

static void postMouseButton(int button, bool pressed) {
    CGMouseButton cg;
    CGEventType type;
    switch (button) {
    case 1:
        cg = kCGMouseButtonLeft;
        type = pressed ? kCGEventLeftMouseDown : kCGEventLeftMouseUp;
        break;
    case 2:
        cg = kCGMouseButtonRight;
        type = pressed ? kCGEventRightMouseDown : kCGEventRightMouseUp;
        break;
    default:
        cg = kCGMouseButtonCenter;
        type = pressed ? kCGEventOtherMouseDown : kCGEventOtherMouseUp;
        break;
    }
    CGEventRef ev = CGEventCreateMouseEvent(NULL, type, cursorLocation(), cg);
    CGEventPost(kCGHIDEventTap, ev);
    CFRelease(ev);
}

static void postKey(CGKeyCode code, bool pressed) {
    CGEventRef ev = CGEventCreateKeyboardEvent(NULL, code, pressed);
    CGEventPost(kCGHIDEventTap, ev);
    CFRelease(ev);
}
*/
import "C"

import "fmt"

// virtual key -> macOS CGKeyCode
var macKeyCodes = map[uint16]uint16{
	0x41: 0x00, // A
	0x42: 0x0B, // B
	0x43: 0x08, // C
	0x44: 0x02, // D
	0x45: 0x0E, // E
	0x46: 0x03, // F
	0x47: 0x05, // G
	0x48: 0x04, // H
	0x49: 0x22, // I
	0x4A: 0x26, // J
	0x4B: 0x28, // K
	0x4C: 0x25, // L
	0x4D: 0x2E, // M
	0x4E: 0x2D, // N
	0x4F: 0x1F, // O
	0x50: 0x23, // P
	0x51: 0x0C, // Q
	0x52: 0x0F, // R
	0x53: 0x01, // S
	0x54: 0x11, // T
	0x55: 0x20, // U
	0x56: 0x09, // V
	0x57: 0x0D, // W
	0x58: 0x07, // X
	0x59: 0x10, // Y
	0x5A: 0x06, // Z
	0x30: 0x1D, // 0
	0x31: 0x12, // 1
	0x32: 0x13, // 2
	0x33: 0x14, // 3
	0x34: 0x15, // 4
	0x35: 0x17, // 5
	0x36: 0x16, // 6
	0x37: 0x1A, // 7
	0x38: 0x1C, // 8
	0x39: 0x19, // 9
	0x20: 0x31, // Space
	0xBA: 0x29, // ; -> ;
	0xBB: 0x18, // = -> =
	0xBC: 0x2B, // , -> ,
	0xBD: 0x1B, // - -> -
	0xBE: 0x2F, // . -> .
	0xBF: 0x2C, // / -> /
	0xC0: 0x32, // ` -> `
	0xDB: 0x21, // [ -> [
	0xDC: 0x2A, // \\ -> \\
	0xDD: 0x1E, // ] -> ]
	0xDE: 0x27, // ' -> '
}

func openInjector(k Kind) (Injector, error) {
	if k != KindController {
		return nil, fmt.Errorf("%w: %s not supported on macOS", ErrUnavailable, k)
	}
	if !bool(C.hasAccessibility()) {
		return nil, fmt.Errorf("%w: accessibility permission missing", ErrUnavailable)
	}
	return quartzInjector{}, nil
}

// LeftButtonDown probes the HID system state of the left button.
func LeftButtonDown() bool {
	return bool(C.leftButtonDown())
}

// quartzInjector posts CoreGraphics events at the HID tap.
type quartzInjector struct{}

func (quartzInjector) InjectMouseMove(dx, dy int) error {
	C.postMouseDelta(C.int(dx), C.int(dy))
	return nil
}

func (quartzInjector) InjectMouseButton(b Button, pressed bool) error {
	if b < ButtonLeft || b > ButtonMiddle {
		return fmt.Errorf("unsupported mouse button %v", b)
	}
	C.postMouseButton(C.int(b), C.bool(pressed))
	return nil
}

func (quartzInjector) InjectKey(ch rune, pressed bool) error {
	vk, ok := virtualKey(ch)
	if !ok {
		return fmt.Errorf("no virtual key for %q", ch)
	}
	code, ok := macKeyCodes[vk]
	if !ok {
		return fmt.Errorf("no macOS key code for %q", ch)
	}
	C.postKey(C.CGKeyCode(code), C.bool(pressed))
	return nil
}

func (quartzInjector) Close() error { return nil }
