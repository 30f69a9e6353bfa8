// Package input synthesizes mouse and keyboard events through the best
// available platform mechanism.
package input

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned when a platform mechanism cannot be opened.
var ErrUnavailable = errors.New("input backend unavailable")

// Button identifies a mouse button to synthesize.
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonRight
	ButtonMiddle
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	}
	return fmt.Sprintf("button(%d)", int(b))
}

// Kind selects a backend family.
type Kind string

const (
	KindAuto       Kind = "auto"
	KindLowLevel   Kind = "lowlevel"
	KindController Kind = "controller"
	KindNone       Kind = "none"
)

// ParseKind accepts the flag spellings of Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindAuto:
		return KindAuto, nil
	case KindLowLevel, KindController, KindNone:
		return k, nil
	}
	return "", fmt.Errorf("unknown backend %q (want auto, lowlevel, controller or none)", s)
}

// Backend is the fire-and-forget surface used by the control loops.
// Implementations log failures instead of returning them.
type Backend interface {
	MoveMouseRelative(dx, dy int)
	KeyDown(ch rune)
	KeyUp(ch rune)
	KeyTap(ch rune)
	MouseButton(b Button, pressed bool)
}

// Injector is implemented by each platform mechanism.
type Injector interface {
	InjectMouseMove(dx, dy int) error
	InjectMouseButton(b Button, pressed bool) error
	InjectKey(ch rune, pressed bool) error
	Close() error
}
