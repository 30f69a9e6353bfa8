//go:build !windows && !linux && !darwin

package input

import "fmt"

func openInjector(k Kind) (Injector, error) {
	return nil, fmt.Errorf("%w: %s not supported on this platform", ErrUnavailable, k)
}

// LeftButtonDown always reports false where no probe exists.
func LeftButtonDown() bool { return false }
