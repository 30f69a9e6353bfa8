//go:build !windows && !linux

// Package osutils reports OS-level preconditions for injecting input.
package osutils

import "os"

// IsAdmin reports whether the process runs as root
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// CheckPrivileges has nothing to check here; macOS accessibility trust is
// verified by the input backend itself.
func CheckPrivileges() (ok bool, hint string) {
	return true, ""
}
