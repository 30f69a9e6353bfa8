//go:build windows

// Package osutils reports OS-level preconditions for injecting input.
package osutils

import (
	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process runs elevated
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()
	return token.IsElevated()
}

// CheckPrivileges reports whether injected input reaches every window.
// Windows drops input sent to elevated windows from an unelevated process.
func CheckPrivileges() (ok bool, hint string) {
	if IsAdmin() {
		return true, ""
	}
	return false, "not running as administrator: games running elevated will ignore injected input"
}
