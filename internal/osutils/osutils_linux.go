//go:build linux

// Package osutils reports OS-level preconditions for injecting input.
package osutils

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// UinputPath is the kernel's virtual device node.
var UinputPath = "/dev/uinput"

// IsAdmin reports whether the process runs as root
func IsAdmin() bool {
	return unix.Geteuid() == 0
}

// CheckPrivileges reports whether the virtual device and the physical
// event devices are accessible.
func CheckPrivileges() (ok bool, hint string) {
	if IsAdmin() {
		return true, ""
	}
	if err := unix.Access(UinputPath, unix.W_OK); err != nil {
		return false, "no write access to " + UinputPath + ": add a udev rule or run as root"
	}
	events, _ := filepath.Glob("/dev/input/event*")
	for _, ev := range events {
		if unix.Access(ev, unix.R_OK) == nil {
			return true, ""
		}
	}
	return false, "no readable /dev/input/event* device: add the user to the input group"
}
