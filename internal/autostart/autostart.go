// Package autostart registers recoilctl to start on login.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// AppName names the login item.
const AppName = "recoilctl"

var ErrUnsupported = errors.New("autostart is not supported on this platform")

// Enable registers the running executable to start on login with args.
func Enable(args ...string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return enable(execPath, args)
}

// Disable removes the login item. Removing a missing item is not an error.
func Disable() error {
	return disable()
}

// IsEnabled reports whether a login item is registered.
func IsEnabled() bool {
	return isEnabled()
}

// fileEntry is a login item backed by one rendered file (launchd plist,
// XDG desktop entry).
type fileEntry struct {
	path func() (string, error)
	tmpl *template.Template
}

type entryData struct {
	Name string
	Exec string
	Args []string
}

func (f fileEntry) enable(execPath string, args []string) error {
	path, err := f.path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var b strings.Builder
	if err := f.tmpl.Execute(&b, entryData{Name: AppName, Exec: execPath, Args: args}); err != nil {
		return fmt.Errorf("render login item: %w", err)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func (f fileEntry) disable() error {
	path, err := f.path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f fileEntry) isEnabled() bool {
	path, err := f.path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
