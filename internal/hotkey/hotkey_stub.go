//go:build !windows && !darwin && !linux

package hotkey

func (m *Manager) startPlatform() error {
	m.log.Warn().Msg("global hooks not supported on this platform")
	return nil
}
