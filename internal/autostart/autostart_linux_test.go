package autostart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesktopEntry(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	assert.False(t, IsEnabled())
	require.NoError(t, enable("/opt/recoil ctl/recoilctl", []string{"run", "--no-tray"}))
	assert.True(t, IsEnabled())

	data, err := os.ReadFile(filepath.Join(home, "autostart", "recoilctl.desktop"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `Exec="/opt/recoil ctl/recoilctl" run --no-tray`+"\n")
	assert.Contains(t, string(data), "Name=recoilctl\n")

	require.NoError(t, Disable())
	assert.False(t, IsEnabled())
	require.NoError(t, Disable())
}

func TestDesktopQuote(t *testing.T) {
	assert.Equal(t, "plain", desktopQuote("plain"))
	assert.Equal(t, `""`, desktopQuote(""))
	assert.Equal(t, `"a b"`, desktopQuote("a b"))
	assert.Equal(t, `"100%%"`, desktopQuote("100%"))
	assert.Equal(t, `"say \"hi\""`, desktopQuote(`say "hi"`))
}
