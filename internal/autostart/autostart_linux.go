package autostart

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// desktopQuote quotes an Exec argument per the desktop entry rules.
func desktopQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\><~|&;$*?#()`%") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`, `%`, `%%`)
	return `"` + r.Replace(s) + `"`
}

var desktopEntry = fileEntry{
	path: func() (string, error) {
		dir := os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config")
		}
		return filepath.Join(dir, "autostart", AppName+".desktop"), nil
	},
	tmpl: template.Must(template.New("desktop").Funcs(template.FuncMap{"quote": desktopQuote}).Parse(`[Desktop Entry]
Type=Application
Name={{.Name}}
Comment=Recoil compensation service
Exec={{quote .Exec}}{{range .Args}} {{quote .}}{{end}}
Terminal=false
X-GNOME-Autostart-enabled=true
`)),
}

func enable(execPath string, args []string) error { return desktopEntry.enable(execPath, args) }
func disable() error                             { return desktopEntry.disable() }
func isEnabled() bool                            { return desktopEntry.isEnabled() }
