package autostart

import (
	"os"
	"path/filepath"
	"text/template"
)

const launchAgentLabel = "com.recoilctl.agent"

var launchAgent = fileEntry{
	path: func() (string, error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents", launchAgentLabel+".plist"), nil
	},
	tmpl: template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>` + launchAgentLabel + `</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`)),
}

func enable(execPath string, args []string) error { return launchAgent.enable(execPath, args) }
func disable() error                             { return launchAgent.disable() }
func isEnabled() bool                            { return launchAgent.isEnabled() }
