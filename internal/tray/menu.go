package tray

import (
	"fmt"

	"github.com/rs/zerolog"

	"recoilctl/internal/config"
	"recoilctl/internal/profile"
	"recoilctl/internal/protocol"
)

// Controller is what the menu drives.
type Controller interface {
	Status() protocol.Status
	Toggle(action string) error
	StepProfile(delta int) *profile.Weapon
	RefreshProfiles() error
	Subscribe(fn func(protocol.Status))
}

var actionTitles = map[string]string{
	config.ActionFire:      "Recoil compensation",
	config.ActionPressKey:  "Hold trigger key",
	config.ActionFlash:     "Flash association (F → I)",
	config.ActionAutoClick: "Auto click",
}

// Menu is the recoilctl tray menu. Checkmarks follow the controller state.
type Menu struct {
	*Tray
	ctrl    Controller
	log     zerolog.Logger
	toggles map[string]int
	weapon  int
}

// NewMenu builds the menu. onQuit runs when Quit is clicked.
func NewMenu(ctrl Controller, log zerolog.Logger, onQuit func()) *Menu {
	m := &Menu{
		Tray:    New("recoilctl", "recoilctl"),
		ctrl:    ctrl,
		log:     log,
		toggles: make(map[string]int, len(config.Actions)),
	}
	st := ctrl.Status()

	m.weapon = m.AddLabel(weaponTitle(st))
	m.AddSeparator()
	for _, action := range config.Actions {
		m.toggles[action] = m.AddCheckbox(actionTitles[action], actionEnabled(st, action), func() {
			if err := ctrl.Toggle(action); err != nil {
				log.Warn().Err(err).Str("action", action).Msg("tray toggle")
			}
		})
	}
	m.AddSeparator()
	m.AddMenuItem("Previous weapon", func() { ctrl.StepProfile(-1) })
	m.AddMenuItem("Next weapon", func() { ctrl.StepProfile(1) })
	m.AddMenuItem("Reload profiles", func() {
		if err := ctrl.RefreshProfiles(); err != nil {
			log.Warn().Err(err).Msg("tray reload")
		}
	})
	m.AddSeparator()
	m.AddMenuItem("Quit", onQuit)

	ctrl.Subscribe(m.sync)
	return m
}

func (m *Menu) sync(st protocol.Status) {
	for action, id := range m.toggles {
		m.SetItemChecked(id, actionEnabled(st, action))
	}
	m.SetItemTitle(m.weapon, weaponTitle(st))
}

func actionEnabled(st protocol.Status, action string) bool {
	switch action {
	case config.ActionFire:
		return st.FireEnabled
	case config.ActionPressKey:
		return st.PressKeyEnabled
	case config.ActionFlash:
		return st.FlashMode
	case config.ActionAutoClick:
		return st.AutoClickEnabled
	}
	return false
}

func weaponTitle(st protocol.Status) string {
	if st.CurrentWeapon == "" {
		return "Weapon: (default)"
	}
	return fmt.Sprintf("Weapon: %s", st.CurrentWeapon)
}
