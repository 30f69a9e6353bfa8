// Package controller owns the runtime state and is the only writer of
// settings. Hotkeys, the tray and the control API all go through it.
package controller

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"recoilctl/internal/clicker"
	"recoilctl/internal/config"
	"recoilctl/internal/hotkey"
	"recoilctl/internal/input"
	"recoilctl/internal/logging"
	"recoilctl/internal/profile"
	"recoilctl/internal/protocol"
	"recoilctl/internal/recoil"
	"recoilctl/internal/state"
	"recoilctl/internal/synth"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrUnknownProfile = errors.New("unknown profile")
	ErrInvalidParam   = errors.New("invalid parameter")
)

// Hotkey ids for profile navigation.
const (
	navPrev = "profile_prev"
	navNext = "profile_next"

	flashKey = "f"
	flashTap = 'i'
)

// Options configures New. The zero value uses the platform defaults.
type Options struct {
	ConfigDir string
	PluginDir string
	Backend   input.Kind
	Logger    zerolog.Logger

	// Device replaces backend selection when set.
	Device input.Backend
	// LeftProbe replaces the platform left-button probe when set.
	LeftProbe func() bool
	// DisableHooks skips installing global hooks in Start.
	DisableHooks bool
	// DisableWatcher skips watching the plugin directory in Start.
	DisableWatcher bool
}

// Controller coordinates the engine, the click loop and the hooks.
type Controller struct {
	mu  sync.Mutex
	log zerolog.Logger

	settings   *config.Manager
	runtime    *state.Runtime
	guard      *synth.Guard
	loader     *profile.Loader
	profiles   atomic.Pointer[profile.Set]
	strategies *profile.Strategies

	backend     input.Backend
	backendName string
	closer      io.Closer

	engine  *recoil.Engine
	clicker *clicker.Clicker
	hotkeys *hotkey.Manager
	watcher *profile.Watcher
	opts    Options

	listenersMu sync.RWMutex
	listeners   []func(protocol.Status)

	started      atomic.Bool
	shutdownOnce sync.Once
}

// New loads settings and profiles and builds every component. Nothing runs
// until Start.
func New(opts Options) (*Controller, error) {
	log := opts.Logger

	settings, err := config.NewManager(opts.ConfigDir, logging.Component(log, "config"))
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	if err := settings.Load(); err != nil {
		log.Warn().Err(err).Str("path", settings.Path()).Msg("settings not loaded, using defaults")
	}

	pluginDir := opts.PluginDir
	if pluginDir == "" {
		pluginDir = filepath.Join(filepath.Dir(settings.Path()), "plugins")
	}
	loader, err := profile.NewLoader(pluginDir, logging.Component(log, "profile"))
	if err != nil {
		return nil, err
	}

	guard := &synth.Guard{}
	c := &Controller{
		log:        logging.Component(log, "controller"),
		settings:   settings,
		runtime:    state.New(guard),
		guard:      guard,
		loader:     loader,
		strategies: profile.NewStrategies(),
		opts:       opts,
	}

	s := settings.Get()
	c.runtime.SetFireEnabled(s.FireEnabled)
	c.runtime.SetFlashEnabled(s.FlashMode)
	c.runtime.SetAutoClickEnabled(s.AutoClickEnabled)
	c.runtime.SetPressKeyEnabled(s.PressKeyEnabled)

	c.loadProfiles(s.Weapon())

	if opts.Device != nil {
		c.backend = opts.Device
		c.backendName = "custom"
	} else {
		dev := input.Open(opts.Backend, logging.Component(log, "input"))
		c.backend = dev
		c.backendName = string(dev.Kind())
		c.closer = dev
	}

	probe := opts.LeftProbe
	if probe == nil {
		probe = input.LeftButtonDown
	}

	c.engine = recoil.New(recoil.Config{
		Backend:    c.backend,
		State:      c.runtime.Snapshot,
		Weapon:     c.runtime.Profile,
		Pull:       c.currentPull,
		Logger:     logging.Component(log, "recoil"),
		TriggerKey: input.NormalizeKey(s.PressKeyChar),
	})
	c.clicker = clicker.New(clicker.Config{
		Backend:      c.backend,
		State:        c.runtime.Snapshot,
		Guard:        guard,
		PhysicalLeft: probe,
		Logger:       logging.Component(log, "clicker"),
		DelayMillis:  s.ClickDelay,
		JitterMillis: s.ClickRand,
	})

	c.hotkeys = hotkey.NewManager(logging.Component(log, "hotkey"))
	c.hotkeys.SetButtonObserver(func(b state.Button, down bool) {
		c.runtime.ObserveButton(b, down)
	})
	c.registerHotkeys(s.KeyBindings)
	c.applyFlashRemap(s.FlashMode)

	c.watcher = profile.NewWatcher(pluginDir, logging.Component(log, "profile"), func() {
		if err := c.RefreshProfiles(); err != nil {
			c.log.Warn().Err(err).Msg("profile reload after change")
		}
	})
	return c, nil
}

// Start launches the loops, installs hooks and watches the plugin directory.
// Hook and watcher failures are logged; the loops keep running without them.
func (c *Controller) Start() {
	if c.started.Swap(true) {
		return
	}
	c.engine.Start()
	c.clicker.Start()

	if !c.opts.DisableHooks {
		if err := c.hotkeys.Start(); err != nil {
			c.log.Error().Err(err).Msg("global hooks unavailable; hotkeys and button tracking are disabled")
		}
	}
	if !c.opts.DisableWatcher {
		if err := c.watcher.Start(); err != nil {
			c.log.Warn().Err(err).Msg("plugin directory not watched")
		}
	}
	c.log.Info().Str("backend", c.backendName).Msg("controller started")
}

// Shutdown stops hooks, the flash remap, the watcher, the click loop and the
// engine in that order, closes the backend and flushes settings. The trigger
// key is released even if the engine loop is stuck.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.log.Info().Msg("shutting down")
		c.hotkeys.Stop()
		c.hotkeys.SetRemap(flashKey, nil)
		if err := c.watcher.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close plugin watcher")
		}
		c.clicker.Stop()
		c.engine.Stop()
		if c.closer != nil {
			if err := c.closer.Close(); err != nil {
				c.log.Warn().Err(err).Msg("close input backend")
			}
		}
		if err := c.settings.Save(); err != nil {
			c.log.Error().Err(err).Msg("save settings")
		}
	})
}

// Subscribe registers fn to receive the status after every change.
func (c *Controller) Subscribe(fn func(protocol.Status)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) notify() {
	status := c.Status()
	c.listenersMu.RLock()
	listeners := append([]func(protocol.Status){}, c.listeners...)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(status)
	}
}

// persist copies the runtime into the settings snapshot and writes it.
func (c *Controller) persist(extra func(*config.Settings)) {
	c.settings.Update(func(s *config.Settings) {
		s.FireEnabled = c.runtime.FireEnabled()
		s.FlashMode = c.runtime.FlashEnabled()
		s.AutoClickEnabled = c.runtime.AutoClickEnabled()
		s.PressKeyEnabled = c.runtime.PressKeyEnabled()
		if w := c.runtime.Profile(); w != nil {
			name := w.Name
			s.CurrentWeapon = &name
		} else {
			s.CurrentWeapon = nil
		}
		if extra != nil {
			extra(s)
		}
	})
	if err := c.settings.Save(); err != nil {
		c.log.Error().Err(err).Msg("save settings")
	}
}

// Status returns a snapshot for the control surfaces.
func (c *Controller) Status() protocol.Status {
	snap := c.runtime.Snapshot()
	s := c.settings.Get()
	status := protocol.Status{
		FireEnabled:      snap.FireEnabled,
		FlashMode:        snap.FlashEnabled,
		AutoClickEnabled: snap.AutoClickEnabled,
		PressKeyEnabled:  snap.PressKeyEnabled,
		PressKeyChar:     string(c.engine.TriggerKey()),
		ClickDelay:       c.clicker.Delay(),
		ClickRand:        c.clicker.Jitter(),
		KeyBindings:      s.KeyBindings,
		Profiles:         c.profiles.Load().Names(),
		Shooting:         c.engine.Shooting(),
		Clicking:         c.clicker.Clicking(),
		LeftHeld:         snap.LeftHeld,
		RightHeld:        snap.RightHeld,
		Backend:          c.backendName,
	}
	if snap.Profile != nil {
		status.CurrentWeapon = snap.Profile.Name
	}
	if status.Profiles == nil {
		status.Profiles = []string{}
	}
	return status
}

// Strategies returns the registry of custom pull functions.
func (c *Controller) Strategies() *profile.Strategies { return c.strategies }

// Runtime exposes the shared state, mainly for status readers.
func (c *Controller) Runtime() *state.Runtime { return c.runtime }

// Hotkeys returns the hook manager.
func (c *Controller) Hotkeys() *hotkey.Manager { return c.hotkeys }

func (c *Controller) currentPull() profile.PullFunc {
	w := c.runtime.Profile()
	if w == nil {
		return nil
	}
	return c.strategies.For(w.Name)
}

// SetFireEnabled toggles compensation.
func (c *Controller) SetFireEnabled(v bool) {
	c.mu.Lock()
	changed := c.runtime.SetFireEnabled(v)
	if changed {
		c.persist(nil)
	}
	c.mu.Unlock()
	if changed {
		c.log.Info().Bool("enabled", v).Msg("fire")
		c.notify()
	}
}

// SetFlashMode toggles the f -> i association.
func (c *Controller) SetFlashMode(v bool) {
	c.mu.Lock()
	changed := c.runtime.SetFlashEnabled(v)
	if changed {
		c.applyFlashRemap(v)
		c.persist(nil)
	}
	c.mu.Unlock()
	if changed {
		c.log.Info().Bool("enabled", v).Msg("flash association")
		c.notify()
	}
}

// SetAutoClickEnabled toggles the click loop and drops any latched hold.
func (c *Controller) SetAutoClickEnabled(v bool) {
	c.mu.Lock()
	changed := c.runtime.SetAutoClickEnabled(v)
	if changed {
		c.clicker.ClearClickState()
		c.persist(nil)
	}
	c.mu.Unlock()
	if changed {
		c.log.Info().Bool("enabled", v).Msg("auto click")
		c.notify()
	}
}

// SetPressKeyEnabled toggles holding the trigger key while shooting.
func (c *Controller) SetPressKeyEnabled(v bool) {
	c.mu.Lock()
	changed := c.runtime.SetPressKeyEnabled(v)
	if changed {
		if !v {
			c.engine.ReleaseTrigger()
		}
		c.persist(nil)
	}
	c.mu.Unlock()
	if changed {
		c.log.Info().Bool("enabled", v).Msg("press key")
		c.notify()
	}
}

// SetAction sets an action by name. A nil enabled flips the current value.
func (c *Controller) SetAction(action string, enabled *bool) error {
	var get func() bool
	var set func(bool)
	switch action {
	case config.ActionFire:
		get, set = c.runtime.FireEnabled, c.SetFireEnabled
	case config.ActionFlash:
		get, set = c.runtime.FlashEnabled, c.SetFlashMode
	case config.ActionAutoClick:
		get, set = c.runtime.AutoClickEnabled, c.SetAutoClickEnabled
	case config.ActionPressKey:
		get, set = c.runtime.PressKeyEnabled, c.SetPressKeyEnabled
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if enabled == nil {
		set(!get())
	} else {
		set(*enabled)
	}
	return nil
}

// Toggle flips an action.
func (c *Controller) Toggle(action string) error {
	return c.SetAction(action, nil)
}

// UpdateClickParams sets the click delay (>= 1ms) and jitter (>= 0ms).
func (c *Controller) UpdateClickParams(delay, jitter int) error {
	if delay < 1 {
		return fmt.Errorf("%w: click delay %d must be at least 1", ErrInvalidParam, delay)
	}
	if jitter < 0 {
		return fmt.Errorf("%w: click jitter %d must not be negative", ErrInvalidParam, jitter)
	}

	c.mu.Lock()
	c.clicker.SetDelay(delay)
	c.clicker.SetJitter(jitter)
	c.persist(func(s *config.Settings) {
		s.ClickDelay = delay
		s.ClickRand = jitter
	})
	c.mu.Unlock()

	c.log.Info().Int("delay", delay).Int("jitter", jitter).Msg("click parameters updated")
	c.notify()
	return nil
}

// SetTriggerKey changes the held key. Only the first character is used and a
// blank key selects "p".
func (c *Controller) SetTriggerKey(key string) error {
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: trigger key contains control characters", ErrInvalidParam)
		}
	}
	char := config.NormalizeKeyChar(key)

	c.mu.Lock()
	c.engine.SetTriggerKey(char)
	c.persist(func(s *config.Settings) { s.PressKeyChar = char })
	c.mu.Unlock()

	c.log.Info().Str("key", char).Msg("trigger key updated")
	c.notify()
	return nil
}

// UpdateHotkey rebinds action. A blank combo removes the binding.
func (c *Controller) UpdateHotkey(action, combo string) error {
	if !config.IsAction(action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	combo = strings.ToLower(strings.TrimSpace(combo))
	if combo != "" {
		if _, err := hotkey.ParseCombo(combo); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
	}

	c.mu.Lock()
	if err := c.hotkeys.Register(action, combo, c.actionCallback(action)); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	c.persist(func(s *config.Settings) {
		if s.KeyBindings == nil {
			s.KeyBindings = make(map[string]string)
		}
		s.KeyBindings[action] = combo
	})
	c.mu.Unlock()

	c.log.Info().Str("action", action).Str("hotkey", combo).Msg("hotkey rebound")
	c.notify()
	return nil
}

func (c *Controller) actionCallback(action string) func() {
	return func() {
		if err := c.Toggle(action); err != nil {
			c.log.Warn().Err(err).Str("action", action).Msg("hotkey action")
		}
	}
}

func (c *Controller) registerHotkeys(bindings map[string]string) {
	for _, action := range config.Actions {
		combo := bindings[action]
		if err := c.hotkeys.Register(action, combo, c.actionCallback(action)); err != nil {
			c.log.Warn().Err(err).Str("action", action).Str("hotkey", combo).Msg("invalid hotkey binding ignored")
		}
	}
	_ = c.hotkeys.Register(navPrev, "alt+left", func() { c.StepProfile(-1) })
	_ = c.hotkeys.Register(navNext, "alt+right", func() { c.StepProfile(1) })
}

func (c *Controller) applyFlashRemap(enabled bool) {
	if !enabled {
		c.hotkeys.SetRemap(flashKey, nil)
		return
	}
	c.hotkeys.SetRemap(flashKey, func() { c.backend.KeyTap(flashTap) })
}
