package controller

import (
	"errors"
	"fmt"

	"recoilctl/internal/metrics"
	"recoilctl/internal/profile"
)

// loadProfiles reads the plugin directory and selects preferred, falling
// back to the first profile. It never fails; an empty set leaves no profile
// selected and the engine uses the built-in default.
func (c *Controller) loadProfiles(preferred string) {
	set, err := c.loader.Load()
	if err != nil {
		if errors.Is(err, profile.ErrNoProfiles) {
			c.log.Warn().Str("dir", c.loader.Dir()).Msg("no weapon profiles found, using built-in defaults")
		} else {
			c.log.Error().Err(err).Msg("load weapon profiles")
		}
	}
	c.profiles.Store(set)
	metrics.ProfilesLoaded.Set(float64(set.Len()))

	current := set.Resolve(preferred)
	c.runtime.SetProfile(current)
	if current != nil && preferred != "" && current.Name != preferred {
		c.log.Warn().Str("wanted", preferred).Str("selected", current.Name).Msg("saved profile not found")
	}
}

// Profiles returns the loaded profile set.
func (c *Controller) Profiles() *profile.Set {
	return c.profiles.Load()
}

// RefreshProfiles reloads the plugin directory, keeping the current profile
// when it still exists.
func (c *Controller) RefreshProfiles() error {
	c.mu.Lock()
	preferred := ""
	if w := c.runtime.Profile(); w != nil {
		preferred = w.Name
	}
	set, err := c.loader.Load()
	c.profiles.Store(set)
	c.runtime.SetProfile(set.Resolve(preferred))
	c.persist(nil)
	c.mu.Unlock()

	metrics.ProfileReloadsTotal.Inc()
	metrics.ProfilesLoaded.Set(float64(set.Len()))
	c.log.Info().Int("count", set.Len()).Msg("weapon profiles reloaded")
	c.notify()
	if err != nil && !errors.Is(err, profile.ErrNoProfiles) {
		return err
	}
	return nil
}

// SelectProfile makes the named profile current.
func (c *Controller) SelectProfile(name string) error {
	w, ok := c.profiles.Load().Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	c.setProfile(w)
	return nil
}

// SelectIndex makes the i-th profile current.
func (c *Controller) SelectIndex(i int) error {
	set := c.profiles.Load()
	w := set.At(i)
	if w == nil {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrUnknownProfile, i, set.Len())
	}
	c.setProfile(w)
	return nil
}

// StepProfile moves delta entries through the list, clamped at both ends,
// and returns the resulting profile. It returns nil with no profiles loaded.
func (c *Controller) StepProfile(delta int) *profile.Weapon {
	current := ""
	if w := c.runtime.Profile(); w != nil {
		current = w.Name
	}
	w := c.profiles.Load().Step(current, delta)
	if w == nil {
		return nil
	}
	c.setProfile(w)
	return w
}

func (c *Controller) setProfile(w *profile.Weapon) {
	c.mu.Lock()
	prev := c.runtime.Profile()
	c.runtime.SetProfile(w)
	changed := prev != w
	if changed {
		c.persist(nil)
	}
	c.mu.Unlock()
	if changed {
		c.log.Info().Str("profile", w.Name).Msg("weapon selected")
		c.notify()
	}
}
