// Package profile holds weapon compensation profiles and the loader that
// reads them from the plugin directory.
package profile

import (
	"errors"
	"time"
)

// DefaultName is the name of the synthetic profile used when nothing is selected.
const DefaultName = "Default"

// Field defaults applied to omitted profile keys.
const (
	DefaultPull            = 2.0
	DefaultInitialDuration = 0.5
	DefaultSteadyPull      = 1.6
	DefaultSleepTime       = 8
	DefaultAcceleration    = 200.0
)

// MaxSleepTime bounds sleepTime in milliseconds, matching the schema.
const MaxSleepTime = 60000

// ErrNoProfiles is returned by Load when no profile document could be read.
var ErrNoProfiles = errors.New("no weapon profiles found")

// Weapon is an immutable compensation profile. A selected Weapon is never
// mutated; reloads build new values.
type Weapon struct {
	Name            string  `json:"name"`
	DefaultPull     float64 `json:"defaultPull"`
	InitialDuration float64 `json:"initialDuration"`
	SteadyPull      float64 `json:"steadyPull"`
	SleepTime       int     `json:"sleepTime"`
	Acceleration    float64 `json:"acceleration"`
}

// Default returns the synthetic profile built from the field defaults.
func Default() *Weapon {
	return &Weapon{
		Name:            DefaultName,
		DefaultPull:     DefaultPull,
		InitialDuration: DefaultInitialDuration,
		SteadyPull:      DefaultSteadyPull,
		SleepTime:       DefaultSleepTime,
		Acceleration:    DefaultAcceleration,
	}
}

// Pull is the built-in curve: a linear ramp from DefaultPull during the
// initial window, then a flat SteadyPull.
func (w *Weapon) Pull(elapsed time.Duration, count int) float64 {
	if elapsed.Seconds() < w.InitialDuration {
		acc := w.Acceleration
		if acc <= 0 {
			acc = DefaultAcceleration
		}
		return w.DefaultPull + float64(count)/acc
	}
	return w.SteadyPull
}

// Interval is the time between two shooting ticks, clamped to
// [1ms, MaxSleepTime].
func (w *Weapon) Interval() time.Duration {
	ms := min(max(w.SleepTime, 1), MaxSleepTime)
	return time.Duration(ms) * time.Millisecond
}

// PullFunc computes the vertical pull for a tick. It replaces the built-in
// curve when registered for a profile.
type PullFunc func(elapsed time.Duration, count int) (float64, error)
