package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuiltinPull(t *testing.T) {
	w := Default()

	assert.InDelta(t, 2.1, w.Pull(100*time.Millisecond, 20), 1e-9)
	assert.InDelta(t, 1.6, w.Pull(600*time.Millisecond, 20), 1e-9)
	assert.InDelta(t, 1.6, w.Pull(500*time.Millisecond, 1), 1e-9, "threshold is exclusive")
}

func TestBuiltinPullRampIsMonotonicThenFlat(t *testing.T) {
	w := Default()
	tick := time.Duration(w.SleepTime) * time.Millisecond

	prev := 0.0
	for n := 1; n <= 200; n++ {
		elapsed := time.Duration(n-1) * tick
		pull := w.Pull(elapsed, n)
		if elapsed.Seconds() < w.InitialDuration {
			assert.GreaterOrEqual(t, pull, prev, "tick %d", n)
			prev = pull
			continue
		}
		assert.Equal(t, w.SteadyPull, pull, "tick %d", n)
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		sleep int
		want  time.Duration
	}{
		{8, 8 * time.Millisecond},
		{1, time.Millisecond},
		{0, time.Millisecond},
		{-5, time.Millisecond},
		{MaxSleepTime, MaxSleepTime * time.Millisecond},
		{10_000_000_000_000, MaxSleepTime * time.Millisecond},
	}
	for _, tt := range tests {
		w := &Weapon{SleepTime: tt.sleep}
		assert.Equal(t, tt.want, w.Interval(), "sleepTime %d", tt.sleep)
	}
}

func TestSetNavigation(t *testing.T) {
	s := NewSet(
		&Weapon{Name: "ak"},
		&Weapon{Name: "m4"},
		&Weapon{Name: "ak"},
		&Weapon{Name: "mp5"},
	)

	assert.Equal(t, []string{"ak", "m4", "mp5"}, s.Names())
	assert.Equal(t, "m4", s.Step("ak", 1).Name)
	assert.Equal(t, "ak", s.Step("ak", -1).Name)
	assert.Equal(t, "mp5", s.Step("mp5", 1).Name)
	assert.Equal(t, "m4", s.Step("missing", 1).Name)

	assert.Equal(t, "mp5", s.Resolve("mp5").Name)
	assert.Equal(t, "ak", s.Resolve("gone").Name)

	empty := NewSet()
	assert.Nil(t, empty.Resolve("ak"))
	assert.Nil(t, empty.Step("ak", 1))
	assert.Nil(t, empty.At(0))
}

func TestStrategies(t *testing.T) {
	s := NewStrategies()
	assert.Nil(t, s.For("ak"))

	s.Register("ak", func(time.Duration, int) (float64, error) { return 3, nil })
	fn := s.For("ak")
	if assert.NotNil(t, fn) {
		v, err := fn(0, 1)
		assert.NoError(t, err)
		assert.Equal(t, 3.0, v)
	}

	s.Register("ak", nil)
	assert.Nil(t, s.For("ak"))
}
