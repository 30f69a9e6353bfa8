package input

import (
	"time"

	"github.com/rs/zerolog"

	"recoilctl/internal/metrics"
)

// TapHold is the delay between the down and up halves of KeyTap.
const TapHold = 10 * time.Millisecond

// Device adapts an Injector to Backend, logging and counting failures.
type Device struct {
	kind  Kind
	inj   Injector
	log   zerolog.Logger
	sleep func(time.Duration)
}

// NewDevice wraps inj. Open is the usual constructor.
func NewDevice(kind Kind, inj Injector, log zerolog.Logger) *Device {
	return &Device{
		kind:  kind,
		inj:   inj,
		log:   log.With().Str("backend", string(kind)).Logger(),
		sleep: time.Sleep,
	}
}

// Open returns the first backend in the preference chain for kind that can be
// opened. It never fails: with nothing available it returns a backend that
// only logs.
func Open(kind Kind, log zerolog.Logger) *Device {
	var chain []Kind
	switch kind {
	case KindLowLevel:
		chain = []Kind{KindLowLevel}
	case KindController:
		chain = []Kind{KindController}
	case KindNone:
	default:
		chain = []Kind{KindLowLevel, KindController}
	}

	for _, k := range chain {
		inj, err := openInjector(k)
		if err != nil {
			log.Warn().Err(err).Str("backend", string(k)).Msg("input backend unavailable")
			continue
		}
		log.Info().Str("backend", string(k)).Msg("input backend ready")
		return NewDevice(k, inj, log)
	}

	log.Warn().Msg("no input backend available, synthetic input will only be logged")
	return NewDevice(KindNone, nopInjector{log: log}, log)
}

func (d *Device) Kind() Kind { return d.kind }

func (d *Device) MoveMouseRelative(dx, dy int) {
	d.check("move", d.inj.InjectMouseMove(dx, dy))
}

func (d *Device) KeyDown(ch rune) {
	d.check("key_down", d.inj.InjectKey(ch, true))
}

func (d *Device) KeyUp(ch rune) {
	d.check("key_up", d.inj.InjectKey(ch, false))
}

func (d *Device) KeyTap(ch rune) {
	if err := d.inj.InjectKey(ch, true); err != nil {
		d.check("key_tap", err)
		return
	}
	d.sleep(TapHold)
	d.check("key_tap", d.inj.InjectKey(ch, false))
}

func (d *Device) MouseButton(b Button, pressed bool) {
	d.check("mouse_button", d.inj.InjectMouseButton(b, pressed))
}

// Close releases the platform handle.
func (d *Device) Close() error {
	return d.inj.Close()
}

func (d *Device) check(op string, err error) {
	if err == nil {
		return
	}
	metrics.BackendErrorsTotal.WithLabelValues(op).Inc()
	d.log.Warn().Err(err).Str("op", op).Msg("input injection failed")
}

type nopInjector struct {
	log zerolog.Logger
}

func (n nopInjector) InjectMouseMove(dx, dy int) error {
	n.log.Debug().Int("dx", dx).Int("dy", dy).Msg("mouse move (no backend)")
	return nil
}

func (n nopInjector) InjectMouseButton(b Button, pressed bool) error {
	n.log.Debug().Stringer("button", b).Bool("pressed", pressed).Msg("mouse button (no backend)")
	return nil
}

func (n nopInjector) InjectKey(ch rune, pressed bool) error {
	n.log.Debug().Str("key", string(ch)).Bool("pressed", pressed).Msg("key (no backend)")
	return nil
}

func (nopInjector) Close() error { return nil }
