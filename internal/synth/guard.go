// Package synth tracks whether the process is currently emitting synthetic
// input, so observers can ignore the echo of their own events.
package synth

import "sync/atomic"

// Guard is a reentrant depth counter. The zero value is ready to use.
type Guard struct {
	depth atomic.Int64
}

// Begin marks the start of a synthesis window.
func (g *Guard) Begin() {
	g.depth.Add(1)
}

// End closes the innermost window. Extra calls leave the depth at zero.
func (g *Guard) End() {
	for {
		d := g.depth.Load()
		if d <= 0 {
			return
		}
		if g.depth.CompareAndSwap(d, d-1) {
			return
		}
	}
}

// Active reports whether any synthesis window is open.
func (g *Guard) Active() bool {
	return g.depth.Load() > 0
}

// Depth returns the number of open windows.
func (g *Guard) Depth() int64 {
	return g.depth.Load()
}

// Do runs fn inside a synthesis window. The window is closed on every exit
// path, including a panic in fn.
func (g *Guard) Do(fn func() error) error {
	g.Begin()
	defer g.End()
	return fn()
}
