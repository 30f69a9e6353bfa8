package profile

import "sync"

// Strategies maps profile names to custom pull functions.
type Strategies struct {
	mu    sync.RWMutex
	funcs map[string]PullFunc
}

func NewStrategies() *Strategies {
	return &Strategies{funcs: make(map[string]PullFunc)}
}

// Register installs fn for the named profile. A nil fn removes the entry.
func (s *Strategies) Register(name string, fn PullFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.funcs, name)
		return
	}
	s.funcs[name] = fn
}

// For returns the pull function for name, or nil when the built-in curve applies.
func (s *Strategies) For(name string) PullFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.funcs[name]
}
