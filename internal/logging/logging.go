// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the level and output format.
type Options struct {
	Level string
	JSON  bool
	Out   io.Writer
}

// New returns the root logger. Every line is also written to sink when it
// is non-nil.
func New(opts Options, sink *Sink) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
		}
		level = l
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	var w io.Writer = out
	if sink != nil {
		w = zerolog.MultiLevelWriter(out, sink)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Component returns a child logger tagged with name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Sink forwards encoded log lines to a writer attached after the logger
// was built. Lines written before Attach are dropped.
type Sink struct {
	mu sync.RWMutex
	w  io.Writer
}

func NewSink() *Sink { return &Sink{} }

// Attach sets the destination; nil detaches.
func (s *Sink) Attach(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.RLock()
	w := s.w
	s.mu.RUnlock()
	if w == nil {
		return len(p), nil
	}
	// zerolog reuses its buffer after Write returns.
	buf := make([]byte, len(p))
	copy(buf, p)
	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
