// Package api provides the local HTTP control API and its event stream.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"recoilctl/internal/controller"
	"recoilctl/internal/profile"
	"recoilctl/internal/protocol"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8765"

// ErrNotLoopback is returned by Start for addresses reachable off-host.
var ErrNotLoopback = errors.New("api address must be a loopback address")

// Controller is the state owner the API drives.
type Controller interface {
	Status() protocol.Status
	SetAction(action string, enabled *bool) error
	SelectProfile(name string) error
	SelectIndex(i int) error
	StepProfile(delta int) *profile.Weapon
	RefreshProfiles() error
	SetTriggerKey(key string) error
	UpdateClickParams(delay, jitter int) error
	UpdateHotkey(action, combo string) error
	Profiles() *profile.Set
	Subscribe(fn func(protocol.Status))
}

// Options configures a Server.
type Options struct {
	Addr   string
	Token  string
	Logger zerolog.Logger
}

// Server provides the HTTP API for local control
type Server struct {
	ctrl  Controller
	addr  string
	token string
	log   zerolog.Logger
	hub   *Hub
	http  *http.Server
}

// NewServer creates the server and starts its event hub. State changes of
// ctrl are broadcast to every connected event-stream client.
func NewServer(ctrl Controller, opts Options) *Server {
	s := &Server{
		ctrl:  ctrl,
		addr:  opts.Addr,
		token: opts.Token,
		log:   opts.Logger,
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	s.hub = newHub(s)
	go s.hub.run()
	ctrl.Subscribe(s.hub.BroadcastStatus)
	return s
}

// Hub returns the event hub. It is an io.Writer that forwards log lines.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/actions/{action}", s.handleAction)
	mux.HandleFunc("GET /api/profiles", s.handleProfiles)
	mux.HandleFunc("POST /api/profiles/select", s.handleSelect)
	mux.HandleFunc("POST /api/profiles/step", s.handleStep)
	mux.HandleFunc("POST /api/profiles/reload", s.handleReload)
	mux.HandleFunc("POST /api/trigger", s.handleTrigger)
	mux.HandleFunc("POST /api/click", s.handleClick)
	mux.HandleFunc("GET /api/hotkeys", s.handleHotkeys)
	mux.HandleFunc("POST /api/hotkeys", s.handleHotkeys)
	mux.HandleFunc("GET /ws", s.hub.handleWebSocket)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start listens on the configured loopback address and serves until
// Shutdown. It blocks.
func (s *Server) Start() error {
	if err := checkLoopback(s.addr); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", ln.Addr().String()).Bool("auth", s.token != "").Msg("control API listening")

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown stops the listener and disconnects every event-stream client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parse api address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
	}
	return nil
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("handler panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if configured. The event stream may
// pass it as ?token= since browsers cannot set headers on upgrades.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("api request")

		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" {
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, protocol.ErrorPayload{Error: err.Error()})
}

// errorStatus maps controller errors to HTTP codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, controller.ErrUnknownAction), errors.Is(err, controller.ErrUnknownProfile):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrInvalidParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// reply writes the status after a mutation, or the mapped error.
func (s *Server) reply(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleAction handles POST /api/actions/{action} with an optional
// {"enabled": bool} body. Without a body the action toggles.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, s.ctrl.SetAction(r.PathValue("action"), body.Enabled))
}

type profilesResponse struct {
	Current  string            `json:"current"`
	Profiles []*profile.Weapon `json:"profiles"`
}

// handleProfiles handles GET /api/profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	resp := profilesResponse{
		Current:  s.ctrl.Status().CurrentWeapon,
		Profiles: s.ctrl.Profiles().All(),
	}
	if resp.Profiles == nil {
		resp.Profiles = []*profile.Weapon{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSelect handles POST /api/profiles/select with {"name"} or {"index"}.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body protocol.SelectProfilePayload
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, s.selectProfile(body))
}

func (s *Server) selectProfile(p protocol.SelectProfilePayload) error {
	switch {
	case p.Name != "":
		return s.ctrl.SelectProfile(p.Name)
	case p.Index != nil:
		return s.ctrl.SelectIndex(*p.Index)
	case p.Delta != 0:
		if s.ctrl.StepProfile(p.Delta) == nil {
			return fmt.Errorf("%w: no profiles loaded", controller.ErrUnknownProfile)
		}
		return nil
	default:
		return fmt.Errorf("%w: name, index or delta required", controller.ErrInvalidParam)
	}
}

// handleStep handles POST /api/profiles/step?delta=N (default 1).
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	delta := 1
	if v := r.URL.Query().Get("delta"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid delta %q", v))
			return
		}
		delta = n
	}
	if s.ctrl.StepProfile(delta) == nil {
		writeError(w, http.StatusNotFound, errors.New("no profiles loaded"))
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleReload handles POST /api/profiles/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.ctrl.RefreshProfiles())
}

// handleTrigger handles POST /api/trigger with {"key": "x"}.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, s.ctrl.SetTriggerKey(body.Key))
}

// handleClick handles POST /api/click with {"delay", "jitter"}. Omitted
// fields keep their current value.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delay  *int `json:"delay"`
		Jitter *int `json:"jitter"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cur := s.ctrl.Status()
	delay, jitter := cur.ClickDelay, cur.ClickRand
	if body.Delay != nil {
		delay = *body.Delay
	}
	if body.Jitter != nil {
		jitter = *body.Jitter
	}
	s.reply(w, s.ctrl.UpdateClickParams(delay, jitter))
}

// handleHotkeys handles GET (bindings) and POST {"action", "hotkey"}.
func (s *Server) handleHotkeys(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.ctrl.Status().KeyBindings)
		return
	}
	var body struct {
		Action string `json:"action"`
		Hotkey string `json:"hotkey"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctrl.UpdateHotkey(body.Action, body.Hotkey); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status().KeyBindings)
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
