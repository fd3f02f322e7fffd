package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/ratelimit"
	"github.com/abrezinsky/slotboard/internal/services"
)

// Logger is the logging the handlers need: request logging control and
// error reporting.
type Logger interface {
	IsHTTPLoggingEnabled() bool
	Error(msg string, args ...any)
}

// LiveStream serves websocket subscriptions
type LiveStream interface {
	ServeWs(w http.ResponseWriter, r *http.Request)
}

// Pinger reports store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the services the API exposes
type Services struct {
	Roster      services.RosterServicer
	Lifecycle   services.LifecycleServicer
	Board       services.BoardServicer
	Preferences services.PreferencesServicer
	Settings    services.SettingsServicer
}

// Options tune the router
type Options struct {
	// Limiter throttles mutating endpoints. Nil disables limiting.
	Limiter *ratelimit.Limiter
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// Health is pinged by /healthz. Nil reports healthy.
	Health Pinger
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Roster      services.RosterServicer
	Lifecycle   services.LifecycleServicer
	Board       services.BoardServicer
	Preferences services.PreferencesServicer
	Settings    services.SettingsServicer
	Auth        *auth.Auth
	Hub         LiveStream
	Log         Logger
	opts        Options
}

// New creates a new Handlers instance with all dependencies
func New(svc Services, authn *auth.Auth, hub LiveStream, log Logger, opts Options) *Handlers {
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(0)
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Handlers{
		Roster:      svc.Roster,
		Lifecycle:   svc.Lifecycle,
		Board:       svc.Board,
		Preferences: svc.Preferences,
		Settings:    svc.Settings,
		Auth:        authn,
		Hub:         hub,
		Log:         log,
		opts:        opts,
	}
}

// NoopLogger is a test logger that discards everything
type NoopLogger struct{}

func (NoopLogger) IsHTTPLoggingEnabled() bool    { return false }
func (NoopLogger) Error(msg string, args ...any) {}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		if err := h.opts.Health.Ping(r.Context()); err != nil {
			h.Log.Error("Health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondOK(w, map[string]string{"status": "ok"})
}
