package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

func (h *Handlers) corsHandler() *cors.Cors {
	wildcard := false
	for _, o := range h.opts.CORSOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   h.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(h.corsHandler().Handler)
	r.Use(h.Auth.Identify)

	r.Get("/healthz", h.handleHealthz)

	// Live subscriptions are long-lived and stay outside the request timeout
	r.Get("/ws", h.Hub.ServeWs)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Board (public, identity optional)
		r.Get("/board", h.handleListBoard)
		r.Get("/sports", h.handleSports)
		r.Get("/slots/{id}", h.handleGetSlot)

		// Session
		r.With(h.opts.Limiter.Limit).Post("/session", h.handleSignIn)
		r.Delete("/session", h.handleSignOut)

		// Member API
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireIdentityAPI)

			r.Get("/me", h.handleMe)
			r.Get("/me/preferences", h.handleGetPreferences)

			r.Group(func(r chi.Router) {
				r.Use(h.opts.Limiter.Limit)
				r.Put("/me/preferences", h.handleSavePreferences)
				r.Post("/slots/{id}/options/{priority}/join", h.handleJoin)
				r.Post("/slots/{id}/options/{priority}/leave", h.handleLeave)
				r.Post("/slots/{id}/options/{priority}/guests", h.handleAddGuest)
				r.Delete("/slots/{id}/options/{priority}/guests/{uid}", h.handleRemoveGuest)
			})
		})

		// Admin API
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.Auth.RequireIdentityAPI)
			r.Use(h.requireAdmin)

			r.Get("/backups", h.handleListBackups)
			r.Get("/backups/{id}", h.handleGetBackup)
			r.Get("/settings", h.handleGetSettings)
			r.Get("/slots/{id}/options/{priority}/sheet.pdf", h.handleRosterSheet)

			r.Group(func(r chi.Router) {
				r.Use(h.opts.Limiter.Limit)
				r.Post("/seed", h.handleSeed)
				r.Post("/reset", h.handleReset)
				r.Put("/settings", h.handleUpdateSettings)
			})
		})
	})

	return r
}
