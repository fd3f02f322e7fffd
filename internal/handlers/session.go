package handlers

import (
	"net/http"
	"strings"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/models"
)

func (h *Handlers) me(who models.Identity) MeResponse {
	return MeResponse{
		UID:   who.UID,
		Name:  who.DisplayName(),
		Email: who.Email,
		Admin: h.Board.IsAdmin(who),
	}
}

func (h *Handlers) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	token := strings.TrimSpace(req.Token)
	who, err := h.Auth.Verify(token)
	if err != nil {
		h.respondError(w, r, Unauthorized("Invalid or expired token"))
		return
	}

	auth.SetSessionCookie(w, token, h.opts.SecureCookies)
	respondOK(w, h.me(who))
}

func (h *Handlers) handleSignOut(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	respondDeleted(w)
}

func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.me(auth.IdentityFrom(r.Context())))
}

// ==================== Preferences ====================

func (h *Handlers) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.Preferences.GetPreferences(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, prefs)
}

func (h *Handlers) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	prefs, err := h.Preferences.SavePreferences(r.Context(), auth.IdentityFrom(r.Context()), req.SelectedSports)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, prefs)
}
