package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/printout"
	"github.com/abrezinsky/slotboard/internal/services"
)

// requireAdmin rejects signed-in callers that are not on the admin list
func (h *Handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Board.IsAdmin(auth.IdentityFrom(r.Context())) {
			h.respondError(w, r, services.ErrAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ==================== Weekly Lifecycle ====================

func (h *Handlers) handleSeed(w http.ResponseWriter, r *http.Request) {
	result, err := h.Lifecycle.SeedIfEmpty(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, result)
}

func (h *Handlers) handleReset(w http.ResponseWriter, r *http.Request) {
	result, err := h.Lifecycle.BackupAndReset(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.Lifecycle.ListBackups(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, BackupsResponse{Backups: backups})
}

func (h *Handlers) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Lifecycle.GetBackup(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, snapshot)
}

// ==================== Settings ====================

func (h *Handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.AllSettings(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, settings)
}

func (h *Handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Settings.UpdateSettings(r.Context(), services.Settings{
		BoardURL: req.BoardURL,
		BaseURL:  req.BaseURL,
	}); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.handleGetSettings(w, r)
}

// ==================== Roster Sheets ====================

func (h *Handlers) handleRosterSheet(w http.ResponseWriter, r *http.Request) {
	priority, err := parsePriority(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	view, err := h.Board.GetSlot(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	boardURL, err := h.Settings.GetBoardURL(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	pdf, err := printout.RosterSheet(&view.Slot, priority, h.Board.Catalog(), boardURL)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", printout.Filename(&view.Slot, priority)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
