package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/schedule"
	"github.com/abrezinsky/slotboard/internal/services"
)

// ==================== Board ====================

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func parseFilter(r *http.Request) (services.Filter, error) {
	q := r.URL.Query()
	filter := services.Filter{
		Sport:       strings.TrimSpace(q.Get("sport")),
		Mine:        parseBool(q.Get("mine")),
		IncludePast: parseBool(q.Get("all")),
		Preferred:   parseBool(q.Get("preferred")),
	}
	if raw := q.Get("day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil || day < 0 || day >= len(models.Days) {
			return filter, BadRequest("Invalid day parameter")
		}
		filter.Day = &day
	}
	return filter, nil
}

func (h *Handlers) handleListBoard(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	who := auth.IdentityFrom(r.Context())
	views, err := h.Board.ListSlots(r.Context(), who, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, BoardResponse{Slots: views, Admin: h.Board.IsAdmin(who)})
}

func (h *Handlers) handleSports(w http.ResponseWriter, r *http.Request) {
	respondOK(w, SportsResponse{
		Sports:  h.Board.Sports(),
		Catalog: h.Board.Catalog(),
		Blocks:  schedule.Blocks,
		Days:    models.Days,
	})
}

func (h *Handlers) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	view, err := h.Board.GetSlot(r.Context(), auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, view)
}

// ==================== Rosters ====================

type rosterOp func(r *http.Request, who models.Identity, slotID string, priority int) (*models.Slot, error)

func (h *Handlers) roster(status int, op rosterOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		priority, err := parsePriority(r)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		slot, err := op(r, auth.IdentityFrom(r.Context()), chi.URLParam(r, "id"), priority)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondJSON(w, status, slot)
	}
}

func (h *Handlers) handleJoin(w http.ResponseWriter, r *http.Request) {
	h.roster(http.StatusOK, func(r *http.Request, who models.Identity, slotID string, priority int) (*models.Slot, error) {
		return h.Roster.Join(r.Context(), who, slotID, priority)
	})(w, r)
}

func (h *Handlers) handleLeave(w http.ResponseWriter, r *http.Request) {
	h.roster(http.StatusOK, func(r *http.Request, who models.Identity, slotID string, priority int) (*models.Slot, error) {
		return h.Roster.Leave(r.Context(), who, slotID, priority)
	})(w, r)
}

func (h *Handlers) handleAddGuest(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.roster(http.StatusCreated, func(r *http.Request, who models.Identity, slotID string, priority int) (*models.Slot, error) {
		return h.Roster.AddGuest(r.Context(), who, slotID, priority, req.toGuestData())
	})(w, r)
}

func (h *Handlers) handleRemoveGuest(w http.ResponseWriter, r *http.Request) {
	guestUID := chi.URLParam(r, "uid")
	h.roster(http.StatusOK, func(r *http.Request, who models.Identity, slotID string, priority int) (*models.Slot, error) {
		return h.Roster.RemoveGuest(r.Context(), who, slotID, priority, guestUID)
	})(w, r)
}
