package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/services"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error passes through", Conflict("taken"), http.StatusConflict, ErrCodeConflict},
		{"not found", errors.NotFound("slot not found"), http.StatusNotFound, ErrCodeNotFound},
		{"validation", errors.Validation("bad"), http.StatusBadRequest, ErrCodeValidation},
		{"invalid input", errors.InvalidInput("bad"), http.StatusBadRequest, ErrCodeValidation},
		{"unauthorized", services.ErrNotSignedIn, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", services.ErrAdminOnly, http.StatusForbidden, ErrCodeForbidden},
		{"conflict", services.ErrSlotBusy, http.StatusConflict, ErrCodeConflict},
		{"full", services.ErrSlotFull, http.StatusConflict, ErrCodeFull},
		{"slot unavailable", services.ErrSlotUnavailable, http.StatusConflict, ErrCodeSlotUnavailable},
		{"already seeded", services.ErrAlreadySeeded, http.StatusConflict, ErrCodeAlreadySeeded},
		{"backup failed", errors.BackupFailed(stderrors.New("disk full")), http.StatusInternalServerError, ErrCodeBackupFailed},
		{"wrapped kind", fmt.Errorf("join: %w", services.ErrSlotFull), http.StatusConflict, ErrCodeFull},
		{"internal kind", errors.Internal(stderrors.New("boom")), http.StatusInternalServerError, ErrCodeInternalServer},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError, ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			if got.Status != tt.wantStatus || got.Code != tt.wantCode {
				t.Errorf("ToAPIError(%v) = %d %s, want %d %s", tt.err, got.Status, got.Code, tt.wantStatus, tt.wantCode)
			}
			if got.Status >= http.StatusInternalServerError && strings.Contains(got.Message, "boom") {
				t.Errorf("internal detail leaked: %q", got.Message)
			}
		})
	}
}

func TestToAPIError_PartialReset(t *testing.T) {
	err := &services.PartialResetError{BackupID: "2026-10-14", SlotsReset: 400, Total: 450, Err: stderrors.New("batch rejected")}

	got := ToAPIError(fmt.Errorf("reset: %w", err))
	if got.Status != http.StatusInternalServerError || got.Code != ErrCodePartialReset {
		t.Fatalf("unexpected %d %s", got.Status, got.Code)
	}
	if got.Details["backupId"] != "2026-10-14" || got.Details["slotsReset"] != 400 || got.Details["total"] != 450 {
		t.Errorf("unexpected details %v", got.Details)
	}
}

func TestDecodeJSON(t *testing.T) {
	var target SignInRequest

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := decodeJSON(r, &target)
	if apiErr := ToAPIError(err); apiErr.Code != ErrCodeBadRequest || apiErr.Message != "Request body is empty" {
		t.Errorf("unexpected error for empty body: %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":`))
	if err := decodeJSON(r, &target); ToAPIError(err).Status != http.StatusBadRequest {
		t.Errorf("expected 400 for truncated JSON, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"abc"}`))
	if err := decodeJSON(r, &target); err != nil || target.Token != "abc" {
		t.Errorf("unexpected decode result %v %+v", err, target)
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		param   string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"1", 1, false},
		{"7", 7, false}, // range is checked by the services
		{"one", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("priority", tt.param)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			got, err := parsePriority(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePriority(%q) error = %v", tt.param, err)
			}
			if got != tt.want {
				t.Errorf("parsePriority(%q) = %d, want %d", tt.param, got, tt.want)
			}
		})
	}
}
