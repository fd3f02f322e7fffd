package services_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/services"
)

func TestServiceErrors_Kinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errors.Kind
	}{
		{"ErrNotSignedIn", services.ErrNotSignedIn, errors.ErrUnauthorized},
		{"ErrAdminOnly", services.ErrAdminOnly, errors.ErrForbidden},
		{"ErrInvalidPriority", services.ErrInvalidPriority, errors.ErrInvalidInput},
		{"ErrMissingGuestUID", services.ErrMissingGuestUID, errors.ErrInvalidInput},
		{"ErrSlotNotFound", services.ErrSlotNotFound, errors.ErrNotFound},
		{"ErrBackupNotFound", services.ErrBackupNotFound, errors.ErrNotFound},
		{"ErrSlotFull", services.ErrSlotFull, errors.ErrFull},
		{"ErrSlotUnavailable", services.ErrSlotUnavailable, errors.ErrSlotUnavailable},
		{"ErrAlreadySeeded", services.ErrAlreadySeeded, errors.ErrAlreadySeeded},
		{"ErrSlotBusy", services.ErrSlotBusy, errors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errors.KindOf(tt.err) != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, errors.KindOf(tt.err))
			}
			if tt.err.Error() == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestPartialResetError(t *testing.T) {
	cause := stderrors.New("batch rejected")
	err := &services.PartialResetError{BackupID: "2026-10-18", SlotsReset: 400, Total: 450, Err: cause}

	msg := err.Error()
	for _, want := range []string{"400 of 450", "2026-10-18", "batch rejected"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}
}
