package services

import (
	"fmt"

	"github.com/abrezinsky/slotboard/internal/errors"
)

// Service errors
var (
	ErrNotSignedIn     = errors.Unauthorized("sign in to continue")
	ErrAdminOnly       = errors.Forbidden("admins only")
	ErrInvalidPriority = errors.InvalidInput("priority must be 0 or 1")
	ErrMissingGuestUID = errors.InvalidInput("guest uid is required")
	ErrSlotNotFound    = errors.NotFound("slot not found")
	ErrBackupNotFound  = errors.NotFound("backup not found")
	ErrSlotFull        = errors.Full("this game is full")
	ErrSlotUnavailable = errors.SlotUnavailable("no games are offered in this slot")
	ErrAlreadySeeded   = errors.AlreadySeeded("slots already exist")
	ErrSlotBusy        = errors.Conflict("slot is busy, try again")
)

// PartialResetError reports a weekly reset that stopped after some batches
// were committed. Committed batches stay reset.
type PartialResetError struct {
	BackupID   string
	SlotsReset int
	Total      int
	Err        error
}

func (e *PartialResetError) Error() string {
	return fmt.Sprintf("reset incomplete: %d of %d slots reset (backup %s): %v", e.SlotsReset, e.Total, e.BackupID, e.Err)
}

func (e *PartialResetError) Unwrap() error {
	return e.Err
}
