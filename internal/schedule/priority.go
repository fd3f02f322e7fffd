package schedule

import (
	"time"

	"github.com/abrezinsky/slotboard/internal/models"
)

// FallbackReason records why a resolution defaulted to the primary option
// instead of being computed.
type FallbackReason int

const (
	// FallbackNone means the priority was computed from the cutoff and roster.
	FallbackNone FallbackReason = iota
	// FallbackMissingCutoff means the slot has no cutoff.
	FallbackMissingCutoff
	// FallbackInvalidCutoff means the stored cutoff could not be parsed.
	FallbackInvalidCutoff
)

func (r FallbackReason) String() string {
	switch r {
	case FallbackNone:
		return "none"
	case FallbackMissingCutoff:
		return "missing_cutoff"
	case FallbackInvalidCutoff:
		return "invalid_cutoff"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by name.
func (r FallbackReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Resolution is the outcome of resolving a slot's active priority.
type Resolution struct {
	Priority int            `json:"priority"`
	Fallback FallbackReason `json:"fallback"`
}

// Defaulted reports whether the priority is the fail-open default rather than
// a computed value.
func (r Resolution) Defaulted() bool {
	return r.Fallback != FallbackNone
}

// Resolve decides which option of slot is active at now.
//
// The primary option is active until the cutoff. From the cutoff on, the
// fallback takes over only when the primary roster is below its stored
// minimum. A missing or unparseable cutoff keeps the primary active.
func Resolve(slot *models.Slot, now time.Time) Resolution {
	if slot == nil {
		return Resolution{Priority: models.PriorityPrimary, Fallback: FallbackMissingCutoff}
	}

	cutoff, ok, err := slot.CutoffTimeIn(now.Location())
	if !ok {
		return Resolution{Priority: models.PriorityPrimary, Fallback: FallbackMissingCutoff}
	}
	if err != nil {
		return Resolution{Priority: models.PriorityPrimary, Fallback: FallbackInvalidCutoff}
	}

	if now.Before(cutoff) {
		return Resolution{Priority: models.PriorityPrimary}
	}
	if len(slot.P0.Players) >= slot.P0.MinPlayers {
		return Resolution{Priority: models.PriorityPrimary}
	}
	return Resolution{Priority: models.PriorityFallback}
}

// ResolveActivePriority returns only the active priority of slot at now.
func ResolveActivePriority(slot *models.Slot, now time.Time) int {
	return Resolve(slot, now).Priority
}
