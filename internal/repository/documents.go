package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abrezinsky/slotboard/internal/models"
)

const (
	// MaxTxAttempts bounds how often a conflicting transaction is re-run.
	MaxTxAttempts = 5
	// MaxBatchSize bounds the documents written by one UpdateSlots batch.
	MaxBatchSize = 400
)

// Collection names, shared by both backends.
const (
	CollectionSlots       = "slots"
	CollectionBackups     = "slots_backup"
	CollectionPreferences = "user_preferences"
	CollectionSettings    = "settings"
)

// withRetry runs attempt until it succeeds, fails with something other than
// ErrConflict, or MaxTxAttempts is reached.
func withRetry(ctx context.Context, attempt func() error) error {
	var err error
	for i := 0; i < MaxTxAttempts; i++ {
		if err = attempt(); !errors.Is(err, ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func encodeSlot(slot *models.Slot) ([]byte, error) {
	slot.Normalize()
	data, err := json.Marshal(slot)
	if err != nil {
		return nil, fmt.Errorf("encode slot %s: %w", slot.ID, err)
	}
	return data, nil
}

func decodeSlot(id string, data []byte) (*models.Slot, error) {
	var slot models.Slot
	if err := json.Unmarshal(data, &slot); err != nil {
		return nil, fmt.Errorf("decode slot %s: %w", id, err)
	}
	slot.ID = id
	slot.Normalize()
	return &slot, nil
}

// backupDocument is the stored payload of a snapshot.
type backupDocument struct {
	Slots []models.Slot `json:"slots"`
}

func encodeBackup(snapshot *models.BackupSnapshot) ([]byte, error) {
	slots := snapshot.Slots
	if slots == nil {
		slots = []models.Slot{}
	}
	return json.Marshal(backupDocument{Slots: slots})
}

func decodeBackup(data []byte) ([]models.Slot, error) {
	var doc backupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Slots == nil {
		doc.Slots = []models.Slot{}
	}
	return doc.Slots, nil
}

// exportRow turns one table row into an archive document. A JSON object held
// in a data column is merged into the document so stored documents come out
// the way they were written.
func exportRow(columns []string, values []any) map[string]any {
	doc := make(map[string]any, len(columns))
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if col == "data" {
			if merged := mergeData(doc, v); merged {
				continue
			}
		}
		doc[col] = v
	}
	if _, ok := doc["id"]; !ok {
		if key, ok := doc["key"]; ok {
			doc["id"] = key
		}
	}
	return doc
}

func mergeData(doc map[string]any, v any) bool {
	var fields map[string]any
	switch data := v.(type) {
	case string:
		if !strings.HasPrefix(strings.TrimSpace(data), "{") {
			return false
		}
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return false
		}
	case map[string]any:
		fields = data
	default:
		return false
	}
	for k, val := range fields {
		if _, taken := doc[k]; !taken {
			doc[k] = val
		}
	}
	return true
}
