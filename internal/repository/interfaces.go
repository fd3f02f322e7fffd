package repository

import (
	"context"

	"github.com/abrezinsky/slotboard/internal/models"
)

// SlotMutation changes a slot inside a store transaction. It receives a
// freshly read copy and may be invoked more than once when the transaction
// is retried, so it must not keep state between calls. Returning an error
// aborts the transaction without writing.
type SlotMutation func(slot *models.Slot) error

// SlotRepository defines schedule store operations
type SlotRepository interface {
	GetSlot(ctx context.Context, id string) (*models.Slot, error)
	// ListSlots returns every slot ordered by day index then block id.
	ListSlots(ctx context.Context) ([]models.Slot, error)
	HasSlots(ctx context.Context) (bool, error)
	// UpdateSlot runs fn as a read-modify-write transaction on one slot,
	// retrying on conflicting writes, and returns the committed slot.
	UpdateSlot(ctx context.Context, id string, fn SlotMutation) (*models.Slot, error)
	// SeedSlots writes all slots or none. It fails with ErrNotEmpty when
	// the collection already holds a slot.
	SeedSlots(ctx context.Context, slots []models.Slot) error
	// UpdateSlots applies fn to every listed slot in one atomic batch of at
	// most MaxBatchSize documents.
	UpdateSlots(ctx context.Context, ids []string, fn SlotMutation) error
}

// BackupRepository defines backup snapshot operations. Snapshots are append-only.
type BackupRepository interface {
	CreateBackup(ctx context.Context, snapshot *models.BackupSnapshot) error
	GetBackup(ctx context.Context, id string) (*models.BackupSnapshot, error)
	ListBackups(ctx context.Context) ([]models.BackupSummary, error)
}

// PreferencesRepository defines member preference operations
type PreferencesRepository interface {
	GetPreferences(ctx context.Context, uid string) (*models.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs *models.UserPreferences) error
}

// SettingsRepository defines settings data operations
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) (map[string]string, error)
}

// ArchiveRepository discovers and exports whole collections for offline archives.
type ArchiveRepository interface {
	ListCollections(ctx context.Context) ([]string, error)
	ExportCollection(ctx context.Context, name string) ([]map[string]any, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	SlotRepository
	BackupRepository
	PreferencesRepository
	SettingsRepository
	ArchiveRepository
	Ping(ctx context.Context) error
	Close() error
}

// Ensure both backends implement all interfaces
var (
	_ FullRepository = (*Repository)(nil)
	_ FullRepository = (*PostgresRepository)(nil)
)
