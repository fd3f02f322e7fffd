package services

import (
	"context"

	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

// Live event types
const (
	EventSlots          = "slots"
	EventSlotUpdated    = "slot_updated"
	EventScheduleSeeded = "schedule_seeded"
	EventScheduleReset  = "schedule_reset"
)

// Broadcaster defines the interface for broadcasting messages to clients
type Broadcaster interface {
	BroadcastMessage(msgType string, payload interface{})
}

// AdminChecker decides whether an email is on the admin allow-list
type AdminChecker interface {
	IsAdmin(email string) bool
}

// RosterServicer defines the interface for roster mutations
type RosterServicer interface {
	Join(ctx context.Context, who models.Identity, slotID string, priority int) (*models.Slot, error)
	Leave(ctx context.Context, who models.Identity, slotID string, priority int) (*models.Slot, error)
	AddGuest(ctx context.Context, who models.Identity, slotID string, priority int, guest GuestData) (*models.Slot, error)
	RemoveGuest(ctx context.Context, who models.Identity, slotID string, priority int, guestUID string) (*models.Slot, error)
	SetBroadcaster(b Broadcaster)
}

// LifecycleServicer defines the interface for the weekly seed/backup/reset cycle
type LifecycleServicer interface {
	SeedIfEmpty(ctx context.Context, who models.Identity) (*SeedResult, error)
	RunSeed(ctx context.Context) (*SeedResult, error)
	BackupAndReset(ctx context.Context, who models.Identity) (*ResetResult, error)
	RunBackupAndReset(ctx context.Context) (*ResetResult, error)
	ListBackups(ctx context.Context, who models.Identity) ([]models.BackupSummary, error)
	GetBackup(ctx context.Context, who models.Identity, id string) (*models.BackupSnapshot, error)
	SetBroadcaster(b Broadcaster)
}

// BoardServicer defines the interface for board queries
type BoardServicer interface {
	ListSlots(ctx context.Context, who models.Identity, filter Filter) ([]SlotView, error)
	GetSlot(ctx context.Context, who models.Identity, id string) (*SlotView, error)
	Snapshot(ctx context.Context) ([]models.Slot, error)
	Sports() []string
	Catalog() schedule.Catalog
	IsAdmin(who models.Identity) bool
}

// PreferencesServicer defines the interface for member preferences
type PreferencesServicer interface {
	GetPreferences(ctx context.Context, who models.Identity) (*models.UserPreferences, error)
	SavePreferences(ctx context.Context, who models.Identity, sports []string) (*models.UserPreferences, error)
}

// SettingsServicer defines the interface for settings operations
type SettingsServicer interface {
	GetBoardURL(ctx context.Context) (string, error)
	SetBoardURL(ctx context.Context, url string) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]interface{}, error)
	UpdateSettings(ctx context.Context, settings Settings) error
}

// Ensure concrete types implement interfaces
var (
	_ RosterServicer      = (*RosterService)(nil)
	_ LifecycleServicer   = (*LifecycleService)(nil)
	_ BoardServicer       = (*BoardService)(nil)
	_ PreferencesServicer = (*PreferencesService)(nil)
	_ SettingsServicer    = (*SettingsService)(nil)
)
