package mock

import (
	"context"
	"sync"

	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.CreateBackupError = errors.New("disk full")
//	svc := services.NewLifecycleService(log, mockRepo, catalog, admins, opts)
//	_, err := svc.RunBackupAndReset(ctx)
//	// err is now a backup failure and no slot was reset
type Repository struct {
	repository.FullRepository

	// ===== Slot Errors =====
	GetSlotError     error
	ListSlotsError   error
	HasSlotsError    error
	UpdateSlotError  error
	SeedSlotsError   error
	UpdateSlotsError error
	// UpdateSlotsFailAfter lets that many UpdateSlots batches succeed before
	// UpdateSlotsError is returned. Zero fails the first batch.
	UpdateSlotsFailAfter int

	// ===== Backup Errors =====
	CreateBackupError error
	GetBackupError    error
	ListBackupsError  error

	// ===== Preferences Errors =====
	GetPreferencesError  error
	SavePreferencesError error

	// ===== Settings Errors =====
	GetSettingError   error
	SetSettingError   error
	ListSettingsError error

	// ===== Archive Errors =====
	ListCollectionsError  error
	ExportCollectionError error

	mu    sync.Mutex
	calls map[string]int
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
		calls:          make(map[string]int),
	}
}

func (m *Repository) record(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.calls[method]
}

// Calls returns how often method was invoked, whether or not it failed.
func (m *Repository) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// ===== Slot Methods =====

func (m *Repository) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	m.record("GetSlot")
	if m.GetSlotError != nil {
		return nil, m.GetSlotError
	}
	return m.FullRepository.GetSlot(ctx, id)
}

func (m *Repository) ListSlots(ctx context.Context) ([]models.Slot, error) {
	m.record("ListSlots")
	if m.ListSlotsError != nil {
		return nil, m.ListSlotsError
	}
	return m.FullRepository.ListSlots(ctx)
}

func (m *Repository) HasSlots(ctx context.Context) (bool, error) {
	m.record("HasSlots")
	if m.HasSlotsError != nil {
		return false, m.HasSlotsError
	}
	return m.FullRepository.HasSlots(ctx)
}

func (m *Repository) UpdateSlot(ctx context.Context, id string, fn repository.SlotMutation) (*models.Slot, error) {
	m.record("UpdateSlot")
	if m.UpdateSlotError != nil {
		return nil, m.UpdateSlotError
	}
	return m.FullRepository.UpdateSlot(ctx, id, fn)
}

func (m *Repository) SeedSlots(ctx context.Context, slots []models.Slot) error {
	m.record("SeedSlots")
	if m.SeedSlotsError != nil {
		return m.SeedSlotsError
	}
	return m.FullRepository.SeedSlots(ctx, slots)
}

func (m *Repository) UpdateSlots(ctx context.Context, ids []string, fn repository.SlotMutation) error {
	n := m.record("UpdateSlots")
	if m.UpdateSlotsError != nil && n > m.UpdateSlotsFailAfter {
		return m.UpdateSlotsError
	}
	return m.FullRepository.UpdateSlots(ctx, ids, fn)
}

// ===== Backup Methods =====

func (m *Repository) CreateBackup(ctx context.Context, snapshot *models.BackupSnapshot) error {
	m.record("CreateBackup")
	if m.CreateBackupError != nil {
		return m.CreateBackupError
	}
	return m.FullRepository.CreateBackup(ctx, snapshot)
}

func (m *Repository) GetBackup(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	m.record("GetBackup")
	if m.GetBackupError != nil {
		return nil, m.GetBackupError
	}
	return m.FullRepository.GetBackup(ctx, id)
}

func (m *Repository) ListBackups(ctx context.Context) ([]models.BackupSummary, error) {
	m.record("ListBackups")
	if m.ListBackupsError != nil {
		return nil, m.ListBackupsError
	}
	return m.FullRepository.ListBackups(ctx)
}

// ===== Preferences Methods =====

func (m *Repository) GetPreferences(ctx context.Context, uid string) (*models.UserPreferences, error) {
	m.record("GetPreferences")
	if m.GetPreferencesError != nil {
		return nil, m.GetPreferencesError
	}
	return m.FullRepository.GetPreferences(ctx, uid)
}

func (m *Repository) SavePreferences(ctx context.Context, prefs *models.UserPreferences) error {
	m.record("SavePreferences")
	if m.SavePreferencesError != nil {
		return m.SavePreferencesError
	}
	return m.FullRepository.SavePreferences(ctx, prefs)
}

// ===== Settings Methods =====

func (m *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	m.record("GetSetting")
	if m.GetSettingError != nil {
		return "", m.GetSettingError
	}
	return m.FullRepository.GetSetting(ctx, key)
}

func (m *Repository) SetSetting(ctx context.Context, key, value string) error {
	m.record("SetSetting")
	if m.SetSettingError != nil {
		return m.SetSettingError
	}
	return m.FullRepository.SetSetting(ctx, key, value)
}

func (m *Repository) ListSettings(ctx context.Context) (map[string]string, error) {
	m.record("ListSettings")
	if m.ListSettingsError != nil {
		return nil, m.ListSettingsError
	}
	return m.FullRepository.ListSettings(ctx)
}

// ===== Archive Methods =====

func (m *Repository) ListCollections(ctx context.Context) ([]string, error) {
	m.record("ListCollections")
	if m.ListCollectionsError != nil {
		return nil, m.ListCollectionsError
	}
	return m.FullRepository.ListCollections(ctx)
}

func (m *Repository) ExportCollection(ctx context.Context, name string) ([]map[string]any, error) {
	m.record("ExportCollection")
	if m.ExportCollectionError != nil {
		return nil, m.ExportCollectionError
	}
	return m.FullRepository.ExportCollection(ctx, name)
}

// Ensure Repository implements FullRepository
var _ repository.FullRepository = (*Repository)(nil)
