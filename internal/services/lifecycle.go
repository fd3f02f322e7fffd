package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

// maxBackupsPerDay bounds the -N suffix search for a free backup id.
const maxBackupsPerDay = 50

// LifecycleRepository defines the repository methods needed by LifecycleService
type LifecycleRepository interface {
	repository.SlotRepository
	repository.BackupRepository
}

// Options configures the weekly calendar.
type Options struct {
	Location   *time.Location
	CutoffHour int
}

// SeedResult reports a completed seed.
type SeedResult struct {
	Slots int `json:"slots"`
}

// ResetResult reports a weekly backup and reset.
type ResetResult struct {
	BackupID    string `json:"backupId"`
	SlotsReset  int    `json:"slotsReset"`
	Batches     int    `json:"batches"`
	ArchivePath string `json:"archivePath,omitempty"`
}

// LifecycleService seeds the weekly schedule and rolls it over each week
type LifecycleService struct {
	log         logger.Logger
	repo        LifecycleRepository
	catalog     schedule.Catalog
	admins      AdminChecker
	loc         *time.Location
	cutoffHour  int
	broadcaster Broadcaster
	now         func() time.Time
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(log logger.Logger, repo LifecycleRepository, catalog schedule.Catalog, admins AdminChecker, opts Options) *LifecycleService {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &LifecycleService{
		log:        log,
		repo:       repo,
		catalog:    catalog,
		admins:     admins,
		loc:        loc,
		cutoffHour: opts.CutoffHour,
		now:        time.Now,
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *LifecycleService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the time source.
func (s *LifecycleService) SetClock(now func() time.Time) {
	s.now = now
}

// SeedIfEmpty creates the weekly template when no slots exist yet.
func (s *LifecycleService) SeedIfEmpty(ctx context.Context, who models.Identity) (*SeedResult, error) {
	if err := s.requireAdmin(who); err != nil {
		return nil, err
	}
	return s.RunSeed(ctx)
}

// RunSeed seeds without an identity check. It backs the operator CLI.
func (s *LifecycleService) RunSeed(ctx context.Context) (*SeedResult, error) {
	exists, err := s.repo.HasSlots(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadySeeded
	}

	slots := schedule.BuildWeek(s.now().In(s.loc), s.cutoffHour, s.catalog)
	if err := s.repo.SeedSlots(ctx, slots); err != nil {
		if stderrors.Is(err, repository.ErrNotEmpty) {
			return nil, ErrAlreadySeeded
		}
		return nil, err
	}

	s.log.Info("Schedule seeded", "slots", len(slots))
	s.broadcast(EventScheduleSeeded, slots)
	return &SeedResult{Slots: len(slots)}, nil
}

// BackupAndReset snapshots every slot and starts a fresh week.
func (s *LifecycleService) BackupAndReset(ctx context.Context, who models.Identity) (*ResetResult, error) {
	if err := s.requireAdmin(who); err != nil {
		return nil, err
	}
	result, err := s.RunBackupAndReset(ctx)
	if err == nil {
		s.log.Info("Weekly reset requested", "admin", who.Email)
	}
	return result, err
}

// RunBackupAndReset is the elevated reset used by scheduled jobs.
//
// The snapshot is written before any slot is touched; if it cannot be
// written nothing is reset. Slots are then reset in batches of
// repository.MaxBatchSize. A failing batch stops the run and the returned
// *PartialResetError says how many slots were already reset.
func (s *LifecycleService) RunBackupAndReset(ctx context.Context) (*ResetResult, error) {
	now := s.now().In(s.loc)

	slots, err := s.repo.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slots: %w", err)
	}

	backupID, err := s.createBackup(ctx, now, slots)
	if err != nil {
		s.log.Error("Backup failed, schedule left untouched", "error", err)
		return nil, errors.BackupFailed(err)
	}
	s.log.Info("Backup written", "backup", backupID, "slots", len(slots))

	ids := make([]string, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
	}

	result := &ResetResult{BackupID: backupID}
	reset := s.resetSlot(now)
	for start := 0; start < len(ids); start += repository.MaxBatchSize {
		end := min(start+repository.MaxBatchSize, len(ids))
		if err := s.repo.UpdateSlots(ctx, ids[start:end], reset); err != nil {
			s.log.Error("Reset batch failed", "batch", result.Batches+1, "reset", result.SlotsReset, "total", len(ids), "error", err)
			return result, &PartialResetError{
				BackupID:   backupID,
				SlotsReset: result.SlotsReset,
				Total:      len(ids),
				Err:        err,
			}
		}
		result.SlotsReset += end - start
		result.Batches++
	}

	s.log.Info("Weekly reset complete", "backup", backupID, "slots", result.SlotsReset, "batches", result.Batches)
	s.broadcast(EventScheduleReset, result)
	return result, nil
}

// ListBackups returns backup summaries, newest first.
func (s *LifecycleService) ListBackups(ctx context.Context, who models.Identity) ([]models.BackupSummary, error) {
	if err := s.requireAdmin(who); err != nil {
		return nil, err
	}
	return s.repo.ListBackups(ctx)
}

// GetBackup returns one snapshot with its slots.
func (s *LifecycleService) GetBackup(ctx context.Context, who models.Identity, id string) (*models.BackupSnapshot, error) {
	if err := s.requireAdmin(who); err != nil {
		return nil, err
	}
	snap, err := s.repo.GetBackup(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrBackupNotFound
	}
	return snap, err
}

// createBackup stores slots under the date of now. Existing snapshots are
// never overwritten; later runs on the same date get -2, -3, ... suffixes.
func (s *LifecycleService) createBackup(ctx context.Context, now time.Time, slots []models.Slot) (string, error) {
	base := now.Format(schedule.DayDateLayout)
	for n := 1; n <= maxBackupsPerDay; n++ {
		id := base
		if n > 1 {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		err := s.repo.CreateBackup(ctx, &models.BackupSnapshot{ID: id, Slots: slots})
		if err == nil {
			return id, nil
		}
		if !stderrors.Is(err, repository.ErrAlreadyExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free backup id for %s after %d attempts", base, maxBackupsPerDay)
}

// resetSlot empties both rosters and moves the slot one week forward.
func (s *LifecycleService) resetSlot(now time.Time) repository.SlotMutation {
	return func(slot *models.Slot) error {
		slot.P0.Players = []models.Player{}
		slot.P1.Players = []models.Player{}
		slot.ActivePriority = models.PriorityPrimary

		if cutoff, ok, err := slot.CutoffTimeIn(s.loc); ok && err == nil {
			slot.SetCutoff(schedule.AdvanceCutoff(cutoff, s.loc))
		} else {
			slot.SetCutoff(now.AddDate(0, 0, 7))
		}

		if next, ok := schedule.AdvanceDayDate(slot.DayDate); ok {
			slot.DayDate = next
		} else {
			slot.DayDate = schedule.WeekDate(now, slot.DayIndex).AddDate(0, 0, 7).Format(schedule.DayDateLayout)
		}
		return nil
	}
}

func (s *LifecycleService) requireAdmin(who models.Identity) error {
	if who.IsAnonymous() {
		return ErrNotSignedIn
	}
	if !s.admins.IsAdmin(who.Email) {
		return ErrAdminOnly
	}
	return nil
}

func (s *LifecycleService) broadcast(msgType string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(msgType, payload)
	}
}
