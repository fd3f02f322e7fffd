package services_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/repository/mock"
	"github.com/abrezinsky/slotboard/internal/schedule"
	"github.com/abrezinsky/slotboard/internal/services"
	"github.com/abrezinsky/slotboard/internal/testutil"
)

func newLifecycleService(repo services.LifecycleRepository) *services.LifecycleService {
	svc := services.NewLifecycleService(logger.New(), repo, schedule.DefaultCatalog(), testutil.DefaultAdmins(),
		services.Options{Location: time.UTC, CutoffHour: schedule.DefaultCutoffHour})
	svc.SetClock(testutil.NewClock(testNow).Now)
	return svc
}

func setupLifecycleService(t *testing.T) (*services.LifecycleService, *repository.Repository, *testutil.RecordingBroadcaster) {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	svc := newLifecycleService(repo)
	b := &testutil.RecordingBroadcaster{}
	svc.SetBroadcaster(b)
	return svc, repo, b
}

func joinPlayers(t *testing.T, repo repository.SlotRepository, slotID string, priority int, uidList ...string) {
	t.Helper()
	_, err := repo.UpdateSlot(context.Background(), slotID, func(s *models.Slot) error {
		opt, _ := s.Option(priority)
		for _, uid := range uidList {
			opt.Players = append(opt.Players, models.Player{UID: uid, Name: "Player " + uid})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to add players: %v", err)
	}
}

// =============================================================================
// Seeding
// =============================================================================

func TestLifecycleService_SeedIfEmpty(t *testing.T) {
	svc, repo, b := setupLifecycleService(t)
	ctx := context.Background()

	result, err := svc.SeedIfEmpty(ctx, testutil.Admin())
	if err != nil {
		t.Fatalf("SeedIfEmpty failed: %v", err)
	}
	if result.Slots != 28 {
		t.Errorf("expected 28 slots, got %d", result.Slots)
	}

	slots, err := repo.ListSlots(ctx)
	if err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}
	if len(slots) != 28 {
		t.Fatalf("expected 28 stored slots, got %d", len(slots))
	}
	if types := b.Types(); len(types) != 1 || types[0] != services.EventScheduleSeeded {
		t.Errorf("expected schedule_seeded broadcast, got %v", types)
	}
}

func TestLifecycleService_SeedIfEmpty_Twice(t *testing.T) {
	svc, repo, _ := setupLifecycleService(t)
	ctx := context.Background()

	if _, err := svc.SeedIfEmpty(ctx, testutil.Admin()); err != nil {
		t.Fatalf("first SeedIfEmpty failed: %v", err)
	}
	joinPlayers(t, repo, thursdayPickleball, 0, "u1")

	_, err := svc.SeedIfEmpty(ctx, testutil.Admin())
	if err != services.ErrAlreadySeeded {
		t.Fatalf("expected ErrAlreadySeeded, got %v", err)
	}
	if errors.KindOf(err) != errors.ErrAlreadySeeded {
		t.Errorf("expected AlreadySeeded kind, got %v", errors.KindOf(err))
	}

	slots, _ := repo.ListSlots(ctx)
	if len(slots) != 28 {
		t.Errorf("expected 28 slots, got %d", len(slots))
	}
	stored, _ := repo.GetSlot(ctx, thursdayPickleball)
	if !stored.P0.Has("u1") {
		t.Error("expected first seeding to be left untouched")
	}
}

func TestLifecycleService_RunSeed_Concurrent(t *testing.T) {
	svc, repo, _ := setupLifecycleService(t)
	ctx := context.Background()

	const seeders = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seeded  int
		already int
	)
	for i := 0; i < seeders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RunSeed(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				seeded++
			case services.ErrAlreadySeeded:
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if seeded != 1 || already != seeders-1 {
		t.Errorf("expected exactly one seeder to win, got %d seeded and %d refused", seeded, already)
	}
	slots, _ := repo.ListSlots(ctx)
	if len(slots) != 28 {
		t.Errorf("expected 28 slots, got %d", len(slots))
	}
}

func TestLifecycleService_RequiresAdmin(t *testing.T) {
	svc, _, _ := setupLifecycleService(t)
	ctx := context.Background()

	calls := map[string]func(who models.Identity) error{
		"SeedIfEmpty": func(who models.Identity) error {
			_, err := svc.SeedIfEmpty(ctx, who)
			return err
		},
		"BackupAndReset": func(who models.Identity) error {
			_, err := svc.BackupAndReset(ctx, who)
			return err
		},
		"ListBackups": func(who models.Identity) error {
			_, err := svc.ListBackups(ctx, who)
			return err
		},
		"GetBackup": func(who models.Identity) error {
			_, err := svc.GetBackup(ctx, who, "2026-10-14")
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(models.Identity{}); err != services.ErrNotSignedIn {
				t.Errorf("anonymous: expected ErrNotSignedIn, got %v", err)
			}
			err := call(testutil.Member("u1"))
			if err != services.ErrAdminOnly {
				t.Errorf("member: expected ErrAdminOnly, got %v", err)
			}
			if errors.KindOf(err) != errors.ErrForbidden {
				t.Errorf("member: expected Forbidden kind, got %v", errors.KindOf(err))
			}
		})
	}
}

func TestLifecycleService_Seed_StoreErrors(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	mockRepo := mock.NewRepository(repo)
	svc := newLifecycleService(mockRepo)
	ctx := context.Background()

	mockRepo.HasSlotsError = stderrors.New("probe failed")
	if _, err := svc.RunSeed(ctx); err == nil || err.Error() != "probe failed" {
		t.Errorf("expected probe error, got %v", err)
	}

	mockRepo.HasSlotsError = nil
	mockRepo.SeedSlotsError = repository.ErrNotEmpty
	if _, err := svc.RunSeed(ctx); err != services.ErrAlreadySeeded {
		t.Errorf("expected a lost seeding race to report ErrAlreadySeeded, got %v", err)
	}
}

// =============================================================================
// Backup and reset
// =============================================================================

func TestLifecycleService_BackupAndReset(t *testing.T) {
	svc, repo, b := setupLifecycleService(t)
	ctx := context.Background()
	testutil.SeedWeek(t, repo, testNow)

	joinPlayers(t, repo, thursdayPickleball, 0, "u1", "u2")
	joinPlayers(t, repo, thursdayPickleball, 1, "u3")
	joinPlayers(t, repo, mondayAfternoon, 0, "u4")
	_, err := repo.UpdateSlot(ctx, mondayAfternoon, func(s *models.Slot) error {
		s.ActivePriority = 1
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}

	before, err := repo.ListSlots(ctx)
	if err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}

	result, err := svc.BackupAndReset(ctx, testutil.Admin())
	if err != nil {
		t.Fatalf("BackupAndReset failed: %v", err)
	}
	if result.BackupID != "2026-10-14" || result.SlotsReset != 28 || result.Batches != 1 {
		t.Errorf("unexpected result %+v", result)
	}

	// The snapshot reproduces the pre-reset state exactly.
	snap, err := svc.GetBackup(ctx, testutil.Admin(), result.BackupID)
	if err != nil {
		t.Fatalf("GetBackup failed: %v", err)
	}
	if !reflect.DeepEqual(snap.Slots, before) {
		t.Errorf("snapshot differs from pre-reset slots")
	}

	after, _ := repo.ListSlots(ctx)
	byID := map[string]models.Slot{}
	for _, s := range before {
		byID[s.ID] = s
	}
	for _, s := range after {
		old := byID[s.ID]
		if len(s.P0.Players) != 0 || len(s.P1.Players) != 0 || s.ActivePriority != 0 {
			t.Errorf("slot %s not cleared: %+v", s.ID, s)
		}
		oldCutoff, _, _ := old.CutoffTime()
		newCutoff, ok, err := s.CutoffTime()
		if !ok || err != nil || !newCutoff.Equal(oldCutoff.AddDate(0, 0, 7)) {
			t.Errorf("slot %s: expected cutoff %v, got %q", s.ID, oldCutoff.AddDate(0, 0, 7), s.Cutoff)
		}
		wantDate, _ := schedule.AdvanceDayDate(old.DayDate)
		if s.DayDate != wantDate {
			t.Errorf("slot %s: expected day date %s, got %s", s.ID, wantDate, s.DayDate)
		}
		if s.P0.Sport != old.P0.Sport || s.P1.Sport != old.P1.Sport || s.DayIndex != old.DayIndex {
			t.Errorf("slot %s: reset must not touch the offering", s.ID)
		}
	}

	if types := b.Types(); len(types) != 1 || types[0] != services.EventScheduleReset {
		t.Errorf("expected schedule_reset broadcast, got %v", types)
	}
}

func TestLifecycleService_BackupAndReset_SameDayGetsSuffix(t *testing.T) {
	svc, repo, _ := setupLifecycleService(t)
	ctx := context.Background()
	testutil.SeedWeek(t, repo, testNow)
	joinPlayers(t, repo, thursdayPickleball, 0, "u1")

	first, err := svc.RunBackupAndReset(ctx)
	if err != nil {
		t.Fatalf("first reset failed: %v", err)
	}
	second, err := svc.RunBackupAndReset(ctx)
	if err != nil {
		t.Fatalf("second reset failed: %v", err)
	}
	third, err := svc.RunBackupAndReset(ctx)
	if err != nil {
		t.Fatalf("third reset failed: %v", err)
	}

	if first.BackupID != "2026-10-14" || second.BackupID != "2026-10-14-2" || third.BackupID != "2026-10-14-3" {
		t.Errorf("unexpected backup ids %s %s %s", first.BackupID, second.BackupID, third.BackupID)
	}

	// The first snapshot still holds the original roster.
	snap, err := repo.GetBackup(ctx, first.BackupID)
	if err != nil {
		t.Fatalf("GetBackup failed: %v", err)
	}
	found := false
	for _, s := range snap.Slots {
		if s.ID == thursdayPickleball && s.P0.Has("u1") {
			found = true
		}
	}
	if !found {
		t.Error("expected first snapshot to be preserved")
	}

	backups, err := svc.ListBackups(ctx, testutil.Admin())
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}
	if len(backups) != 3 {
		t.Errorf("expected 3 backups, got %d", len(backups))
	}
}

func TestLifecycleService_Reset_MissingOrInvalidCutoff(t *testing.T) {
	svc, repo, _ := setupLifecycleService(t)
	ctx := context.Background()
	testutil.SeedWeek(t, repo, testNow)

	for id, cutoff := range map[string]string{thursdayPickleball: "", mondayAfternoon: "not a time"} {
		if _, err := repo.UpdateSlot(ctx, id, func(s *models.Slot) error {
			s.Cutoff = cutoff
			return nil
		}); err != nil {
			t.Fatalf("UpdateSlot failed: %v", err)
		}
	}

	if _, err := svc.RunBackupAndReset(ctx); err != nil {
		t.Fatalf("RunBackupAndReset failed: %v", err)
	}

	for _, id := range []string{thursdayPickleball, mondayAfternoon} {
		slot, _ := repo.GetSlot(ctx, id)
		cutoff, ok, err := slot.CutoffTime()
		if !ok || err != nil || !cutoff.Equal(testNow.AddDate(0, 0, 7)) {
			t.Errorf("slot %s: expected cutoff a week from now, got %q", id, slot.Cutoff)
		}
	}
}

func TestLifecycleService_Reset_InvalidDayDate(t *testing.T) {
	svc, repo, _ := setupLifecycleService(t)
	ctx := context.Background()
	testutil.SeedWeek(t, repo, testNow)

	if _, err := repo.UpdateSlot(ctx, thursdayPickleball, func(s *models.Slot) error {
		s.DayDate = "Thursday"
		return nil
	}); err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}

	if _, err := svc.RunBackupAndReset(ctx); err != nil {
		t.Fatalf("RunBackupAndReset failed: %v", err)
	}
	slot, _ := repo.GetSlot(ctx, thursdayPickleball)
	if slot.DayDate != "2026-10-22" {
		t.Errorf("expected next Thursday, got %s", slot.DayDate)
	}
}

func TestLifecycleService_BackupFailureResetsNothing(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	testutil.SeedWeek(t, repo, testNow)
	joinPlayers(t, repo, thursdayPickleball, 0, "u1")

	mockRepo := mock.NewRepository(repo)
	mockRepo.CreateBackupError = stderrors.New("quota exceeded")
	svc := newLifecycleService(mockRepo)
	ctx := context.Background()

	result, err := svc.RunBackupAndReset(ctx)
	if result != nil {
		t.Errorf("expected no result, got %+v", result)
	}
	if errors.KindOf(err) != errors.ErrBackupFailed {
		t.Fatalf("expected BackupFailed kind, got %v", err)
	}
	if mockRepo.Calls("UpdateSlots") != 0 {
		t.Errorf("expected no reset batches, got %d", mockRepo.Calls("UpdateSlots"))
	}

	stored, _ := repo.GetSlot(ctx, thursdayPickleball)
	if !stored.P0.Has("u1") {
		t.Error("expected roster to be untouched")
	}
}

func TestLifecycleService_ReadFailureWritesNothing(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	testutil.SeedWeek(t, repo, testNow)
	mockRepo := mock.NewRepository(repo)
	mockRepo.ListSlotsError = stderrors.New("read failed")
	svc := newLifecycleService(mockRepo)

	if _, err := svc.RunBackupAndReset(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if mockRepo.Calls("CreateBackup") != 0 || mockRepo.Calls("UpdateSlots") != 0 {
		t.Error("expected nothing to be written")
	}
}

func TestLifecycleService_PartialReset(t *testing.T) {
	const total = 450
	repo := testutil.NewTestRepository(t)
	ctx := context.Background()

	slots := make([]models.Slot, total)
	for i := range slots {
		blockID := fmt.Sprintf("x%03d", i)
		slots[i] = models.Slot{
			ID:       models.SlotID(i%7, blockID),
			DayIndex: i % 7,
			DayDate:  "2026-10-14",
			BlockID:  blockID,
			P0: models.PriorityOption{
				Sport:      "Pickleball",
				MinPlayers: 4,
				MaxPlayers: 20,
				Players:    []models.Player{{UID: "u1", Name: "One"}},
			},
			P1: models.PriorityOption{Sport: "Open Badminton"},
		}
		slots[i].SetCutoff(testNow)
	}
	if err := repo.SeedSlots(ctx, slots); err != nil {
		t.Fatalf("SeedSlots failed: %v", err)
	}

	mockRepo := mock.NewRepository(repo)
	mockRepo.UpdateSlotsError = stderrors.New("batch rejected")
	mockRepo.UpdateSlotsFailAfter = 1
	svc := newLifecycleService(mockRepo)

	result, err := svc.RunBackupAndReset(ctx)
	var partial *services.PartialResetError
	if !stderrors.As(err, &partial) {
		t.Fatalf("expected PartialResetError, got %v", err)
	}
	if partial.SlotsReset != repository.MaxBatchSize || partial.Total != total {
		t.Errorf("unexpected partial error %+v", partial)
	}
	if result == nil || result.SlotsReset != repository.MaxBatchSize || result.Batches != 1 || result.BackupID == "" {
		t.Errorf("unexpected result %+v", result)
	}

	stored, _ := repo.ListSlots(ctx)
	cleared := 0
	for _, s := range stored {
		if len(s.P0.Players) == 0 {
			cleared++
		}
	}
	if cleared != repository.MaxBatchSize {
		t.Errorf("expected %d cleared slots, got %d", repository.MaxBatchSize, cleared)
	}

	// The backup was complete before any batch ran.
	snap, err := repo.GetBackup(ctx, result.BackupID)
	if err != nil {
		t.Fatalf("GetBackup failed: %v", err)
	}
	if len(snap.Slots) != total {
		t.Errorf("expected %d slots in backup, got %d", total, len(snap.Slots))
	}
}

func TestLifecycleService_GetBackup_NotFound(t *testing.T) {
	svc, _, _ := setupLifecycleService(t)

	_, err := svc.GetBackup(context.Background(), testutil.Admin(), "1999-01-01")
	if err != services.ErrBackupNotFound {
		t.Errorf("expected ErrBackupNotFound, got %v", err)
	}
}
