package services_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
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

// testNow is Wednesday morning; Sunday through Tuesday are already past.
var testNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// thursdayPickleball offers Pickleball (p0) and Open Badminton (p1); its cutoff is Thursday noon.
const thursdayPickleball = "4_8-10"

// mondayAfternoon offers Open Badminton (p0); its cutoff has already passed.
const mondayAfternoon = "1_1-5"

func setupRosterService(t *testing.T, catalog schedule.Catalog) (*services.RosterService, *repository.Repository, *testutil.RecordingBroadcaster) {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	testutil.SeedWeek(t, repo, testNow)

	svc := services.NewRosterService(logger.New(), repo, catalog, testutil.DefaultAdmins())
	svc.SetClock(testutil.NewClock(testNow).Now)
	b := &testutil.RecordingBroadcaster{}
	svc.SetBroadcaster(b)
	return svc, repo, b
}

func smallCatalog(max, mainLimit int) schedule.Catalog {
	catalog := schedule.DefaultCatalog()
	catalog["Pickleball"] = schedule.SportMeta{Min: 1, Max: max, MainLimit: mainLimit, WaitingList: max - mainLimit}
	return catalog
}

func setSport(t *testing.T, repo repository.SlotRepository, slotID string, priority int, sport string) {
	t.Helper()
	_, err := repo.UpdateSlot(context.Background(), slotID, func(s *models.Slot) error {
		opt, err := s.Option(priority)
		if err != nil {
			return err
		}
		opt.Sport = sport
		return nil
	})
	if err != nil {
		t.Fatalf("failed to set sport: %v", err)
	}
}

func uids(players []models.Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.UID
	}
	return out
}

// =============================================================================
// Join
// =============================================================================

func TestRosterService_Join(t *testing.T) {
	svc, repo, b := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()

	slot, err := svc.Join(ctx, testutil.Member("u1"), thursdayPickleball, 0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if len(slot.P0.Players) != 1 || slot.P0.Players[0].UID != "u1" || slot.P0.Players[0].Name != "Member u1" {
		t.Errorf("unexpected roster %+v", slot.P0.Players)
	}

	stored, err := repo.GetSlot(ctx, thursdayPickleball)
	if err != nil {
		t.Fatalf("GetSlot failed: %v", err)
	}
	if !stored.P0.Has("u1") {
		t.Error("expected join to be persisted")
	}
	if types := b.Types(); len(types) != 1 || types[0] != services.EventSlotUpdated {
		t.Errorf("expected one slot_updated broadcast, got %v", types)
	}
}

func TestRosterService_Join_NamelessPlayer(t *testing.T) {
	svc, _, _ := setupRosterService(t, schedule.DefaultCatalog())

	slot, err := svc.Join(context.Background(), models.Identity{UID: "u9"}, thursdayPickleball, 1)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if slot.P1.Players[0].Name != "Player" {
		t.Errorf("expected default name, got %q", slot.P1.Players[0].Name)
	}
}

func TestRosterService_Join_IsIdempotent(t *testing.T) {
	svc, _, b := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()
	who := testutil.Member("u1")

	if _, err := svc.Join(ctx, who, thursdayPickleball, 0); err != nil {
		t.Fatalf("first Join failed: %v", err)
	}
	slot, err := svc.Join(ctx, who, thursdayPickleball, 0)
	if err != nil {
		t.Fatalf("second Join failed: %v", err)
	}
	if len(slot.P0.Players) != 1 {
		t.Errorf("expected a single entry, got %v", uids(slot.P0.Players))
	}
	if n := len(b.Messages()); n != 1 {
		t.Errorf("expected no broadcast for the no-op, got %d messages", n)
	}
}

func TestRosterService_Join_Rejections(t *testing.T) {
	svc, repo, _ := setupRosterService(t, schedule.DefaultCatalog())
	setSport(t, repo, thursdayPickleball, 1, models.NoGames)

	tests := []struct {
		name     string
		who      models.Identity
		slotID   string
		priority int
		wantErr  error
		wantKind errors.Kind
	}{
		{"anonymous", models.Identity{}, thursdayPickleball, 0, services.ErrNotSignedIn, errors.ErrUnauthorized},
		{"bad priority", testutil.Member("u1"), thursdayPickleball, 2, services.ErrInvalidPriority, errors.ErrInvalidInput},
		{"negative priority", testutil.Member("u1"), thursdayPickleball, -1, services.ErrInvalidPriority, errors.ErrInvalidInput},
		{"missing slot", testutil.Member("u1"), "4_nope", 0, services.ErrSlotNotFound, errors.ErrNotFound},
		{"no games", testutil.Member("u1"), thursdayPickleball, 1, services.ErrSlotUnavailable, errors.ErrSlotUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := svc.Join(context.Background(), tt.who, tt.slotID, tt.priority)
			if !stderrors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if errors.KindOf(err) != tt.wantKind {
				t.Errorf("expected kind %v, got %v", tt.wantKind, errors.KindOf(err))
			}
			if slot != nil {
				t.Errorf("expected nil slot, got %+v", slot)
			}
		})
	}

	stored, _ := repo.GetSlot(context.Background(), thursdayPickleball)
	if len(stored.P0.Players)+len(stored.P1.Players) != 0 {
		t.Errorf("rejected joins must not write, got %+v", stored)
	}
}

func TestRosterService_Join_Full(t *testing.T) {
	svc, repo, _ := setupRosterService(t, smallCatalog(2, 1))
	ctx := context.Background()

	for _, uid := range []string{"u1", "u2"} {
		if _, err := svc.Join(ctx, testutil.Member(uid), thursdayPickleball, 0); err != nil {
			t.Fatalf("Join %s failed: %v", uid, err)
		}
	}

	_, err := svc.Join(ctx, testutil.Member("u3"), thursdayPickleball, 0)
	if err != services.ErrSlotFull {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}
	if errors.KindOf(err) != errors.ErrFull {
		t.Errorf("expected Full kind, got %v", errors.KindOf(err))
	}

	// A member already on a full roster still gets a successful no-op.
	if _, err := svc.Join(ctx, testutil.Member("u1"), thursdayPickleball, 0); err != nil {
		t.Errorf("expected idempotent join on full roster, got %v", err)
	}

	stored, _ := repo.GetSlot(ctx, thursdayPickleball)
	if got := uids(stored.P0.Players); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("unexpected roster %v", got)
	}
}

func TestRosterService_Join_UsesLiveCatalogMax(t *testing.T) {
	// The seeded snapshot says 20; the live catalog says 1.
	svc, repo, _ := setupRosterService(t, smallCatalog(1, 1))
	ctx := context.Background()

	stored, _ := repo.GetSlot(ctx, thursdayPickleball)
	if stored.P0.MaxPlayers != 20 {
		t.Fatalf("expected seeded snapshot of 20, got %d", stored.P0.MaxPlayers)
	}

	if _, err := svc.Join(ctx, testutil.Member("u1"), thursdayPickleball, 0); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := svc.Join(ctx, testutil.Member("u2"), thursdayPickleball, 0); err != services.ErrSlotFull {
		t.Errorf("expected ErrSlotFull from live max, got %v", err)
	}
}

func TestRosterService_Join_ConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity = 5
	const joiners = 20
	svc, repo, _ := setupRosterService(t, smallCatalog(capacity, 3))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		joined  int
		full    int
		unknown []error
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Join(ctx, testutil.Member(fmt.Sprintf("u%02d", i)), thursdayPickleball, 0)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				joined++
			case services.ErrSlotFull:
				full++
			default:
				unknown = append(unknown, err)
			}
		}(i)
	}
	wg.Wait()

	if len(unknown) > 0 {
		t.Fatalf("unexpected errors: %v", unknown)
	}
	if joined != capacity || full != joiners-capacity {
		t.Errorf("expected %d joined and %d full, got %d and %d", capacity, joiners-capacity, joined, full)
	}

	stored, _ := repo.GetSlot(ctx, thursdayPickleball)
	if len(stored.P0.Players) != capacity {
		t.Errorf("expected %d players, got %d", capacity, len(stored.P0.Players))
	}
	seen := map[string]bool{}
	for _, p := range stored.P0.Players {
		if seen[p.UID] {
			t.Errorf("duplicate entry for %s", p.UID)
		}
		seen[p.UID] = true
	}
}

func TestRosterService_Join_RecomputesActivePriority(t *testing.T) {
	svc, repo, _ := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()

	// Monday's cutoff has passed and Open Badminton needs 4.
	slot, err := svc.Join(ctx, testutil.Member("u1"), mondayAfternoon, 0)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if slot.ActivePriority != 1 {
		t.Errorf("expected fallback to be active below minimum, got %d", slot.ActivePriority)
	}

	for _, uid := range []string{"u2", "u3", "u4"} {
		if slot, err = svc.Join(ctx, testutil.Member(uid), mondayAfternoon, 0); err != nil {
			t.Fatalf("Join %s failed: %v", uid, err)
		}
	}
	if slot.ActivePriority != 0 {
		t.Errorf("expected primary once minimum is met, got %d", slot.ActivePriority)
	}

	stored, _ := repo.GetSlot(ctx, mondayAfternoon)
	if stored.ActivePriority != 0 {
		t.Errorf("expected stored priority 0, got %d", stored.ActivePriority)
	}
}

func TestRosterService_Join_StoreErrors(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	testutil.SeedWeek(t, repo, testNow)
	mockRepo := mock.NewRepository(repo)
	svc := services.NewRosterService(logger.New(), mockRepo, schedule.DefaultCatalog(), testutil.DefaultAdmins())
	ctx := context.Background()

	mockRepo.UpdateSlotError = repository.ErrConflict
	_, err := svc.Join(ctx, testutil.Member("u1"), thursdayPickleball, 0)
	if err != services.ErrSlotBusy {
		t.Errorf("expected ErrSlotBusy, got %v", err)
	}
	if errors.KindOf(err) != errors.ErrConflict {
		t.Errorf("expected Conflict kind, got %v", errors.KindOf(err))
	}

	dbErr := stderrors.New("database is locked")
	mockRepo.UpdateSlotError = dbErr
	_, err = svc.Join(ctx, testutil.Member("u1"), thursdayPickleball, 0)
	if !stderrors.Is(err, dbErr) {
		t.Errorf("expected store error to pass through, got %v", err)
	}
	if errors.KindOf(err) != errors.ErrInternal {
		t.Errorf("expected Internal kind, got %v", errors.KindOf(err))
	}
}

// =============================================================================
// Leave
// =============================================================================

func TestRosterService_Leave(t *testing.T) {
	svc, _, b := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()

	for _, uid := range []string{"u1", "u2", "u3"} {
		if _, err := svc.Join(ctx, testutil.Member(uid), thursdayPickleball, 0); err != nil {
			t.Fatalf("Join %s failed: %v", uid, err)
		}
	}

	slot, err := svc.Leave(ctx, testutil.Member("u2"), thursdayPickleball, 0)
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if got := uids(slot.P0.Players); len(got) != 2 || got[0] != "u1" || got[1] != "u3" {
		t.Errorf("expected order preserved without u2, got %v", got)
	}

	before := len(b.Messages())
	slot, err = svc.Leave(ctx, testutil.Member("u2"), thursdayPickleball, 0)
	if err != nil {
		t.Fatalf("second Leave failed: %v", err)
	}
	if len(slot.P0.Players) != 2 {
		t.Errorf("expected roster unchanged, got %v", uids(slot.P0.Players))
	}
	if len(b.Messages()) != before {
		t.Error("expected no broadcast for the no-op leave")
	}
}

func TestRosterService_Leave_RemovesEveryEntry(t *testing.T) {
	svc, repo, _ := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()

	// Legacy data can hold the same uid twice.
	_, err := repo.UpdateSlot(ctx, thursdayPickleball, func(s *models.Slot) error {
		s.P0.Players = []models.Player{{UID: "u1"}, {UID: "u2"}, {UID: "u1"}}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}

	slot, err := svc.Leave(ctx, testutil.Member("u1"), thursdayPickleball, 0)
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if got := uids(slot.P0.Players); len(got) != 1 || got[0] != "u2" {
		t.Errorf("expected only u2 left, got %v", got)
	}
}

func TestRosterService_Leave_Rejections(t *testing.T) {
	svc, _, _ := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()

	if _, err := svc.Leave(ctx, models.Identity{}, thursdayPickleball, 0); err != services.ErrNotSignedIn {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
	if _, err := svc.Leave(ctx, testutil.Member("u1"), thursdayPickleball, 5); err != services.ErrInvalidPriority {
		t.Errorf("expected ErrInvalidPriority, got %v", err)
	}
	if _, err := svc.Leave(ctx, testutil.Member("u1"), "9_9-9", 0); err != services.ErrSlotNotFound {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
}

// =============================================================================
// Guests
// =============================================================================

var validGuest = services.GuestData{FullName: "  Ana Ruiz ", ParishionerName: "Luis Ruiz", FamilyID: " F-102 "}

func TestRosterService_AddGuest(t *testing.T) {
	svc, _, b := setupRosterService(t, schedule.DefaultCatalog())
	sponsor := testutil.Member("u1")

	slot, err := svc.AddGuest(context.Background(), sponsor, thursdayPickleball, 1, validGuest)
	if err != nil {
		t.Fatalf("AddGuest failed: %v", err)
	}
	if len(slot.P1.Players) != 1 {
		t.Fatalf("expected one guest, got %+v", slot.P1.Players)
	}

	guest := slot.P1.Players[0]
	if !regexp.MustCompile(`^guest_\d+_[0-9a-z]{9}$`).MatchString(guest.UID) {
		t.Errorf("unexpected guest uid %q", guest.UID)
	}
	if !guest.IsGuest || guest.Name != "Ana Ruiz" || guest.ParishionerName != "Luis Ruiz" || guest.FamilyID != "F-102" {
		t.Errorf("unexpected guest fields %+v", guest)
	}
	if guest.AddedBy != sponsor.Email {
		t.Errorf("expected sponsor email, got %q", guest.AddedBy)
	}
	addedAt, err := time.Parse(time.RFC3339, guest.AddedAt)
	if err != nil || !addedAt.Equal(testNow) {
		t.Errorf("unexpected addedAt %q (%v)", guest.AddedAt, err)
	}
	if len(b.Messages()) != 1 {
		t.Errorf("expected one broadcast, got %d", len(b.Messages()))
	}
}

func TestRosterService_AddGuest_SameGuestTwice(t *testing.T) {
	svc, _, _ := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.AddGuest(ctx, testutil.Member("u1"), thursdayPickleball, 0, validGuest); err != nil {
			t.Fatalf("AddGuest %d failed: %v", i, err)
		}
	}
	slot, _ := svc.Leave(ctx, testutil.Member("nobody"), thursdayPickleball, 0)
	if len(slot.P0.Players) != 2 || slot.P0.Players[0].UID == slot.P0.Players[1].UID {
		t.Errorf("expected two distinct guest entries, got %+v", slot.P0.Players)
	}
}

func TestRosterService_AddGuest_ValidatesBeforeStoreAccess(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	testutil.SeedWeek(t, repo, testNow)
	mockRepo := mock.NewRepository(repo)
	svc := services.NewRosterService(logger.New(), mockRepo, schedule.DefaultCatalog(), testutil.DefaultAdmins())

	tests := []struct {
		name  string
		guest services.GuestData
		field string
	}{
		{"empty family id", services.GuestData{FullName: "Ana", ParishionerName: "Luis", FamilyID: ""}, "familyId"},
		{"blank family id", services.GuestData{FullName: "Ana", ParishionerName: "Luis", FamilyID: "   "}, "familyId"},
		{"missing name", services.GuestData{ParishionerName: "Luis", FamilyID: "F-1"}, "fullName"},
		{"missing parishioner", services.GuestData{FullName: "Ana", FamilyID: "F-1"}, "parishionerName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddGuest(context.Background(), testutil.Member("u1"), thursdayPickleball, 0, tt.guest)
			if errors.KindOf(err) != errors.ErrValidation {
				t.Fatalf("expected Validation kind, got %v", err)
			}
			if !regexp.MustCompile(tt.field + " is required").MatchString(err.Error()) {
				t.Errorf("expected message to name %s, got %q", tt.field, err.Error())
			}
		})
	}

	for _, method := range []string{"GetSlot", "UpdateSlot"} {
		if n := mockRepo.Calls(method); n != 0 {
			t.Errorf("expected no %s calls, got %d", method, n)
		}
	}
}

func TestRosterService_AddGuest_Capacity(t *testing.T) {
	svc, repo, _ := setupRosterService(t, smallCatalog(1, 1))
	ctx := context.Background()
	setSport(t, repo, thursdayPickleball, 1, models.NoGames)

	if _, err := svc.AddGuest(ctx, testutil.Member("u1"), thursdayPickleball, 1, validGuest); err != services.ErrSlotUnavailable {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}

	if _, err := svc.Join(ctx, testutil.Member("u1"), thursdayPickleball, 0); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := svc.AddGuest(ctx, testutil.Member("u1"), thursdayPickleball, 0, validGuest); err != services.ErrSlotFull {
		t.Errorf("expected ErrSlotFull, got %v", err)
	}
}

func TestRosterService_RemoveGuest(t *testing.T) {
	svc, _, _ := setupRosterService(t, schedule.DefaultCatalog())
	ctx := context.Background()

	slot, err := svc.AddGuest(ctx, testutil.Member("u1"), thursdayPickleball, 0, validGuest)
	if err != nil {
		t.Fatalf("AddGuest failed: %v", err)
	}
	guestUID := slot.P0.Players[0].UID
	if _, err := svc.Join(ctx, testutil.Member("u2"), thursdayPickleball, 0); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if _, err := svc.RemoveGuest(ctx, testutil.Member("u1"), thursdayPickleball, 0, guestUID); err != services.ErrAdminOnly {
		t.Errorf("expected sponsor to be refused, got %v", err)
	}
	if _, err := svc.RemoveGuest(ctx, models.Identity{}, thursdayPickleball, 0, guestUID); err != services.ErrNotSignedIn {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
	if _, err := svc.RemoveGuest(ctx, testutil.Admin(), thursdayPickleball, 0, ""); err != services.ErrMissingGuestUID {
		t.Errorf("expected ErrMissingGuestUID, got %v", err)
	}

	// Members are never removed through the guest path.
	slot, err = svc.RemoveGuest(ctx, testutil.Admin(), thursdayPickleball, 0, "u2")
	if err != nil {
		t.Fatalf("RemoveGuest(member) failed: %v", err)
	}
	if len(slot.P0.Players) != 2 {
		t.Errorf("expected member to stay, got %v", uids(slot.P0.Players))
	}

	slot, err = svc.RemoveGuest(ctx, testutil.Admin(), thursdayPickleball, 0, guestUID)
	if err != nil {
		t.Fatalf("RemoveGuest failed: %v", err)
	}
	if got := uids(slot.P0.Players); len(got) != 1 || got[0] != "u2" {
		t.Errorf("expected only u2 left, got %v", got)
	}

	if _, err := svc.RemoveGuest(ctx, testutil.Admin(), thursdayPickleball, 0, guestUID); err != nil {
		t.Errorf("expected idempotent removal, got %v", err)
	}
}
