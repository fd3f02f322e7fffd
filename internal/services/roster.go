package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

// errNoChange aborts a roster transaction that would not change anything.
var errNoChange = stderrors.New("no change")

// GuestData is the sponsor-supplied information about a guest.
type GuestData struct {
	FullName        string `json:"fullName" validate:"required,max=100"`
	ParishionerName string `json:"parishionerName" validate:"required,max=100"`
	FamilyID        string `json:"familyId" validate:"required,max=40"`
}

func (g GuestData) trimmed() GuestData {
	return GuestData{
		FullName:        strings.TrimSpace(g.FullName),
		ParishionerName: strings.TrimSpace(g.ParishionerName),
		FamilyID:        strings.TrimSpace(g.FamilyID),
	}
}

// RosterService handles join, leave and guest changes to slot rosters
type RosterService struct {
	log         logger.Logger
	repo        repository.SlotRepository
	catalog     schedule.Catalog
	admins      AdminChecker
	broadcaster Broadcaster
	now         func() time.Time
}

// NewRosterService creates a new RosterService
func NewRosterService(log logger.Logger, repo repository.SlotRepository, catalog schedule.Catalog, admins AdminChecker) *RosterService {
	return &RosterService{
		log:     log,
		repo:    repo,
		catalog: catalog,
		admins:  admins,
		now:     time.Now,
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *RosterService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the time source used to resolve active priorities.
func (s *RosterService) SetClock(now func() time.Time) {
	s.now = now
}

// Join adds the caller to the roster of one option. Joining twice is a no-op.
func (s *RosterService) Join(ctx context.Context, who models.Identity, slotID string, priority int) (*models.Slot, error) {
	if who.IsAnonymous() {
		return nil, ErrNotSignedIn
	}
	if err := checkPriority(priority); err != nil {
		return nil, err
	}

	slot, err := s.mutate(ctx, slotID, priority, func(opt *models.PriorityOption) error {
		if !opt.IsOffered() {
			return ErrSlotUnavailable
		}
		if opt.Has(who.UID) {
			return errNoChange
		}
		if len(opt.Players) >= s.catalog.Lookup(opt.Sport).Max {
			return ErrSlotFull
		}
		opt.Players = append(opt.Players, models.Player{UID: who.UID, Name: who.DisplayName()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Player joined", "slot", slotID, "priority", priority, "uid", who.UID)
	return slot, nil
}

// Leave removes every roster entry of the caller from one option.
func (s *RosterService) Leave(ctx context.Context, who models.Identity, slotID string, priority int) (*models.Slot, error) {
	if who.IsAnonymous() {
		return nil, ErrNotSignedIn
	}
	if err := checkPriority(priority); err != nil {
		return nil, err
	}

	slot, err := s.mutate(ctx, slotID, priority, func(opt *models.PriorityOption) error {
		if opt.Remove(func(p models.Player) bool { return p.UID == who.UID }) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Player left", "slot", slotID, "priority", priority, "uid", who.UID)
	return slot, nil
}

// AddGuest appends a guest sponsored by the caller. Guests count against
// capacity like members.
func (s *RosterService) AddGuest(ctx context.Context, who models.Identity, slotID string, priority int, guest GuestData) (*models.Slot, error) {
	if who.IsAnonymous() {
		return nil, ErrNotSignedIn
	}
	if err := checkPriority(priority); err != nil {
		return nil, err
	}
	guest = guest.trimmed()
	if err := validateStruct(guest); err != nil {
		return nil, err
	}

	now := s.now()
	sponsor := who.Email
	if sponsor == "" {
		sponsor = who.UID
	}
	player := models.Player{
		UID:             newGuestUID(now),
		Name:            guest.FullName,
		IsGuest:         true,
		ParishionerName: guest.ParishionerName,
		FamilyID:        guest.FamilyID,
		AddedBy:         sponsor,
		AddedAt:         now.Format(time.RFC3339),
	}

	slot, err := s.mutate(ctx, slotID, priority, func(opt *models.PriorityOption) error {
		if !opt.IsOffered() {
			return ErrSlotUnavailable
		}
		if len(opt.Players) >= s.catalog.Lookup(opt.Sport).Max {
			return ErrSlotFull
		}
		opt.Players = append(opt.Players, player)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Guest added", "slot", slotID, "priority", priority, "guest", player.UID, "sponsor", sponsor)
	return slot, nil
}

// RemoveGuest drops a guest entry. Only admins may remove guests.
func (s *RosterService) RemoveGuest(ctx context.Context, who models.Identity, slotID string, priority int, guestUID string) (*models.Slot, error) {
	if who.IsAnonymous() {
		return nil, ErrNotSignedIn
	}
	if !s.admins.IsAdmin(who.Email) {
		return nil, ErrAdminOnly
	}
	if err := checkPriority(priority); err != nil {
		return nil, err
	}
	if guestUID == "" {
		return nil, ErrMissingGuestUID
	}

	slot, err := s.mutate(ctx, slotID, priority, func(opt *models.PriorityOption) error {
		if opt.Remove(func(p models.Player) bool { return p.IsGuest && p.UID == guestUID }) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Guest removed", "slot", slotID, "priority", priority, "guest", guestUID, "admin", who.Email)
	return slot, nil
}

// mutate runs change against one option inside a slot transaction and
// recomputes the active priority in the same write. A change returning
// errNoChange leaves the store untouched and yields the current slot.
func (s *RosterService) mutate(ctx context.Context, slotID string, priority int, change func(opt *models.PriorityOption) error) (*models.Slot, error) {
	var unchanged *models.Slot
	slot, err := s.repo.UpdateSlot(ctx, slotID, func(slot *models.Slot) error {
		unchanged = nil
		opt, err := slot.Option(priority)
		if err != nil {
			return ErrInvalidPriority
		}
		if err := change(opt); err != nil {
			if err == errNoChange {
				current := slot.Clone()
				unchanged = &current
			}
			return err
		}
		slot.ActivePriority = schedule.ResolveActivePriority(slot, s.now())
		return nil
	})

	switch {
	case err == nil:
		s.broadcast(EventSlotUpdated, slot)
		return slot, nil
	case stderrors.Is(err, errNoChange):
		return unchanged, nil
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, ErrSlotNotFound
	case stderrors.Is(err, repository.ErrConflict):
		s.log.Warn("Slot transaction retries exhausted", "slot", slotID)
		return nil, ErrSlotBusy
	default:
		return nil, err
	}
}

func (s *RosterService) broadcast(msgType string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(msgType, payload)
	}
}

func checkPriority(priority int) error {
	if priority != models.PriorityPrimary && priority != models.PriorityFallback {
		return ErrInvalidPriority
	}
	return nil
}

// newGuestUID returns guest_<unix millis>_<9 base36 chars>.
func newGuestUID(now time.Time) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var suffix [9]byte
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("%s%s_%s", models.GuestUIDPrefix, strconv.FormatInt(now.UnixMilli(), 10), suffix[:])
}
