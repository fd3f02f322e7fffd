package services

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/repository"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

// BoardRepository defines the repository methods needed by BoardService
type BoardRepository interface {
	repository.SlotRepository
	repository.PreferencesRepository
}

// Filter narrows the board listing.
type Filter struct {
	Day         *int
	Sport       string
	Mine        bool
	IncludePast bool
	// Preferred applies the caller's saved sport selection.
	Preferred bool
}

// OptionView is one option with its roster split by tier using live limits.
type OptionView struct {
	Sport      string          `json:"sport"`
	Offered    bool            `json:"offered"`
	MinPlayers int             `json:"minPlayers"`
	MaxPlayers int             `json:"maxPlayers"`
	MainLimit  int             `json:"mainLimit"`
	Count      int             `json:"count"`
	Full       bool            `json:"full"`
	Joined     bool            `json:"joined"`
	Main       []models.Player `json:"main"`
	Waiting    []models.Player `json:"waiting"`
}

// SlotView is a slot as the board presents it.
type SlotView struct {
	Slot       models.Slot         `json:"slot"`
	Resolution schedule.Resolution `json:"resolution"`
	BlockLabel string              `json:"blockLabel"`
	DateLabel  string              `json:"dateLabel"`
	Past       bool                `json:"past"`
	Options    []OptionView        `json:"options"`
}

// BoardService answers read-only board queries
type BoardService struct {
	log     logger.Logger
	repo    BoardRepository
	catalog schedule.Catalog
	admins  AdminChecker
	loc     *time.Location
	now     func() time.Time
}

// NewBoardService creates a new BoardService
func NewBoardService(log logger.Logger, repo BoardRepository, catalog schedule.Catalog, admins AdminChecker, loc *time.Location) *BoardService {
	if loc == nil {
		loc = time.Local
	}
	return &BoardService{
		log:     log,
		repo:    repo,
		catalog: catalog,
		admins:  admins,
		loc:     loc,
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (s *BoardService) SetClock(now func() time.Time) {
	s.now = now
}

// IsAdmin reports whether who is on the admin allow-list.
func (s *BoardService) IsAdmin(who models.Identity) bool {
	return !who.IsAnonymous() && s.admins.IsAdmin(who.Email)
}

// Sports returns the sorted set of offered sports.
func (s *BoardService) Sports() []string {
	return s.catalog.Sports()
}

// Catalog returns the live sport catalog.
func (s *BoardService) Catalog() schedule.Catalog {
	return s.catalog
}

// Snapshot returns every slot in board order.
func (s *BoardService) Snapshot(ctx context.Context) ([]models.Slot, error) {
	slots, err := s.repo.ListSlots(ctx)
	if err != nil {
		return nil, err
	}
	sortSlots(slots)
	return slots, nil
}

// ListSlots returns the board for who, filtered and ordered by day then block.
func (s *BoardService) ListSlots(ctx context.Context, who models.Identity, filter Filter) ([]SlotView, error) {
	if filter.Mine && who.IsAnonymous() {
		return nil, ErrNotSignedIn
	}

	slots, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var prefs *models.UserPreferences
	if filter.Preferred && !who.IsAnonymous() {
		prefs, err = s.repo.GetPreferences(ctx, who.UID)
		if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	now := s.now().In(s.loc)
	showPast := filter.IncludePast && s.IsAdmin(who)

	views := make([]SlotView, 0, len(slots))
	for i := range slots {
		slot := &slots[i]
		if filter.Day != nil && slot.DayIndex != *filter.Day {
			continue
		}
		past := schedule.IsBlockInPast(now, slot.DayIndex, slot.BlockID)
		if past && !showPast {
			continue
		}
		if filter.Sport != "" && !offers(slot, func(sport string) bool { return sport == filter.Sport }) {
			continue
		}
		if prefs != nil && !offers(slot, prefs.ShouldShow) {
			continue
		}
		if filter.Mine && !slot.P0.Has(who.UID) && !slot.P1.Has(who.UID) {
			continue
		}
		views = append(views, s.view(slot, who, now, past))
	}
	return views, nil
}

// GetSlot returns a single slot view.
func (s *BoardService) GetSlot(ctx context.Context, who models.Identity, id string) (*SlotView, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	now := s.now().In(s.loc)
	view := s.view(slot, who, now, schedule.IsBlockInPast(now, slot.DayIndex, slot.BlockID))
	return &view, nil
}

func (s *BoardService) view(slot *models.Slot, who models.Identity, now time.Time, past bool) SlotView {
	return SlotView{
		Slot:       *slot,
		Resolution: schedule.Resolve(slot, now),
		BlockLabel: schedule.BlockLabel(slot.BlockID),
		DateLabel:  schedule.DateLabel(now, slot.DayIndex),
		Past:       past,
		Options: []OptionView{
			s.optionView(&slot.P0, who),
			s.optionView(&slot.P1, who),
		},
	}
}

func (s *BoardService) optionView(opt *models.PriorityOption, who models.Identity) OptionView {
	meta := s.catalog.Lookup(opt.Sport)
	main, waiting := schedule.SplitRoster(opt.Players, meta.MainLimit)
	return OptionView{
		Sport:      opt.Sport,
		Offered:    opt.IsOffered(),
		MinPlayers: meta.Min,
		MaxPlayers: meta.Max,
		MainLimit:  meta.MainLimit,
		Count:      len(opt.Players),
		Full:       len(opt.Players) >= meta.Max,
		Joined:     !who.IsAnonymous() && opt.Has(who.UID),
		Main:       main,
		Waiting:    waiting,
	}
}

// offers reports whether either offered option of slot matches.
func offers(slot *models.Slot, match func(sport string) bool) bool {
	return (slot.P0.IsOffered() && match(slot.P0.Sport)) || (slot.P1.IsOffered() && match(slot.P1.Sport))
}

func sortSlots(slots []models.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].DayIndex != slots[j].DayIndex {
			return slots[i].DayIndex < slots[j].DayIndex
		}
		return schedule.BlockIndex(slots[i].BlockID) < schedule.BlockIndex(slots[j].BlockID)
	})
}
