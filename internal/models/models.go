package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NoGames is the sport name meaning "no activity offered" for an option.
const NoGames = "No Games"

// GuestUIDPrefix starts every guest uid. Signed-in uids never carry it.
const GuestUIDPrefix = "guest_"

// Priority tiers within a slot
const (
	PriorityPrimary  = 0
	PriorityFallback = 1
)

// Days are indexed the same way as time.Weekday (Sunday = 0).
var Days = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Player occupies one roster position. Position in the roster decides main vs waiting list.
type Player struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	IsGuest         bool   `json:"isGuest,omitempty"`
	ParishionerName string `json:"parishionerName,omitempty"`
	FamilyID        string `json:"familyId,omitempty"`
	AddedBy         string `json:"addedBy,omitempty"`
	AddedAt         string `json:"addedAt,omitempty"`
}

// PriorityOption is one activity offered within a slot (p0 or p1).
// MinPlayers and MaxPlayers are seed-time snapshots; live limits come from the sport catalog.
type PriorityOption struct {
	Sport      string   `json:"sport"`
	MinPlayers int      `json:"minPlayers"`
	MaxPlayers int      `json:"maxPlayers"`
	Players    []Player `json:"players"`
}

// IsOffered reports whether the option offers an activity at all.
func (o *PriorityOption) IsOffered() bool {
	return o.Sport != NoGames
}

// Has reports whether uid appears anywhere in the roster.
func (o *PriorityOption) Has(uid string) bool {
	for _, p := range o.Players {
		if p.UID == uid {
			return true
		}
	}
	return false
}

// Remove drops every player for which match returns true and reports how many were removed.
func (o *PriorityOption) Remove(match func(Player) bool) int {
	kept := o.Players[:0:0]
	for _, p := range o.Players {
		if !match(p) {
			kept = append(kept, p)
		}
	}
	removed := len(o.Players) - len(kept)
	o.Players = kept
	return removed
}

// Slot is one bookable time block on one day of the recurring week.
type Slot struct {
	ID             string         `json:"id"`
	Day            string         `json:"day"`
	DayIndex       int            `json:"dayIndex"`
	DayDate        string         `json:"dayDate"`
	BlockID        string         `json:"blockId"`
	Cutoff         string         `json:"cutoff,omitempty"`
	ActivePriority int            `json:"activePriority"`
	P0             PriorityOption `json:"p0"`
	P1             PriorityOption `json:"p1"`
}

// SlotID builds the document key for a (dayIndex, blockId) pair.
func SlotID(dayIndex int, blockID string) string {
	return fmt.Sprintf("%d_%s", dayIndex, blockID)
}

// ParseSlotID splits a document key back into its dayIndex and blockId.
func ParseSlotID(id string) (int, string, error) {
	day, block, ok := strings.Cut(id, "_")
	if !ok || block == "" {
		return 0, "", fmt.Errorf("invalid slot id %q", id)
	}
	dayIndex, err := strconv.Atoi(day)
	if err != nil || dayIndex < 0 || dayIndex > 6 {
		return 0, "", fmt.Errorf("invalid slot id %q", id)
	}
	return dayIndex, block, nil
}

// Option returns the option for priority 0 or 1.
func (s *Slot) Option(priority int) (*PriorityOption, error) {
	switch priority {
	case PriorityPrimary:
		return &s.P0, nil
	case PriorityFallback:
		return &s.P1, nil
	default:
		return nil, fmt.Errorf("invalid priority %d", priority)
	}
}

// localCutoffLayout is a cutoff written without a zone offset.
const localCutoffLayout = "2006-01-02T15:04:05"

// CutoffTime parses the stored cutoff, reading zone-less values as local
// time. ok is false when the cutoff is absent.
func (s *Slot) CutoffTime() (t time.Time, ok bool, err error) {
	return s.CutoffTimeIn(time.Local)
}

// CutoffTimeIn parses the stored cutoff. Values without a zone offset are
// read as wall-clock time in loc.
func (s *Slot) CutoffTimeIn(loc *time.Location) (t time.Time, ok bool, err error) {
	value := strings.TrimSpace(s.Cutoff)
	if value == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return t, true, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if local, localErr := time.ParseInLocation(localCutoffLayout, value, loc); localErr == nil {
		return local, true, nil
	}
	return time.Time{}, true, err
}

// SetCutoff stores t as the slot cutoff.
func (s *Slot) SetCutoff(t time.Time) {
	s.Cutoff = t.Format(time.RFC3339)
}

// Normalize applies the document defaulting rules. Every slot read from or
// written to the store passes through here.
func (s *Slot) Normalize() {
	if s.ID == "" && s.BlockID != "" {
		s.ID = SlotID(s.DayIndex, s.BlockID)
	}
	if s.Day == "" && s.DayIndex >= 0 && s.DayIndex < len(Days) {
		s.Day = Days[s.DayIndex]
	}
	if s.ActivePriority != PriorityFallback {
		s.ActivePriority = PriorityPrimary
	}
	normalizeOption(&s.P0)
	normalizeOption(&s.P1)
}

func normalizeOption(o *PriorityOption) {
	if o.Sport == "" {
		o.Sport = NoGames
	}
	if o.Players == nil {
		o.Players = []Player{}
	}
}

// Clone returns a deep copy of the slot.
func (s *Slot) Clone() Slot {
	c := *s
	c.P0.Players = append([]Player{}, s.P0.Players...)
	c.P1.Players = append([]Player{}, s.P1.Players...)
	return c
}

// BackupSnapshot is the archival copy of every slot taken before a weekly reset.
type BackupSnapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Slots     []Slot    `json:"slots"`
}

// BackupSummary describes a snapshot without its slot payload.
type BackupSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	SlotCount int       `json:"slotCount"`
}

// UserPreferences holds the sports a member wants to see.
type UserPreferences struct {
	UID            string   `json:"uid"`
	SelectedSports []string `json:"selectedSports"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
}

// ShouldShow reports whether sport passes the member's filter. No selection shows everything.
func (p *UserPreferences) ShouldShow(sport string) bool {
	if p == nil || len(p.SelectedSports) == 0 {
		return true
	}
	for _, s := range p.SelectedSports {
		if s == sport {
			return true
		}
	}
	return false
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IsAnonymous reports whether no one is signed in.
func (i Identity) IsAnonymous() bool {
	return i.UID == ""
}

// DisplayName returns the name shown on rosters.
func (i Identity) DisplayName() string {
	if strings.TrimSpace(i.Name) == "" {
		return "Player"
	}
	return i.Name
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
