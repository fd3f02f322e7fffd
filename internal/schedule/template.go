package schedule

import (
	"sort"
	"time"

	"github.com/abrezinsky/slotboard/internal/models"
)

// TemplateEntry assigns the two sports of one block on one weekday.
type TemplateEntry struct {
	DayIndex int
	BlockID  string
	P0       string
	P1       string
}

var weeklyTemplate = map[int]map[string][2]string{
	0: {
		"1-5":    {"Volleyball", "Pickleball"},
		"6-9":    {"Pickleball", "Open Badminton"},
		"8-10TT": {"Table Tennis", "Kids Games"},
	},
	1: {
		"6-8":    {"Pickleball", "Open Badminton"},
		"1-5":    {"Open Badminton", "Pickleball"},
		"8-10":   {"Pickleball", "Open Badminton"},
		"8-10TT": {"Table Tennis", "Kids Games"},
	},
	2: {
		"6-8":    {"Pickleball", "Open Badminton"},
		"1-5":    {"Pickleball", "Open Badminton"},
		"8-10":   {"Open Badminton", "Pickleball"},
		"8-10TT": {"Table Tennis", "Kids Games"},
	},
	3: {
		"6-8":    {"Open Badminton", "Pickleball"},
		"1-5":    {"Pickleball", "Open Badminton"},
		"8-10":   {"Women's Badminton", "Open Badminton"},
		"8-10TT": {"Table Tennis", "Kids Games"},
	},
	4: {
		"6-8":    {"Open Badminton", "Pickleball"},
		"1-5":    {"Open Badminton", "Pickleball"},
		"8-10":   {"Pickleball", "Open Badminton"},
		"8-10TT": {"Table Tennis", "Kids Games"},
	},
	5: {
		"6-8":    {"Pickleball", "Open Badminton"},
		"1-5":    {"Pickleball", "Open Badminton"},
		"8-10":   {"Volleyball", "Kids Games"},
		"9-11":   {"Volleyball", "Kids Games"},
		"8-10TT": {"Table Tennis", "Kids Games"},
	},
	6: {
		"6-8":    {"Volleyball", "Pickleball"},
		"1-5":    {"Kids Games", "Pickleball"},
		"6-9":    {"Basketball", "Open Badminton"},
		"8-10TT": {"Table Tennis", "Kids Games"},
	},
}

// WeeklyTemplate returns the recurring schedule ordered by day then block.
func WeeklyTemplate() []TemplateEntry {
	var entries []TemplateEntry
	for day, blocks := range weeklyTemplate {
		for blockID, sports := range blocks {
			entries = append(entries, TemplateEntry{DayIndex: day, BlockID: blockID, P0: sports[0], P1: sports[1]})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DayIndex != entries[j].DayIndex {
			return entries[i].DayIndex < entries[j].DayIndex
		}
		return BlockIndex(entries[i].BlockID) < BlockIndex(entries[j].BlockID)
	})
	return entries
}

// BuildWeek materializes the template into slot documents for the week
// containing now. Capacity is snapshotted from catalog; rosters start empty.
func BuildWeek(now time.Time, cutoffHour int, catalog Catalog) []models.Slot {
	entries := WeeklyTemplate()
	slots := make([]models.Slot, 0, len(entries))
	for _, e := range entries {
		slot := models.Slot{
			ID:             models.SlotID(e.DayIndex, e.BlockID),
			Day:            models.Days[e.DayIndex],
			DayIndex:       e.DayIndex,
			DayDate:        WeekDate(now, e.DayIndex).Format(DayDateLayout),
			BlockID:        e.BlockID,
			ActivePriority: models.PriorityPrimary,
			P0:             newOption(e.P0, catalog),
			P1:             newOption(e.P1, catalog),
		}
		slot.SetCutoff(CutoffFor(now, e.DayIndex, cutoffHour))
		slots = append(slots, slot)
	}
	return slots
}

func newOption(sport string, catalog Catalog) models.PriorityOption {
	meta := catalog.Lookup(sport)
	return models.PriorityOption{
		Sport:      sport,
		MinPlayers: meta.Min,
		MaxPlayers: meta.Max,
		Players:    []models.Player{},
	}
}
