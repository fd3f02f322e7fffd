package schedule

import (
	"strconv"
	"strings"
)

// Block is a named time range within a day.
type Block struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Blocks lists every time block in display order.
var Blocks = []Block{
	{ID: "6-8", Label: "6–8 AM"},
	{ID: "1-5", Label: "1–5 PM"},
	{ID: "6-9", Label: "6–9 PM"},
	{ID: "8-10", Label: "8–10 PM"},
	{ID: "8-10TT", Label: "8–10 PM (TT Room)"},
	{ID: "9-11", Label: "9–11 PM"},
}

// BlockIndex returns the display position of id. Unknown blocks sort last.
func BlockIndex(id string) int {
	for i, b := range Blocks {
		if b.ID == id {
			return i
		}
	}
	return len(Blocks)
}

// BlockLabel returns the human label for id, or id itself.
func BlockLabel(id string) string {
	for _, b := range Blocks {
		if b.ID == id {
			return b.Label
		}
	}
	return id
}

// BlockEndHour returns the 24h hour at which the block ends.
// Block ids carry 12h clock hours without a meridiem: an end hour up to 5 is
// afternoon, 6-8 is the morning block and everything else is evening.
func BlockEndHour(id string) (int, bool) {
	start, end, ok := strings.Cut(strings.ReplaceAll(id, "TT", ""), "-")
	if !ok {
		return 0, false
	}
	startHour, err := strconv.Atoi(start)
	if err != nil {
		return 0, false
	}
	endHour, err := strconv.Atoi(end)
	if err != nil {
		return 0, false
	}

	switch {
	case endHour <= 5:
		return endHour + 12, true
	case startHour == 6 && endHour <= 8:
		return endHour, true
	default:
		return endHour + 12, true
	}
}
