package schedule

import (
	"time"
)

// DefaultCutoffHour is the local hour at which a slot's fallback can take over.
const DefaultCutoffHour = 12

// DayDateLayout is the storage format of Slot.DayDate.
const DayDateLayout = "2006-01-02"

// WeekDate returns midnight of the day with the given weekday index in the
// week containing now, in now's location. Days before today's weekday land in
// the past, matching how the board labels the current week.
func WeekDate(now time.Time, dayIndex int) time.Time {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, dayIndex-int(now.Weekday()))
}

// CutoffFor returns the cutoff instant for dayIndex in the week containing now.
func CutoffFor(now time.Time, dayIndex, hour int) time.Time {
	date := WeekDate(now, dayIndex)
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
}

// AdvanceCutoff moves a cutoff forward by seven calendar days in loc, keeping
// the wall-clock hour across daylight saving changes.
func AdvanceCutoff(cutoff time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return cutoff.In(loc).AddDate(0, 0, 7)
}

// AdvanceDayDate moves a stored day date forward one week.
func AdvanceDayDate(dayDate string) (string, bool) {
	d, err := time.Parse(DayDateLayout, dayDate)
	if err != nil {
		return dayDate, false
	}
	return d.AddDate(0, 0, 7).Format(DayDateLayout), true
}

// DateLabel formats the date of dayIndex in the current week, e.g. "Oct 18".
func DateLabel(now time.Time, dayIndex int) string {
	return WeekDate(now, dayIndex).Format("Jan 2")
}

// IsDayInPast reports whether dayIndex falls before today in the current week.
func IsDayInPast(now time.Time, dayIndex int) bool {
	return dayIndex < int(now.Weekday())
}

// IsBlockInPast reports whether the block on dayIndex has already ended.
// Blocks whose end hour cannot be determined are never in the past.
func IsBlockInPast(now time.Time, dayIndex int, blockID string) bool {
	if IsDayInPast(now, dayIndex) {
		return true
	}
	if dayIndex != int(now.Weekday()) {
		return false
	}
	endHour, ok := BlockEndHour(blockID)
	if !ok {
		return false
	}
	current := float64(now.Hour()) + float64(now.Minute())/60
	return current >= float64(endHour)
}
