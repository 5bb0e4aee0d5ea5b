package util

import "time"

// DefaultTimeZone is the zone the greeting dates are computed in.
const DefaultTimeZone = "Asia/Shanghai"

// LoadLocation resolves name, falling back to a fixed UTC+8 zone when the
// tz database is unavailable (e.g. scratch containers).
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// DateOf truncates t to its calendar date in t's own location, expressed as
// midnight UTC so that differences are exact multiples of 24h.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from start to end.
// Only the calendar dates matter; time of day is ignored.
func DaysBetween(start, end time.Time) int {
	return int(DateOf(end).Sub(DateOf(start)).Hours() / 24)
}

// MondayIndex returns 0 for Monday through 6 for Sunday.
func MondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
