// utils/dates.go
package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DayLayout  = "2006-01-02"
	TimeLayout = "15:04"
)

// Clock hands out the current instant in a single configured timezone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type zonedClock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a Clock reading the system time in loc.
func NewClock(loc *time.Location) Clock {
	return NewClockWithSource(loc, time.Now)
}

// NewClockWithSource returns a Clock that reads its instant from now. Tests use it to pin time.
func NewClockWithSource(loc *time.Location, now func() time.Time) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &zonedClock{loc: loc, now: now}
}

func (c *zonedClock) Now() time.Time           { return c.now().In(c.loc) }
func (c *zonedClock) Location() *time.Location { return c.loc }

// DayString renders the calendar day of t in t's own location.
func DayString(t time.Time) string {
	return t.Format(DayLayout)
}

// TimeString renders the wall-clock minute of t, e.g. "18:30".
func TimeString(t time.Time) string {
	return t.Format(TimeLayout)
}

// ISOWeekday maps t to 1=Monday..7=Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days, keeping the wall clock.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// At returns the instant at hour:minute on t's calendar day, in t's location.
func At(t time.Time, hour, minute int) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, hour, minute, 0, 0, t.Location())
}

// ParseDay reads a "YYYY-MM-DD" string as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayLayout, strings.TrimSpace(s), loc)
}

// TimeOfDay is a wall-clock minute without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On places the time of day on the calendar day of ref.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return At(ref, t.Hour, t.Minute)
}

// ParseTimeOfDay accepts "HH:MM" and the "HH:MM:SS[.ffffff]" form Postgres returns for time columns.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// NormalizeTimeString rewrites a time column value to "HH:MM". Unparseable input yields "".
func NormalizeTimeString(s string) string {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		return ""
	}
	return tod.String()
}
