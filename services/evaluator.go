package services

import (
	"fmt"
	"time"

	"lifeplanner-backend/models"
	"lifeplanner-backend/utils"
)

// Due is a positive evaluation: which rule fired and the instant it was anchored to.
type Due struct {
	Kind        models.ReminderKind
	ScheduledAt time.Time
}

// EventPolicy decides when calendar events are announced.
// Exactly one policy is active per process.
type EventPolicy interface {
	Name() string
	// Horizon lists the calendar days whose events may be due at now.
	Horizon(now time.Time) []string
	Evaluate(now time.Time, event models.CalendarEvent) (Due, bool)
}

// PolicySettings are the wall-clock knobs shared by the event policies.
type PolicySettings struct {
	Window      time.Duration
	MorningSend utils.TimeOfDay
	EarlyCutoff utils.TimeOfDay
	HoursBefore int
	DaysAhead   int
}

// NewEventPolicy returns the policy registered under name.
func NewEventPolicy(name string, s PolicySettings) (EventPolicy, error) {
	switch name {
	case "day_before":
		return &DayBeforePolicy{s: s}, nil
	case "days_ahead":
		if s.DaysAhead < 1 {
			return nil, fmt.Errorf("days_ahead policy needs DaysAhead >= 1, got %d", s.DaysAhead)
		}
		return &DaysAheadPolicy{s: s}, nil
	default:
		return nil, fmt.Errorf("unknown event policy %q", name)
	}
}

// WithinWindow reports whether now falls in [target, target+window).
func WithinWindow(now, target time.Time, window time.Duration) bool {
	diff := now.Sub(target)
	return diff >= 0 && diff < window
}

// DayBeforePolicy announces tomorrow's events in the morning, and today's events either in the
// morning (late events) or a few hours before they start (events at or before the early cutoff).
type DayBeforePolicy struct {
	s PolicySettings
}

func (p *DayBeforePolicy) Name() string { return "day_before" }

func (p *DayBeforePolicy) Horizon(now time.Time) []string {
	return []string{utils.DayString(now), utils.DayString(utils.AddDays(now, 1))}
}

func (p *DayBeforePolicy) Evaluate(now time.Time, event models.CalendarEvent) (Due, bool) {
	day := event.Day()
	morning := p.s.MorningSend.On(now)

	if day == utils.DayString(utils.AddDays(now, 1)) {
		return p.due(now, models.KindDayBefore, morning)
	}
	if day != utils.DayString(now) {
		return Due{}, false
	}

	start, ok := eventStart(now, event)
	if !ok {
		return p.due(now, models.KindDayOfMorning, morning)
	}
	if start.After(p.s.EarlyCutoff.On(now)) {
		return p.due(now, models.KindDayOfMorning, morning)
	}
	return p.due(now, models.KindDayOfThreeHoursBefore, start.Add(-time.Duration(p.s.HoursBefore)*time.Hour))
}

func (p *DayBeforePolicy) due(now time.Time, kind models.ReminderKind, at time.Time) (Due, bool) {
	if !WithinWindow(now, at, p.s.Window) {
		return Due{}, false
	}
	return Due{Kind: kind, ScheduledAt: at}, true
}

// DaysAheadPolicy announces events N days in advance and again on the morning of the day.
type DaysAheadPolicy struct {
	s PolicySettings
}

func (p *DaysAheadPolicy) Name() string { return "days_ahead" }

func (p *DaysAheadPolicy) Horizon(now time.Time) []string {
	return []string{utils.DayString(now), utils.DayString(utils.AddDays(now, p.s.DaysAhead))}
}

func (p *DaysAheadPolicy) Evaluate(now time.Time, event models.CalendarEvent) (Due, bool) {
	morning := p.s.MorningSend.On(now)
	var kind models.ReminderKind
	switch event.Day() {
	case utils.DayString(utils.AddDays(now, p.s.DaysAhead)):
		kind = models.KindDaysBefore
	case utils.DayString(now):
		kind = models.KindDayOfMorning
	default:
		return Due{}, false
	}
	if !WithinWindow(now, morning, p.s.Window) {
		return Due{}, false
	}
	return Due{Kind: kind, ScheduledAt: morning}, true
}

// eventStart places the event's start time on its day in now's timezone.
func eventStart(now time.Time, event models.CalendarEvent) (time.Time, bool) {
	if event.StartTime == nil {
		return time.Time{}, false
	}
	tod, err := utils.ParseTimeOfDay(*event.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	day, err := utils.ParseDay(event.Day(), now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return tod.On(day), true
}

// EvaluateWorkoutSlot matches a slot to the current minute. There is no window: the slot is due
// only during the exact minute it names, on its weekday.
func EvaluateWorkoutSlot(now time.Time, slot models.WorkoutScheduleSlot) (Due, bool) {
	if !slot.Active || slot.TimeOfDay == nil {
		return Due{}, false
	}
	if slot.Weekday != utils.ISOWeekday(now) {
		return Due{}, false
	}
	return exactMinute(now, *slot.TimeOfDay, models.KindWorkoutExactTime)
}

// EvaluateDailyReminder matches a daily reminder to the current minute.
func EvaluateDailyReminder(now time.Time, r models.DailyReminder) (Due, bool) {
	if !r.Active {
		return Due{}, false
	}
	return exactMinute(now, r.ReminderTime, models.KindDailyExactTime)
}

func exactMinute(now time.Time, clock string, kind models.ReminderKind) (Due, bool) {
	tod, err := utils.ParseTimeOfDay(clock)
	if err != nil {
		return Due{}, false
	}
	if utils.TimeString(now) != tod.String() {
		return Due{}, false
	}
	return Due{Kind: kind, ScheduledAt: tod.On(now)}, true
}
