package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"lifeplanner-backend/models"
)

// ReadSource is the read side the scheduler needs from the events/schedule store.
type ReadSource interface {
	UpcomingEvents(ctx context.Context, days []string) ([]models.CalendarEvent, error)
	ActiveWorkoutSlots(ctx context.Context, weekday int) ([]models.WorkoutScheduleSlot, error)
	WorkoutRoutines(ctx context.Context, ids []string) (map[string]models.WorkoutRoutine, error)
	Contacts(ctx context.Context, ids []string) (map[string]models.Profile, error)
	ActiveDailyReminders(ctx context.Context) ([]models.DailyReminder, error)
}

// PostgRESTSource reads the same tables over Supabase's REST endpoint.
type PostgRESTSource struct {
	client *resty.Client
	log    *zap.Logger
}

func NewPostgRESTSource(baseURL, serviceKey string, timeout time.Duration, log *zap.Logger) *PostgRESTSource {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/rest/v1").
		SetTimeout(timeout).
		SetHeader("apikey", serviceKey).
		SetAuthToken(serviceKey).
		SetHeader("Accept", "application/json")
	return &PostgRESTSource{client: client, log: log}
}

type restEvent struct {
	ID     string  `json:"id"`
	UserID string  `json:"user_id"`
	Title  string  `json:"title"`
	Date   string  `json:"date"`
	Start  *string `json:"start"`
	End    *string `json:"end"`
	Notes  *string `json:"notes"`
}

func (s *PostgRESTSource) UpcomingEvents(ctx context.Context, days []string) ([]models.CalendarEvent, error) {
	var rows []restEvent
	err := s.get(ctx, "events", map[string]string{
		"select": "id,user_id,title,date,start,end,notes",
		"date":   "in." + inList(days),
		"order":  "date.asc",
	}, &rows)
	if err != nil {
		return nil, err
	}

	events := make([]models.CalendarEvent, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			s.log.Warn("skipping event with unparseable date", zap.String("event_id", r.ID), zap.String("date", r.Date))
			continue
		}
		events = append(events, models.CalendarEvent{
			ID: r.ID, OwnerID: r.UserID, Title: r.Title, Date: date,
			StartTime: r.Start, EndTime: r.End, Notes: r.Notes,
		})
	}
	return events, nil
}

func (s *PostgRESTSource) ActiveWorkoutSlots(ctx context.Context, weekday int) ([]models.WorkoutScheduleSlot, error) {
	var slots []models.WorkoutScheduleSlot
	err := s.get(ctx, "workout_schedule", map[string]string{
		"select":    "id,user_id,weekday,workout_id,time,is_active",
		"weekday":   fmt.Sprintf("eq.%d", weekday),
		"is_active": "eq.true",
	}, &slots)
	return slots, err
}

func (s *PostgRESTSource) WorkoutRoutines(ctx context.Context, ids []string) (map[string]models.WorkoutRoutine, error) {
	out := make(map[string]models.WorkoutRoutine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var routines []models.WorkoutRoutine
	err := s.get(ctx, "workout_routines", map[string]string{
		"select": "id,name,muscle_groups",
		"id":     "in." + inList(ids),
	}, &routines)
	if err != nil {
		return nil, err
	}
	for _, r := range routines {
		out[r.ID] = r
	}
	return out, nil
}

func (s *PostgRESTSource) Contacts(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	err := s.get(ctx, "profiles", map[string]string{
		"select": "id,name,whatsapp",
		"id":     "in." + inList(ids),
	}, &profiles)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (s *PostgRESTSource) ActiveDailyReminders(ctx context.Context) ([]models.DailyReminder, error) {
	var reminders []models.DailyReminder
	err := s.get(ctx, "daily_reminders", map[string]string{
		"select":    "id,user_id,title,notes,reminder_time,is_active",
		"is_active": "eq.true",
	}, &reminders)
	return reminders, err
}

func (s *PostgRESTSource) get(ctx context.Context, table string, params map[string]string, out interface{}) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get("/" + table)
	if err != nil {
		return &RepositoryError{Op: "rest " + table, Err: err}
	}
	if resp.IsError() {
		return &RepositoryError{
			Op:  "rest " + table,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 300)),
		}
	}
	return nil
}

// inList renders a PostgREST in-filter value: (a,b,c).
func inList(values []string) string {
	return "(" + strings.Join(values, ",") + ")"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
