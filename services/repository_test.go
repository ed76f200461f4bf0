package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifeplanner-backend/models"
)

func TestGormRepository_UpcomingEvents(t *testing.T) {
	db, mock := setupMockGorm(t)
	repo := NewGormRepository(db, nil, zap.NewNop())

	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "date", "start", "end", "notes"}).
		AddRow("evt-1", "owner-1", "Dentista", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "08:00:00", nil, nil).
		AddRow("evt-2", "owner-2", "Reunião", time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), nil, nil, "sala 3")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "events" WHERE date IN ($1,$2) ORDER BY date`)).
		WithArgs("2024-06-10", "2024-06-11").
		WillReturnRows(rows)

	events, err := repo.UpcomingEvents(context.Background(), []string{"2024-06-10", "2024-06-11"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2024-06-10", events[0].Day())
	require.NotNil(t, events[0].StartTime)
	assert.Equal(t, "08:00:00", *events[0].StartTime)
	assert.Nil(t, events[1].StartTime)
	assert.Equal(t, "sala 3", *events[1].Notes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_UpcomingEvents_Error(t *testing.T) {
	db, mock := setupMockGorm(t)
	repo := NewGormRepository(db, nil, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "events"`).WillReturnError(errors.New("timeout"))

	_, err := repo.UpcomingEvents(context.Background(), []string{"2024-06-10"})
	var repoErr *RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, "upcoming events", repoErr.Op)
}

func TestGormRepository_ActiveWorkoutSlots(t *testing.T) {
	db, mock := setupMockGorm(t)
	repo := NewGormRepository(db, nil, zap.NewNop())

	rows := sqlmock.NewRows([]string{"id", "user_id", "weekday", "workout_id", "time", "is_active"}).
		AddRow("slot-1", "owner-1", 3, "w-1", "18:30:00", true)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "workout_schedule" WHERE weekday = $1 AND is_active = $2`)).
		WithArgs(3, true).
		WillReturnRows(rows)

	slots, err := repo.ActiveWorkoutSlots(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 3, slots[0].Weekday)
	assert.Equal(t, "w-1", *slots[0].WorkoutRef)
	assert.True(t, slots[0].Active)
}

func TestGormRepository_Contacts(t *testing.T) {
	db, mock := setupMockGorm(t)
	repo := NewGormRepository(db, nil, zap.NewNop())

	rows := sqlmock.NewRows([]string{"id", "name", "whatsapp"}).
		AddRow("owner-1", "Ana", "+55 (11) 99999-0000")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","name","whatsapp" FROM "profiles" WHERE id IN ($1,$2)`)).
		WithArgs("owner-1", "owner-2").
		WillReturnRows(rows)

	contacts, err := repo.Contacts(context.Background(), []string{"owner-1", "owner-2"})
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
	assert.Equal(t, "Ana", contacts["owner-1"].Name)
}

func TestGormRepository_ContactFor_Missing(t *testing.T) {
	db, mock := setupMockGorm(t)
	repo := NewGormRepository(db, nil, zap.NewNop())

	mock.ExpectQuery(`FROM "profiles"`).WillReturnRows(sqlmock.NewRows([]string{"id", "name", "whatsapp"}))

	p, err := repo.ContactFor(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGormRepository_WorkoutRoutines_EmptyIDsSkipsQuery(t *testing.T) {
	db, mock := setupMockGorm(t)
	repo := NewGormRepository(db, nil, zap.NewNop())

	routines, err := repo.WorkoutRoutines(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, routines)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_DeleteDailyReminder(t *testing.T) {
	db, mock := setupMockGorm(t)
	repo := NewGormRepository(db, nil, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "daily_reminders" WHERE id = $1 AND user_id = $2`)).
		WithArgs("d-1", "owner-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "daily_reminders"`)).
		WithArgs("d-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteDailyReminder(context.Background(), "d-1", "owner-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteDailyReminder(context.Background(), "d-1", "intruder")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestIsSchemaError(t *testing.T) {
	assert.True(t, IsSchemaError(&pgconn.PgError{Code: "42P01", Message: `relation "events" does not exist`}))
	assert.True(t, IsSchemaError(&pgconn.PgError{Code: "42703"}))
	assert.True(t, IsSchemaError(errors.New("Could not find the table in the schema cache")))
	assert.False(t, IsSchemaError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSchemaError(errors.New("connection refused")))
}

func newRESTServer(t *testing.T, handler http.HandlerFunc) *PostgRESTSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPostgRESTSource(srv.URL+"/", "service-key", 5*time.Second, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestGormRepository_FallsBackOnSchemaError(t *testing.T) {
	db, mock := setupMockGorm(t)

	var gotPath, gotDate string
	fallback := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDate = r.URL.Query().Get("date")
		writeJSON(w, []map[string]interface{}{
			{"id": "evt-9", "user_id": "owner-1", "title": "Yoga", "date": "2024-06-11", "start": "18:00", "end": nil, "notes": nil},
		})
	})
	repo := NewGormRepository(db, fallback, zap.NewNop())

	mock.ExpectQuery(`FROM "events"`).WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	events, err := repo.UpcomingEvents(context.Background(), []string{"2024-06-10", "2024-06-11"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-9", events[0].ID)
	assert.Equal(t, "2024-06-11", events[0].Day())
	assert.Equal(t, "/rest/v1/events", gotPath)
	assert.Equal(t, "in.(2024-06-10,2024-06-11)", gotDate)
}

func TestGormRepository_NoFallbackForOtherErrors(t *testing.T) {
	db, mock := setupMockGorm(t)
	called := false
	fallback := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		writeJSON(w, []interface{}{})
	})
	repo := NewGormRepository(db, fallback, zap.NewNop())

	mock.ExpectQuery(`FROM "workout_schedule"`).WillReturnError(errors.New("connection reset"))

	_, err := repo.ActiveWorkoutSlots(context.Background(), 2)
	assert.Error(t, err)
	assert.False(t, called)
}

func TestPostgRESTSource_SendsServiceKey(t *testing.T) {
	src := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		assert.Equal(t, "in.(owner-1)", r.URL.Query().Get("id"))
		writeJSON(w, []models.Profile{{ID: "owner-1", Name: "Ana", WhatsApp: "5511999990000"}})
	})

	contacts, err := src.Contacts(context.Background(), []string{"owner-1"})
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", contacts["owner-1"].WhatsApp)
}

func TestPostgRESTSource_ErrorStatus(t *testing.T) {
	src := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"bad filter"}`))
	})

	_, err := src.ActiveWorkoutSlots(context.Background(), 1)
	var repoErr *RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Contains(t, err.Error(), "status 400")
}

func TestPostgRESTSource_DailyReminders(t *testing.T) {
	src := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.true", r.URL.Query().Get("is_active"))
		writeJSON(w, []map[string]interface{}{
			{"id": "d-1", "user_id": "owner-1", "title": "Água", "reminder_time": "10:00", "is_active": true},
		})
	})

	reminders, err := src.ActiveDailyReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "10:00", reminders[0].ReminderTime)
}
