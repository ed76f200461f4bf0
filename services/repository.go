package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lifeplanner-backend/models"
)

// Repository is everything the reminder engine and the ops API read or write outside the ledger.
type Repository interface {
	ReadSource
	ContactFor(ctx context.Context, ownerID string) (*models.Profile, error)
	ListDailyReminders(ctx context.Context, ownerID string) ([]models.DailyReminder, error)
	CreateDailyReminder(ctx context.Context, r *models.DailyReminder) error
	DeleteDailyReminder(ctx context.Context, id, ownerID string) (bool, error)
}

// GormRepository reads the Supabase tables through gorm. When a read fails with a schema error
// and a fallback is configured, the same read is retried over the fallback source.
type GormRepository struct {
	db       *gorm.DB
	fallback ReadSource
	log      *zap.Logger
}

func NewGormRepository(db *gorm.DB, fallback ReadSource, log *zap.Logger) *GormRepository {
	return &GormRepository{db: db, fallback: fallback, log: log}
}

func (r *GormRepository) UpcomingEvents(ctx context.Context, days []string) ([]models.CalendarEvent, error) {
	if len(days) == 0 {
		return nil, nil
	}
	var events []models.CalendarEvent
	err := r.db.WithContext(ctx).
		Where("date IN ?", days).
		Order("date").
		Find(&events).Error
	if err == nil {
		return events, nil
	}
	if r.useFallback("events", err) {
		return r.fallback.UpcomingEvents(ctx, days)
	}
	return nil, &RepositoryError{Op: "upcoming events", Err: err}
}

func (r *GormRepository) ActiveWorkoutSlots(ctx context.Context, weekday int) ([]models.WorkoutScheduleSlot, error) {
	var slots []models.WorkoutScheduleSlot
	err := r.db.WithContext(ctx).
		Where("weekday = ? AND is_active = ?", weekday, true).
		Find(&slots).Error
	if err == nil {
		return slots, nil
	}
	if r.useFallback("workout_schedule", err) {
		return r.fallback.ActiveWorkoutSlots(ctx, weekday)
	}
	return nil, &RepositoryError{Op: "workout slots", Err: err}
}

func (r *GormRepository) WorkoutRoutines(ctx context.Context, ids []string) (map[string]models.WorkoutRoutine, error) {
	out := make(map[string]models.WorkoutRoutine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var routines []models.WorkoutRoutine
	err := r.db.WithContext(ctx).
		Select("id", "name", "muscle_groups").
		Where("id IN ?", ids).
		Find(&routines).Error
	if err != nil {
		if r.useFallback("workout_routines", err) {
			return r.fallback.WorkoutRoutines(ctx, ids)
		}
		return nil, &RepositoryError{Op: "workout routines", Err: err}
	}
	for _, routine := range routines {
		out[routine.ID] = routine
	}
	return out, nil
}

func (r *GormRepository) Contacts(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Select("id", "name", "whatsapp").
		Where("id IN ?", ids).
		Find(&profiles).Error
	if err != nil {
		if r.useFallback("profiles", err) {
			return r.fallback.Contacts(ctx, ids)
		}
		return nil, &RepositoryError{Op: "contacts", Err: err}
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// ContactFor returns nil without error when the owner has no profile row.
func (r *GormRepository) ContactFor(ctx context.Context, ownerID string) (*models.Profile, error) {
	contacts, err := r.Contacts(ctx, []string{ownerID})
	if err != nil {
		return nil, err
	}
	p, ok := contacts[ownerID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *GormRepository) ActiveDailyReminders(ctx context.Context) ([]models.DailyReminder, error) {
	var reminders []models.DailyReminder
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&reminders).Error
	if err == nil {
		return reminders, nil
	}
	if r.useFallback("daily_reminders", err) {
		return r.fallback.ActiveDailyReminders(ctx)
	}
	return nil, &RepositoryError{Op: "daily reminders", Err: err}
}

func (r *GormRepository) ListDailyReminders(ctx context.Context, ownerID string) ([]models.DailyReminder, error) {
	var reminders []models.DailyReminder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("reminder_time").
		Find(&reminders).Error
	if err != nil {
		return nil, &RepositoryError{Op: "list daily reminders", Err: err}
	}
	return reminders, nil
}

func (r *GormRepository) CreateDailyReminder(ctx context.Context, reminder *models.DailyReminder) error {
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return &RepositoryError{Op: "create daily reminder", Err: err}
	}
	return nil
}

// DeleteDailyReminder reports false when no reminder with that id belongs to the owner.
func (r *GormRepository) DeleteDailyReminder(ctx context.Context, id, ownerID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&models.DailyReminder{})
	if result.Error != nil {
		return false, &RepositoryError{Op: "delete daily reminder", Err: result.Error}
	}
	return result.RowsAffected > 0, nil
}

func (r *GormRepository) useFallback(table string, err error) bool {
	if r.fallback == nil || !IsSchemaError(err) {
		return false
	}
	r.log.Warn("query failed with schema error, retrying over REST",
		zap.String("table", table),
		zap.Error(err),
	)
	return true
}

// IsSchemaError reports whether err means the table or column is unknown to the primary
// transport: undefined_table, undefined_column, or a stale PostgREST schema cache.
func IsSchemaError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "42703":
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "schema cache")
}
