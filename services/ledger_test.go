package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lifeplanner-backend/models"
)

func setupMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

var testKey = SendKey{SubjectID: "evt-1", Kind: models.KindDayBefore, Day: "2024-06-10"}

const insertLedgerSQL = `INSERT INTO "reminder_send_records"`

func TestGormLedger_MarkSent_Inserted(t *testing.T) {
	db, mock := setupMockGorm(t)
	ledger := NewGormLedger(db)

	mock.ExpectExec(regexp.QuoteMeta(insertLedgerSQL)).
		WithArgs("evt-1", models.KindDayBefore, "2024-06-10", "owner-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := ledger.MarkSent(context.Background(), testKey, "owner-1", time.Now())
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLedger_MarkSent_TwiceIsIdempotent(t *testing.T) {
	db, mock := setupMockGorm(t)
	ledger := NewGormLedger(db)

	mock.ExpectExec(regexp.QuoteMeta(insertLedgerSQL)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLedgerSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "reminder_send_records"`)).
		WithArgs("evt-1", models.KindDayBefore, "2024-06-10").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ctx := context.Background()
	first, err := ledger.MarkSent(ctx, testKey, "owner-1", time.Now())
	require.NoError(t, err)
	second, err := ledger.MarkSent(ctx, testKey, "owner-1", time.Now())
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second, "conflicting insert must not claim the send again")

	sent, err := ledger.HasSent(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLedger_MarkSent_StorageFailure(t *testing.T) {
	db, mock := setupMockGorm(t)
	ledger := NewGormLedger(db)

	mock.ExpectExec(regexp.QuoteMeta(insertLedgerSQL)).WillReturnError(errors.New("connection reset"))

	inserted, err := ledger.MarkSent(context.Background(), testKey, "owner-1", time.Now())
	assert.False(t, inserted)

	var lwe *LedgerWriteError
	require.ErrorAs(t, err, &lwe)
	assert.Equal(t, "mark", lwe.Op)
	assert.Equal(t, "evt-1", lwe.SubjectID)
	assert.Equal(t, models.KindDayBefore, lwe.Kind)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGormLedger_HasSent_NotFound(t *testing.T) {
	db, mock := setupMockGorm(t)
	ledger := NewGormLedger(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "reminder_send_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	sent, err := ledger.HasSent(context.Background(), testKey)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestGormLedger_Release(t *testing.T) {
	db, mock := setupMockGorm(t)
	ledger := NewGormLedger(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "reminder_send_records"`)).
		WithArgs("evt-1", models.KindDayBefore, "2024-06-10").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.Release(context.Background(), testKey))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLedger_ListDay(t *testing.T) {
	db, mock := setupMockGorm(t)
	ledger := NewGormLedger(db)
	sentAt := time.Date(2024, 6, 10, 9, 20, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"subject_id", "reminder_kind", "day", "owner_id", "sent_at"}).
		AddRow("evt-1", "day_of_morning", "2024-06-10", "owner-1", sentAt).
		AddRow("slot-1", "workout_exact_time", "2024-06-10", "owner-2", sentAt.Add(time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "reminder_send_records" WHERE day = $1 ORDER BY sent_at`)).
		WithArgs("2024-06-10").
		WillReturnRows(rows)

	records, err := ledger.ListDay(context.Background(), "2024-06-10")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.KindWorkoutExactTime, records[1].ReminderKind)
	assert.Equal(t, "owner-2", records[1].OwnerID)
}

func TestGormLedger_Prune(t *testing.T) {
	db, mock := setupMockGorm(t)
	ledger := NewGormLedger(db)
	cutoff := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "reminder_send_records" WHERE sent_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	removed, err := ledger.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
}
