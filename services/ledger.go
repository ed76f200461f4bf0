package services

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lifeplanner-backend/models"
)

// SendKey identifies one send-once slot: a subject, the rule that fired and the day it counts against.
type SendKey struct {
	SubjectID string
	Kind      models.ReminderKind
	Day       string
}

// Ledger records which reminders were already delivered.
//
// MarkSent is the only admission check the dispatcher uses: it inserts the row and reports
// whether this caller created it. A false result means another pass (or process) owns the send.
type Ledger interface {
	MarkSent(ctx context.Context, key SendKey, ownerID string, at time.Time) (bool, error)
	HasSent(ctx context.Context, key SendKey) (bool, error)
	// Release drops a claim whose send failed so a later tick inside the window can retry it.
	Release(ctx context.Context, key SendKey) error
	ListDay(ctx context.Context, day string) ([]models.ReminderSendRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// GormLedger stores the ledger in the reminder_send_records table.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) MarkSent(ctx context.Context, key SendKey, ownerID string, at time.Time) (bool, error) {
	record := models.ReminderSendRecord{
		SubjectID:    key.SubjectID,
		ReminderKind: key.Kind,
		Day:          key.Day,
		OwnerID:      ownerID,
		SentAt:       at,
	}
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return false, ledgerErr("mark", key, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (l *GormLedger) HasSent(ctx context.Context, key SendKey) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.ReminderSendRecord{}).
		Where("subject_id = ? AND reminder_kind = ? AND day = ?", key.SubjectID, key.Kind, key.Day).
		Count(&count).Error
	if err != nil {
		return false, ledgerErr("lookup", key, err)
	}
	return count > 0, nil
}

func (l *GormLedger) Release(ctx context.Context, key SendKey) error {
	err := l.db.WithContext(ctx).
		Where("subject_id = ? AND reminder_kind = ? AND day = ?", key.SubjectID, key.Kind, key.Day).
		Delete(&models.ReminderSendRecord{}).Error
	if err != nil {
		return ledgerErr("release", key, err)
	}
	return nil
}

func (l *GormLedger) ListDay(ctx context.Context, day string) ([]models.ReminderSendRecord, error) {
	var records []models.ReminderSendRecord
	err := l.db.WithContext(ctx).
		Where("day = ?", day).
		Order("sent_at").
		Find(&records).Error
	if err != nil {
		return nil, ledgerErr("list", SendKey{Day: day}, err)
	}
	return records, nil
}

// Prune deletes records sent before the cutoff and returns how many were removed.
func (l *GormLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("sent_at < ?", before).
		Delete(&models.ReminderSendRecord{})
	if result.Error != nil {
		return 0, ledgerErr("prune", SendKey{}, result.Error)
	}
	return result.RowsAffected, nil
}

func ledgerErr(op string, key SendKey, err error) error {
	return &LedgerWriteError{Op: op, SubjectID: key.SubjectID, Kind: key.Kind, Day: key.Day, Err: err}
}
