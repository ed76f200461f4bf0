// models/reminder_send_record.go
package models

import "time"

// ReminderKind tags which notification rule fired.
type ReminderKind string

const (
	KindDayBefore             ReminderKind = "day_before"
	KindDayOfMorning          ReminderKind = "day_of_morning"
	KindDayOfThreeHoursBefore ReminderKind = "day_of_three_hours_before"
	KindDaysBefore            ReminderKind = "days_before"
	KindWorkoutExactTime      ReminderKind = "workout_exact_time"
	KindDailyExactTime        ReminderKind = "daily_exact_time"
)

// ReminderSendRecord is one row of the send-once ledger.
// The composite primary key makes (subject, kind, day) unique at the database level.
type ReminderSendRecord struct {
	SubjectID    string       `gorm:"column:subject_id;type:varchar(64);primaryKey" json:"subject_id"`
	ReminderKind ReminderKind `gorm:"column:reminder_kind;type:varchar(40);primaryKey" json:"reminder_kind"`
	Day          string       `gorm:"column:day;type:varchar(10);primaryKey" json:"day"`
	OwnerID      string       `gorm:"column:owner_id;type:varchar(64);index" json:"owner_id"`
	SentAt       time.Time    `gorm:"column:sent_at;not null;index" json:"sent_at"`
}

func (ReminderSendRecord) TableName() string { return "reminder_send_records" }
