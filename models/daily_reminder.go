package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DailyReminder fires every day at ReminderTime ("HH:MM").
type DailyReminder struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OwnerID      string    `gorm:"column:user_id;type:uuid;index;not null" json:"user_id"`
	Title        string    `gorm:"column:title;not null" json:"title"`
	Notes        string    `gorm:"column:notes" json:"notes"`
	ReminderTime string    `gorm:"column:reminder_time;type:varchar(8);not null" json:"reminder_time"`
	Active       bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (DailyReminder) TableName() string { return "daily_reminders" }

func (r *DailyReminder) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return
}
