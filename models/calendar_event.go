package models

import "time"

// CalendarEvent is a user's agenda entry. The engine only reads it.
type CalendarEvent struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerID   string    `gorm:"column:user_id;index" json:"user_id"`
	Title     string    `gorm:"column:title" json:"title"`
	Date      time.Time `gorm:"column:date;type:date" json:"date"`
	StartTime *string   `gorm:"column:start" json:"start"`
	EndTime   *string   `gorm:"column:end" json:"end"`
	Notes     *string   `gorm:"column:notes" json:"notes"`
}

func (CalendarEvent) TableName() string { return "events" }

// Day is the event's plain calendar day, "YYYY-MM-DD".
// Postgres date columns scan as midnight UTC, so the day is read without any zone conversion.
func (e CalendarEvent) Day() string {
	return e.Date.Format("2006-01-02")
}
