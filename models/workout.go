package models

// WorkoutScheduleSlot is one row of a user's weekly training plan.
// Weekday follows ISO numbering: 1=Monday..7=Sunday.
type WorkoutScheduleSlot struct {
	ID         string  `gorm:"column:id;primaryKey" json:"id"`
	OwnerID    string  `gorm:"column:user_id;index" json:"user_id"`
	Weekday    int     `gorm:"column:weekday" json:"weekday"`
	WorkoutRef *string `gorm:"column:workout_id" json:"workout_id"`
	TimeOfDay  *string `gorm:"column:time" json:"time"`
	Active     bool    `gorm:"column:is_active" json:"is_active"`
}

func (WorkoutScheduleSlot) TableName() string { return "workout_schedule" }

// WorkoutRoutine is the named routine a slot points at.
type WorkoutRoutine struct {
	ID           string `gorm:"column:id;primaryKey" json:"id"`
	Name         string `gorm:"column:name" json:"name"`
	MuscleGroups string `gorm:"column:muscle_groups" json:"muscle_groups"` // comma separated
}

func (WorkoutRoutine) TableName() string { return "workout_routines" }
