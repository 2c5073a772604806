package models

import "time"

// WorkoutEntry is a single logged workout. Entries are append-only: the API
// never updates or deletes them.
type WorkoutEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	Date         time.Time `gorm:"index;not null" json:"date"`
	ExerciseName string    `gorm:"size:255;not null;index" json:"exercise_name"`
	Sets         int       `gorm:"not null" json:"sets"`
	Reps         int       `gorm:"not null" json:"reps"`
	Weight       *float64  `json:"weight"`
	Duration     *float64  `json:"duration"`
	CreatedAt    time.Time `json:"created_at"`

	User User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
