package models

import "time"

// RecordTypeMaxWeight is the only record type currently tracked.
const RecordTypeMaxWeight = "max_weight"

// PersonalRecord is one row of the append-only record history. Every time a
// workout beats the current best a new row is inserted; the "current" record
// per (user, exercise, type) is derived as greatest value, ties broken by
// latest date.
type PersonalRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	ExerciseName   string    `gorm:"size:255;not null;index" json:"exercise_name"`
	RecordType     string    `gorm:"size:32;not null;default:'max_weight'" json:"record_type"`
	Value          float64   `gorm:"not null" json:"value"`
	DateAchieved   time.Time `gorm:"not null" json:"date_achieved"`
	WorkoutEntryID *uint     `json:"workout_entry_id"`
	CreatedAt      time.Time `json:"created_at"`

	User         User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	WorkoutEntry *WorkoutEntry `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
}
