package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/liftlogio/liftlog/middleware"
	"github.com/liftlogio/liftlog/models"
	"github.com/liftlogio/liftlog/utils"
)

const dateLayout = "2006-01-02"

// WorkoutController handles workout logging, history, personal records and
// per-exercise progress. Every query is scoped by the user id taken from the
// verified token, never from the request body.
type WorkoutController struct {
	db *gorm.DB
}

// NewWorkoutController creates a WorkoutController.
func NewWorkoutController(db *gorm.DB) *WorkoutController {
	return &WorkoutController{db: db}
}

func prsCacheKey(userID uint) string {
	return fmt.Sprintf("cache:prs:%d", userID)
}

type logWorkoutRequest struct {
	Date         string   `json:"date"`
	ExerciseName string   `json:"exercise_name"`
	Sets         *int     `json:"sets"`
	Reps         *int     `json:"reps"`
	Weight       *float64 `json:"weight"`
	Duration     *float64 `json:"duration"`
}

func (r *logWorkoutRequest) validate() (time.Time, string, map[string]string) {
	fields := map[string]string{}

	var date time.Time
	if r.Date == "" {
		fields["date"] = "date is required"
	} else {
		var err error
		date, err = time.Parse(dateLayout, r.Date)
		if err != nil {
			fields["date"] = "date must be a calendar date in YYYY-MM-DD format"
		}
	}

	exercise := strings.TrimSpace(utils.Sanitize(r.ExerciseName))
	if exercise == "" {
		fields["exercise_name"] = "exercise name is required"
	}

	if r.Sets == nil {
		fields["sets"] = "sets is required"
	} else if *r.Sets < 0 {
		fields["sets"] = "sets must be a non-negative integer"
	}
	if r.Reps == nil {
		fields["reps"] = "reps is required"
	} else if *r.Reps < 0 {
		fields["reps"] = "reps must be a non-negative integer"
	}
	if r.Weight != nil && *r.Weight < 0 {
		fields["weight"] = "weight must be a non-negative number"
	}
	if r.Duration != nil && *r.Duration < 0 {
		fields["duration"] = "duration must be a non-negative number"
	}

	return date, exercise, fields
}

// LogWorkout persists a workout entry and runs personal-record detection.
func (w *WorkoutController) LogWorkout(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req logWorkoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	date, exercise, fields := req.validate()
	if len(fields) > 0 {
		utils.ValidationError(ctx, 40011, fields)
		return
	}

	entry := models.WorkoutEntry{
		UserID:       userID,
		Date:         date,
		ExerciseName: exercise,
		Sets:         *req.Sets,
		Reps:         *req.Reps,
		Weight:       req.Weight,
		Duration:     req.Duration,
	}

	var record *models.PersonalRecord
	err := w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		var err error
		record, err = w.detectPersonalRecord(tx, &entry)
		return err
	})
	if err != nil {
		utils.Sugar.Errorf("workout insert failed for user %d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "internal server error")
		return
	}

	utils.CacheDelete(prsCacheKey(userID))

	utils.Created(ctx, "workout logged", gin.H{
		"workoutEntry":         entry,
		"personalRecordUpdate": record,
	})
}

// detectPersonalRecord inserts a new max_weight record row when the entry's
// weight strictly exceeds the current best for (user, exercise). Equal weight
// never records. Must run inside the same transaction as the entry insert;
// the row lock serializes concurrent logs of the same exercise on MySQL
// (SQLite allows a single writer anyway).
func (w *WorkoutController) detectPersonalRecord(tx *gorm.DB, entry *models.WorkoutEntry) (*models.PersonalRecord, error) {
	if entry.Weight == nil || *entry.Weight <= 0 {
		return nil, nil
	}

	q := tx.Where(
		"user_id = ? AND record_type = ? AND LOWER(exercise_name) = LOWER(?)",
		entry.UserID, models.RecordTypeMaxWeight, entry.ExerciseName,
	).Order("value DESC, date_achieved DESC, id DESC")
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var best models.PersonalRecord
	err := q.First(&best).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil && *entry.Weight <= best.Value {
		return nil, nil
	}

	record := models.PersonalRecord{
		UserID:         entry.UserID,
		ExerciseName:   entry.ExerciseName,
		RecordType:     models.RecordTypeMaxWeight,
		Value:          *entry.Weight,
		DateAchieved:   entry.Date,
		WorkoutEntryID: &entry.ID,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// GetHistory returns all entries for the user, newest first; same-day entries
// show most-recently-logged first.
func (w *WorkoutController) GetHistory(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var entries []models.WorkoutEntry
	if err := w.db.
		Where("user_id = ?", userID).
		Order("date DESC, created_at DESC, id DESC").
		Find(&entries).Error; err != nil {
		utils.Sugar.Errorf("history query failed for user %d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50011, "internal server error")
		return
	}

	utils.Success(ctx, entries)
}

// GetCurrentRecords returns, per (exercise, record type), the single current
// best: maximum value, ties broken by most recent date, then newest row.
func (w *WorkoutController) GetCurrentRecords(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	if b, ok := utils.CacheGetBytes(prsCacheKey(userID)); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var records []models.PersonalRecord
	err := w.db.Raw(`
		SELECT pr.* FROM personal_records pr
		WHERE pr.user_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM personal_records p2
			WHERE p2.user_id = pr.user_id
			  AND p2.record_type = pr.record_type
			  AND LOWER(p2.exercise_name) = LOWER(pr.exercise_name)
			  AND (p2.value > pr.value
				OR (p2.value = pr.value AND p2.date_achieved > pr.date_achieved)
				OR (p2.value = pr.value AND p2.date_achieved = pr.date_achieved AND p2.id > pr.id)))
		ORDER BY LOWER(pr.exercise_name) ASC`, userID).
		Scan(&records).Error
	if err != nil {
		utils.Sugar.Errorf("records query failed for user %d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50012, "internal server error")
		return
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: records}
	utils.CacheSetJSON(prsCacheKey(userID), wrapper, time.Hour)
	utils.Success(ctx, records)
}

type progressPoint struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
	Reps   int       `json:"reps"`
	Sets   int       `json:"sets"`
}

// GetProgress returns weighted entries for one exercise ordered by date
// ascending, or 404 when nothing matches.
func (w *WorkoutController) GetProgress(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	exercise := strings.TrimSpace(ctx.Param("exerciseName"))
	if exercise == "" {
		utils.Error(ctx, http.StatusBadRequest, 40012, "missing exercise name")
		return
	}

	var points []progressPoint
	err := w.db.Model(&models.WorkoutEntry{}).
		Select("date", "weight", "reps", "sets").
		Where("user_id = ? AND weight IS NOT NULL AND LOWER(exercise_name) = LOWER(?)", userID, exercise).
		Order("date ASC, id ASC").
		Scan(&points).Error
	if err != nil {
		utils.Sugar.Errorf("progress query failed for user %d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50013, "internal server error")
		return
	}

	if len(points) == 0 {
		utils.Error(ctx, http.StatusNotFound, 40402, "no progress data for exercise")
		return
	}

	utils.Success(ctx, points)
}
