package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/liftlogio/liftlog/config"
	"github.com/liftlogio/liftlog/models"
	"github.com/liftlogio/liftlog/routes"
	"github.com/liftlogio/liftlog/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type authPayload struct {
	Token string `json:"token"`
	User  struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

func setupTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	// Redis points at a closed port on purpose: every redis-backed path
	// (cache, blacklist, signup counters) must degrade gracefully.
	cfg := config.AppConfig{
		AppPort:            "0",
		JWTSecret:          "router-test-secret",
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100000,
		RedisHost:          "127.0.0.1",
		RedisPort:          63790,
		LogLevel:           "error",
		LogMaxSizeMB:       1,
		LogMaxBackups:      1,
		LogMaxAgeDays:      1,
	}
	config.Set(cfg)
	require.NoError(t, utils.InitLogger(cfg))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.WorkoutEntry{}, &models.PersonalRecord{}))

	return routes.SetupRouter(db), db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func signup(t *testing.T, r *gin.Engine, username, password string) authPayload {
	t.Helper()
	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var payload authPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(t, payload.Token)
	return payload
}

func logWorkout(t *testing.T, r *gin.Engine, token string, body gin.H) envelope {
	t.Helper()
	rec, env := doJSON(t, r, http.MethodPost, "/api/workouts", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return env
}

func TestSignup_ShortPasswordNeverPersists(t *testing.T) {
	r, db := setupTest(t)

	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "valid_name",
		"password": "12345",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var data struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data.Fields, "password")

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSignup_ShortUsername(t *testing.T) {
	r, _ := setupTest(t)

	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "ab",
		"password": "longenough",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var data struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data.Fields, "username")
}

func TestSignup_DuplicateUsernameLeavesOriginalUntouched(t *testing.T) {
	r, db := setupTest(t)

	first := signup(t, r, "duplicate", "password1")

	rec, _ := doJSON(t, r, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "duplicate",
		"password": "password2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var users []models.User
	require.NoError(t, db.Where("username = ?", "duplicate").Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, first.User.ID, users[0].ID)
	assert.True(t, utils.CheckPassword(users[0].PasswordHash, "password1"))
}

func TestSignup_CaseSensitiveUsernames(t *testing.T) {
	r, _ := setupTest(t)

	signup(t, r, "CamelCase", "password1")
	// Different case is a different username, not a conflict
	signup(t, r, "camelcase", "password1")
}

func TestLogin_TokenEncodesStoredUserID(t *testing.T) {
	r, db := setupTest(t)

	signup(t, r, "tokenuser", "password1")

	rec, env := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "tokenuser",
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var payload authPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))

	claims, err := utils.ParseToken(payload.Token)
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, db.Where("username = ?", "tokenuser").First(&stored).Error)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, "tokenuser", claims.Username)
}

func TestLogin_GenericFailureMessage(t *testing.T) {
	r, _ := setupTest(t)

	signup(t, r, "realuser", "password1")

	// wrong password and missing user produce the same response
	recWrong, envWrong := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "realuser",
		"password": "wrongpass",
	})
	recMissing, envMissing := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "ghostuser",
		"password": "wrongpass",
	})

	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, recMissing.Code)
	assert.Equal(t, envWrong.Message, envMissing.Message)
	assert.Equal(t, envWrong.Code, envMissing.Code)
}

func TestVerifyToken(t *testing.T) {
	r, _ := setupTest(t)

	auth := signup(t, r, "verifyme", "password1")

	rec, env := doJSON(t, r, http.MethodGet, "/api/auth/verify-token", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, auth.User.ID, user.ID)
	assert.Equal(t, "verifyme", user.Username)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/auth/verify-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/auth/verify-token", "not.a.token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	r, _ := setupTest(t)

	auth := signup(t, r, "leaver", "password1")

	rec, _ := doJSON(t, r, http.MethodPost, "/api/auth/logout", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/auth/verify-token", auth.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWorkouts_RequireAuth(t *testing.T) {
	r, _ := setupTest(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/workouts", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/workouts/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/workouts/prs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogWorkout_Validation(t *testing.T) {
	r, _ := setupTest(t)
	auth := signup(t, r, "validator", "password1")

	rec, env := doJSON(t, r, http.MethodPost, "/api/workouts", auth.Token, gin.H{
		"date":          "01-01-2024",
		"exercise_name": "",
		"sets":          -1,
		"reps":          5,
		"weight":        -10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var data struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data.Fields, "date")
	assert.Contains(t, data.Fields, "exercise_name")
	assert.Contains(t, data.Fields, "sets")
	assert.Contains(t, data.Fields, "weight")
}

type recordJSON struct {
	ExerciseName string    `json:"exercise_name"`
	RecordType   string    `json:"record_type"`
	Value        float64   `json:"value"`
	DateAchieved time.Time `json:"date_achieved"`
}

type pointJSON struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
	Reps   int       `json:"reps"`
	Sets   int       `json:"sets"`
}

func TestWorkoutFlow_BenchPressExample(t *testing.T) {
	r, _ := setupTest(t)
	auth := signup(t, r, "bencher", "password1")

	env := logWorkout(t, r, auth.Token, gin.H{
		"date": "2024-01-01", "exercise_name": "Bench Press", "sets": 3, "reps": 5, "weight": 80,
	})
	var created struct {
		PersonalRecordUpdate *recordJSON `json:"personalRecordUpdate"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotNil(t, created.PersonalRecordUpdate)
	assert.Equal(t, 80.0, created.PersonalRecordUpdate.Value)

	env = logWorkout(t, r, auth.Token, gin.H{
		"date": "2024-01-08", "exercise_name": "Bench Press", "sets": 3, "reps": 5, "weight": 85,
	})
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotNil(t, created.PersonalRecordUpdate)
	assert.Equal(t, 85.0, created.PersonalRecordUpdate.Value)

	// Equal weight never records
	env = logWorkout(t, r, auth.Token, gin.H{
		"date": "2024-01-15", "exercise_name": "Bench Press", "sets": 3, "reps": 5, "weight": 85,
	})
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Nil(t, created.PersonalRecordUpdate)

	// Current records: one max_weight row, value 85, date of the 85 lift
	rec, env := doJSON(t, r, http.MethodGet, "/api/workouts/prs", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []recordJSON
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Bench Press", records[0].ExerciseName)
	assert.Equal(t, "max_weight", records[0].RecordType)
	assert.Equal(t, 85.0, records[0].Value)
	assert.Equal(t, "2024-01-08", records[0].DateAchieved.Format("2006-01-02"))

	// Progress: all three points, ascending by date
	rec, env = doJSON(t, r, http.MethodGet, "/api/workouts/progress/Bench%20Press", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var points []pointJSON
	require.NoError(t, json.Unmarshal(env.Data, &points))
	require.Len(t, points, 3)
	assert.Equal(t, 80.0, points[0].Weight)
	assert.Equal(t, 85.0, points[1].Weight)
	for i := 1; i < len(points); i++ {
		assert.False(t, points[i].Date.Before(points[i-1].Date))
	}

	// Case-insensitive exercise match on progress lookups
	rec, env = doJSON(t, r, http.MethodGet, "/api/workouts/progress/bench%20press", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &points))
	assert.Len(t, points, 3)
}

func TestGetProgress_NotFoundWithoutWeightedEntries(t *testing.T) {
	r, _ := setupTest(t)
	auth := signup(t, r, "runner", "password1")

	// Unweighted entry only
	logWorkout(t, r, auth.Token, gin.H{
		"date": "2024-02-01", "exercise_name": "Running", "sets": 1, "reps": 1, "duration": 30,
	})

	rec, _ := doJSON(t, r, http.MethodGet, "/api/workouts/progress/Running", auth.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/workouts/progress/Nonexistent", auth.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetHistory_OrderedNewestFirst(t *testing.T) {
	r, _ := setupTest(t)
	auth := signup(t, r, "historian", "password1")

	logWorkout(t, r, auth.Token, gin.H{
		"date": "2024-03-01", "exercise_name": "Squat", "sets": 3, "reps": 5, "weight": 100,
	})
	logWorkout(t, r, auth.Token, gin.H{
		"date": "2024-03-08", "exercise_name": "Bench Press", "sets": 3, "reps": 5, "weight": 60,
	})
	// Same date as the first: most recently logged shows first among equals
	logWorkout(t, r, auth.Token, gin.H{
		"date": "2024-03-01", "exercise_name": "Deadlift", "sets": 1, "reps": 5, "weight": 140,
	})

	rec, env := doJSON(t, r, http.MethodGet, "/api/workouts/history", auth.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []struct {
		ExerciseName string    `json:"exercise_name"`
		Date         time.Time `json:"date"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "Bench Press", entries[0].ExerciseName)
	assert.Equal(t, "Deadlift", entries[1].ExerciseName)
	assert.Equal(t, "Squat", entries[2].ExerciseName)
}

func TestHistory_ScopedToCaller(t *testing.T) {
	r, _ := setupTest(t)
	alice := signup(t, r, "alice_scope", "password1")
	bob := signup(t, r, "bob_scope", "password1")

	logWorkout(t, r, alice.Token, gin.H{
		"date": "2024-04-01", "exercise_name": "Squat", "sets": 3, "reps": 5, "weight": 100,
	})

	rec, env := doJSON(t, r, http.MethodGet, "/api/workouts/history", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Empty(t, entries)
}

func TestHealthAndNoRoute(t *testing.T) {
	r, _ := setupTest(t)

	rec, _ := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := doJSON(t, r, http.MethodGet, "/api/does/not/exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 40400, env.Code)
}
