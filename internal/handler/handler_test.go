package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-core/internal/repository"
	"github.com/noah-isme/attendance-core/internal/service"
	"github.com/noah-isme/attendance-core/pkg/config"
	"github.com/noah-isme/attendance-core/pkg/database"
	"github.com/noah-isme/attendance-core/pkg/storage"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

// newServer wires the full stack over a seeded SQLite file.
func newServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "attendance.db"),
		BusyTimeout: 5 * time.Second,
		Seed:        true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	reportRepo := repository.NewReportRepository(db)
	metrics := service.NewMetricsService()
	cache := service.NewCacheService(nil, metrics, 0, logger, false)

	auth := service.NewAuthService(userRepo, nil, logger, service.AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour})
	reports := service.NewReportService(reportRepo, cache, 0, logger)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := Handlers{
		Auth:     NewAuthHandler(auth),
		Users:    NewUserHandler(service.NewUserService(userRepo, nil, nil, logger)),
		Groups:   NewGroupHandler(service.NewGroupService(groupRepo, userRepo, cache, nil, logger)),
		Subjects: NewSubjectHandler(service.NewSubjectService(repository.NewSubjectRepository(db), cache, nil, logger)),
		Sessions: NewSessionHandler(
			service.NewSessionService(sessionRepo, reportRepo, userRepo, cache, nil, logger),
			service.NewAttendanceService(repository.NewAttendanceRepository(db), sessionRepo, cache, metrics, logger),
		),
		Reports: NewReportHandler(reports, service.NewExportService(reports, files, logger)),
	}

	r := gin.New()
	RegisterSystemRoutes(r, NewMetricsHandler(metrics, map[string]Pinger{"database": db}, logger))
	RegisterRoutes(r.Group("/api/v1"), h, auth)
	return r
}

func do(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func login(t *testing.T, r *gin.Engine, username, password, role string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password, "role": role})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &out)
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func TestLogin(t *testing.T) {
	r := newServer(t)
	login(t, r, "admin", "admin123", "admin")

	for _, body := range []map[string]string{
		{"username": "admin", "password": "admin123", "role": "teacher"},
		{"username": "admin", "password": "wrong", "role": "admin"},
		{"username": "ghost", "password": "admin123", "role": "admin"},
	} {
		w := do(r, http.MethodPost, "/api/v1/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		env := decode(t, w, nil)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newServer(t)
	w := do(r, http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserManagement(t *testing.T) {
	r := newServer(t)
	admin := login(t, r, "admin", "admin123", "admin")
	student := login(t, r, "student1", "studpass", "student")

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/users", student, nil).Code)

	var users []map[string]interface{}
	env := decode(t, do(r, http.MethodGet, "/api/v1/users", admin, nil), &users)
	assert.Len(t, users, 4)
	assert.Equal(t, float64(4), env.Meta["count"])
	for _, u := range users {
		assert.NotContains(t, u, "password_hash")
	}

	w := do(r, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "student3", "password": "pw", "role": "student"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	student3 := login(t, r, "student3", "pw", "student")

	w = do(r, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "student3", "password": "pw", "role": "student"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "x", "password": "pw", "role": "principal"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/api/v1/users/2", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REFERENCE_IN_USE", decode(t, w, nil).Error.Code)

	w = do(r, http.MethodPut, "/api/v1/users/3", admin, map[string]string{"role": "teacher"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(r, http.MethodPut, "/api/v1/users/2", admin, map[string]string{"role": "student"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var created []map[string]interface{}
	decode(t, do(r, http.MethodGet, "/api/v1/users?search=student3", admin, nil), &created)
	require.Len(t, created, 1)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/attendance/me", student3, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", int64(created[0]["id"].(float64))), admin, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/attendance/me", student3, nil).Code)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/users/abc", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/users/99", admin, nil).Code)
}

func TestMarkAndRoster(t *testing.T) {
	r := newServer(t)
	admin := login(t, r, "admin", "admin123", "admin")
	teacher := login(t, r, "teacher1", "teachpass", "teacher")

	w := do(r, http.MethodPut, "/api/v1/sessions/1/attendance/4", teacher, map[string]string{"status": "late"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var roster []struct {
		StudentID int64  `json:"student_id"`
		Username  string `json:"username"`
		Status    string `json:"status"`
	}
	decode(t, do(r, http.MethodGet, "/api/v1/sessions/1/roster", teacher, nil), &roster)
	require.Len(t, roster, 2)
	assert.Equal(t, "student1", roster[0].Username)
	assert.Equal(t, "present", roster[0].Status)
	assert.Equal(t, "late", roster[1].Status)

	w = do(r, http.MethodPut, "/api/v1/sessions/1/attendance/4", teacher, map[string]string{"status": "sick"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "teacher2", "password": "pw", "role": "teacher"})
	require.Equal(t, http.StatusCreated, w.Code)
	other := login(t, r, "teacher2", "pw", "teacher")
	w = do(r, http.MethodPut, "/api/v1/sessions/1/attendance/4", other, map[string]string{"status": "present"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/sessions/1/roster", other, nil).Code)

	w = do(r, http.MethodPut, "/api/v1/sessions/99/attendance/4", teacher, map[string]string{"status": "present"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkRosterPartialFailure(t *testing.T) {
	r := newServer(t)
	teacher := login(t, r, "teacher1", "teachpass", "teacher")

	w := do(r, http.MethodPost, "/api/v1/sessions/2/attendance", teacher, map[string]interface{}{
		"statuses": map[string]string{"3": "absent", "4": "late", "1": "present"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Processed int `json:"processed"`
		Success   int `json:"success"`
		Failures  []struct {
			StudentID int64  `json:"student_id"`
			Code      string `json:"code"`
		} `json:"failures"`
	}
	decode(t, w, &result)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Success)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, int64(1), result.Failures[0].StudentID)
	assert.Equal(t, "VALIDATION_ERROR", result.Failures[0].Code)
}

func TestSessionListingByRole(t *testing.T) {
	r := newServer(t)
	teacher := login(t, r, "teacher1", "teachpass", "teacher")
	student := login(t, r, "student2", "studpass", "student")

	var sessions []struct {
		ID          int64  `json:"id"`
		Date        string `json:"date"`
		SubjectName string `json:"subject_name"`
	}
	decode(t, do(r, http.MethodGet, "/api/v1/sessions", teacher, nil), &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-11-20", sessions[0].Date)

	decode(t, do(r, http.MethodGet, "/api/v1/sessions?order=desc", student, nil), &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-11-21", sessions[0].Date)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/sessions?scope=all", teacher, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/sessions?order=up", teacher, nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/sessions/1", student, nil).Code)
}

func TestReportsAndHistory(t *testing.T) {
	r := newServer(t)
	admin := login(t, r, "admin", "admin123", "admin")
	teacher := login(t, r, "teacher1", "teachpass", "teacher")
	student := login(t, r, "student1", "studpass", "student")

	var rows []map[string]interface{}
	decode(t, do(r, http.MethodGet, "/api/v1/attendance/report", teacher, nil), &rows)
	require.Len(t, rows, 4)
	assert.Equal(t, "2025-11-21", rows[0]["date"])

	decode(t, do(r, http.MethodGet, "/api/v1/attendance/report?status=absent&order=asc", admin, nil), &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "student2", rows[0]["student"])

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/attendance/report", student, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/attendance/report?group_id=x", admin, nil).Code)

	var history []map[string]interface{}
	decode(t, do(r, http.MethodGet, "/api/v1/attendance/me", student, nil), &history)
	assert.Len(t, history, 2)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/attendance/me", teacher, nil).Code)

	var summary []struct {
		Student string  `json:"student"`
		Percent float64 `json:"percent"`
	}
	decode(t, do(r, http.MethodGet, "/api/v1/attendance/summary", admin, nil), &summary)
	require.Len(t, summary, 2)
	assert.Equal(t, "student1", summary[0].Student)
	assert.Equal(t, float64(100), summary[0].Percent)
	assert.Equal(t, float64(50), summary[1].Percent)
}

func TestExport(t *testing.T) {
	r := newServer(t)
	admin := login(t, r, "admin", "admin123", "admin")

	w := do(r, http.MethodGet, "/api/v1/attendance/export?format=csv", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "attendance_id,student,group,date,time,subject,status\n"))

	w = do(r, http.MethodGet, "/api/v1/attendance/export?format=yaml", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))

	w = do(r, http.MethodGet, "/api/v1/attendance/export?format=docx", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/api/v1/attendance/export", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGroupLifecycle(t *testing.T) {
	r := newServer(t)
	admin := login(t, r, "admin", "admin123", "admin")

	w := do(r, http.MethodPost, "/api/v1/groups", admin, map[string]string{"name": "25-ИВТ-2-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/groups/2/members", admin, map[string]int64{"user_id": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = do(r, http.MethodPost, "/api/v1/groups/2/members", admin, map[string]int64{"user_id": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(r, http.MethodPost, "/api/v1/groups/2/members", admin, map[string]int64{"user_id": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var members []map[string]interface{}
	decode(t, do(r, http.MethodGet, "/api/v1/groups/2/members", admin, nil), &members)
	assert.Len(t, members, 1)
	decode(t, do(r, http.MethodGet, "/api/v1/memberships", admin, nil), &members)
	assert.Len(t, members, 3)
	decode(t, do(r, http.MethodGet, "/api/v1/memberships?group_id=2", admin, nil), &members)
	assert.Len(t, members, 1)
	teacher := login(t, r, "teacher1", "teachpass", "teacher")
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/memberships", teacher, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/groups/2/members/3", admin, nil).Code)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/groups/1", admin, nil).Code)
	var rows []map[string]interface{}
	decode(t, do(r, http.MethodGet, "/api/v1/attendance/report", admin, nil), &rows)
	assert.Empty(t, rows)
}

func TestSystemRoutes(t *testing.T) {
	r := newServer(t)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "", nil).Code)

	w := do(r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)

	w = do(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attendance_goroutines")
}

func TestReadyReportsFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	down := PingFunc(func(ctx context.Context) error { return assert.AnError })
	RegisterSystemRoutes(r, NewMetricsHandler(nil, map[string]Pinger{"cache": down}, nil))

	w := do(r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"cache":"down"`)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/metrics", "", nil).Code)
}

