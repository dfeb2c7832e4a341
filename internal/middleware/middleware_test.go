package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/service"
	"github.com/noah-isme/attendance-core/pkg/response"
)

type staticUsers map[string]*models.User

func (s staticUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := s[username]; ok {
		return u, nil
	}
	return nil, nil
}

func (s staticUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range s {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func newAuth(t *testing.T) (*service.AuthService, func(username string, role models.UserRole) string, staticUsers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	users := staticUsers{
		"admin":    {ID: 1, Username: "admin", Role: models.RoleAdmin, PasswordHash: string(hash)},
		"teacher1": {ID: 2, Username: "teacher1", Role: models.RoleTeacher, PasswordHash: string(hash)},
		"s1":       {ID: 3, Username: "s1", Role: models.RoleStudent, PasswordHash: string(hash)},
	}
	auth := service.NewAuthService(users, nil, zap.NewNop(), service.AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})
	login := func(username string, role models.UserRole) string {
		resp, err := auth.Login(context.Background(), models.LoginRequest{Username: username, Password: "pw", Role: role})
		require.NoError(t, err)
		return resp.AccessToken
	}
	return auth, login, users
}

func newRouter(auth *service.AuthService, gate gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(auth), gate, func(c *gin.Context) {
		identity, _ := Identity(c)
		response.JSON(c, http.StatusOK, identity)
	})
	return r
}

func call(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTRejectsMissingAndMalformedTokens(t *testing.T) {
	auth, _, _ := newAuth(t)
	r := newRouter(auth, Require(access.ReadReport))

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer not-a-jwt"} {
		w := call(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, w), header)
	}
}

func TestJWTExposesIdentity(t *testing.T) {
	auth, login, _ := newAuth(t)
	r := newRouter(auth, Require(access.ReadReport))

	w := call(r, "Bearer "+login("teacher1", models.RoleTeacher))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data models.Identity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Data.ID)
	assert.Equal(t, models.RoleTeacher, body.Data.Role)
}

func TestJWTRejectsTokensOfChangedAccounts(t *testing.T) {
	auth, login, users := newAuth(t)
	r := newRouter(auth, Require(access.ReadReport))
	teacherToken := "Bearer " + login("teacher1", models.RoleTeacher)
	adminToken := "Bearer " + login("admin", models.RoleAdmin)

	users["teacher1"].Role = models.RoleStudent
	w := call(r, teacherToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))

	delete(users, "admin")
	assert.Equal(t, http.StatusUnauthorized, call(r, adminToken).Code)
}

func TestJWTUsesCurrentUsername(t *testing.T) {
	auth, login, users := newAuth(t)
	r := newRouter(auth, Require(access.ReadReport))
	token := "Bearer " + login("teacher1", models.RoleTeacher)

	users["teacher1"].Username = "teacher-renamed"
	w := call(r, token)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data models.Identity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "teacher-renamed", body.Data.Username)
}

func TestRequireUsesAccessMatrix(t *testing.T) {
	auth, login, _ := newAuth(t)
	r := newRouter(auth, Require(access.ReadReport))

	w := call(r, "Bearer "+login("s1", models.RoleStudent))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = call(r, "Bearer "+login("admin", models.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAcceptsAnyListedOperation(t *testing.T) {
	auth, login, _ := newAuth(t)
	r := newRouter(auth, Require(access.ListAllSessions, access.ListOwnSessions, access.ListGroupSessions))

	for _, tc := range []struct {
		user string
		role models.UserRole
	}{{"admin", models.RoleAdmin}, {"teacher1", models.RoleTeacher}, {"s1", models.RoleStudent}} {
		w := call(r, "Bearer "+login(tc.user, tc.role))
		assert.Equal(t, http.StatusOK, w.Code, tc.user)
	}
}

func TestRequireRoles(t *testing.T) {
	auth, login, _ := newAuth(t)
	r := newRouter(auth, RequireRoles(models.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, call(r, "Bearer "+login("teacher1", models.RoleTeacher)).Code)
	assert.Equal(t, http.StatusOK, call(r, "Bearer "+login("admin", models.RoleAdmin)).Code)
}

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/42", nil))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `attendance_http_requests_total{method="GET",path="/sessions/:id",status="200"} 1`), body)
}

func TestMetricsCollapsesUnmatchedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/2", nil))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `attendance_http_requests_total{method="GET",path="unmatched",status="404"} 2`)
	assert.NotContains(t, body, "/nope/1")
}
