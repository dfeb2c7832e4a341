package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-core/internal/models"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, *UserService) {
	t.Helper()
	repo := newMockUserRepo()
	users := NewUserService(repo, nil, nil, zap.NewNop())
	users.cost = bcrypt.MinCost
	auth := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "attendance-core",
	})
	return auth, users
}

func TestAuthenticateAfterCreate(t *testing.T) {
	auth, users := newAuthFixture(t)
	ctx := context.Background()

	created, err := users.Create(ctx, asAdmin, models.CreateUserRequest{Username: "alice", Password: "p", Role: models.RoleStudent})
	require.NoError(t, err)

	identity, err := auth.Authenticate(ctx, "alice", "p", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, created.ID, identity.ID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, models.RoleStudent, identity.Role)
}

func TestAuthenticateRejectsEveryMismatchAlike(t *testing.T) {
	auth, users := newAuthFixture(t)
	ctx := context.Background()
	_, err := users.Create(ctx, asAdmin, models.CreateUserRequest{Username: "alice", Password: "p", Role: models.RoleStudent})
	require.NoError(t, err)

	cases := []struct {
		name     string
		username string
		password string
		role     models.UserRole
	}{
		{"wrong role", "alice", "p", models.RoleTeacher},
		{"wrong password", "alice", "nope", models.RoleStudent},
		{"unknown user", "bob", "p", models.RoleStudent},
	}

	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := auth.Authenticate(ctx, tc.username, tc.password, tc.role)
			require.Error(t, err)
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
			messages = append(messages, err.Error())
		})
	}
	for _, msg := range messages {
		assert.Equal(t, messages[0], msg)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	auth, users := newAuthFixture(t)
	ctx := context.Background()
	created, err := users.Create(ctx, asAdmin, models.CreateUserRequest{Username: "teacher1", Password: "teachpass", Role: models.RoleTeacher})
	require.NoError(t, err)

	resp, err := auth.Login(ctx, models.LoginRequest{Username: "teacher1", Password: "teachpass", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, created.ID, resp.User.ID)

	claims, err := auth.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "attendance-core", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, resp.User, claims.Identity())
}

func TestLoginValidatesPayload(t *testing.T) {
	auth, _ := newAuthFixture(t)
	_, err := auth.Login(context.Background(), models.LoginRequest{Username: "alice"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	auth, _ := newAuthFixture(t)
	claims := &models.JWTClaims{
		UserID: 1,
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "attendance-core",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = auth.ValidateToken(forged)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	auth, _ := newAuthFixture(t)
	claims := &models.JWTClaims{
		UserID: 1,
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "attendance-core",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = auth.ValidateToken(expired)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestResolveFollowsAccountChanges(t *testing.T) {
	auth, users := newAuthFixture(t)
	ctx := context.Background()

	created, err := users.Create(ctx, asAdmin, models.CreateUserRequest{Username: "teacher1", Password: "teachpass", Role: models.RoleTeacher})
	require.NoError(t, err)
	resp, err := auth.Login(ctx, models.LoginRequest{Username: "teacher1", Password: "teachpass", Role: models.RoleTeacher})
	require.NoError(t, err)

	name := "teacher-one"
	_, err = users.Update(ctx, asAdmin, created.ID, models.UpdateUserRequest{Username: &name})
	require.NoError(t, err)
	identity, err := auth.Resolve(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: created.ID, Username: "teacher-one", Role: models.RoleTeacher}, identity)

	role := models.RoleAdmin
	_, err = users.Update(ctx, asAdmin, created.ID, models.UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	_, err = auth.Resolve(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	require.NoError(t, users.Delete(ctx, asAdmin, created.ID))
	_, err = auth.Resolve(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
