package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/repository"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
)

func newUserFixture(users ...models.User) (*UserService, *mockUserRepo) {
	repo := newMockUserRepo(users...)
	svc := NewUserService(repo, nil, nil, zap.NewNop())
	svc.cost = bcrypt.MinCost
	return svc, repo
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	svc, repo := newUserFixture()
	email := "  Alice@Example.COM "

	user, err := svc.Create(context.Background(), asAdmin, models.CreateUserRequest{
		Username: " alice ",
		Password: "secret",
		Role:     models.RoleStudent,
		Email:    &email,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	require.NotNil(t, user.Email)
	assert.Equal(t, "alice@example.com", *user.Email)

	stored := repo.users[user.ID]
	assert.NotEqual(t, "secret", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret")))
}

func TestUserServiceCreateDuplicate(t *testing.T) {
	svc, _ := newUserFixture()
	ctx := context.Background()
	req := models.CreateUserRequest{Username: "alice", Password: "p", Role: models.RoleStudent}

	_, err := svc.Create(ctx, asAdmin, req)
	require.NoError(t, err)
	_, err = svc.Create(ctx, asAdmin, req)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateKey)
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc, _ := newUserFixture()
	ctx := context.Background()

	cases := map[string]models.CreateUserRequest{
		"unknown role":   {Username: "x", Password: "p", Role: "janitor"},
		"blank username": {Username: "   ", Password: "p", Role: models.RoleStudent},
		"blank password": {Username: "x", Password: "   ", Role: models.RoleStudent},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, asAdmin, req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestUserServiceRequiresAdmin(t *testing.T) {
	svc, _ := newUserFixture()
	for _, identity := range []models.Identity{asTeacher, asStudent} {
		_, err := svc.Create(context.Background(), identity, models.CreateUserRequest{Username: "x", Password: "p", Role: models.RoleStudent})
		assert.ErrorIs(t, err, appErrors.ErrForbidden, string(identity.Role))
	}
}

func TestUserServiceUpdateKeepsPasswordWhenEmpty(t *testing.T) {
	svc, repo := newUserFixture(models.User{ID: 7, Username: "bob", PasswordHash: "original", Role: models.RoleStudent})
	role := models.RoleTeacher
	name := "robert"

	user, err := svc.Update(context.Background(), asAdmin, 7, models.UpdateUserRequest{Username: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "robert", user.Username)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.Equal(t, "original", repo.users[7].PasswordHash)

	_, err = svc.Update(context.Background(), asAdmin, 7, models.UpdateUserRequest{Password: "new"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[7].PasswordHash), []byte("new")))
}

func TestUserServiceUpdateMissing(t *testing.T) {
	svc, _ := newUserFixture()
	_, err := svc.Update(context.Background(), asAdmin, 42, models.UpdateUserRequest{Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceDeletePolicy(t *testing.T) {
	svc, repo := newUserFixture(models.User{ID: 2, Username: "teacher1", Role: models.RoleTeacher})
	ctx := context.Background()

	err := svc.Delete(ctx, asAdmin, asAdmin.ID)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	repo.deleteErr = fmt.Errorf("delete user: %w", repository.ErrInUse)
	err = svc.Delete(ctx, asAdmin, 2)
	assert.ErrorIs(t, err, appErrors.ErrReferenceInUse)

	repo.deleteErr = nil
	require.NoError(t, svc.Delete(ctx, asAdmin, 2))
	assert.Equal(t, []int64{2}, repo.deleted)

	assert.ErrorIs(t, svc.Delete(ctx, asAdmin, 2), appErrors.ErrNotFound)
}

func TestUserServiceListFiltersByRole(t *testing.T) {
	svc, _ := newUserFixture(
		models.User{ID: 1, Username: "admin", Role: models.RoleAdmin},
		models.User{ID: 3, Username: "s2", Role: models.RoleStudent},
		models.User{ID: 4, Username: "s1", Role: models.RoleStudent},
	)
	role := models.RoleStudent

	users, err := svc.List(context.Background(), asAdmin, models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "s1", users[0].Username)

	bad := models.UserRole("ghost")
	_, err = svc.List(context.Background(), asAdmin, models.UserFilter{Role: &bad})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceRenameAndDeleteRefreshCachedReports(t *testing.T) {
	reports, store, backend := newReportFixture(true)
	repo := newMockUserRepo(
		models.User{ID: 3, Username: "s1", Role: models.RoleStudent},
		models.User{ID: 4, Username: "s2", Role: models.RoleStudent},
	)
	svc := NewUserService(repo, NewCacheService(backend, nil, time.Minute, zap.NewNop(), true), nil, zap.NewNop())
	ctx := context.Background()

	rows, err := reports.Report(ctx, asAdmin, models.ReportFilter{}, models.SortDesc)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	store.rows[1].Student = "renamed"
	name := "renamed"
	_, err = svc.Update(ctx, asAdmin, 3, models.UpdateUserRequest{Username: &name})
	require.NoError(t, err)
	rows, err = reports.Report(ctx, asAdmin, models.ReportFilter{}, models.SortDesc)
	require.NoError(t, err)
	assert.Equal(t, "renamed", rows[1].Student)

	store.rows = store.rows[:1]
	require.NoError(t, svc.Delete(ctx, asAdmin, 3))
	rows, err = reports.Report(ctx, asAdmin, models.ReportFilter{}, models.SortDesc)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, store.reportCalls)
}

func TestUserServiceRoleChangeBlockedByReferences(t *testing.T) {
	svc, repo := newUserFixture(models.User{ID: 2, Username: "teacher1", Role: models.RoleTeacher})
	repo.updateErr = fmt.Errorf("change role: teaches 1 sessions: %w", repository.ErrInUse)
	role := models.RoleStudent

	_, err := svc.Update(context.Background(), asAdmin, 2, models.UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, appErrors.ErrReferenceInUse)
	assert.Equal(t, models.RoleTeacher, repo.users[2].Role)
}
