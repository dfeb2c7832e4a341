package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-core/internal/models"
)

const userColumns = `id, username, password_hash, role, email, created_at, updated_at`

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ? LIMIT 1`)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns users ordered by username.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, "role = ?")
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, "LOWER(username) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY username ASC"

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create inserts a new user and stores the generated id on it.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO users (username, password_hash, role, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := r.db.GetContext(ctx, &user.ID, query, user.Username, user.PasswordHash, user.Role, user.Email, user.CreatedAt, user.UpdatedAt); err != nil {
		return fmt.Errorf("create user: %w", classify(err))
	}
	return nil
}

// Update writes every mutable field of a user. A role change is rejected with
// ErrInUse while the user is still referenced under the old role: a teacher
// named on sessions, or a student holding group memberships.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	return withTx(ctx, r.db, "update user", func(tx *sqlx.Tx) error {
		var current string
		if err := tx.GetContext(ctx, &current, tx.Rebind(`SELECT role FROM users WHERE id = ?`), user.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("update user: %w", err)
			}
			return fmt.Errorf("load user role: %w", err)
		}
		if models.UserRole(current) != user.Role {
			if err := checkRoleChange(ctx, tx, user.ID, models.UserRole(current)); err != nil {
				return err
			}
		}

		const query = `UPDATE users SET username = :username, password_hash = :password_hash, role = :role, email = :email, updated_at = :updated_at WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, query, user)
		if err != nil {
			return fmt.Errorf("update user: %w", classify(err))
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update user rows: %w", err)
		}
		return affectedOne("update user", rows)
	})
}

func checkRoleChange(ctx context.Context, q queryer, id int64, from models.UserRole) error {
	switch from {
	case models.RoleTeacher:
		taught, err := countTaughtSessions(ctx, q, id)
		if err != nil {
			return err
		}
		if taught > 0 {
			return fmt.Errorf("change role: teaches %d sessions: %w", taught, ErrInUse)
		}
	case models.RoleStudent:
		var groups int
		if err := sqlx.GetContext(ctx, q, &groups, q.Rebind(`SELECT COUNT(*) FROM group_members WHERE user_id = ?`), id); err != nil {
			return fmt.Errorf("count memberships: %w", err)
		}
		if groups > 0 {
			return fmt.Errorf("change role: member of %d groups: %w", groups, ErrInUse)
		}
	}
	return nil
}

// CountTaughtSessions returns how many sessions name the user as teacher.
func (r *UserRepository) CountTaughtSessions(ctx context.Context, id int64) (int, error) {
	return countTaughtSessions(ctx, r.db, id)
}

func countTaughtSessions(ctx context.Context, q queryer, id int64) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, q.Rebind(`SELECT COUNT(*) FROM schedules WHERE teacher_id = ?`), id); err != nil {
		return 0, fmt.Errorf("count taught sessions: %w", err)
	}
	return count, nil
}

// Delete removes a user with its memberships and attendance records.
// Users still named as teacher of a session are rejected with ErrInUse.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, "delete user", func(tx *sqlx.Tx) error {
		taught, err := countTaughtSessions(ctx, tx, id)
		if err != nil {
			return err
		}
		if taught > 0 {
			return fmt.Errorf("delete user: teaches %d sessions: %w", taught, ErrInUse)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM attendance WHERE student_id = ?`), id); err != nil {
			return fmt.Errorf("delete user attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM group_members WHERE user_id = ?`), id); err != nil {
			return fmt.Errorf("delete user memberships: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete user: %w", classify(err))
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete user rows: %w", err)
		}
		return affectedOne("delete user", rows)
	})
}
