package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-core/internal/models"
)

// GroupRepository manages student groups and their memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO student_groups (name, created_at) VALUES (?, ?) RETURNING id`)
	if err := r.db.GetContext(ctx, &group.ID, query, group.Name, group.CreatedAt); err != nil {
		return fmt.Errorf("create group: %w", classify(err))
	}
	return nil
}

// FindByID returns a group by id.
func (r *GroupRepository) FindByID(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	if err := r.db.GetContext(ctx, &group, r.db.Rebind(`SELECT id, name, created_at FROM student_groups WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// List returns every group ordered by name.
func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	groups := []models.Group{}
	if err := r.db.SelectContext(ctx, &groups, `SELECT id, name, created_at FROM student_groups ORDER BY name ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Delete removes a group together with its memberships, its sessions and their attendance.
func (r *GroupRepository) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, "delete group", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM attendance WHERE schedule_id IN (SELECT id FROM schedules WHERE group_id = ?)`), id); err != nil {
			return fmt.Errorf("delete group attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schedules WHERE group_id = ?`), id); err != nil {
			return fmt.Errorf("delete group sessions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM group_members WHERE group_id = ?`), id); err != nil {
			return fmt.Errorf("delete group memberships: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM student_groups WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete group rows: %w", err)
		}
		return affectedOne("delete group", rows)
	})
}

// AddMember stores a membership pair.
func (r *GroupRepository) AddMember(ctx context.Context, membership *models.Membership) error {
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO group_members (user_id, group_id, created_at) VALUES (:user_id, :group_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("add group member: %w", classify(err))
	}
	return nil
}

// RemoveMember deletes a membership pair.
func (r *GroupRepository) RemoveMember(ctx context.Context, userID, groupID int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM group_members WHERE user_id = ? AND group_id = ?`), userID, groupID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove group member rows: %w", err)
	}
	return affectedOne("remove group member", rows)
}

// ListMembers returns memberships joined with names, ordered by group then username.
// A zero groupID lists every group.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID int64) ([]models.MembershipView, error) {
	query := `SELECT gm.user_id, u.username, gm.group_id, g.name AS group_name
FROM group_members gm
JOIN users u ON u.id = gm.user_id
JOIN student_groups g ON g.id = gm.group_id`
	var args []interface{}
	if groupID > 0 {
		query += ` WHERE gm.group_id = ?`
		args = append(args, groupID)
	}
	query += ` ORDER BY g.name ASC, u.username ASC`

	members := []models.MembershipView{}
	if err := r.db.SelectContext(ctx, &members, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}
