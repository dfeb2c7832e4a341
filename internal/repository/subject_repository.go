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

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO subjects (name, created_at) VALUES (?, ?) RETURNING id`)
	if err := r.db.GetContext(ctx, &subject.ID, query, subject.Name, subject.CreatedAt); err != nil {
		return fmt.Errorf("create subject: %w", classify(err))
	}
	return nil
}

// FindByID fetches a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, r.db.Rebind(`SELECT id, name, created_at FROM subjects WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// List returns subjects ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	subjects := []models.Subject{}
	if err := r.db.SelectContext(ctx, &subjects, `SELECT id, name, created_at FROM subjects ORDER BY name ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Delete removes a subject, its sessions and their attendance in one transaction.
func (r *SubjectRepository) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, "delete subject", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM attendance WHERE schedule_id IN (SELECT id FROM schedules WHERE subject_id = ?)`), id); err != nil {
			return fmt.Errorf("delete subject attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schedules WHERE subject_id = ?`), id); err != nil {
			return fmt.Errorf("delete subject sessions: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM subjects WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete subject: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete subject rows: %w", err)
		}
		return affectedOne("delete subject", rows)
	})
}
