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

const sessionColumns = `id, subject_id, teacher_id, group_id, date, time, room, created_at`

// SessionRepository persists scheduled class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session. Unknown subject, teacher or group ids surface as ErrReference.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO schedules (subject_id, teacher_id, group_id, date, time, room, created_at) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.db.GetContext(ctx, &session.ID, query,
		session.SubjectID, session.TeacherID, session.GroupID, session.Date, session.Time, session.Room, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", classify(err))
	}
	return nil
}

// FindByID returns a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id int64) (*models.Session, error) {
	return findSession(ctx, r.db, id)
}

// Delete removes a session and its attendance records.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, "delete session", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM attendance WHERE schedule_id = ?`), id); err != nil {
			return fmt.Errorf("delete session attendance: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schedules WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete session rows: %w", err)
		}
		return affectedOne("delete session", rows)
	})
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func findSession(ctx context.Context, q queryer, id int64) (*models.Session, error) {
	var session models.Session
	if err := sqlx.GetContext(ctx, q, &session, q.Rebind(`SELECT `+sessionColumns+` FROM schedules WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}
