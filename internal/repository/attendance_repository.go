package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-core/internal/models"
)

// SessionCheck inspects the loaded session inside the marking transaction.
type SessionCheck func(session *models.Session) error

// AttendanceRepository stores one status per (session, student) pair.
type AttendanceRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db, now: time.Now}
}

// Mark inserts or overwrites the status of a student for a session.
// The session load, the check, the membership test and the upsert share one transaction.
func (r *AttendanceRepository) Mark(ctx context.Context, scheduleID, studentID int64, status models.AttendanceStatus, check SessionCheck) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := withTx(ctx, r.db, "mark attendance", func(tx *sqlx.Tx) error {
		session, err := findSession(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(session); err != nil {
				return err
			}
		}

		var members int
		if err := tx.GetContext(ctx, &members, tx.Rebind(`SELECT COUNT(*) FROM group_members WHERE user_id = ? AND group_id = ?`), studentID, session.GroupID); err != nil {
			return fmt.Errorf("check group membership: %w", err)
		}
		if members == 0 {
			return ErrNotMember
		}

		const upsert = `INSERT INTO attendance (schedule_id, student_id, status, marked_at) VALUES (?, ?, ?, ?)
ON CONFLICT (schedule_id, student_id) DO UPDATE SET status = excluded.status, marked_at = excluded.marked_at`
		if _, err := tx.ExecContext(ctx, tx.Rebind(upsert), scheduleID, studentID, status, r.now().UTC()); err != nil {
			return fmt.Errorf("upsert attendance: %w", classify(err))
		}

		const load = `SELECT id, schedule_id, student_id, status, marked_at FROM attendance WHERE schedule_id = ? AND student_id = ?`
		if err := tx.GetContext(ctx, &record, tx.Rebind(load), scheduleID, studentID); err != nil {
			return fmt.Errorf("load attendance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Roster lists every member of the group with the status recorded for the session,
// or the unmarked sentinel when no record exists. Entries are ordered by username.
func (r *AttendanceRepository) Roster(ctx context.Context, session *models.Session) ([]models.RosterEntry, error) {
	const query = `SELECT u.id AS student_id, u.username, COALESCE(a.status, ?) AS status
FROM group_members gm
JOIN users u ON u.id = gm.user_id
LEFT JOIN attendance a ON a.student_id = gm.user_id AND a.schedule_id = ?
WHERE gm.group_id = ?
ORDER BY u.username ASC`

	entries := []models.RosterEntry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), models.AttendanceStatusUnmarked, session.ID, session.GroupID); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return entries, nil
}
