package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	username string
	password string
	role     string
}

type seedSession struct {
	subject, teacher, group int64
	date, time, room        string
}

type seedMark struct {
	session, student int64
	status           string
}

var (
	seedUsers = []seedUser{
		{"admin", "admin123", "admin"},
		{"teacher1", "teachpass", "teacher"},
		{"student1", "studpass", "student"},
		{"student2", "studpass", "student"},
	}
	seedGroups   = []string{"25-ИВТ-2-1", "25-ИВТ-2-2"}
	seedSubjects = []string{"Математика", "Информатика"}
	// both demo students belong to the first group
	seedMembers  = [][2]int64{{3, 1}, {4, 1}}
	seedSessions = []seedSession{
		{1, 2, 1, "2025-11-20", "10:00", "Ауд. 101"},
		{2, 2, 1, "2025-11-21", "12:00", "Ауд. 202"},
	}
	seedMarks = []seedMark{
		{1, 3, "present"},
		{1, 4, "absent"},
		{2, 3, "present"},
		{2, 4, "present"},
	}
)

// Seed loads the demo dataset into an empty store. A store that already has users is left untouched.
func Seed(ctx context.Context, db *sqlx.DB) (err error) {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, u := range seedUsers {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if hashErr != nil {
			err = fmt.Errorf("hash seed password: %w", hashErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users (username, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
			u.username, string(hash), u.role, now, now); err != nil {
			return fmt.Errorf("seed user %s: %w", u.username, err)
		}
	}
	for _, name := range seedGroups {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO student_groups (name, created_at) VALUES (?, ?)`), name, now); err != nil {
			return fmt.Errorf("seed group: %w", err)
		}
	}
	for _, name := range seedSubjects {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO subjects (name, created_at) VALUES (?, ?)`), name, now); err != nil {
			return fmt.Errorf("seed subject: %w", err)
		}
	}
	for _, m := range seedMembers {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO group_members (user_id, group_id, created_at) VALUES (?, ?, ?)`), m[0], m[1], now); err != nil {
			return fmt.Errorf("seed membership: %w", err)
		}
	}
	for _, s := range seedSessions {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schedules (subject_id, teacher_id, group_id, date, time, room, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			s.subject, s.teacher, s.group, s.date, s.time, s.room, now); err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
	}
	for _, m := range seedMarks {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO attendance (schedule_id, student_id, status, marked_at) VALUES (?, ?, ?, ?)`),
			m.session, m.student, m.status, now); err != nil {
			return fmt.Errorf("seed attendance: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
