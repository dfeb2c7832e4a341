package models

import "time"

// Group is a class of students.
type Group struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateGroupRequest is the payload for creating a group.
type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// Membership associates a student with a group.
type Membership struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	GroupID   int64     `db:"group_id" json:"group_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MembershipView is a membership joined with the group and student names.
type MembershipView struct {
	UserID    int64  `db:"user_id" json:"user_id"`
	Username  string `db:"username" json:"username"`
	GroupID   int64  `db:"group_id" json:"group_id"`
	GroupName string `db:"group_name" json:"group_name"`
}

// AddMemberRequest is the payload for adding a student to a group.
type AddMemberRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}
