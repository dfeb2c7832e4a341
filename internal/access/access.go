// Package access holds the role permission matrix.
package access

import (
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"

	"github.com/noah-isme/attendance-core/internal/models"
)

// Operation names an action gated by role.
type Operation string

const (
	ManageUsers       Operation = "users:manage"
	ManageGroups      Operation = "groups:manage"
	ManageSubjects    Operation = "subjects:manage"
	ManageMemberships Operation = "memberships:manage"
	ManageSessions    Operation = "sessions:manage"
	ListAllSessions   Operation = "sessions:list_all"
	ListOwnSessions   Operation = "sessions:list_own"
	ListGroupSessions Operation = "sessions:list_group"
	MarkAttendance    Operation = "attendance:mark"
	ReadRoster        Operation = "attendance:roster"
	ReadReport        Operation = "attendance:report"
	ReadOwnRecords    Operation = "attendance:own"
)

// Scope qualifies a grant.
type Scope int

const (
	// Denied means the role may not perform the operation.
	Denied Scope = iota
	// Any means the role may perform the operation on every target.
	Any
	// Taught restricts the grant to sessions the caller teaches.
	Taught
)

var matrix = map[models.UserRole]map[Operation]Scope{
	models.RoleAdmin: {
		ManageUsers:       Any,
		ManageGroups:      Any,
		ManageSubjects:    Any,
		ManageMemberships: Any,
		ManageSessions:    Any,
		ListAllSessions:   Any,
		MarkAttendance:    Any,
		ReadRoster:        Any,
		ReadReport:        Any,
	},
	models.RoleTeacher: {
		ListOwnSessions: Any,
		MarkAttendance:  Taught,
		ReadRoster:      Taught,
		ReadReport:      Any,
	},
	models.RoleStudent: {
		ListGroupSessions: Any,
		ReadOwnRecords:    Any,
	},
}

// ScopeOf returns the grant a role holds for an operation.
func ScopeOf(role models.UserRole, op Operation) Scope {
	return matrix[role][op]
}

// Allowed reports whether the role may perform the operation at all.
func Allowed(role models.UserRole, op Operation) bool {
	return ScopeOf(role, op) != Denied
}

// Authorize returns a Forbidden error when the identity may not perform the operation.
func Authorize(identity models.Identity, op Operation) error {
	if !Allowed(identity.Role, op) {
		return appErrors.Clone(appErrors.ErrForbidden, "operation not permitted for role "+string(identity.Role))
	}
	return nil
}

// AuthorizeSession checks an operation against a specific session, applying the taught-only restriction.
func AuthorizeSession(identity models.Identity, op Operation, teacherID int64) error {
	switch ScopeOf(identity.Role, op) {
	case Any:
		return nil
	case Taught:
		if teacherID == identity.ID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "session is taught by another teacher")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "operation not permitted for role "+string(identity.Role))
	}
}
