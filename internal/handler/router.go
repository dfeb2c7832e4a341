package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-core/internal/access"
	"github.com/noah-isme/attendance-core/internal/middleware"
	"github.com/noah-isme/attendance-core/internal/service"
)

// Handlers groups every API handler for route registration.
type Handlers struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Groups   *GroupHandler
	Subjects *SubjectHandler
	Sessions *SessionHandler
	Reports  *ReportHandler
}

// RegisterRoutes mounts the API under group. Role gates reject callers early;
// the services repeat the check and apply per-session restrictions.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth *service.AuthService) {
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	users := secured.Group("/users", middleware.Require(access.ManageUsers))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)

	groups := secured.Group("/groups", middleware.Require(access.ManageGroups))
	groups.GET("", h.Groups.List)
	groups.POST("", h.Groups.Create)
	groups.DELETE("/:id", h.Groups.Delete)
	groups.GET("/:id/members", h.Groups.ListMembers)
	groups.POST("/:id/members", h.Groups.AddMember)
	groups.DELETE("/:id/members/:userId", h.Groups.RemoveMember)
	secured.GET("/memberships", middleware.Require(access.ManageMemberships), h.Groups.ListMemberships)

	subjects := secured.Group("/subjects", middleware.Require(access.ManageSubjects))
	subjects.GET("", h.Subjects.List)
	subjects.POST("", h.Subjects.Create)
	subjects.DELETE("/:id", h.Subjects.Delete)

	sessions := secured.Group("/sessions")
	sessions.GET("", middleware.Require(access.ListAllSessions, access.ListOwnSessions, access.ListGroupSessions), h.Sessions.List)
	sessions.POST("", middleware.Require(access.ManageSessions), h.Sessions.Create)
	sessions.GET("/:id", h.Sessions.Get)
	sessions.DELETE("/:id", middleware.Require(access.ManageSessions), h.Sessions.Delete)
	sessions.GET("/:id/roster", middleware.Require(access.ReadRoster), h.Sessions.Roster)
	sessions.PUT("/:id/attendance/:studentId", middleware.Require(access.MarkAttendance), h.Sessions.Mark)
	sessions.POST("/:id/attendance", middleware.Require(access.MarkAttendance), h.Sessions.MarkRoster)

	attendance := secured.Group("/attendance")
	attendance.GET("/report", middleware.Require(access.ReadReport), h.Reports.Report)
	attendance.GET("/summary", middleware.Require(access.ReadReport), h.Reports.Summary)
	attendance.GET("/export", middleware.Require(access.ReadReport), h.Reports.Export)
	attendance.GET("/me", middleware.Require(access.ReadOwnRecords), h.Reports.History)
}

// RegisterSystemRoutes mounts health, readiness and metrics endpoints outside the API prefix.
func RegisterSystemRoutes(r gin.IRoutes, h *MetricsHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
}
