package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-core/internal/models"
	"github.com/noah-isme/attendance-core/internal/service"
	"github.com/noah-isme/attendance-core/pkg/response"
)

// GroupHandler exposes groups and their memberships.
type GroupHandler struct {
	service *service.GroupService
}

// NewGroupHandler constructs the handler.
func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// List godoc
// @Summary List groups
// @Tags Groups
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	groups, err := h.service.List(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, groups, len(groups))
}

// Create godoc
// @Summary Create group
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body models.CreateGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}
	group, err := h.service.Create(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Delete godoc
// @Summary Delete group
// @Description Removes the group with its memberships, sessions and attendance records.
// @Tags Groups
// @Param id path int true "Group ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), identity, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListMembers godoc
// @Summary List group members
// @Tags Groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id}/members [get]
func (h *GroupHandler) ListMembers(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := h.service.ListMembers(c.Request.Context(), identity, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, members, len(members))
}

// ListMemberships godoc
// @Summary List memberships across groups
// @Tags Groups
// @Produce json
// @Param group_id query int false "Restrict to one group"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /memberships [get]
func (h *GroupHandler) ListMemberships(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	groupID, err := queryID(c, "group_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	members, err := h.service.ListMembers(c.Request.Context(), identity, groupID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, members, len(members))
}

// AddMember godoc
// @Summary Add a student to a group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param payload body models.AddMemberRequest true "Member payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id}/members [post]
func (h *GroupHandler) AddMember(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}
	if err := h.service.AddMember(c.Request.Context(), identity, groupID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, models.Membership{UserID: req.UserID, GroupID: groupID})
}

// RemoveMember godoc
// @Summary Remove a student from a group
// @Tags Groups
// @Param id path int true "Group ID"
// @Param userId path int true "User ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), identity, groupID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
