package groups

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/notify"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/policy"
	"gorm.io/gorm"
)

// Handler handles study group requests
type Handler struct {
	db       *gorm.DB
	notifier notify.Notifier
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB, notifier notify.Notifier) *Handler {
	return &Handler{db: db, notifier: notifier}
}

// CreateGroupRequest represents the request to create a study group
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	GroupType   string `json:"group_type" binding:"required,oneof=official peer"`
	CourseID    uint   `json:"course_id" binding:"required"`
}

// UpdateGroupRequest represents the request to update a study group
type UpdateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status" binding:"omitempty,oneof=active archived"`
}

// GroupResponse represents a study group in API responses
type GroupResponse struct {
	ID               uint   `json:"id"`
	CourseID         uint   `json:"course_id"`
	CreatorID        uint   `json:"creator_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	GroupType        string `json:"group_type"`
	Status           string `json:"status"`
	MemberCount      int    `json:"member_count"`
	MembershipStatus string `json:"membership_status,omitempty"` // Caller's membership, if any
}

func (h *Handler) groupResponse(group *models.StudyGroup, callerID uint) GroupResponse {
	var memberCount int64
	h.db.Model(&models.StudyGroupMembership{}).
		Where("study_group_id = ? AND status = ?", group.ID, models.MembershipApproved).
		Count(&memberCount)

	resp := GroupResponse{
		ID:          group.ID,
		CourseID:    group.CourseID,
		CreatorID:   group.CreatorID,
		Name:        group.Name,
		Description: group.Description,
		GroupType:   string(group.GroupType),
		Status:      string(group.Status),
		MemberCount: int(memberCount),
	}

	var membership models.StudyGroupMembership
	if err := h.db.Where("user_id = ? AND study_group_id = ? AND status <> ?",
		callerID, group.ID, models.MembershipRejected).First(&membership).Error; err == nil {
		resp.MembershipStatus = string(membership.Status)
	}

	return resp
}

// List returns all active study groups
// @Summary List study groups
// @Description Get all active study groups, visible to any signed-in user
// @Tags groups
// @Produce json
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /groups [get]
func (h *Handler) List(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanListGroups(user) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var groups []models.StudyGroup
	if err := h.db.Where("status = ?", models.GroupStatusActive).Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch groups"})
		return
	}

	responses := make([]GroupResponse, len(groups))
	for i := range groups {
		responses[i] = h.groupResponse(&groups[i], user.ID)
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new study group led by the caller
// @Summary Create a study group
// @Description Create a study group within a course; the caller becomes its creator
// @Tags groups
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "Group details"
// @Success 201 {object} GroupResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Course not found"
// @Security BearerAuth
// @Router /groups [post]
func (h *Handler) Create(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanCreateGroup(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var course models.Course
	if err := h.db.First(&course, req.CourseID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}

	group := models.StudyGroup{
		CourseID:    course.ID,
		CreatorID:   user.ID,
		Name:        req.Name,
		Description: req.Description,
		GroupType:   models.GroupType(req.GroupType),
		Status:      models.GroupStatusActive,
	}

	if err := h.db.Create(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}

	c.JSON(http.StatusCreated, h.groupResponse(&group, user.ID))
}

// Get returns a specific study group
// @Summary Get a study group
// @Description Get details of a study group, visible to any signed-in user
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanViewGroup(user) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.StudyGroup
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	c.JSON(http.StatusOK, h.groupResponse(&group, user.ID))
}

// Update updates a study group (creator or admin only)
// @Summary Update a study group
// @Description Update a study group's name, description, or status
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body UpdateGroupRequest true "Updated group details"
// @Success 200 {object} GroupResponse
// @Failure 403 {object} map[string]string "Not permitted"
// @Security BearerAuth
// @Router /groups/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	user := auth.Principal(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.StudyGroup
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if !policy.CanManageGroup(user, &group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Description != "" {
		group.Description = req.Description
	}
	if req.Status != "" {
		group.Status = models.GroupStatus(req.Status)
	}

	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update group"})
		return
	}

	c.JSON(http.StatusOK, h.groupResponse(&group, user.ID))
}

// Delete deletes a study group (creator or admin only)
// @Summary Delete a study group
// @Description Delete a study group
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} map[string]string "Group deleted"
// @Failure 403 {object} map[string]string "Not permitted"
// @Security BearerAuth
// @Router /groups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user := auth.Principal(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.StudyGroup
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if !policy.CanManageGroup(user, &group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	if err := h.db.Delete(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// RegisterRoutes registers group routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/join", h.Join)
	rg.GET("/:id/memberships", h.ListPending)
}
