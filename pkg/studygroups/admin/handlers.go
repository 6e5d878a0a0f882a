package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID              uint   `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Provider        string `json:"provider"`
	Role            string `json:"role"`
	CreatedAt       string `json:"created_at"`
	MembershipCount int64  `json:"membership_count"`
	GroupsCreated   int64  `json:"groups_created"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// StatsResponse represents platform-wide statistics
type StatsResponse struct {
	TotalUsers         int64 `json:"total_users"`
	StudentUsers       int64 `json:"student_users"`
	TeacherUsers       int64 `json:"teacher_users"`
	AdminUsers         int64 `json:"admin_users"`
	TotalCourses       int64 `json:"total_courses"`
	TotalGroups        int64 `json:"total_groups"`
	ActiveGroups       int64 `json:"active_groups"`
	ArchivedGroups     int64 `json:"archived_groups"`
	TotalSessions      int64 `json:"total_sessions"`
	UpcomingSessions   int64 `json:"upcoming_sessions"`
	TotalRSVPs         int64 `json:"total_rsvps"`
	GoingRSVPs         int64 `json:"going_rsvps"`
	PendingMemberships int64 `json:"pending_memberships"`
}

func (h *Handler) userResponse(user *models.User) UserResponse {
	var membershipCount, groupsCreated int64
	h.db.Model(&models.StudyGroupMembership{}).Where("user_id = ?", user.ID).Count(&membershipCount)
	h.db.Model(&models.StudyGroup{}).Where("creator_id = ?", user.ID).Count(&groupsCreated)

	return UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Provider:        user.Provider,
		Role:            string(user.Role),
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		MembershipCount: membershipCount,
		GroupsCreated:   groupsCreated,
	}
}

// ListUsers returns all users (admin only)
// @Summary List users
// @Description List all users, optionally filtered by role or search term
// @Tags admin
// @Produce json
// @Param q query string false "Search email or name"
// @Param role query string false "Filter by role"
// @Success 200 {array} UserResponse
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.Order("created_at DESC")

	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = h.userResponse(&users[i])
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
// @Summary Get a user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, h.userResponse(&user))
}

// UpdateUser updates a user's name or role (admin only)
// @Summary Update a user
// @Description Update a user's name or role. Admins cannot demote themselves.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to update"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]string "Invalid role or self-demotion"
// @Security BearerAuth
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID && req.Role != nil && *req.Role != string(models.RoleAdmin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		switch models.Role(*req.Role) {
		case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
			updates["role"] = *req.Role
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	h.db.First(&user, id)

	c.JSON(http.StatusOK, h.userResponse(&user))
}

// DeleteUser removes a user and their activity (admin only)
// @Summary Delete a user
// @Description Remove a user along with their memberships and RSVPs. Admins cannot delete themselves.
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string "User deleted"
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.SessionRSVP{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.StudyGroupMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns platform-wide statistics (admin only)
// @Summary Platform statistics
// @Tags admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.User{}).Where("role = ?", models.RoleStudent).Count(&stats.StudentUsers)
	h.db.Model(&models.User{}).Where("role = ?", models.RoleTeacher).Count(&stats.TeacherUsers)
	h.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&stats.AdminUsers)

	h.db.Model(&models.Course{}).Count(&stats.TotalCourses)

	h.db.Model(&models.StudyGroup{}).Count(&stats.TotalGroups)
	h.db.Model(&models.StudyGroup{}).Where("status = ?", models.GroupStatusActive).Count(&stats.ActiveGroups)
	h.db.Model(&models.StudyGroup{}).Where("status = ?", models.GroupStatusArchived).Count(&stats.ArchivedGroups)

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	h.db.Model(&models.Session{}).Count(&stats.TotalSessions)
	h.db.Model(&models.Session{}).Where("date >= ?", today).Count(&stats.UpcomingSessions)

	h.db.Model(&models.SessionRSVP{}).Count(&stats.TotalRSVPs)
	h.db.Model(&models.SessionRSVP{}).Where("status = ?", models.RSVPGoing).Count(&stats.GoingRSVPs)

	h.db.Model(&models.StudyGroupMembership{}).Where("status = ?", models.MembershipPending).Count(&stats.PendingMemberships)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
