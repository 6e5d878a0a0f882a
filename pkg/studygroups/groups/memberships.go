package groups

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/notify"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/policy"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateActiveMembership is returned when a pending or approved
	// membership already exists for the (user, group) pair.
	ErrDuplicateActiveMembership = errors.New("an active membership request already exists")
	// ErrInvalidState is returned when approving or rejecting a membership
	// that is no longer pending.
	ErrInvalidState = errors.New("membership request has already been resolved")
)

// JoinGroup creates a pending membership for the user. Rejected history
// never blocks a rejoin; a pending or approved row does. The partial unique
// index on non-rejected rows backstops the pre-check, so concurrent joins
// cannot create two active rows.
func JoinGroup(db *gorm.DB, userID, groupID uint) (*models.StudyGroupMembership, error) {
	var existing models.StudyGroupMembership
	err := db.Where("user_id = ? AND study_group_id = ? AND status <> ?",
		userID, groupID, models.MembershipRejected).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateActiveMembership
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	membership := models.StudyGroupMembership{
		UserID:       userID,
		StudyGroupID: groupID,
		Status:       models.MembershipPending,
		RequestedAt:  time.Now(),
	}
	if err := db.Create(&membership).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateActiveMembership
		}
		return nil, err
	}
	return &membership, nil
}

// ApproveMembership transitions a pending membership to approved, recording
// the resolver and the approval time. The status guard in the WHERE clause
// makes the transition atomic: a second resolver loses the race and gets
// ErrInvalidState.
func ApproveMembership(db *gorm.DB, resolver *models.User, membership *models.StudyGroupMembership) error {
	now := time.Now()
	result := db.Model(&models.StudyGroupMembership{}).
		Where("id = ? AND status = ?", membership.ID, models.MembershipPending).
		Updates(map[string]interface{}{
			"status":         models.MembershipApproved,
			"approved_by_id": resolver.ID,
			"approved_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}

	membership.Status = models.MembershipApproved
	membership.ApprovedByID = &resolver.ID
	membership.ApprovedAt = &now
	return nil
}

// RejectMembership transitions a pending membership to rejected, recording
// the resolver. The approval time stays unset. Rejection is not terminal:
// the user may submit a fresh join request afterwards.
func RejectMembership(db *gorm.DB, resolver *models.User, membership *models.StudyGroupMembership) error {
	result := db.Model(&models.StudyGroupMembership{}).
		Where("id = ? AND status = ?", membership.ID, models.MembershipPending).
		Updates(map[string]interface{}{
			"status":         models.MembershipRejected,
			"approved_by_id": resolver.ID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}

	membership.Status = models.MembershipRejected
	membership.ApprovedByID = &resolver.ID
	return nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// MembershipResponse represents a membership in API responses
type MembershipResponse struct {
	ID           uint       `json:"id"`
	UserID       uint       `json:"user_id"`
	UserName     string     `json:"user_name,omitempty"`
	UserEmail    string     `json:"user_email,omitempty"`
	StudyGroupID uint       `json:"study_group_id"`
	Status       string     `json:"status"`
	RequestedAt  time.Time  `json:"requested_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedByID *uint      `json:"approved_by_id,omitempty"`
}

func membershipResponse(m *models.StudyGroupMembership) MembershipResponse {
	return MembershipResponse{
		ID:           m.ID,
		UserID:       m.UserID,
		UserName:     m.User.Name,
		UserEmail:    m.User.Email,
		StudyGroupID: m.StudyGroupID,
		Status:       string(m.Status),
		RequestedAt:  m.RequestedAt,
		ApprovedAt:   m.ApprovedAt,
		ApprovedByID: m.ApprovedByID,
	}
}

// Join submits a join request for the current user
// @Summary Request to join a study group
// @Description Submit a join request; it stays pending until the group creator or an admin resolves it
// @Tags memberships
// @Produce json
// @Param id path int true "Group ID"
// @Success 201 {object} MembershipResponse
// @Failure 404 {object} map[string]string "Group not found"
// @Failure 409 {object} map[string]string "Active membership already exists"
// @Security BearerAuth
// @Router /groups/{id}/join [post]
func (h *Handler) Join(c *gin.Context) {
	user := auth.Principal(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.StudyGroup
	if err := h.db.Preload("Creator").First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if !policy.CanJoinGroup(user, &group) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	membership, err := JoinGroup(h.db, user.ID, group.ID)
	if err != nil {
		if errors.Is(err, ErrDuplicateActiveMembership) {
			c.JSON(http.StatusConflict, gin.H{"error": "You already have a pending or approved membership for this group"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create join request"})
		return
	}

	var requester models.User
	if err := h.db.First(&requester, user.ID).Error; err == nil {
		membership.User = requester
	}
	h.notifier.Notify(notify.KindMembershipRequested, group.Creator, notify.Event{
		Group:      &group,
		Membership: membership,
	})

	c.JSON(http.StatusCreated, membershipResponse(membership))
}

// ListPending returns the pending join requests for a group
// @Summary List pending join requests
// @Description Get pending membership requests for a group (creator or admin only)
// @Tags memberships
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {array} MembershipResponse
// @Failure 403 {object} map[string]string "Not permitted"
// @Security BearerAuth
// @Router /groups/{id}/memberships [get]
func (h *Handler) ListPending(c *gin.Context) {
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

	if !policy.CanListMemberships(user, &group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	var memberships []models.StudyGroupMembership
	if err := h.db.Preload("User").
		Where("study_group_id = ? AND status = ?", group.ID, models.MembershipPending).
		Order("requested_at").
		Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch memberships"})
		return
	}

	responses := make([]MembershipResponse, len(memberships))
	for i := range memberships {
		responses[i] = membershipResponse(&memberships[i])
	}

	c.JSON(http.StatusOK, responses)
}

// Approve approves a pending join request
// @Summary Approve a join request
// @Description Approve a pending membership (group creator or admin only)
// @Tags memberships
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} MembershipResponse
// @Failure 403 {object} map[string]string "Not permitted"
// @Failure 409 {object} map[string]string "Request already resolved"
// @Security BearerAuth
// @Router /memberships/{id}/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	h.resolve(c, true)
}

// Reject rejects a pending join request
// @Summary Reject a join request
// @Description Reject a pending membership (group creator or admin only). The user may apply again later.
// @Tags memberships
// @Produce json
// @Param id path int true "Membership ID"
// @Success 200 {object} MembershipResponse
// @Failure 403 {object} map[string]string "Not permitted"
// @Failure 409 {object} map[string]string "Request already resolved"
// @Security BearerAuth
// @Router /memberships/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	h.resolve(c, false)
}

func (h *Handler) resolve(c *gin.Context, approve bool) {
	user := auth.Principal(c)
	membershipID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid membership ID"})
		return
	}

	var membership models.StudyGroupMembership
	if err := h.db.Preload("User").Preload("StudyGroup").First(&membership, membershipID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		return
	}

	if !policy.CanResolveMembership(user, &membership.StudyGroup) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	if approve {
		err = ApproveMembership(h.db, user, &membership)
	} else {
		err = RejectMembership(h.db, user, &membership)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "This request has already been resolved"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update membership"})
		return
	}

	kind := notify.KindMembershipApproved
	if !approve {
		kind = notify.KindMembershipRejected
	}
	h.notifier.Notify(kind, membership.User, notify.Event{
		Group:      &membership.StudyGroup,
		Membership: &membership,
	})

	c.JSON(http.StatusOK, membershipResponse(&membership))
}

// RegisterMembershipRoutes registers the resolution routes addressed by
// membership ID rather than group ID
func (h *Handler) RegisterMembershipRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
}
