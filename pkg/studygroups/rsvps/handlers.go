package rsvps

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/notify"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/policy"
	"gorm.io/gorm"
)

// Handler handles RSVP requests
type Handler struct {
	db       *gorm.DB
	notifier notify.Notifier
}

// NewHandler creates a new RSVPs handler
func NewHandler(db *gorm.DB, notifier notify.Notifier) *Handler {
	return &Handler{db: db, notifier: notifier}
}

// CreateRSVPRequest represents the request to create an RSVP
type CreateRSVPRequest struct {
	SessionID uint   `json:"session_id" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=going maybe not_going"`
}

// UpdateRSVPRequest represents the request to change an RSVP's status
type UpdateRSVPRequest struct {
	Status string `json:"status" binding:"required,oneof=going maybe not_going"`
}

// RSVPResponse represents an RSVP in API responses
type RSVPResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	SessionID uint      `json:"session_id"`
	Status    string    `json:"status"`
	RSVPAt    time.Time `json:"rsvp_at"`
}

func rsvpResponse(r *models.SessionRSVP) RSVPResponse {
	return RSVPResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Status:    string(r.Status),
		RSVPAt:    r.RSVPAt,
	}
}

// Create records the caller's attendance intent for a session
// @Summary Create an RSVP
// @Description RSVP to a session. Requires an approved membership in the session's group. A going RSVP is rejected when the session is full.
// @Tags rsvps
// @Accept json
// @Produce json
// @Param request body CreateRSVPRequest true "RSVP details"
// @Success 201 {object} RSVPResponse
// @Failure 403 {object} map[string]string "Not an approved group member"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Duplicate RSVP or session full"
// @Security BearerAuth
// @Router /rsvps [post]
func (h *Handler) Create(c *gin.Context) {
	user := auth.Principal(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CreateRSVPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var session models.Session
	if err := h.db.Preload("StudyGroup").Preload("StudyGroup.Creator").Preload("StudyGroup.Course").
		First(&session, req.SessionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	membership := findMembership(h.db, user.ID, session.StudyGroupID)
	if !policy.CanCreateRSVP(user, membership) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You must be an approved member of this group to RSVP"})
		return
	}

	rsvp, err := CreateRSVP(h.db, user.ID, &session, models.RSVPStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionFull):
			c.JSON(http.StatusConflict, gin.H{"error": "This session is full - try a different status"})
		case errors.Is(err, ErrDuplicateRSVP):
			c.JSON(http.StatusConflict, gin.H{"error": "You have already RSVP'd to this session"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create RSVP"})
		}
		return
	}

	var recipient models.User
	if err := h.db.First(&recipient, user.ID).Error; err == nil {
		h.notifier.Notify(notify.KindRSVPConfirmation, recipient, notify.Event{
			Course:  &session.StudyGroup.Course,
			Group:   &session.StudyGroup,
			Session: &session,
			RSVP:    rsvp,
		})
	}

	c.JSON(http.StatusCreated, rsvpResponse(rsvp))
}

// Update changes the caller's attendance intent
// @Summary Update an RSVP
// @Description Change RSVP status. Owner only. Entering going on a full session is rejected; leaving going is always allowed.
// @Tags rsvps
// @Accept json
// @Produce json
// @Param id path int true "RSVP ID"
// @Param request body UpdateRSVPRequest true "New status"
// @Success 200 {object} RSVPResponse
// @Failure 403 {object} map[string]string "Not your RSVP"
// @Failure 409 {object} map[string]string "Session full"
// @Security BearerAuth
// @Router /rsvps/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	user := auth.Principal(c)
	rsvpID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid RSVP ID"})
		return
	}

	var rsvp models.SessionRSVP
	if err := h.db.Preload("Session").First(&rsvp, rsvpID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "RSVP not found"})
		return
	}

	if !policy.CanModifyRSVP(user, &rsvp) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	var req UpdateRSVPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := UpdateRSVPStatus(h.db, &rsvp, &rsvp.Session, models.RSVPStatus(req.Status)); err != nil {
		if errors.Is(err, ErrSessionFull) {
			c.JSON(http.StatusConflict, gin.H{"error": "This session is now full - try a different status"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update RSVP"})
		return
	}

	c.JSON(http.StatusOK, rsvpResponse(&rsvp))
}

// Delete removes the caller's RSVP
// @Summary Delete an RSVP
// @Description Remove an RSVP. Owner only; unconditional once authorized.
// @Tags rsvps
// @Produce json
// @Param id path int true "RSVP ID"
// @Success 200 {object} map[string]string "RSVP removed"
// @Failure 403 {object} map[string]string "Not your RSVP"
// @Security BearerAuth
// @Router /rsvps/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user := auth.Principal(c)
	rsvpID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid RSVP ID"})
		return
	}

	var rsvp models.SessionRSVP
	if err := h.db.First(&rsvp, rsvpID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "RSVP not found"})
		return
	}

	if !policy.CanDeleteRSVP(user, &rsvp) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	if err := DeleteRSVP(h.db, &rsvp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete RSVP"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "RSVP removed"})
}

func findMembership(db *gorm.DB, userID, groupID uint) *models.StudyGroupMembership {
	var membership models.StudyGroupMembership
	if err := db.Where("user_id = ? AND study_group_id = ? AND status <> ?",
		userID, groupID, models.MembershipRejected).First(&membership).Error; err != nil {
		return nil
	}
	return &membership
}

// RegisterRoutes registers RSVP routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
