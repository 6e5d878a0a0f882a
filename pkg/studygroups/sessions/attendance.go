package sessions

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/policy"
	"gorm.io/gorm"
)

// RecordAttendanceRequest marks whether a user actually attended
type RecordAttendanceRequest struct {
	UserID   uint  `json:"user_id" binding:"required"`
	Attended *bool `json:"attended" binding:"required"`
}

// AttendanceResponse represents an attendance record in API responses
type AttendanceResponse struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	UserName     string    `json:"user_name,omitempty"`
	SessionID    uint      `json:"session_id"`
	Attended     bool      `json:"attended"`
	RecordedByID uint      `json:"recorded_by_id"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func attendanceResponse(r *models.AttendanceRecord) AttendanceResponse {
	return AttendanceResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		UserName:     r.User.Name,
		SessionID:    r.SessionID,
		Attended:     r.Attended,
		RecordedByID: r.RecordedByID,
		RecordedAt:   r.UpdatedAt,
	}
}

// ListAttendance returns a session's attendance records
// @Summary List attendance records
// @Description Get who actually attended a session (creator or admin only)
// @Tags sessions
// @Produce json
// @Param id path int true "Group ID"
// @Param sessionId path int true "Session ID"
// @Success 200 {array} AttendanceResponse
// @Failure 403 {object} map[string]string "Not permitted"
// @Security BearerAuth
// @Router /groups/{id}/sessions/{sessionId}/attendance [get]
func (h *Handler) ListAttendance(c *gin.Context) {
	user := auth.Principal(c)
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	if !policy.CanRecordAttendance(user, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	session, ok := h.loadSession(c, group)
	if !ok {
		return
	}

	var records []models.AttendanceRecord
	if err := h.db.Preload("User").Where("session_id = ?", session.ID).Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance"})
		return
	}

	responses := make([]AttendanceResponse, len(records))
	for i := range records {
		responses[i] = attendanceResponse(&records[i])
	}

	c.JSON(http.StatusOK, responses)
}

// RecordAttendance marks a user's actual attendance for a session
// @Summary Record attendance
// @Description Record whether a user attended (creator or admin only). Re-recording updates the existing record.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param sessionId path int true "Session ID"
// @Param request body RecordAttendanceRequest true "Attendance details"
// @Success 200 {object} AttendanceResponse
// @Failure 403 {object} map[string]string "Not permitted"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /groups/{id}/sessions/{sessionId}/attendance [post]
func (h *Handler) RecordAttendance(c *gin.Context) {
	user := auth.Principal(c)
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	if !policy.CanRecordAttendance(user, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	session, ok := h.loadSession(c, group)
	if !ok {
		return
	}

	var req RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var attendee models.User
	if err := h.db.First(&attendee, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// One record per (user, session); re-recording overwrites.
	var record models.AttendanceRecord
	if err := h.db.Where("user_id = ? AND session_id = ?", attendee.ID, session.ID).First(&record).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attendance"})
			return
		}
		record = models.AttendanceRecord{
			UserID:    attendee.ID,
			SessionID: session.ID,
		}
	}
	record.Attended = *req.Attended
	record.RecordedByID = user.ID

	if err := h.db.Save(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attendance"})
		return
	}

	record.User = attendee
	c.JSON(http.StatusOK, attendanceResponse(&record))
}
