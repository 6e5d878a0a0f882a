package sessions

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/notify"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/policy"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/rsvps"
	"gorm.io/gorm"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Handler handles session requests, nested under study groups
type Handler struct {
	db       *gorm.DB
	notifier notify.Notifier
}

// NewHandler creates a new sessions handler
func NewHandler(db *gorm.DB, notifier notify.Notifier) *Handler {
	return &Handler{db: db, notifier: notifier}
}

// SessionRequest represents the request to create or update a session
type SessionRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	MeetingLink string `json:"meeting_link"`
	Date        string `json:"date" binding:"required"`       // YYYY-MM-DD
	StartTime   string `json:"start_time" binding:"required"` // HH:MM
	EndTime     string `json:"end_time" binding:"required"`   // HH:MM
	MaxCapacity *int   `json:"max_capacity"`
}

// SessionResponse represents a session in API responses
type SessionResponse struct {
	ID             uint   `json:"id"`
	StudyGroupID   uint   `json:"study_group_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	MeetingLink    string `json:"meeting_link"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	MaxCapacity    *int   `json:"max_capacity,omitempty"`
	AttendingCount int    `json:"attending_count"`
	SpotsRemaining *int   `json:"spots_remaining,omitempty"` // Absent when uncapped
	MyRSVPStatus   string `json:"my_rsvp_status,omitempty"`
	MyRSVPID       uint   `json:"my_rsvp_id,omitempty"`
}

func (h *Handler) sessionResponse(session *models.Session, callerID uint) SessionResponse {
	attending, _ := rsvps.AttendingCount(h.db, session.ID)
	spots, _ := rsvps.SpotsRemaining(h.db, session)

	resp := SessionResponse{
		ID:             session.ID,
		StudyGroupID:   session.StudyGroupID,
		Title:          session.Title,
		Description:    session.Description,
		Location:       session.Location,
		MeetingLink:    session.MeetingLink,
		Date:           session.Date.Format(dateLayout),
		StartTime:      session.StartTime.Format(timeLayout),
		EndTime:        session.EndTime.Format(timeLayout),
		MaxCapacity:    session.MaxCapacity,
		AttendingCount: int(attending),
		SpotsRemaining: spots,
	}

	var rsvp models.SessionRSVP
	if err := h.db.Where("user_id = ? AND session_id = ?", callerID, session.ID).First(&rsvp).Error; err == nil {
		resp.MyRSVPStatus = string(rsvp.Status)
		resp.MyRSVPID = rsvp.ID
	}

	return resp
}

// parseSessionTimes validates the date/time fields, enforcing end > start.
// Returns a field-specific error message on failure.
func parseSessionTimes(req *SessionRequest) (date, start, end time.Time, errMsg string) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return date, start, end, "date must be in YYYY-MM-DD format"
	}
	start, err = time.Parse(timeLayout, req.StartTime)
	if err != nil {
		return date, start, end, "start_time must be in HH:MM format"
	}
	end, err = time.Parse(timeLayout, req.EndTime)
	if err != nil {
		return date, start, end, "end_time must be in HH:MM format"
	}
	if !end.After(start) {
		return date, start, end, "end_time must be after start_time"
	}
	if req.MaxCapacity != nil && *req.MaxCapacity < 1 {
		return date, start, end, "max_capacity must be at least 1"
	}
	return date, start, end, ""
}

// List returns a group's sessions
// @Summary List sessions
// @Description Get a group's sessions (approved members, creator, or admin). Upcoming by default; ?scope=past or ?scope=all to widen.
// @Tags sessions
// @Produce json
// @Param id path int true "Group ID"
// @Param scope query string false "upcoming (default), past, or all"
// @Success 200 {array} SessionResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Security BearerAuth
// @Router /groups/{id}/sessions [get]
func (h *Handler) List(c *gin.Context) {
	user, group, ok := h.authorizeView(c)
	if !ok {
		return
	}

	query := h.db.Where("study_group_id = ?", group.ID)
	today := time.Now().Format(dateLayout)
	switch c.Query("scope") {
	case "all":
	case "past":
		query = query.Where("date < ?", today).Order("date DESC, start_time DESC")
	default:
		query = query.Where("date >= ?", today).Order("date, start_time")
	}

	var sessions []models.Session
	if err := query.Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sessions"})
		return
	}

	responses := make([]SessionResponse, len(sessions))
	for i := range sessions {
		responses[i] = h.sessionResponse(&sessions[i], user.ID)
	}

	c.JSON(http.StatusOK, responses)
}

// Create schedules a new session (creator or admin only)
// @Summary Create a session
// @Description Schedule a session for a group; all approved members are notified
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body SessionRequest true "Session details"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not permitted"
// @Security BearerAuth
// @Router /groups/{id}/sessions [post]
func (h *Handler) Create(c *gin.Context) {
	user := auth.Principal(c)
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	if !policy.CanManageSession(user, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, start, end, errMsg := parseSessionTimes(&req)
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	session := models.Session{
		StudyGroupID: group.ID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		MeetingLink:  req.MeetingLink,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		MaxCapacity:  req.MaxCapacity,
	}

	if err := h.db.Create(&session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	h.notifyMembers(group, &session)

	c.JSON(http.StatusCreated, h.sessionResponse(&session, user.ID))
}

// Get returns a specific session with the caller's RSVP, if any
// @Summary Get a session
// @Description Get session details including capacity and the caller's RSVP
// @Tags sessions
// @Produce json
// @Param id path int true "Group ID"
// @Param sessionId path int true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Security BearerAuth
// @Router /groups/{id}/sessions/{sessionId} [get]
func (h *Handler) Get(c *gin.Context) {
	user, group, ok := h.authorizeView(c)
	if !ok {
		return
	}

	session, ok := h.loadSession(c, group)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.sessionResponse(session, user.ID))
}

// Update modifies a session (creator or admin only)
// @Summary Update a session
// @Description Update a session's details
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param sessionId path int true "Session ID"
// @Param request body SessionRequest true "Updated session details"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not permitted"
// @Security BearerAuth
// @Router /groups/{id}/sessions/{sessionId} [put]
func (h *Handler) Update(c *gin.Context) {
	user := auth.Principal(c)
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	if !policy.CanManageSession(user, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	session, ok := h.loadSession(c, group)
	if !ok {
		return
	}

	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, start, end, errMsg := parseSessionTimes(&req)
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	session.Title = req.Title
	session.Description = req.Description
	session.Location = req.Location
	session.MeetingLink = req.MeetingLink
	session.Date = date
	session.StartTime = start
	session.EndTime = end
	session.MaxCapacity = req.MaxCapacity

	if err := h.db.Save(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update session"})
		return
	}

	c.JSON(http.StatusOK, h.sessionResponse(session, user.ID))
}

// Delete removes a session (creator or admin only)
// @Summary Delete a session
// @Description Delete a session and its RSVPs
// @Tags sessions
// @Produce json
// @Param id path int true "Group ID"
// @Param sessionId path int true "Session ID"
// @Success 200 {object} map[string]string "Session deleted"
// @Failure 403 {object} map[string]string "Not permitted"
// @Security BearerAuth
// @Router /groups/{id}/sessions/{sessionId} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user := auth.Principal(c)
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	if !policy.CanManageSession(user, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return
	}

	session, ok := h.loadSession(c, group)
	if !ok {
		return
	}

	if err := h.db.Delete(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// loadGroup resolves the :id path param to a study group, replying 404 when
// absent.
func (h *Handler) loadGroup(c *gin.Context) (*models.StudyGroup, bool) {
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return nil, false
	}

	var group models.StudyGroup
	if err := h.db.Preload("Creator").Preload("Course").First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}
	return &group, true
}

// loadSession resolves :sessionId within the given group, replying 404 when
// absent or belonging to another group.
func (h *Handler) loadSession(c *gin.Context, group *models.StudyGroup) (*models.Session, bool) {
	sessionID, err := strconv.ParseUint(c.Param("sessionId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return nil, false
	}

	var session models.Session
	if err := h.db.Where("study_group_id = ?", group.ID).First(&session, sessionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return &session, true
}

// authorizeView loads the group and checks session visibility: admin,
// creator, or approved member.
func (h *Handler) authorizeView(c *gin.Context) (*models.User, *models.StudyGroup, bool) {
	user := auth.Principal(c)
	group, ok := h.loadGroup(c)
	if !ok {
		return nil, nil, false
	}

	var membership *models.StudyGroupMembership
	if user != nil {
		var m models.StudyGroupMembership
		if err := h.db.Where("user_id = ? AND study_group_id = ? AND status <> ?",
			user.ID, group.ID, models.MembershipRejected).First(&m).Error; err == nil {
			membership = &m
		}
	}

	if !policy.CanViewSession(user, group, membership) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not permitted"})
		return nil, nil, false
	}
	return user, group, true
}

// notifyMembers fans a session-created notification out to every approved
// member of the group.
func (h *Handler) notifyMembers(group *models.StudyGroup, session *models.Session) {
	var memberships []models.StudyGroupMembership
	if err := h.db.Preload("User").
		Where("study_group_id = ? AND status = ?", group.ID, models.MembershipApproved).
		Find(&memberships).Error; err != nil {
		return
	}
	for i := range memberships {
		h.notifier.Notify(notify.KindSessionCreated, memberships[i].User, notify.Event{
			Course:  &group.Course,
			Group:   group,
			Session: session,
		})
	}
}

// RegisterRoutes registers session routes nested under the groups router
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/sessions", h.List)
	rg.POST("/:id/sessions", h.Create)
	rg.GET("/:id/sessions/:sessionId", h.Get)
	rg.PUT("/:id/sessions/:sessionId", h.Update)
	rg.DELETE("/:id/sessions/:sessionId", h.Delete)
	rg.GET("/:id/sessions/:sessionId/attendance", h.ListAttendance)
	rg.POST("/:id/sessions/:sessionId/attendance", h.RecordAttendance)
}
