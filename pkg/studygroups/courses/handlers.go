package courses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/policy"
	"gorm.io/gorm"
)

// Handler handles course requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new courses handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CourseRequest represents the request to create or update a course
type CourseRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
	Semester    string `json:"semester" binding:"required"`
	Year        int    `json:"year" binding:"required"`
}

// CourseResponse represents a course in API responses
type CourseResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Semester    string `json:"semester"`
	Year        int    `json:"year"`
	GroupCount  int    `json:"group_count"`
}

func (h *Handler) courseResponse(course *models.Course) CourseResponse {
	var groupCount int64
	h.db.Model(&models.StudyGroup{}).Where("course_id = ?", course.ID).Count(&groupCount)

	return CourseResponse{
		ID:          course.ID,
		Name:        course.Name,
		Code:        course.Code,
		Description: course.Description,
		Semester:    course.Semester,
		Year:        course.Year,
		GroupCount:  int(groupCount),
	}
}

// List returns all courses, newest term first
// @Summary List courses
// @Description Get all courses, visible to any signed-in user
// @Tags courses
// @Produce json
// @Success 200 {array} CourseResponse
// @Security BearerAuth
// @Router /courses [get]
func (h *Handler) List(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanListCourses(user) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var courses []models.Course
	if err := h.db.Order("year DESC, semester DESC").Find(&courses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch courses"})
		return
	}

	responses := make([]CourseResponse, len(courses))
	for i := range courses {
		responses[i] = h.courseResponse(&courses[i])
	}

	c.JSON(http.StatusOK, responses)
}

// Get returns a specific course
// @Summary Get a course
// @Description Get details of a course
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} CourseResponse
// @Failure 404 {object} map[string]string "Course not found"
// @Security BearerAuth
// @Router /courses/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanViewCourse(user) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	course, ok := h.loadCourse(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.courseResponse(course))
}

// Create creates a new course (admin only)
// @Summary Create a course
// @Description Create a course offering, unique by (code, semester, year)
// @Tags courses
// @Accept json
// @Produce json
// @Param request body CourseRequest true "Course details"
// @Success 201 {object} CourseResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 409 {object} map[string]string "Offering already exists"
// @Security BearerAuth
// @Router /courses [post]
func (h *Handler) Create(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanManageCourse(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	course := models.Course{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Semester:    req.Semester,
		Year:        req.Year,
	}

	if err := h.db.Create(&course).Error; err != nil {
		if isDuplicateKey(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A course with this code, semester, and year already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create course"})
		return
	}

	c.JSON(http.StatusCreated, h.courseResponse(&course))
}

// Update updates a course (admin only)
// @Summary Update a course
// @Description Update a course's details
// @Tags courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param request body CourseRequest true "Updated course details"
// @Success 200 {object} CourseResponse
// @Failure 403 {object} map[string]string "Admin access required"
// @Security BearerAuth
// @Router /courses/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanManageCourse(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	course, ok := h.loadCourse(c)
	if !ok {
		return
	}

	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	course.Name = req.Name
	course.Code = req.Code
	course.Description = req.Description
	course.Semester = req.Semester
	course.Year = req.Year

	if err := h.db.Save(course).Error; err != nil {
		if isDuplicateKey(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A course with this code, semester, and year already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update course"})
		return
	}

	c.JSON(http.StatusOK, h.courseResponse(course))
}

// Delete deletes a course (admin only)
// @Summary Delete a course
// @Description Delete a course
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} map[string]string "Course deleted"
// @Failure 403 {object} map[string]string "Admin access required"
// @Security BearerAuth
// @Router /courses/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanManageCourse(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	course, ok := h.loadCourse(c)
	if !ok {
		return
	}

	if err := h.db.Delete(course).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete course"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Course deleted"})
}

// AddTeacher assigns a teacher to a course (admin only)
// @Summary Assign a teacher
// @Description Assign a teacher to a course (admin only)
// @Tags courses
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Success 201 {object} map[string]string "Teacher assigned"
// @Failure 403 {object} map[string]string "Admin access required"
// @Security BearerAuth
// @Router /courses/{id}/teachers [post]
func (h *Handler) AddTeacher(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanManageCourse(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	course, ok := h.loadCourse(c)
	if !ok {
		return
	}

	var req struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var teacher models.User
	if err := h.db.First(&teacher, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if teacher.Role == models.RoleStudent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is not a teacher"})
		return
	}

	assignment := models.CourseTeacher{CourseID: course.ID, UserID: teacher.ID}
	if err := h.db.Create(&assignment).Error; err != nil {
		if isDuplicateKey(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Teacher is already assigned to this course"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign teacher"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Teacher assigned"})
}

// RemoveTeacher unassigns a teacher from a course (admin only)
// @Summary Unassign a teacher
// @Description Remove a teacher assignment from a course (admin only)
// @Tags courses
// @Produce json
// @Param id path int true "Course ID"
// @Param userId path int true "User ID"
// @Success 200 {object} map[string]string "Teacher removed"
// @Failure 403 {object} map[string]string "Admin access required"
// @Security BearerAuth
// @Router /courses/{id}/teachers/{userId} [delete]
func (h *Handler) RemoveTeacher(c *gin.Context) {
	user := auth.Principal(c)
	if !policy.CanManageCourse(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	course, ok := h.loadCourse(c)
	if !ok {
		return
	}

	teacherID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	result := h.db.Where("course_id = ? AND user_id = ?", course.ID, teacherID).
		Delete(&models.CourseTeacher{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove teacher"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assignment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Teacher removed"})
}

func (h *Handler) loadCourse(c *gin.Context) (*models.Course, bool) {
	courseID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course ID"})
		return nil, false
	}

	var course models.Course
	if err := h.db.First(&course, courseID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return nil, false
	}
	return &course, true
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RegisterRoutes registers course routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/teachers", h.AddTeacher)
	rg.DELETE("/:id/teachers/:userId", h.RemoveTeacher)
}
