package courses

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.Role) models.User {
	user := models.User{
		Email:    email,
		Name:     "Test User",
		Provider: models.ProviderLocal,
		UID:      email,
		Role:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	courses := r.Group("/courses")
	courses.Use(auth.AuthMiddleware())
	handler.RegisterRoutes(courses)

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.Role))
	return "Bearer " + token
}

func postCourse(router *gin.Engine, user models.User, body CourseRequest) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/courses", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateCourseAdminOnly(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	student := createTestUser(t, db, "student@example.com", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher@example.com", models.RoleTeacher)

	body := CourseRequest{Name: "Machine Learning", Code: "CS349", Semester: "Fall", Year: 2026}

	for _, u := range []models.User{student, teacher} {
		resp := postCourse(router, u, body)
		if resp.Code != http.StatusForbidden {
			t.Errorf("Expected status 403 for %s, got %d", u.Role, resp.Code)
		}
	}

	resp := postCourse(router, adminUser, body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 for admin, got %d: %s", resp.Code, resp.Body.String())
	}

	var response CourseResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Code != "CS349" {
		t.Errorf("Expected code CS349, got %s", response.Code)
	}
}

func TestDuplicateOfferingConflicts(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)

	body := CourseRequest{Name: "Machine Learning", Code: "CS349", Semester: "Fall", Year: 2026}
	if resp := postCourse(router, adminUser, body); resp.Code != http.StatusCreated {
		t.Fatalf("Setup course failed: %d", resp.Code)
	}

	// Same (code, semester, year) is one offering
	resp := postCourse(router, adminUser, body)
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate offering, got %d: %s", resp.Code, resp.Body.String())
	}

	// A different term of the same course is fine
	body.Semester = "Spring"
	resp = postCourse(router, adminUser, body)
	if resp.Code != http.StatusCreated {
		t.Errorf("Expected status 201 for new term, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListCoursesAnySignedInUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	student := createTestUser(t, db, "student@example.com", models.RoleStudent)

	db.Create(&models.Course{Name: "Networks", Code: "CS340", Semester: "Fall", Year: 2026})

	req, _ := http.NewRequest("GET", "/courses", nil)
	req.Header.Set("Authorization", getAuthHeader(student))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var courses []CourseResponse
	json.Unmarshal(resp.Body.Bytes(), &courses)
	if len(courses) != 1 {
		t.Errorf("Expected 1 course, got %d", len(courses))
	}

	// Anonymous requests are rejected at the middleware
	req, _ = http.NewRequest("GET", "/courses", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", resp.Code)
	}
}

func TestTeacherAssignment(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	teacher := createTestUser(t, db, "teacher@example.com", models.RoleTeacher)
	student := createTestUser(t, db, "student@example.com", models.RoleStudent)

	course := models.Course{Name: "Compilers", Code: "CS322", Semester: "Fall", Year: 2026}
	db.Create(&course)

	assign := func(userID uint) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]uint{"user_id": userID})
		req, _ := http.NewRequest("POST", "/courses/1/teachers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", getAuthHeader(adminUser))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	// Students cannot be assigned as course teachers
	if resp := assign(student.ID); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 assigning a student, got %d", resp.Code)
	}

	if resp := assign(teacher.ID); resp.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	// Assigning twice conflicts
	if resp := assign(teacher.ID); resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409 on duplicate assignment, got %d", resp.Code)
	}

	// Unassign
	req, _ := http.NewRequest("DELETE", "/courses/1/teachers/2", nil)
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 removing assignment, got %d", resp.Code)
	}

	// Removing again is a 404
	req, _ = http.NewRequest("DELETE", "/courses/1/teachers/2", nil)
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 removing a missing assignment, got %d", resp.Code)
	}
}
