package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

	adminGroup := r.Group("/admin")
	adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	handler.RegisterRoutes(adminGroup)

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.Role))
	return "Bearer " + token
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	student := createTestUser(t, db, "student@example.com", models.RoleStudent)
	teacher := createTestUser(t, db, "teacher@example.com", models.RoleTeacher)

	for _, u := range []models.User{student, teacher} {
		req, _ := http.NewRequest("GET", "/admin/stats", nil)
		req.Header.Set("Authorization", getAuthHeader(u))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusForbidden {
			t.Errorf("Expected status 403 for %s, got %d", u.Role, resp.Code)
		}
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	student := createTestUser(t, db, "student@example.com", models.RoleStudent)

	course := models.Course{Name: "Databases", Code: "CS339", Semester: "Fall", Year: 2026}
	db.Create(&course)
	group := models.StudyGroup{CourseID: course.ID, CreatorID: student.ID, Name: "G1", GroupType: models.GroupTypePeer, Status: models.GroupStatusActive}
	db.Create(&group)
	db.Create(&models.StudyGroup{CourseID: course.ID, CreatorID: student.ID, Name: "G2", GroupType: models.GroupTypePeer, Status: models.GroupStatusArchived})
	db.Create(&models.StudyGroupMembership{UserID: adminUser.ID, StudyGroupID: group.ID, Status: models.MembershipPending, RequestedAt: time.Now()})

	req, _ := http.NewRequest("GET", "/admin/stats", nil)
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var stats StatsResponse
	json.Unmarshal(resp.Body.Bytes(), &stats)

	if stats.TotalUsers != 2 {
		t.Errorf("Expected 2 users, got %d", stats.TotalUsers)
	}
	if stats.AdminUsers != 1 || stats.StudentUsers != 1 {
		t.Errorf("Unexpected role breakdown: %+v", stats)
	}
	if stats.TotalCourses != 1 {
		t.Errorf("Expected 1 course, got %d", stats.TotalCourses)
	}
	if stats.TotalGroups != 2 || stats.ActiveGroups != 1 || stats.ArchivedGroups != 1 {
		t.Errorf("Unexpected group breakdown: %+v", stats)
	}
	if stats.PendingMemberships != 1 {
		t.Errorf("Expected 1 pending membership, got %d", stats.PendingMemberships)
	}
}

func TestUpdateUserRole(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	student := createTestUser(t, db, "student@example.com", models.RoleStudent)

	role := "teacher"
	body, _ := json.Marshal(UpdateUserRequest{Role: &role})
	req, _ := http.NewRequest("PUT", "/admin/users/2", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated models.User
	db.First(&updated, student.ID)
	if updated.Role != models.RoleTeacher {
		t.Errorf("Expected role teacher, got %s", updated.Role)
	}

	// Invalid roles are rejected
	bad := "superuser"
	body, _ = json.Marshal(UpdateUserRequest{Role: &bad})
	req, _ = http.NewRequest("PUT", "/admin/users/2", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid role, got %d", resp.Code)
	}
}

func TestAdminCannotDemoteOrDeleteSelf(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)

	role := "student"
	body, _ := json.Marshal(UpdateUserRequest{Role: &role})
	req, _ := http.NewRequest("PUT", "/admin/users/1", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 on self-demotion, got %d", resp.Code)
	}

	req, _ = http.NewRequest("DELETE", "/admin/users/1", nil)
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 on self-deletion, got %d", resp.Code)
	}
}

func TestDeleteUserRemovesActivity(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	student := createTestUser(t, db, "student@example.com", models.RoleStudent)

	course := models.Course{Name: "Databases", Code: "CS339", Semester: "Fall", Year: 2026}
	db.Create(&course)
	group := models.StudyGroup{CourseID: course.ID, CreatorID: adminUser.ID, Name: "G", GroupType: models.GroupTypePeer, Status: models.GroupStatusActive}
	db.Create(&group)
	session := models.Session{StudyGroupID: group.ID, Title: "S", Date: time.Now(), StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}
	db.Create(&session)
	db.Create(&models.StudyGroupMembership{UserID: student.ID, StudyGroupID: group.ID, Status: models.MembershipApproved, RequestedAt: time.Now()})
	db.Create(&models.SessionRSVP{UserID: student.ID, SessionID: session.ID, Status: models.RSVPGoing, RSVPAt: time.Now()})

	req, _ := http.NewRequest("DELETE", "/admin/users/2", nil)
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var membershipCount, rsvpCount int64
	db.Model(&models.StudyGroupMembership{}).Where("user_id = ?", student.ID).Count(&membershipCount)
	db.Model(&models.SessionRSVP{}).Where("user_id = ?", student.ID).Count(&rsvpCount)
	if membershipCount != 0 || rsvpCount != 0 {
		t.Errorf("Expected memberships and RSVPs removed, got %d/%d", membershipCount, rsvpCount)
	}
}
