package groups

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/notify"
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
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        email,
		Name:         "Test User",
		Provider:     models.ProviderLocal,
		UID:          email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestCourse(t *testing.T, db *gorm.DB) models.Course {
	course := models.Course{
		Name:     "Intro to Databases",
		Code:     "CS339",
		Semester: "Fall",
		Year:     2026,
	}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("Failed to create test course: %v", err)
	}
	return course
}

// recordingNotifier captures notifications for assertions
type recordingNotifier struct {
	kinds      []notify.Kind
	recipients []string
}

func (n *recordingNotifier) Notify(kind notify.Kind, recipient models.User, event notify.Event) {
	n.kinds = append(n.kinds, kind)
	n.recipients = append(n.recipients, recipient.Email)
}

func setupTestRouter(db *gorm.DB, notifier notify.Notifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, notifier)

	groups := r.Group("/groups")
	groups.Use(auth.AuthMiddleware())
	handler.RegisterRoutes(groups)

	memberships := r.Group("/memberships")
	memberships.Use(auth.AuthMiddleware())
	handler.RegisterMembershipRoutes(memberships)

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.Role))
	return "Bearer " + token
}

func TestCreateGroup(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	user := createTestUser(t, db, "student@example.com", models.RoleStudent)
	course := createTestCourse(t, db)

	body := CreateGroupRequest{
		Name:      "Midterm Prep",
		GroupType: "peer",
		CourseID:  course.ID,
	}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/groups", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response GroupResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if response.Name != "Midterm Prep" {
		t.Errorf("Expected name 'Midterm Prep', got %s", response.Name)
	}
	if response.CreatorID != user.ID {
		t.Errorf("Expected creator %d, got %d", user.ID, response.CreatorID)
	}
	if response.Status != "active" {
		t.Errorf("Expected status 'active', got %s", response.Status)
	}
}

func TestCreateGroupUnknownCourse(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	user := createTestUser(t, db, "student@example.com", models.RoleStudent)

	body := CreateGroupRequest{Name: "Orphan Group", GroupType: "peer", CourseID: 999}
	jsonBody, _ := json.Marshal(body)

	req, _ := http.NewRequest("POST", "/groups", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestListGroupsOmitsArchived(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	user := createTestUser(t, db, "student@example.com", models.RoleStudent)
	course := createTestCourse(t, db)

	db.Create(&models.StudyGroup{CourseID: course.ID, CreatorID: user.ID, Name: "Active", GroupType: models.GroupTypePeer, Status: models.GroupStatusActive})
	db.Create(&models.StudyGroup{CourseID: course.ID, CreatorID: user.ID, Name: "Archived", GroupType: models.GroupTypePeer, Status: models.GroupStatusArchived})

	req, _ := http.NewRequest("GET", "/groups", nil)
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var groups []GroupResponse
	json.Unmarshal(resp.Body.Bytes(), &groups)

	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if groups[0].Name != "Active" {
		t.Errorf("Expected 'Active', got %s", groups[0].Name)
	}
}

func TestUpdateGroupRequiresCreatorOrAdmin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	creator := createTestUser(t, db, "creator@example.com", models.RoleStudent)
	stranger := createTestUser(t, db, "stranger@example.com", models.RoleStudent)
	adminUser := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	course := createTestCourse(t, db)

	group := models.StudyGroup{CourseID: course.ID, CreatorID: creator.ID, Name: "Group", GroupType: models.GroupTypePeer, Status: models.GroupStatusActive}
	db.Create(&group)

	body, _ := json.Marshal(UpdateGroupRequest{Status: "archived"})

	// A non-creator student is denied
	req, _ := http.NewRequest("PUT", "/groups/1", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(stranger))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for stranger, got %d", resp.Code)
	}

	// An admin may archive any group
	req, _ = http.NewRequest("PUT", "/groups/1", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(adminUser))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 for admin, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated GroupResponse
	json.Unmarshal(resp.Body.Bytes(), &updated)
	if updated.Status != "archived" {
		t.Errorf("Expected status 'archived', got %s", updated.Status)
	}
}

func TestGetGroupShowsCallerMembership(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	creator := createTestUser(t, db, "creator@example.com", models.RoleStudent)
	member := createTestUser(t, db, "member@example.com", models.RoleStudent)
	course := createTestCourse(t, db)

	group := models.StudyGroup{CourseID: course.ID, CreatorID: creator.ID, Name: "Group", GroupType: models.GroupTypePeer, Status: models.GroupStatusActive}
	db.Create(&group)

	if _, err := JoinGroup(db, member.ID, group.ID); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}

	req, _ := http.NewRequest("GET", "/groups/1", nil)
	req.Header.Set("Authorization", getAuthHeader(member))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var response GroupResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if response.MembershipStatus != "pending" {
		t.Errorf("Expected membership_status 'pending', got %q", response.MembershipStatus)
	}
	if response.MemberCount != 0 {
		t.Errorf("Expected 0 approved members, got %d", response.MemberCount)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})

	req, _ := http.NewRequest("GET", "/groups", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}
