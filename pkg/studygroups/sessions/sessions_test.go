package sessions

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

func createTestGroup(t *testing.T, db *gorm.DB, creator models.User) models.StudyGroup {
	course := models.Course{Name: "Operating Systems", Code: "CS343", Semester: "Winter", Year: 2027}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("Failed to create course: %v", err)
	}
	group := models.StudyGroup{
		CourseID:  course.ID,
		CreatorID: creator.ID,
		Name:      "OS Study",
		GroupType: models.GroupTypeOfficial,
		Status:    models.GroupStatusActive,
	}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	return group
}

func approveMember(t *testing.T, db *gorm.DB, user models.User, group models.StudyGroup) {
	now := time.Now()
	m := models.StudyGroupMembership{
		UserID:       user.ID,
		StudyGroupID: group.ID,
		Status:       models.MembershipApproved,
		RequestedAt:  now,
		ApprovedAt:   &now,
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("Failed to approve member: %v", err)
	}
}

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

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.Role))
	return "Bearer " + token
}

func postSession(router *gin.Engine, user models.User, body SessionRequest) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/groups/1/sessions", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func validSessionRequest() SessionRequest {
	return SessionRequest{
		Title:     "Week 5 Review",
		Date:      "2027-02-10",
		StartTime: "18:00",
		EndTime:   "20:00",
	}
}

func TestCreateSession(t *testing.T) {
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	router := setupTestRouter(db, notifier)
	creator := createTestUser(t, db, "creator@example.com", models.RoleTeacher)
	member := createTestUser(t, db, "member@example.com", models.RoleStudent)
	group := createTestGroup(t, db, creator)
	approveMember(t, db, member, group)

	resp := postSession(router, creator, validSessionRequest())

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response SessionResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if response.Title != "Week 5 Review" {
		t.Errorf("Expected title 'Week 5 Review', got %s", response.Title)
	}
	if response.Date != "2027-02-10" {
		t.Errorf("Expected date 2027-02-10, got %s", response.Date)
	}
	if response.SpotsRemaining != nil {
		t.Error("Expected no spot count on an uncapped session")
	}

	// Approved members are told about the new session
	if len(notifier.kinds) != 1 || notifier.kinds[0] != notify.KindSessionCreated {
		t.Errorf("Expected one session_created notification, got %v", notifier.kinds)
	}
	if notifier.recipients[0] != member.Email {
		t.Errorf("Expected notification to %s, got %s", member.Email, notifier.recipients[0])
	}
}

func TestCreateSessionRequiresCreatorOrAdmin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	creator := createTestUser(t, db, "creator@example.com", models.RoleTeacher)
	member := createTestUser(t, db, "member@example.com", models.RoleStudent)
	group := createTestGroup(t, db, creator)
	approveMember(t, db, member, group)

	// Even an approved member cannot schedule sessions
	resp := postSession(router, member, validSessionRequest())
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for member, got %d", resp.Code)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	creator := createTestUser(t, db, "creator@example.com", models.RoleTeacher)
	createTestGroup(t, db, creator)

	tests := []struct {
		name   string
		mutate func(*SessionRequest)
	}{
		{"bad date", func(r *SessionRequest) { r.Date = "02/10/2027" }},
		{"bad start time", func(r *SessionRequest) { r.StartTime = "6pm" }},
		{"end before start", func(r *SessionRequest) { r.StartTime = "20:00"; r.EndTime = "18:00" }},
		{"end equals start", func(r *SessionRequest) { r.EndTime = r.StartTime }},
		{"zero capacity", func(r *SessionRequest) { zero := 0; r.MaxCapacity = &zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validSessionRequest()
			tt.mutate(&body)
			resp := postSession(router, creator, body)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestSessionVisibility(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	creator := createTestUser(t, db, "creator@example.com", models.RoleTeacher)
	member := createTestUser(t, db, "member@example.com", models.RoleStudent)
	outsider := createTestUser(t, db, "outsider@example.com", models.RoleStudent)
	group := createTestGroup(t, db, creator)
	approveMember(t, db, member, group)

	resp := postSession(router, creator, validSessionRequest())
	if resp.Code != http.StatusCreated {
		t.Fatalf("Setup session failed: %d", resp.Code)
	}

	// Approved member sees the session list
	req, _ := http.NewRequest("GET", "/groups/1/sessions?scope=all", nil)
	req.Header.Set("Authorization", getAuthHeader(member))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 for member, got %d: %s", rec.Code, rec.Body.String())
	}

	var sessions []SessionResponse
	json.Unmarshal(rec.Body.Bytes(), &sessions)
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(sessions))
	}

	// A non-member is denied
	req, _ = http.NewRequest("GET", "/groups/1/sessions?scope=all", nil)
	req.Header.Set("Authorization", getAuthHeader(outsider))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for outsider, got %d", rec.Code)
	}

	// So is a session fetch scoped to the wrong group
	req, _ = http.NewRequest("GET", "/groups/1/sessions/999", nil)
	req.Header.Set("Authorization", getAuthHeader(member))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown session, got %d", rec.Code)
	}
}

func TestRecordAttendance(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, &recordingNotifier{})
	creator := createTestUser(t, db, "creator@example.com", models.RoleTeacher)
	member := createTestUser(t, db, "member@example.com", models.RoleStudent)
	group := createTestGroup(t, db, creator)
	approveMember(t, db, member, group)

	resp := postSession(router, creator, validSessionRequest())
	if resp.Code != http.StatusCreated {
		t.Fatalf("Setup session failed: %d", resp.Code)
	}

	attended := true
	body, _ := json.Marshal(RecordAttendanceRequest{UserID: member.ID, Attended: &attended})

	// Members cannot record attendance
	req, _ := http.NewRequest("POST", "/groups/1/sessions/1/attendance", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(member))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for member, got %d", rec.Code)
	}

	// The creator can
	req, _ = http.NewRequest("POST", "/groups/1/sessions/1/attendance", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(creator))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for creator, got %d: %s", rec.Code, rec.Body.String())
	}

	// Re-recording flips the same row rather than adding one
	notAttended := false
	body, _ = json.Marshal(RecordAttendanceRequest{UserID: member.ID, Attended: &notAttended})
	req, _ = http.NewRequest("POST", "/groups/1/sessions/1/attendance", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(creator))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on re-record, got %d: %s", rec.Code, rec.Body.String())
	}

	var count int64
	db.Model(&models.AttendanceRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected a single attendance row, got %d", count)
	}

	var record models.AttendanceRecord
	db.First(&record)
	if record.Attended {
		t.Error("Expected attended to be updated to false")
	}
}
