package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/admin"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/auth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/courses"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/database"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/groups"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/models"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/notify"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/oauth"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/reminders"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/rsvps"
	"github.com/harperreed/nu-study-groups/pkg/studygroups/sessions"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title NU Study Groups API
// @version 1.0
// @description Course study group coordination: groups with approval-based membership, capacity-aware session RSVPs, and attendance tracking.

// @contact.name NU Study Groups
// @contact.url https://github.com/harperreed/nu-study-groups

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	// Load .env if present; real env vars win
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	dbPath := os.Getenv("STUDYGROUPS_DB_PATH")
	if dbPath == "" {
		dbPath = "studygroups.db"
	}

	if err := database.Connect(dbPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	if err := ensureAdminExists(); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	baseURL := os.Getenv("STUDYGROUPS_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Notifications go out through the async dispatcher: email when SMTP is
	// configured, the process log otherwise.
	var inner notify.Notifier
	mailNotifier, err := notify.NewMailNotifierFromEnv()
	if err != nil {
		log.Fatalf("Invalid SMTP configuration: %v", err)
	}
	if mailNotifier != nil {
		inner = mailNotifier
		log.Println("Email notifications enabled")
	} else {
		inner = notify.LogNotifier{}
		log.Println("No SMTP configuration - notifications go to the log")
	}
	notifier := notify.NewDispatcher(inner, 64)
	defer notifier.Close()

	// Daily reminder sweep for tomorrow's sessions
	sweeper := reminders.NewSweeper(database.GetDB(), notifier)
	reminderCron := os.Getenv("REMINDER_CRON")
	if reminderCron == "" {
		reminderCron = "0 7 * * *"
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(reminderCron, sweeper.Run); err != nil {
		log.Fatalf("Invalid REMINDER_CRON %q: %v", reminderCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "studygroups",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api.Group("/auth"))

		// OAuth sign-in routes (public)
		oauthHandler := oauth.NewHandler(database.GetDB(), baseURL)
		oauthHandler.RegisterRoutes(api.Group("/oauth"))

		// Courses routes (protected)
		coursesHandler := courses.NewHandler(database.GetDB())
		coursesHandler.RegisterRoutes(api.Group("/courses", auth.AuthMiddleware()))

		// Study group routes, with nested sessions and attendance (protected)
		groupsHandler := groups.NewHandler(database.GetDB(), notifier)
		groupsGroup := api.Group("/groups", auth.AuthMiddleware())
		groupsHandler.RegisterRoutes(groupsGroup)

		sessionsHandler := sessions.NewHandler(database.GetDB(), notifier)
		sessionsHandler.RegisterRoutes(groupsGroup)

		// Membership resolution routes (protected)
		groupsHandler.RegisterMembershipRoutes(api.Group("/memberships", auth.AuthMiddleware()))

		// RSVP routes (protected)
		rsvpsHandler := rsvps.NewHandler(database.GetDB(), notifier)
		rsvpsHandler.RegisterRoutes(api.Group("/rsvps", auth.AuthMiddleware()))

		// Admin routes (admin role required)
		adminHandler := admin.NewHandler(database.GetDB())
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())
		adminHandler.RegisterRoutes(adminGroup)
		oauthHandler.RegisterAdminRoutes(adminGroup.Group("/oauth"))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting study groups server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists creates a default admin account on first boot so the
// platform is administrable before any OAuth provider is configured.
func ensureAdminExists() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@studygroups.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "changeme"
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        email,
		Name:         "Admin",
		Provider:     models.ProviderLocal,
		UID:          email,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: %s", email)
	return nil
}
