package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: User and Course must be migrated before the models referencing them
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&CourseTeacher{},
		&StudyGroup{},
		&StudyGroupMembership{},
		&Session{},
		&SessionRSVP{},
		&AttendanceRecord{},
		&AuthProvider{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
