package services

import (
	"path/filepath"
	"testing"
	"time"

	"actify-backend/models"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "actify.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Mission{},
		&models.Application{},
		&models.Evidence{},
		&models.PointHistory{},
		&models.Payment{},
		&models.SiteContent{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func createProfile(t *testing.T, db *gorm.DB, role models.Role, name string) *models.Profile {
	t.Helper()

	profile := models.Profile{
		ID:          uuid.NewString(),
		AuthUserID:  uuid.NewString(),
		Role:        role,
		DisplayName: name,
		Email:       name + "@example.com",
	}
	if role == models.RoleCompany {
		companyName := name + " Inc."
		profile.CompanyName = &companyName
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return &profile
}

func createMission(t *testing.T, db *gorm.DB, companyID string, mutate func(*models.Mission)) *models.Mission {
	t.Helper()

	endDate := time.Now().Add(30 * 24 * time.Hour)
	mission := models.Mission{
		ID:              uuid.NewString(),
		CompanyID:       companyID,
		Title:           "Visit the Shibuya store",
		Description:     "Visit the store and post a photo",
		RewardPoint:     300,
		MaxParticipants: 0,
		Categories:      []string{"store_visit"},
		TargetRegion:    "kanto",
		Difficulty:      models.DifficultyNormal,
		EndDate:         &endDate,
		Status:          models.MissionStatusOpen,
	}
	if mutate != nil {
		mutate(&mission)
	}
	if err := db.Create(&mission).Error; err != nil {
		t.Fatalf("create mission: %v", err)
	}
	return &mission
}
