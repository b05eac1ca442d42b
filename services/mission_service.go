package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"actify-backend/middleware"
	"actify-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MissionService struct {
	DB *gorm.DB
}

func NewMissionService(db *gorm.DB) *MissionService {
	return &MissionService{DB: db}
}

func validDifficulty(d models.MissionDifficulty) bool {
	switch d {
	case models.DifficultyEasy, models.DifficultyNormal, models.DifficultyHard:
		return true
	}
	return false
}

func validCategories(cats []string) bool {
	for _, c := range cats {
		found := false
		for _, known := range models.MissionCategories {
			if c == known {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func validRegion(r string) bool {
	if r == "" {
		return true
	}
	for _, known := range models.MissionRegions {
		if r == known {
			return true
		}
	}
	return false
}

type missionRequest struct {
	Title            string                   `json:"title"`
	Description      string                   `json:"description"`
	RewardPoint      int64                    `json:"reward_point"`
	MaxParticipants  int                      `json:"max_participants"`
	Categories       []string                 `json:"categories"`
	TargetRegion     string                   `json:"target_region"`
	Difficulty       models.MissionDifficulty `json:"difficulty"`
	RequiredAction   *string                  `json:"required_action"`
	RequiredEvidence *string                  `json:"required_evidence"`
	EndDate          *time.Time               `json:"end_date"`
}

func (r *missionRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return validationErr("title is required")
	}
	if r.RewardPoint < 0 {
		return validationErr("reward points must not be negative")
	}
	if r.MaxParticipants < 0 {
		return validationErr("max participants must not be negative")
	}
	if !validCategories(r.Categories) {
		return validationErr("unknown category")
	}
	if !validRegion(r.TargetRegion) {
		return validationErr("unknown target region")
	}
	if r.Difficulty != "" && !validDifficulty(r.Difficulty) {
		return validationErr("unknown difficulty")
	}
	return nil
}

// CreateMission creates a mission owned by the calling company.
func (s *MissionService) CreateMission(c *fiber.Ctx) error {
	company := middleware.ProfileFromCtx(c)

	var req missionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyNormal
	}

	mission := models.Mission{
		ID:               uuid.NewString(),
		CompanyID:        company.ID,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		RewardPoint:      req.RewardPoint,
		MaxParticipants:  req.MaxParticipants,
		Categories:       req.Categories,
		TargetRegion:     req.TargetRegion,
		Difficulty:       difficulty,
		RequiredAction:   nilIfBlank(req.RequiredAction),
		RequiredEvidence: nilIfBlank(req.RequiredEvidence),
		EndDate:          req.EndDate,
		Status:           models.MissionStatusOpen,
	}

	if err := s.DB.Create(&mission).Error; err != nil {
		log.Printf("DB Error creating mission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create mission"})
	}
	return c.Status(fiber.StatusCreated).JSON(mission)
}

// UpdateMission updates a mission; only the owning company may touch it.
func (s *MissionService) UpdateMission(c *fiber.Ctx) error {
	company := middleware.ProfileFromCtx(c)
	id := c.Params("id")

	var mission models.Mission
	if err := s.DB.First(&mission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if mission.CompanyID != company.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not the owner of this mission"})
	}

	var req missionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	mission.Title = strings.TrimSpace(req.Title)
	mission.Description = req.Description
	mission.RewardPoint = req.RewardPoint
	mission.MaxParticipants = req.MaxParticipants
	mission.Categories = req.Categories
	mission.TargetRegion = req.TargetRegion
	if req.Difficulty != "" {
		mission.Difficulty = req.Difficulty
	}
	mission.RequiredAction = nilIfBlank(req.RequiredAction)
	mission.RequiredEvidence = nilIfBlank(req.RequiredEvidence)
	mission.EndDate = req.EndDate

	if err := s.DB.Save(&mission).Error; err != nil {
		log.Printf("DB Error updating mission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update mission"})
	}
	return c.JSON(mission)
}

// deleteMissionCascade removes a mission plus all dependent applications and
// evidence rows in one transaction. Returns how many applications existed so
// the handler can attach a non-blocking warning.
func (s *MissionService) deleteMissionCascade(missionID, companyID string) (int64, error) {
	var mission models.Mission
	if err := s.DB.First(&mission, "id = ?", missionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if mission.CompanyID != companyID {
		return 0, ErrNotAuthorized
	}

	var appCount int64
	if err := s.DB.Model(&models.Application{}).Where("mission_id = ?", missionID).Count(&appCount).Error; err != nil {
		return 0, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("application_id IN (?)",
			tx.Model(&models.Application{}).Select("id").Where("mission_id = ?", missionID),
		).Delete(&models.Evidence{}).Error; err != nil {
			return err
		}
		if err := tx.Where("mission_id = ?", missionID).Delete(&models.Application{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Mission{}, "id = ?", missionID).Error
	})
	return appCount, err
}

// DeleteMission deletes an owned mission with cascade. Existing applications
// do not block the delete but are reported back as a warning.
func (s *MissionService) DeleteMission(c *fiber.Ctx) error {
	company := middleware.ProfileFromCtx(c)
	id := c.Params("id")

	appCount, err := s.deleteMissionCascade(id, company.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		case errors.Is(err, ErrNotAuthorized):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not the owner of this mission"})
		}
		log.Printf("DB Error deleting mission %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete mission"})
	}

	resp := fiber.Map{"message": "Mission deleted successfully"}
	if appCount > 0 {
		resp["warning"] = fmt.Sprintf("%d application(s) were removed together with the mission", appCount)
	}
	return c.JSON(resp)
}

// GetMission returns one mission with its owning company's public fields.
func (s *MissionService) GetMission(c *fiber.Ctx) error {
	id := c.Params("id")

	var mission models.Mission
	if err := s.DB.First(&mission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var company models.Profile
	_ = s.DB.Select("id, display_name, company_name").First(&company, "id = ?", mission.CompanyID).Error

	var applied int64
	_ = s.DB.Model(&models.Application{}).Where("mission_id = ?", id).Count(&applied).Error

	return c.JSON(fiber.Map{
		"mission":           mission,
		"company_name":      companyLabel(&company),
		"application_count": applied,
	})
}

// ListOpenMissions is the user-facing mission board: open missions that have
// not ended and are not at capacity, with free-text search and exact filters.
// GET /s/missions?q=&category=&region=&difficulty=
func (s *MissionService) ListOpenMissions(c *fiber.Ctx) error {
	now := time.Now()

	db := s.DB.Model(&models.Mission{}).
		Select("missions.*").
		Joins("JOIN profiles ON profiles.id = missions.company_id").
		Where("missions.status = ?", models.MissionStatusOpen).
		Where("missions.end_date IS NULL OR missions.end_date > ?", now).
		Where("missions.max_participants = 0 OR (SELECT COUNT(*) FROM applications WHERE applications.mission_id = missions.id) < missions.max_participants")

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		db = db.Where(
			"LOWER(missions.title) LIKE ? OR LOWER(missions.description) LIKE ? OR LOWER(COALESCE(profiles.company_name, profiles.display_name)) LIKE ?",
			term, term, term,
		)
	}
	if cat := c.Query("category"); cat != "" {
		// categories is a JSON array column; exact membership via the quoted element
		db = db.Where(`missions.categories LIKE ?`, `%"`+cat+`"%`)
	}
	if region := c.Query("region"); region != "" {
		db = db.Where("missions.target_region = ?", region)
	}
	if difficulty := c.Query("difficulty"); difficulty != "" {
		db = db.Where("missions.difficulty = ?", difficulty)
	}

	var missions []models.Mission
	if err := db.Order("missions.created_at DESC").Find(&missions).Error; err != nil {
		log.Printf("DB Error listing missions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch missions"})
	}
	return c.JSON(missions)
}

// ListCompanyMissions returns the calling company's missions with their
// application counts.
func (s *MissionService) ListCompanyMissions(c *fiber.Ctx) error {
	company := middleware.ProfileFromCtx(c)

	type missionWithCount struct {
		models.Mission
		ApplicationCount int64 `json:"application_count"`
	}

	var rows []missionWithCount
	err := s.DB.Model(&models.Mission{}).
		Select("missions.*, (SELECT COUNT(*) FROM applications WHERE applications.mission_id = missions.id) AS application_count").
		Where("missions.company_id = ?", company.ID).
		Order("missions.created_at DESC").
		Find(&rows).Error
	if err != nil {
		log.Printf("DB Error listing company missions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch missions"})
	}
	return c.JSON(rows)
}

// companyLabel prefers the registered company name over the display name.
func companyLabel(p *models.Profile) string {
	if p.CompanyName != nil && *p.CompanyName != "" {
		return *p.CompanyName
	}
	return p.DisplayName
}
