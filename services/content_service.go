package services

import (
	"errors"
	"fmt"
	"log"

	"actify-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContentService struct {
	DB *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{DB: db}
}

// save upserts the singleton row for a content type, then reads it back and
// asserts the stored content equals what was submitted. A mismatch is a
// loud failure, not a silent success.
func (s *ContentService) save(contentType models.SiteContentType, content string) (*models.SiteContent, error) {
	if !models.ValidContentType(contentType) {
		return nil, validationErr("unknown content type")
	}

	row := models.SiteContent{
		ID:          uuid.NewString(),
		ContentType: contentType,
		Content:     content,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert content: %w", err)
	}

	var stored models.SiteContent
	if err := s.DB.First(&stored, "content_type = ?", contentType).Error; err != nil {
		return nil, fmt.Errorf("failed to verify saved content: %w", err)
	}
	if stored.Content != content {
		return nil, fmt.Errorf("content verification failed for %q: stored content does not match submission", contentType)
	}
	return &stored, nil
}

// Save handles PUT /s/admin/content/:type (Admin only).
func (s *ContentService) Save(c *fiber.Ctx) error {
	contentType := models.SiteContentType(c.Params("type"))

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	stored, err := s.save(contentType, req.Content)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		}
		log.Printf("DB Error saving content %q: %v", contentType, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save content"})
	}
	return c.JSON(stored)
}

// Get handles GET /content/:type — public, rendered on terms/privacy pages.
func (s *ContentService) Get(c *fiber.Ctx) error {
	contentType := models.SiteContentType(c.Params("type"))
	if !models.ValidContentType(contentType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown content type"})
	}

	var content models.SiteContent
	if err := s.DB.First(&content, "content_type = ?", contentType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Content not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(content)
}
