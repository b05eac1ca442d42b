package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"actify-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileService struct {
	DB *gorm.DB

	// base delay between fetch retries, linear backoff (delay, 2*delay, ...)
	retryDelay time.Duration
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db, retryDelay: 200 * time.Millisecond}
}

// GetOrCreate is the idempotent profile bootstrap keyed by the external auth
// identity, executed once at session start. The insert is a conditional
// upsert so concurrent first requests for the same identity cannot race into
// duplicates; the follow-up read retries on transient store errors.
// Self-signup may only claim the user or company role; admin profiles are
// assigned out-of-band, never through bootstrap.
func (s *ProfileService) GetOrCreate(authUserID, email, displayName string, role models.Role) (*models.Profile, error) {
	if authUserID == "" {
		return nil, validationErr("auth user id is required")
	}
	if role != models.RoleUser && role != models.RoleCompany {
		return nil, validationErr("role must be user or company")
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	profile := models.Profile{
		ID:          uuid.NewString(),
		AuthUserID:  authUserID,
		Role:        role,
		DisplayName: displayName,
		Email:       email,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "auth_user_id"}},
		DoNothing: true,
	}).Create(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return s.fetchWithRetry(authUserID)
}

// fetchWithRetry reads the profile row, retrying transient store failures up
// to 3 attempts with linear backoff. NotFound is terminal, never retried.
func (s *ProfileService) fetchWithRetry(authUserID string) (*models.Profile, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var profile models.Profile
		err := s.DB.First(&profile, "auth_user_id = ?", authUserID).Error
		if err == nil {
			return &profile, nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		lastErr = err
		log.Printf("[PROFILE] ⚠️ Fetch attempt %d/3 failed for %s: %v", attempt, authUserID, err)
		time.Sleep(time.Duration(attempt) * s.retryDelay)
	}
	return nil, fmt.Errorf("profile fetch failed after retries: %w", lastErr)
}

// --- Handlers ---

// Bootstrap handles POST /s/profiles/me — get-or-create for the session's
// auth identity.
func (s *ProfileService) Bootstrap(c *fiber.Ctx) error {
	authUserID, _ := c.Locals("auth_user_id").(string)

	var req struct {
		Email       string      `json:"email"`
		DisplayName string      `json:"display_name"`
		Role        models.Role `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	profile, err := s.GetOrCreate(authUserID, req.Email, req.DisplayName, req.Role)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		}
		log.Printf("DB Error bootstrapping profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load profile"})
	}

	return c.JSON(profile)
}

// Me returns the caller's profile without creating one.
func (s *ProfileService) Me(c *fiber.Ctx) error {
	authUserID, _ := c.Locals("auth_user_id").(string)

	var profile models.Profile
	if err := s.DB.First(&profile, "auth_user_id = ?", authUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(profile)
}

// UpdateMe updates the caller's editable profile fields. Role is immutable
// here — there is no self-service role change.
func (s *ProfileService) UpdateMe(c *fiber.Ctx) error {
	authUserID, _ := c.Locals("auth_user_id").(string)

	var profile models.Profile
	if err := s.DB.First(&profile, "auth_user_id = ?", authUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		DisplayName    *string `json:"display_name"`
		CompanyName    *string `json:"company_name"`
		CompanyPhone   *string `json:"company_phone"`
		CompanyAddress *string `json:"company_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.DisplayName != nil {
		if *req.DisplayName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Display name cannot be empty"})
		}
		profile.DisplayName = *req.DisplayName
	}
	if req.CompanyName != nil {
		profile.CompanyName = nilIfBlank(req.CompanyName)
	}
	if req.CompanyPhone != nil {
		profile.CompanyPhone = nilIfBlank(req.CompanyPhone)
	}
	if req.CompanyAddress != nil {
		profile.CompanyAddress = nilIfBlank(req.CompanyAddress)
	}

	if err := s.DB.Save(&profile).Error; err != nil {
		log.Printf("DB Error updating profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}
	return c.JSON(profile)
}

// ListUsers returns all user-role profiles (Admin only).
func (s *ProfileService) ListUsers(c *fiber.Ctx) error {
	return s.listByRole(c, models.RoleUser)
}

// ListCompanies returns all company-role profiles (Admin only).
func (s *ProfileService) ListCompanies(c *fiber.Ctx) error {
	return s.listByRole(c, models.RoleCompany)
}

func (s *ProfileService) listByRole(c *fiber.Ctx, role models.Role) error {
	var profiles []models.Profile
	if err := s.DB.Where("role = ?", role).Order("created_at DESC").Find(&profiles).Error; err != nil {
		log.Printf("DB Error listing %s profiles: %v", role, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profiles"})
	}
	return c.JSON(profiles)
}

// nilIfBlank persists blank optional strings as NULL rather than "".
func nilIfBlank(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
