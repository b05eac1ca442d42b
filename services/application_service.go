package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"actify-backend/middleware"
	"actify-backend/models"
	"actify-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApplicationService struct {
	DB       *gorm.DB
	Notifier *Notifier
}

func NewApplicationService(db *gorm.DB, notifier *Notifier) *ApplicationService {
	return &ApplicationService{DB: db, Notifier: notifier}
}

// apply creates an in_progress application plus its empty evidence row.
// The capacity check runs inside the same transaction as the insert, with
// the mission row locked, so two concurrent applies cannot both squeeze into
// the last slot.
func (s *ApplicationService) apply(userID, missionID string) (*models.Application, *models.Mission, error) {
	var mission models.Mission
	application := models.Application{
		ID:        uuid.NewString(),
		UserID:    userID,
		MissionID: missionID,
		Status:    models.ApplicationStatusInProgress,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			First(&mission, "id = ?", missionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if mission.Status == models.MissionStatusClosed {
			return ErrMissionEnded
		}
		if mission.EndDate != nil && !mission.EndDate.After(time.Now()) {
			return ErrMissionEnded
		}

		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("user_id = ? AND mission_id = ?", userID, missionID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyApplied
		}

		if mission.MaxParticipants > 0 {
			var current int64
			if err := tx.Model(&models.Application{}).
				Where("mission_id = ?", missionID).
				Count(&current).Error; err != nil {
				return err
			}
			if current >= int64(mission.MaxParticipants) {
				return ErrMissionFull
			}
		}

		if err := tx.Create(&application).Error; err != nil {
			return err
		}
		evidence := models.Evidence{
			ID:            uuid.NewString(),
			ApplicationID: application.ID,
		}
		return tx.Create(&evidence).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &application, &mission, nil
}

// Apply handles POST /s/missions/:id/apply for the calling user.
func (s *ApplicationService) Apply(c *fiber.Ctx) error {
	user := middleware.ProfileFromCtx(c)
	missionID := c.Params("id")

	application, mission, err := s.apply(user.ID, missionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		case errors.Is(err, ErrMissionEnded):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Mission has ended"})
		case errors.Is(err, ErrMissionFull):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Mission has reached max participants"})
		case errors.Is(err, ErrAlreadyApplied):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already applied to this mission"})
		}
		log.Printf("DB Error applying to mission %s: %v", missionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply"})
	}

	// Best-effort notifications — never roll back the application on failure.
	s.notifyApplied(mission, user)

	return c.Status(fiber.StatusCreated).JSON(application)
}

// submitEvidence performs the evidence write, the in_progress → completed
// transition, and the reward-point ledger append as one transaction.
// Resubmission after completion fails and grants nothing.
func (s *ApplicationService) submitEvidence(userID, applicationID string, proofText, proofFileURL *string) (*models.Mission, error) {
	if proofText == nil && proofFileURL == nil {
		return nil, validationErr("proof text or proof file is required")
	}

	var mission models.Mission
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var application models.Application
		if err := lockForUpdate(tx).
			First(&application, "id = ?", applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if application.UserID != userID {
			return ErrNotAuthorized
		}
		if application.Status == models.ApplicationStatusCompleted {
			return ErrAlreadySubmitted
		}

		if err := tx.First(&mission, "id = ?", application.MissionID).Error; err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"submitted_at": now,
		}
		if proofText != nil {
			updates["proof_text"] = *proofText
		}
		if proofFileURL != nil {
			updates["proof_file_url"] = *proofFileURL
		}
		res := tx.Model(&models.Evidence{}).
			Where("application_id = ?", application.ID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("evidence row missing for application %s", application.ID)
		}

		if err := tx.Model(&application).
			Update("status", models.ApplicationStatusCompleted).Error; err != nil {
			return err
		}

		entry := models.PointHistory{
			ID:     uuid.NewString(),
			UserID: userID,
			Amount: mission.RewardPoint,
			Reason: fmt.Sprintf("ミッション完了: %s", mission.Title),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &mission, nil
}

// SubmitEvidence handles POST /s/applications/:id/evidence. Accepts either a
// JSON body with proof_text / proof_file_url, or a multipart form with a
// proof_file part that gets uploaded to R2.
func (s *ApplicationService) SubmitEvidence(c *fiber.Ctx) error {
	user := middleware.ProfileFromCtx(c)
	applicationID := c.Params("id")

	var proofText, proofFileURL *string

	if fileHeader, err := c.FormFile("proof_file"); err == nil && fileHeader != nil {
		// Ownership and status are verified again inside the transaction; the
		// early checks here keep rejected submissions from leaving orphaned
		// objects in storage.
		var application models.Application
		if err := s.DB.First(&application, "id = ?", applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Application not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		if application.UserID != user.ID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your application"})
		}
		if application.Status == models.ApplicationStatusCompleted {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Evidence already submitted"})
		}
		if !utils.R2Enabled() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "File storage is not configured"})
		}
		var mission models.Mission
		if err := s.DB.First(&mission, "id = ?", application.MissionID).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		key := utils.EvidenceObjectKey(mission.Title, fileHeader.Filename)
		url, err := utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			log.Printf("R2 upload failed for application %s: %v", applicationID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store proof file"})
		}
		proofFileURL = &url
		if text := strings.TrimSpace(c.FormValue("proof_text")); text != "" {
			proofText = &text
		}
	} else {
		var req struct {
			ProofText    *string `json:"proof_text"`
			ProofFileURL *string `json:"proof_file_url"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		proofText = nilIfBlank(req.ProofText)
		proofFileURL = nilIfBlank(req.ProofFileURL)
	}

	mission, err := s.submitEvidence(user.ID, applicationID, proofText, proofFileURL)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Application not found"})
		case errors.Is(err, ErrNotAuthorized):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your application"})
		case errors.Is(err, ErrAlreadySubmitted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Evidence already submitted"})
		}
		log.Printf("DB Error submitting evidence for application %s: %v", applicationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit evidence"})
	}

	s.notifySubmitted(mission, user)

	return c.JSON(fiber.Map{
		"message":        "Evidence submitted successfully",
		"awarded_points": mission.RewardPoint,
	})
}

// ListMine returns the calling user's applications with mission and evidence,
// optionally filtered by status (?status=in_progress).
func (s *ApplicationService) ListMine(c *fiber.Ctx) error {
	user := middleware.ProfileFromCtx(c)

	db := s.DB.Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		db = db.Where("status = ?", status)
	}

	var applications []models.Application
	if err := db.Order("created_at DESC").Find(&applications).Error; err != nil {
		log.Printf("DB Error listing applications: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch applications"})
	}

	type applicationDetail struct {
		models.Application
		Mission  *models.Mission  `json:"mission,omitempty"`
		Evidence *models.Evidence `json:"evidence,omitempty"`
	}

	out := make([]applicationDetail, 0, len(applications))
	for _, app := range applications {
		detail := applicationDetail{Application: app}
		var mission models.Mission
		if err := s.DB.First(&mission, "id = ?", app.MissionID).Error; err == nil {
			detail.Mission = &mission
		}
		var evidence models.Evidence
		if err := s.DB.First(&evidence, "application_id = ?", app.ID).Error; err == nil {
			detail.Evidence = &evidence
		}
		out = append(out, detail)
	}
	return c.JSON(out)
}

// ListForMission returns all applications on one of the calling company's
// missions, with the applicants' public names.
func (s *ApplicationService) ListForMission(c *fiber.Ctx) error {
	company := middleware.ProfileFromCtx(c)
	missionID := c.Params("id")

	var mission models.Mission
	if err := s.DB.First(&mission, "id = ?", missionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if mission.CompanyID != company.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not the owner of this mission"})
	}

	type applicantRow struct {
		models.Application
		ApplicantName string `json:"applicant_name"`
	}

	var rows []applicantRow
	err := s.DB.Model(&models.Application{}).
		Select("applications.*, profiles.display_name AS applicant_name").
		Joins("JOIN profiles ON profiles.id = applications.user_id").
		Where("applications.mission_id = ?", missionID).
		Order("applications.created_at DESC").
		Find(&rows).Error
	if err != nil {
		log.Printf("DB Error listing applications for mission %s: %v", missionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch applications"})
	}
	return c.JSON(rows)
}

// --- notifications ---

func (s *ApplicationService) notifyApplied(mission *models.Mission, user *models.Profile) {
	var owner models.Profile
	if err := s.DB.First(&owner, "id = ?", mission.CompanyID).Error; err != nil {
		log.Printf("[NOTIFY] ⚠️ Could not load mission owner for %s: %v", mission.ID, err)
		return
	}

	body := fmt.Sprintf(`%s 様

ミッションに新しい応募がありました。

・ミッション名: %s
・応募者: %s
・応募日時: %s
・報酬ポイント: %dポイント`,
		companyLabel(&owner), mission.Title, user.DisplayName,
		time.Now().Format("2006/01/02"), mission.RewardPoint)

	s.Notifier.NotifyAsync(owner.Email, fmt.Sprintf("【Actify】ミッション応募通知 - %s", mission.Title), body)
	s.Notifier.NotifyAsync(AdminNotifyEmail, fmt.Sprintf("【Actify管理者】ミッション応募通知 - %s", mission.Title), body)
}

func (s *ApplicationService) notifySubmitted(mission *models.Mission, user *models.Profile) {
	var owner models.Profile
	if err := s.DB.First(&owner, "id = ?", mission.CompanyID).Error; err != nil {
		log.Printf("[NOTIFY] ⚠️ Could not load mission owner for %s: %v", mission.ID, err)
		return
	}

	body := fmt.Sprintf(`%s 様

ミッションの証拠が提出されました。

・ミッション名: %s
・提出者: %s
・提出日時: %s
・報酬ポイント: %dポイント`,
		companyLabel(&owner), mission.Title, user.DisplayName,
		time.Now().Format("2006/01/02"), mission.RewardPoint)

	s.Notifier.NotifyAsync(owner.Email, fmt.Sprintf("【Actify】証拠提出完了通知 - %s", mission.Title), body)
	s.Notifier.NotifyAsync(AdminNotifyEmail, fmt.Sprintf("【Actify管理者】証拠提出完了通知 - %s", mission.Title), body)
}
