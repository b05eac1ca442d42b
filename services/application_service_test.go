package services

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"actify-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func newApplicationService(db *gorm.DB) *ApplicationService {
	// no API key: notifications are skipped, which is fine — they are
	// best-effort and must never affect the operations under test
	return NewApplicationService(db, NewNotifierWithEndpoint("", "http://127.0.0.1:0"))
}

func TestApplyCreatesApplicationAndEmptyEvidence(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	user := createProfile(t, db, models.RoleUser, "taro")
	mission := createMission(t, db, company.ID, nil)

	application, _, err := svc.apply(user.ID, mission.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if application.Status != models.ApplicationStatusInProgress {
		t.Fatalf("status = %s, want in_progress", application.Status)
	}

	var evidence models.Evidence
	if err := db.First(&evidence, "application_id = ?", application.ID).Error; err != nil {
		t.Fatalf("evidence row missing: %v", err)
	}
	if evidence.SubmittedAt != nil || evidence.ProofText != nil || evidence.ProofFileURL != nil {
		t.Fatalf("evidence should start empty: %+v", evidence)
	}
}

func TestApplyAtCapacityFails(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	first := createProfile(t, db, models.RoleUser, "first")
	second := createProfile(t, db, models.RoleUser, "second")
	mission := createMission(t, db, company.ID, func(m *models.Mission) {
		m.MaxParticipants = 1
	})

	if _, _, err := svc.apply(first.ID, mission.ID); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	_, _, err := svc.apply(second.ID, mission.ID)
	if !errors.Is(err, ErrMissionFull) {
		t.Fatalf("second apply err = %v, want ErrMissionFull", err)
	}

	var count int64
	_ = db.Model(&models.Application{}).Where("mission_id = ?", mission.ID).Count(&count).Error
	if count != 1 {
		t.Fatalf("application count = %d, want 1 (rejected apply must create no row)", count)
	}
}

func TestApplyZeroMaxParticipantsIsUnlimited(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	mission := createMission(t, db, company.ID, func(m *models.Mission) {
		m.MaxParticipants = 0
	})

	for i := 0; i < 5; i++ {
		user := createProfile(t, db, models.RoleUser, "user")
		if _, _, err := svc.apply(user.ID, mission.ID); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
}

func TestApplyEndedMissionFails(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	user := createProfile(t, db, models.RoleUser, "taro")
	mission := createMission(t, db, company.ID, func(m *models.Mission) {
		past := time.Now().Add(-time.Hour)
		m.EndDate = &past
	})

	if _, _, err := svc.apply(user.ID, mission.ID); !errors.Is(err, ErrMissionEnded) {
		t.Fatalf("apply err = %v, want ErrMissionEnded", err)
	}
}

func TestApplyTwiceFails(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	user := createProfile(t, db, models.RoleUser, "taro")
	mission := createMission(t, db, company.ID, nil)

	if _, _, err := svc.apply(user.ID, mission.ID); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, _, err := svc.apply(user.ID, mission.ID); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("second apply err = %v, want ErrAlreadyApplied", err)
	}
}

func TestSubmitEvidenceWithoutProofFails(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	user := createProfile(t, db, models.RoleUser, "taro")
	mission := createMission(t, db, company.ID, nil)

	application, _, err := svc.apply(user.ID, mission.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	var verr *ValidationError
	if _, err := svc.submitEvidence(user.ID, application.ID, nil, nil); !errors.As(err, &verr) {
		t.Fatalf("submit err = %v, want ValidationError", err)
	}

	var reloaded models.Application
	if err := db.First(&reloaded, "id = ?", application.ID).Error; err != nil {
		t.Fatalf("reload application: %v", err)
	}
	if reloaded.Status != models.ApplicationStatusInProgress {
		t.Fatalf("status = %s, want in_progress (rejected submit must not transition)", reloaded.Status)
	}
}

func TestSubmitEvidenceCompletesAndGrantsOnce(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	points := NewPointService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	user := createProfile(t, db, models.RoleUser, "taro")
	mission := createMission(t, db, company.ID, func(m *models.Mission) {
		m.RewardPoint = 300
	})

	application, _, err := svc.apply(user.ID, mission.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	proof := "visited the store, photo attached"
	if _, err := svc.submitEvidence(user.ID, application.ID, &proof, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var reloaded models.Application
	if err := db.First(&reloaded, "id = ?", application.ID).Error; err != nil {
		t.Fatalf("reload application: %v", err)
	}
	if reloaded.Status != models.ApplicationStatusCompleted {
		t.Fatalf("status = %s, want completed", reloaded.Status)
	}

	var evidence models.Evidence
	if err := db.First(&evidence, "application_id = ?", application.ID).Error; err != nil {
		t.Fatalf("reload evidence: %v", err)
	}
	if evidence.SubmittedAt == nil {
		t.Fatal("SubmittedAt not set")
	}
	if evidence.ProofText == nil || *evidence.ProofText != proof {
		t.Fatalf("proof text = %v", evidence.ProofText)
	}

	balance, err := points.Balance(user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 300 {
		t.Fatalf("balance = %d, want 300", balance)
	}

	// Resubmission must fail and must not double-grant
	if _, err := svc.submitEvidence(user.ID, application.ID, &proof, nil); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("resubmit err = %v, want ErrAlreadySubmitted", err)
	}
	balance, _ = points.Balance(user.ID)
	if balance != 300 {
		t.Fatalf("balance after resubmit = %d, want 300 (no double grant)", balance)
	}

	var entry models.PointHistory
	if err := db.First(&entry, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("ledger entry: %v", err)
	}
	if entry.Reason != "ミッション完了: "+mission.Title {
		t.Fatalf("reason = %q", entry.Reason)
	}
}

func TestSubmitEvidenceWrongUserFails(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	owner := createProfile(t, db, models.RoleUser, "owner")
	other := createProfile(t, db, models.RoleUser, "other")
	mission := createMission(t, db, company.ID, nil)

	application, _, err := svc.apply(owner.ID, mission.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	proof := "not mine"
	if _, err := svc.submitEvidence(other.ID, application.ID, &proof, nil); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("submit err = %v, want ErrNotAuthorized", err)
	}
}

// evidenceApp mounts SubmitEvidence behind a stub that attaches the caller's
// profile, the way RequireRole does in production.
func evidenceApp(svc *ApplicationService, profile *models.Profile) *fiber.App {
	app := fiber.New()
	app.Post("/applications/:id/evidence", func(c *fiber.Ctx) error {
		c.Locals("profile", profile)
		return c.Next()
	}, svc.SubmitEvidence)
	return app
}

func multipartProofRequest(t *testing.T, target string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("proof_file", "receipt.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest("POST", target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// Ownership is checked before any storage interaction: a non-owner gets 403,
// not a storage error, even though file storage is unconfigured here.
func TestSubmitProofFileByNonOwnerRejectedBeforeUpload(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	owner := createProfile(t, db, models.RoleUser, "owner")
	other := createProfile(t, db, models.RoleUser, "other")
	mission := createMission(t, db, company.ID, nil)

	application, _, err := svc.apply(owner.ID, mission.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	app := evidenceApp(svc, other)
	resp, err := app.Test(multipartProofRequest(t, "/applications/"+application.ID+"/evidence"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestSubmitProofFileAfterCompletionRejectedBeforeUpload(t *testing.T) {
	db := setupDB(t)
	svc := newApplicationService(db)
	company := createProfile(t, db, models.RoleCompany, "acme")
	user := createProfile(t, db, models.RoleUser, "taro")
	mission := createMission(t, db, company.ID, nil)

	application, _, err := svc.apply(user.ID, mission.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	proof := "done"
	if _, err := svc.submitEvidence(user.ID, application.ID, &proof, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	app := evidenceApp(svc, user)
	resp, err := app.Test(multipartProofRequest(t, "/applications/"+application.ID+"/evidence"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}
