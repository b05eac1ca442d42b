package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"actify-backend/middleware"
	"actify-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PointService struct {
	DB *gorm.DB
}

func NewPointService(db *gorm.DB) *PointService {
	return &PointService{DB: db}
}

// balance is always recomputed as the sum of the user's ledger entries.
// There is deliberately no stored counter to increment.
func (s *PointService) balance(tx *gorm.DB, userID string) (int64, error) {
	var total int64
	err := tx.Model(&models.PointHistory{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// Balance exposes the computed balance for external callers and tests.
func (s *PointService) Balance(userID string) (int64, error) {
	return s.balance(s.DB, userID)
}

// grant appends one positive entry to the ledger.
func (s *PointService) grant(userID string, amount int64, reason string) error {
	if amount <= 0 {
		return validationErr("grant amount must be positive")
	}
	if strings.TrimSpace(reason) == "" {
		return validationErr("reason is required")
	}
	entry := models.PointHistory{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: amount,
		Reason: reason,
	}
	return s.DB.Create(&entry).Error
}

// redeem appends a negative entry after a transactional balance check. The
// check and the append run in one transaction with the user's ledger locked,
// so concurrent redemptions cannot both pass the check.
func (s *PointService) redeem(userID string, amount int64, item string) error {
	if amount <= 0 {
		return validationErr("redeem amount must be positive")
	}
	if strings.TrimSpace(item) == "" {
		return validationErr("item is required")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		// Touch the user's entries under lock before summing
		var entries []models.PointHistory
		if err := lockForUpdate(tx).
			Where("user_id = ?", userID).
			Find(&entries).Error; err != nil {
			return err
		}

		balance, err := s.balance(tx, userID)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientBalance
		}

		entry := models.PointHistory{
			ID:     uuid.NewString(),
			UserID: userID,
			Amount: -amount,
			Reason: fmt.Sprintf("%sと交換", item),
		}
		return tx.Create(&entry).Error
	})
}

// --- Handlers ---

// GetMyBalance returns the caller's balance and full history, newest first.
func (s *PointService) GetMyBalance(c *fiber.Ctx) error {
	user := middleware.ProfileFromCtx(c)

	balance, err := s.Balance(user.ID)
	if err != nil {
		log.Printf("DB Error computing balance for %s: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute balance"})
	}

	var history []models.PointHistory
	if err := s.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&history).Error; err != nil {
		log.Printf("DB Error fetching point history for %s: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch history"})
	}

	return c.JSON(fiber.Map{
		"balance": balance,
		"history": history,
	})
}

// Redeem handles POST /s/points/redeem for the calling user.
func (s *PointService) Redeem(c *fiber.Ctx) error {
	user := middleware.ProfileFromCtx(c)

	var req struct {
		Amount int64  `json:"amount"`
		Item   string `json:"item"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := s.redeem(user.ID, req.Amount, req.Item); err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		case errors.Is(err, ErrInsufficientBalance):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Insufficient point balance"})
		}
		log.Printf("DB Error redeeming points for %s: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to redeem points"})
	}

	balance, _ := s.Balance(user.ID)
	return c.JSON(fiber.Map{
		"message": "Points redeemed successfully",
		"balance": balance,
	})
}

// Grant handles POST /s/admin/points/grant (Admin only). Grants append a
// ledger entry; balances stay derived from the ledger alone.
func (s *PointService) Grant(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var target models.Profile
	if err := s.DB.First(&target, "id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.grant(req.UserID, req.Amount, req.Reason); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message})
		}
		log.Printf("DB Error granting points to %s: %v", req.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to grant points"})
	}

	balance, _ := s.Balance(req.UserID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Points granted successfully",
		"user_id": req.UserID,
		"balance": balance,
	})
}

// GetUserBalance returns any user's balance and history (Admin only).
func (s *PointService) GetUserBalance(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	balance, err := s.Balance(userID)
	if err != nil {
		log.Printf("DB Error computing balance for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute balance"})
	}

	var history []models.PointHistory
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&history).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch history"})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
		"history": history,
	})
}
