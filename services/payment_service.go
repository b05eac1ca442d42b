package services

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"

	"actify-backend/middleware"
	"actify-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// minimum prepayment in yen
const minPaymentAmount = 100

// yenPrinter formats amounts with grouping separators (¥10,000).
var yenPrinter = message.NewPrinter(language.Japanese)

type PaymentService struct {
	DB       *gorm.DB
	Notifier *Notifier

	// hosted checkout page; the amount is prefilled via query string
	checkoutBaseURL string
}

func NewPaymentService(db *gorm.DB, notifier *Notifier) *PaymentService {
	base := os.Getenv("STRIPE_PAYMENT_LINK_URL")
	if base == "" {
		log.Println("⚠️  STRIPE_PAYMENT_LINK_URL not set — checkout links will be empty")
	}
	return &PaymentService{DB: db, Notifier: notifier, checkoutBaseURL: base}
}

// buildCheckoutURL constructs the hosted payment-link URL with the amount
// prefilled and the payment row referenced. No card data touches this service.
func (s *PaymentService) buildCheckoutURL(paymentID string, amount int64) string {
	if s.checkoutBaseURL == "" {
		return ""
	}
	u, err := url.Parse(s.checkoutBaseURL)
	if err != nil {
		log.Printf("[PAYMENT] Invalid checkout base URL: %v", err)
		return ""
	}
	q := u.Query()
	q.Set("prefilled_amount", fmt.Sprintf("%d", amount))
	q.Set("client_reference_id", paymentID)
	u.RawQuery = q.Encode()
	return u.String()
}

// CreateCheckout handles POST /s/company/payments. The row starts pending
// and is completed by an explicit confirm call, never optimistically.
func (s *PaymentService) CreateCheckout(c *fiber.Ctx) error {
	company := middleware.ProfileFromCtx(c)

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount < minPaymentAmount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Amount must be at least ¥%d", minPaymentAmount),
		})
	}

	payment := models.Payment{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		Amount:    req.Amount,
		Status:    models.PaymentStatusPending,
	}
	payment.CheckoutURL = s.buildCheckoutURL(payment.ID, payment.Amount)

	if err := s.DB.Create(&payment).Error; err != nil {
		log.Printf("DB Error creating payment: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create payment"})
	}

	s.Notifier.NotifyAsync(AdminNotifyEmail,
		"【Actify管理者】前払い決済開始通知",
		yenPrinter.Sprintf("%s 様が ¥%d の前払い決済を開始しました。", companyLabel(company), payment.Amount))

	return c.Status(fiber.StatusCreated).JSON(payment)
}

// transition moves a pending payment to completed or failed.
func (s *PaymentService) transition(paymentID, companyID string, to models.PaymentStatus) (*models.Payment, error) {
	var payment models.Payment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if companyID != "" && payment.CompanyID != companyID {
			return ErrNotAuthorized
		}
		if payment.Status != models.PaymentStatusPending {
			return validationErr(fmt.Sprintf("payment is already %s", payment.Status))
		}
		payment.Status = to
		return tx.Save(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Confirm handles POST /s/company/payments/:id/confirm.
func (s *PaymentService) Confirm(c *fiber.Ctx) error {
	return s.handleTransition(c, models.PaymentStatusCompleted)
}

// Fail handles POST /s/company/payments/:id/fail.
func (s *PaymentService) Fail(c *fiber.Ctx) error {
	return s.handleTransition(c, models.PaymentStatusFailed)
}

func (s *PaymentService) handleTransition(c *fiber.Ctx, to models.PaymentStatus) error {
	company := middleware.ProfileFromCtx(c)
	id := c.Params("id")

	payment, err := s.transition(id, company.ID, to)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
		case errors.Is(err, ErrNotAuthorized):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your payment"})
		case errors.As(err, &verr):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": verr.Message})
		}
		log.Printf("DB Error transitioning payment %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update payment"})
	}
	return c.JSON(payment)
}

// ListMine returns the calling company's payments plus the completed total.
func (s *PaymentService) ListMine(c *fiber.Ctx) error {
	company := middleware.ProfileFromCtx(c)

	var payments []models.Payment
	if err := s.DB.Where("company_id = ?", company.ID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		log.Printf("DB Error listing payments: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch payments"})
	}

	var completedTotal int64
	for _, p := range payments {
		if p.Status == models.PaymentStatusCompleted {
			completedTotal += p.Amount
		}
	}

	return c.JSON(fiber.Map{
		"payments":                payments,
		"completed_total":         completedTotal,
		"completed_total_display": yenPrinter.Sprintf("¥%d", completedTotal),
	})
}

// ListAll returns every payment (Admin only).
func (s *PaymentService) ListAll(c *fiber.Ctx) error {
	var payments []models.Payment
	if err := s.DB.Order("created_at DESC").Find(&payments).Error; err != nil {
		log.Printf("DB Error listing all payments: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch payments"})
	}
	return c.JSON(payments)
}
