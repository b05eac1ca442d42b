package handlers

import (
	"actify-backend/middleware"
	"actify-backend/models"
	"actify-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupPaymentRoutes mounts payment routes on the secured /s group.
func SetupPaymentRoutes(secured fiber.Router, db *gorm.DB, paymentService *services.PaymentService) {
	company := secured.Group("/company", middleware.RequireRole(db, models.RoleCompany))
	company.Get("/payments", paymentService.ListMine)
	company.Post("/payments", paymentService.CreateCheckout)
	company.Post("/payments/:id/confirm", paymentService.Confirm)
	company.Post("/payments/:id/fail", paymentService.Fail)

	admin := secured.Group("/admin", middleware.RequireRole(db, models.RoleAdmin))
	admin.Get("/payments", paymentService.ListAll)
}
