package handlers

import (
	"actify-backend/middleware"
	"actify-backend/models"
	"actify-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupPointRoutes mounts point routes on the secured /s group.
func SetupPointRoutes(secured fiber.Router, db *gorm.DB, pointService *services.PointService) {
	userOnly := middleware.RequireRole(db, models.RoleUser)
	secured.Get("/points", userOnly, pointService.GetMyBalance)
	secured.Post("/points/redeem", userOnly, pointService.Redeem)

	// 🔒 Admin-only grant and inspection
	admin := secured.Group("/admin", middleware.RequireRole(db, models.RoleAdmin))
	admin.Post("/points/grant", pointService.Grant)
	admin.Get("/points/:user_id", pointService.GetUserBalance)
}
