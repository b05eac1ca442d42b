package handlers

import (
	"actify-backend/middleware"
	"actify-backend/models"
	"actify-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupContentRoutes mounts the public content read and the admin-only write.
func SetupContentRoutes(app *fiber.App, secured fiber.Router, db *gorm.DB, contentService *services.ContentService) {
	// 🔓 Public — terms/privacy pages render these
	app.Get("/content/:type", contentService.Get)

	admin := secured.Group("/admin", middleware.RequireRole(db, models.RoleAdmin))
	admin.Put("/content/:type", contentService.Save)
}
