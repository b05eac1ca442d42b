package handlers

import (
	"actify-backend/middleware"
	"actify-backend/models"
	"actify-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupProfileRoutes mounts profile routes on the secured /s group.
func SetupProfileRoutes(secured fiber.Router, db *gorm.DB, profileService *services.ProfileService) {
	// Bootstrap runs before a profile exists, so no role gate here
	secured.Post("/profiles/me", profileService.Bootstrap)
	secured.Get("/profiles/me", profileService.Me)

	anyRole := middleware.RequireRole(db, models.RoleUser, models.RoleCompany, models.RoleAdmin)
	secured.Put("/profiles/me", anyRole, profileService.UpdateMe)

	// 🔒 Admin-only listings
	admin := secured.Group("/admin", middleware.RequireRole(db, models.RoleAdmin))
	admin.Get("/users", profileService.ListUsers)
	admin.Get("/companies", profileService.ListCompanies)
}
