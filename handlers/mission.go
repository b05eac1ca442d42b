package handlers

import (
	"actify-backend/middleware"
	"actify-backend/models"
	"actify-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupMissionRoutes mounts mission and application routes on the secured
// /s group. Role gates attach per-route because group middleware applies to
// the whole prefix.
func SetupMissionRoutes(secured fiber.Router, db *gorm.DB, missionService *services.MissionService, applicationService *services.ApplicationService) {
	anyRole := middleware.RequireRole(db, models.RoleUser, models.RoleCompany, models.RoleAdmin)
	userOnly := middleware.RequireRole(db, models.RoleUser)

	// Mission board — any authenticated role may browse
	secured.Get("/missions", anyRole, missionService.ListOpenMissions)
	secured.Get("/missions/:id", anyRole, missionService.GetMission)

	// User actions
	secured.Post("/missions/:id/apply", userOnly, applicationService.Apply)
	secured.Get("/applications", userOnly, applicationService.ListMine)
	secured.Post("/applications/:id/evidence", userOnly, applicationService.SubmitEvidence)

	// Company mission management
	company := secured.Group("/company", middleware.RequireRole(db, models.RoleCompany))
	company.Get("/missions", missionService.ListCompanyMissions)
	company.Post("/missions", missionService.CreateMission)
	company.Put("/missions/:id", missionService.UpdateMission)
	company.Patch("/missions/:id", missionService.UpdateMission)
	company.Delete("/missions/:id", missionService.DeleteMission)
	company.Get("/missions/:id/applications", applicationService.ListForMission)
}
