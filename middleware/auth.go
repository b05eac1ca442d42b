package middleware

import (
	"errors"
	"log"
	"strings"

	"actify-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UserContextMiddleware extracts the authenticated user identity set by the
// Gateway. Applied to routes under /s/ — requests without an identity on a
// secured path are rejected here, mirroring the login redirect of the web tier.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authUserID := c.Get("X-User-ID")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/s/")
		if isSecured && authUserID == "" {
			log.Printf("[USER_CTX] X-User-ID required but missing on secured route: %s", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		c.Locals("auth_user_id", authUserID)
		return c.Next()
	}
}

// RequireRole loads the caller's profile and enforces that its role is one
// of the allowed roles. Unrecognized roles are rejected outright rather than
// falling through to a default dashboard. The loaded profile is attached to
// the context for handlers.
func RequireRole(db *gorm.DB, allowed ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authUserID, _ := c.Locals("auth_user_id").(string)
		if authUserID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}

		var profile models.Profile
		if err := db.First(&profile, "auth_user_id = ?", authUserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "no profile for authenticated user",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		if !models.ValidRole(profile.Role) {
			log.Printf("[ROLE] Unrecognized role %q for auth user %s", profile.Role, authUserID)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "unrecognized role"})
		}

		for _, role := range allowed {
			if profile.Role == role {
				c.Locals("profile", &profile)
				return c.Next()
			}
		}

		log.Printf("[ROLE] Access denied for %s (role=%s) on %s", authUserID, profile.Role, c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role for this resource",
		})
	}
}

// ProfileFromCtx returns the profile attached by RequireRole.
func ProfileFromCtx(c *fiber.Ctx) *models.Profile {
	p, _ := c.Locals("profile").(*models.Profile)
	return p
}
