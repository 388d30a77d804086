package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assessor/internal/utils"
)

// RequireRole admits requests whose JWT role is one of roles, compared case-insensitively.
// It must run after JWTProtected, which stores the role under "user_role".
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(string)
		if _, ok := allowed[normalizeRole(role)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "grading requires a teacher or admin role")
		}
		return c.Next()
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
