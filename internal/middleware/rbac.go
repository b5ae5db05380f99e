package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// HasAnyRole reports whether the request carries one of roles.
func HasAnyRole(c *fiber.Ctx, roles ...string) bool {
	granted := RolesFromContext(c)
	for _, want := range roles {
		want = strings.ToLower(want)
		for _, role := range granted {
			if role == want {
				return true
			}
		}
	}
	return false
}

// RolesFromContext returns every role attached by the JWT middleware.
func RolesFromContext(c *fiber.Ctx) []string {
	if roles, ok := c.Locals("user_roles").([]string); ok {
		return roles
	}
	if role := normalizeRoleValue(c.Locals("user_role")); role != "" {
		return []string{role}
	}
	return nil
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
