package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func rolesApp(seed func(c *fiber.Ctx), check func(c *fiber.Ctx) error) *fiber.App {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		seed(c)
		return check(c)
	})
	return app
}

func TestHasAnyRoleMatchesCaseInsensitively(t *testing.T) {
	app := rolesApp(func(c *fiber.Ctx) {
		c.Locals("user_roles", []string{"student", "ta"})
	}, func(c *fiber.Ctx) error {
		if HasAnyRole(c, "admin", "TA") {
			return c.SendStatus(fiber.StatusOK)
		}
		return c.SendStatus(fiber.StatusForbidden)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHasAnyRoleRejectsMissingRoles(t *testing.T) {
	app := rolesApp(func(c *fiber.Ctx) {
		c.Locals("user_role", "student")
	}, func(c *fiber.Ctx) error {
		if HasAnyRole(c, "admin", "ta") {
			return c.SendStatus(fiber.StatusOK)
		}
		return c.SendStatus(fiber.StatusForbidden)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRolesFromContextFallsBackToSingleRole(t *testing.T) {
	var got []string
	app := rolesApp(func(c *fiber.Ctx) {
		c.Locals("user_role", "  Admin ")
	}, func(c *fiber.Ctx) error {
		got = RolesFromContext(c)
		return c.SendStatus(fiber.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, []string{"admin"}, got)
}

func TestRolesFromContextEmptyForAnonymous(t *testing.T) {
	var got []string
	app := rolesApp(func(c *fiber.Ctx) {}, func(c *fiber.Ctx) error {
		got = RolesFromContext(c)
		return c.SendStatus(fiber.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Empty(t, got)
}
