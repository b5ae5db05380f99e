package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ada-judge-api/internal/utils"
)

// JudgeTokenHeader carries the shared secret of the external judge.
const JudgeTokenHeader = "X-Judge-Token"

// JudgeToken admits only requests presenting the configured judge token.
func JudgeToken(token string) fiber.Handler {
	expected := []byte(token)
	return func(c *fiber.Ctx) error {
		presented := []byte(strings.TrimSpace(c.Get(JudgeTokenHeader)))
		if len(expected) == 0 || subtle.ConstantTimeCompare(presented, expected) != 1 {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid judge token")
		}
		return c.Next()
	}
}
