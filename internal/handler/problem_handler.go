package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ada-judge-api/internal/middleware"
	"github.com/noah-isme/ada-judge-api/internal/service"
	"github.com/noah-isme/ada-judge-api/internal/utils"
)

// ProblemHandler lists problems with the caller's remaining quota.
type ProblemHandler struct {
	catalog service.ProblemCatalog
	logger  zerolog.Logger
}

// NewProblemHandler builds a problem handler instance.
func NewProblemHandler(catalog service.ProblemCatalog, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		catalog: catalog,
		logger:  logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ProblemHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *ProblemHandler) list(c *fiber.Ctx) error {
	problems, err := h.catalog.List(c.UserContext(), userIDFromContext(c), isStaff(c))
	if err != nil {
		middleware.RequestLogger(h.logger, c).Error().Err(err).Msg("failed to list problems")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
	return utils.SendSuccess(c, "problems retrieved", problems)
}
