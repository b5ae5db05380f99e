package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/middleware"
	"github.com/noah-isme/ada-judge-api/internal/service"
	"github.com/noah-isme/ada-judge-api/internal/utils"
)

// UserHandler serves the account endpoints.
type UserHandler struct {
	gateway service.IntakeGateway
	logger  zerolog.Logger
}

// NewUserHandler builds a user handler instance.
func NewUserHandler(gateway service.IntakeGateway, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		gateway: gateway,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches the routes. auth must populate user_id; optional may let anonymous callers through.
func (h *UserHandler) Register(router fiber.Router, optional, auth fiber.Handler, limiter fiber.Handler) {
	router.Get("/me", optional, h.me)
	router.Post("/changePassword", auth, limiter, h.changePassword)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendSuccess(c, "anonymous", dto.MeResponse{Login: false})
	}

	profile, err := h.gateway.Profile(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendSuccess(c, "anonymous", dto.MeResponse{Login: false})
		}
		middleware.RequestLogger(h.logger, c).Error().Err(err).Msg("failed to load profile")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "profile retrieved", dto.MeResponse{Login: true, User: &profile})
}

func (h *UserHandler) changePassword(c *fiber.Ctx) error {
	var payload dto.ChangeCredentialsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendText(c, fiber.StatusBadRequest, "Invalid request.")
	}

	result, err := h.gateway.ChangeCredentials(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	if len(result.Changed) == 0 {
		return utils.SendText(c, fiber.StatusOK, "Nothing changed.")
	}
	return utils.SendText(c, fiber.StatusOK, "Changed successfully: "+strings.Join(result.Changed, ", "))
}

func (h *UserHandler) handleError(c *fiber.Ctx, err error) error {
	var persistErr *service.PersistenceError
	switch {
	case errors.Is(err, service.ErrBadCredentials):
		return utils.SendText(c, fiber.StatusForbidden, "Old password is not correct")
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendText(c, fiber.StatusUnauthorized, "Please login first.")
	case errors.Is(err, service.ErrPasswordMismatch):
		return utils.SendText(c, fiber.StatusBadRequest, "Two password are not equal.")
	case errors.Is(err, service.ErrPasswordTooShort):
		return utils.SendText(c, fiber.StatusBadRequest, "New password too short")
	case errors.Is(err, service.ErrPasswordTooLong):
		return utils.SendText(c, fiber.StatusBadRequest, "New password too long")
	case errors.Is(err, service.ErrUnsupportedAlgorithm):
		return utils.SendText(c, fiber.StatusBadRequest, `Unsupported SSH Key, only support "rsa", "ed25519", "ecdsa".`)
	case errors.Is(err, service.ErrInvalidPayload):
		return utils.SendText(c, fiber.StatusBadRequest, "Your SSH Key is not valid.")
	case errors.Is(err, service.ErrMalformedKey):
		return utils.SendText(c, fiber.StatusBadRequest, "Unsupported SSH Key or it is too short!")
	case errors.Is(err, service.ErrKeyAlreadyInUse):
		return utils.SendText(c, fiber.StatusForbidden, "Please don't use the same SSH Key with others!")
	case errors.Is(err, service.ErrNameTooLong):
		return utils.SendText(c, fiber.StatusBadRequest, "New name should be under 16 characters.")
	case errors.Is(err, service.ErrNameIllegal):
		return utils.SendText(c, fiber.StatusBadRequest, "New name contains illegal characters.")
	case errors.As(err, &persistErr):
		middleware.RequestLogger(h.logger, c).Error().Err(err).Str("field", persistErr.Field).Msg("account change not persisted")
		return utils.SendText(c, fiber.StatusInternalServerError, "Something bad happened... New "+persistedLabel(persistErr.Field)+" may not be saved.")
	default:
		middleware.RequestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendText(c, fiber.StatusInternalServerError, "Something bad happened...")
	}
}

func persistedLabel(field string) string {
	if field == service.FieldSSHKey {
		return "SSH Key"
	}
	return field
}
