package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ada-judge-api/internal/dto"
	"github.com/noah-isme/ada-judge-api/internal/middleware"
	"github.com/noah-isme/ada-judge-api/internal/service"
	"github.com/noah-isme/ada-judge-api/internal/utils"
)

// SubmissionHandler manages submission endpoints for browsers, the push hook and the judge.
type SubmissionHandler struct {
	registry  service.SubmissionRegistry
	gateway   service.IntakeGateway
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(registry service.SubmissionRegistry, gateway service.IntakeGateway, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		registry:  registry,
		gateway:   gateway,
		validator: validator,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes. Hook routes authenticate with the repository upload key in the body.
func (h *SubmissionHandler) Register(router fiber.Router, auth, judge fiber.Handler) {
	router.Post("/intake", h.intake)
	router.Post("/get/last", h.hookLatest)
	router.Post("/get/gitHash", h.hookByGitHash)
	router.Put("/:id/judge", judge, h.judgeUpdate)
	router.Get("/sourceCode/:id", auth, h.sourceCode)
	router.Get("/:id", auth, h.get)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.registry.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	if !h.canView(c, view.SubmittedBy) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	return utils.SendSuccess(c, "submission retrieved", view)
}

func (h *SubmissionHandler) sourceCode(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	source, err := h.registry.SourceCode(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	if !h.canView(c, source.OwnerID) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	return utils.SendText(c, fiber.StatusOK, source.Code)
}

func (h *SubmissionHandler) intake(c *fiber.Ctx) error {
	var payload dto.IntakeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.gateway.Intake(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	if result.Duplicate {
		return utils.SendSuccess(c, "submission already received", result)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission accepted", result)
}

func (h *SubmissionHandler) hookLatest(c *fiber.Ctx) error {
	var payload dto.HookLookupRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	view, err := h.gateway.HookLatest(c.UserContext(), payload.Key)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission retrieved", view)
}

func (h *SubmissionHandler) hookByGitHash(c *fiber.Ctx) error {
	var payload dto.HookLookupRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}
	if payload.GitHash == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "gitHash is required")
	}

	views, err := h.gateway.HookByGitHash(c.UserContext(), payload.Key, payload.GitHash)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", views)
}

func (h *SubmissionHandler) judgeUpdate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.JudgeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	view, err := h.registry.UpdateFromJudge(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submission updated", view)
}

func (h *SubmissionHandler) canView(c *fiber.Ctx, ownerID uint) bool {
	return ownerID == userIDFromContext(c) || isStaff(c)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendValidationError(c, err)
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrNoSuchProblem):
		return utils.SendError(c, fiber.StatusNotFound, "problem not found")
	case errors.Is(err, service.ErrUploadKeyInvalid):
		return utils.SendError(c, fiber.StatusUnauthorized, "upload key is not valid")
	case errors.Is(err, service.ErrQuotaExceeded):
		return utils.SendError(c, fiber.StatusTooManyRequests, "quota exceeded")
	case errors.Is(err, service.ErrSourceNotText):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, "source must be plain text")
	case errors.Is(err, service.ErrUnknownStatus), errors.Is(err, service.ErrMissingVerdict):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStatusRegression), errors.Is(err, service.ErrSubmissionFinalized):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPersistenceFailed):
		middleware.RequestLogger(h.logger, c).Error().Err(err).Msg("submission not persisted")
		return utils.SendError(c, fiber.StatusInternalServerError, "Something bad happened... New submission may not be saved.")
	default:
		middleware.RequestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
