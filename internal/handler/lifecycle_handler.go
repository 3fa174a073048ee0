package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/dto"
	"github.com/noah-isme/folio-go-api/internal/repository"
	"github.com/noah-isme/folio-go-api/internal/service"
	"github.com/noah-isme/folio-go-api/internal/utils"
)

// LifecycleHandler exposes the submission state machine over HTTP.
type LifecycleHandler struct {
	service service.LifecycleService
	logger  zerolog.Logger
}

// NewLifecycleHandler constructs a lifecycle handler.
func NewLifecycleHandler(service service.LifecycleService, logger zerolog.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		service: service,
		logger:  logger.With().Str("component", "lifecycle_handler").Logger(),
	}
}

// Register wires lifecycle routes. Teacher-only transitions carry their role
// guard at the router level as well; the service re-checks regardless.
func (h *LifecycleHandler) Register(router fiber.Router, teacherOnly fiber.Handler) {
	router.Post("/:id/submit", h.submit)
	router.Post("/:id/approve", teacherOnly, h.approve)
	router.Post("/:id/request-revision", teacherOnly, h.requestRevision)
	router.Post("/:id/reopen", h.reopen)
}

func (h *LifecycleHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	result, err := h.service.Submit(c.UserContext(), id, actorFromCtx(c))
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "document submitted", result)
}

func (h *LifecycleHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	var payload dto.ApproveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Approve(c.UserContext(), id, actorFromCtx(c), payload)
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "document approved", result)
}

func (h *LifecycleHandler) requestRevision(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	var payload dto.RevisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.RequestRevision(c.UserContext(), id, actorFromCtx(c), payload)
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "revision requested", result)
}

func (h *LifecycleHandler) reopen(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	result, err := h.service.Reopen(c.UserContext(), id, actorFromCtx(c))
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "document reopened", result)
}

func (h *LifecycleHandler) mapError(c *fiber.Ctx, err error) error {
	var incomplete *service.IncompleteDocumentError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &incomplete):
		return utils.SendFieldErrors(c, "document is not ready for submission", incomplete.Missing)
	case errors.Is(err, service.ErrNotAuthorized):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrFeedbackRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDocumentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrStatusConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &validationErrs):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("lifecycle request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal error")
	}
}
