package handler

import (
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/dto"
	"github.com/noah-isme/folio-go-api/internal/service"
	"github.com/noah-isme/folio-go-api/internal/utils"
	"github.com/noah-isme/folio-go-api/internal/workflow"
)

// DocumentHandler exposes draft editing over HTTP.
type DocumentHandler struct {
	service service.DocumentService
	logger  zerolog.Logger
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(service service.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger.With().Str("component", "document_handler").Logger(),
	}
}

// Register wires document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.remove)
	router.Patch("/:id/fields", h.patchFields)
	router.Post("/:id/save", h.save)
	router.Delete("/:id/session", h.closeSession)
	router.Get("/:id/steps/:step", h.checkStep)
	router.Post("/:id/links", h.addLink)
	router.Delete("/:id/links/:linkId", h.removeLink)
	router.Post("/:id/attachments", h.uploadAttachments)
	router.Delete("/:id/attachments/:attachmentId", h.deleteAttachment)
}

func (h *DocumentHandler) create(c *fiber.Ctx) error {
	var payload dto.DocumentCreateRequest
	if err := c.BodyParser(&payload); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := actorFromCtx(c)
	result, err := h.service.Create(c.UserContext(), actor.ID, payload)
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "draft created", result)
}

func (h *DocumentHandler) list(c *fiber.Ctx) error {
	var filter dto.DocumentFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(c.UserContext(), actorFromCtx(c), filter)
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "documents retrieved", result)
}

func (h *DocumentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	result, err := h.service.Get(c.UserContext(), id, actorFromCtx(c))
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "document retrieved", result)
}

func (h *DocumentHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	if err := h.service.Delete(c.UserContext(), id, actorFromCtx(c)); err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "document deleted", nil)
}

func (h *DocumentHandler) patchFields(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	var payload dto.FieldPatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.PatchFields(c.UserContext(), id, actorFromCtx(c), payload)
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "fields updated", result)
}

func (h *DocumentHandler) save(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	result, err := h.service.Save(c.UserContext(), id, actorFromCtx(c))
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "draft saved", result)
}

func (h *DocumentHandler) closeSession(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	h.service.CloseSession(id)

	return utils.SendSuccess(c, "session closed", nil)
}

func (h *DocumentHandler) checkStep(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	result, err := h.service.CheckStep(c.UserContext(), id, actorFromCtx(c), c.Params("step"))
	if err != nil {
		return h.mapError(c, err)
	}

	if !result.Allowed {
		return utils.SendFieldErrors(c, "step requirements not met", result.Missing)
	}

	return utils.SendSuccess(c, "step available", result)
}

func (h *DocumentHandler) addLink(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	var payload dto.ExternalLinkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.AddLink(c.UserContext(), id, actorFromCtx(c), payload)
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "link added", result)
}

func (h *DocumentHandler) removeLink(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	linkID, err := parseUintParam(c, "linkId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid link id")
	}

	result, err := h.service.RemoveLink(c.UserContext(), id, linkID, actorFromCtx(c))
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "link removed", result)
}

func (h *DocumentHandler) uploadAttachments(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form is required")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file is required")
	}

	isProcess := c.FormValue("is_process_documentation") == "true"

	files := make([]workflow.RawFile, 0, len(headers))
	for _, header := range headers {
		handle, err := header.Open()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "failed to read file "+header.Filename)
		}
		content, err := io.ReadAll(handle)
		handle.Close()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "failed to read file "+header.Filename)
		}

		files = append(files, workflow.RawFile{
			Name:                   header.Filename,
			Content:                content,
			IsProcessDocumentation: isProcess,
		})
	}

	result, err := h.service.UploadAttachments(c.UserContext(), id, actorFromCtx(c), files)
	if err != nil {
		return h.mapError(c, err)
	}

	status := fiber.StatusCreated
	message := "files uploaded"
	if len(result.Persisted) == 0 {
		status = fiber.StatusUnprocessableEntity
		message = "no files uploaded"
	} else if len(result.Rejected) > 0 || len(result.Failed) > 0 {
		message = "some files could not be uploaded"
	}

	return utils.SendSuccessWithStatus(c, status, message, result)
}

func (h *DocumentHandler) deleteAttachment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	attachmentID, err := parseUintParam(c, "attachmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attachment id")
	}

	result, err := h.service.DeleteAttachment(c.UserContext(), id, attachmentID, actorFromCtx(c))
	if err != nil {
		return h.mapError(c, err)
	}

	return utils.SendSuccess(c, "attachment removed", result)
}

func (h *DocumentHandler) mapError(c *fiber.Ctx, err error) error {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, service.ErrDocumentNotFound), errors.Is(err, service.ErrAttachmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, workflow.ErrDocumentLocked):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &validationErrs):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("document request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal error")
	}
}
