package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/service"
	"github.com/noah-isme/folio-go-api/internal/utils"
)

// ReviewHandler exposes the teacher review queue.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler constructs a review handler.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register wires review routes.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Get("/queue", h.queue)
}

func (h *ReviewHandler) queue(c *fiber.Ctx) error {
	result, err := h.service.Queue(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("review queue lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal error")
	}

	return utils.SendSuccess(c, "review queue retrieved", result)
}
