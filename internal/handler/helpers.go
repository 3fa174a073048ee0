package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/folio-go-api/internal/service"
)

func actorFromCtx(c *fiber.Ctx) service.Actor {
	actor := service.Actor{}

	if id, ok := c.Locals("user_id").(uint); ok {
		actor.ID = id
	}
	if role, ok := c.Locals("user_role").(string); ok {
		actor.Role = role
	}

	return actor
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}

	return uint(parsed), nil
}
