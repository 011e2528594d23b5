package handlers

import (
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	publishMode string
}

func NewHealthHandler(publishMode string) *HealthHandler {
	return &HealthHandler{publishMode: publishMode}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"service":      "reelpilot",
		"publish_mode": h.publishMode,
	})
}
