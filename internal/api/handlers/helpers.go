package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/internal/service"
)

// ErrorHandler maps service errors onto HTTP statuses with an {"error": ...} body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err.Error())
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrPostNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, service.ErrAutopilotBusy):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func redactAll(posts []*models.Post) []*models.Post {
	out := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Redacted())
	}
	return out
}
