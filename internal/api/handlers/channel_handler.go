package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/service"
)

type ChannelHandler struct {
	s service.ChannelService
}

func NewChannelHandler(s service.ChannelService) *ChannelHandler {
	return &ChannelHandler{s: s}
}

type channelView struct {
	*models.Channel
	Configured bool `json:"configured"`
}

func (h *ChannelHandler) ListChannels(c *fiber.Ctx) error {
	channels, err := h.s.List(c.Context())
	if err != nil {
		return err
	}

	out := make([]channelView, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelView{Channel: ch.Redacted(), Configured: ch.Configured()})
	}
	return c.Status(fiber.StatusOK).JSON(out)
}
