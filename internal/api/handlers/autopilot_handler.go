package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/queue"
	"github.com/maheshrc27/reelpilot/internal/service"
)

type AutopilotHandler struct {
	s           service.AutopilotService
	AsynqClient queue.Enqueuer
}

func NewAutopilotHandler(s service.AutopilotService, asynqClient queue.Enqueuer) *AutopilotHandler {
	return &AutopilotHandler{s: s, AsynqClient: asynqClient}
}

type runView struct {
	StartedAt time.Time `json:"started_at"`
	Done      bool      `json:"done"`
	PostID    string    `json:"post_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type autopilotView struct {
	models.AutopilotState
	CurrentRun *runView `json:"current_run"`
}

func (h *AutopilotHandler) Status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.view())
}

// Trigger starts a cycle in the background, or hands it to the worker when
// ?async=true and a queue is configured.
func (h *AutopilotHandler) Trigger(c *fiber.Ctx) error {
	if c.QueryBool("async") && h.AsynqClient != nil {
		if h.s.Status().Running {
			return service.ErrAutopilotBusy
		}
		taskID, err := queue.EnqueueAutopilot(h.AsynqClient)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"started": false,
			"queued":  true,
			"task_id": taskID,
			"status":  h.view(),
		})
	}

	if _, ok := h.s.Trigger(context.Background()); !ok {
		return service.ErrAutopilotBusy
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"started": true,
		"status":  h.view(),
	})
}

func (h *AutopilotHandler) view() autopilotView {
	v := autopilotView{AutopilotState: h.s.Status()}
	run := h.s.Current()
	if run == nil {
		return v
	}

	rv := &runView{StartedAt: run.StartedAt}
	select {
	case <-run.Done():
		rv.Done = true
		if p := run.Post(); p != nil {
			rv.PostID = p.ID
		}
		if err := run.Err(); err != nil {
			rv.Error = err.Error()
		}
	default:
	}
	v.CurrentRun = rv
	return v
}
