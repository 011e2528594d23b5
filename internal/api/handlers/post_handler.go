package handlers

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/queue"
	"github.com/maheshrc27/reelpilot/internal/service"
	"github.com/maheshrc27/reelpilot/internal/transfer"
)

type PostHandler struct {
	s  service.PostService
	lc service.LifecycleService
	// AsynqClient is nil when no Redis is configured.
	AsynqClient queue.Enqueuer
}

func NewPostHandler(s service.PostService, lc service.LifecycleService, asynqClient queue.Enqueuer) *PostHandler {
	return &PostHandler{s: s, lc: lc, AsynqClient: asynqClient}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(redactAll(posts))
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(post.Redacted())
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Info(err.Error())
		return fiber.NewError(fiber.StatusBadRequest, "unable to parse form")
	}

	upload, err := readUpload(c, "media")
	if err != nil {
		return err
	}

	post, err := h.s.Create(c.Context(), &pc, upload)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(post.Redacted())
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	post, err := h.s.Update(c.Context(), c.Params("id"), &pu)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(post.Redacted())
}

func (h *PostHandler) OptimizeCaption(c *fiber.Ctx) error {
	post, err := h.s.OptimizeCaption(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(post.Redacted())
}

// PublishNow publishes inline, or enqueues the publish when ?async=true and a queue is configured.
func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	id := c.Params("id")

	if c.QueryBool("async") && h.AsynqClient != nil {
		if _, err := h.s.Get(c.Context(), id); err != nil {
			return err
		}
		taskID, err := queue.EnqueuePublish(h.AsynqClient, queue.PublishPostPayload{PostID: id})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"post_id": id,
			"task_id": taskID,
		})
	}

	post, err := h.lc.PublishNow(c.Context(), id)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusFailed {
		return c.Status(fiber.StatusBadGateway).JSON(post.Redacted())
	}
	return c.Status(fiber.StatusOK).JSON(post.Redacted())
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	post, err := h.s.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(post.Redacted())
}

func (h *PostHandler) DuplicatePost(c *fiber.Ctx) error {
	var pd transfer.PostDuplicate
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&pd); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
	}

	post, err := h.s.Duplicate(c.Context(), c.Params("id"), &pd)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(post.Redacted())
}

func readUpload(c *fiber.Ctx, field string) (*service.MediaUpload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	if fh.Size > service.MaxUploadSize {
		return nil, fiber.NewError(fiber.StatusBadRequest, "media file is too large")
	}

	f, err := fh.Open()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, service.MaxUploadSize+1))
	if err != nil {
		return nil, err
	}
	return &service.MediaUpload{Name: fh.Filename, Data: data}, nil
}
