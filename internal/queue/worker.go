package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/internal/service"
)

func (j *Queue) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, j.HandlePublishPostTask)
	mux.HandleFunc(TaskTypeAutopilotRun, j.HandleAutopilotTask)
	return mux
}

// HandlePublishPostTask publishes one post. A failed publish is recorded on
// the post and is not retried.
func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	post, err := j.lc.PublishNow(ctx, payload.PostID)
	if err != nil {
		slog.Info("async publish rejected", "post_id", payload.PostID, "error", err.Error())
		if errors.Is(err, service.ErrPostNotFound) ||
			errors.Is(err, models.ErrInvalidTransition) ||
			errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("%s: %w", err.Error(), asynq.SkipRetry)
		}
		return err
	}

	if post.Status == models.PostStatusFailed {
		slog.Info("async publish failed", "post_id", post.ID, "error", post.Error)
	}
	return nil
}

func (j *Queue) HandleAutopilotTask(ctx context.Context, _ *asynq.Task) error {
	_, err := j.ap.RunCycle(ctx)
	if errors.Is(err, service.ErrAutopilotBusy) {
		return fmt.Errorf("%s: %w", err.Error(), asynq.SkipRetry)
	}
	return err
}
