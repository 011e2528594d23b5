package queue

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the API needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewPublishPostTask(payload PublishPostPayload) (*asynq.Task, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskTypePublishPost,
		taskPayload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
	), nil
}

func NewAutopilotRunTask() *asynq.Task {
	return asynq.NewTask(
		TaskTypeAutopilotRun,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
	)
}

func EnqueuePublish(client Enqueuer, payload PublishPostPayload) (string, error) {
	task, err := NewPublishPostTask(payload)
	if err != nil {
		return "", err
	}

	info, err := client.Enqueue(task)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	slog.Info("publish task enqueued", "post_id", payload.PostID, "task_id", info.ID)
	return info.ID, nil
}

func EnqueueAutopilot(client Enqueuer) (string, error) {
	info, err := client.Enqueue(NewAutopilotRunTask())
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	slog.Info("autopilot task enqueued", "task_id", info.ID)
	return info.ID, nil
}
