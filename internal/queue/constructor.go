package queue

import (
	"github.com/maheshrc27/reelpilot/internal/service"
)

type Queue struct {
	lc service.LifecycleService
	ap service.AutopilotService
}

func NewQueue(lc service.LifecycleService, ap service.AutopilotService) *Queue {
	return &Queue{
		lc: lc,
		ap: ap,
	}
}

const (
	TaskTypePublishPost  = "post:publish"
	TaskTypeAutopilotRun = "autopilot:run"
)

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}
