package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/maheshrc27/reelpilot/internal/service"
)

// AutopilotJob runs an autopilot cycle once on start and then every interval.
type AutopilotJob struct {
	ap        service.AutopilotService
	interval  time.Duration
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewAutopilotJob(ap service.AutopilotService, interval time.Duration) *AutopilotJob {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &AutopilotJob{
		ap:        ap,
		interval:  interval,
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (j *AutopilotJob) Start() error {
	j.ap.Enable()
	_, err := j.scheduler.Every(j.interval).StartImmediately().Tag("autopilot").Do(j.runOnce)
	if err != nil {
		return err
	}
	j.scheduler.StartAsync()
	return nil
}

func (j *AutopilotJob) Stop() {
	j.scheduler.Stop()
	j.cancel()
}

func (j *AutopilotJob) runOnce() {
	_, err := j.ap.RunCycle(j.ctx)
	if errors.Is(err, service.ErrAutopilotBusy) {
		slog.Info("autopilot tick skipped, a cycle is already running")
	}
}
