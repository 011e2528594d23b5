package job

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/reelpilot/internal/service"
	"github.com/maheshrc27/reelpilot/internal/telemetry"
)

// SchedulerJob drives due posts and due scheduled comments on every tick.
type SchedulerJob struct {
	lc      service.LifecycleService
	metrics *telemetry.Metrics
	running atomic.Bool
}

func NewSchedulerJob(lc service.LifecycleService, metrics *telemetry.Metrics) *SchedulerJob {
	return &SchedulerJob{
		lc:      lc,
		metrics: metrics,
	}
}

func (j *SchedulerJob) Tick() {
	j.Run(context.Background())
}

// Run performs one cycle. A tick that fires while the previous one is still
// running is dropped and reports false.
func (j *SchedulerJob) Run(ctx context.Context) bool {
	if !j.running.CompareAndSwap(false, true) {
		slog.Info("scheduler tick skipped, previous cycle still running")
		return false
	}
	defer j.running.Store(false)

	started := time.Now()
	report, err := j.lc.PublishDue(ctx)
	if err != nil {
		slog.Info("scheduler cycle aborted", "error", err.Error())
		j.metrics.RecordSchedulerCycle(ctx, err)
		return true
	}

	comments, err := j.lc.PostDueComments(ctx)
	if err != nil {
		slog.Info("scheduled comments pass aborted", "error", err.Error())
	}
	j.metrics.RecordSchedulerCycle(ctx, err)

	if report.Due > 0 || comments > 0 {
		slog.Info("scheduler cycle finished",
			"due", report.Due,
			"published", report.Published,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"comments", comments,
			"took", time.Since(started).String(),
		)
	}
	return true
}
