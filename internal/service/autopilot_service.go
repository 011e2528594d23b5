package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/internal/telemetry"
)

const autopilotPrompt = "Write a short, high-engagement Instagram caption for a 10-second animated baby reel. Keep it under 140 characters plus 8 relevant hashtags for India audience and viral reach."

const autopilotHashtags = "#BabyReels #CuteBaby #ReelItFeelIt #InstaIndia #ViralReels #DailyReels #TrendingNow #GrowthMode"

var autopilotHooks = []string{
	"Tiny smiles. Big emotions.",
	"10 seconds of pure baby joy.",
	"Cutest moment of the day unlocked.",
	"Soft vibes. Strong engagement.",
	"Baby energy that melts the feed.",
}

var autopilotCommentPool = []string{
	"Would you watch part 2?",
	"Rate this reel from 1 to 10.",
	"More baby reels coming soon.",
}

// AutopilotRun is the handle of one triggered cycle.
type AutopilotRun struct {
	StartedAt time.Time

	done chan struct{}
	post *models.Post
	err  error
}

func (r *AutopilotRun) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the cycle finishes or ctx ends.
func (r *AutopilotRun) Wait(ctx context.Context) (*models.Post, error) {
	select {
	case <-r.done:
		return r.post, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post is the created post, nil until the run finished successfully.
func (r *AutopilotRun) Post() *models.Post {
	select {
	case <-r.done:
		return r.post
	default:
		return nil
	}
}

func (r *AutopilotRun) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

type AutopilotService interface {
	Status() models.AutopilotState
	// Enable marks the autopilot as scheduled with its first run due now.
	Enable()
	// Trigger starts a cycle in the background. It returns false without
	// starting anything when a cycle is already in flight.
	Trigger(ctx context.Context) (*AutopilotRun, bool)
	// RunCycle runs one cycle synchronously, or returns ErrAutopilotBusy.
	RunCycle(ctx context.Context) (*models.Post, error)
	Current() *AutopilotRun
}

type AutopilotConfig struct {
	Enabled  bool
	Interval time.Duration
	Delay    time.Duration
}

type autopilotService struct {
	cfg       AutopilotConfig
	posts     repository.PostRepository
	channels  ChannelService
	media     MediaService
	captions  CaptionService
	generator MediaGenerator
	clock     Clock
	metrics   *telemetry.Metrics
	intn      func(int) int

	running atomic.Bool

	mu      sync.Mutex
	state   models.AutopilotState
	current *AutopilotRun
}

func NewAutopilotService(
	cfg AutopilotConfig,
	posts repository.PostRepository,
	channels ChannelService,
	media MediaService,
	captions CaptionService,
	generator MediaGenerator,
	clock Clock,
	metrics *telemetry.Metrics) AutopilotService {
	if clock == nil {
		clock = SystemClock()
	}
	return &autopilotService{
		cfg:       cfg,
		posts:     posts,
		channels:  channels,
		media:     media,
		captions:  captions,
		generator: generator,
		clock:     clock,
		metrics:   metrics,
		intn:      rand.IntN,
		state:     models.AutopilotState{Enabled: cfg.Enabled},
	}
}

func (s *autopilotService) Status() models.AutopilotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Running = s.running.Load()
	return st
}

func (s *autopilotService) Enable() {
	now := s.clock.Now()
	s.mu.Lock()
	s.state.Enabled = true
	s.state.NextRunAt = &now
	s.mu.Unlock()
}

func (s *autopilotService) Current() *AutopilotRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *autopilotService) Trigger(ctx context.Context) (*AutopilotRun, bool) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, false
	}

	run := &AutopilotRun{StartedAt: s.clock.Now(), done: make(chan struct{})}
	s.mu.Lock()
	s.current = run
	s.mu.Unlock()

	go func() {
		defer close(run.done)
		run.post, run.err = s.cycle(context.WithoutCancel(ctx))
	}()
	return run, true
}

func (s *autopilotService) RunCycle(ctx context.Context) (*models.Post, error) {
	run, ok := s.Trigger(ctx)
	if !ok {
		return nil, ErrAutopilotBusy
	}
	<-run.done
	return run.post, run.err
}

// cycle creates one post and always finalizes the state, releasing the guard last.
func (s *autopilotService) cycle(ctx context.Context) (post *models.Post, err error) {
	defer s.running.Store(false)

	s.mu.Lock()
	s.state.LastError = ""
	s.mu.Unlock()

	defer func() {
		now := s.clock.Now()
		next := now.Add(s.cfg.Interval)
		s.mu.Lock()
		s.state.LastRunAt = &now
		s.state.NextRunAt = &next
		if err != nil {
			s.state.LastError = err.Error()
		} else {
			s.state.LastPostID = post.ID
		}
		s.mu.Unlock()
		s.metrics.RecordAutopilotRun(ctx, err == nil)
	}()

	post, err = s.createPost(ctx)
	if err != nil {
		slog.Info("autopilot cycle failed", "error", err.Error())
		return nil, err
	}
	slog.Info("autopilot post scheduled", "post_id", post.ID, "scheduled_at", post.ScheduledAt)
	return post, nil
}

func (s *autopilotService) createPost(ctx context.Context) (*models.Post, error) {
	asset, err := s.generator.Generate(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.media.Save(ctx, asset.Name, asset.Data)
	if err != nil {
		return nil, err
	}

	caption := s.caption(ctx)
	now := s.clock.Now()
	post := &models.Post{
		ID:                     uuid.NewString(),
		PostType:               s.generator.PostType(),
		Source:                 models.SourceAutopilot,
		Caption:                caption,
		OptimizedCaption:       caption,
		MediaPath:              stored.Path,
		MediaOriginalName:      stored.OriginalName,
		ScheduledAt:            now.Add(s.cfg.Delay),
		Status:                 models.PostStatusScheduled,
		AutoCommentEnabled:     true,
		CommentPool:            append([]string(nil), autopilotCommentPool...),
		ScheduledCommentStatus: models.CommentStatusNone,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	ch, err := s.channels.Resolve(ctx, "")
	switch {
	case err == nil:
		applyChannel(post, ch)
	case errors.Is(err, ErrValidation):
		slog.Info("autopilot post left without channel", "error", err.Error())
	default:
		return nil, err
	}

	return s.posts.Upsert(ctx, post)
}

func (s *autopilotService) caption(ctx context.Context) string {
	if s.captions != nil {
		if text, err := s.captions.Generate(ctx, autopilotPrompt); err == nil {
			return truncateRunes(text, models.MaxCaptionLength)
		}
	}
	return autopilotHooks[s.intn(len(autopilotHooks))] + "\n\n" + autopilotHashtags
}
