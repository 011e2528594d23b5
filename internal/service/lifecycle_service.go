package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/internal/telemetry"
)

// CycleReport summarises one pass over the due posts.
type CycleReport struct {
	Due       int
	Published int
	Failed    int
	Skipped   int
}

type LifecycleService interface {
	PublishNow(ctx context.Context, id string) (*models.Post, error)
	PublishDue(ctx context.Context) (CycleReport, error)
	PostDueComments(ctx context.Context) (int, error)
}

type lifecycleService struct {
	posts   repository.PostRepository
	ig      InstagramService
	clock   Clock
	metrics *telemetry.Metrics
}

func NewLifecycleService(posts repository.PostRepository, ig InstagramService, clock Clock, metrics *telemetry.Metrics) LifecycleService {
	if clock == nil {
		clock = SystemClock()
	}
	return &lifecycleService{
		posts:   posts,
		ig:      ig,
		clock:   clock,
		metrics: metrics,
	}
}

// PublishNow publishes a SCHEDULED or FAILED post immediately. A failed
// publish is recorded on the returned post, not returned as an error.
func (s *lifecycleService) PublishNow(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return s.publish(ctx, post)
}

func (s *lifecycleService) PublishDue(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	posts, err := s.posts.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list posts: %w", err)
	}

	now := s.clock.Now()
	for _, post := range posts {
		if !post.IsDue(now) {
			continue
		}
		report.Due++

		saved, err := s.publish(ctx, post)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, models.ErrInvalidTransition) {
				slog.Info("skipping post claimed elsewhere", "post_id", post.ID)
				report.Skipped++
				continue
			}
			return report, err
		}

		if saved.Status == models.PostStatusPublished {
			report.Published++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

func (s *lifecycleService) PostDueComments(ctx context.Context) (int, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list posts: %w", err)
	}

	posted := 0
	now := s.clock.Now()
	for _, post := range posts {
		if !post.ScheduledCommentDue(now) {
			continue
		}

		res := s.ig.PostComment(ctx, post, post.ScheduledCommentText)
		s.metrics.RecordComment(ctx, "scheduled", res.Posted)

		next := post.Clone()
		finished := s.clock.Now()
		next.UpdatedAt = finished
		next.ScheduledCommentID = res.CommentID
		next.ScheduledCommentError = res.Error
		if res.Posted {
			next.ScheduledCommentStatus = models.CommentStatusPosted
			next.ScheduledCommentPostedAt = &finished
			posted++
		} else {
			next.ScheduledCommentStatus = models.CommentStatusFailed
			next.ScheduledCommentPostedAt = nil
			if !res.Attempted && next.ScheduledCommentError == "" {
				next.ScheduledCommentError = "scheduled comment text is empty"
			}
		}

		if _, err := s.posts.Upsert(ctx, next); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				slog.Info("scheduled comment outcome lost to a concurrent write", "post_id", post.ID)
				continue
			}
			return posted, fmt.Errorf("record scheduled comment: %w", err)
		}
	}
	return posted, nil
}

// publish writes PUBLISHING before calling the gateway, then records the
// outcome. Only store and transition problems are returned as errors.
func (s *lifecycleService) publish(ctx context.Context, post *models.Post) (*models.Post, error) {
	if err := models.CheckTransition(post.Status, models.PostStatusPublishing); err != nil {
		return nil, err
	}

	claimed := post.Clone()
	claimed.Status = models.PostStatusPublishing
	claimed.UpdatedAt = s.clock.Now()
	claimed, err := s.posts.Upsert(ctx, claimed)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	result, pubErr := s.ig.Publish(ctx, claimed)

	next := claimed.Clone()
	now := s.clock.Now()
	next.UpdatedAt = now
	if pubErr != nil {
		next.Status = models.PostStatusFailed
		next.Error = pubErr.Error()
		next.PublishedAt = nil
		slog.Info("publish failed", "post_id", post.ID, "error", pubErr.Error())
	} else {
		next.Status = models.PostStatusPublished
		next.RemotePostID = result.RemotePostID
		next.PublishMode = result.Mode
		next.Error = ""
		next.PublishedAt = &now
		applyAutoComment(next, result.AutoComment)
		if next.ScheduledCommentEnabled {
			next.ScheduledCommentStatus = models.CommentStatusPending
		} else {
			next.ScheduledCommentStatus = models.CommentStatusNone
		}
		if result.AutoComment != nil && result.AutoComment.Attempted {
			s.metrics.RecordComment(ctx, "auto", result.AutoComment.Posted)
		}
		slog.Info("post published", "post_id", post.ID, "mode", result.Mode, "remote_post_id", result.RemotePostID)
	}

	saved, err := s.posts.Upsert(ctx, next)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("record publish outcome: %w", err)
	}
	return saved, nil
}

func applyAutoComment(post *models.Post, c *CommentResult) {
	if c == nil {
		c = &CommentResult{}
	}
	post.AutoCommentPosted = c.Posted
	post.AutoCommentMessage = c.Message
	post.AutoCommentID = c.CommentID
	post.AutoCommentError = c.Error
}
