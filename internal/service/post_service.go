package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/internal/transfer"
)

const defaultDuplicateDelay = time.Hour

// MediaUpload is the file part of a create request.
type MediaUpload struct {
	Name string
	Data []byte
}

type PostService interface {
	Create(ctx context.Context, pc *transfer.PostCreation, upload *MediaUpload) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	Get(ctx context.Context, id string) (*models.Post, error)
	Update(ctx context.Context, id string, pu *transfer.PostUpdate) (*models.Post, error)
	OptimizeCaption(ctx context.Context, id string) (*models.Post, error)
	Cancel(ctx context.Context, id string) (*models.Post, error)
	Duplicate(ctx context.Context, id string, pd *transfer.PostDuplicate) (*models.Post, error)
}

type postService struct {
	posts    repository.PostRepository
	channels ChannelService
	media    MediaService
	captions CaptionService
	clock    Clock
}

func NewPostService(
	posts repository.PostRepository,
	channels ChannelService,
	media MediaService,
	captions CaptionService,
	clock Clock) PostService {
	if clock == nil {
		clock = SystemClock()
	}
	return &postService{
		posts:    posts,
		channels: channels,
		media:    media,
		captions: captions,
		clock:    clock,
	}
}

func (s *postService) Create(ctx context.Context, pc *transfer.PostCreation, upload *MediaUpload) (*models.Post, error) {
	if err := transfer.Validate(pc); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if upload == nil || len(upload.Data) == 0 {
		return nil, validationError("media file is required")
	}
	if pc.OptimizeWithAI && strings.TrimSpace(pc.Caption) == "" {
		return nil, validationError("caption is required when optimize_with_ai is set")
	}

	scheduledAt, err := ParseTime(pc.ScheduledAt)
	if err != nil {
		return nil, validationError("valid scheduled_at is required")
	}

	commentText := strings.TrimSpace(pc.ScheduledCommentText)
	commentAt, err := scheduledCommentTime(pc.ScheduledCommentEnabled, commentText, pc.ScheduledCommentAt, scheduledAt)
	if err != nil {
		return nil, err
	}

	ch, err := s.channels.Resolve(ctx, pc.ChannelID)
	if err != nil {
		return nil, err
	}

	stored, err := s.media.Save(ctx, upload.Name, upload.Data)
	if err != nil {
		return nil, err
	}

	optimized := ""
	if pc.OptimizeWithAI {
		optimized = s.captions.Optimize(ctx, pc.Caption)
	}

	now := s.clock.Now()
	post := &models.Post{
		ID:                      uuid.NewString(),
		PostType:                models.ParsePostType(pc.PostType),
		Caption:                 pc.Caption,
		OptimizedCaption:        optimized,
		MediaPath:               stored.Path,
		MediaOriginalName:       stored.OriginalName,
		ScheduledAt:             scheduledAt,
		Status:                  models.PostStatusScheduled,
		AutoCommentEnabled:      pc.AutoCommentEnabled,
		CommentPool:             NormalizeCommentPool(pc.CommentPool),
		ScheduledCommentEnabled: pc.ScheduledCommentEnabled,
		ScheduledCommentText:    commentText,
		ScheduledCommentAt:      commentAt,
		ScheduledCommentStatus:  models.CommentStatusNone,
		TrendID:                 pc.TrendID,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	applyChannel(post, ch)

	saved, err := s.posts.Upsert(ctx, post)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return saved, nil
}

func (s *postService) List(ctx context.Context) ([]*models.Post, error) {
	return s.posts.List(ctx)
}

func (s *postService) Get(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// Update applies a partial edit to a SCHEDULED or FAILED post. The status is left as is.
func (s *postService) Update(ctx context.Context, id string, pu *transfer.PostUpdate) (*models.Post, error) {
	if err := transfer.Validate(pu); err != nil {
		return nil, validationError("%s", err.Error())
	}

	post, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	next := post.Clone()

	if pu.Caption != nil {
		next.Caption = *pu.Caption
	}
	if pu.OptimizedCaption != nil {
		next.OptimizedCaption = *pu.OptimizedCaption
	}
	if pu.ScheduledAt != nil {
		at, err := ParseTime(*pu.ScheduledAt)
		if err != nil {
			return nil, validationError("valid scheduled_at is required")
		}
		next.ScheduledAt = at
	}
	if pu.ChannelID != nil {
		ch, err := s.channels.Resolve(ctx, *pu.ChannelID)
		if err != nil {
			return nil, err
		}
		applyChannel(next, ch)
	}
	if pu.AutoCommentEnabled != nil {
		next.AutoCommentEnabled = *pu.AutoCommentEnabled
	}
	if pu.CommentPool != nil {
		next.CommentPool = NormalizeCommentPool(pu.CommentPool)
	}

	if pu.ScheduledCommentEnabled != nil {
		next.ScheduledCommentEnabled = *pu.ScheduledCommentEnabled
	}
	if pu.ScheduledCommentText != nil {
		next.ScheduledCommentText = strings.TrimSpace(*pu.ScheduledCommentText)
	}
	rawCommentAt := ""
	if pu.ScheduledCommentAt != nil {
		rawCommentAt = *pu.ScheduledCommentAt
	} else if next.ScheduledCommentAt != nil {
		rawCommentAt = next.ScheduledCommentAt.Format(time.RFC3339Nano)
	}
	next.ScheduledCommentAt, err = scheduledCommentTime(next.ScheduledCommentEnabled, next.ScheduledCommentText, rawCommentAt, next.ScheduledAt)
	if err != nil {
		return nil, err
	}

	next.UpdatedAt = s.clock.Now()
	return s.posts.Upsert(ctx, next)
}

func (s *postService) OptimizeCaption(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(post.Caption) == "" {
		return nil, validationError("post has no caption to optimize")
	}

	next := post.Clone()
	next.OptimizedCaption = s.captions.Optimize(ctx, post.Caption)
	next.UpdatedAt = s.clock.Now()
	return s.posts.Upsert(ctx, next)
}

func (s *postService) Cancel(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.CanCancel() {
		return nil, models.CheckTransition(post.Status, models.PostStatusCanceled)
	}

	next := post.Clone()
	next.Status = models.PostStatusCanceled
	next.UpdatedAt = s.clock.Now()
	saved, err := s.posts.Upsert(ctx, next)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	slog.Info("post canceled", "post_id", id)
	return saved, nil
}

// Duplicate schedules a fresh copy of any post with its own media object.
func (s *postService) Duplicate(ctx context.Context, id string, pd *transfer.PostDuplicate) (*models.Post, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	scheduledAt := now.Add(defaultDuplicateDelay)
	if pd != nil && strings.TrimSpace(pd.ScheduledAt) != "" {
		scheduledAt, err = ParseTime(pd.ScheduledAt)
		if err != nil {
			return nil, validationError("valid scheduled_at is required")
		}
	}

	mediaPath, err := s.media.Copy(ctx, src.MediaPath)
	if err != nil {
		return nil, fmt.Errorf("copy media: %w", err)
	}

	dup := src.Clone()
	dup.ID = uuid.NewString()
	dup.Status = models.PostStatusScheduled
	dup.MediaPath = mediaPath
	dup.ScheduledAt = scheduledAt
	dup.Version = 0
	dup.CreatedAt = now
	dup.UpdatedAt = now

	dup.PublishMode = ""
	dup.RemotePostID = ""
	dup.Error = ""
	dup.PublishedAt = nil
	applyAutoComment(dup, nil)

	if src.ScheduledCommentAt != nil {
		at := scheduledAt.Add(src.ScheduledCommentAt.Sub(src.ScheduledAt))
		dup.ScheduledCommentAt = &at
	}
	dup.ScheduledCommentStatus = models.CommentStatusNone
	dup.ScheduledCommentID = ""
	dup.ScheduledCommentError = ""
	dup.ScheduledCommentPostedAt = nil

	return s.posts.Upsert(ctx, dup)
}

func (s *postService) editable(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.CanEdit() {
		return nil, fmt.Errorf("%w: a %s post cannot be edited", models.ErrInvalidTransition, post.Status)
	}
	return post, nil
}

// scheduledCommentTime checks the delayed comment settings. Without an
// explicit time the comment is due as soon as the post is published.
func scheduledCommentTime(enabled bool, text, raw string, scheduledAt time.Time) (*time.Time, error) {
	if !enabled {
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		at, err := ParseTime(raw)
		if err != nil {
			return nil, validationError("valid scheduled_comment_at is required")
		}
		return &at, nil
	}

	if text == "" {
		return nil, validationError("scheduled comment text is required")
	}
	if strings.TrimSpace(raw) == "" {
		at := scheduledAt
		return &at, nil
	}
	at, err := ParseTime(raw)
	if err != nil {
		return nil, validationError("valid scheduled_comment_at is required")
	}
	return &at, nil
}

// applyChannel snapshots the channel onto the post.
func applyChannel(post *models.Post, ch *models.Channel) {
	post.ChannelID = ch.ID
	post.ChannelName = ch.Name
	post.ChannelHandle = ch.Handle
	post.ChannelAccountID = ch.AccountID
	post.ChannelAccessToken = ch.AccessToken
}
