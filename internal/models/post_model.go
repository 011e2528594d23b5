package models

import (
	"strings"
	"time"
)

type PostStatus string

const (
	PostStatusScheduled  PostStatus = "SCHEDULED"
	PostStatusPublishing PostStatus = "PUBLISHING"
	PostStatusPublished  PostStatus = "PUBLISHED"
	PostStatusFailed     PostStatus = "FAILED"
	PostStatusCanceled   PostStatus = "CANCELED"
)

type PostType string

const (
	PostTypeFeed  PostType = "FEED"
	PostTypeStory PostType = "STORY"
	PostTypeReel  PostType = "REEL"
)

type CommentStatus string

const (
	CommentStatusNone    CommentStatus = "NONE"
	CommentStatusPending CommentStatus = "PENDING"
	CommentStatusPosted  CommentStatus = "POSTED"
	CommentStatusFailed  CommentStatus = "FAILED"
)

const (
	PublishModeMock = "mock"
	PublishModeLive = "live"

	SourceAutopilot = "AUTOPILOT_AGENT"

	MaxCaptionLength = 2200
)

type Post struct {
	ID       string   `db:"id" json:"id" bson:"_id"`
	PostType PostType `db:"post_type" json:"post_type" bson:"post_type"`

	Caption           string `db:"caption" json:"caption" bson:"caption"`
	OptimizedCaption  string `db:"optimized_caption" json:"optimized_caption" bson:"optimized_caption"`
	MediaPath         string `db:"media_path" json:"media_path" bson:"media_path"`
	MediaOriginalName string `db:"media_original_name" json:"media_original_name" bson:"media_original_name"`

	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at" bson:"scheduled_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at" bson:"updated_at"`

	// Channel fields are a snapshot taken at creation or edit time.
	ChannelID          string `db:"channel_id" json:"channel_id" bson:"channel_id"`
	ChannelName        string `db:"channel_name" json:"channel_name" bson:"channel_name"`
	ChannelHandle      string `db:"channel_handle" json:"channel_handle" bson:"channel_handle"`
	ChannelAccountID   string `db:"channel_account_id" json:"channel_account_id" bson:"channel_account_id"`
	ChannelAccessToken string `db:"channel_access_token" json:"channel_access_token,omitempty" bson:"channel_access_token"`

	Status       PostStatus `db:"status" json:"status" bson:"status"`
	PublishMode  string     `db:"publish_mode" json:"publish_mode" bson:"publish_mode"`
	RemotePostID string     `db:"remote_post_id" json:"remote_post_id" bson:"remote_post_id"`
	Error        string     `db:"error" json:"error" bson:"error"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at" bson:"published_at"`

	AutoCommentEnabled bool     `db:"auto_comment_enabled" json:"auto_comment_enabled" bson:"auto_comment_enabled"`
	CommentPool        []string `db:"comment_pool" json:"comment_pool" bson:"comment_pool"`
	AutoCommentPosted  bool     `db:"auto_comment_posted" json:"auto_comment_posted" bson:"auto_comment_posted"`
	AutoCommentMessage string   `db:"auto_comment_message" json:"auto_comment_message" bson:"auto_comment_message"`
	AutoCommentID      string   `db:"auto_comment_id" json:"auto_comment_id" bson:"auto_comment_id"`
	AutoCommentError   string   `db:"auto_comment_error" json:"auto_comment_error" bson:"auto_comment_error"`

	ScheduledCommentEnabled  bool          `db:"scheduled_comment_enabled" json:"scheduled_comment_enabled" bson:"scheduled_comment_enabled"`
	ScheduledCommentText     string        `db:"scheduled_comment_text" json:"scheduled_comment_text" bson:"scheduled_comment_text"`
	ScheduledCommentAt       *time.Time    `db:"scheduled_comment_at" json:"scheduled_comment_at" bson:"scheduled_comment_at"`
	ScheduledCommentStatus   CommentStatus `db:"scheduled_comment_status" json:"scheduled_comment_status" bson:"scheduled_comment_status"`
	ScheduledCommentID       string        `db:"scheduled_comment_id" json:"scheduled_comment_id" bson:"scheduled_comment_id"`
	ScheduledCommentError    string        `db:"scheduled_comment_error" json:"scheduled_comment_error" bson:"scheduled_comment_error"`
	ScheduledCommentPostedAt *time.Time    `db:"scheduled_comment_posted_at" json:"scheduled_comment_posted_at" bson:"scheduled_comment_posted_at"`

	Source  string `db:"source" json:"source,omitempty" bson:"source"`
	TrendID string `db:"trend_id" json:"trend_id,omitempty" bson:"trend_id"`

	// Version is bumped by every store write and compared on the next one.
	Version int64 `db:"version" json:"version" bson:"version"`
}

// ParsePostType maps user input onto a PostType, defaulting to FEED.
func ParsePostType(raw string) PostType {
	switch PostType(strings.ToUpper(strings.TrimSpace(raw))) {
	case PostTypeStory:
		return PostTypeStory
	case PostTypeReel:
		return PostTypeReel
	default:
		return PostTypeFeed
	}
}

// Clone returns a deep copy so callers can mutate a snapshot freely.
func (p *Post) Clone() *Post {
	c := *p
	if p.CommentPool != nil {
		c.CommentPool = append([]string(nil), p.CommentPool...)
	}
	c.PublishedAt = cloneTime(p.PublishedAt)
	c.ScheduledCommentAt = cloneTime(p.ScheduledCommentAt)
	c.ScheduledCommentPostedAt = cloneTime(p.ScheduledCommentPostedAt)
	return &c
}

// Redacted is the copy handed to API clients.
func (p *Post) Redacted() *Post {
	c := p.Clone()
	c.ChannelAccessToken = ""
	return c
}

// EffectiveCaption is the caption sent to Instagram.
func (p *Post) EffectiveCaption() string {
	if p.OptimizedCaption != "" {
		return p.OptimizedCaption
	}
	return p.Caption
}

// IsDue reports whether the scheduler should pick the post up.
func (p *Post) IsDue(now time.Time) bool {
	return p.Status == PostStatusScheduled && !p.ScheduledAt.After(now)
}

// ScheduledCommentDue reports whether the delayed comment should be posted.
// A comment that already reached POSTED or FAILED is never picked up again.
func (p *Post) ScheduledCommentDue(now time.Time) bool {
	if p.Status != PostStatusPublished || !p.ScheduledCommentEnabled {
		return false
	}
	if p.ScheduledCommentStatus == CommentStatusPosted || p.ScheduledCommentStatus == CommentStatusFailed {
		return false
	}
	if p.RemotePostID == "" || p.ScheduledCommentAt == nil {
		return false
	}
	return !p.ScheduledCommentAt.After(now)
}

func (p *Post) CanCancel() bool {
	return CanTransition(p.Status, PostStatusCanceled)
}

// CanEdit reports whether caption and schedule edits are accepted.
func (p *Post) CanEdit() bool {
	return p.Status == PostStatusScheduled || p.Status == PostStatusFailed
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
