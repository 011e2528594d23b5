package transfer

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

type PostCreation struct {
	Caption        string `form:"caption" json:"caption" validate:"max=2200"`
	ScheduledAt    string `form:"scheduled_at" json:"scheduled_at" validate:"required"`
	OptimizeWithAI bool   `form:"optimize_with_ai" json:"optimize_with_ai"`
	PostType       string `form:"post_type" json:"post_type" validate:"omitempty,oneof=FEED STORY REEL feed story reel"`
	ChannelID      string `form:"channel_id" json:"channel_id"`
	TrendID        string `form:"trend_id" json:"trend_id"`

	AutoCommentEnabled bool     `form:"auto_comment_enabled" json:"auto_comment_enabled"`
	CommentPool        []string `form:"comment_pool" json:"comment_pool" validate:"max=20,dive,max=2200"`

	ScheduledCommentEnabled bool   `form:"scheduled_comment_enabled" json:"scheduled_comment_enabled"`
	ScheduledCommentText    string `form:"scheduled_comment_text" json:"scheduled_comment_text" validate:"max=2200"`
	ScheduledCommentAt      string `form:"scheduled_comment_at" json:"scheduled_comment_at"`
}

// PostUpdate is a partial edit; nil fields keep their stored value.
type PostUpdate struct {
	Caption          *string `json:"caption" validate:"omitempty,max=2200"`
	OptimizedCaption *string `json:"optimized_caption" validate:"omitempty,max=2200"`
	ScheduledAt      *string `json:"scheduled_at"`
	ChannelID        *string `json:"channel_id"`

	AutoCommentEnabled *bool    `json:"auto_comment_enabled"`
	CommentPool        []string `json:"comment_pool" validate:"omitempty,max=20,dive,max=2200"`

	ScheduledCommentEnabled *bool   `json:"scheduled_comment_enabled"`
	ScheduledCommentText    *string `json:"scheduled_comment_text" validate:"omitempty,max=2200"`
	ScheduledCommentAt      *string `json:"scheduled_comment_at"`
}

type PostDuplicate struct {
	ScheduledAt string `json:"scheduled_at"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate runs the struct tags of a request DTO.
func Validate(v any) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate.Struct(v)
}
