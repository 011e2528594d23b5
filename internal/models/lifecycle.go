package models

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[PostStatus][]PostStatus{
	PostStatusScheduled:  {PostStatusPublishing, PostStatusCanceled},
	PostStatusPublishing: {PostStatusPublished, PostStatusFailed},
	PostStatusFailed:     {PostStatusPublishing, PostStatusCanceled},
	PostStatusPublished:  nil,
	PostStatusCanceled:   nil,
}

// CanTransition reports whether a post may move from one status to another.
// SCHEDULED is only ever entered by creating a new post.
func CanTransition(from, to PostStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition returning a descriptive error.
func CheckTransition(from, to PostStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if !IsValidStatus(from) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func IsValidStatus(s PostStatus) bool {
	_, ok := transitions[s]
	return ok
}
