package models

import "time"

// AutopilotState is process-local and reset on restart.
type AutopilotState struct {
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	LastRunAt  *time.Time `json:"last_run_at"`
	LastPostID string     `json:"last_post_id"`
	LastError  string     `json:"last_error"`
	NextRunAt  *time.Time `json:"next_run_at"`
}
