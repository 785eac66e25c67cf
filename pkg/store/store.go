// Package store persists completed and partial consensus runs. Stores are
// append-only and safe to call from concurrently executing runs; each
// RecordRun call is a single atomic unit and is never retried by the
// engine.
package store

import (
	"context"
	"time"
)

// RunRecord captures one consensus run for persistence.
type RunRecord struct {
	ConversationID string        `json:"conversation_id"`
	Query          string        `json:"query"`
	User           string        `json:"user,omitempty"`
	ProfileName    string        `json:"profile_name,omitempty"`
	Success        bool          `json:"success"`
	TotalCost      float64       `json:"total_cost"`
	TotalDuration  time.Duration `json:"total_duration"`
	CreatedAt      time.Time     `json:"created_at"`
	Stages         []StageRecord `json:"stages,omitempty"`
}

// StageRecord captures one stage row of a run.
type StageRecord struct {
	Stage        string    `json:"stage"`
	Model        string    `json:"model"`
	Content      string    `json:"content"`
	TokensInput  int       `json:"tokens_input"`
	TokensOutput int       `json:"tokens_output"`
	Cost         float64   `json:"cost"`
	DurationMS   int64     `json:"duration_ms"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	Retries      int       `json:"retries"`
}

// Store records consensus runs.
type Store interface {
	RecordRun(ctx context.Context, record RunRecord) error
}
