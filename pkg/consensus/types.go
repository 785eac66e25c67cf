package consensus

import (
	"time"

	"github.com/quorumlabs/quorum/pkg/profile"
)

// StageResult captures the outcome of one completed pipeline stage.
// Immutable once created.
type StageResult struct {
	Stage        Stage         `json:"stage"`
	Model        string        `json:"model"`
	Content      string        `json:"content"`
	TokensInput  int           `json:"tokens_input"`
	TokensOutput int           `json:"tokens_output"`
	Cost         float64       `json:"cost"`
	Duration     time.Duration `json:"duration"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  time.Time     `json:"completed_at"`
	Retries      int           `json:"retries"`
}

// ProgressInfo is a transient progress snapshot emitted while a stage
// streams. Percentage is clamped to [0,1] and is best-effort: the total is
// a heuristic unless the provider supplies one.
type ProgressInfo struct {
	Stage          Stage   `json:"stage"`
	Tokens         int     `json:"tokens"`
	EstimatedTotal int     `json:"estimated_total"`
	Percentage     float64 `json:"percentage"`
}

// Result is the read-only outcome of one consensus run returned to the
// caller. Success is true iff all four stages completed; Answer is the
// Curator's output and is empty on failure. TotalCost always equals the
// sum of the stage costs.
type Result struct {
	ConversationID string           `json:"conversation_id"`
	Query          string           `json:"query"`
	Profile        *profile.Profile `json:"profile,omitempty"`
	Stages         []StageResult    `json:"stages"`
	Answer         string           `json:"answer,omitempty"`
	TotalCost      float64          `json:"total_cost"`
	TotalDuration  time.Duration    `json:"total_duration"`
	Success        bool             `json:"success"`
}

// FinalStage reports the last stage that produced a result, or -1 when no
// stage completed.
func (r *Result) FinalStage() Stage {
	if len(r.Stages) == 0 {
		return Stage(-1)
	}
	return r.Stages[len(r.Stages)-1].Stage
}
