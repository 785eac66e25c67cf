package consensus

import "fmt"

// Stage identifies one step of the four-stage consensus pipeline. Stages
// execute in a fixed total order; the Curator's output is the user-visible
// answer.
type Stage int

const (
	StageGenerator Stage = iota
	StageRefiner
	StageValidator
	StageCurator
)

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageGenerator, StageRefiner, StageValidator, StageCurator}
}

// String returns the canonical lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageGenerator:
		return "generator"
	case StageRefiner:
		return "refiner"
	case StageValidator:
		return "validator"
	case StageCurator:
		return "curator"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// DisplayName returns the stage's display name.
func (s Stage) DisplayName() string {
	switch s {
	case StageGenerator:
		return "Generator"
	case StageRefiner:
		return "Refiner"
	case StageValidator:
		return "Validator"
	case StageCurator:
		return "Curator"
	default:
		return "Unknown"
	}
}

// estimatedTokens is the heuristic response size used for progress
// percentages when the provider supplies no estimate. Best-effort only.
func (s Stage) estimatedTokens() int {
	switch s {
	case StageGenerator:
		return 500
	case StageRefiner:
		return 400
	case StageValidator:
		return 300
	default:
		return 350
	}
}
