package consensus

import (
	"fmt"
	"strings"
)

const generatorSystem = `You are the Generator stage of a multi-model consensus pipeline.
Produce the initial answer to the user's question. Be accurate and complete;
later stages will refine, validate, and polish your response.`

const refinerSystem = `You are the Refiner stage of a multi-model consensus pipeline.
You receive the original question and the Generator's initial answer.
Improve the answer: fix inaccuracies, fill gaps, tighten structure, and
remove redundancy. Return the full improved answer, not a critique.`

const validatorSystem = `You are the Validator stage of a multi-model consensus pipeline.
You receive the original question and the Refiner's improved answer.
Verify factual claims, check internal consistency, and correct anything
wrong. Return the full validated answer, not a report.`

const curatorSystem = `You are the Curator stage of a multi-model consensus pipeline.
You receive the original question and the Validator's verified answer.
Produce the final user-facing response: clear, well-organized, and directly
addressing the question. Your output is delivered to the user verbatim.`

// stagePrompt is the prompt pair sent to a stage's model.
type stagePrompt struct {
	System string
	User   string
}

// buildStagePrompt constructs the prompt for a stage. The Generator sees
// the raw query only; each later stage sees the query plus the immediately
// preceding stage's full output. Keeping only the previous answer bounds
// prompt size and therefore cost.
func buildStagePrompt(stage Stage, query string, previous string) stagePrompt {
	switch stage {
	case StageGenerator:
		return stagePrompt{
			System: generatorSystem + generatorScopeHint(query),
			User:   query,
		}
	case StageRefiner:
		return stagePrompt{
			System: refinerSystem,
			User:   handoffPrompt(query, "Initial answer from the Generator", previous),
		}
	case StageValidator:
		return stagePrompt{
			System: validatorSystem,
			User:   handoffPrompt(query, "Improved answer from the Refiner", previous),
		}
	default:
		return stagePrompt{
			System: curatorSystem,
			User:   handoffPrompt(query, "Validated answer from the Validator", previous),
		}
	}
}

func handoffPrompt(query, label, previous string) string {
	return fmt.Sprintf("ORIGINAL QUESTION:\n%s\n\n%s:\n%s", query, label, previous)
}

// generatorScopeHint sizes the Generator's answer to the question. Short
// lookup questions get a direct answer; long ones get a full treatment.
func generatorScopeHint(query string) string {
	lower := strings.ToLower(query)
	words := len(strings.Fields(query))

	switch {
	case words <= 5 || strings.Contains(lower, "what is") || strings.Contains(lower, "how to"):
		return "\n\nAnswer concisely and directly."
	case words <= 15:
		return "\n\nProvide a clear, well-structured answer."
	default:
		return "\n\nProvide an in-depth answer covering the relevant perspectives."
	}
}
