package consensus

import (
	"strings"
	"testing"
)

func TestGeneratorPromptIsRawQuery(t *testing.T) {
	const query = "Why is the sky blue during the day but red at sunset over the ocean?"
	prompt := buildStagePrompt(StageGenerator, query, "")
	if prompt.User != query {
		t.Errorf("generator user prompt = %q, want the raw query", prompt.User)
	}
	if !strings.HasPrefix(prompt.System, generatorSystem) {
		t.Error("generator system prompt missing the stage instructions")
	}
}

func TestGeneratorScopeHint(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"short lookup", "capital of France", "concisely"},
		{"what-is question", "what is the speed of light in a vacuum measured in meters", "concisely"},
		{"medium question", "compare optimistic and pessimistic locking strategies for databases", "well-structured"},
		{"long question", strings.Repeat("word ", 20), "in-depth"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prompt := buildStagePrompt(StageGenerator, tc.query, "")
			if !strings.Contains(prompt.System, tc.want) {
				t.Errorf("system prompt for %q missing %q hint", tc.query, tc.want)
			}
		})
	}
}

func TestHandoffPromptsCarryQueryAndPreviousOutput(t *testing.T) {
	const query = "original question text"
	const previous = "the previous stage's full answer"

	cases := []struct {
		stage Stage
		label string
	}{
		{StageRefiner, "Generator"},
		{StageValidator, "Refiner"},
		{StageCurator, "Validator"},
	}
	for _, tc := range cases {
		prompt := buildStagePrompt(tc.stage, query, previous)
		if !strings.Contains(prompt.User, "ORIGINAL QUESTION:\n"+query) {
			t.Errorf("%s prompt missing the original question", tc.stage)
		}
		if !strings.Contains(prompt.User, previous) {
			t.Errorf("%s prompt missing the previous stage output", tc.stage)
		}
		if !strings.Contains(prompt.User, tc.label) {
			t.Errorf("%s prompt does not attribute the handoff to the %s", tc.stage, tc.label)
		}
	}
}

func TestStageSystemPromptsDiffer(t *testing.T) {
	seen := make(map[string]Stage)
	for _, stage := range Stages() {
		prompt := buildStagePrompt(stage, "a question of moderate length about something technical", "prior")
		if other, dup := seen[prompt.System]; dup {
			t.Errorf("%s and %s share a system prompt", stage, other)
		}
		seen[prompt.System] = stage
	}
}
