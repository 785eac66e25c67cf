package consensus

import "testing"

func TestStagesOrder(t *testing.T) {
	want := []Stage{StageGenerator, StageRefiner, StageValidator, StageCurator}
	got := Stages()
	if len(got) != len(want) {
		t.Fatalf("Stages() returned %d stages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Stages()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStageNames(t *testing.T) {
	cases := []struct {
		stage   Stage
		name    string
		display string
	}{
		{StageGenerator, "generator", "Generator"},
		{StageRefiner, "refiner", "Refiner"},
		{StageValidator, "validator", "Validator"},
		{StageCurator, "curator", "Curator"},
		{Stage(9), "stage(9)", "Unknown"},
	}
	for _, tc := range cases {
		if got := tc.stage.String(); got != tc.name {
			t.Errorf("Stage(%d).String() = %q, want %q", int(tc.stage), got, tc.name)
		}
		if got := tc.stage.DisplayName(); got != tc.display {
			t.Errorf("Stage(%d).DisplayName() = %q, want %q", int(tc.stage), got, tc.display)
		}
	}
}

func TestFinalStage(t *testing.T) {
	empty := &Result{}
	if got := empty.FinalStage(); got != Stage(-1) {
		t.Errorf("empty result FinalStage() = %v, want -1", got)
	}

	partial := &Result{Stages: []StageResult{
		{Stage: StageGenerator},
		{Stage: StageRefiner},
	}}
	if got := partial.FinalStage(); got != StageRefiner {
		t.Errorf("FinalStage() = %s, want refiner", got)
	}
}
