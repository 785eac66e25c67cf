package profile

import "fmt"

// Profile is a named mapping from pipeline stage to model identifier.
// Immutable once loaded for a run.
type Profile struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	GeneratorModel string `yaml:"generator_model" json:"generator_model"`
	RefinerModel   string `yaml:"refiner_model" json:"refiner_model"`
	ValidatorModel string `yaml:"validator_model" json:"validator_model"`
	CuratorModel   string `yaml:"curator_model" json:"curator_model"`
}

// Models returns the stage models in pipeline order:
// generator, refiner, validator, curator.
func (p *Profile) Models() []string {
	return []string{p.GeneratorModel, p.RefinerModel, p.ValidatorModel, p.CuratorModel}
}

// Validate checks that every stage has a model assigned.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	for i, model := range p.Models() {
		if model == "" {
			stages := []string{"generator", "refiner", "validator", "curator"}
			return fmt.Errorf("profile %s: %s model is required", p.Name, stages[i])
		}
	}
	return nil
}

// Builtin returns the built-in profile templates, seeded when no profiles
// file exists. The first entry is the default active profile.
func Builtin() []*Profile {
	return []*Profile{
		{
			ID:             "balanced",
			Name:           "Balanced",
			GeneratorModel: "claude-sonnet-4-20250514",
			RefinerModel:   "gpt-5.2-thinking",
			ValidatorModel: "gemini-2.0-pro",
			CuratorModel:   "claude-sonnet-4-20250514",
		},
		{
			ID:             "budget",
			Name:           "Budget",
			GeneratorModel: "deepseek-chat",
			RefinerModel:   "gpt-5.2-instant",
			ValidatorModel: "deepseek-chat",
			CuratorModel:   "gpt-5.2-instant",
		},
		{
			ID:             "deep-review",
			Name:           "Deep Review",
			GeneratorModel: "claude-opus-4-20250514",
			RefinerModel:   "gpt-5.2-pro",
			ValidatorModel: "claude-opus-4-20250514",
			CuratorModel:   "gpt-5.2-pro",
		},
		{
			ID:             "fast",
			Name:           "Fast",
			GeneratorModel: "gpt-5.2-instant",
			RefinerModel:   "gpt-5.2-instant",
			ValidatorModel: "gemini-2.0-pro",
			CuratorModel:   "gpt-5.2-instant",
		},
	}
}
