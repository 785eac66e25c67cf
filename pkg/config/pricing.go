package config

// PricingConfig maps adapter -> model -> pricing.
type PricingConfig map[string]map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// PricingFor looks up pricing for an adapter/model pair, falling back to the
// adapter's "default" entry when the model has no dedicated row.
func (p PricingConfig) PricingFor(adapterName, model string) (ModelPricing, bool) {
	if p == nil {
		return ModelPricing{}, false
	}
	if adapterPricing, ok := p[adapterName]; ok {
		if entry, ok := adapterPricing[model]; ok {
			return entry, true
		}
		if entry, ok := adapterPricing["default"]; ok {
			return entry, true
		}
	}
	return ModelPricing{}, false
}

// DefaultPricing returns the built-in rate table used when no pricing is
// configured. Rates are approximations and should be overridden in
// config.yaml for accurate accounting.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		"anthropic": {
			"claude-opus-4-20250514":   {PromptPer1K: 0.015, CompletionPer1K: 0.075},
			"claude-sonnet-4-20250514": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
			"default":                  {PromptPer1K: 0.003, CompletionPer1K: 0.015},
		},
		"openai": {
			"gpt-5.2-pro":      {PromptPer1K: 0.010, CompletionPer1K: 0.040},
			"gpt-5.2-thinking": {PromptPer1K: 0.005, CompletionPer1K: 0.020},
			"gpt-5.2-instant":  {PromptPer1K: 0.001, CompletionPer1K: 0.004},
			"gpt-5.2-codex":    {PromptPer1K: 0.002, CompletionPer1K: 0.008},
			"default":          {PromptPer1K: 0.002, CompletionPer1K: 0.008},
		},
		"google": {
			"gemini-2.0-pro": {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
			"default":        {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
		},
		"deepseek": {
			"deepseek-chat":     {PromptPer1K: 0.00027, CompletionPer1K: 0.0011},
			"deepseek-reasoner": {PromptPer1K: 0.00055, CompletionPer1K: 0.0022},
			"default":           {PromptPer1K: 0.00027, CompletionPer1K: 0.0011},
		},
	}
}
