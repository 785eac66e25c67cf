package consensus

import (
	"context"
	"strings"
	"time"

	"github.com/quorumlabs/quorum/pkg/adapter"
	"github.com/quorumlabs/quorum/pkg/config"
)

// executor runs one pipeline stage: prompt construction, streamed model
// invocation, chunk accumulation, progress and cost accounting.
type executor struct {
	registry  *adapter.Registry
	pricing   config.PricingConfig
	retry     config.RetryConfig
	callbacks Callbacks
	logf      func(format string, args ...any)
}

// execute runs a stage against its model, retrying once with backoff for
// rate-limit and transient failures only.
func (e *executor) execute(ctx context.Context, stage Stage, model, query, previous string) (*StageResult, *StageError) {
	adapterImpl, err := e.registry.ForModel(model)
	if err != nil {
		return nil, &StageError{Stage: stage, Kind: KindModelUnavailable, Err: err}
	}

	prompt := buildStagePrompt(stage, query, previous)

	const attempts = 2
	var lastErr *StageError
	for attempt := 1; attempt <= attempts; attempt++ {
		result, stageErr := e.attempt(ctx, stage, adapterImpl, model, prompt)
		if stageErr == nil {
			result.Retries = attempt - 1
			return result, nil
		}
		lastErr = stageErr
		if !stageErr.Retryable() || attempt == attempts {
			break
		}

		e.logf("%s stage: %s, retrying after backoff", stage, stageErr.Kind)
		if err := e.backoff(ctx, attempt); err != nil {
			return nil, cancelledError(stage, err)
		}
	}
	return nil, lastErr
}

func (e *executor) attempt(ctx context.Context, stage Stage, adapterImpl adapter.Adapter, model string, prompt stagePrompt) (*StageResult, *StageError) {
	startedAt := time.Now()

	stream, err := adapterImpl.Stream(ctx, adapter.Request{
		Model:  adapter.ModelName(model),
		System: prompt.System,
		Prompt: prompt.User,
	})
	if err != nil {
		return nil, classifyStageError(stage, err)
	}
	defer stream.Close()

	var accumulated strings.Builder
	tokens := 0
	estimated := stage.estimatedTokens()

	for stream.Next() {
		chunk := stream.Chunk()
		accumulated.WriteString(chunk)
		tokens += countTokens(chunk)

		e.notify(stage, "chunk", func() error {
			return e.callbacks.OnStageChunk(stage, chunk, accumulated.String())
		})
		e.notify(stage, "progress", func() error {
			return e.callbacks.OnStageProgress(stage, ProgressInfo{
				Stage:          stage,
				Tokens:         tokens,
				EstimatedTotal: estimated,
				Percentage:     progressPercentage(tokens, estimated),
			})
		})
	}
	if err := stream.Err(); err != nil {
		return nil, classifyStageError(stage, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelledError(stage, err)
	}

	content := accumulated.String()
	if strings.TrimSpace(content) == "" {
		return nil, emptyResponseError(stage)
	}

	usage := e.resolveUsage(stream.Usage(), prompt, tokens)
	completedAt := time.Now()

	e.notify(stage, "progress", func() error {
		return e.callbacks.OnStageProgress(stage, ProgressInfo{
			Stage:          stage,
			Tokens:         tokens,
			EstimatedTotal: tokens,
			Percentage:     1.0,
		})
	})

	return &StageResult{
		Stage:        stage,
		Model:        model,
		Content:      content,
		TokensInput:  usage.PromptTokens,
		TokensOutput: usage.CompletionTokens,
		Cost:         e.estimateCost(adapterImpl.Name(), model, usage),
		Duration:     completedAt.Sub(startedAt),
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
	}, nil
}

// resolveUsage prefers the provider's usage summary, falling back to
// whitespace token estimates when the stream reported none.
func (e *executor) resolveUsage(reported *adapter.Usage, prompt stagePrompt, streamedTokens int) adapter.Usage {
	if reported != nil {
		return reported.Normalize()
	}
	return adapter.Usage{
		PromptTokens:     countTokens(prompt.System) + countTokens(prompt.User),
		CompletionTokens: streamedTokens,
	}.Normalize()
}

func (e *executor) estimateCost(adapterName, model string, usage adapter.Usage) float64 {
	entry, ok := e.pricing.PricingFor(adapterName, adapter.ModelName(model))
	if !ok {
		return 0
	}
	promptCost := (float64(usage.PromptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * entry.CompletionPer1K
	return promptCost + completionCost
}

// backoff sleeps before a retry, doubling from the base and honoring
// cancellation.
func (e *executor) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(e.retry.BaseBackoffMs) * time.Millisecond << (attempt - 1)
	if max := time.Duration(e.retry.MaxBackoffMs) * time.Millisecond; delay > max {
		delay = max
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// notify invokes a non-terminal callback, logging failures without
// aborting the pipeline.
func (e *executor) notify(stage Stage, name string, fn func() error) {
	if err := fn(); err != nil {
		e.logf("%s callback failed for %s stage: %v", name, stage, err)
	}
}

// progressPercentage clamps the token ratio to [0,1), leaving 1.0 for the
// completion signal. The estimate is best-effort.
func progressPercentage(tokens, estimated int) float64 {
	if estimated <= 0 {
		return 0
	}
	pct := float64(tokens) / float64(estimated)
	if pct > 0.99 {
		pct = 0.99
	}
	return pct
}

func countTokens(text string) int {
	return len(strings.Fields(text))
}
