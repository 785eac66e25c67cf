package consensus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/quorumlabs/quorum/pkg/adapter"
	"github.com/quorumlabs/quorum/pkg/config"
	"github.com/quorumlabs/quorum/pkg/profile"
	"github.com/quorumlabs/quorum/pkg/store"
)

// Engine orchestrates the four-stage consensus pipeline. An Engine is safe
// for concurrent use: each Process call owns an independent run and the
// shared collaborators (profile store, rate table, adapter registry) are
// read-only during a run.
type Engine struct {
	registry *adapter.Registry
	profiles profile.Store
	runs     store.Store
	pricing  config.PricingConfig
	retry    config.RetryConfig
	logf     func(format string, args ...any)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the persistence store runs are recorded to. Persistence
// failures are logged and never alter the returned result.
func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.runs = s
	}
}

// WithPricing sets the rate table used for cost accounting.
func WithPricing(pricing config.PricingConfig) Option {
	return func(e *Engine) {
		e.pricing = pricing
	}
}

// WithRetry sets the backoff configuration for retried stage calls.
func WithRetry(retry config.RetryConfig) Option {
	return func(e *Engine) {
		e.retry = retry
	}
}

// WithLogger sets the engine's log function.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(e *Engine) {
		e.logf = logf
	}
}

// New creates an Engine over the given adapters and profile store.
func New(registry *adapter.Registry, profiles profile.Store, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		profiles: profiles,
		pricing:  config.DefaultPricing(),
		retry:    config.RetryConfig{BaseBackoffMs: 200, MaxBackoffMs: 2000},
		logf:     log.Printf,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessOptions configures one consensus run.
type ProcessOptions struct {
	// Profile selects the consensus profile by id or name; empty selects
	// the active profile.
	Profile string
	// User optionally attributes the run for persistence.
	User string
	// Callbacks receives streamed notifications; nil discards them.
	Callbacks Callbacks
}

// Process runs the full consensus pipeline for a query.
//
// Stages execute strictly in order; each stage's prompt carries the
// previous stage's output, so stage N is fully committed before stage N+1
// starts. On stage failure the run stops, the partial run is still
// persisted, and the returned Result carries the stage results completed
// so far alongside the error. Two calls with identical input produce
// independent runs with distinct conversation ids.
func (e *Engine) Process(ctx context.Context, query string, opts ProcessOptions) (*Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	callbacks := opts.Callbacks
	if callbacks == nil {
		callbacks = NopCallbacks{}
	}

	prof, err := e.profiles.Get(ctx, opts.Profile)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrProfileNotFound, err)
		}
		return nil, fmt.Errorf("resolve profile: %w", err)
	}

	run := &Result{
		ConversationID: uuid.NewString(),
		Query:          query,
		Profile:        prof,
	}
	started := time.Now()

	exec := &executor{
		registry:  e.registry,
		pricing:   e.pricing,
		retry:     e.retry,
		callbacks: callbacks,
		logf:      e.logf,
	}

	models := prof.Models()
	previous := ""
	for i, stage := range Stages() {
		model := models[i]

		if err := callbacks.OnStageStart(stage, model); err != nil {
			e.logf("start callback failed for %s stage: %v", stage, err)
		}

		result, stageErr := exec.execute(ctx, stage, model, query, previous)
		if stageErr != nil {
			if cbErr := callbacks.OnError(stage, stageErr); cbErr != nil {
				e.logf("error callback failed for %s stage: %v", stage, cbErr)
			}
			run.Success = false
			run.TotalDuration = time.Since(started)
			e.persist(ctx, run, opts.User)
			return run, stageErr
		}

		run.Stages = append(run.Stages, *result)
		run.TotalCost += result.Cost
		previous = result.Content

		if err := callbacks.OnStageComplete(stage, *result); err != nil {
			e.logf("complete callback failed for %s stage: %v", stage, err)
		}
	}

	run.Answer = previous
	run.Success = true
	run.TotalDuration = time.Since(started)
	e.persist(ctx, run, opts.User)

	return run, nil
}

// persist hands the finished or partial run to the persistence store.
// The write is one atomic unit from the engine's perspective and is not
// retried; failure is logged and never changes the returned result.
func (e *Engine) persist(ctx context.Context, run *Result, user string) {
	if e.runs == nil {
		return
	}

	record := store.RunRecord{
		ConversationID: run.ConversationID,
		Query:          run.Query,
		User:           user,
		Success:        run.Success,
		TotalCost:      run.TotalCost,
		TotalDuration:  run.TotalDuration,
		CreatedAt:      time.Now().UTC(),
	}
	if run.Profile != nil {
		record.ProfileName = run.Profile.Name
	}
	for _, result := range run.Stages {
		record.Stages = append(record.Stages, store.StageRecord{
			Stage:        result.Stage.String(),
			Model:        result.Model,
			Content:      result.Content,
			TokensInput:  result.TokensInput,
			TokensOutput: result.TokensOutput,
			Cost:         result.Cost,
			DurationMS:   result.Duration.Milliseconds(),
			StartedAt:    result.StartedAt,
			CompletedAt:  result.CompletedAt,
			Retries:      result.Retries,
		})
	}

	// Persist even when the run was cancelled.
	if err := e.runs.RecordRun(context.WithoutCancel(ctx), record); err != nil {
		e.logf("persistence failed for conversation %s: %v", run.ConversationID, err)
	}
}
