package consensus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quorumlabs/quorum/pkg/adapter"
	"github.com/quorumlabs/quorum/pkg/config"
	"github.com/quorumlabs/quorum/pkg/profile"
	"github.com/quorumlabs/quorum/pkg/store"
)

func testProfile() *profile.Profile {
	return &profile.Profile{
		ID:             "test",
		Name:           "Test",
		GeneratorModel: "mock-1",
		RefinerModel:   "mock-1",
		ValidatorModel: "mock-1",
		CuratorModel:   "mock-1",
	}
}

func testProfiles() *profile.StaticStore {
	return &profile.StaticStore{Profiles: []*profile.Profile{testProfile()}}
}

func mockPricing() config.PricingConfig {
	return config.PricingConfig{
		"mock": {"default": {PromptPer1K: 0.001, CompletionPer1K: 0.002}},
	}
}

func fastRetry() config.RetryConfig {
	return config.RetryConfig{BaseBackoffMs: 1, MaxBackoffMs: 2}
}

// captureAdapter records the requests it receives before delegating.
type captureAdapter struct {
	*adapter.MockAdapter
	mu       sync.Mutex
	requests []adapter.Request
}

func (a *captureAdapter) Stream(ctx context.Context, req adapter.Request) (adapter.Stream, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	return a.MockAdapter.Stream(ctx, req)
}

func (a *captureAdapter) Requests() []adapter.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	reqs := make([]adapter.Request, len(a.requests))
	copy(reqs, a.requests)
	return reqs
}

// recordedEvent is one callback invocation observed by recordingCallbacks.
type recordedEvent struct {
	kind     string
	stage    Stage
	model    string
	chunk    string
	progress ProgressInfo
	result   StageResult
	err      error
}

// recordingCallbacks captures the callback sequence for assertions.
type recordingCallbacks struct {
	events []recordedEvent
}

func (r *recordingCallbacks) OnStageStart(stage Stage, model string) error {
	r.events = append(r.events, recordedEvent{kind: "start", stage: stage, model: model})
	return nil
}

func (r *recordingCallbacks) OnStageChunk(stage Stage, chunk string, _ string) error {
	r.events = append(r.events, recordedEvent{kind: "chunk", stage: stage, chunk: chunk})
	return nil
}

func (r *recordingCallbacks) OnStageProgress(stage Stage, progress ProgressInfo) error {
	r.events = append(r.events, recordedEvent{kind: "progress", stage: stage, progress: progress})
	return nil
}

func (r *recordingCallbacks) OnStageComplete(stage Stage, result StageResult) error {
	r.events = append(r.events, recordedEvent{kind: "complete", stage: stage, result: result})
	return nil
}

func (r *recordingCallbacks) OnError(stage Stage, err error) error {
	r.events = append(r.events, recordedEvent{kind: "error", stage: stage, err: err})
	return nil
}

func (r *recordingCallbacks) forStage(stage Stage) []recordedEvent {
	var events []recordedEvent
	for _, ev := range r.events {
		if ev.stage == stage {
			events = append(events, ev)
		}
	}
	return events
}

func (r *recordingCallbacks) count(stage Stage, kind string) int {
	n := 0
	for _, ev := range r.forStage(stage) {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

func TestProcessRunsAllStagesInOrder(t *testing.T) {
	mock := adapter.NewMockAdapter()
	registry := adapter.NewRegistry()
	registry.Register(mock)
	runs := store.NewMemoryStore()

	engine := New(registry, testProfiles(),
		WithStore(runs),
		WithPricing(mockPricing()),
		WithLogger(t.Logf),
	)

	result, err := engine.Process(context.Background(), "What is 2+2?", ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.ConversationID == "" {
		t.Error("expected a conversation id")
	}
	if len(result.Stages) != 4 {
		t.Fatalf("completed %d stages, want 4", len(result.Stages))
	}
	for i, want := range Stages() {
		if result.Stages[i].Stage != want {
			t.Errorf("stage %d = %s, want %s", i, result.Stages[i].Stage, want)
		}
	}
	if result.Answer == "" {
		t.Error("expected a non-empty answer")
	}
	if curator := result.Stages[3]; result.Answer != curator.Content {
		t.Errorf("answer = %q, want curator output %q", result.Answer, curator.Content)
	}

	sum := 0.0
	for _, stage := range result.Stages {
		if stage.Cost <= 0 {
			t.Errorf("%s stage cost = %v, want > 0", stage.Stage, stage.Cost)
		}
		sum += stage.Cost
	}
	if math.Abs(result.TotalCost-sum) > 1e-12 {
		t.Errorf("total cost = %v, want stage sum %v", result.TotalCost, sum)
	}

	records := runs.Runs()
	if len(records) != 1 {
		t.Fatalf("persisted %d runs, want 1", len(records))
	}
	if !records[0].Success || len(records[0].Stages) != 4 {
		t.Errorf("persisted record: success=%v stages=%d, want success with 4 stages",
			records[0].Success, len(records[0].Stages))
	}
}

func TestProcessHandsOffPreviousStageOutput(t *testing.T) {
	mock := &captureAdapter{MockAdapter: adapter.NewMockAdapter()}
	registry := adapter.NewRegistry()
	registry.Register(mock)

	engine := New(registry, testProfiles(), WithLogger(t.Logf))

	const query = "Explain the CAP theorem in distributed systems please."
	result, err := engine.Process(context.Background(), query, ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	requests := mock.Requests()
	if len(requests) != 4 {
		t.Fatalf("adapter received %d requests, want 4", len(requests))
	}

	if requests[0].Prompt != query {
		t.Errorf("generator prompt = %q, want the raw query", requests[0].Prompt)
	}
	for i, stage := range Stages()[1:] {
		want := buildStagePrompt(stage, query, result.Stages[i].Content)
		got := requests[i+1]
		if got.Prompt != want.User {
			t.Errorf("%s prompt = %q, want %q", stage, got.Prompt, want.User)
		}
		if got.System != want.System {
			t.Errorf("%s system prompt mismatch", stage)
		}
	}
}

func TestProcessCallbackOrdering(t *testing.T) {
	mock := adapter.NewMockAdapter().
		WithDefaultResponse("four words of output")
	registry := adapter.NewRegistry()
	registry.Register(mock)

	recorder := &recordingCallbacks{}
	engine := New(registry, testProfiles(), WithLogger(t.Logf))

	if _, err := engine.Process(context.Background(), "test", ProcessOptions{Callbacks: recorder}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	for _, stage := range Stages() {
		events := recorder.forStage(stage)
		if len(events) == 0 {
			t.Fatalf("no events for %s stage", stage)
		}
		if events[0].kind != "start" {
			t.Errorf("%s stage: first event = %s, want start", stage, events[0].kind)
		}
		if last := events[len(events)-1]; last.kind != "complete" {
			t.Errorf("%s stage: last event = %s, want complete", stage, last.kind)
		}
		if n := recorder.count(stage, "start"); n != 1 {
			t.Errorf("%s stage: %d start events, want 1", stage, n)
		}
		if n := recorder.count(stage, "complete"); n != 1 {
			t.Errorf("%s stage: %d complete events, want 1", stage, n)
		}
		if n := recorder.count(stage, "error"); n != 0 {
			t.Errorf("%s stage: %d error events, want 0", stage, n)
		}
		if recorder.count(stage, "chunk") == 0 {
			t.Errorf("%s stage: no chunk events", stage)
		}

		// Chunks arrive in order and concatenate to the stage content.
		var rebuilt strings.Builder
		var finalProgress ProgressInfo
		for _, ev := range events {
			switch ev.kind {
			case "chunk":
				rebuilt.WriteString(ev.chunk)
			case "progress":
				finalProgress = ev.progress
			case "complete":
				if rebuilt.String() != ev.result.Content {
					t.Errorf("%s stage: chunks rebuild %q, result content %q",
						stage, rebuilt.String(), ev.result.Content)
				}
			}
		}
		if finalProgress.Percentage != 1.0 {
			t.Errorf("%s stage: final progress = %v, want 1.0", stage, finalProgress.Percentage)
		}
	}
}

func TestProcessCancellationMidStage(t *testing.T) {
	mock := adapter.NewMockAdapter().
		WithDefaultResponse(strings.Repeat("chunk ", 50)).
		WithChunkDelay(10 * time.Millisecond)
	registry := adapter.NewRegistry()
	registry.Register(mock)
	runs := store.NewMemoryStore()

	recorder := &recordingCallbacks{}
	engine := New(registry, testProfiles(), WithStore(runs), WithLogger(t.Logf))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(25*time.Millisecond, cancel)

	result, err := engine.Process(ctx, "slow question", ProcessOptions{Callbacks: recorder})
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindCancelled {
		t.Fatalf("error = %v, want %s stage error", err, KindCancelled)
	}

	if result.Success {
		t.Error("cancelled run reported success")
	}
	if len(result.Stages) != 0 {
		t.Errorf("cancelled generator produced %d stage results, want 0", len(result.Stages))
	}
	if n := recorder.count(StageGenerator, "complete"); n != 0 {
		t.Errorf("generator completed %d times after cancellation, want 0", n)
	}
	if n := recorder.count(StageGenerator, "error"); n != 1 {
		t.Errorf("generator emitted %d error events, want 1", n)
	}

	// The partial run is still persisted.
	records := runs.Runs()
	if len(records) != 1 {
		t.Fatalf("persisted %d runs, want 1", len(records))
	}
	if records[0].Success {
		t.Error("persisted cancelled run as success")
	}
}

func TestProcessDistinctConversationIDs(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewMockAdapter())
	engine := New(registry, testProfiles(), WithLogger(t.Logf))

	first, err := engine.Process(context.Background(), "same query", ProcessOptions{})
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	second, err := engine.Process(context.Background(), "same query", ProcessOptions{})
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if first.ConversationID == second.ConversationID {
		t.Errorf("identical runs share conversation id %s", first.ConversationID)
	}
}

func TestProcessProfileNotFound(t *testing.T) {
	mock := adapter.NewMockAdapter()
	registry := adapter.NewRegistry()
	registry.Register(mock)
	runs := store.NewMemoryStore()

	recorder := &recordingCallbacks{}
	engine := New(registry, testProfiles(), WithStore(runs), WithLogger(t.Logf))

	result, err := engine.Process(context.Background(), "test", ProcessOptions{
		Profile:   "no-such-profile",
		Callbacks: recorder,
	})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("error = %v, want ErrProfileNotFound", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if len(recorder.events) != 0 {
		t.Errorf("%d callbacks fired before profile resolution, want 0", len(recorder.events))
	}
	if mock.Calls() != 0 {
		t.Errorf("adapter received %d calls, want 0", mock.Calls())
	}
	if len(runs.Runs()) != 0 {
		t.Errorf("persisted %d runs, want 0", len(runs.Runs()))
	}
}

func TestProcessRetriesRateLimitedOnce(t *testing.T) {
	mock := adapter.NewMockAdapter().
		WithFailures(&adapter.AdapterError{Status: 429, Err: fmt.Errorf("rate limited")})
	registry := adapter.NewRegistry()
	registry.Register(mock)

	engine := New(registry, testProfiles(),
		WithRetry(fastRetry()),
		WithLogger(t.Logf),
	)

	result, err := engine.Process(context.Background(), "test", ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Error("expected success after retry")
	}
	if result.Stages[0].Retries != 1 {
		t.Errorf("generator retries = %d, want 1", result.Stages[0].Retries)
	}
	for _, stage := range result.Stages[1:] {
		if stage.Retries != 0 {
			t.Errorf("%s stage retries = %d, want 0", stage.Stage, stage.Retries)
		}
	}
	// One failed generator call, one retry, three clean stages.
	if mock.Calls() != 5 {
		t.Errorf("adapter received %d calls, want 5", mock.Calls())
	}
}

func TestProcessRateLimitedTwiceFails(t *testing.T) {
	rateLimit := &adapter.AdapterError{Status: 429, Err: fmt.Errorf("rate limited")}
	mock := adapter.NewMockAdapter().WithFailures(rateLimit, rateLimit)
	registry := adapter.NewRegistry()
	registry.Register(mock)

	engine := New(registry, testProfiles(), WithRetry(fastRetry()), WithLogger(t.Logf))

	result, err := engine.Process(context.Background(), "test", ProcessOptions{})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindRateLimited {
		t.Fatalf("error = %v, want %s stage error", err, KindRateLimited)
	}
	if stageErr.Stage != StageGenerator {
		t.Errorf("failed stage = %s, want generator", stageErr.Stage)
	}
	if len(result.Stages) != 0 {
		t.Errorf("produced %d stage results, want 0", len(result.Stages))
	}
	if mock.Calls() != 2 {
		t.Errorf("adapter received %d calls, want 2 (one retry only)", mock.Calls())
	}
}

func TestProcessModelUnavailableDoesNotRetry(t *testing.T) {
	mock := adapter.NewMockAdapter().
		WithFailures(&adapter.AdapterError{Status: 404, Err: fmt.Errorf("model not found")})
	registry := adapter.NewRegistry()
	registry.Register(mock)

	engine := New(registry, testProfiles(), WithRetry(fastRetry()), WithLogger(t.Logf))

	_, err := engine.Process(context.Background(), "test", ProcessOptions{})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindModelUnavailable {
		t.Fatalf("error = %v, want %s stage error", err, KindModelUnavailable)
	}
	if mock.Calls() != 1 {
		t.Errorf("adapter received %d calls, want 1 (no retry)", mock.Calls())
	}
}

// emptyAdapter streams no content, simulating a model that returns an
// empty response.
type emptyAdapter struct{}

func (emptyAdapter) Name() string     { return "empty" }
func (emptyAdapter) Models() []string { return []string{"empty-1"} }

func (emptyAdapter) Stream(context.Context, adapter.Request) (adapter.Stream, error) {
	return emptyStream{}, nil
}

type emptyStream struct{}

func (emptyStream) Next() bool            { return false }
func (emptyStream) Chunk() string         { return "" }
func (emptyStream) Usage() *adapter.Usage { return nil }
func (emptyStream) Err() error            { return nil }
func (emptyStream) Close() error          { return nil }

func TestProcessEmptyResponseAbortsPipeline(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewMockAdapter())
	registry.Register(emptyAdapter{}, "empty-")
	runs := store.NewMemoryStore()

	prof := testProfile()
	prof.ValidatorModel = "empty-1"
	profiles := &profile.StaticStore{Profiles: []*profile.Profile{prof}}

	recorder := &recordingCallbacks{}
	engine := New(registry, profiles, WithStore(runs), WithLogger(t.Logf))

	result, err := engine.Process(context.Background(), "test", ProcessOptions{Callbacks: recorder})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != KindEmptyResponse {
		t.Fatalf("error = %v, want %s stage error", err, KindEmptyResponse)
	}
	if stageErr.Stage != StageValidator {
		t.Errorf("failed stage = %s, want validator", stageErr.Stage)
	}

	if len(result.Stages) != 2 {
		t.Fatalf("completed %d stages, want 2", len(result.Stages))
	}
	if result.Success {
		t.Error("aborted run reported success")
	}
	if result.Answer != "" {
		t.Errorf("answer = %q, want empty on failure", result.Answer)
	}
	if n := recorder.count(StageValidator, "error"); n != 1 {
		t.Errorf("validator emitted %d error events, want 1", n)
	}
	if n := recorder.count(StageCurator, "start"); n != 0 {
		t.Errorf("curator started %d times after validator failure, want 0", n)
	}

	records := runs.Runs()
	if len(records) != 1 {
		t.Fatalf("persisted %d runs, want 1", len(records))
	}
	if len(records[0].Stages) != 2 {
		t.Errorf("persisted %d stage records, want the 2 completed stages", len(records[0].Stages))
	}
}

func TestProcessRequiresQuery(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewMockAdapter())
	engine := New(registry, testProfiles(), WithLogger(t.Logf))

	if _, err := engine.Process(context.Background(), "", ProcessOptions{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

// failingCallbacks errors on every notification, terminal and not.
type failingCallbacks struct {
	recordingCallbacks
}

func (f *failingCallbacks) OnStageChunk(stage Stage, chunk, accumulated string) error {
	f.recordingCallbacks.OnStageChunk(stage, chunk, accumulated)
	return fmt.Errorf("chunk handler broke")
}

func (f *failingCallbacks) OnStageProgress(stage Stage, progress ProgressInfo) error {
	f.recordingCallbacks.OnStageProgress(stage, progress)
	return fmt.Errorf("progress handler broke")
}

func TestProcessCallbackFailuresDoNotAbort(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewMockAdapter())

	var logged []string
	engine := New(registry, testProfiles(), WithLogger(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))

	callbacks := &failingCallbacks{}
	result, err := engine.Process(context.Background(), "test", ProcessOptions{Callbacks: callbacks})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Error("callback failures aborted the run")
	}
	if len(logged) == 0 {
		t.Error("callback failures were not logged")
	}
}

// failingStore always rejects writes.
type failingStore struct{}

func (failingStore) RecordRun(context.Context, store.RunRecord) error {
	return fmt.Errorf("disk full")
}

func TestProcessPersistenceFailureIsNonFatal(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewMockAdapter())

	var logged []string
	engine := New(registry, testProfiles(),
		WithStore(failingStore{}),
		WithLogger(func(format string, args ...any) {
			logged = append(logged, fmt.Sprintf(format, args...))
		}),
	)

	result, err := engine.Process(context.Background(), "test", ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Error("persistence failure altered the result")
	}
	found := false
	for _, line := range logged {
		if strings.Contains(line, "persistence failed") {
			found = true
		}
	}
	if !found {
		t.Error("persistence failure was not logged")
	}
}
