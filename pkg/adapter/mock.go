package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockAdapter returns deterministic streamed responses for local runs and
// tests. Responses are keyed by prompt; unmatched prompts receive the
// default response split into word chunks.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string][]string
	defaultResponse string
	usage           *Usage
	failures        []error
	streamErrAfter  int
	streamErr       error
	chunkDelay      time.Duration
	calls           int
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string][]string),
		defaultResponse: "mock response",
		usage:           &Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

// WithResponse sets the chunk sequence returned for an exact prompt.
func (a *MockAdapter) WithResponse(prompt string, chunks ...string) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses[prompt] = chunks
	return a
}

// WithDefaultResponse sets the response for unmatched prompts.
func (a *MockAdapter) WithDefaultResponse(response string) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.defaultResponse = response
	return a
}

// WithUsage sets the usage summary reported at stream end. Passing nil
// simulates a provider that reports no usage.
func (a *MockAdapter) WithUsage(usage *Usage) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.usage = usage
	return a
}

// WithFailures queues errors returned by successive Stream calls before
// streaming succeeds. A nil entry means that call succeeds.
func (a *MockAdapter) WithFailures(errs ...error) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, errs...)
	return a
}

// WithStreamError makes every stream fail with err after n chunks.
func (a *MockAdapter) WithStreamError(n int, err error) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streamErrAfter = n
	a.streamErr = err
	return a
}

// WithChunkDelay inserts a delay before each chunk, for cancellation tests.
func (a *MockAdapter) WithChunkDelay(d time.Duration) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunkDelay = d
	return a
}

// Calls reports how many Stream calls the adapter has received.
func (a *MockAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Stream returns a deterministic chunk stream for the prompt.
func (a *MockAdapter) Stream(ctx context.Context, req Request) (Stream, error) {
	a.mu.Lock()
	a.calls++
	var failure error
	if len(a.failures) > 0 {
		failure = a.failures[0]
		a.failures = a.failures[1:]
	}
	chunks, ok := a.responses[req.Prompt]
	if !ok {
		chunks = splitChunks(fmt.Sprintf("%s: %s", a.defaultResponse, req.Prompt))
	}
	stream := &mockStream{
		ctx:      ctx,
		chunks:   chunks,
		usage:    a.usage,
		errAfter: a.streamErrAfter,
		err:      a.streamErr,
		delay:    a.chunkDelay,
	}
	a.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	return stream, nil
}

type mockStream struct {
	ctx      context.Context
	chunks   []string
	usage    *Usage
	errAfter int
	err      error
	delay    time.Duration
	pos      int
	failed   error
	closed   bool
}

func (s *mockStream) Next() bool {
	if s.failed != nil || s.closed {
		return false
	}
	if s.err != nil && s.pos >= s.errAfter {
		s.failed = s.err
		return false
	}
	if s.pos >= len(s.chunks) {
		return false
	}
	if s.delay > 0 {
		select {
		case <-s.ctx.Done():
			s.failed = s.ctx.Err()
			return false
		case <-time.After(s.delay):
		}
	} else if err := s.ctx.Err(); err != nil {
		s.failed = err
		return false
	}
	s.pos++
	return true
}

func (s *mockStream) Chunk() string {
	if s.pos == 0 || s.pos > len(s.chunks) {
		return ""
	}
	return s.chunks[s.pos-1]
}

func (s *mockStream) Usage() *Usage {
	if s.usage == nil {
		return nil
	}
	u := *s.usage
	return &u
}

func (s *mockStream) Err() error {
	return s.failed
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

func splitChunks(text string) []string {
	words := strings.Fields(text)
	chunks := make([]string, 0, len(words))
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		chunks = append(chunks, word)
	}
	return chunks
}
