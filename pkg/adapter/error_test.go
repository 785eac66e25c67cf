package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"rate limited", &AdapterError{Status: 429}, true},
		{"server error", &AdapterError{Status: 503}, true},
		{"temporary flag", &AdapterError{Temporary: true}, true},
		{"not found", &AdapterError{Status: 404}, false},
		{"plain error", errors.New("boom"), false},
		{"wrapped rate limit", fmt.Errorf("call failed: %w", &AdapterError{Status: 429}), true},
	}

	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s: IsTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsRateLimited(&AdapterError{Status: 429}) {
		t.Fatalf("expected 429 to classify as rate limited")
	}
	if IsRateLimited(&AdapterError{Status: 500}) {
		t.Fatalf("did not expect 500 to classify as rate limited")
	}
	if !IsModelUnavailable(fmt.Errorf("stage: %w", &AdapterError{Status: 404})) {
		t.Fatalf("expected wrapped 404 to classify as model unavailable")
	}
}

func TestMockAdapterStreamsChunksAndUsage(t *testing.T) {
	mock := NewMockAdapter().WithResponse("hi", "hel", "lo")

	stream, err := mock.Stream(context.Background(), Request{Model: "mock-1", Prompt: "hi"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	var content string
	for stream.Next() {
		content += stream.Chunk()
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if content != "hello" {
		t.Fatalf("unexpected content: %q", content)
	}
	if usage := stream.Usage(); usage == nil || usage.TotalTokens != 30 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if mock.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.Calls())
	}
}

func TestMockAdapterQueuedFailures(t *testing.T) {
	mock := NewMockAdapter().WithFailures(&AdapterError{Status: 429})

	if _, err := mock.Stream(context.Background(), Request{Model: "mock-1", Prompt: "hi"}); !IsRateLimited(err) {
		t.Fatalf("expected queued rate limit error, got %v", err)
	}
	if _, err := mock.Stream(context.Background(), Request{Model: "mock-1", Prompt: "hi"}); err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
}
