package adapter

import "context"

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Stream sends a prompt to the model and returns a lazy chunk stream.
	// The stream terminates with a usage summary when the provider reports
	// one, or with an error.
	Stream(ctx context.Context, req Request) (Stream, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Request describes a single model invocation.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

const defaultMaxTokens = 4096

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

// Stream is a pull-based sequence of text chunks from a model response.
//
// Next advances to the next chunk and reports whether one is available.
// After Next returns false, Err reports the terminal error, if any, and
// Usage reports provider token accounting when available. Close releases
// the underlying network resource and must always be called; closing an
// active stream aborts it.
type Stream interface {
	Next() bool
	Chunk() string
	Usage() *Usage
	Err() error
	Close() error
}
