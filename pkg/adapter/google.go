package adapter

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// GoogleAdapter implements the Adapter interface for Gemini models.
type GoogleAdapter struct {
	client *genai.Client
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(apiKey string) (*GoogleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAdapter{
		client: client,
	}, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (a *GoogleAdapter) Models() []string {
	return []string{
		"gemini-2.0-pro",
	}
}

// Stream sends a prompt to Gemini and returns the streamed response.
func (a *GoogleAdapter) Stream(ctx context.Context, req Request) (Stream, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.maxTokens()),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	seq := a.client.Models.GenerateContentStream(ctx, req.Model, genai.Text(req.Prompt), cfg)
	next, stop := iter.Pull2(seq)
	return &googleStream{next: next, stop: stop}, nil
}

type googleStream struct {
	next  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	chunk string
	usage *Usage
	err   error
}

func (s *googleStream) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		resp, err, ok := s.next()
		if !ok {
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("google API error: %w", err)
			return false
		}
		if resp == nil {
			continue
		}
		if resp.UsageMetadata != nil {
			u := Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}.Normalize()
			s.usage = &u
		}

		var text string
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				text += part.Text
			}
		}
		if text == "" {
			continue
		}
		s.chunk = text
		return true
	}
}

func (s *googleStream) Chunk() string {
	return s.chunk
}

func (s *googleStream) Usage() *Usage {
	return s.usage
}

func (s *googleStream) Err() error {
	return s.err
}

func (s *googleStream) Close() error {
	s.stop()
	return nil
}
