package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore archives each run as JSON under its own directory:
// <base>/<conversation-id>/run.json plus stages/<stage>.json per stage.
// Run directories are independent, so concurrent runs never contend.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{baseDir: baseDir}, nil
}

// RecordRun writes the run and its stage records to disk.
func (s *FileStore) RecordRun(_ context.Context, record RunRecord) error {
	if record.ConversationID == "" {
		return fmt.Errorf("conversation id is required")
	}

	runDir := filepath.Join(s.baseDir, record.ConversationID)
	stageDir := filepath.Join(runDir, "stages")
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return err
	}

	// The top-level record omits stage content; stages get their own files.
	summary := record
	summary.Stages = nil
	if err := writeJSON(filepath.Join(runDir, "run.json"), summary); err != nil {
		return err
	}

	for _, stage := range record.Stages {
		path := filepath.Join(stageDir, fmt.Sprintf("%s.json", stage.Stage))
		if err := writeJSON(path, stage); err != nil {
			return err
		}
	}
	return nil
}

// RunDir returns the directory a conversation's records are written to.
func (s *FileStore) RunDir(conversationID string) string {
	return filepath.Join(s.baseDir, conversationID)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
