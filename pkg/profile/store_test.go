package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreFallsBackToBuiltins(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "profiles.yaml"))

	p, err := store.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if p.ID != "balanced" {
		t.Fatalf("expected balanced as default active, got %s", p.ID)
	}

	profiles, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 4 {
		t.Fatalf("expected 4 builtin profiles, got %d", len(profiles))
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			t.Fatalf("builtin profile invalid: %v", err)
		}
	}
}

func TestFileStoreReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	data := []byte(`active: custom
profiles:
  - id: custom
    name: Custom
    generator_model: claude-sonnet-4-20250514
    refiner_model: gpt-5.2-thinking
    validator_model: gemini-2.0-pro
    curator_model: claude-opus-4-20250514
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write profiles: %v", err)
	}

	store := NewFileStore(path)

	p, err := store.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if p.Name != "Custom" || p.CuratorModel != "claude-opus-4-20250514" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	if _, err := store.Get(context.Background(), "missing-profile"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRejectsIncompleteProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	data := []byte(`profiles:
  - id: broken
    name: Broken
    generator_model: claude-sonnet-4-20250514
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write profiles: %v", err)
	}

	if _, err := NewFileStore(path).Get(context.Background(), "broken"); err == nil {
		t.Fatalf("expected validation error for incomplete profile")
	}
}

func TestStaticStoreSelectsByNameCaseInsensitive(t *testing.T) {
	store := &StaticStore{
		Active:   "a",
		Profiles: []*Profile{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}},
	}

	p, err := store.Get(context.Background(), "beta")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ID != "b" {
		t.Fatalf("expected profile b, got %s", p.ID)
	}

	p, err = store.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if p.ID != "a" {
		t.Fatalf("expected active profile a, got %s", p.ID)
	}
}
