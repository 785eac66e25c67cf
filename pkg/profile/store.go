package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a selector matches no profile.
var ErrNotFound = errors.New("profile not found")

// Store supplies consensus profiles. An empty selector resolves the
// active profile. Stores are read-only during a run.
type Store interface {
	Get(ctx context.Context, selector string) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
}

// fileProfiles represents the structure of profiles.yaml.
type fileProfiles struct {
	Active   string     `yaml:"active,omitempty"`
	Profiles []*Profile `yaml:"profiles"`
}

// FileStore reads profiles from a YAML file, seeding the built-in
// templates when the file does not exist.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given profiles file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get resolves a profile by id or name; an empty selector resolves the
// active profile.
func (s *FileStore) Get(_ context.Context, selector string) (*Profile, error) {
	contents, err := s.load()
	if err != nil {
		return nil, err
	}

	if selector == "" {
		selector = contents.Active
		if selector == "" && len(contents.Profiles) > 0 {
			return contents.Profiles[0], nil
		}
	}

	for _, p := range contents.Profiles {
		if strings.EqualFold(p.ID, selector) || strings.EqualFold(p.Name, selector) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("profile %q: %w", selector, ErrNotFound)
}

// List returns all available profiles.
func (s *FileStore) List(_ context.Context) ([]*Profile, error) {
	contents, err := s.load()
	if err != nil {
		return nil, err
	}
	return contents.Profiles, nil
}

func (s *FileStore) load() (*fileProfiles, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileProfiles{Active: "balanced", Profiles: Builtin()}, nil
		}
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var contents fileProfiles
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}
	if len(contents.Profiles) == 0 {
		return nil, fmt.Errorf("profiles file %s defines no profiles", s.path)
	}
	for _, p := range contents.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &contents, nil
}

// StaticStore serves a fixed profile set from memory. Useful for tests and
// embedding callers that manage profiles themselves.
type StaticStore struct {
	Active   string
	Profiles []*Profile
}

// Get resolves a profile by id or name; an empty selector resolves the
// active profile.
func (s *StaticStore) Get(_ context.Context, selector string) (*Profile, error) {
	if selector == "" {
		selector = s.Active
		if selector == "" && len(s.Profiles) > 0 {
			return s.Profiles[0], nil
		}
	}
	for _, p := range s.Profiles {
		if strings.EqualFold(p.ID, selector) || strings.EqualFold(p.Name, selector) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("profile %q: %w", selector, ErrNotFound)
}

// List returns all available profiles.
func (s *StaticStore) List(_ context.Context) ([]*Profile, error) {
	return s.Profiles, nil
}
