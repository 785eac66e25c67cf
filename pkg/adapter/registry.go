package adapter

import (
	"fmt"
	"sort"
	"strings"
)

// Registry selects the adapter serving a model id. Selection uses a lookup
// table keyed on model id prefix, plus support for "vendor/model" ids where
// the vendor segment names the adapter directly.
type Registry struct {
	adapters map[string]Adapter
	rules    []prefixRule
}

type prefixRule struct {
	prefix  string
	adapter string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under the given model id prefixes. When no
// prefixes are given, the defaults for the adapter's name are used.
func (r *Registry) Register(a Adapter, prefixes ...string) {
	r.adapters[a.Name()] = a
	if len(prefixes) == 0 {
		prefixes = defaultPrefixes(a.Name())
	}
	for _, prefix := range prefixes {
		r.rules = append(r.rules, prefixRule{prefix: strings.ToLower(prefix), adapter: a.Name()})
	}
	// Longer prefixes are more specific and must match first.
	sort.SliceStable(r.rules, func(i, j int) bool {
		return len(r.rules[i].prefix) > len(r.rules[j].prefix)
	})
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Adapters returns all registered adapters keyed by name.
func (r *Registry) Adapters() map[string]Adapter {
	return r.adapters
}

// ForModel resolves the adapter serving a model id.
func (r *Registry) ForModel(model string) (Adapter, error) {
	id := strings.ToLower(strings.TrimSpace(model))
	if id == "" {
		return nil, fmt.Errorf("model id is required")
	}

	if vendor, _, ok := strings.Cut(id, "/"); ok {
		if a, found := r.adapters[vendorAlias(vendor)]; found {
			return a, nil
		}
	}

	for _, rule := range r.rules {
		if strings.HasPrefix(id, rule.prefix) {
			if a, found := r.adapters[rule.adapter]; found {
				return a, nil
			}
		}
	}

	return nil, fmt.Errorf("no adapter registered for model %q", model)
}

// ModelName strips a "vendor/" qualifier from a model id, leaving the name
// the provider API expects.
func ModelName(model string) string {
	if _, name, ok := strings.Cut(model, "/"); ok {
		return name
	}
	return model
}

func defaultPrefixes(adapterName string) []string {
	switch adapterName {
	case "anthropic":
		return []string{"claude-"}
	case "openai":
		return []string{"gpt-", "o1", "o3", "o4"}
	case "google":
		return []string{"gemini-"}
	case "deepseek":
		return []string{"deepseek-"}
	case "mock":
		return []string{"mock-"}
	default:
		return nil
	}
}

func vendorAlias(vendor string) string {
	switch vendor {
	case "claude":
		return "anthropic"
	case "gemini":
		return "google"
	default:
		return vendor
	}
}
