package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// registryFile represents the YAML registry document
type registryFile struct {
	Papers []string `yaml:"papers"`
}

// Registry holds the set of paper identifiers grading accepts. Submission
// directories for papers outside the registry are skipped during
// enumeration.
type Registry struct {
	ids   map[string]struct{}
	order []string // file order, duplicates removed
}

// New builds a registry from a list of paper identifiers.
func New(ids []string) *Registry {
	r := &Registry{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if _, ok := r.ids[id]; ok {
			continue
		}
		r.ids[id] = struct{}{}
		r.order = append(r.order, id)
	}
	return r
}

// Load parses a YAML registry file into a Registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Papers) == 0 {
		return nil, fmt.Errorf("registry %s lists no papers", path)
	}
	return New(file.Papers), nil
}

// Contains reports whether id is a registered paper.
func (r *Registry) Contains(id string) bool {
	_, ok := r.ids[id]
	return ok
}

// IDs returns the registered paper identifiers in file order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered papers.
func (r *Registry) Len() int {
	return len(r.ids)
}
