package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/stage"
)

// Pipeline names.
const (
	PipelineETL       = "data-processing"
	PipelineAnalytics = "analytics"
	PipelineML        = "ml-pipeline"
)

// Registry maps pipeline names to their definitions. Definitions are
// validated at registration so structural bugs surface at startup, not
// mid-run.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*stage.Definition
}

// NewRegistry creates an empty pipeline registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*stage.Definition)}
}

// Register validates and adds a definition.
func (r *Registry) Register(def *stage.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.defs[def.Name]; dup {
		return fmt.Errorf("pipeline %q already registered: %w", def.Name, conduit.ErrDuplicateContract)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is Register panicking on error. For wiring at startup.
func (r *Registry) MustRegister(def *stage.Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition for a pipeline name.
func (r *Registry) Lookup(name string) (*stage.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %q: %w", name, conduit.ErrUnknownPipeline)
	}
	return def, nil
}

// Names returns all registered pipeline names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults builds a registry holding the three built-in pipelines.
func Defaults() *Registry {
	r := NewRegistry()
	r.MustRegister(ETL())
	r.MustRegister(Analytics())
	r.MustRegister(ML())
	return r
}
