package contract

import (
	"fmt"
	"sync"

	"github.com/xraph/conduit"
)

// Registry maps contract names to registered contracts. It follows a
// write-once lifecycle: populate during process initialization, then
// Freeze before the worker accepts runs. The mutex only guards the
// initialization window; after Freeze all access is read-only.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]Contract
	frozen    bool
}

// NewRegistry creates an empty contract registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[string]Contract),
	}
}

// Register adds a contract to the registry. It fails with
// conduit.ErrDuplicateContract if the name is already registered and
// conduit.ErrRegistryFrozen if Freeze has been called.
func (r *Registry) Register(c Contract) error {
	if c.Name == "" {
		return fmt.Errorf("register contract: empty name: %w", conduit.ErrUnknownContract)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register contract %q: %w", c.Name, conduit.ErrRegistryFrozen)
	}
	if _, exists := r.contracts[c.Name]; exists {
		return fmt.Errorf("register contract %q: %w", c.Name, conduit.ErrDuplicateContract)
	}

	r.contracts[c.Name] = c
	return nil
}

// MustRegister is like Register but panics on error. Use during static
// initialization where a failure is a programming error.
func (r *Registry) MustRegister(c Contract) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Lookup returns the contract registered under name. It fails with
// conduit.ErrUnknownContract if absent.
func (r *Registry) Lookup(name string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contracts[name]
	if !ok {
		return Contract{}, fmt.Errorf("lookup contract %q: %w", name, conduit.ErrUnknownContract)
	}
	return c, nil
}

// Freeze marks the registry read-only. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Names returns all registered contract names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.contracts))
	for name := range r.contracts {
		names = append(names, name)
	}
	return names
}
