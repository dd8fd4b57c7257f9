package process

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProcess means no process is registered under the name.
var ErrUnknownProcess = errors.New("unknown process")

// Func runs one item against the feeds in env.
type Func func(ctx context.Context, env Env, item Item) (Result, error)

// Process pairs a description with its implementation.
type Process struct {
	Description Description
	Run         Func
}

// Registry maps process names to processes.
type Registry struct {
	mu        sync.RWMutex
	processes map[string]Process
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{processes: make(map[string]Process)}
}

// DefaultRegistry returns a registry holding every built-in process.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, p := range map[string]Process{
		InfiltrationLosses: infiltrationLosses(),
		ConstantFlowToKWh:  constantFlowToKWh(),
		PowerToKWh:         powerToKWh(),
		TrimFeedStart:      trimFeedStart(),
	} {
		// names are distinct constants
		_ = r.Register(name, p)
	}
	return r
}

// Register adds a process. Names are unique.
func (r *Registry) Register(name string, p Process) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.processes[name]; exists {
		return fmt.Errorf("process already registered: %s", name)
	}
	if p.Run == nil {
		return fmt.Errorf("process %s has no implementation", name)
	}
	r.processes[name] = p
	return nil
}

// Get returns a process by name.
func (r *Registry) Get(name string) (Process, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processes[name]
	if !ok {
		return Process{}, fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.processes))
	for name := range r.processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptions returns every description keyed by process name.
func (r *Registry) Descriptions() map[string]Description {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Description, len(r.processes))
	for name, p := range r.processes {
		out[name] = p.Description
	}
	return out
}
