// Package toolkit implements the Tool Registry: a process-wide mapping of
// tool name to callable plus descriptor, with enable/disable and usage
// counters. It is the sole path agent materialization uses to resolve
// bound tools (see pkg/agent).
package toolkit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Callable is the thing a tool actually does. Implementations are supplied
// by collaborators outside this module's scope (search, finance, image
// generation, ...); only the registration contract lives here.
type Callable interface {
	// Call executes the tool synchronously and returns a JSON-serializable
	// result or an error.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// CallableFunc adapts a plain function to Callable.
type CallableFunc func(ctx context.Context, args map[string]any) (any, error)

func (f CallableFunc) Call(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Descriptor is the durable, inspectable metadata for a registered tool.
type Descriptor struct {
	Name        string
	Description string
	Category    string
	Version     string
	Author      string
	Schema      map[string]any

	enabled    atomic.Bool
	usageCount atomic.Int64
}

// IsEnabled reports whether the tool currently accepts calls.
func (d *Descriptor) IsEnabled() bool { return d.enabled.Load() }

// UsageCount returns how many times the tool has been invoked via Call.
func (d *Descriptor) UsageCount() int64 { return d.usageCount.Load() }

// Entry pairs a descriptor with its executable implementation.
type Entry struct {
	Descriptor *Descriptor
	Impl       Callable
}

// Filter narrows List results. A zero-value Filter matches everything.
type Filter struct {
	Category     string
	EnabledOnly  bool
	RegisteredBy string // Author, optional
}

func (f Filter) matches(d *Descriptor) bool {
	if f.Category != "" && d.Category != f.Category {
		return false
	}
	if f.EnabledOnly && !d.IsEnabled() {
		return false
	}
	if f.RegisteredBy != "" && d.Author != f.RegisteredBy {
		return false
	}
	return true
}

// Registry is the process-wide Tool Registry (spec C1). All operations are
// thread-safe: a single writer lock guards registration state, reads are
// lock-free snapshots over atomic counters/flags on each Descriptor.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty Tool Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a new tool. It is an error to register a name twice, even
// after Unregister, which keeps the entry; the registry has no way to
// replace or fully remove an implementation.
func (r *Registry) Register(descriptor *Descriptor, impl Callable) error {
	if descriptor == nil || descriptor.Name == "" {
		return &ValidationError{Reason: "tool descriptor must have a non-empty name"}
	}
	if impl == nil {
		return &ValidationError{Reason: "tool implementation cannot be nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[descriptor.Name]; exists {
		return &ValidationError{Reason: "tool \"" + descriptor.Name + "\" already registered"}
	}

	descriptor.enabled.Store(true)
	r.entries[descriptor.Name] = &Entry{Descriptor: descriptor, Impl: impl}
	return nil
}

// Unregister is a soft delete: it flips is_enabled=false but keeps the
// descriptor resolvable, so agent definitions referencing this tool name
// do not dangle (they simply fail resolution with ToolUnavailable at
// materialization time if still bound after disablement -- see pkg/agent).
func (r *Registry) Unregister(name string) error {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return &NotFoundError{Name: name}
	}
	entry.Descriptor.enabled.Store(false)
	return nil
}

// Get returns the entry registered under name, if any.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns descriptors matching filter, ordered by name.
func (r *Registry) List(filter Filter) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.matches(e.Descriptor) {
			out = append(out, e.Descriptor)
		}
	}
	sortDescriptorsByName(out)
	return out
}

// ResolveMany resolves every requested tool name, returning the resolved
// Callables and the subset that could not be found or are disabled. It
// never errors -- callers (agent materialization) decide whether a missing
// tool is fatal.
func (r *Registry) ResolveMany(names []string) (resolved map[string]*Entry, missing []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved = make(map[string]*Entry, len(names))
	for _, name := range names {
		e, ok := r.entries[name]
		if !ok || !e.Descriptor.IsEnabled() {
			missing = append(missing, name)
			continue
		}
		resolved[name] = e
	}
	return resolved, missing
}

// Invoke calls the named tool and bumps its usage counter on success.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	entry, ok := r.Get(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	if !entry.Descriptor.IsEnabled() {
		return nil, &DisabledError{Name: name}
	}
	result, err := entry.Impl.Call(ctx, args)
	if err == nil {
		entry.Descriptor.usageCount.Add(1)
	}
	return result, err
}

func sortDescriptorsByName(d []*Descriptor) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j-1].Name > d[j].Name; j-- {
			d[j-1], d[j] = d[j], d[j-1]
		}
	}
}
