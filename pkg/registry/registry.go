// Package registry is the process-wide home for generated tool and prompt
// handlers. Generated code registers into it from init(); pkg/server reads
// from it to build ToolsProvider/PromptsProvider implementations without
// importing the packages that define the handlers.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler is implemented by generated per-function dispatchers. Call
// validates and deserializes args into the function's parameter envelope,
// dispatches to the target function, and returns its result.
type Handler interface {
	Call(ctx context.Context, args json.RawMessage) (interface{}, error)
}

// Descriptor is the registry-time metadata for one registered function,
// mirroring the PromptHelper/ToolHelper descriptor generated code builds
// from the annotated function's reflected signature.
type Descriptor struct {
	Name       string
	Handler    Handler
	Parameters []Parameter
}

// Parameter describes one formal parameter of an annotated function, in
// source declaration order.
type Parameter struct {
	Name       string
	Type       string
	IsNullable bool
	HasDefault bool
}

// Required reports whether the parameter must be present in every call:
// true iff it has no default and is not nullable.
func (p Parameter) Required() bool {
	return !p.IsNullable && !p.HasDefault
}

type namespace struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
	started bool
}

func newNamespace() *namespace {
	return &namespace{entries: make(map[string]Descriptor)}
}

func (n *namespace) register(d Descriptor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		panic(fmt.Sprintf("registry: cannot register %q after Start", d.Name))
	}
	if _, exists := n.entries[d.Name]; exists {
		panic(fmt.Sprintf("registry: duplicate name %q", d.Name))
	}
	n.entries[d.Name] = d
}

func (n *namespace) get(name string) (Descriptor, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	d, ok := n.entries[name]
	return d, ok
}

func (n *namespace) list() []Descriptor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Descriptor, 0, len(n.entries))
	for _, d := range n.entries {
		out = append(out, d)
	}
	return out
}

func (n *namespace) start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = true
}

// Registry holds the two disjoint namespaces spec.md §3 requires: prompts
// and tools. Entries are created once at process init (by generated
// init() functions calling RegisterTool/RegisterPrompt on the package-level
// default Registry) and never mutated after Start.
type Registry struct {
	tools   *namespace
	prompts *namespace
}

// New returns an empty Registry. Most programs use the package-level
// Default rather than constructing their own, since generated code
// registers against Default.
func New() *Registry {
	return &Registry{tools: newNamespace(), prompts: newNamespace()}
}

// RegisterTool adds a tool descriptor. Panics on a duplicate name or a
// registration attempted after Start — both are build-time/startup
// programmer errors, not runtime conditions callers should handle.
func (r *Registry) RegisterTool(d Descriptor) { r.tools.register(d) }

// RegisterPrompt adds a prompt descriptor, same semantics as RegisterTool.
func (r *Registry) RegisterPrompt(d Descriptor) { r.prompts.register(d) }

func (r *Registry) Tool(name string) (Descriptor, bool)   { return r.tools.get(name) }
func (r *Registry) Prompt(name string) (Descriptor, bool) { return r.prompts.get(name) }

func (r *Registry) Tools() []Descriptor   { return r.tools.list() }
func (r *Registry) Prompts() []Descriptor { return r.prompts.list() }

// Start freezes both namespaces; subsequent RegisterTool/RegisterPrompt
// calls panic. Call once, after every generated init() has run and before
// serving traffic.
func (r *Registry) Start() {
	r.tools.start()
	r.prompts.start()
}

// Default is the registry generated init() functions register into.
var Default = New()

func RegisterTool(d Descriptor)   { Default.RegisterTool(d) }
func RegisterPrompt(d Descriptor) { Default.RegisterPrompt(d) }
