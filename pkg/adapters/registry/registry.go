// Package registry provides the immutable name-keyed registry of agents and tools.
package registry

import (
	"fmt"
	"sort"

	"github.com/aescanero/dagrun/pkg/ports"
)

// Registry maps names to agents and tools. It is built once and never modified.
type Registry struct {
	agents map[string]ports.Agent
	tools  map[string]ports.Tool
}

// Builder collects agents and tools before a Registry is built
type Builder struct {
	agents map[string]ports.Agent
	tools  map[string]ports.Tool
	err    error
}

// NewBuilder creates an empty registry builder
func NewBuilder() *Builder {
	return &Builder{
		agents: make(map[string]ports.Agent),
		tools:  make(map[string]ports.Tool),
	}
}

// WithAgents registers agents under their names
func (b *Builder) WithAgents(agents ...ports.Agent) *Builder {
	for _, a := range agents {
		if b.err != nil {
			return b
		}
		switch name := a.Name(); {
		case name == "":
			b.err = fmt.Errorf("agent name is required")
		case b.agents[name] != nil:
			b.err = fmt.Errorf("duplicate agent: %s", name)
		default:
			b.agents[name] = a
		}
	}
	return b
}

// WithTools registers tools under their names
func (b *Builder) WithTools(tools ...ports.Tool) *Builder {
	for _, t := range tools {
		if b.err != nil {
			return b
		}
		switch name := t.Name(); {
		case name == "":
			b.err = fmt.Errorf("tool name is required")
		case b.tools[name] != nil:
			b.err = fmt.Errorf("duplicate tool: %s", name)
		default:
			b.tools[name] = t
		}
	}
	return b
}

// Build returns the registry or the first registration error
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", b.err)
	}

	r := &Registry{
		agents: make(map[string]ports.Agent, len(b.agents)),
		tools:  make(map[string]ports.Tool, len(b.tools)),
	}
	for name, a := range b.agents {
		r.agents[name] = a
	}
	for name, t := range b.tools {
		r.tools[name] = t
	}
	return r, nil
}

// Agent looks up an agent by name
func (r *Registry) Agent(name string) (ports.Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// Tool looks up a tool by name
func (r *Registry) Tool(name string) (ports.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// AgentNames lists registered agent names
func (r *Registry) AgentNames() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
