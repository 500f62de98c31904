package orchestrator

import (
	"fmt"
	"strings"

	"github.com/aescanero/dagrun/pkg/domain"
)

var defaultValidator = NewValidator()

// Graph is a validated, layered dependency graph
type Graph struct {
	nodes map[string]*domain.NodeSpec
	order []string
	deps  map[string][]string
	// layers[k] holds nodes whose dependencies all lie in layers < k
	layers [][]string
}

// BuildGraph validates spec and computes its layers.
// Explicit edges and input references both create dependencies.
func BuildGraph(spec *domain.GraphSpec) (*Graph, error) {
	if err := defaultValidator.Validate(spec); err != nil {
		return nil, err
	}

	g := &Graph{
		nodes: make(map[string]*domain.NodeSpec, len(spec.Nodes)),
		order: make([]string, 0, len(spec.Nodes)),
		deps:  make(map[string][]string, len(spec.Nodes)),
	}

	for i := range spec.Nodes {
		node := &spec.Nodes[i]
		g.nodes[node.ID] = node
		g.order = append(g.order, node.ID)
	}

	seen := make(map[[2]string]bool)
	addDep := func(source, target string) {
		key := [2]string{source, target}
		if seen[key] {
			return
		}
		seen[key] = true
		g.deps[target] = append(g.deps[target], source)
	}

	for _, edge := range spec.Edges {
		addDep(edge.Source, edge.Target)
	}
	for _, id := range g.order {
		for _, input := range g.nodes[id].Inputs {
			for _, ref := range input.References() {
				addDep(ref.Node, id)
			}
		}
	}

	if err := g.buildLayers(); err != nil {
		return nil, err
	}

	return g, nil
}

// buildLayers groups nodes by repeated removal of zero in-degree nodes
func (g *Graph) buildLayers() error {
	inDegree := make(map[string]int, len(g.order))
	dependents := make(map[string][]string, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.deps[id])
		for _, dep := range g.deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var current []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	placed := 0
	for len(current) > 0 {
		g.layers = append(g.layers, current)
		placed += len(current)

		ready := make(map[string]bool)
		for _, id := range current {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					ready[dependent] = true
				}
			}
		}

		// Keep declaration order inside a layer
		var next []string
		for _, id := range g.order {
			if ready[id] {
				next = append(next, id)
			}
		}
		current = next
	}

	if placed < len(g.order) {
		var cyclic []string
		for _, id := range g.order {
			if inDegree[id] > 0 {
				cyclic = append(cyclic, id)
			}
		}
		return &domain.ValidationError{
			Kind:    domain.KindCycleDetected,
			NodeID:  cyclic[0],
			Message: fmt.Sprintf("execution graph must be a DAG; nodes on or behind a cycle: %s", strings.Join(cyclic, ", ")),
		}
	}

	return nil
}

// Layers returns the execution layers in dependency order
func (g *Graph) Layers() [][]string {
	return g.layers
}

// Node returns the spec of a node
func (g *Graph) Node(id string) (*domain.NodeSpec, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Dependencies returns the direct dependencies of a node
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// NodeIDs returns node ids in declaration order
func (g *Graph) NodeIDs() []string {
	return g.order
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.order)
}
