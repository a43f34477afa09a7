// Package graph maintains the static dependency graph between registered
// service types. It provides path-sensitive cycle detection, topological
// sorting, and the traversals behind the container's diagnostics.
package graph

import (
	"reflect"
	"sort"
	"sync"
)

// Node is one service type in the graph together with its direct
// dependencies and dependents.
type Node struct {
	Type         reflect.Type
	Registered   bool // false for types only referenced as dependencies
	Dependencies []reflect.Type
	Dependents   []reflect.Type
}

// Graph is the dependency graph over registered service types. Nodes are
// keyed by type; edges point from a service to the services it depends on.
type Graph struct {
	mu    sync.RWMutex
	nodes map[reflect.Type]*Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[reflect.Type]*Node)}
}

// Add inserts or replaces the node for serviceType with the given mandatory
// dependencies. Dependency-only placeholder nodes are created as needed.
// Replacing a node rewires its edges; this mirrors binding overwrite
// semantics in the container.
func (g *Graph) Add(serviceType reflect.Type, deps []reflect.Type) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node := g.ensureNode(serviceType)
	node.Registered = true

	// Detach old edges before rewiring.
	for _, old := range node.Dependencies {
		if dep, ok := g.nodes[old]; ok {
			dep.Dependents = removeType(dep.Dependents, serviceType)
		}
	}

	node.Dependencies = make([]reflect.Type, len(deps))
	copy(node.Dependencies, deps)

	for _, d := range deps {
		dep := g.ensureNode(d)
		dep.Dependents = append(dep.Dependents, serviceType)
	}
}

// Remove deletes the node for serviceType and every edge touching it.
func (g *Graph) Remove(serviceType reflect.Type) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[serviceType]
	if !ok {
		return
	}

	for _, d := range node.Dependencies {
		if dep, ok := g.nodes[d]; ok {
			dep.Dependents = removeType(dep.Dependents, serviceType)
		}
	}
	for _, d := range node.Dependents {
		if dep, ok := g.nodes[d]; ok {
			dep.Dependencies = removeType(dep.Dependencies, serviceType)
		}
	}

	delete(g.nodes, serviceType)

	// Drop placeholders nothing references anymore.
	for t, n := range g.nodes {
		if !n.Registered && len(n.Dependents) == 0 {
			delete(g.nodes, t)
		}
	}
}

// Demote clears serviceType's outgoing edges and marks it unregistered,
// keeping edges from its dependents intact. Used to restore a placeholder
// after a rejected registration.
func (g *Graph) Demote(serviceType reflect.Type) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[serviceType]
	if !ok {
		return
	}

	for _, old := range node.Dependencies {
		if dep, ok := g.nodes[old]; ok {
			dep.Dependents = removeType(dep.Dependents, serviceType)
		}
	}
	node.Dependencies = nil
	node.Registered = false

	for t, n := range g.nodes {
		if !n.Registered && len(n.Dependents) == 0 {
			delete(g.nodes, t)
		}
	}
}

// Has reports whether serviceType has a registered node.
func (g *Graph) Has(serviceType reflect.Type) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[serviceType]
	return ok && node.Registered
}

// Dependencies returns the direct dependencies of serviceType.
func (g *Graph) Dependencies(serviceType reflect.Type) []reflect.Type {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[serviceType]
	if !ok {
		return nil
	}
	out := make([]reflect.Type, len(node.Dependencies))
	copy(out, node.Dependencies)
	return out
}

// Dependents returns the services that directly depend on serviceType.
func (g *Graph) Dependents(serviceType reflect.Type) []reflect.Type {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[serviceType]
	if !ok {
		return nil
	}
	out := make([]reflect.Type, len(node.Dependents))
	copy(out, node.Dependents)
	return out
}

// Nodes returns every node, sorted by type name for deterministic output.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Type.String() < out[j].Type.String()
	})
	return out
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// DetectCycle searches for a dependency cycle reachable from start. The
// traversal carries the set of types on the current path, so a diamond
// (A→B→D, A→C→D) is not reported as a cycle. Returns nil when acyclic.
func (g *Graph) DetectCycle(start reflect.Type) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	path := make([]reflect.Type, 0, 8)
	onPath := make(map[reflect.Type]bool)
	return g.walk(start, path, onPath)
}

// DetectCycles checks the whole graph and returns the first cycle found.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	types := make([]reflect.Type, 0, len(g.nodes))
	for t := range g.nodes {
		types = append(types, t)
	}
	g.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })

	for _, t := range types {
		if err := g.DetectCycle(t); err != nil {
			return err
		}
	}
	return nil
}

// IsAcyclic reports whether the graph contains no cycles.
func (g *Graph) IsAcyclic() bool {
	return g.DetectCycles() == nil
}

func (g *Graph) walk(current reflect.Type, path []reflect.Type, onPath map[reflect.Type]bool) error {
	if onPath[current] {
		return &CircularDependencyError{Path: append(clonePath(path, current), current)}
	}

	node, ok := g.nodes[current]
	if !ok {
		return nil
	}

	path = append(path, current)
	onPath[current] = true
	defer func() {
		onPath[current] = false
	}()

	for _, dep := range node.Dependencies {
		if err := g.walk(dep, path, onPath); err != nil {
			return err
		}
	}

	return nil
}

// clonePath trims the recorded path to the portion that forms the cycle,
// starting at the first occurrence of the repeated node.
func clonePath(path []reflect.Type, repeated reflect.Type) []reflect.Type {
	start := 0
	for i, t := range path {
		if t == repeated {
			start = i
			break
		}
	}
	out := make([]reflect.Type, len(path)-start)
	copy(out, path[start:])
	return out
}

// TopologicalSort returns registered nodes in dependency order, dependencies
// first, using Kahn's algorithm. Fails when the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	inDegree := make(map[reflect.Type]int, len(g.nodes))
	for t, n := range g.nodes {
		// In-degree counts unresolved dependencies, so leaves come out first.
		inDegree[t] = len(n.Dependencies)
	}

	queue := make([]reflect.Type, 0, len(g.nodes))
	for t, d := range inDegree {
		if d == 0 {
			queue = append(queue, t)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].String() < queue[j].String() })

	result := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.nodes[current]
		result = append(result, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	return result, nil
}

// Roots returns nodes nothing depends on.
func (g *Graph) Roots() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Node, 0)
	for _, n := range g.nodes {
		if len(n.Dependents) == 0 {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type.String() < out[j].Type.String() })
	return out
}

// Leaves returns nodes with no dependencies.
func (g *Graph) Leaves() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Node, 0)
	for _, n := range g.nodes {
		if len(n.Dependencies) == 0 {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type.String() < out[j].Type.String() })
	return out
}

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[reflect.Type]*Node)
}

func (g *Graph) ensureNode(t reflect.Type) *Node {
	node, ok := g.nodes[t]
	if !ok {
		node = &Node{Type: t}
		g.nodes[t] = node
	}
	return node
}

func removeType(list []reflect.Type, t reflect.Type) []reflect.Type {
	out := list[:0]
	for _, x := range list {
		if x != t {
			out = append(out, x)
		}
	}
	return out
}
