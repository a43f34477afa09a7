package graph

import (
	"fmt"
	"io"
	"reflect"
	"strings"
)

// Visualizer renders a Graph for humans: Graphviz DOT, a text summary, or a
// plain adjacency list.
type Visualizer struct {
	graph *Graph
}

// NewVisualizer creates a visualizer over g.
func NewVisualizer(g *Graph) *Visualizer {
	return &Visualizer{graph: g}
}

// WriteDOT writes the graph in Graphviz DOT format.
func (v *Visualizer) WriteDOT(w io.Writer) error {
	nodes := v.graph.Nodes()

	if _, err := fmt.Fprintln(w, "digraph dependencies {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box];")

	ids := make(map[string]string, len(nodes))
	for i, node := range nodes {
		id := fmt.Sprintf("n%d", i)
		ids[node.Type.String()] = id

		color := "lightblue"
		if !node.Registered {
			color = "lightgray" // referenced but never registered
		}
		fmt.Fprintf(w, "  %s [label=%q, fillcolor=%q, style=filled];\n",
			id, typeName(node.Type), color)
	}

	for _, node := range nodes {
		from := ids[node.Type.String()]
		for _, dep := range node.Dependencies {
			fmt.Fprintf(w, "  %s -> %s;\n", from, ids[dep.String()])
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// WriteText writes a human-readable dump: each node with its dependencies
// and dependents, followed by summary statistics.
func (v *Visualizer) WriteText(w io.Writer) error {
	nodes := v.graph.Nodes()

	fmt.Fprintln(w, "Dependency Graph")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)

	for _, node := range nodes {
		status := ""
		if !node.Registered {
			status = "  [NOT REGISTERED]"
		}
		fmt.Fprintf(w, "%s%s\n", typeName(node.Type), status)

		if len(node.Dependencies) > 0 {
			fmt.Fprintf(w, "  depends on: %s\n", joinTypes(node.Dependencies))
		}
		if len(node.Dependents) > 0 {
			fmt.Fprintf(w, "  needed by:  %s\n", joinTypes(node.Dependents))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Statistics")
	fmt.Fprintln(w, "----------")
	fmt.Fprintf(w, "  nodes: %d\n", v.graph.Size())
	fmt.Fprintf(w, "  roots: %d\n", len(v.graph.Roots()))
	fmt.Fprintf(w, "  leaves: %d\n", len(v.graph.Leaves()))

	if v.graph.IsAcyclic() {
		fmt.Fprintln(w, "  cycles: none")
	} else {
		fmt.Fprintln(w, "  cycles: DETECTED")
	}

	return nil
}

// WriteAdjacencyList writes one "T -> [deps]" line per node.
func (v *Visualizer) WriteAdjacencyList(w io.Writer) error {
	for _, node := range v.graph.Nodes() {
		if _, err := fmt.Fprintf(w, "%s -> [%s]\n", typeName(node.Type), joinTypes(node.Dependencies)); err != nil {
			return err
		}
	}
	return nil
}

func joinTypes(types []reflect.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = typeName(t)
	}
	return strings.Join(parts, ", ")
}
