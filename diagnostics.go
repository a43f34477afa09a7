package loom

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/loomkit/loom/internal/graph"
	"github.com/loomkit/loom/internal/reflection"
)

// DiagnoseResolutionFailure explains, without resolving or failing, why a
// type may not resolve: its registration status and the status of every
// constructor dependency, each annotated with a marker.
func (c *Container) DiagnoseResolutionFailure(serviceType reflect.Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resolution diagnosis for %s\n", formatType(serviceType))

	bind := c.lookup(serviceType)
	if bind == nil {
		b.WriteString("  ✗ not registered\n")
		if registered := c.RegisteredTypes(); len(registered) > 0 {
			b.WriteString("\nRegistered types:\n")
			for _, t := range registered {
				fmt.Fprintf(&b, "  - %s\n", formatType(t))
			}
		} else {
			b.WriteString("\nThe container has no registered types.\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "  ✓ registered (%s)\n", bind.lifetime)

	params := bind.ctor.Parameters
	if len(params) == 0 {
		b.WriteString("  no constructor dependencies\n")
		return b.String()
	}

	b.WriteString("  dependencies:\n")
	for _, p := range params {
		switch {
		case p.Kind == reflection.KindPrimitive:
			fmt.Fprintf(&b, "    ✓ %s (primitive)\n", formatType(p.Type))
		case c.IsRegistered(p.Type):
			fmt.Fprintf(&b, "    ✓ %s (registered)\n", formatType(p.Type))
		case p.Kind == reflection.KindOptional:
			fmt.Fprintf(&b, "    ~ %s (optional, not registered)\n", formatType(p.Type))
		default:
			fmt.Fprintf(&b, "    ✗ %s NOT REGISTERED\n", formatType(p.Type))
		}
	}

	return b.String()
}

// DependencyGraph returns, for every registered binding, the names of its
// non-primitive dependencies. Pure static reflection; nothing is
// instantiated.
func (c *Container) DependencyGraph() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]string, len(c.bindings))
	for t, bind := range c.bindings {
		deps := bind.dependencies()
		names := make([]string, len(deps))
		for i, d := range deps {
			names[i] = formatType(d.Type)
		}
		out[formatType(t)] = names
	}
	return out
}

// ValidateHealth audits every binding without resolving anything: mandatory
// dependencies on unregistered types and dependency cycles are reported as
// issues. Returns (true, nil) when the configuration is clean.
func (c *Container) ValidateHealth() (bool, []string) {
	c.mu.RLock()
	bindings := make(map[reflect.Type]*binding, len(c.bindings))
	for t, bind := range c.bindings {
		bindings[t] = bind
	}
	c.mu.RUnlock()

	var issues []string

	for _, t := range c.RegisteredTypes() {
		bind := bindings[t]
		for _, p := range bind.ctor.Parameters {
			if p.Kind != reflection.KindService {
				continue
			}
			if _, ok := bindings[p.Type]; !ok {
				issues = append(issues, fmt.Sprintf("%s depends on %s, which is not registered",
					formatType(t), formatType(p.Type)))
			}
		}
	}

	if err := c.graph.DetectCycles(); err != nil {
		issues = append(issues, err.(*CircularDependencyError).PathString()+" forms a dependency cycle")
	}

	return len(issues) == 0, issues
}

// ResolutionPath returns a static, indentation-formatted trace of how
// serviceType would resolve, without creating anything. Primitive leaves are
// annotated "(primitive)", missing bindings "NOT REGISTERED", and repeated
// path entries "(cycle)".
func (c *Container) ResolutionPath(serviceType reflect.Type) []string {
	var lines []string
	c.tracePath(serviceType, 0, make(map[reflect.Type]bool), false, &lines)
	return lines
}

func (c *Container) tracePath(t reflect.Type, depth int, onPath map[reflect.Type]bool, optional bool, lines *[]string) {
	indent := strings.Repeat("  ", depth)
	name := formatType(t)

	if onPath[t] {
		*lines = append(*lines, indent+name+" (cycle)")
		return
	}

	bind := c.lookup(t)
	if bind == nil {
		if optional {
			*lines = append(*lines, indent+name+" (optional, not registered)")
		} else {
			*lines = append(*lines, indent+name+" NOT REGISTERED")
		}
		return
	}

	*lines = append(*lines, indent+name)

	onPath[t] = true
	for _, p := range bind.ctor.Parameters {
		if p.Kind == reflection.KindPrimitive {
			*lines = append(*lines, strings.Repeat("  ", depth+1)+formatType(p.Type)+" (primitive)")
			continue
		}
		c.tracePath(p.Type, depth+1, onPath, p.Kind == reflection.KindOptional, lines)
	}
	delete(onPath, t)
}

// WriteGraphDOT writes the binding graph in Graphviz DOT format.
func (c *Container) WriteGraphDOT(w io.Writer) error {
	return graph.NewVisualizer(c.graph).WriteDOT(w)
}

// WriteGraphText writes a human-readable dump of the binding graph with
// summary statistics.
func (c *Container) WriteGraphText(w io.Writer) error {
	return graph.NewVisualizer(c.graph).WriteText(w)
}

// WriteGraphAdjacencyList writes the binding graph as one line per node.
func (c *Container) WriteGraphAdjacencyList(w io.Writer) error {
	return graph.NewVisualizer(c.graph).WriteAdjacencyList(w)
}
