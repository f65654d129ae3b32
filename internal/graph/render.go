package graph

import (
	"fmt"
	"sort"
	"strings"
)

// RenderList renders the graph as a numbered, topologically-ordered
// dependency listing, one stage per line followed by its immediate
// dependencies.
func (g *Graph) RenderList() string {
	order, err := g.TopologicalOrder()
	if err != nil {
		order = g.order
	}

	var b strings.Builder
	for i, name := range order {
		n := g.nodes[name]
		if len(n.dependsOn) == 0 {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
			continue
		}
		deps := append([]string(nil), n.dependsOn...)
		sort.Strings(deps)
		fmt.Fprintf(&b, "%d. %s <- %s\n", i+1, name, strings.Join(deps, ", "))
	}
	return b.String()
}

// RenderDOT renders the graph as a Graphviz DOT digraph.
func (g *Graph) RenderDOT() string {
	var b strings.Builder
	b.WriteString("digraph conflow {\n")
	b.WriteString("  rankdir=LR;\n")
	for _, name := range g.order {
		fmt.Fprintf(&b, "  %q [label=%q];\n", name, fmt.Sprintf("%s (%s)", name, g.nodes[name].Stage.ToolName()))
	}
	for _, name := range g.order {
		n := g.nodes[name]
		deps := append([]string(nil), n.dependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			fmt.Fprintf(&b, "  %q -> %q;\n", dep, name)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderMermaid renders the graph as a Mermaid flowchart definition.
func (g *Graph) RenderMermaid() string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	for _, name := range g.order {
		n := g.nodes[name]
		deps := append([]string(nil), n.dependsOn...)
		sort.Strings(deps)
		if len(deps) == 0 {
			fmt.Fprintf(&b, "  %s[%s]\n", sanitizeID(name), name)
			continue
		}
		for _, dep := range deps {
			fmt.Fprintf(&b, "  %s[%s] --> %s[%s]\n", sanitizeID(dep), dep, sanitizeID(name), name)
		}
	}
	return b.String()
}

func sanitizeID(name string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}
