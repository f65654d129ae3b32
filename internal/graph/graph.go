// Package graph builds the dependency DAG from a pipeline's explicit
// depends_on edges and implicit upstream-reference edges, detects cycles,
// and produces the topological execution order with document-order
// tie-breaking.
package graph

import (
	"fmt"

	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
	conflowerrors "github.com/alexisbeaulieu97/conflow/pkg/errors"
)

// Node is a vertex in the execution DAG.
type Node struct {
	Name       string
	Stage      *pipeline.Stage
	docIndex   int
	dependsOn  []string // names, in the order edges were added
	dependents []string
}

// Graph is the DAG over a pipeline's stages.
type Graph struct {
	nodes map[string]*Node
	order []string // document order of node names, for tie-breaking
}

// Build constructs the dependency graph for a pipeline. It does not run
// the structural validator (E1, E6); callers should validate first.
// Build itself rejects duplicate stage names (E2) and enforces E3/E5
// (unknown dependency/reference names) and E4 (cycle detection),
// returning the corresponding typed errors.
func Build(p *pipeline.Pipeline) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(p.Stages))}

	for i := range p.Stages {
		s := &p.Stages[i]
		if _, exists := g.nodes[s.Name]; exists {
			return nil, conflowerrors.NewValidationError("stages", fmt.Sprintf("duplicate stage name %q", s.Name), nil)
		}
		g.nodes[s.Name] = &Node{Name: s.Name, Stage: s, docIndex: i}
		g.order = append(g.order, s.Name)
	}

	addEdge := func(from, to string) error {
		fromNode, ok := g.nodes[from]
		if !ok {
			return conflowerrors.NewValidationError("depends_on", fmt.Sprintf("unknown dependency %q", from), nil)
		}
		toNode, ok := g.nodes[to]
		if !ok {
			return conflowerrors.NewValidationError("depends_on", fmt.Sprintf("unknown dependency target %q", to), nil)
		}
		if !containsString(fromNode.dependents, to) {
			fromNode.dependents = append(fromNode.dependents, to)
		}
		if !containsString(toNode.dependsOn, from) {
			toNode.dependsOn = append(toNode.dependsOn, from)
		}
		return nil
	}

	for _, s := range p.Stages {
		for _, dep := range s.DependsOn {
			if err := addEdge(dep, s.Name); err != nil {
				return nil, err
			}
		}
		if ref, ok := s.ReferencesStage(); ok {
			if err := addEdge(ref, s.Name); err != nil {
				return nil, err
			}
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, conflowerrors.NewCircularDependencyError(cycle)
	}

	return g, nil
}

// DependenciesOf returns the names of a stage's immediate predecessors.
func (g *Graph) DependenciesOf(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), n.dependsOn...)
}

// DependentsOf returns the names of a stage's immediate successors.
func (g *Graph) DependentsOf(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), n.dependents...)
}

// Reaches reports whether there is a path b -> ... -> a, i.e. whether b is
// an (transitive) predecessor of a.
func (g *Graph) Reaches(a, b string) bool {
	if a == b {
		return true
	}
	visited := make(map[string]bool)
	var walk func(string) bool
	walk = func(cur string) bool {
		if cur == b {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		n, ok := g.nodes[cur]
		if !ok {
			return false
		}
		for _, dep := range n.dependsOn {
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(a)
}

// TopologicalOrder returns stage names in an order such that every edge
// u -> v has u before v, with ties broken by appearance order in the
// pipeline document (Kahn's algorithm, document-order ready queue).
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		indegree[name] = len(n.dependsOn)
	}

	var ready []string
	for _, name := range g.order {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	var result []string
	for len(ready) > 0 {
		// Pop in document order: ready is itself built by walking g.order,
		// so the first element is always the earliest-appearing ready node.
		next := ready[0]
		ready = ready[1:]
		result = append(result, next)

		for _, dependent := range g.nodes[next].dependents {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertInDocumentOrder(ready, dependent, g.docIndexOf)
			}
		}
	}

	if len(result) != len(g.nodes) {
		cycle := g.findCycle()
		return nil, conflowerrors.NewCircularDependencyError(cycle)
	}

	return result, nil
}

func (g *Graph) docIndexOf(name string) int {
	if n, ok := g.nodes[name]; ok {
		return n.docIndex
	}
	return len(g.order)
}

// insertInDocumentOrder inserts name into a slice kept sorted by document
// index, preserving the ready queue's document-order tie-break contract.
func insertInDocumentOrder(ready []string, name string, index func(string) int) []string {
	pos := len(ready)
	ni := index(name)
	for i, existing := range ready {
		if index(existing) > ni {
			pos = i
			break
		}
	}
	ready = append(ready, "")
	copy(ready[pos+1:], ready[pos:])
	ready[pos] = name
	return ready
}

// findCycle returns the member names of one dependency cycle, or nil if
// the graph is acyclic. Walked in document order for determinism.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var dfs func(string) bool
	dfs = func(name string) bool {
		color[name] = gray
		stack = append(stack, name)

		for _, dependent := range g.nodes[name].dependents {
			switch color[dependent] {
			case white:
				if dfs(dependent) {
					return true
				}
			case gray:
				// Found a back-edge into the current stack; extract the cycle.
				idx := indexOf(stack, dependent)
				cycle = append([]string(nil), stack[idx:]...)
				cycle = append(cycle, dependent)
				return true
			}
		}

		color[name] = black
		stack = stack[:len(stack)-1]
		return false
	}

	for _, name := range g.order {
		if color[name] == white {
			if dfs(name) {
				return cycle
			}
		}
	}
	return nil
}

func indexOf(haystack []string, needle string) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
