// Package schema provides inheritance graph analysis for model population order
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// InheritanceGraph represents the base-class dependency graph between models
type InheritanceGraph struct {
	nodes map[string]*Model
	edges map[string][]string // model -> bases
}

// NewInheritanceGraph creates a new inheritance graph keyed by fully-qualified name
func NewInheritanceGraph(models []*Model) *InheritanceGraph {
	graph := &InheritanceGraph{
		nodes: make(map[string]*Model, len(models)),
		edges: make(map[string][]string),
	}

	for _, model := range models {
		graph.nodes[model.Fullname()] = model
		for _, base := range model.Bases {
			graph.edges[model.Fullname()] = append(graph.edges[model.Fullname()], base.Fullname())
		}
	}

	return graph
}

// sortedNodes returns node names in a stable order
func (g *InheritanceGraph) sortedNodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectCycles detects circular inheritance in the graph
func (g *InheritanceGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				if dfs(neighbor, path) {
					return true
				}
			} else if recursionStack[neighbor] {
				cycleStart := -1
				for i, n := range path {
					if n == neighbor {
						cycleStart = i
						break
					}
				}
				if cycleStart >= 0 {
					cycle := make([]string, len(path)-cycleStart)
					copy(cycle, path[cycleStart:])
					cycles = append(cycles, cycle)
				}
				return true
			}
		}

		recursionStack[node] = false
		return false
	}

	for _, node := range g.sortedNodes() {
		if !visited[node] {
			dfs(node, []string{})
		}
	}

	return cycles
}

// TopologicalSort returns models with every base before its subclasses
func (g *InheritanceGraph) TopologicalSort() ([]*Model, error) {
	// Use out-degree: models with no bases come first
	outDegree := make(map[string]int)
	for node := range g.nodes {
		outDegree[node] = len(g.edges[node])
	}

	reverseEdges := make(map[string][]string)
	for source, targets := range g.edges {
		for _, target := range targets {
			reverseEdges[target] = append(reverseEdges[target], source)
		}
	}
	for _, dependents := range reverseEdges {
		sort.Strings(dependents)
	}

	queue := []string{}
	for _, node := range g.sortedNodes() {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]*Model, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, g.nodes[node])

		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		cycles := g.DetectCycles()
		if len(cycles) > 0 {
			return nil, fmt.Errorf("circular inheritance detected: %s", formatCycles(cycles))
		}
		return nil, fmt.Errorf("circular inheritance detected")
	}

	return result, nil
}

// formatCycles formats cycle information for error messages
func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}
