// Package dag provides the dependency graph over staging models. Staging
// passthroughs have no edges between them; edges only appear when a model
// references another model, so most graphs here are a single wide level.
package dag

import (
	"fmt"
	"sort"
)

// Node is a graph vertex keyed by model path.
type Node struct {
	ID   string
	Data any
}

// Graph is a directed acyclic graph of model dependencies. Edges point
// from a dependency to its dependents.
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string
	parents  map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// Add inserts or updates a node.
func (g *Graph) Add(id string, data any) {
	if n, ok := g.nodes[id]; ok {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
}

// Depend records that child depends on parent. Both nodes must exist.
func (g *Graph) Depend(parent, child string) error {
	if _, ok := g.nodes[parent]; !ok {
		return fmt.Errorf("unknown node %q", parent)
	}
	if _, ok := g.nodes[child]; !ok {
		return fmt.Errorf("unknown node %q", child)
	}
	if parent == child {
		return fmt.Errorf("node %q cannot depend on itself", parent)
	}
	if !containsStr(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !containsStr(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the dependencies of a node, sorted.
func (g *Graph) Parents(id string) []string {
	return sortedCopy(g.parents[id])
}

// Children returns the dependents of a node, sorted.
func (g *Graph) Children(id string) []string {
	return sortedCopy(g.children[id])
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, c := range g.children {
		n += len(c)
	}
	return n
}

// Sort returns the nodes in topological order using Kahn's algorithm,
// with ties broken alphabetically for deterministic output. Returns a
// CycleError if a cycle prevents completion.
func (g *Graph) Sort() ([]*Node, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.parents[id])
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	result := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		result = append(result, g.nodes[id])

		var unlocked []string
		for _, child := range g.children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				unlocked = append(unlocked, child)
			}
		}
		sort.Strings(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	if len(result) != len(g.nodes) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Members: stuck}
	}
	return result, nil
}

// Levels groups node IDs by dependency depth. All nodes in one level are
// mutually independent and can execute concurrently once the previous
// level finished. Level 0 holds nodes with no dependencies.
func (g *Graph) Levels() ([][]string, error) {
	if _, err := g.Sort(); err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(g.nodes))
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, parent := range g.parents[id] {
			if pd := levelOf(parent) + 1; pd > d {
				d = pd
			}
		}
		depth[id] = d
		return d
	}

	maxDepth := 0
	for id := range g.nodes {
		if d := levelOf(id); d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for id, d := range depth {
		levels[d] = append(levels[d], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	if len(g.nodes) == 0 {
		return nil, nil
	}
	return levels, nil
}

// Downstream returns the given nodes plus everything that transitively
// depends on them, sorted.
func (g *Graph) Downstream(ids []string) []string {
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, child := range g.children[id] {
			walk(child)
		}
	}
	for _, id := range ids {
		if _, ok := g.nodes[id]; ok {
			walk(id)
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Subgraph returns a new graph restricted to the given IDs, keeping only
// edges between included nodes.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := New()
	included := make(map[string]bool, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			included[id] = true
			sub.Add(id, n.Data)
		}
	}
	for id := range included {
		for _, child := range g.children[id] {
			if included[child] {
				_ = sub.Depend(id, child)
			}
		}
	}
	return sub
}

// Roots returns nodes with no dependencies, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// CycleError reports the nodes involved in a dependency cycle.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving: %v", e.Members)
}

func containsStr(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

// mergeSorted merges two sorted string slices.
func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
