// Package graph builds directed-graph views of a flow and answers the
// topology questions validation needs: roots, terminals, cycles and
// root-to-terminal path enumeration.
package graph

import (
	"github.com/dvalderas/flowtree/pkg/flow"
)

// Graph is a directed graph over node ids. Vertex and adjacency order
// follow insertion order so that every query is deterministic.
//
// Edges whose endpoints do not exist as vertices are admitted: they count
// toward the degrees of the endpoints that do exist, so the validator can
// report the dangling reference instead of having it silently vanish.
type Graph struct {
	order   []string
	present map[string]bool
	succ    map[string][]string
	indeg   map[string]int
	outdeg  map[string]int
}

// Build creates a graph from node and edge lists. Nodes without an id are
// skipped (the validator reports them); edges are added whenever both
// endpoint ids are non-empty, even if no matching vertex exists.
func Build(nodes []flow.Node, edges []flow.Edge) *Graph {
	g := &Graph{
		present: make(map[string]bool),
		succ:    make(map[string][]string),
		indeg:   make(map[string]int),
		outdeg:  make(map[string]int),
	}

	for i := range nodes {
		g.addVertex(nodes[i].ID)
	}

	for i := range edges {
		source := edges[i].Source
		target := edges[i].Target
		if source == "" || target == "" {
			continue
		}
		g.succ[source] = append(g.succ[source], target)
		if g.present[source] {
			g.outdeg[source]++
		}
		if g.present[target] {
			g.indeg[target]++
		}
	}

	return g
}

func (g *Graph) addVertex(id string) {
	if id == "" || g.present[id] {
		return
	}
	g.present[id] = true
	g.order = append(g.order, id)
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.order)
}

// Has reports whether id exists as a vertex.
func (g *Graph) Has(id string) bool {
	return g.present[id]
}

// Successors returns the ordered outgoing targets of id, including targets
// that are not vertices.
func (g *Graph) Successors(id string) []string {
	return g.succ[id]
}

// Roots returns the vertices without incoming edges, in insertion order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if g.indeg[id] == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Terminals returns the vertices without outgoing edges, in insertion order.
func (g *Graph) Terminals() []string {
	var terminals []string
	for _, id := range g.order {
		if g.outdeg[id] == 0 {
			terminals = append(terminals, id)
		}
	}
	return terminals
}

// DFS colors for cycle detection.
const (
	colorWhite = iota
	colorGray
	colorBlack
)

// FindCycle returns the ordered node sequence of one cycle, or nil when the
// graph is acyclic. A self-loop yields a single-element sequence. The search
// visits vertices and successors in insertion order, so the reported cycle
// is stable for a given flow.
func (g *Graph) FindCycle() []string {
	color := make(map[string]int, len(g.order))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = colorGray
		stack = append(stack, id)

		for _, next := range g.succ[id] {
			if !g.present[next] {
				// Dangling target, cannot close a cycle.
				continue
			}
			switch color[next] {
			case colorGray:
				// Back edge: the cycle runs from next to the top of the stack.
				for i, candidate := range stack {
					if candidate == next {
						cycle := make([]string, len(stack)-i)
						copy(cycle, stack[i:])
						return cycle
					}
				}
			case colorWhite:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = colorBlack
		return nil
	}

	for _, id := range g.order {
		if color[id] == colorWhite {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
