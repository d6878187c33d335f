package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvalderas/flowtree/pkg/flow"
)

func nodes(ids ...string) []flow.Node {
	out := make([]flow.Node, len(ids))
	for i, id := range ids {
		out[i] = flow.Node{ID: id}
	}
	return out
}

func edge(source, target string) flow.Edge {
	return flow.Edge{Source: source, Target: target}
}

func TestBuildRootsAndTerminals(t *testing.T) {
	g := Build(
		nodes("start", "q1", "end", "end2"),
		[]flow.Edge{edge("start", "q1"), edge("q1", "end"), edge("q1", "end2")},
	)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"start"}, g.Roots())
	assert.Equal(t, []string{"end", "end2"}, g.Terminals())
	assert.Equal(t, []string{"end", "end2"}, g.Successors("q1"))
}

func TestBuildSkipsNodesWithoutID(t *testing.T) {
	g := Build([]flow.Node{{ID: "a"}, {}}, nil)

	assert.Equal(t, 1, g.Len())
	assert.True(t, g.Has("a"))
}

func TestBuildDanglingEdgeDoesNotCreateVertex(t *testing.T) {
	g := Build(nodes("a"), []flow.Edge{edge("a", "ghost")})

	assert.False(t, g.Has("ghost"))
	// The dangling edge still counts as outgoing for the present source,
	// so "a" is not a terminal.
	assert.Empty(t, g.Terminals())
	assert.Equal(t, []string{"a"}, g.Roots())
}

func TestFindCycle(t *testing.T) {
	g := Build(
		nodes("a", "b", "c"),
		[]flow.Edge{edge("a", "b"), edge("b", "c"), edge("c", "b")},
	)

	assert.Equal(t, []string{"b", "c"}, g.FindCycle())
}

func TestFindCycleSelfLoop(t *testing.T) {
	g := Build(nodes("a"), []flow.Edge{edge("a", "a")})

	assert.Equal(t, []string{"a"}, g.FindCycle())
}

func TestFindCycleAcyclic(t *testing.T) {
	g := Build(
		nodes("a", "b", "c"),
		[]flow.Edge{edge("a", "b"), edge("a", "c"), edge("b", "c")},
	)

	assert.Nil(t, g.FindCycle())
}

func TestEnumeratePaths(t *testing.T) {
	f := &flow.Flow{
		Nodes: nodes("start", "q1", "end", "end2"),
		Edges: []flow.Edge{edge("start", "q1"), edge("q1", "end"), edge("q1", "end2")},
	}

	paths := EnumeratePaths(f)

	require.Len(t, paths, 2)
	assert.Equal(t, []string{"start", "q1", "end"}, paths[0])
	assert.Equal(t, []string{"start", "q1", "end2"}, paths[1])
}

func TestEnumeratePathsIsolatedNode(t *testing.T) {
	// An isolated node is both a root and a terminal: one single-node path.
	f := &flow.Flow{Nodes: nodes("solo")}

	paths := EnumeratePaths(f)

	require.Len(t, paths, 1)
	assert.Equal(t, []string{"solo"}, paths[0])
}

func TestEnumeratePathsDiamondDedupe(t *testing.T) {
	// Two branches that rejoin produce two distinct paths, each reported once.
	f := &flow.Flow{
		Nodes: nodes("a", "b", "c", "d"),
		Edges: []flow.Edge{edge("a", "b"), edge("a", "c"), edge("b", "d"), edge("c", "d")},
	}

	paths := EnumeratePaths(f)

	require.Len(t, paths, 2)
	assert.Equal(t, []string{"a", "b", "d"}, paths[0])
	assert.Equal(t, []string{"a", "c", "d"}, paths[1])
}

func TestEnumeratePathsMaxPaths(t *testing.T) {
	f := &flow.Flow{
		Nodes: nodes("a", "b", "c", "d"),
		Edges: []flow.Edge{edge("a", "b"), edge("a", "c"), edge("b", "d"), edge("c", "d")},
	}

	paths := EnumeratePaths(f, WithMaxPaths(1))

	assert.Len(t, paths, 1)
}

func TestEnumeratePathsMaxDepth(t *testing.T) {
	f := &flow.Flow{
		Nodes: nodes("a", "b", "c"),
		Edges: []flow.Edge{edge("a", "b"), edge("b", "c")},
	}

	// A depth cap of 2 cannot reach the terminal three nodes away.
	assert.Empty(t, EnumeratePaths(f, WithMaxDepth(2)))
	assert.Len(t, EnumeratePaths(f, WithMaxDepth(3)), 1)
}

func TestEnumeratePathsSkipsCycleBranches(t *testing.T) {
	// The b<->c loop cannot appear twice on a simple path; enumeration
	// still terminates and finds the acyclic route.
	f := &flow.Flow{
		Nodes: nodes("a", "b", "c", "d"),
		Edges: []flow.Edge{edge("a", "b"), edge("b", "c"), edge("c", "b"), edge("b", "d")},
	}

	paths := EnumeratePaths(f)

	require.Len(t, paths, 1)
	assert.Equal(t, []string{"a", "b", "d"}, paths[0])
}
