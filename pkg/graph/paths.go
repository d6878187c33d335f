package graph

import (
	"strings"

	"github.com/dvalderas/flowtree/pkg/flow"
)

// pathConfig holds the defensive enumeration caps. Zero values mean
// unlimited, which matches the behavior the editor relies on for the small
// flows it produces.
type pathConfig struct {
	maxPaths int
	maxDepth int
}

// PathOption configures EnumeratePaths.
type PathOption func(*pathConfig)

// WithMaxPaths caps how many paths are collected before enumeration stops.
func WithMaxPaths(n int) PathOption {
	return func(c *pathConfig) {
		c.maxPaths = n
	}
}

// WithMaxDepth caps the number of nodes a single path may contain.
func WithMaxDepth(n int) PathOption {
	return func(c *pathConfig) {
		c.maxDepth = n
	}
}

// EnumeratePaths lists every simple path from a root to a terminal of the
// flow's graph, deduplicated across (root, terminal) pairs. When a root is
// itself a terminal the single-node path is included.
//
// The enumeration is exponential in the worst case; real flows are small
// human-authored trees, and callers that cannot guarantee that should pass
// WithMaxPaths / WithMaxDepth.
func EnumeratePaths(f *flow.Flow, opts ...PathOption) [][]string {
	var cfg pathConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	g := Build(f.Nodes, f.Edges)
	roots := g.Roots()
	terminals := g.Terminals()

	var paths [][]string
	seen := make(map[string]bool)

	record := func(path []string) bool {
		key := strings.Join(path, "\x1f")
		if seen[key] {
			return true
		}
		seen[key] = true
		paths = append(paths, path)
		return cfg.maxPaths == 0 || len(paths) < cfg.maxPaths
	}

	for _, root := range roots {
		for _, terminal := range terminals {
			if root == terminal {
				if !record([]string{root}) {
					return paths
				}
				continue
			}
			if !g.simplePaths(root, terminal, cfg, record) {
				return paths
			}
		}
	}
	return paths
}

// simplePaths runs a DFS from source to target collecting simple paths.
// It returns false once emit asks to stop.
func (g *Graph) simplePaths(source, target string, cfg pathConfig, emit func([]string) bool) bool {
	if !g.present[source] || !g.present[target] {
		return true
	}

	onPath := map[string]bool{source: true}
	path := []string{source}

	var walk func(id string) bool
	walk = func(id string) bool {
		if cfg.maxDepth > 0 && len(path) >= cfg.maxDepth {
			return true
		}
		for _, next := range g.succ[id] {
			if !g.present[next] || onPath[next] {
				continue
			}
			path = append(path, next)
			if next == target {
				found := make([]string, len(path))
				copy(found, path)
				if !emit(found) {
					return false
				}
			} else {
				onPath[next] = true
				if !walk(next) {
					return false
				}
				delete(onPath, next)
			}
			path = path[:len(path)-1]
		}
		return true
	}

	return walk(source)
}
