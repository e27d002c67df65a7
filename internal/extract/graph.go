package extract

import "sort"

// --- Dependency graph ---

// Edge is one "depends on" relation between modules.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DependencyGraph is a directed graph over the tree's own modules.
// Imports of third-party or standard-library modules are dropped; only
// edges between modules found in the scanned tree appear. Cycles are
// recorded, never rejected, since source trees legitimately contain
// circular imports.
type DependencyGraph struct {
	Nodes  []string   `json:"nodes"`
	Edges  []Edge     `json:"edges"`
	Cycles [][]string `json:"cycles,omitempty"`
}

// BuildGraph assembles the module dependency graph from parsed units.
// Output ordering is lexicographic throughout, keeping extraction
// byte-identical across runs.
func BuildGraph(units []*fileUnit) DependencyGraph {
	nodes := make(map[string]bool)
	for _, u := range units {
		nodes[u.Module] = true
	}

	edgeSet := make(map[Edge]bool)
	for _, u := range units {
		for _, imp := range u.Imports {
			to := resolveModule(imp, nodes)
			if to == "" || to == u.Module {
				continue
			}
			edgeSet[Edge{From: u.Module, To: to}] = true
		}
	}

	g := DependencyGraph{}
	for n := range nodes {
		g.Nodes = append(g.Nodes, n)
	}
	sort.Strings(g.Nodes)
	for e := range edgeSet {
		g.Edges = append(g.Edges, e)
	}
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From != g.Edges[j].From {
			return g.Edges[i].From < g.Edges[j].From
		}
		return g.Edges[i].To < g.Edges[j].To
	})

	g.Cycles = findCycles(g.Nodes, g.Edges)
	return g
}

// resolveModule maps an import path onto a known module identifier.
// Go import paths match on their last segment; Python dotted paths match
// on the longest known prefix.
func resolveModule(imp string, nodes map[string]bool) string {
	if nodes[imp] {
		return imp
	}
	// Go: "github.com/org/proj/internal/store" -> "store".
	if i := lastSlash(imp); i >= 0 {
		if tail := imp[i+1:]; nodes[tail] {
			return tail
		}
	}
	// Python: "pkg.util.io" matches node "pkg.util" or "pkg".
	for mod := imp; ; {
		i := lastDot(mod)
		if i < 0 {
			break
		}
		mod = mod[:i]
		if nodes[mod] {
			return mod
		}
	}
	return ""
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// FanIn returns, per module, how many distinct modules import it.
func (g *DependencyGraph) FanIn() map[string]int {
	counts := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		counts[e.To]++
	}
	return counts
}

// findCycles records strongly connected components with more than one
// node, plus self-loops, as cycles. Components are reported with their
// members sorted and the overall list ordered by first member.
func findCycles(nodes []string, edges []Edge) [][]string {
	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	// Iterative Tarjan SCC.
	index := make(map[string]int, len(nodes))
	lowlink := make(map[string]int, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	var stack []string
	var cycles [][]string
	counter := 0

	type frame struct {
		node string
		next int
	}

	var visit func(start string)
	visit = func(start string) {
		frames := []frame{{node: start}}
		index[start] = counter
		lowlink[start] = counter
		counter++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			v := f.node
			advanced := false
			for f.next < len(adj[v]) {
				w := adj[v][f.next]
				f.next++
				if _, seen := index[w]; !seen {
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{node: w})
					advanced = true
					break
				} else if onStack[w] {
					if index[w] < lowlink[v] {
						lowlink[v] = index[w]
					}
				}
			}
			if advanced {
				continue
			}

			// v is finished: pop an SCC if v is a root.
			if lowlink[v] == index[v] {
				var comp []string
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				if len(comp) > 1 || selfLoop(v, adj) {
					sort.Strings(comp)
					cycles = append(cycles, comp)
				}
			}

			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].node
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}
		}
	}

	for _, n := range nodes {
		if _, seen := index[n]; !seen {
			visit(n)
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

func selfLoop(v string, adj map[string][]string) bool {
	for _, w := range adj[v] {
		if w == v {
			return true
		}
	}
	return false
}
