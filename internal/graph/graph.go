// Package graph implements the entity-type dependency scheduler. An edge
// A -> B means A must be merged before B, so B may hold references into A.
package graph

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// CyclicError reports that a sort could not complete. Remaining holds the
// residual node set that participates in (or depends on) at least one cycle;
// no partial order is produced.
type CyclicError struct {
	Remaining []string
}

func (e *CyclicError) Error() string {
	return "graph: cycle detected among nodes: " + strings.Join(e.Remaining, ", ")
}

// Graph is a directed dependency graph over named nodes.
type Graph struct {
	nodes map[string]bool
	out   map[string]map[string]bool
	in    map[string]map[string]bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		out:   make(map[string]map[string]bool),
		in:    make(map[string]map[string]bool),
	}
}

// AddNode registers a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if !g.nodes[name] {
		g.nodes[name] = true
		g.out[name] = make(map[string]bool)
		g.in[name] = make(map[string]bool)
	}
}

// AddEdge records that from must be merged before to. Both endpoints must
// already be registered.
func (g *Graph) AddEdge(from, to string) error {
	if !g.nodes[from] {
		return eris.Errorf("graph: unknown node %q", from)
	}
	if !g.nodes[to] {
		return eris.Errorf("graph: unknown node %q", to)
	}
	g.out[from][to] = true
	g.in[to][from] = true
	return nil
}

// LeafNodes returns all nodes with zero incoming edges, sorted.
func (g *Graph) LeafNodes() []string {
	var leaves []string
	for n := range g.nodes {
		if len(g.in[n]) == 0 {
			leaves = append(leaves, n)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// PruneNode removes a node and its outgoing edges. If other nodes still point
// at it the call fails unless removeBackrefs is set, in which case the inbound
// edges are removed too.
func (g *Graph) PruneNode(name string, removeBackrefs bool) error {
	if !g.nodes[name] {
		return eris.Errorf("graph: unknown node %q", name)
	}
	if len(g.in[name]) > 0 && !removeBackrefs {
		return eris.Errorf("graph: node %q still has inbound edges", name)
	}
	for from := range g.in[name] {
		delete(g.out[from], name)
	}
	for to := range g.out[name] {
		delete(g.in[to], name)
	}
	delete(g.nodes, name)
	delete(g.out, name)
	delete(g.in, name)
	return nil
}

// Sort produces the merge order as rounds of simultaneously-ready leaves
// using repeated leaf stripping (Kahn's algorithm). Nodes within a round are
// sorted so the order is stable across runs for the same graph. A cyclic
// graph yields a *CyclicError carrying the residual unsortable node set and
// no partial order.
func (g *Graph) Sort() ([][]string, error) {
	indeg := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		indeg[n] = len(g.in[n])
	}

	remaining := len(indeg)
	var rounds [][]string
	for remaining > 0 {
		var round []string
		for n, d := range indeg {
			if d == 0 {
				round = append(round, n)
			}
		}
		if len(round) == 0 {
			var residual []string
			for n := range indeg {
				residual = append(residual, n)
			}
			sort.Strings(residual)
			return nil, &CyclicError{Remaining: residual}
		}
		sort.Strings(round)
		for _, n := range round {
			delete(indeg, n)
			for to := range g.out[n] {
				if _, ok := indeg[to]; ok {
					indeg[to]--
				}
			}
		}
		remaining -= len(round)
		rounds = append(rounds, round)
	}
	return rounds, nil
}

// Cycles is a diagnostic walk returning the minimal cycles in the graph,
// shortest first. Cycles whose node set is a superset of an already-found
// shorter cycle are discarded. Intended for the residual set reported by a
// failed Sort; it makes no ordering guarantee beyond shortest-first.
func (g *Graph) Cycles() [][]string {
	var found [][]string
	starts := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		starts = append(starts, n)
	}
	sort.Strings(starts)

	for _, start := range starts {
		g.walk(start, []string{start}, map[string]bool{start: true}, &found)
	}

	sort.SliceStable(found, func(i, j int) bool { return len(found[i]) < len(found[j]) })

	var minimal [][]string
	seen := make(map[string]bool)
	for _, c := range found {
		key := canonicalCycle(c)
		if seen[key] {
			continue
		}
		if supersetOfAny(c, minimal) {
			continue
		}
		seen[key] = true
		minimal = append(minimal, c)
	}
	return minimal
}

func (g *Graph) walk(node string, path []string, onPath map[string]bool, found *[][]string) {
	next := make([]string, 0, len(g.out[node]))
	for to := range g.out[node] {
		next = append(next, to)
	}
	sort.Strings(next)

	for _, to := range next {
		if to == path[0] {
			cycle := make([]string, len(path))
			copy(cycle, path)
			*found = append(*found, cycle)
			continue
		}
		if onPath[to] {
			continue
		}
		onPath[to] = true
		g.walk(to, append(path, to), onPath, found)
		delete(onPath, to)
	}
}

// canonicalCycle rotates the cycle so its smallest node leads, giving one key
// per distinct cycle regardless of discovery start point.
func canonicalCycle(c []string) string {
	min := 0
	for i := range c {
		if c[i] < c[min] {
			min = i
		}
	}
	rotated := append(append([]string{}, c[min:]...), c[:min]...)
	return strings.Join(rotated, "\x00")
}

func supersetOfAny(c []string, minimal [][]string) bool {
	set := make(map[string]bool, len(c))
	for _, n := range c {
		set[n] = true
	}
	for _, m := range minimal {
		if len(m) >= len(c) {
			continue
		}
		all := true
		for _, n := range m {
			if !set[n] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
