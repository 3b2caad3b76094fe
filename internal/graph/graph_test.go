package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, nodes []string, edges [][2]string) *Graph {
	t.Helper()
	g := New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestAddEdge_UnknownNode(t *testing.T) {
	g := New()
	g.AddNode("a")
	assert.Error(t, g.AddEdge("a", "b"))
	assert.Error(t, g.AddEdge("b", "a"))
}

func TestSort_DiamondRounds(t *testing.T) {
	g := build(t,
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
	)

	rounds, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, rounds)
}

func TestSort_TransitiveEdgeDelaysNode(t *testing.T) {
	// a -> b, a -> c, c -> b: b must wait for c even though b also
	// depends directly on a.
	g := build(t,
		[]string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"c", "b"}},
	)

	rounds, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"c"}, {"b"}}, rounds)
}

func TestSort_NoEdgesSingleRound(t *testing.T) {
	g := build(t, []string{"c", "a", "b"}, nil)

	rounds, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, rounds)
}

func TestSort_DeterministicWithinRound(t *testing.T) {
	g := build(t,
		[]string{"z", "m", "a", "root"},
		[][2]string{{"root", "z"}, {"root", "m"}, {"root", "a"}},
	)

	first, err := g.Sort()
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := g.Sort()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, [][]string{{"root"}, {"a", "m", "z"}}, first)
}

func TestSort_CycleYieldsNoPartialOrder(t *testing.T) {
	g := build(t,
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "b"}, {"c", "d"}},
	)

	rounds, err := g.Sort()
	assert.Nil(t, rounds)

	var cyc *CyclicError
	require.ErrorAs(t, err, &cyc)
	// b and c form the cycle; d depends on it and is unsortable too.
	assert.Equal(t, []string{"b", "c", "d"}, cyc.Remaining)
}

func TestLeafNodes(t *testing.T) {
	g := build(t,
		[]string{"a", "b", "c"},
		[][2]string{{"a", "c"}, {"b", "c"}},
	)
	assert.Equal(t, []string{"a", "b"}, g.LeafNodes())
}

func TestPruneNode_InboundEdgesGuard(t *testing.T) {
	g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}})

	assert.Error(t, g.PruneNode("b", false))
	require.NoError(t, g.PruneNode("b", true))

	rounds, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, rounds)
}

func TestCycles_SelfAndMinimal(t *testing.T) {
	g := build(t,
		[]string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"b", "a"}, {"a", "c"}, {"c", "a"}, {"b", "c"}},
	)

	cycles := g.Cycles()
	require.NotEmpty(t, cycles)
	// Shortest first; the 2-cycles come before any 3-cycle.
	assert.Len(t, cycles[0], 2)
}

func TestCycles_SupersetDiscarded(t *testing.T) {
	// b <-> c is the minimal cycle; a -> b -> c -> a revisits both nodes
	// plus a, so any longer cycle containing {b, c} is dropped.
	g := build(t,
		[]string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "b"}, {"c", "a"}},
	)

	cycles := g.Cycles()
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"b", "c"}, cycles[0])
}

func TestCycles_Acyclic(t *testing.T) {
	g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	assert.Empty(t, g.Cycles())
}
