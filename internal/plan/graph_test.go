package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNodes(g *Graph, ids ...string) {
	for _, id := range ids {
		g.Add(&Node{ID: id})
	}
}

func TestAddEdge(t *testing.T) {
	g := New()
	addNodes(g, "a", "b")

	require.NoError(t, g.AddEdge("a", "b"))
	assert.Contains(t, g.Nodes["b"].Deps, "a")
	assert.Contains(t, g.Nodes["a"].Dependents, "b")

	assert.Error(t, g.AddEdge("a", "a"))
	assert.Error(t, g.AddEdge("dne", "a"))
	assert.Error(t, g.AddEdge("a", "dne"))
}

func TestDetectCycles(t *testing.T) {
	t.Run("acyclic", func(t *testing.T) {
		g := New()
		addNodes(g, "a", "b", "c")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("cyclic", func(t *testing.T) {
		g := New()
		addNodes(g, "a", "b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))
		err := g.DetectCycles()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle detected")
	})
}

func TestTopoLevels(t *testing.T) {
	g := New()
	addNodes(g, "imp", "tok", "pos", "exp")
	require.NoError(t, g.AddEdge("imp", "tok"))
	require.NoError(t, g.AddEdge("tok", "pos"))
	require.NoError(t, g.AddEdge("tok", "exp"))
	require.NoError(t, g.AddEdge("pos", "exp"))

	levels := g.TopoLevels()
	require.Len(t, levels, 4)
	assert.Equal(t, []string{"imp"}, levels[0])
	assert.Equal(t, []string{"tok"}, levels[1])
	assert.Equal(t, []string{"pos"}, levels[2])
	assert.Equal(t, []string{"exp"}, levels[3])
}

func TestInitCountersSkipsPruned(t *testing.T) {
	g := New()
	addNodes(g, "a", "b", "c")
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "c"))

	g.Nodes["a"].SetState(Pruned)
	g.Nodes["c"].InitCounters()
	assert.Equal(t, int32(1), g.Nodes["c"].DepCount())
}

func TestFailOnceRunsCallbackOnce(t *testing.T) {
	n := &Node{ID: "x"}
	calls := 0
	n.FailOnce(assert.AnError, func() { calls++ })
	n.FailOnce(assert.AnError, func() { calls++ })
	assert.Equal(t, 1, calls)
	assert.Equal(t, Failed, n.State())
}
