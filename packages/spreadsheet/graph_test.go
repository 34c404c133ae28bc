package spreadsheet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func addCell(dg *DependencyGraph, col, row int) VertexID {
	return dg.AddVertex(newCellVertex(VertexFormula, SimpleCellAddress{Sheet: 1, Col: col, Row: row}))
}

func TestDependencyGraphEdges(t *testing.T) {
	dg := NewDependencyGraph()
	a := addCell(dg, 0, 0)
	b := addCell(dg, 0, 1)
	c := addCell(dg, 0, 2)

	require.NoError(t, dg.AddEdge(a, b))
	require.NoError(t, dg.AddEdge(b, c))
	require.NoError(t, dg.AddEdge(a, b), "adding an existing edge is a no-op")
	require.Equal(t, 2, dg.EdgeCount())
	require.Equal(t, []VertexID{b}, dg.Dependents(a))
	require.Equal(t, []VertexID{b}, dg.Dependencies(c))

	t.Run("CycleRefused", func(t *testing.T) {
		err := dg.AddEdge(c, a)
		require.ErrorIs(t, err, ErrCircularDependency)
		require.False(t, dg.HasEdge(c, a))

		err = dg.AddEdge(a, a)
		require.ErrorIs(t, err, ErrCircularDependency)
	})

	t.Run("LinkSkipsReachability", func(t *testing.T) {
		require.NoError(t, dg.Link(c, a))
		require.True(t, dg.HasEdge(c, a))
		require.ErrorIs(t, dg.Link(b, b), ErrCircularDependency)
		dg.RemoveEdge(c, a)
		require.False(t, dg.HasEdge(c, a))
	})

	t.Run("UnknownVertex", func(t *testing.T) {
		err := dg.AddEdge(a, 999)
		require.ErrorIs(t, err, ErrNodeNotFound)
		var appErr *AppError
		require.True(t, errors.As(err, &appErr))
		require.Equal(t, NotFound, appErr.Code)
		require.ErrorIs(t, dg.RemoveVertex(999), ErrNodeNotFound)
	})

	t.Run("RemoveVertexDropsEdges", func(t *testing.T) {
		require.NoError(t, dg.RemoveVertex(b))
		require.Empty(t, dg.Dependents(a))
		require.Empty(t, dg.Dependencies(c))
		require.Equal(t, 2, dg.NodeCount())
		require.Equal(t, 0, dg.EdgeCount())
	})
}

func TestDependencyGraphClearDependencies(t *testing.T) {
	dg := NewDependencyGraph()
	a := addCell(dg, 0, 0)
	b := addCell(dg, 1, 0)
	c := addCell(dg, 2, 0)
	require.NoError(t, dg.AddEdge(a, c))
	require.NoError(t, dg.AddEdge(b, c))

	require.Equal(t, []VertexID{a, b}, dg.ClearDependencies(c))
	require.False(t, dg.HasDependents(a))
	require.False(t, dg.HasDependents(b))
	require.Empty(t, dg.ClearDependencies(c))
}

func TestDependencyGraphMarkDirty(t *testing.T) {
	dg := NewDependencyGraph()
	a := addCell(dg, 0, 0)
	b := addCell(dg, 1, 0)
	c := addCell(dg, 0, 1)
	other := addCell(dg, 5, 5)
	require.NoError(t, dg.AddEdge(a, c))
	require.NoError(t, dg.AddEdge(c, b))

	dg.MarkDirty(a)
	// sorted by position: row first, then column
	require.Equal(t, []VertexID{a, b, c}, dg.DirtySet())
	require.False(t, dg.IsDirty(other))

	dg.MarkDirty(a, 12345)
	require.Len(t, dg.DirtySet(), 3)

	dg.ClearDirty(a, b, c)
	require.Empty(t, dg.DirtySet())

	dg.MarkVolatile(other)
	require.True(t, dg.IsVolatile(other))
	dg.MarkAllVolatileDirty()
	require.Equal(t, []VertexID{other}, dg.DirtySet())
	dg.UnmarkVolatile(other)
	require.False(t, dg.IsVolatile(other))
}

func TestDependencyGraphTopologicalOrder(t *testing.T) {
	t.Run("Chain", func(t *testing.T) {
		dg := NewDependencyGraph()
		// c is placed first so position order and dependency order differ
		c := addCell(dg, 0, 0)
		b := addCell(dg, 0, 1)
		a := addCell(dg, 0, 2)
		require.NoError(t, dg.AddEdge(a, b))
		require.NoError(t, dg.AddEdge(b, c))

		order, err := dg.TopologicalOrder([]VertexID{a, b, c})
		require.NoError(t, err)
		require.Equal(t, []VertexID{a, b, c}, order)
	})

	t.Run("EdgesOutsideDirtyIgnored", func(t *testing.T) {
		dg := NewDependencyGraph()
		a := addCell(dg, 0, 0)
		b := addCell(dg, 0, 1)
		c := addCell(dg, 0, 2)
		require.NoError(t, dg.AddEdge(a, b))
		require.NoError(t, dg.AddEdge(b, c))

		order, err := dg.TopologicalOrder([]VertexID{c, a})
		require.NoError(t, err)
		require.Equal(t, []VertexID{a, c}, order)
	})

	t.Run("Cycle", func(t *testing.T) {
		dg := NewDependencyGraph()
		a := addCell(dg, 0, 0)
		b := addCell(dg, 0, 1)
		c := addCell(dg, 0, 2)
		d := addCell(dg, 0, 3)
		require.NoError(t, dg.AddEdge(a, b))
		require.NoError(t, dg.AddEdge(b, c))
		require.NoError(t, dg.Link(c, b))
		require.NoError(t, dg.AddEdge(c, d))

		order, err := dg.TopologicalOrder([]VertexID{a, b, c, d})
		require.ErrorIs(t, err, ErrCircularDependency)

		var cycleErr *CircularDependencyError
		require.ErrorAs(t, err, &cycleErr)
		require.Equal(t, [][]VertexID{{b, c}}, cycleErr.Cycles)
		require.Equal(t, map[VertexID]struct{}{b: {}, c: {}}, cycleErr.Members())
		require.Equal(t, []VertexID{a, d}, order)
	})
}

func TestDependencyGraphCyclicStatus(t *testing.T) {
	dg := NewDependencyGraph()
	a := addCell(dg, 0, 0)
	b := addCell(dg, 1, 0)
	c := addCell(dg, 2, 0)

	dg.UpdateCyclic(nil, map[VertexID]struct{}{a: {}, b: {}, 999: {}})
	require.True(t, dg.IsCyclic(a))
	require.True(t, dg.IsCyclic(b))
	require.False(t, dg.IsCyclic(c))
	require.False(t, dg.IsCyclic(999), "unknown vertices are not recorded")

	dg.UpdateCyclic([]VertexID{a, c}, map[VertexID]struct{}{c: {}})
	require.False(t, dg.IsCyclic(a), "recomputed vertices lose their old status")
	require.True(t, dg.IsCyclic(b), "vertices not recomputed keep theirs")
	require.True(t, dg.IsCyclic(c))

	require.NoError(t, dg.RemoveVertex(b))
	require.False(t, dg.IsCyclic(b))
}
