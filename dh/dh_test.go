package dh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/dgcache/mesh"
)

func TestNLocalDofs(t *testing.T) {
	assert.Equal(t, 1, NLocalDofs(3, 0))
	assert.Equal(t, 2, NLocalDofs(1, 1))
	assert.Equal(t, 3, NLocalDofs(2, 1))
	assert.Equal(t, 6, NLocalDofs(2, 2))
	assert.Equal(t, 4, NLocalDofs(3, 1))
	assert.Equal(t, 10, NLocalDofs(3, 2))
}

func TestDOFHandler(t *testing.T) {
	m, err := mesh.NewBoxMesh(2, []int{2, 1}, []float64{2, 1}, nil)
	require.NoError(t, err)
	dh, err := NewDOFHandler(m, 1)
	require.NoError(t, err)
	assert.Equal(t, 12, dh.NDofs())
	{ // Dofs are disjoint and contiguous
		seen := make(map[int]bool)
		for _, cell := range dh.Cells(0, dh.NCells()) {
			require.True(t, cell.IsValid())
			assert.Equal(t, 3, cell.NDofs())
			for _, dof := range cell.DofIndices() {
				assert.False(t, seen[dof])
				seen[dof] = true
			}
		}
		assert.Len(t, seen, 12)
	}
	{ // Accessors are values, the cache index travels with the copy
		cell := dh.Cell(2)
		assert.Equal(t, uint32(UndefElemIdx), cell.ElementCacheIndex())
		c2 := cell.SetElementCacheIndex(5)
		assert.Equal(t, uint32(5), c2.ElementCacheIndex())
		assert.Equal(t, uint32(UndefElemIdx), cell.ElementCacheIndex())
		assert.Equal(t, uint32(2), c2.ElmIdx())
	}
	{ // Sides and edges
		var nInterior, nBoundary int
		for _, cell := range dh.Cells(0, dh.NCells()) {
			for _, side := range cell.Sides() {
				assert.Equal(t, 2, side.Dim())
				if side.IsBoundary() {
					nBoundary++
					assert.NotEqual(t, mesh.UndefIdx, side.BoundaryRegion())
					continue
				}
				nInterior++
				require.Equal(t, 2, side.NEdgeSides())
				found := false
				for _, es := range side.EdgeSides() {
					assert.Equal(t, side.EdgeIdx(), es.EdgeIdx())
					found = found || (es.Cell().ElmIdx() == cell.ElmIdx() && es.SideIdx() == side.SideIdx())
				}
				assert.True(t, found)
			}
		}
		assert.Equal(t, 6, nBoundary)
		assert.Equal(t, 6, nInterior)
	}
	_, err = NewDOFHandler(m, -1)
	assert.Error(t, err)
}

func TestNeighbourSides(t *testing.T) {
	m, err := mesh.NewBoxMesh(2, []int{2, 1}, []float64{2, 1}, nil)
	require.NoError(t, err)
	_, err = m.EmbedLowerDim("fracture", func(c [3]float64) bool { return c[0] > 0.99 && c[0] < 1.01 })
	require.NoError(t, err)
	dh, err := NewDOFHandler(m, 0)
	require.NoError(t, err)
	frac := dh.Cell(m.ElementsOfDim(1)[0])
	nbs := frac.NeighbourSides()
	require.Len(t, nbs, 2)
	for _, nb := range nbs {
		assert.Equal(t, 2, nb.Higher.Dim())
		assert.Equal(t, frac.ElmIdx(), nb.Lower.ElmIdx())
		c := nb.Higher.Centroid()
		assert.InDelta(t, 1., c[0], 1.e-12)
	}
	assert.Empty(t, dh.Cell(0).NeighbourSides())
}
