package fields

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notargets/dgcache/dh"
	"github.com/notargets/dgcache/mesh"
	"github.com/notargets/dgcache/quadrature"
)

// tetChain builds three tetrahedra glued face to face, the middle one (element
// 1) has two interior faces.
func tetChain(t *testing.T) (m *mesh.Mesh, dofs *dh.DOFHandler) {
	m = mesh.NewMesh()
	for _, x := range [][3]float64{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}, {0, 1, 1},
	} {
		m.AddVertex(x[0], x[1], x[2])
	}
	r := m.AddRegion("bulk", 3, false)
	for _, nodes := range [][]int{{0, 1, 2, 3}, {1, 2, 3, 4}, {2, 3, 4, 5}} {
		_, err := m.AddElement(r, nodes...)
		require.NoError(t, err)
	}
	require.NoError(t, m.BuildConnectivity())
	var err error
	dofs, err = dh.NewDOFHandler(m, 1)
	require.NoError(t, err)
	return
}

// regionLine is a line of 7 elements, element 3 lies in region "B", all
// others in region "A".
func regionLine(t *testing.T) (m *mesh.Mesh, dofs *dh.DOFHandler) {
	var err error
	m, err = mesh.NewBoxMesh(1, []int{7}, []float64{7}, func(c [3]float64) string {
		if c[0] > 3 && c[0] < 4 {
			return "B"
		}
		return "A"
	})
	require.NoError(t, err)
	dofs, err = dh.NewDOFHandler(m, 0)
	require.NoError(t, err)
	return
}

// scenarioCache registers a bulk rule of 4 points and an edge rule of 3 points
// per side on tetrahedra.
func scenarioCache(t *testing.T, capacity int) (ep *EvalPoints, bulk *BulkIntegral, edge *EdgeIntegral, cm *ElementCacheMap) {
	var err error
	ep = NewEvalPoints()
	bulk, err = ep.AddBulk(3, quadrature.MustGauss(3, 2))
	require.NoError(t, err)
	edge, err = ep.AddEdge(3, quadrature.MustGauss(2, 2))
	require.NoError(t, err)
	cm = NewElementCacheMap(capacity)
	require.NoError(t, cm.Init(ep))
	return
}

// interiorEdgeSides returns the sides of all edges with at least two sides
// the cell touches.
func interiorEdgeSides(cell dh.DHCellAccessor) (sides []dh.DHCellSide) {
	for _, side := range cell.Sides() {
		if side.NEdgeSides() >= 2 {
			sides = append(sides, side.EdgeSides()...)
		}
	}
	return
}
