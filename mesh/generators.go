package mesh

import (
	"fmt"
)

// RegionFunc names the bulk region of an element from its centroid.
type RegionFunc func(c [3]float64) string

// Boundary region names given to the faces of generated boxes.
var boxBoundaryNames = [3][2]string{
	{".left", ".right"},
	{".bottom", ".top"},
	{".front", ".back"},
}

// NewBoxMesh generates a structured simplicial mesh of the box
// [0,size[0]] x ... in dim dimensions with div[d] cells along axis d. Squares
// are split along their diagonal and cubes into the six Kuhn tetrahedra, both
// splits being conforming between neighbouring cells. A nil regionOf puts
// every element into region "bulk". External sides are marked with the
// regions ".left", ".right", ".bottom", ".top", ".front" and ".back".
func NewBoxMesh(dim int, div []int, size []float64, regionOf RegionFunc) (m *Mesh, err error) {
	if dim < 1 || dim > 3 {
		err = fmt.Errorf("unsupported box dimension %d", dim)
		return
	}
	if len(div) < dim || len(size) < dim {
		err = fmt.Errorf("box of dimension %d needs %d divisions and sizes, have %d and %d",
			dim, dim, len(div), len(size))
		return
	}
	for d := 0; d < dim; d++ {
		if div[d] < 1 || size[d] <= 0 {
			err = fmt.Errorf("invalid box axis %d: %d divisions of size %g", d, div[d], size[d])
			return
		}
	}
	if regionOf == nil {
		regionOf = func([3]float64) string { return "bulk" }
	}
	m = NewMesh()
	var (
		n      [3]int
		stride [3]int
	)
	for d := 0; d < 3; d++ {
		n[d] = 1
		if d < dim {
			n[d] = div[d] + 1
		}
	}
	stride[0], stride[1], stride[2] = 1, n[0], n[0]*n[1]
	for k := 0; k < n[2]; k++ {
		for j := 0; j < n[1]; j++ {
			for i := 0; i < n[0]; i++ {
				var x [3]float64
				for d, idx := range [3]int{i, j, k} {
					if d < dim {
						x[d] = size[d] * float64(idx) / float64(div[d])
					}
				}
				m.AddVertex(x[0], x[1], x[2])
			}
		}
	}
	vertex := func(i, j, k int) int { return i*stride[0] + j*stride[1] + k*stride[2] }

	var cells [][]int
	switch dim {
	case 1:
		for i := 0; i < div[0]; i++ {
			cells = append(cells, []int{vertex(i, 0, 0), vertex(i+1, 0, 0)})
		}
	case 2:
		for j := 0; j < div[1]; j++ {
			for i := 0; i < div[0]; i++ {
				cells = append(cells,
					[]int{vertex(i, j, 0), vertex(i+1, j, 0), vertex(i+1, j+1, 0)},
					[]int{vertex(i, j, 0), vertex(i, j+1, 0), vertex(i+1, j+1, 0)})
			}
		}
	case 3:
		for k := 0; k < div[2]; k++ {
			for j := 0; j < div[1]; j++ {
				for i := 0; i < div[0]; i++ {
					cells = append(cells, kuhnTets(i, j, k, vertex)...)
				}
			}
		}
	}
	for _, nodes := range cells {
		region := m.AddRegion(regionOf(m.centroid(nodes)), dim, false)
		if _, err = m.AddElement(region, nodes...); err != nil {
			return
		}
	}
	if err = m.BuildConnectivity(); err != nil {
		return
	}
	const tol = 1.e-12
	for d := 0; d < dim; d++ {
		axis, extent := d, size[d]
		m.MarkBoundary(boxBoundaryNames[d][0], func(c [3]float64) bool { return c[axis] < tol })
		m.MarkBoundary(boxBoundaryNames[d][1], func(c [3]float64) bool { return c[axis] > extent-tol })
	}
	return
}

// kuhnTets splits the unit cube at (i,j,k) along the paths from its lowest to
// its highest corner, one tetrahedron per ordering of the axes.
func kuhnTets(i, j, k int, vertex func(i, j, k int) int) (tets [][]int) {
	for _, axes := range [6][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	} {
		var (
			c   = [3]int{i, j, k}
			tet = make([]int, 0, 4)
		)
		tet = append(tet, vertex(c[0], c[1], c[2]))
		for _, a := range axes {
			c[a]++
			tet = append(tet, vertex(c[0], c[1], c[2]))
		}
		tets = append(tets, tet)
	}
	return
}

// EmbedLowerDim inserts a lower dimensional element on every interior edge
// of dimension maxDim-1 whose centroid satisfies pred, e.g. a fracture in a
// 2D or 3D domain. Connectivity is rebuilt, boundary marks are kept. The
// number of inserted elements is returned.
func (m *Mesh) EmbedLowerDim(name string, pred func(c [3]float64) bool) (n int, err error) {
	var (
		maxDim int
		sides  [][]int
	)
	for i := range m.Elements {
		maxDim = max(maxDim, m.Elements[i].Dim)
	}
	if maxDim < 2 {
		err = fmt.Errorf("lower dimensional elements need a bulk of dimension 2 or 3, have %d", maxDim)
		return
	}
	for _, edge := range m.Edges {
		s := edge.Sides[0]
		if len(edge.Sides) < 2 || m.Elements[s.Element].Dim != maxDim || m.IsCoupled(s) {
			continue
		}
		if pred(m.SideCentroid(s.Element, s.Side)) {
			sides = append(sides, m.SideNodes(s.Element, s.Side))
		}
	}
	if len(sides) == 0 {
		return
	}
	region := m.AddRegion(name, maxDim-1, false)
	for _, nodes := range sides {
		if _, err = m.AddElement(region, nodes...); err != nil {
			return
		}
		n++
	}
	err = m.BuildConnectivity()
	return
}
