package dh

import (
	"fmt"

	"github.com/notargets/dgcache/mesh"
)

// DHCellAccessor is a cheap value handle of one element, optionally carrying
// the slot the element occupies in the current cache cycle.
type DHCellAccessor struct {
	dh       *DOFHandler
	elm      int
	cacheIdx uint32
}

func (c DHCellAccessor) IsValid() bool { return c.dh != nil && c.elm >= 0 && c.elm < c.dh.NCells() }

func (c DHCellAccessor) ElmIdx() uint32 { return uint32(c.elm) }

func (c DHCellAccessor) Element() *mesh.Element { return &c.dh.Mesh.Elements[c.elm] }

func (c DHCellAccessor) Dim() int { return c.Element().Dim }

func (c DHCellAccessor) RegionIdx() uint32 { return c.Element().Region }

func (c DHCellAccessor) DOFHandler() *DOFHandler { return c.dh }

// DofIndices returns the global dofs of the element, they are contiguous.
func (c DHCellAccessor) DofIndices() (dofs []int) {
	begin, end := c.dh.dofStarts[c.elm], c.dh.dofStarts[c.elm+1]
	dofs = make([]int, end-begin)
	for i := range dofs {
		dofs[i] = begin + i
	}
	return
}

func (c DHCellAccessor) NDofs() int { return c.dh.dofStarts[c.elm+1] - c.dh.dofStarts[c.elm] }

// ElementCacheIndex is the cache slot set by a cache map lookup, UndefElemIdx
// for an accessor that was not looked up or is not cached.
func (c DHCellAccessor) ElementCacheIndex() uint32 { return c.cacheIdx }

// SetElementCacheIndex returns a copy of the accessor carrying the slot.
func (c DHCellAccessor) SetElementCacheIndex(idx uint32) DHCellAccessor {
	c.cacheIdx = idx
	return c
}

func (c DHCellAccessor) NSides() int { return c.Element().NSides() }

func (c DHCellAccessor) Side(i int) DHCellSide {
	return DHCellSide{cell: c, side: i}
}

// Sides returns the side accessors in reference side order.
func (c DHCellAccessor) Sides() (sides []DHCellSide) {
	sides = make([]DHCellSide, c.NSides())
	for i := range sides {
		sides[i] = c.Side(i)
	}
	return
}

// DHNeighbour pairs a lower dimensional cell with the side of the higher
// dimensional cell it lies on. Permutation maps the lower element's node
// order onto the side.
type DHNeighbour struct {
	Lower       DHCellAccessor
	Higher      DHCellSide
	Permutation int
}

// NeighbourSides returns the higher dimensional sides the element couples
// with, empty for elements of the highest dimension.
func (c DHCellAccessor) NeighbourSides() (nbs []DHNeighbour) {
	m := c.dh.Mesh
	for _, n := range c.Element().Neighbours {
		nb := m.Neighbours[n]
		nbs = append(nbs, DHNeighbour{
			Lower:       c,
			Higher:      c.dh.Cell(nb.Higher.Element).Side(nb.Higher.Side),
			Permutation: nb.Permutation,
		})
	}
	return
}

func (c DHCellAccessor) String() string {
	return fmt.Sprintf("cell[%d] dim=%d region=%d", c.elm, c.Dim(), c.RegionIdx())
}

// DHCellSide addresses one side of a cell.
type DHCellSide struct {
	cell DHCellAccessor
	side int
}

func (s DHCellSide) Cell() DHCellAccessor { return s.cell }

func (s DHCellSide) SideIdx() int { return s.side }

// Dim is the dimension of the element owning the side.
func (s DHCellSide) Dim() int { return s.cell.Dim() }

func (s DHCellSide) edge() *mesh.Edge {
	e := s.cell.Element()
	return &s.cell.dh.Mesh.Edges[e.Edges[s.side]]
}

func (s DHCellSide) EdgeIdx() int { return s.cell.Element().Edges[s.side] }

func (s DHCellSide) NEdgeSides() int { return len(s.edge().Sides) }

// EdgeSides returns every side of the edge, this one included.
func (s DHCellSide) EdgeSides() (sides []DHCellSide) {
	edge := s.edge()
	sides = make([]DHCellSide, len(edge.Sides))
	for i, ref := range edge.Sides {
		sides[i] = s.cell.dh.Cell(ref.Element).Side(ref.Side)
	}
	return
}

// Permutation of the side nodes relative to the first side of the edge.
func (s DHCellSide) Permutation() int { return s.cell.Element().Permutations[s.side] }

// IsBoundary reports an external side, one not shared with another element.
func (s DHCellSide) IsBoundary() bool { return s.NEdgeSides() == 1 }

// BoundaryRegion is the region of a marked external side or mesh.UndefIdx.
func (s DHCellSide) BoundaryRegion() int { return s.cell.Element().BoundaryRegion[s.side] }

func (s DHCellSide) Measure() float64 { return s.cell.dh.Mesh.SideMeasure(s.cell.elm, s.side) }

func (s DHCellSide) Normal() [3]float64 { return s.cell.dh.Mesh.SideNormal(s.cell.elm, s.side) }

func (s DHCellSide) Centroid() [3]float64 { return s.cell.dh.Mesh.SideCentroid(s.cell.elm, s.side) }
