package fields

import (
	"fmt"

	"github.com/notargets/dgcache/dh"
	"github.com/notargets/dgcache/quadrature"
)

// IntegralKind tags the closed set of integral descriptors.
type IntegralKind uint8

const (
	KindBulk IntegralKind = iota
	KindEdge
	KindCoupling
	KindBoundary
)

func (k IntegralKind) String() string {
	switch k {
	case KindBulk:
		return "bulk"
	case KindEdge:
		return "edge"
	case KindCoupling:
		return "coupling"
	case KindBoundary:
		return "boundary"
	}
	return fmt.Sprintf("IntegralKind(%d)", uint8(k))
}

// Integral is implemented by BulkIntegral, EdgeIntegral, CouplingIntegral
// and BoundaryIntegral only.
type Integral interface {
	Dim() int
	EvalPoints() *EvalPoints
	Kind() IntegralKind
}

type baseIntegral struct {
	ep  *EvalPoints
	dim int
}

func (b baseIntegral) Dim() int { return b.dim }

func (b baseIntegral) EvalPoints() *EvalPoints { return b.ep }

/*
BulkIntegral
*/

// BulkIntegral evaluates over the interior of elements of one dimension.
type BulkIntegral struct {
	baseIntegral
	subsetIdx int
	quad      *quadrature.Quadrature
}

func (bi *BulkIntegral) Kind() IntegralKind { return KindBulk }

func (bi *BulkIntegral) SubsetIdx() int { return bi.subsetIdx }

func (bi *BulkIntegral) NPoints() int { return bi.quad.Size() }

func (bi *BulkIntegral) Quadrature() *quadrature.Quadrature { return bi.quad }

// Points returns the eval points of the integral on cell.
func (bi *BulkIntegral) Points(cell dh.DHCellAccessor) (pts []BulkPoint) {
	begin := bi.ep.SubsetBegin(bi.dim, bi.subsetIdx)
	pts = make([]BulkPoint, bi.NPoints())
	for i := range pts {
		pts[i] = BulkPoint{cell: cell, integral: bi, idx: i, evalIdx: begin + i}
	}
	return
}

// MarkUsed marks all points of the integral on cell in the cache map.
func (bi *BulkIntegral) MarkUsed(cm *ElementCacheMap, cell dh.DHCellAccessor) error {
	return cm.MarkUsedEvalPoints(cell, bi.subsetIdx, bi.NPoints(), 0)
}

// BulkPoint is point idx of a bulk integral on one cell.
type BulkPoint struct {
	cell     dh.DHCellAccessor
	integral *BulkIntegral
	idx      int
	evalIdx  int
}

func (p BulkPoint) Cell() dh.DHCellAccessor { return p.cell }

// EvalPointIdx is the local eval point index within the element.
func (p BulkPoint) EvalPointIdx() int { return p.evalIdx }

// Idx is the index of the point in the quadrature rule.
func (p BulkPoint) Idx() int { return p.idx }

func (p BulkPoint) Weight() float64 { return p.integral.quad.Weights[p.idx] }

func (p BulkPoint) Coords() []float64 { return p.integral.ep.Point(p.integral.dim, p.evalIdx) }

/*
EdgeIntegral
*/

// EdgeIntegral evaluates over the sides of elements of one dimension. The
// permutation table maps point i of the reference side of an edge to the
// point at the same physical location on a side with permutation perm; it is
// stored flat as [side][perm][point].
type EdgeIntegral struct {
	baseIntegral
	subsetIdx     int
	nSides        int
	nPermutations int
	pointsPerSide int
	permIndices   []int
	quad          *quadrature.Quadrature
}

func (ei *EdgeIntegral) Kind() IntegralKind { return KindEdge }

func (ei *EdgeIntegral) SubsetIdx() int { return ei.subsetIdx }

func (ei *EdgeIntegral) NSides() int { return ei.nSides }

func (ei *EdgeIntegral) NPermutations() int { return ei.nPermutations }

func (ei *EdgeIntegral) PointsPerSide() int { return ei.pointsPerSide }

func (ei *EdgeIntegral) Quadrature() *quadrature.Quadrature { return ei.quad }

func (ei *EdgeIntegral) permOffset(side, perm int) int {
	return (side*ei.nPermutations + perm) * ei.pointsPerSide
}

// PermIdx is the index, relative to the subset begin, of point i on side
// under permutation perm.
func (ei *EdgeIntegral) PermIdx(side, perm, i int) int {
	return ei.permIndices[ei.permOffset(side, perm)+i]
}

// Points returns the eval points of the integral on side, ordered so that
// point i of all sides of one edge coincide physically.
func (ei *EdgeIntegral) Points(side dh.DHCellSide) (pts []EdgePoint) {
	var (
		begin = ei.ep.SubsetBegin(ei.dim, ei.subsetIdx)
		perm  = side.Permutation()
	)
	pts = make([]EdgePoint, ei.pointsPerSide)
	for i := range pts {
		pts[i] = EdgePoint{
			side:     side,
			integral: ei,
			idx:      i,
			evalIdx:  begin + ei.PermIdx(side.SideIdx(), perm, i),
		}
	}
	return
}

// MarkUsed marks the points of one side of cell in the cache map.
func (ei *EdgeIntegral) MarkUsed(cm *ElementCacheMap, side dh.DHCellSide) error {
	return cm.MarkUsedEvalPoints(side.Cell(), ei.subsetIdx, ei.pointsPerSide, ei.pointsPerSide*side.SideIdx())
}

// EdgePoint is point idx of an edge integral on one side.
type EdgePoint struct {
	side     dh.DHCellSide
	integral *EdgeIntegral
	idx      int
	evalIdx  int
}

func (p EdgePoint) Side() dh.DHCellSide { return p.side }

func (p EdgePoint) Cell() dh.DHCellAccessor { return p.side.Cell() }

func (p EdgePoint) EvalPointIdx() int { return p.evalIdx }

func (p EdgePoint) Idx() int { return p.idx }

func (p EdgePoint) Weight() float64 { return p.integral.quad.Weights[p.idx] }

func (p EdgePoint) Coords() []float64 { return p.integral.ep.Point(p.integral.dim, p.evalIdx) }

// PointOnSide returns the point with the same index on another side of the
// edge, both evaluate at the same physical location.
func (p EdgePoint) PointOnSide(other dh.DHCellSide) EdgePoint {
	begin := p.integral.ep.SubsetBegin(p.integral.dim, p.integral.subsetIdx)
	return EdgePoint{
		side:     other,
		integral: p.integral,
		idx:      p.idx,
		evalIdx:  begin + p.integral.PermIdx(other.SideIdx(), other.Permutation(), p.idx),
	}
}

/*
CouplingIntegral
*/

// CouplingIntegral pairs a bulk integral on elements of dimension dim-1 with
// an edge integral on the sides of elements of dimension dim.
type CouplingIntegral struct {
	baseIntegral
	edge *EdgeIntegral
	bulk *BulkIntegral
}

func NewCouplingIntegral(edge *EdgeIntegral, bulk *BulkIntegral) (ci *CouplingIntegral, err error) {
	if err = checkSidePair(edge, bulk); err != nil {
		return
	}
	ci = &CouplingIntegral{
		baseIntegral: baseIntegral{ep: edge.ep, dim: edge.dim},
		edge:         edge,
		bulk:         bulk,
	}
	return
}

func checkSidePair(edge *EdgeIntegral, bulk *BulkIntegral) error {
	switch {
	case edge.ep != bulk.ep:
		return fmt.Errorf("%w: integrals registered in different eval points", ErrIntegralMismatch)
	case bulk.Dim()+1 != edge.Dim():
		return fmt.Errorf("%w: bulk dimension %d, edge dimension %d", ErrIntegralMismatch, bulk.Dim(), edge.Dim())
	case bulk.NPoints() != edge.PointsPerSide():
		return fmt.Errorf("%w: %d bulk points, %d points per side", ErrIntegralMismatch,
			bulk.NPoints(), edge.PointsPerSide())
	}
	return nil
}

func (ci *CouplingIntegral) Kind() IntegralKind { return KindCoupling }

func (ci *CouplingIntegral) Edge() *EdgeIntegral { return ci.edge }

func (ci *CouplingIntegral) Bulk() *BulkIntegral { return ci.bulk }

// Points returns the coupling points of a lower dimensional cell with the
// side it lies on.
func (ci *CouplingIntegral) Points(nb dh.DHNeighbour) (pts []CouplingPoint) {
	var (
		edgeBegin = ci.ep.SubsetBegin(ci.edge.dim, ci.edge.subsetIdx)
		bulkBegin = ci.ep.SubsetBegin(ci.bulk.dim, ci.bulk.subsetIdx)
	)
	pts = make([]CouplingPoint, ci.bulk.NPoints())
	for i := range pts {
		pts[i] = CouplingPoint{
			nb:       nb,
			integral: ci,
			idx:      i,
			evalIdx:  edgeBegin + ci.edge.PermIdx(nb.Higher.SideIdx(), nb.Permutation, i),
			lowIdx:   bulkBegin + i,
		}
	}
	return
}

// MarkUsed marks the coupling points in both elements of nb.
func (ci *CouplingIntegral) MarkUsed(cm *ElementCacheMap, nb dh.DHNeighbour) error {
	if err := ci.bulk.MarkUsed(cm, nb.Lower); err != nil {
		return err
	}
	return ci.edge.MarkUsed(cm, nb.Higher)
}

// CouplingPoint is point idx on the higher dimensional side; LowerDim is the
// point at the same location in the lower dimensional element.
type CouplingPoint struct {
	nb       dh.DHNeighbour
	integral *CouplingIntegral
	idx      int
	evalIdx  int
	lowIdx   int
}

func (p CouplingPoint) Side() dh.DHCellSide { return p.nb.Higher }

func (p CouplingPoint) EvalPointIdx() int { return p.evalIdx }

func (p CouplingPoint) Idx() int { return p.idx }

func (p CouplingPoint) Weight() float64 { return p.integral.bulk.quad.Weights[p.idx] }

func (p CouplingPoint) LowerDim() BulkPoint {
	return BulkPoint{cell: p.nb.Lower, integral: p.integral.bulk, idx: p.idx, evalIdx: p.lowIdx}
}

/*
BoundaryIntegral
*/

// BoundaryIntegral pairs an edge integral on the sides of dim elements with a
// bulk integral of the same rule on boundary elements of dimension dim-1.
// Boundary sides have no other side on their edge, so their points are those
// of the unpermuted side rule.
type BoundaryIntegral struct {
	baseIntegral
	edge *EdgeIntegral
	bulk *BulkIntegral
}

func NewBoundaryIntegral(edge *EdgeIntegral, bulk *BulkIntegral) (bi *BoundaryIntegral, err error) {
	if err = checkSidePair(edge, bulk); err != nil {
		return
	}
	bi = &BoundaryIntegral{
		baseIntegral: baseIntegral{ep: edge.ep, dim: edge.dim},
		edge:         edge,
		bulk:         bulk,
	}
	return
}

func (bi *BoundaryIntegral) Kind() IntegralKind { return KindBoundary }

func (bi *BoundaryIntegral) Edge() *EdgeIntegral { return bi.edge }

func (bi *BoundaryIntegral) Bulk() *BulkIntegral { return bi.bulk }

// Points returns the eval points on a boundary side.
func (bi *BoundaryIntegral) Points(side dh.DHCellSide) (pts []BoundaryPoint) {
	var (
		edgeBegin = bi.ep.SubsetBegin(bi.edge.dim, bi.edge.subsetIdx)
		bulkBegin = bi.ep.SubsetBegin(bi.bulk.dim, bi.bulk.subsetIdx)
	)
	pts = make([]BoundaryPoint, bi.edge.pointsPerSide)
	for i := range pts {
		pts[i] = BoundaryPoint{
			side:     side,
			integral: bi,
			idx:      i,
			evalIdx:  edgeBegin + bi.edge.PermIdx(side.SideIdx(), side.Permutation(), i),
			bdrIdx:   bulkBegin + i,
		}
	}
	return
}

// MarkUsed marks the points of a boundary side in the cache map.
func (bi *BoundaryIntegral) MarkUsed(cm *ElementCacheMap, side dh.DHCellSide) error {
	return bi.edge.MarkUsed(cm, side)
}

type BoundaryPoint struct {
	side     dh.DHCellSide
	integral *BoundaryIntegral
	idx      int
	evalIdx  int
	bdrIdx   int
}

func (p BoundaryPoint) Side() dh.DHCellSide { return p.side }

func (p BoundaryPoint) Cell() dh.DHCellAccessor { return p.side.Cell() }

func (p BoundaryPoint) EvalPointIdx() int { return p.evalIdx }

// BoundaryEvalPointIdx is the local point index in a boundary element.
func (p BoundaryPoint) BoundaryEvalPointIdx() int { return p.bdrIdx }

func (p BoundaryPoint) Idx() int { return p.idx }

func (p BoundaryPoint) Weight() float64 { return p.integral.edge.quad.Weights[p.idx] }
