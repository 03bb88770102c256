package fields

import (
	"fmt"

	"github.com/notargets/dgcache/quadrature"
)

// MaxDim is the highest element dimension eval points are kept for.
const MaxDim = 3

// dimPoints is the point list of one dimension, subset i owning the points
// subsetStarts[i]..subsetStarts[i+1].
type dimPoints struct {
	points       [][]float64
	subsetStarts []int
}

func (dp *dimPoints) nSubsets() int { return len(dp.subsetStarts) - 1 }

// EvalPoints registers the reference points all integrals of an assembly are
// evaluated at. Points are grouped in append only subsets per dimension; the
// index of a point inside its element's dimension is the local eval point
// index used by the cache map.
type EvalPoints struct {
	dims   [MaxDim + 1]dimPoints
	closed bool
}

func NewEvalPoints() (ep *EvalPoints) {
	ep = &EvalPoints{}
	for d := range ep.dims {
		ep.dims[d].subsetStarts = []int{0}
	}
	return
}

func (ep *EvalPoints) checkDim(dim int) error {
	if dim < 0 || dim > MaxDim {
		return fmt.Errorf("%w: dimension %d", ErrPointOutOfRange, dim)
	}
	return nil
}

// Size is the number of points of dimension dim.
func (ep *EvalPoints) Size(dim int) int { return len(ep.dims[dim].points) }

func (ep *EvalPoints) NSubsets(dim int) int { return ep.dims[dim].nSubsets() }

func (ep *EvalPoints) SubsetBegin(dim, subset int) int { return ep.dims[dim].subsetStarts[subset] }

func (ep *EvalPoints) SubsetEnd(dim, subset int) int { return ep.dims[dim].subsetStarts[subset+1] }

// SubsetSize is the number of points of a subset.
func (ep *EvalPoints) SubsetSize(dim, subset int) int {
	return ep.SubsetEnd(dim, subset) - ep.SubsetBegin(dim, subset)
}

// Point returns the reference coordinates of local point i of dimension dim.
func (ep *EvalPoints) Point(dim, i int) []float64 { return ep.dims[dim].points[i] }

// MaxSize is the largest point count over all dimensions, the number of
// cache rows reserved per element.
func (ep *EvalPoints) MaxSize() (size int, err error) {
	var registered bool
	for d := range ep.dims {
		if ep.dims[d].nSubsets() > 0 {
			registered = true
		}
		size = max(size, len(ep.dims[d].points))
	}
	if !registered {
		err = ErrNoSubsets
	}
	return
}

// Close forbids further subsets, the cache maps rely on a fixed MaxSize.
func (ep *EvalPoints) Close() { ep.closed = true }

func (ep *EvalPoints) IsClosed() bool { return ep.closed }

// addSubset appends points as a new subset of dim and returns its index.
func (ep *EvalPoints) addSubset(dim int, points [][]float64) (subset int, err error) {
	if ep.closed {
		err = ErrEvalPointsClosed
		return
	}
	if err = ep.checkDim(dim); err != nil {
		return
	}
	dp := &ep.dims[dim]
	subset = dp.nSubsets()
	for _, p := range points {
		dp.points = append(dp.points, append([]float64(nil), p...))
	}
	dp.subsetStarts = append(dp.subsetStarts, len(dp.points))
	return
}

// AddBulk registers the points of q, a rule on the dim reference simplex.
func (ep *EvalPoints) AddBulk(dim int, q *quadrature.Quadrature) (bi *BulkIntegral, err error) {
	if bi, err = ep.newBulk(dim, q); err != nil {
		return
	}
	bi.subsetIdx, err = ep.addSubset(dim, q.Points)
	return
}

// newBulk checks q and builds an integral not yet holding a subset.
func (ep *EvalPoints) newBulk(dim int, q *quadrature.Quadrature) (bi *BulkIntegral, err error) {
	if ep.closed {
		err = ErrEvalPointsClosed
		return
	}
	if err = ep.checkDim(dim); err != nil {
		return
	}
	if q.Dim != dim {
		err = fmt.Errorf("%w: bulk quadrature of dimension %d on elements of dimension %d",
			ErrIntegralMismatch, q.Dim, dim)
		return
	}
	bi = &BulkIntegral{
		baseIntegral: baseIntegral{ep: ep, dim: dim},
		quad:         q,
	}
	return
}

// AddEdge registers q, a rule of dimension dim-1, mapped onto every side of
// the dim reference simplex. Points are stored side by side in the order of
// the unpermuted side rule; the other permutations must map the rule onto
// itself and are kept as index tables.
func (ep *EvalPoints) AddEdge(dim int, q *quadrature.Quadrature) (ei *EdgeIntegral, err error) {
	var points [][]float64
	if ei, points, err = ep.newEdge(dim, q); err != nil {
		return
	}
	ei.subsetIdx, err = ep.addSubset(dim, points)
	return
}

// newEdge builds the side points and permutation tables of q without
// registering them.
func (ep *EvalPoints) newEdge(dim int, q *quadrature.Quadrature) (ei *EdgeIntegral, points [][]float64, err error) {
	if ep.closed {
		err = ErrEvalPointsClosed
		return
	}
	if q.Dim != dim-1 || dim < 1 || dim > MaxDim {
		err = fmt.Errorf("%w: side quadrature of dimension %d on elements of dimension %d",
			ErrIntegralMismatch, q.Dim, dim)
		return
	}
	var (
		nSides = quadrature.NSides(dim)
		nPerm  = quadrature.NSidePermutations(dim)
		pps    = q.Size()
	)
	points = make([][]float64, 0, nSides*pps)
	ei = &EdgeIntegral{
		baseIntegral:  baseIntegral{ep: ep, dim: dim},
		nSides:        nSides,
		nPermutations: nPerm,
		pointsPerSide: pps,
		permIndices:   make([]int, nSides*nPerm*pps),
		quad:          q,
	}
	for side := 0; side < nSides; side++ {
		var qs *quadrature.Quadrature
		if qs, err = q.MakeFromSide(dim, side, 0); err != nil {
			return
		}
		points = append(points, qs.Points...)
	}
	for side := 0; side < nSides; side++ {
		sidePoints := points[side*pps : (side+1)*pps]
		for perm := 0; perm < nPerm; perm++ {
			var qs *quadrature.Quadrature
			if qs, err = q.MakeFromSide(dim, side, perm); err != nil {
				return
			}
			for i, x := range qs.Points {
				j := findPoint(sidePoints, x)
				if j < 0 {
					err = fmt.Errorf("%w: side %d permutation %d point %d", ErrAsymmetricQuadrature, side, perm, i)
					return
				}
				ei.permIndices[ei.permOffset(side, perm)+i] = side*pps + j
			}
		}
	}
	return
}

// AddCoupling registers the rule qLow on elements of dimension dim-1 and on
// the sides of elements of dimension dim. Nothing is registered unless both
// subsets are valid.
func (ep *EvalPoints) AddCoupling(dim int, qLow *quadrature.Quadrature) (ci *CouplingIntegral, err error) {
	var (
		bulk *BulkIntegral
		edge *EdgeIntegral
	)
	if bulk, edge, err = ep.addSidePair(dim, qLow); err != nil {
		return
	}
	return NewCouplingIntegral(edge, bulk)
}

// AddBoundary registers the side rule qSide on the sides of dim elements and
// on boundary elements of dimension dim-1, both or neither.
func (ep *EvalPoints) AddBoundary(dim int, qSide *quadrature.Quadrature) (bi *BoundaryIntegral, err error) {
	var (
		bulk *BulkIntegral
		edge *EdgeIntegral
	)
	if bulk, edge, err = ep.addSidePair(dim, qSide); err != nil {
		return
	}
	return NewBoundaryIntegral(edge, bulk)
}

// addSidePair checks q as a bulk rule of dim-1 and a side rule of dim, then
// registers the bulk subset followed by the edge subset.
func (ep *EvalPoints) addSidePair(dim int, q *quadrature.Quadrature) (bulk *BulkIntegral, edge *EdgeIntegral, err error) {
	var edgePoints [][]float64
	if bulk, err = ep.newBulk(dim-1, q); err != nil {
		return
	}
	if edge, edgePoints, err = ep.newEdge(dim, q); err != nil {
		return
	}
	if err = checkSidePair(edge, bulk); err != nil {
		return
	}
	if bulk.subsetIdx, err = ep.addSubset(dim-1, q.Points); err != nil {
		return
	}
	edge.subsetIdx, err = ep.addSubset(dim, edgePoints)
	return
}

const pointTol = 1.e-10

func findPoint(points [][]float64, x []float64) int {
	for j, p := range points {
		if quadrature.SamePoint(p, x, pointTol) {
			return j
		}
	}
	return -1
}
