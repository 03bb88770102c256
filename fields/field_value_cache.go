package fields

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dgcache/dh"
)

// FieldValueCache stores values of one tensor shape, nRows x nCols, in cache
// rows addressed by an ElementCacheMap. Row r holds its components row major
// at data[r*nRows*nCols:].
type FieldValueCache struct {
	nRows, nCols int
	nComp        int
	nCachePoints int
	data         []float64
}

// NewFieldValueCache creates a cache of scalars (1,1), vectors (n,1) or
// matrices. Storage is allocated by Init.
func NewFieldValueCache(nRows, nCols int) *FieldValueCache {
	if nRows < 1 || nCols < 1 {
		panic(fmt.Errorf("invalid field value shape %dx%d", nRows, nCols))
	}
	return &FieldValueCache{nRows: nRows, nCols: nCols, nComp: nRows * nCols}
}

// Init allocates capacity*MaxSize rows.
func (fc *FieldValueCache) Init(ep *EvalPoints, capacity int) (err error) {
	var maxSize int
	if maxSize, err = ep.MaxSize(); err != nil {
		return
	}
	fc.nCachePoints = capacity * maxSize
	fc.data = make([]float64, fc.nCachePoints*fc.nComp)
	return
}

func (fc *FieldValueCache) Shape() (nRows, nCols int) { return fc.nRows, fc.nCols }

// NCachePoints is the number of allocated rows, not the live rows of a cycle.
func (fc *FieldValueCache) NCachePoints() int { return fc.nCachePoints }

// Row returns the storage of row as a slice of nRows*nCols values.
func (fc *FieldValueCache) Row(row int) []float64 {
	return fc.data[row*fc.nComp : (row+1)*fc.nComp]
}

// Set writes the components of one value, row major, into row.
func (fc *FieldValueCache) Set(row int, vals ...float64) {
	if len(vals) != fc.nComp {
		panic(fmt.Errorf("value with %d components stored in a %dx%d cache", len(vals), fc.nRows, fc.nCols))
	}
	copy(fc.Row(row), vals)
}

// SetMatrix writes a nRows x nCols matrix into row.
func (fc *FieldValueCache) SetMatrix(row int, m mat.Matrix) {
	r, c := m.Dims()
	if r != fc.nRows || c != fc.nCols {
		panic(fmt.Errorf("%dx%d matrix stored in a %dx%d cache", r, c, fc.nRows, fc.nCols))
	}
	dst := fc.Row(row)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst[i*c+j] = m.At(i, j)
		}
	}
}

// rowOf resolves a local eval point of cell to its cache row. The slot
// carried by the accessor is used only while it still holds the element of
// cell in cm, otherwise it is looked up.
func (fc *FieldValueCache) rowOf(cm *ElementCacheMap, cell dh.DHCellAccessor, point int) (row int, err error) {
	if !cm.ReadyToReading() {
		err = ErrStaleRead
		return
	}
	slot := cell.ElementCacheIndex()
	if slot != UndefElemIdx && (int(slot) >= cm.NElements() || cm.ElmIdx(int(slot)) != cell.ElmIdx()) {
		slot = UndefElemIdx
	}
	if slot == UndefElemIdx {
		if slot, err = cm.CacheMapIndex(cell); err != nil {
			return
		}
		if slot == UndefElemIdx {
			err = fmt.Errorf("%w: element %d", ErrElementNotCached, cell.ElmIdx())
			return
		}
	}
	if point < 0 || point >= cm.MaxSize() {
		err = fmt.Errorf("%w: point %d, max size %d", ErrPointOutOfRange, point, cm.MaxSize())
		return
	}
	r := cm.ElementEvalPoint(slot, point)
	if r == UnusedPoint {
		err = fmt.Errorf("%w: element %d point %d", ErrUnusedPoint, cell.ElmIdx(), point)
		return
	}
	row = int(r)
	return
}

// GetValue returns the value cached for the local eval point of cell.
func (fc *FieldValueCache) GetValue(cm *ElementCacheMap, cell dh.DHCellAccessor, point int) (v *mat.Dense, err error) {
	var row int
	if row, err = fc.rowOf(cm, cell, point); err != nil {
		return
	}
	v = mat.NewDense(fc.nRows, fc.nCols, append([]float64(nil), fc.Row(row)...))
	return
}

// GetScalar returns the first component cached for the point.
func (fc *FieldValueCache) GetScalar(cm *ElementCacheMap, cell dh.DHCellAccessor, point int) (v float64, err error) {
	var row int
	if row, err = fc.rowOf(cm, cell, point); err != nil {
		return
	}
	v = fc.data[row*fc.nComp]
	return
}

// GetVector returns a view of the components cached for the point.
func (fc *FieldValueCache) GetVector(cm *ElementCacheMap, cell dh.DHCellAccessor, point int) (v []float64, err error) {
	var row int
	if row, err = fc.rowOf(cm, cell, point); err != nil {
		return
	}
	v = fc.Row(row)
	return
}
