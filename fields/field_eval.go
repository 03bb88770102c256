package fields

import (
	"fmt"

	"github.com/notargets/dgcache/mesh"
)

// ValueSource produces field values at physical points. Evaluate writes
// nRows*nCols components, row major, into out.
type ValueSource interface {
	Shape() (nRows, nCols int)
	Evaluate(region uint32, x [3]float64, out []float64)
}

// ConstantField is piecewise constant over regions.
type ConstantField struct {
	nRows, nCols int
	def          []float64
	regions      map[uint32][]float64
}

// NewConstantField creates a field of the given shape equal to def, row
// major, on regions without their own value.
func NewConstantField(nRows, nCols int, def ...float64) (cf *ConstantField, err error) {
	if len(def) != nRows*nCols {
		err = fmt.Errorf("constant field of shape %dx%d given %d values", nRows, nCols, len(def))
		return
	}
	cf = &ConstantField{
		nRows:   nRows,
		nCols:   nCols,
		def:     def,
		regions: make(map[uint32][]float64),
	}
	return
}

// SetRegion overrides the value on one region.
func (cf *ConstantField) SetRegion(region uint32, vals ...float64) error {
	if len(vals) != cf.nRows*cf.nCols {
		return fmt.Errorf("constant field of shape %dx%d given %d values", cf.nRows, cf.nCols, len(vals))
	}
	cf.regions[region] = vals
	return nil
}

func (cf *ConstantField) Shape() (int, int) { return cf.nRows, cf.nCols }

func (cf *ConstantField) Evaluate(region uint32, _ [3]float64, out []float64) {
	if v, ok := cf.regions[region]; ok {
		copy(out, v)
		return
	}
	copy(out, cf.def)
}

// FormulaField evaluates a function of the region and the coordinates.
type FormulaField struct {
	nRows, nCols int
	F            func(region uint32, x [3]float64, out []float64)
}

func NewFormulaField(nRows, nCols int, f func(region uint32, x [3]float64, out []float64)) *FormulaField {
	return &FormulaField{nRows: nRows, nCols: nCols, F: f}
}

func (ff *FormulaField) Shape() (int, int) { return ff.nRows, ff.nCols }

func (ff *FormulaField) Evaluate(region uint32, x [3]float64, out []float64) { ff.F(region, x, out) }

// FillCache evaluates src at every live cache row of the cycle. Reference
// points are mapped to physical space by the affine map of their element.
// The map must be finalized or readable.
func FillCache(cm *ElementCacheMap, m *mesh.Mesh, src ValueSource, cache *FieldValueCache) error {
	if cm.State() != StateFinalized && cm.State() != StateReading {
		return cm.invalidState("FillCache", StateFinalized, StateReading)
	}
	if r, c := src.Shape(); r != cache.nRows || c != cache.nCols {
		return fmt.Errorf("source of shape %dx%d filled into a %dx%d cache", r, c, cache.nRows, cache.nCols)
	}
	if cm.PointsInCache() > cache.NCachePoints() {
		return fmt.Errorf("%w: %d live rows, cache holds %d", ErrCapacityExceeded,
			cm.PointsInCache(), cache.NCachePoints())
	}
	ep := cm.EvalPoints()
	for slot := 0; slot < cm.NElements(); slot++ {
		var (
			elm    = int(cm.ElmIdx(slot))
			dim    = m.Elements[elm].Dim
			region = cm.RegionIdx(slot)
		)
		for p := 0; p < ep.Size(dim); p++ {
			row := cm.ElementEvalPoint(uint32(slot), p)
			if row == UnusedPoint {
				continue
			}
			src.Evaluate(region, m.MapPoint(elm, ep.Point(dim, p)), cache.Row(int(row)))
		}
	}
	return nil
}
