package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dgcache/quadrature"
)

func TestFieldValueCacheRoundTrip(t *testing.T) {
	_, dofs := tetChain(t)
	ep, bulk, edge, cm := scenarioCache(t, DefaultCachedElements)
	vec := NewFieldValueCache(3, 1)
	require.NoError(t, vec.Init(ep, cm.Capacity()))
	tensor := NewFieldValueCache(2, 2)
	require.NoError(t, tensor.Init(ep, cm.Capacity()))

	for elm := 0; elm < 3; elm++ {
		require.NoError(t, cm.Add(dofs.Cell(elm)))
	}
	require.NoError(t, cm.PrepareElementsToUpdate())
	type mark struct {
		elm, point int
	}
	var marks []mark
	for elm := 0; elm < 3; elm++ {
		cell := dofs.Cell(elm)
		require.NoError(t, bulk.MarkUsed(cm, cell))
		for _, q := range bulk.Points(cell) {
			marks = append(marks, mark{elm, q.EvalPointIdx()})
		}
	}
	side := dofs.Cell(2).Side(3)
	require.NoError(t, edge.MarkUsed(cm, side))
	for _, q := range edge.Points(side) {
		marks = append(marks, mark{2, q.EvalPointIdx()})
	}
	require.NoError(t, cm.CreateElementsPointsMap())
	require.Equal(t, len(marks), cm.PointsInCache())

	{ // Reads before the update finished are stale
		_, err := vec.GetVector(cm, dofs.Cell(0), 0)
		assert.ErrorIs(t, err, ErrStaleRead)
	}
	for row := 0; row < cm.PointsInCache(); row++ {
		vec.Set(row, float64(row), 2*float64(row), 3*float64(row))
		tensor.SetMatrix(row, mat.NewDense(2, 2, []float64{float64(row), 1, 2, 3}))
	}
	require.NoError(t, cm.FinishElementsUpdate())

	// Every marked point resolves to a live row holding what was written there
	seen := make(map[int]bool)
	for _, mk := range marks {
		cell := cm.Apply(dofs.Cell(mk.elm))
		row := int(cm.ElementEvalPoint(cell.ElementCacheIndex(), mk.point))
		require.Less(t, row, cm.PointsInCache())
		assert.False(t, seen[row])
		seen[row] = true
		v, err := vec.GetVector(cm, cell, mk.point)
		require.NoError(t, err)
		assert.Equal(t, []float64{float64(row), 2 * float64(row), 3 * float64(row)}, v)
		d, err := tensor.GetValue(cm, cell, mk.point)
		require.NoError(t, err)
		assert.True(t, mat.Equal(d, mat.NewDense(2, 2, []float64{float64(row), 1, 2, 3})))
		// Without a slot carried by the accessor the map is asked
		s, err := vec.GetScalar(cm, dofs.Cell(mk.elm), mk.point)
		require.NoError(t, err)
		assert.Equal(t, float64(row), s)
	}
	{ // Errors
		_, err := vec.GetScalar(cm, cm.Apply(dofs.Cell(0)), 4)
		assert.ErrorIs(t, err, ErrUnusedPoint)
		_, err = vec.GetScalar(cm, cm.Apply(dofs.Cell(0)), 99)
		assert.ErrorIs(t, err, ErrPointOutOfRange)
		assert.Panics(t, func() { vec.Set(0, 1) })
		assert.Panics(t, func() { vec.SetMatrix(0, mat.NewDense(2, 2, nil)) })
		assert.Panics(t, func() { NewFieldValueCache(0, 1) })
	}
}

func TestFillCache(t *testing.T) {
	m, dofs := tetChain(t)
	ep, bulk, edge, cm := scenarioCache(t, DefaultCachedElements)
	cache := NewFieldValueCache(1, 1)
	require.NoError(t, cache.Init(ep, cm.Capacity()))
	cell := dofs.Cell(1)
	require.NoError(t, cm.Add(cell))
	require.NoError(t, cm.PrepareElementsToUpdate())
	require.NoError(t, bulk.MarkUsed(cm, cell))
	require.NoError(t, edge.MarkUsed(cm, cell.Side(2)))
	require.NoError(t, cm.CreateElementsPointsMap())

	f := NewFormulaField(1, 1, func(_ uint32, x [3]float64, out []float64) {
		out[0] = x[0] + 2*x[1] + 3*x[2]
	})
	require.NoError(t, FillCache(cm, m, f, cache))
	require.NoError(t, cm.FinishElementsUpdate())
	cell = cm.Apply(cell)
	check := func(point int, ref []float64) {
		x := m.MapPoint(1, ref)
		v, err := cache.GetScalar(cm, cell, point)
		require.NoError(t, err)
		assert.InDelta(t, x[0]+2*x[1]+3*x[2], v, 1.e-12)
	}
	for _, q := range bulk.Points(cell) {
		check(q.EvalPointIdx(), q.Coords())
	}
	for _, q := range edge.Points(cell.Side(2)) {
		check(q.EvalPointIdx(), q.Coords())
	}
	{ // Constant per region
		region := m.Elements[1].Region
		cf, err := NewConstantField(1, 1, 1.)
		require.NoError(t, err)
		require.NoError(t, cf.SetRegion(region, 7.))
		require.NoError(t, FillCache(cm, m, cf, cache))
		v, err := cache.GetScalar(cm, cell, 0)
		require.NoError(t, err)
		assert.Equal(t, 7., v)
		assert.Error(t, cf.SetRegion(region, 1, 2))
		_, err = NewConstantField(2, 1, 1.)
		assert.Error(t, err)
		vec, _ := NewConstantField(3, 1, 1, 2, 3)
		assert.Error(t, FillCache(cm, m, vec, cache))
	}
	{ // Only a finalized map can be filled
		require.NoError(t, cm.Add(dofs.Cell(0)))
		assert.ErrorIs(t, FillCache(cm, m, f, cache), ErrInvalidCacheState)
	}
}

func TestFieldValueCacheSlotOfEarlierCycle(t *testing.T) {
	_, dofs := regionLine(t)
	ep := NewEvalPoints()
	bulk, err := ep.AddBulk(1, quadrature.MustGauss(1, 1))
	require.NoError(t, err)
	cm := NewElementCacheMap(4)
	require.NoError(t, cm.Init(ep))
	cache := NewFieldValueCache(1, 1)
	require.NoError(t, cache.Init(ep, cm.Capacity()))

	cycle := func(elms ...int) {
		require.NoError(t, cm.StartElementsUpdate())
		for _, elm := range elms {
			require.NoError(t, cm.Add(dofs.Cell(elm)))
		}
		require.NoError(t, cm.PrepareElementsToUpdate())
		for _, elm := range elms {
			require.NoError(t, bulk.MarkUsed(cm, dofs.Cell(elm)))
		}
		require.NoError(t, cm.CreateElementsPointsMap())
		for slot := 0; slot < cm.NElements(); slot++ {
			begin, end := cm.ElementPointRange(slot)
			for row := begin; row < end; row++ {
				cache.Set(row, float64(cm.ElmIdx(slot)))
			}
		}
		require.NoError(t, cm.FinishElementsUpdate())
	}
	cycle(0, 5)
	old := cm.Apply(dofs.Cell(5))
	require.Equal(t, uint32(1), old.ElementCacheIndex())
	cm.ClearElementsToUpdate()

	cycle(5, 6)
	require.Equal(t, uint32(6), cm.ElmIdx(1))
	{ // The accessor of the earlier cycle still reads its own element
		v, err := cache.GetScalar(cm, old, 0)
		require.NoError(t, err)
		assert.Equal(t, 5., v)
		v, err = cache.GetScalar(cm, cm.Apply(dofs.Cell(6)), 0)
		require.NoError(t, err)
		assert.Equal(t, 6., v)
	}
	cm.ClearElementsToUpdate()

	cycle(1)
	{ // A slot past the live elements is not trusted either
		_, err := cache.GetScalar(cm, old, 0)
		assert.ErrorIs(t, err, ErrElementNotCached)
	}
}
