package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/dgcache/quadrature"
)

func TestElementCacheMapScenario(t *testing.T) {
	_, dofs := tetChain(t)
	ep, bulk, edge, cm := scenarioCache(t, DefaultCachedElements)
	maxSize, err := ep.MaxSize()
	require.NoError(t, err)
	assert.Equal(t, 16, maxSize)

	cache := NewFieldValueCache(1, 1)
	require.NoError(t, cache.Init(ep, DefaultCachedElements))
	assert.Equal(t, maxSize*DefaultCachedElements, cache.NCachePoints())

	cell := dofs.Cell(1)
	edgeSides := interiorEdgeSides(cell)
	require.Len(t, edgeSides, 4)
	require.NoError(t, cm.Add(cell))
	for _, es := range edgeSides {
		require.NoError(t, cm.AddSide(es))
	}
	assert.Equal(t, 3, cm.NAddedElements())
	require.NoError(t, cm.PrepareElementsToUpdate())

	require.NoError(t, bulk.MarkUsed(cm, cell))
	for _, es := range edgeSides {
		require.NoError(t, edge.MarkUsed(cm, es))
	}
	require.NoError(t, cm.CreateElementsPointsMap())
	assert.Equal(t, 16, cm.PointsInCache())

	for row := 0; row < cm.PointsInCache(); row++ {
		cache.Set(row, 0.5)
	}
	require.NoError(t, cm.FinishElementsUpdate())
	cm.ClearElementsToUpdate()
	assert.Equal(t, 0, cm.NAddedElements())

	// Reads stay valid after the requests are cleared
	cell = cm.Apply(cell)
	for _, q := range bulk.Points(cell) {
		v, err := cache.GetValue(cm, cell, q.EvalPointIdx())
		require.NoError(t, err)
		assert.Equal(t, 0.5, v.At(0, 0))
	}
	for _, es := range edgeSides {
		for _, q := range edge.Points(es) {
			edgeCell := cm.Apply(es.Cell())
			v, err := cache.GetScalar(cm, edgeCell, q.EvalPointIdx())
			require.NoError(t, err)
			assert.Equal(t, 0.5, v)
		}
	}
	{ // Bulk points of the neighbours were never marked
		_, err := cache.GetScalar(cm, cm.Apply(dofs.Cell(0)), bulk.Points(dofs.Cell(0))[0].EvalPointIdx())
		assert.ErrorIs(t, err, ErrUnusedPoint)
	}
}

func TestElementCacheMapRegions(t *testing.T) {
	_, dofs := regionLine(t)
	ep := NewEvalPoints()
	bulk, err := ep.AddBulk(1, quadrature.MustGauss(1, 3))
	require.NoError(t, err)
	cm := NewElementCacheMap(0)
	assert.Equal(t, DefaultCachedElements, cm.Capacity())
	require.NoError(t, cm.Init(ep))
	regionA, _ := dofs.Mesh.RegionIdx("A")
	regionB, _ := dofs.Mesh.RegionIdx("B")

	{ // Two elements of one region
		require.NoError(t, cm.Add(dofs.Cell(1)))
		require.NoError(t, cm.Add(dofs.Cell(2)))
		assert.Equal(t, 2, cm.NAddedElements())
		require.NoError(t, cm.PrepareElementsToUpdate())
		assert.Equal(t, 1, cm.NRegions())
		assert.Len(t, cm.RegionElements(regionA), 2)
		require.NoError(t, cm.CreateElementsPointsMap())
		require.NoError(t, cm.FinishElementsUpdate())
		cm.ClearElementsToUpdate()
		assert.Equal(t, 0, cm.NAddedElements())
		assert.Equal(t, 0, cm.NRegions())
		assert.Equal(t, uint32(0), cm.Apply(dofs.Cell(1)).ElementCacheIndex())
		assert.Equal(t, uint32(1), cm.Apply(dofs.Cell(2)).ElementCacheIndex())
	}
	{ // Three elements on two regions, the sorted order is A B A
		for _, elm := range []int{6, 3, 1} {
			require.NoError(t, cm.Add(dofs.Cell(elm)))
		}
		assert.Equal(t, 3, cm.NAddedElements())
		require.NoError(t, cm.PrepareElementsToUpdate())
		assert.Equal(t, 2, cm.NRegions())
		assert.Equal(t, []uint32{1, 6}, cm.RegionElements(regionA))
		assert.Equal(t, []uint32{3}, cm.RegionElements(regionB))
		assert.Equal(t, []uint32{0, 1, 2, 3}, cm.RegionsStarts())
		for _, elm := range []int{1, 3, 6} {
			require.NoError(t, bulk.MarkUsed(cm, dofs.Cell(elm)))
		}
		require.NoError(t, cm.CreateElementsPointsMap())
		chunks := cm.RegionChunks()
		require.Len(t, chunks, 3)
		assert.Equal(t, RegionChunk{Region: regionA, SlotBegin: 0, SlotEnd: 1, RowBegin: 0, RowEnd: 2}, chunks[0])
		assert.Equal(t, RegionChunk{Region: regionB, SlotBegin: 1, SlotEnd: 2, RowBegin: 2, RowEnd: 4}, chunks[1])
		assert.Equal(t, RegionChunk{Region: regionA, SlotBegin: 2, SlotEnd: 3, RowBegin: 4, RowEnd: 6}, chunks[2])
		assert.Equal(t, []uint32{0, 2, 4, 6}, cm.RegionCacheIndicesRange())
		require.NoError(t, cm.FinishElementsUpdate())
		assert.Equal(t, uint32(0), cm.Apply(dofs.Cell(1)).ElementCacheIndex())
		assert.Equal(t, uint32(2), cm.Apply(dofs.Cell(6)).ElementCacheIndex())
		assert.Equal(t, uint32(UndefElemIdx), cm.Apply(dofs.Cell(2)).ElementCacheIndex())
	}
	{ // Adjacent records of one region share a segment
		for _, elm := range []int{2, 1, 3, 4} {
			require.NoError(t, cm.Add(dofs.Cell(elm)))
		}
		require.NoError(t, cm.PrepareElementsToUpdate())
		assert.Equal(t, []uint32{0, 2, 3, 4}, cm.RegionsStarts())
	}
}

func TestElementCacheMapCapacity(t *testing.T) {
	_, dofs := regionLine(t)
	ep := NewEvalPoints()
	bulk, err := ep.AddBulk(1, quadrature.MustGauss(1, 1))
	require.NoError(t, err)
	cm := NewElementCacheMap(5)
	require.NoError(t, cm.Init(ep))
	{ // Slots are unique and round trip to their element
		for _, elm := range []int{6, 0, 4, 2, 5} {
			require.NoError(t, cm.Add(dofs.Cell(elm)))
		}
		require.NoError(t, cm.PrepareElementsToUpdate())
		assert.Equal(t, 5, cm.NElements())
		for _, elm := range []int{6, 0, 4, 2, 5} {
			require.NoError(t, bulk.MarkUsed(cm, dofs.Cell(elm)))
		}
		require.NoError(t, cm.CreateElementsPointsMap())
		require.NoError(t, cm.FinishElementsUpdate())
		seen := make(map[uint32]bool)
		for _, elm := range []int{6, 0, 4, 2, 5} {
			slot, err := cm.CacheMapIndex(dofs.Cell(elm))
			require.NoError(t, err)
			assert.Less(t, slot, uint32(5))
			assert.False(t, seen[slot])
			seen[slot] = true
			assert.Equal(t, uint32(elm), cm.ElmIdx(int(slot)))
			begin, end := cm.ElementPointRange(int(slot))
			assert.Equal(t, 1, end-begin)
		}
	}
	{ // Repeated adds count once
		for i := 0; i < 3; i++ {
			require.NoError(t, cm.Add(dofs.Cell(1)))
		}
		assert.Equal(t, 1, cm.NAddedElements())
		cm.ClearElementsToUpdate()
	}
	{ // One element too many
		for elm := 0; elm < 6; elm++ {
			require.NoError(t, cm.Add(dofs.Cell(elm)))
		}
		assert.ErrorIs(t, cm.PrepareElementsToUpdate(), ErrCapacityExceeded)
		assert.Equal(t, StateCollecting, cm.State())
	}
}

func TestElementCacheMapStates(t *testing.T) {
	_, dofs := tetChain(t)
	_, bulk, _, cm := scenarioCache(t, 4)
	cell := dofs.Cell(0)
	{ // Not initialized
		assert.ErrorIs(t, NewElementCacheMap(2).Add(cell), ErrInvalidCacheState)
	}
	assert.Equal(t, StateIdle, cm.State())
	assert.ErrorIs(t, cm.MarkUsedEvalPoints(cell, 0, 1, 0), ErrInvalidCacheState)
	assert.ErrorIs(t, cm.PrepareElementsToUpdate(), ErrInvalidCacheState)
	require.NoError(t, cm.StartElementsUpdate())
	require.NoError(t, cm.Add(cell))
	assert.ErrorIs(t, cm.CreateElementsPointsMap(), ErrInvalidCacheState)
	assert.ErrorIs(t, cm.FinishElementsUpdate(), ErrInvalidCacheState)
	require.NoError(t, cm.PrepareElementsToUpdate())
	assert.Equal(t, StatePrepared, cm.State())
	{ // Prepared
		assert.ErrorIs(t, cm.Add(dofs.Cell(1)), ErrInvalidCacheState)
		assert.ErrorIs(t, cm.StartElementsUpdate(), ErrInvalidCacheState)
		assert.ErrorIs(t, cm.MarkUsedEvalPoints(dofs.Cell(1), 0, 1, 0), ErrElementNotCached)
		assert.ErrorIs(t, cm.MarkUsedEvalPoints(cell, 0, 5, 0), ErrPointOutOfRange)
		assert.ErrorIs(t, cm.MarkUsedEvalPoints(cell, 1, 3, 10), ErrPointOutOfRange)
		assert.ErrorIs(t, cm.MarkUsedEvalPoints(cell, 7, 1, 0), ErrPointOutOfRange)
		_, err := cm.CacheMapIndex(cell)
		assert.ErrorIs(t, err, ErrStaleRead)
		assert.Panics(t, func() { cm.Apply(cell) })
	}
	require.NoError(t, bulk.MarkUsed(cm, cell))
	require.NoError(t, bulk.MarkUsed(cm, cell)) // idempotent
	require.NoError(t, cm.CreateElementsPointsMap())
	assert.Equal(t, 4, cm.PointsInCache())
	assert.Equal(t, StateFinalized, cm.State())
	assert.ErrorIs(t, cm.MarkUsedEvalPoints(cell, 0, 1, 0), ErrInvalidCacheState)
	_, err := cm.CacheMapIndex(cell)
	assert.ErrorIs(t, err, ErrStaleRead)
	require.NoError(t, cm.FinishElementsUpdate())
	assert.Equal(t, StateReading, cm.State())
	slot, err := cm.CacheMapIndex(cell)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), slot)
	{ // A new cycle invalidates the read side
		require.NoError(t, cm.Add(dofs.Cell(2)))
		assert.Equal(t, StateCollecting, cm.State())
		_, err = cm.CacheMapIndex(cell)
		assert.ErrorIs(t, err, ErrStaleRead)
	}
}

func TestElementCacheMapCycleIsolation(t *testing.T) {
	_, dofs := tetChain(t)
	_, bulk, edge, cm := scenarioCache(t, DefaultCachedElements)
	cell := dofs.Cell(1)
	runCycle := func(mark func()) {
		for _, elm := range []int{0, 1, 2} {
			require.NoError(t, cm.Add(dofs.Cell(elm)))
		}
		require.NoError(t, cm.PrepareElementsToUpdate())
		mark()
		require.NoError(t, cm.CreateElementsPointsMap())
		require.NoError(t, cm.FinishElementsUpdate())
		cm.ClearElementsToUpdate()
	}
	bulkPoints := bulk.Points(cell)
	{ // Cycle 1 marks bulk points only
		runCycle(func() { require.NoError(t, bulk.MarkUsed(cm, cell)) })
		assert.Equal(t, 4, cm.PointsInCache())
		c := cm.Apply(cell)
		for i, q := range bulkPoints {
			assert.Equal(t, int32(i), cm.ElementEvalPoint(c.ElementCacheIndex(), q.EvalPointIdx()))
		}
		for p := 4; p < cm.MaxSize(); p++ {
			assert.Equal(t, int32(UnusedPoint), cm.ElementEvalPoint(c.ElementCacheIndex(), p))
		}
	}
	{ // Cycle 2 marks one side, the bulk marks of cycle 1 are gone
		runCycle(func() { require.NoError(t, edge.MarkUsed(cm, cell.Side(0))) })
		assert.Equal(t, 3, cm.PointsInCache())
		c := cm.Apply(cell)
		for _, q := range bulkPoints {
			assert.Equal(t, int32(UnusedPoint), cm.ElementEvalPoint(c.ElementCacheIndex(), q.EvalPointIdx()))
		}
		for _, q := range edge.Points(cell.Side(0)) {
			row := cm.ElementEvalPoint(c.ElementCacheIndex(), q.EvalPointIdx())
			assert.NotEqual(t, int32(UnusedPoint), row)
			assert.Less(t, int(row), 3)
		}
	}
	{ // Slow reset and repopulation
		cm.ClearElementEvalPointsMap()
		assert.False(t, cm.ReadyToReading())
		runCycle(func() { require.NoError(t, bulk.MarkUsed(cm, dofs.Cell(2))) })
		c := cm.Apply(cell)
		for p := 0; p < cm.MaxSize(); p++ {
			assert.Equal(t, int32(UnusedPoint), cm.ElementEvalPoint(c.ElementCacheIndex(), p))
		}
		begin, end := cm.ElementPointRange(int(c.ElementCacheIndex()))
		assert.Equal(t, 0, end-begin)
	}
}
