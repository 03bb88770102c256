package fields

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/notargets/dgcache/dh"
)

const (
	// UndefElemIdx is the slot of an element not cached in this cycle.
	UndefElemIdx = math.MaxUint32
	// SimdSizeDouble is the number of doubles processed in one vector lane.
	SimdSizeDouble = 4
	// DefaultCachedElements is the default capacity of a cache map.
	DefaultCachedElements = 20
	// RegionsInChunk and ElementsInChunk size the growth steps of the
	// region and element offset tables.
	RegionsInChunk  = 3
	ElementsInChunk = 10
	// UnusedPoint marks an eval point not requested in this cycle.
	UnusedPoint = -1
)

// CacheState is the phase of an update cycle.
type CacheState uint8

const (
	StateIdle CacheState = iota
	StateCollecting
	StatePrepared
	StateFinalized
	StateReading
)

func (s CacheState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCollecting:
		return "Collecting"
	case StatePrepared:
		return "Prepared"
	case StateFinalized:
		return "Finalized"
	case StateReading:
		return "Reading"
	}
	return fmt.Sprintf("CacheState(%d)", uint8(s))
}

// EvalPointData is one element request of an update cycle. Records sort by
// element, region and local point.
type EvalPointData struct {
	ElementIdx    uint32
	RegionIdx     uint32
	LocalPointIdx int
}

func (a EvalPointData) Less(b EvalPointData) bool {
	if a.ElementIdx != b.ElementIdx {
		return a.ElementIdx < b.ElementIdx
	}
	if a.RegionIdx != b.RegionIdx {
		return a.RegionIdx < b.RegionIdx
	}
	return a.LocalPointIdx < b.LocalPointIdx
}

// RegionChunk is a run of slots of one region, adjacent in the sorted order,
// together with the cache rows of their points.
type RegionChunk struct {
	Region    uint32
	SlotBegin int
	SlotEnd   int
	RowBegin  int
	RowEnd    int
}

// updateCacheHelper holds the data of the cycle under construction.
type updateCacheHelper struct {
	addedElements    []EvalPointData
	added            map[uint32]struct{}
	regionElementMap map[uint32][]uint32
}

func (uh *updateCacheHelper) reset() {
	uh.addedElements = uh.addedElements[:0]
	clear(uh.added)
	clear(uh.regionElementMap)
}

/*
ElementCacheMap assigns cache slots to the elements of one update cycle and
compacts the eval points marked on them into cache rows.

A cycle runs StartElementsUpdate, Add/AddSide, PrepareElementsToUpdate,
MarkUsedEvalPoints, CreateElementsPointsMap, FinishElementsUpdate and ends
with ClearElementsToUpdate; the read API is valid from FinishElementsUpdate to
the start of the next cycle. There is no locking, one goroutine drives a map.
*/
type ElementCacheMap struct {
	capacity       int
	ep             *EvalPoints
	maxSize        int
	state          CacheState
	readyToReading bool

	elmIdx       []uint32          // slot -> element
	slotRegion   []uint32          // slot -> region
	elementToMap map[uint32]uint32 // element -> slot
	nElements    int

	elementEvalPoints []int32 // [slot*maxSize + point], UnusedPoint or cache row
	usedEntries       []int   // entries of elementEvalPoints set this cycle

	regionsStarts  *ChunkedVector[uint32] // segment -> first slot
	segmentRegions []uint32
	elementStarts  *ChunkedVector[uint32] // slot -> first cache row
	pointsInCache  int

	update updateCacheHelper
	logger *slog.Logger
}

type CacheMapOption func(cm *ElementCacheMap)

func WithLogger(logger *slog.Logger) CacheMapOption {
	return func(cm *ElementCacheMap) { cm.logger = logger }
}

// NewElementCacheMap creates a map for at most capacity elements per cycle,
// DefaultCachedElements if capacity is not positive.
func NewElementCacheMap(capacity int, opts ...CacheMapOption) (cm *ElementCacheMap) {
	if capacity <= 0 {
		capacity = DefaultCachedElements
	}
	cm = &ElementCacheMap{
		capacity:      capacity,
		elmIdx:        make([]uint32, capacity),
		slotRegion:    make([]uint32, capacity),
		elementToMap:  make(map[uint32]uint32, capacity),
		regionsStarts: NewChunkedVector[uint32](2*RegionsInChunk, RegionsInChunk),
		elementStarts: NewChunkedVector[uint32](2*ElementsInChunk, ElementsInChunk),
		update: updateCacheHelper{
			added:            make(map[uint32]struct{}),
			regionElementMap: make(map[uint32][]uint32),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cm)
	}
	for i := range cm.elmIdx {
		cm.elmIdx[i] = UndefElemIdx
	}
	return
}

// Init binds the eval points and allocates the point table. The eval points
// are closed, no subsets may be added afterwards.
func (cm *ElementCacheMap) Init(ep *EvalPoints) (err error) {
	if cm.maxSize, err = ep.MaxSize(); err != nil {
		return
	}
	ep.Close()
	cm.ep = ep
	cm.elementEvalPoints = make([]int32, cm.capacity*cm.maxSize)
	cm.usedEntries = make([]int, 0, cm.capacity*cm.maxSize)
	cm.ClearElementEvalPointsMap()
	return
}

func (cm *ElementCacheMap) invalidState(op string, allowed ...CacheState) error {
	return fmt.Errorf("%w: %s in state %s, allowed %v", ErrInvalidCacheState, op, cm.state, allowed)
}

func (cm *ElementCacheMap) inState(allowed ...CacheState) bool {
	for _, s := range allowed {
		if cm.state == s {
			return true
		}
	}
	return false
}

// StartElementsUpdate opens a new cycle and invalidates the read side.
func (cm *ElementCacheMap) StartElementsUpdate() error {
	if cm.ep == nil {
		return fmt.Errorf("%w: cache map not initialized", ErrInvalidCacheState)
	}
	if cm.inState(StatePrepared, StateFinalized) {
		return cm.invalidState("StartElementsUpdate", StateIdle, StateCollecting, StateReading)
	}
	cm.readyToReading = false
	if cm.state != StateCollecting {
		cm.update.reset()
	}
	cm.state = StateCollecting
	return nil
}

// Add registers the element of cell for the current cycle, a cycle is
// started if none is open. Adding an element twice is a no-op.
func (cm *ElementCacheMap) Add(cell dh.DHCellAccessor) (err error) {
	if cm.state != StateCollecting {
		if err = cm.StartElementsUpdate(); err != nil {
			return
		}
	}
	elm := cell.ElmIdx()
	if _, ok := cm.update.added[elm]; ok {
		return
	}
	cm.update.added[elm] = struct{}{}
	cm.update.addedElements = append(cm.update.addedElements, EvalPointData{
		ElementIdx:    elm,
		RegionIdx:     cell.RegionIdx(),
		LocalPointIdx: UnusedPoint,
	})
	return
}

// AddSide registers the element owning side.
func (cm *ElementCacheMap) AddSide(side dh.DHCellSide) error {
	return cm.Add(side.Cell())
}

/*
PrepareElementsToUpdate assigns the slots of the cycle. The added elements are
sorted by (element, region) and a linear pass gives each element the next
slot and opens a new region segment whenever the region differs from the
previous record. A region returning after another one gets a second segment.
*/
func (cm *ElementCacheMap) PrepareElementsToUpdate() (err error) {
	if cm.state != StateCollecting {
		return cm.invalidState("PrepareElementsToUpdate", StateCollecting)
	}
	added := cm.update.addedElements
	if len(added) > cm.capacity {
		return fmt.Errorf("%w: %d elements added, capacity %d", ErrCapacityExceeded, len(added), cm.capacity)
	}
	sort.Slice(added, func(i, j int) bool { return added[i].Less(added[j]) })

	// Drop the data of the previous cycle
	for _, entry := range cm.usedEntries {
		cm.elementEvalPoints[entry] = UnusedPoint
	}
	cm.usedEntries = cm.usedEntries[:0]
	cm.regionsStarts.Reset()
	cm.elementStarts.Reset()
	cm.segmentRegions = cm.segmentRegions[:0]
	clear(cm.elementToMap)
	for slot := 0; slot < cm.nElements; slot++ {
		cm.elmIdx[slot] = UndefElemIdx
	}
	cm.pointsInCache = 0

	var (
		lastRegion = uint32(UndefElemIdx)
		slot       int
	)
	for _, rec := range added {
		if slot == 0 || rec.RegionIdx != lastRegion {
			cm.regionsStarts.PushBack(uint32(slot))
			cm.segmentRegions = append(cm.segmentRegions, rec.RegionIdx)
			lastRegion = rec.RegionIdx
		}
		cm.elmIdx[slot] = rec.ElementIdx
		cm.slotRegion[slot] = rec.RegionIdx
		cm.elementToMap[rec.ElementIdx] = uint32(slot)
		cm.update.regionElementMap[rec.RegionIdx] = append(cm.update.regionElementMap[rec.RegionIdx], rec.ElementIdx)
		slot++
	}
	cm.regionsStarts.PushBack(uint32(slot))
	cm.regionsStarts.MakePermanent()
	cm.nElements = slot
	cm.state = StatePrepared
	cm.logger.Debug("cache elements prepared",
		slog.Int("elements", cm.nElements),
		slog.Int("segments", len(cm.segmentRegions)),
		slog.Int("regions", len(cm.update.regionElementMap)))
	return
}

// MarkUsedEvalPoints marks nPoints consecutive points of subset, starting at
// offset within the subset, as used on the element of cell. Marking a point
// twice is a no-op.
func (cm *ElementCacheMap) MarkUsedEvalPoints(cell dh.DHCellAccessor, subset, nPoints, offset int) error {
	if cm.state != StatePrepared {
		return cm.invalidState("MarkUsedEvalPoints", StatePrepared)
	}
	slot, ok := cm.elementToMap[cell.ElmIdx()]
	if !ok {
		return fmt.Errorf("%w: element %d", ErrElementNotCached, cell.ElmIdx())
	}
	dim := cell.Dim()
	if subset < 0 || subset >= cm.ep.NSubsets(dim) {
		return fmt.Errorf("%w: subset %d of dimension %d, have %d subsets",
			ErrPointOutOfRange, subset, dim, cm.ep.NSubsets(dim))
	}
	var (
		begin = cm.ep.SubsetBegin(dim, subset) + offset
		end   = begin + nPoints
	)
	if offset < 0 || nPoints < 0 || end > cm.ep.SubsetEnd(dim, subset) {
		return fmt.Errorf("%w: points [%d,%d) outside subset %d [%d,%d)", ErrPointOutOfRange,
			begin, end, subset, cm.ep.SubsetBegin(dim, subset), cm.ep.SubsetEnd(dim, subset))
	}
	base := int(slot) * cm.maxSize
	for p := begin; p < end; p++ {
		if cm.elementEvalPoints[base+p] == UnusedPoint {
			// provisional value, the row is assigned by CreateElementsPointsMap
			cm.elementEvalPoints[base+p] = int32(len(cm.usedEntries))
			cm.usedEntries = append(cm.usedEntries, base+p)
		}
	}
	return nil
}

// CreateElementsPointsMap compacts the marked points slot by slot into
// consecutive cache rows.
func (cm *ElementCacheMap) CreateElementsPointsMap() error {
	if cm.state != StatePrepared {
		return cm.invalidState("CreateElementsPointsMap", StatePrepared)
	}
	var row int32
	for slot := 0; slot < cm.nElements; slot++ {
		cm.elementStarts.PushBack(uint32(row))
		entries := cm.elementEvalPoints[slot*cm.maxSize : (slot+1)*cm.maxSize]
		for p, v := range entries {
			if v != UnusedPoint {
				entries[p] = row
				row++
			}
		}
	}
	cm.elementStarts.PushBack(uint32(row))
	cm.elementStarts.MakePermanent()
	cm.pointsInCache = int(row)
	cm.state = StateFinalized
	cm.logger.Debug("cache points compacted",
		slog.Int("elements", cm.nElements),
		slog.Int("points", cm.pointsInCache))
	return nil
}

// FinishElementsUpdate opens the read side of the cycle.
func (cm *ElementCacheMap) FinishElementsUpdate() error {
	if cm.state != StateFinalized {
		return cm.invalidState("FinishElementsUpdate", StateFinalized)
	}
	cm.state = StateReading
	cm.readyToReading = true
	return nil
}

// ClearElementsToUpdate drops the requests of the cycle. Slots, compacted
// rows and the read side stay valid until the next cycle starts.
func (cm *ElementCacheMap) ClearElementsToUpdate() {
	cm.update.reset()
	if cm.state != StateReading {
		cm.state = StateIdle
	}
}

// ClearElementEvalPointsMap resets every point of every slot to UnusedPoint.
// It is the slow full reset, it invalidates the read side.
func (cm *ElementCacheMap) ClearElementEvalPointsMap() {
	for i := range cm.elementEvalPoints {
		cm.elementEvalPoints[i] = UnusedPoint
	}
	cm.usedEntries = cm.usedEntries[:0]
	cm.update.reset()
	cm.readyToReading = false
	cm.state = StateIdle
}

/*
Read API
*/

// CacheMapIndex returns the slot of the element of cell or UndefElemIdx.
func (cm *ElementCacheMap) CacheMapIndex(cell dh.DHCellAccessor) (uint32, error) {
	if !cm.readyToReading {
		return UndefElemIdx, ErrStaleRead
	}
	if slot, ok := cm.elementToMap[cell.ElmIdx()]; ok {
		return slot, nil
	}
	return UndefElemIdx, nil
}

// Apply returns cell carrying its slot. It panics when called outside the
// read side of a cycle.
func (cm *ElementCacheMap) Apply(cell dh.DHCellAccessor) dh.DHCellAccessor {
	slot, err := cm.CacheMapIndex(cell)
	if err != nil {
		panic(fmt.Errorf("cache lookup of element %d: %w", cell.ElmIdx(), err))
	}
	return cell.SetElementCacheIndex(slot)
}

// ElementEvalPoint returns the cache row of point of slot or UnusedPoint.
// Indices are not checked.
func (cm *ElementCacheMap) ElementEvalPoint(slot uint32, point int) int32 {
	return cm.elementEvalPoints[int(slot)*cm.maxSize+point]
}

// ElmIdx returns the element in slot or UndefElemIdx.
func (cm *ElementCacheMap) ElmIdx(slot int) uint32 { return cm.elmIdx[slot] }

// RegionIdx returns the region of the element in slot.
func (cm *ElementCacheMap) RegionIdx(slot int) uint32 { return cm.slotRegion[slot] }

// NElements is the number of slots used in the cycle.
func (cm *ElementCacheMap) NElements() int { return cm.nElements }

// PointsInCache is the number of live cache rows of the cycle.
func (cm *ElementCacheMap) PointsInCache() int { return cm.pointsInCache }

func (cm *ElementCacheMap) Capacity() int { return cm.capacity }

func (cm *ElementCacheMap) MaxSize() int { return cm.maxSize }

func (cm *ElementCacheMap) State() CacheState { return cm.state }

func (cm *ElementCacheMap) ReadyToReading() bool { return cm.readyToReading }

func (cm *ElementCacheMap) EvalPoints() *EvalPoints { return cm.ep }

// ElementPointRange returns the cache rows [begin, end) of slot.
func (cm *ElementCacheMap) ElementPointRange(slot int) (begin, end int) {
	return int(cm.elementStarts.At(slot)), int(cm.elementStarts.At(slot + 1))
}

// RegionsStarts returns the segment offsets into the slots, the last entry
// being the number of slots.
func (cm *ElementCacheMap) RegionsStarts() []uint32 { return cm.regionsStarts.Permanent() }

// ElementStarts returns the slot offsets into the cache rows, the last entry
// being PointsInCache.
func (cm *ElementCacheMap) ElementStarts() []uint32 { return cm.elementStarts.Permanent() }

// RegionChunks returns the region segments of the cycle with their slot and
// row ranges, in slot order.
func (cm *ElementCacheMap) RegionChunks() (chunks []RegionChunk) {
	var (
		starts = cm.regionsStarts.Permanent()
		rows   = cm.elementStarts.Permanent()
	)
	chunks = make([]RegionChunk, len(cm.segmentRegions))
	for i, region := range cm.segmentRegions {
		chunks[i] = RegionChunk{
			Region:    region,
			SlotBegin: int(starts[i]),
			SlotEnd:   int(starts[i+1]),
		}
		if len(rows) > 0 {
			chunks[i].RowBegin, chunks[i].RowEnd = int(rows[starts[i]]), int(rows[starts[i+1]])
		}
	}
	return
}

// RegionCacheIndicesRange returns the row offsets of the region segments,
// the last entry being PointsInCache.
func (cm *ElementCacheMap) RegionCacheIndicesRange() (rng []uint32) {
	rows := cm.elementStarts.Permanent()
	if len(rows) == 0 {
		return
	}
	for _, s := range cm.regionsStarts.Permanent() {
		rng = append(rng, rows[s])
	}
	return
}

// NAddedElements is the number of elements registered in the open cycle.
func (cm *ElementCacheMap) NAddedElements() int { return len(cm.update.addedElements) }

// NRegions is the number of distinct regions of the elements registered in
// the cycle.
func (cm *ElementCacheMap) NRegions() int { return len(cm.update.regionElementMap) }

// RegionElements returns the elements of region registered in the cycle.
func (cm *ElementCacheMap) RegionElements(region uint32) []uint32 {
	return cm.update.regionElementMap[region]
}
