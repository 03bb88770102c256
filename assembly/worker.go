package assembly

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notargets/dgcache/dh"
	"github.com/notargets/dgcache/fields"
)

// worker assembles the cells [begin, end) of one partition in cache cycles of
// at most capacity elements.
type worker struct {
	a          *Assembler
	partition  int
	begin, end int
	cm         *fields.ElementCacheMap
	caches     *valueCaches
	out        []Systems
	logger     *slog.Logger

	// current batch
	batch    []dh.DHCellAccessor
	elements []uint32
	members  map[uint32]struct{}
	nCycles  int
}

func (a *Assembler) newWorker(partition, begin, end int) (w *worker, err error) {
	w = &worker{
		a:         a,
		partition: partition,
		begin:     begin,
		end:       end,
		logger:    a.logger.With("partition", partition),
		members:   make(map[uint32]struct{}),
		out:       make([]Systems, len(a.model.Substances)),
	}
	w.cm = fields.NewElementCacheMap(a.capacity, fields.WithLogger(w.logger))
	if err = w.cm.Init(a.integrals.EvalPoints); err != nil {
		return
	}
	if w.caches, err = newValueCaches(a.model, a.integrals.EvalPoints, a.capacity); err != nil {
		return
	}
	for s, sub := range a.model.Substances {
		w.out[s] = newSystems(a.dofs.NDofs(), sub.Name)
	}
	return
}

// closure returns the elements whose values the kernels read when assembling
// cell: the cell, the other sides of the edges it owns and the higher
// dimensional cells it couples with.
func (w *worker) closure(cell dh.DHCellAccessor) (elms []uint32) {
	elms = append(elms, cell.ElmIdx())
	for _, side := range cell.Sides() {
		if !ownsEdge(side) {
			continue
		}
		for _, other := range side.EdgeSides()[1:] {
			elms = append(elms, other.Cell().ElmIdx())
		}
	}
	for _, nb := range cell.NeighbourSides() {
		elms = append(elms, nb.Higher.Cell().ElmIdx())
	}
	return
}

// ownsEdge reports whether side is the first of an interior edge, the side
// whose cell assembles the edge terms.
func ownsEdge(side dh.DHCellSide) bool {
	if side.NEdgeSides() < 2 {
		return false
	}
	first := side.EdgeSides()[0]
	return first.Cell().ElmIdx() == side.Cell().ElmIdx() && first.SideIdx() == side.SideIdx()
}

func (w *worker) run(ctx context.Context) (err error) {
	for elm := w.begin; elm < w.end; elm++ {
		cell := w.a.dofs.Cell(elm)
		var (
			cl    = w.closure(cell)
			added []uint32
		)
		for _, e := range cl {
			if _, ok := w.members[e]; !ok && !contains(added, e) {
				added = append(added, e)
			}
		}
		if len(w.elements)+len(added) > w.a.capacity {
			if len(w.batch) == 0 {
				return fmt.Errorf("%w: cell %d needs %d elements, capacity is %d",
					fields.ErrCapacityExceeded, elm, len(added), w.a.capacity)
			}
			if err = w.flush(ctx); err != nil {
				return
			}
			elm-- // retry against the empty batch
			continue
		}
		for _, e := range added {
			w.members[e] = struct{}{}
		}
		w.elements = append(w.elements, added...)
		w.batch = append(w.batch, cell)
	}
	if len(w.batch) > 0 {
		err = w.flush(ctx)
	}
	w.logger.Debug("partition assembled", "cells", w.end-w.begin, "cycles", w.nCycles)
	return
}

func contains(elms []uint32, e uint32) bool {
	for _, x := range elms {
		if x == e {
			return true
		}
	}
	return false
}

// flush runs one cache cycle over the current batch.
func (w *worker) flush(ctx context.Context) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	var (
		cm   = w.cm
		dofs = w.a.dofs
	)
	if err = cm.StartElementsUpdate(); err != nil {
		return
	}
	for _, e := range w.elements {
		if err = cm.Add(dofs.Cell(int(e))); err != nil {
			return
		}
	}
	if err = cm.PrepareElementsToUpdate(); err != nil {
		return
	}
	for _, cell := range w.batch {
		for _, k := range w.a.kernels {
			if err = k.MarkPoints(w, cell); err != nil {
				return fmt.Errorf("%s kernel on %v: %w", k.Name(), cell, err)
			}
		}
	}
	if err = cm.CreateElementsPointsMap(); err != nil {
		return
	}
	if err = w.caches.fill(cm, dofs.Mesh, w.a.model); err != nil {
		return
	}
	if err = cm.FinishElementsUpdate(); err != nil {
		return
	}
	for _, cell := range w.batch {
		cell = cm.Apply(cell)
		for _, k := range w.a.kernels {
			if err = k.Assemble(w, cell); err != nil {
				return fmt.Errorf("%s kernel on %v: %w", k.Name(), cell, err)
			}
		}
	}
	recordCycle(ctx, w.partition, cm.NElements(), cm.PointsInCache())
	w.nCycles++
	cm.ClearElementsToUpdate()
	w.batch = w.batch[:0]
	w.elements = w.elements[:0]
	clear(w.members)
	return
}
