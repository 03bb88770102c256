// Package assembly drives cache cycles of an element cache map over a mesh
// and assembles discontinuous Galerkin advection diffusion systems from the
// cached coefficient values.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/dgcache/dh"
	"github.com/notargets/dgcache/fields"
	"github.com/notargets/dgcache/la"
	"github.com/notargets/dgcache/mesh"
	"github.com/notargets/dgcache/quadrature"
	"github.com/notargets/dgcache/utils"
)

// Integrals are the eval point subsets registered per element dimension d:
// the bulk rule on d elements, the side rule on their sides, and the side
// rule paired with d-1 elements for boundary and coupling terms.
type Integrals struct {
	EvalPoints *fields.EvalPoints
	Bulk       [fields.MaxDim + 1]*fields.BulkIntegral
	Edge       [fields.MaxDim + 1]*fields.EdgeIntegral
	Boundary   [fields.MaxDim + 1]*fields.BoundaryIntegral
	Coupling   [fields.MaxDim + 1]*fields.CouplingIntegral
}

// NewIntegrals registers the rules of the given orders for every element
// dimension present in m.
func NewIntegrals(m *mesh.Mesh, bulkOrder, sideOrder int) (in *Integrals, err error) {
	in = &Integrals{EvalPoints: fields.NewEvalPoints()}
	var present [fields.MaxDim + 1]bool
	for i := range m.Elements {
		present[m.Elements[i].Dim] = true
	}
	ep := in.EvalPoints
	for d := 1; d <= fields.MaxDim; d++ {
		if !present[d] {
			continue
		}
		var qBulk, qSide *quadrature.Quadrature
		if qBulk, err = quadrature.NewGauss(d, bulkOrder); err != nil {
			return
		}
		if qSide, err = quadrature.NewGauss(d-1, sideOrder); err != nil {
			return
		}
		if in.Bulk[d], err = ep.AddBulk(d, qBulk); err != nil {
			return
		}
		if in.Edge[d], err = ep.AddEdge(d, qSide); err != nil {
			return
		}
		var sideBulk *fields.BulkIntegral
		if sideBulk, err = ep.AddBulk(d-1, qSide); err != nil {
			return
		}
		if in.Boundary[d], err = fields.NewBoundaryIntegral(in.Edge[d], sideBulk); err != nil {
			return
		}
		if in.Coupling[d], err = fields.NewCouplingIntegral(in.Edge[d], sideBulk); err != nil {
			return
		}
	}
	return
}

// Systems are the global systems of one substance.
type Systems struct {
	Mass      *la.System
	Stiffness *la.System // carries the right hand side
}

func newSystems(n int, name string) Systems {
	return Systems{
		Mass:      la.NewSystem(n, name+".mass"),
		Stiffness: la.NewSystem(n, name+".stiffness"),
	}
}

type Option func(a *Assembler)

// WithCapacity sets the number of elements cached per cycle.
func WithCapacity(capacity int) Option {
	return func(a *Assembler) { a.capacity = capacity }
}

// WithPartitions sets the number of partitions assembled concurrently.
func WithPartitions(n int) Option {
	return func(a *Assembler) { a.partitions = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// WithKernels replaces the default kernel set.
func WithKernels(kernels ...Kernel) Option {
	return func(a *Assembler) { a.kernels = kernels }
}

// Assembler assembles a Model on the dofs of a DOFHandler.
type Assembler struct {
	dofs       *dh.DOFHandler
	model      *Model
	integrals  *Integrals
	basis      [fields.MaxDim + 1]Basis
	kernels    []Kernel
	capacity   int
	partitions int
	logger     *slog.Logger
}

func NewAssembler(dofs *dh.DOFHandler, model *Model, in *Integrals, opts ...Option) (a *Assembler, err error) {
	if err = model.Validate(); err != nil {
		return
	}
	if dofs.NDofs() == 0 {
		err = fmt.Errorf("nothing to assemble on a mesh without dofs")
		return
	}
	a = &Assembler{
		dofs:       dofs,
		model:      model,
		integrals:  in,
		kernels:    DefaultKernels(),
		capacity:   fields.DefaultCachedElements,
		partitions: 1,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.partitions < 1 {
		err = fmt.Errorf("need at least one partition, have %d", a.partitions)
		return
	}
	if a.capacity < 1 {
		err = fmt.Errorf("cache capacity must be positive, have %d", a.capacity)
		return
	}
	for d := range a.basis {
		if a.basis[d], err = NewBasis(d, dofs.Order); err != nil {
			return
		}
	}
	return
}

func (a *Assembler) Integrals() *Integrals { return a.integrals }

// Assemble runs all kernels over all cells and returns one Systems per
// substance. Partitions run concurrently, each with its own cache map and
// value caches, and their systems are merged.
func (a *Assembler) Assemble(ctx context.Context) (out []Systems, err error) {
	var (
		nCells = a.dofs.NCells()
		pm     *utils.PartitionMap
	)
	ctx, span := startAssemblySpan(ctx, nCells, a.partitions)
	defer span.End()
	if pm, err = utils.NewPartitionMap(a.partitions, nCells); err != nil {
		return
	}
	workers := make([]*worker, a.partitions)
	for np := range workers {
		begin, end := pm.GetBucketRange(np)
		if workers[np], err = a.newWorker(np, begin, end); err != nil {
			return
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			start := time.Now()
			defer func() { recordAssembly(gctx, w.partition, time.Since(start)) }()
			return w.run(gctx)
		})
	}
	if err = g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	out = workers[0].out
	for _, w := range workers[1:] {
		for s := range out {
			if err = out[s].Mass.Merge(w.out[s].Mass); err != nil {
				return
			}
			if err = out[s].Stiffness.Merge(w.out[s].Stiffness); err != nil {
				return
			}
		}
	}
	a.logger.Info("assembled",
		"cells", nCells, "dofs", a.dofs.NDofs(), "partitions", a.partitions,
		"substances", len(out))
	return
}
