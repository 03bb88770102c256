package assembly

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/dgcache/dh"
	"github.com/notargets/dgcache/fields"
	"github.com/notargets/dgcache/la"
	"github.com/notargets/dgcache/mesh"
	"github.com/notargets/dgcache/types"
)

func constant(t *testing.T, vals ...float64) *fields.ConstantField {
	nRows := len(vals)
	cf, err := fields.NewConstantField(nRows, 1, vals...)
	require.NoError(t, err)
	return cf
}

func testModel(t *testing.T, porosity float64, velocity ...float64) *Model {
	if len(velocity) == 0 {
		velocity = []float64{0, 0, 0}
	}
	return &Model{
		Substances: []Substance{{
			Name:          "A",
			Porosity:      constant(t, porosity),
			Diffusion:     constant(t, 0.1),
			Source:        constant(t, 1),
			Sigma:         constant(t, 2),
			BoundaryValue: constant(t, 3),
			BoundaryType:  types.BC_Dirichlet,
		}},
		Velocity: constant(t, velocity...),
		Penalty:  10,
	}
}

func setup(t *testing.T, dim int, fracture bool) (dofs *dh.DOFHandler, in *Integrals) {
	div := []int{2, 2, 2}
	size := []float64{1, 1, 1}
	m, err := mesh.NewBoxMesh(dim, div, size, nil)
	require.NoError(t, err)
	if fracture {
		n, err := m.EmbedLowerDim("fracture", func(c [3]float64) bool { return math.Abs(c[0]-0.5) < 1.e-9 })
		require.NoError(t, err)
		require.Positive(t, n)
	}
	dofs, err = dh.NewDOFHandler(m, 1)
	require.NoError(t, err)
	in, err = NewIntegrals(m, 2, 2)
	require.NoError(t, err)
	return
}

func assemble(t *testing.T, dofs *dh.DOFHandler, in *Integrals, md *Model, opts ...Option) []Systems {
	a, err := NewAssembler(dofs, md, in, opts...)
	require.NoError(t, err)
	out, err := a.Assemble(context.Background())
	require.NoError(t, err)
	require.Len(t, out, len(md.Substances))
	return out
}

func rowSums(s *la.System) (sums []float64) {
	sums = make([]float64, s.Size())
	s.A.DoNonZero(func(i, _ int, v float64) { sums[i] += v })
	return
}

func entrySum(s *la.System) (sum float64) {
	return floats.Sum(rowSums(s))
}

func TestBasis(t *testing.T) {
	m, err := mesh.NewBoxMesh(3, []int{1, 1, 1}, []float64{2, 1, 1}, nil)
	require.NoError(t, err)
	for _, order := range []int{0, 1} {
		b, err := NewBasis(3, order)
		require.NoError(t, err)
		assert.Equal(t, dh.NLocalDofs(3, order), b.N)
		phi := make([]float64, b.N)
		b.Values([]float64{0.1, 0.2, 0.3}, phi)
		assert.InDelta(t, 1., floats.Sum(phi), 1.e-14)
		g, err := b.Grads(m, 0)
		require.NoError(t, err)
		for k := 0; k < 3; k++ { // gradients of a partition of unity sum to zero
			var sum float64
			for i := 0; i < b.N; i++ {
				sum += g.At(k, i)
			}
			assert.InDelta(t, 0., sum, 1.e-12)
		}
	}
	_, err = NewBasis(2, 2)
	assert.Error(t, err)
}

func TestAssembleMass(t *testing.T) {
	for dim := 1; dim <= 3; dim++ {
		dofs, in := setup(t, dim, false)
		out := assemble(t, dofs, in, testModel(t, 2), WithKernels(MassKernel{}))
		mass := out[0].Mass
		assert.True(t, mass.IsSymmetric(1.e-14))
		// The basis sums to one, so all entries sum to the porosity weighted volume
		assert.InDelta(t, 2., entrySum(mass), 1.e-12)
		for i := 0; i < mass.Size(); i++ {
			assert.Positive(t, mass.At(i, i))
		}
		assert.Zero(t, out[0].Stiffness.NNZ())
	}
}

func TestAssembleStiffness(t *testing.T) {
	dofs, in := setup(t, 2, true)
	{ // Constants lie in the kernel of all terms but the boundary
		md := testModel(t, 1, 1, 0.5, 0)
		out := assemble(t, dofs, in, md,
			WithKernels(StiffnessKernel{}, EdgeKernel{}, CouplingKernel{}))
		for i, sum := range rowSums(out[0].Stiffness) {
			assert.InDelta(t, 0., sum, 1.e-10, "row %d", i)
		}
		// The source integrates over the bulk and the fracture
		assert.InDelta(t, 1.+1., floats.Sum(out[0].Stiffness.RHS.RawVector().Data), 1.e-12)
	}
	{ // Without advection the operator is symmetric
		out := assemble(t, dofs, in, testModel(t, 1))
		assert.True(t, out[0].Stiffness.IsSymmetric(1.e-12))
		assert.True(t, out[0].Mass.IsSymmetric(1.e-14))
	}
	{ // Coupling ties the fracture dofs to the bulk
		out := assemble(t, dofs, in, testModel(t, 1), WithKernels(CouplingKernel{}))
		k := out[0].Stiffness
		frac := dofs.Cell(dofs.Mesh.ElementsOfDim(1)[0])
		var coupled bool
		k.A.DoNonZero(func(i, j int, v float64) {
			lowDofs := frac.DofIndices()
			if i == lowDofs[0] && !hasDof(lowDofs, j) && v != 0 {
				coupled = true
			}
		})
		assert.True(t, coupled)
		assert.True(t, k.IsSymmetric(1.e-12))
	}
	{ // Boundary values enter the right hand side only through the boundary
		out := assemble(t, dofs, in, testModel(t, 1), WithKernels(BoundaryKernel{}))
		assert.Positive(t, floats.Sum(out[0].Stiffness.RHS.RawVector().Data))
		assert.True(t, out[0].Stiffness.IsSymmetric(1.e-12))
	}
	dofs, in = setup(t, 2, false)
	{ // A prescribed flux integrates to flux times the boundary length
		md := testModel(t, 1)
		md.Substances[0].BoundaryType = types.BC_TotalFlux
		out := assemble(t, dofs, in, md, WithKernels(BoundaryKernel{}))
		assert.Zero(t, out[0].Stiffness.NNZ())
		assert.InDelta(t, 3.*4., floats.Sum(out[0].Stiffness.RHS.RawVector().Data), 1.e-12)
	}
	{ // Inflow only acts where the velocity enters, no condition leaves the system empty
		md := testModel(t, 1, 1, 0, 0)
		md.Substances[0].BoundaryType = types.BC_Inflow
		inflow := assemble(t, dofs, in, md, WithKernels(BoundaryKernel{}))
		md.Substances[0].BoundaryType = types.BC_Dirichlet
		dirichlet := assemble(t, dofs, in, md, WithKernels(BoundaryKernel{}))
		assert.Positive(t, inflow[0].Stiffness.NNZ())
		assert.Less(t, inflow[0].Stiffness.NNZ(), dirichlet[0].Stiffness.NNZ())
		md.Substances[0].BoundaryType = types.BC_None
		none := assemble(t, dofs, in, md, WithKernels(BoundaryKernel{}))
		assert.Zero(t, none[0].Stiffness.NNZ())
	}
}

func hasDof(dofs []int, j int) bool {
	for _, d := range dofs {
		if d == j {
			return true
		}
	}
	return false
}

func TestParallelEqualsSerial(t *testing.T) {
	for _, dim := range []int{2, 3} {
		dofs, in := setup(t, dim, dim == 2)
		md := testModel(t, 1.5, 0.3, -0.2, 0.1)
		serial := assemble(t, dofs, in, md, WithPartitions(1), WithCapacity(fields.DefaultCachedElements))
		parallel := assemble(t, dofs, in, md, WithPartitions(3), WithCapacity(7))
		assert.True(t, serial[0].Mass.Equal(parallel[0].Mass, 1.e-12))
		assert.True(t, serial[0].Stiffness.Equal(parallel[0].Stiffness, 1.e-12))
	}
}

// countingKernel counts the cells it is asked to mark.
type countingKernel struct{ marked *atomic.Int64 }

func (countingKernel) Name() string { return "counting" }

func (k countingKernel) MarkPoints(_ *worker, _ dh.DHCellAccessor) error {
	k.marked.Add(1)
	return nil
}

func (countingKernel) Assemble(_ *worker, _ dh.DHCellAccessor) error { return nil }

func TestAssemblerErrors(t *testing.T) {
	dofs, in := setup(t, 2, false)
	{ // No partition runs when the workers cannot be built
		k := countingKernel{marked: new(atomic.Int64)}
		a, err := NewAssembler(dofs, testModel(t, 1), in, WithPartitions(3), WithKernels(k))
		require.NoError(t, err)
		a.integrals = &Integrals{EvalPoints: fields.NewEvalPoints()}
		out, err := a.Assemble(context.Background())
		assert.ErrorIs(t, err, fields.ErrNoSubsets)
		assert.Nil(t, out)
		assert.Zero(t, k.marked.Load())
	}
	{ // A cell and its edge neighbours must fit into the cache
		a, err := NewAssembler(dofs, testModel(t, 1), in, WithCapacity(1))
		require.NoError(t, err)
		_, err = a.Assemble(context.Background())
		assert.ErrorIs(t, err, fields.ErrCapacityExceeded)
	}
	{ // Cancelled contexts stop the cycles
		a, err := NewAssembler(dofs, testModel(t, 1), in)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = a.Assemble(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	}
	{ // Invalid models and options
		md := testModel(t, 1)
		md.Velocity = constant(t, 1)
		_, err := NewAssembler(dofs, md, in)
		assert.Error(t, err)
		md = testModel(t, 1)
		md.Substances[0].Sigma = nil
		_, err = NewAssembler(dofs, md, in)
		assert.Error(t, err)
		_, err = NewAssembler(dofs, testModel(t, 1), in, WithPartitions(0))
		assert.Error(t, err)
		_, err = KernelByName("flux")
		assert.Error(t, err)
		k, err := KernelByName("edge")
		require.NoError(t, err)
		assert.Equal(t, EdgeKernel{}, k)
	}
	{ // Asymmetric side rules are rejected
		_, err := NewIntegrals(dofs.Mesh, 2, 9)
		require.NoError(t, err)
		m3, err := mesh.NewBoxMesh(3, []int{1, 1, 1}, []float64{1, 1, 1}, nil)
		require.NoError(t, err)
		_, err = NewIntegrals(m3, 2, 9)
		assert.ErrorIs(t, err, fields.ErrAsymmetricQuadrature)
	}
}

func TestAssemblyMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	otel.SetMeterProvider(mp)

	dofs, in := setup(t, 2, false)
	assemble(t, dofs, in, testModel(t, 1), WithCapacity(4))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var cycles int64
	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "cache_cycles_total" {
				for _, dp := range sum.DataPoints {
					cycles += dp.Value
				}
			}
		}
	}
	assert.Greater(t, cycles, int64(1))
	assert.True(t, names["cached_points"])
	assert.True(t, names["assembly_duration_seconds"])
}
