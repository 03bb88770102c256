package assembly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dgcache/dh"
	"github.com/notargets/dgcache/fields"
	"github.com/notargets/dgcache/types"
)

// Kernel is one term of the assembled systems. MarkPoints requests the eval
// points the term reads for cell, Assemble adds its contribution once the
// cache cycle is readable. Both are called for every cell of the worker's
// partition.
type Kernel interface {
	Name() string
	MarkPoints(w *worker, cell dh.DHCellAccessor) error
	Assemble(w *worker, cell dh.DHCellAccessor) error
}

// DefaultKernels returns all terms of the advection diffusion problem.
func DefaultKernels() []Kernel {
	return []Kernel{MassKernel{}, StiffnessKernel{}, EdgeKernel{}, BoundaryKernel{}, CouplingKernel{}}
}

// KernelByName returns the kernel registered under name.
func KernelByName(name string) (k Kernel, err error) {
	for _, k = range DefaultKernels() {
		if k.Name() == name {
			return
		}
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

func factorial(n int) float64 {
	f := 1.
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// cellMeasure is the length, area or volume of the element of cell.
func (w *worker) cellMeasure(cell dh.DHCellAccessor) float64 {
	return w.a.dofs.Mesh.Determinant(int(cell.ElmIdx())) / factorial(cell.Dim())
}

// sideJxW scales the weight of a point of the reference side rule to the
// physical side.
func sideJxW(side dh.DHCellSide, weight float64) float64 {
	return weight * side.Measure() * factorial(side.Dim()-1)
}

func (w *worker) scalar(c *fields.FieldValueCache, cell dh.DHCellAccessor, point int) float64 {
	v, err := c.GetScalar(w.cm, cell, point)
	if err != nil {
		panic(err)
	}
	return v
}

// addJump adds factor * jump jump^T and factor * g * jump to the stiffness
// system of substance s, the local dofs being the concatenation of the cells.
func (w *worker) addJump(s int, dofs []int, jump []float64, factor, g float64) (err error) {
	n := len(jump)
	local := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			local.Set(i, j, factor*jump[i]*jump[j])
		}
	}
	if err = w.out[s].Stiffness.AddLocal(dofs, dofs, local); err != nil {
		return
	}
	if g != 0 {
		rhs := make([]float64, n)
		floats.ScaleTo(rhs, factor*g, jump)
		err = w.out[s].Stiffness.AddRHS(dofs, rhs)
	}
	return
}

/*
MassKernel: porosity weighted mass matrix
*/

type MassKernel struct{}

func (MassKernel) Name() string { return "mass" }

func (MassKernel) MarkPoints(w *worker, cell dh.DHCellAccessor) error {
	return w.a.integrals.Bulk[cell.Dim()].MarkUsed(w.cm, cell)
}

func (MassKernel) Assemble(w *worker, cell dh.DHCellAccessor) (err error) {
	var (
		dim   = cell.Dim()
		basis = w.a.basis[dim]
		det   = w.a.dofs.Mesh.Determinant(int(cell.ElmIdx()))
		dofs  = cell.DofIndices()
		phi   = make([]float64, basis.N)
		local = mat.NewDense(basis.N, basis.N, nil)
	)
	for s := range w.a.model.Substances {
		local.Zero()
		porosity := w.caches.coefficients[s][coefPorosity]
		for _, q := range w.a.integrals.Bulk[dim].Points(cell) {
			jxw := q.Weight() * det * w.scalar(porosity, cell, q.EvalPointIdx())
			basis.Values(q.Coords(), phi)
			for i := 0; i < basis.N; i++ {
				for j := 0; j < basis.N; j++ {
					local.Set(i, j, local.At(i, j)+jxw*phi[i]*phi[j])
				}
			}
		}
		if err = w.out[s].Mass.AddLocal(dofs, dofs, local); err != nil {
			return
		}
	}
	return
}

/*
StiffnessKernel: diffusion, advection and sources inside the cells
*/

type StiffnessKernel struct{}

func (StiffnessKernel) Name() string { return "stiffness" }

func (StiffnessKernel) MarkPoints(w *worker, cell dh.DHCellAccessor) error {
	return w.a.integrals.Bulk[cell.Dim()].MarkUsed(w.cm, cell)
}

func (StiffnessKernel) Assemble(w *worker, cell dh.DHCellAccessor) (err error) {
	var (
		dim   = cell.Dim()
		elm   = int(cell.ElmIdx())
		basis = w.a.basis[dim]
		det   = w.a.dofs.Mesh.Determinant(elm)
		dofs  = cell.DofIndices()
		phi   = make([]float64, basis.N)
		local = mat.NewDense(basis.N, basis.N, nil)
		rhs   = make([]float64, basis.N)
		grads *mat.Dense
	)
	if grads, err = basis.Grads(w.a.dofs.Mesh, elm); err != nil {
		return
	}
	gradDot := func(i, j int) (d float64) {
		for k := 0; k < 3; k++ {
			d += grads.At(k, i) * grads.At(k, j)
		}
		return
	}
	for s := range w.a.model.Substances {
		local.Zero()
		for i := range rhs {
			rhs[i] = 0
		}
		var (
			diffusion = w.caches.coefficients[s][coefDiffusion]
			source    = w.caches.coefficients[s][coefSource]
		)
		for _, q := range w.a.integrals.Bulk[dim].Points(cell) {
			var (
				p   = q.EvalPointIdx()
				jxw = q.Weight() * det
				D   = w.scalar(diffusion, cell, p)
				f   = w.scalar(source, cell, p)
				v   []float64
			)
			if v, err = w.caches.velocity.GetVector(w.cm, cell, p); err != nil {
				return
			}
			basis.Values(q.Coords(), phi)
			for i := 0; i < basis.N; i++ {
				for j := 0; j < basis.N; j++ {
					var vGrad float64
					for k := 0; k < 3; k++ {
						vGrad += v[k] * grads.At(k, j)
					}
					local.Set(i, j, local.At(i, j)+jxw*(D*gradDot(i, j)+vGrad*phi[i]))
				}
				rhs[i] += jxw * f * phi[i]
			}
		}
		if err = w.out[s].Stiffness.AddLocal(dofs, dofs, local); err != nil {
			return
		}
		if err = w.out[s].Stiffness.AddRHS(dofs, rhs); err != nil {
			return
		}
	}
	return
}

/*
EdgeKernel: interior penalty on the jumps across edges
*/

type EdgeKernel struct{}

func (EdgeKernel) Name() string { return "edge" }

func (EdgeKernel) MarkPoints(w *worker, cell dh.DHCellAccessor) (err error) {
	edge := w.a.integrals.Edge[cell.Dim()]
	for _, side := range cell.Sides() {
		if !ownsEdge(side) {
			continue
		}
		for _, es := range side.EdgeSides() {
			if err = edge.MarkUsed(w.cm, es); err != nil {
				return
			}
		}
	}
	return
}

// Assemble adds the penalty term of every pair of sides of the edges owned
// by cell. Pairs are penalized by the mean diffusion at the point over the
// smaller cell height.
func (EdgeKernel) Assemble(w *worker, cell dh.DHCellAccessor) (err error) {
	var (
		dim   = cell.Dim()
		basis = w.a.basis[dim]
		edge  = w.a.integrals.Edge[dim]
		phiA  = make([]float64, basis.N)
		phiB  = make([]float64, basis.N)
		jump  = make([]float64, 2*basis.N)
		ep    = w.a.integrals.EvalPoints
	)
	for _, side := range cell.Sides() {
		if !ownsEdge(side) {
			continue
		}
		sides := side.EdgeSides()
		for a := 0; a < len(sides); a++ {
			for b := a + 1; b < len(sides); b++ {
				var (
					sa, sb = sides[a], sides[b]
					ca, cb = sa.Cell(), sb.Cell()
					h      = math.Min(w.cellMeasure(ca)/sa.Measure(), w.cellMeasure(cb)/sb.Measure())
					dofs   = append(ca.DofIndices(), cb.DofIndices()...)
				)
				for _, pa := range edge.Points(sa) {
					pb := pa.PointOnSide(sb)
					basis.Values(ep.Point(dim, pa.EvalPointIdx()), phiA)
					basis.Values(ep.Point(dim, pb.EvalPointIdx()), phiB)
					for i := 0; i < basis.N; i++ {
						jump[i], jump[basis.N+i] = phiA[i], -phiB[i]
					}
					for s := range w.a.model.Substances {
						diffusion := w.caches.coefficients[s][coefDiffusion]
						D := 0.5 * (w.scalar(diffusion, ca, pa.EvalPointIdx()) + w.scalar(diffusion, cb, pb.EvalPointIdx()))
						gamma := w.a.model.Penalty * D / h
						if err = w.addJump(s, dofs, jump, gamma*sideJxW(sa, pa.Weight()), 0); err != nil {
							return
						}
					}
				}
			}
		}
	}
	return
}

/*
BoundaryKernel: conditions on external sides, per substance
	BC_Dirichlet:     penalty towards the boundary value
	BC_Inflow:        as BC_Dirichlet where the velocity enters the domain
	BC_TotalFlux,
	BC_DiffusiveFlux: the boundary value is the prescribed flux
	BC_None:          homogeneous flux, nothing is assembled
*/

type BoundaryKernel struct{}

func (BoundaryKernel) Name() string { return "boundary" }

func (BoundaryKernel) MarkPoints(w *worker, cell dh.DHCellAccessor) (err error) {
	bdr := w.a.integrals.Boundary[cell.Dim()]
	for _, side := range cell.Sides() {
		if side.IsBoundary() {
			if err = bdr.MarkUsed(w.cm, side); err != nil {
				return
			}
		}
	}
	return
}

func (BoundaryKernel) Assemble(w *worker, cell dh.DHCellAccessor) (err error) {
	var (
		dim   = cell.Dim()
		basis = w.a.basis[dim]
		bdr   = w.a.integrals.Boundary[dim]
		dofs  = cell.DofIndices()
		phi   = make([]float64, basis.N)
		flux  = make([]float64, basis.N)
		ep    = w.a.integrals.EvalPoints
	)
	for _, side := range cell.Sides() {
		if !side.IsBoundary() {
			continue
		}
		var (
			h      = w.cellMeasure(cell) / side.Measure()
			normal = side.Normal()
		)
		for _, p := range bdr.Points(side) {
			var (
				pt  = p.EvalPointIdx()
				jxw = sideJxW(side, p.Weight())
				v   []float64
			)
			if v, err = w.caches.velocity.GetVector(w.cm, cell, pt); err != nil {
				return
			}
			inflow := v[0]*normal[0]+v[1]*normal[1]+v[2]*normal[2] < 0
			basis.Values(ep.Point(dim, pt), phi)
			for s, sub := range w.a.model.Substances {
				g := w.scalar(w.caches.coefficients[s][coefBoundary], cell, pt)
				switch sub.BoundaryType {
				case types.BC_Inflow:
					if !inflow {
						continue
					}
					fallthrough
				case types.BC_Dirichlet:
					var (
						D     = w.scalar(w.caches.coefficients[s][coefDiffusion], cell, pt)
						gamma = w.a.model.Penalty * D / h
					)
					if err = w.addJump(s, dofs, phi, gamma*jxw, g); err != nil {
						return
					}
				case types.BC_TotalFlux, types.BC_DiffusiveFlux:
					for i := range phi {
						flux[i] = jxw * g * phi[i]
					}
					if err = w.out[s].Stiffness.AddRHS(dofs, flux); err != nil {
						return
					}
				}
			}
		}
	}
	return
}

/*
CouplingKernel: transfer between a lower dimensional cell and the sides it
lies on
*/

type CouplingKernel struct{}

func (CouplingKernel) Name() string { return "coupling" }

func (CouplingKernel) MarkPoints(w *worker, cell dh.DHCellAccessor) (err error) {
	for _, nb := range cell.NeighbourSides() {
		if err = w.a.integrals.Coupling[nb.Higher.Dim()].MarkUsed(w.cm, nb); err != nil {
			return
		}
	}
	return
}

func (CouplingKernel) Assemble(w *worker, cell dh.DHCellAccessor) (err error) {
	var (
		lowDim = cell.Dim()
		det    = w.a.dofs.Mesh.Determinant(int(cell.ElmIdx()))
		ep     = w.a.integrals.EvalPoints
	)
	for _, nb := range cell.NeighbourSides() {
		var (
			highDim  = nb.Higher.Dim()
			lowBase  = w.a.basis[lowDim]
			highBase = w.a.basis[highDim]
			coupling = w.a.integrals.Coupling[highDim]
			dofs     = append(cell.DofIndices(), nb.Higher.Cell().DofIndices()...)
			phiLow   = make([]float64, lowBase.N)
			phiHigh  = make([]float64, highBase.N)
			jump     = make([]float64, lowBase.N+highBase.N)
		)
		for _, p := range coupling.Points(nb) {
			low := p.LowerDim()
			lowBase.Values(low.Coords(), phiLow)
			highBase.Values(ep.Point(highDim, p.EvalPointIdx()), phiHigh)
			copy(jump, phiLow)
			for i, v := range phiHigh {
				jump[lowBase.N+i] = -v
			}
			for s := range w.a.model.Substances {
				sigma := w.scalar(w.caches.coefficients[s][coefSigma], cell, low.EvalPointIdx())
				if err = w.addJump(s, dofs, jump, sigma*low.Weight()*det, 0); err != nil {
					return
				}
			}
		}
	}
	return
}
