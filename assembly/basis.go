package assembly

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/dgcache/mesh"
	"github.com/notargets/dgcache/quadrature"
)

// Basis is the Lagrange basis of order 0 or 1 on the reference simplex of
// dimension Dim. The order 1 functions are the barycentric coordinates.
type Basis struct {
	Dim, Order, N int
	refGrads      *mat.Dense // Dim x N
}

func NewBasis(dim, order int) (b Basis, err error) {
	if order < 0 || order > 1 {
		err = fmt.Errorf("only basis orders 0 and 1 are supported, have %d", order)
		return
	}
	if dim < 0 || dim > 3 {
		err = fmt.Errorf("unsupported basis dimension %d", dim)
		return
	}
	b = Basis{Dim: dim, Order: order, N: 1}
	if order == 1 {
		b.N = dim + 1
	}
	if dim > 0 {
		b.refGrads = mat.NewDense(dim, b.N, nil)
		if order == 1 {
			for d := 0; d < dim; d++ {
				b.refGrads.Set(d, 0, -1)
				b.refGrads.Set(d, d+1, 1)
			}
		}
	}
	return
}

// Values writes the N basis functions at the reference point x into out.
func (b Basis) Values(x []float64, out []float64) {
	if b.Order == 0 {
		out[0] = 1
		return
	}
	copy(out, quadrature.LocalToBary(x))
}

// Grads returns the physical gradients of the basis on element elm as a 3 x N
// matrix, constant over the element.
func (b Basis) Grads(m *mesh.Mesh, elm int) (g *mat.Dense, err error) {
	g = mat.NewDense(3, b.N, nil)
	if b.Dim == 0 || b.Order == 0 {
		return
	}
	var G *mat.Dense
	if G, err = m.InverseJacobianT(elm); err != nil {
		return
	}
	g.Mul(G, b.refGrads)
	return
}
