// Package dh distributes discontinuous degrees of freedom over the elements
// of a mesh and provides the cell and side accessors the assembly loops and
// the field caches iterate with.
package dh

import (
	"fmt"
	"math"

	"github.com/notargets/dgcache/mesh"
)

// UndefElemIdx is the element cache index of an accessor not looked up in a
// cache map, it equals the cache map's undefined slot.
const UndefElemIdx = math.MaxUint32

// DOFHandler numbers the dofs of a P-discontinuous space: every element owns
// C(order+dim, dim) dofs that no other element shares.
type DOFHandler struct {
	Mesh      *mesh.Mesh
	Order     int
	dofStarts []int // CSR, dofs of element k are dofStarts[k]..dofStarts[k+1]
}

func NewDOFHandler(m *mesh.Mesh, order int) (dh *DOFHandler, err error) {
	if order < 0 {
		err = fmt.Errorf("finite element order must be non negative, have %d", order)
		return
	}
	if len(m.Edges) == 0 && m.NumElements() != 0 {
		err = fmt.Errorf("mesh connectivity has not been built")
		return
	}
	dh = &DOFHandler{
		Mesh:      m,
		Order:     order,
		dofStarts: make([]int, m.NumElements()+1),
	}
	for k := range m.Elements {
		dh.dofStarts[k+1] = dh.dofStarts[k] + NLocalDofs(m.Elements[k].Dim, order)
	}
	return
}

// NLocalDofs is the dimension of the polynomial space of degree order on a
// dim simplex.
func NLocalDofs(dim, order int) (n int) {
	n = 1
	for i := 1; i <= dim; i++ {
		n = n * (order + i) / i
	}
	return
}

// NDofs is the global number of dofs.
func (dh *DOFHandler) NDofs() int { return dh.dofStarts[len(dh.dofStarts)-1] }

// Cell returns the accessor of element elm.
func (dh *DOFHandler) Cell(elm int) DHCellAccessor {
	return DHCellAccessor{dh: dh, elm: elm, cacheIdx: UndefElemIdx}
}

// Cells returns accessors of all elements with index in [begin, end).
func (dh *DOFHandler) Cells(begin, end int) (cells []DHCellAccessor) {
	cells = make([]DHCellAccessor, 0, end-begin)
	for elm := begin; elm < end; elm++ {
		cells = append(cells, dh.Cell(elm))
	}
	return
}

func (dh *DOFHandler) NCells() int { return dh.Mesh.NumElements() }
