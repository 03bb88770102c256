package quadrature

import (
	"fmt"
	"math"
)

// Side node numbering of the reference simplices. Side i of a dim element
// is the dim-1 simplex spanned by the listed vertices.
var sideNodes = [4][][]int{
	{},
	{{0}, {1}},
	{{0, 1}, {0, 2}, {1, 2}},
	{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}},
}

// NSides is the number of sides of the reference simplex of dimension dim.
func NSides(dim int) int {
	if dim == 0 {
		return 0
	}
	return dim + 1
}

// SideNodes returns the reference vertices of side on the dim simplex.
func SideNodes(dim, side int) []int {
	return sideNodes[dim][side]
}

// Vertex returns the coordinates of reference vertex i of the dim simplex:
// the origin followed by the unit vectors.
func Vertex(dim, i int) (x []float64) {
	x = make([]float64, dim)
	if i > 0 {
		x[i-1] = 1
	}
	return
}

// LocalToBary converts reference coordinates to barycentric coordinates,
// the first entry belonging to the vertex at the origin.
func LocalToBary(x []float64) (b []float64) {
	b = make([]float64, len(x)+1)
	b[0] = 1
	for i, v := range x {
		b[0] -= v
		b[i+1] = v
	}
	return
}

// NSidePermutations is the number of orderings of the nodes of one side of
// the dim simplex.
func NSidePermutations(dim int) int {
	n := 1
	for i := 2; i <= dim; i++ {
		n *= i
	}
	return n
}

// SidePermutation returns the permutation with lexicographic index idx of
// the nodes of a side of the dim simplex.
func SidePermutation(dim, idx int) (perm []int) {
	var (
		free = make([]int, dim)
		f    = NSidePermutations(dim)
	)
	for i := range free {
		free[i] = i
	}
	perm = make([]int, 0, dim)
	for n := dim; n > 0; n-- {
		f /= n
		k := idx / f
		idx -= k * f
		perm = append(perm, free[k])
		free = append(free[:k], free[k+1:]...)
	}
	return
}

// PermutationIndex is the inverse of SidePermutation.
func PermutationIndex(perm []int) (idx int) {
	n := len(perm)
	for i := 0; i < n; i++ {
		smaller := 0
		for j := i + 1; j < n; j++ {
			if perm[j] < perm[i] {
				smaller++
			}
		}
		idx = idx*(n-i) + smaller
	}
	return
}

// SidePoint maps a point given in reference coordinates of a dim-1 simplex
// onto side of the dim reference simplex. The k-th barycentric coordinate of
// the side point is attached to side node perm[k].
func SidePoint(dim, side int, perm []int, x []float64) (y []float64) {
	var (
		nodes = SideNodes(dim, side)
		bary  = LocalToBary(x)
	)
	y = make([]float64, dim)
	for k, lam := range bary {
		v := Vertex(dim, nodes[perm[k]])
		for d := range y {
			y[d] += lam * v[d]
		}
	}
	return
}

// MakeFromSide returns the rule q (of dimension dim-1) placed on side of the
// dim reference simplex under side permutation permIdx. Weights are copied.
func (q *Quadrature) MakeFromSide(dim, side, permIdx int) (qs *Quadrature, err error) {
	if q.Dim != dim-1 {
		err = fmt.Errorf("side quadrature must have dimension %d, have %d", dim-1, q.Dim)
		return
	}
	if side < 0 || side >= NSides(dim) {
		err = fmt.Errorf("side %d out of range for dimension %d", side, dim)
		return
	}
	perm := SidePermutation(dim, permIdx)
	qs = &Quadrature{
		Dim:     dim,
		Order:   q.Order,
		Points:  make([][]float64, q.Size()),
		Weights: append([]float64(nil), q.Weights...),
	}
	for i, x := range q.Points {
		qs.Points[i] = SidePoint(dim, side, perm, x)
	}
	return
}

// SamePoint compares reference coordinates with an absolute tolerance.
func SamePoint(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
