// Package quadrature provides Gauss type rules on the reference simplices
// of dimension 0 to 3 and the mapping of lower dimensional rules onto the
// sides of a reference element.
package quadrature

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
)

// Quadrature is a set of reference points and weights on the reference
// simplex of dimension Dim. Points of a dim 0 rule carry no coordinates.
type Quadrature struct {
	Dim     int
	Order   int
	Points  [][]float64
	Weights []float64
}

// NewGauss returns a rule on the reference simplex of dimension dim that
// integrates polynomials up to degree order exactly.
func NewGauss(dim, order int) (q *Quadrature, err error) {
	if order < 0 {
		err = fmt.Errorf("quadrature order must be non negative, have %d", order)
		return
	}
	q = &Quadrature{Dim: dim, Order: order}
	switch dim {
	case 0:
		q.Points = [][]float64{{}}
		q.Weights = []float64{1}
	case 1:
		q.gaussLegendre(order)
	case 2:
		if !q.triangleTable(order) {
			q.collapsed(order)
		}
	case 3:
		if !q.tetTable(order) {
			q.collapsed(order)
		}
	default:
		err = fmt.Errorf("unsupported quadrature dimension %d", dim)
		q = nil
	}
	return
}

// MustGauss is NewGauss for rule parameters known to be valid.
func MustGauss(dim, order int) *Quadrature {
	q, err := NewGauss(dim, order)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *Quadrature) Size() int { return len(q.Weights) }

func (q *Quadrature) Point(i int) []float64 { return q.Points[i] }

func (q *Quadrature) Weight(i int) float64 { return q.Weights[i] }

// Measure is the sum of the weights, the measure of the reference simplex.
func (q *Quadrature) Measure() float64 { return floats.Sum(q.Weights) }

func (q *Quadrature) gaussLegendre(order int) {
	var (
		n = order/2 + 1
		x = make([]float64, n)
		w = make([]float64, n)
	)
	quad.Legendre{}.FixedLocations(x, w, 0, 1)
	q.Points = make([][]float64, n)
	for i := range x {
		q.Points[i] = []float64{x[i]}
	}
	q.Weights = w
}

// collapsed builds a Duffy type rule from tensor Gauss-Legendre rules. The
// result is exact but not symmetric, so it cannot serve side permutations.
func (q *Quadrature) collapsed(order int) {
	var (
		n  = order/2 + 2
		x  = make([]float64, n)
		w  = make([]float64, n)
		pt []float64
	)
	quad.Legendre{}.FixedLocations(x, w, 0, 1)
	switch q.Dim {
	case 2:
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				u, v := x[i], x[j]
				pt = []float64{u, v * (1 - u)}
				q.Points = append(q.Points, pt)
				q.Weights = append(q.Weights, w[i]*w[j]*(1-u))
			}
		}
	case 3:
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				for k := 0; k < n; k++ {
					u, v, s := x[i], x[j], x[k]
					pt = []float64{u, v * (1 - u), s * (1 - u) * (1 - v)}
					q.Points = append(q.Points, pt)
					q.Weights = append(q.Weights, w[i]*w[j]*w[k]*(1-u)*(1-u)*(1-v))
				}
			}
		}
	}
}

func (q *Quadrature) triangleTable(order int) bool {
	var bary [][3]float64
	var wts []float64
	switch {
	case order <= 1:
		bary = [][3]float64{{1. / 3., 1. / 3., 1. / 3.}}
		wts = []float64{1}
	case order == 2:
		bary = orbit3(2./3., 1./6.)
		wts = []float64{1. / 3., 1. / 3., 1. / 3.}
	case order <= 4:
		// Dunavant degree 4
		a, b := 0.445948490915965, 0.091576213509771
		bary = append(orbit3(1-2*a, a), orbit3(1-2*b, b)...)
		wts = []float64{
			0.223381589678011, 0.223381589678011, 0.223381589678011,
			0.109951743655322, 0.109951743655322, 0.109951743655322,
		}
	case order == 5:
		// Dunavant degree 5
		a, b := 0.470142064105115, 0.101286507323456
		bary = [][3]float64{{1. / 3., 1. / 3., 1. / 3.}}
		bary = append(bary, orbit3(1-2*a, a)...)
		bary = append(bary, orbit3(1-2*b, b)...)
		wts = []float64{0.225,
			0.132394152788506, 0.132394152788506, 0.132394152788506,
			0.125939180544827, 0.125939180544827, 0.125939180544827,
		}
	default:
		return false
	}
	for i, b := range bary {
		q.Points = append(q.Points, []float64{b[1], b[2]})
		q.Weights = append(q.Weights, 0.5*wts[i])
	}
	return true
}

func (q *Quadrature) tetTable(order int) bool {
	var bary [][4]float64
	var wts []float64
	switch {
	case order <= 1:
		bary = [][4]float64{{0.25, 0.25, 0.25, 0.25}}
		wts = []float64{1}
	case order == 2:
		a, b := 0.58541019662496845446, 0.13819660112501051518
		bary = orbit4(a, b)
		wts = []float64{0.25, 0.25, 0.25, 0.25}
	case order == 3:
		// Keast, one negative weight
		bary = [][4]float64{{0.25, 0.25, 0.25, 0.25}}
		bary = append(bary, orbit4(0.5, 1./6.)...)
		wts = []float64{-0.8, 0.45, 0.45, 0.45, 0.45}
	default:
		return false
	}
	for i, b := range bary {
		q.Points = append(q.Points, []float64{b[1], b[2], b[3]})
		q.Weights = append(q.Weights, wts[i]/6.)
	}
	return true
}

// orbit3 returns the three barycentric points with a single distinct entry a.
func orbit3(a, b float64) [][3]float64 {
	return [][3]float64{{a, b, b}, {b, a, b}, {b, b, a}}
}

func orbit4(a, b float64) [][4]float64 {
	return [][4]float64{{a, b, b, b}, {b, a, b, b}, {b, b, a, b}, {b, b, b, a}}
}
