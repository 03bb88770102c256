// Package la accumulates global sparse systems from local element blocks.
package la

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// System is a square matrix in dictionary of keys form and its right hand
// side. Contributions are added, never assigned, so element blocks of
// several assembly passes sum up.
type System struct {
	A    *sparse.DOK
	RHS  *mat.VecDense
	n    int
	name string
}

func NewSystem(n int, name string) (s *System) {
	if n < 1 {
		panic(fmt.Errorf("system %q of size %d", name, n))
	}
	s = &System{
		A:    sparse.NewDOK(n, n),
		RHS:  mat.NewVecDense(n, nil),
		n:    n,
		name: name,
	}
	return
}

func (s *System) Size() int { return s.n }

func (s *System) Name() string { return s.name }

// Dims and At let a System stand in for its matrix.
func (s *System) Dims() (r, c int)    { return s.n, s.n }
func (s *System) At(i, j int) float64 { return s.A.At(i, j) }

func (s *System) checkIndex(i int) {
	if i < 0 || i >= s.n {
		panic(fmt.Errorf("index %d out of range for system %q of size %d", i, s.name, s.n))
	}
}

// Add adds v to entry (i, j).
func (s *System) Add(i, j int, v float64) {
	s.checkIndex(i)
	s.checkIndex(j)
	if v == 0 {
		return
	}
	s.A.Set(i, j, s.A.At(i, j)+v)
}

// AddLocal adds the local block at the global rows and cols.
func (s *System) AddLocal(rows, cols []int, local mat.Matrix) error {
	r, c := local.Dims()
	if r != len(rows) || c != len(cols) {
		return fmt.Errorf("local block %dx%d for %d rows and %d cols", r, c, len(rows), len(cols))
	}
	for ii, i := range rows {
		for jj, j := range cols {
			s.Add(i, j, local.At(ii, jj))
		}
	}
	return nil
}

// AddRHS adds the local vector at the global rows.
func (s *System) AddRHS(rows []int, local []float64) error {
	if len(rows) != len(local) {
		return fmt.Errorf("local vector of length %d for %d rows", len(local), len(rows))
	}
	for ii, i := range rows {
		s.checkIndex(i)
		s.RHS.SetVec(i, s.RHS.AtVec(i)+local[ii])
	}
	return nil
}

// Merge adds all entries of other, e.g. the system of another partition.
func (s *System) Merge(other *System) error {
	if other.n != s.n {
		return fmt.Errorf("merging system %q of size %d into %q of size %d", other.name, other.n, s.name, s.n)
	}
	other.A.DoNonZero(func(i, j int, v float64) {
		s.Add(i, j, v)
	})
	s.RHS.AddVec(s.RHS, other.RHS)
	return nil
}

// NNZ is the number of stored entries.
func (s *System) NNZ() int { return s.A.NNZ() }

// ToCSR converts the matrix for solving or multiplication.
func (s *System) ToCSR() *sparse.CSR { return s.A.ToCSR() }

// IsSymmetric reports whether all entries match their transposes within tol.
func (s *System) IsSymmetric(tol float64) (sym bool) {
	sym = true
	s.A.DoNonZero(func(i, j int, v float64) {
		if math.Abs(v-s.A.At(j, i)) > tol {
			sym = false
		}
	})
	return
}

// Equal reports whether both systems hold the same entries within tol.
func (s *System) Equal(other *System, tol float64) bool {
	if s.n != other.n {
		return false
	}
	same := true
	cmp := func(a, b *sparse.DOK) {
		a.DoNonZero(func(i, j int, v float64) {
			if math.Abs(v-b.At(i, j)) > tol {
				same = false
			}
		})
	}
	cmp(s.A, other.A)
	cmp(other.A, s.A)
	return same && mat.EqualApprox(s.RHS, other.RHS, tol)
}

func (s *System) String() string {
	return fmt.Sprintf("%s: %d x %d, %d non zeros", s.name, s.n, s.n, s.NNZ())
}
