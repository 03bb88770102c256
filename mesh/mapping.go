package mesh

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Centroid of an element
func (m *Mesh) Centroid(elm int) (c [3]float64) {
	return m.centroid(m.Elements[elm].Nodes)
}

// SideCentroid of side of an element
func (m *Mesh) SideCentroid(elm, side int) (c [3]float64) {
	return m.centroid(m.SideNodes(elm, side))
}

func (m *Mesh) centroid(nodes []int) (c [3]float64) {
	for _, n := range nodes {
		for d := 0; d < 3; d++ {
			c[d] += m.Vertices[n][d]
		}
	}
	for d := 0; d < 3; d++ {
		c[d] /= float64(len(nodes))
	}
	return
}

// Jacobian of the affine P1 mapping of an element, a 3 x dim matrix whose
// columns are the element edges leaving node 0.
func (m *Mesh) Jacobian(elm int) (J *mat.Dense) {
	var (
		e  = &m.Elements[elm]
		x0 = m.Vertices[e.Nodes[0]]
	)
	J = mat.NewDense(3, e.Dim, nil)
	for j := 0; j < e.Dim; j++ {
		xj := m.Vertices[e.Nodes[j+1]]
		for i := 0; i < 3; i++ {
			J.Set(i, j, xj[i]-x0[i])
		}
	}
	return
}

// Determinant is the generalized Jacobian determinant sqrt(det(J^T J)),
// the ratio of physical to reference measure.
func (m *Mesh) Determinant(elm int) float64 {
	var (
		J    = m.Jacobian(elm)
		_, c = J.Dims()
		JtJ  = mat.NewDense(c, c, nil)
	)
	JtJ.Mul(J.T(), J)
	return math.Sqrt(math.Abs(mat.Det(JtJ)))
}

// InverseJacobianT returns J (J^T J)^-1, mapping reference gradients to
// physical gradients in 3D.
func (m *Mesh) InverseJacobianT(elm int) (G *mat.Dense, err error) {
	var (
		J    = m.Jacobian(elm)
		_, c = J.Dims()
		JtJ  = mat.NewDense(c, c, nil)
		inv  = mat.NewDense(c, c, nil)
	)
	JtJ.Mul(J.T(), J)
	if err = inv.Inverse(JtJ); err != nil {
		return
	}
	G = mat.NewDense(3, c, nil)
	G.Mul(J, inv)
	return
}

// MapPoint maps reference coordinates of an element to physical space.
func (m *Mesh) MapPoint(elm int, ref []float64) (x [3]float64) {
	var (
		e  = &m.Elements[elm]
		x0 = m.Vertices[e.Nodes[0]]
	)
	x = x0
	for j, r := range ref {
		xj := m.Vertices[e.Nodes[j+1]]
		for i := 0; i < 3; i++ {
			x[i] += r * (xj[i] - x0[i])
		}
	}
	return
}

// SideMeasure is the physical measure of a side, the reference side
// measure being 1/(dim-1)!.
func (m *Mesh) SideMeasure(elm, side int) float64 {
	var (
		nodes = m.SideNodes(elm, side)
		n     = len(nodes) - 1
		x0    = m.Vertices[nodes[0]]
	)
	if n == 0 {
		return 1
	}
	J := mat.NewDense(3, n, nil)
	for j := 0; j < n; j++ {
		xj := m.Vertices[nodes[j+1]]
		for i := 0; i < 3; i++ {
			J.Set(i, j, xj[i]-x0[i])
		}
	}
	JtJ := mat.NewDense(n, n, nil)
	JtJ.Mul(J.T(), J)
	fact := 1.
	for i := 2; i <= n; i++ {
		fact *= float64(i)
	}
	return math.Sqrt(math.Abs(mat.Det(JtJ))) / fact
}

// SideNormal returns the unit outward normal of side of a 3D or 2D element,
// or the direction along a 1D element.
func (m *Mesh) SideNormal(elm, side int) (n [3]float64) {
	var (
		e  = &m.Elements[elm]
		c  = m.Centroid(elm)
		sc = m.SideCentroid(elm, side)
		sn = m.SideNodes(elm, side)
	)
	switch e.Dim {
	case 3:
		a, b := sub(m.Vertices[sn[1]], m.Vertices[sn[0]]), sub(m.Vertices[sn[2]], m.Vertices[sn[0]])
		n = [3]float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
	case 2:
		// In plane normal: remove the component along the side from sc - c
		t := sub(m.Vertices[sn[1]], m.Vertices[sn[0]])
		d := sub(sc, c)
		proj := dot(d, t) / dot(t, t)
		for i := range n {
			n[i] = d[i] - proj*t[i]
		}
	default:
		n = sub(sc, c)
	}
	if dot(n, sub(sc, c)) < 0 {
		for i := range n {
			n[i] = -n[i]
		}
	}
	l := math.Sqrt(dot(n, n))
	for i := range n {
		n[i] /= l
	}
	return
}

func sub(a, b [3]float64) [3]float64 { return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func dot(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
