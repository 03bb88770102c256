// Package mesh holds the simplicial mesh consumed by the DOF handler and the
// field caches: elements of dimension 1 to 3 tagged with regions, their
// sides, the edges joining sides and the neighbourings between elements of
// consecutive dimensions.
package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/dgcache/quadrature"
	"github.com/notargets/dgcache/types"
)

// UndefIdx marks a missing index, e.g. a side without boundary region.
const UndefIdx = -1

// Region is a named group of elements sharing material or boundary data.
type Region struct {
	Name     string
	Dim      int
	Boundary bool
}

// Element is a simplex given by dim+1 vertex indices.
type Element struct {
	Nodes  []int
	Dim    int
	Region uint32

	// Connectivity (built during BuildConnectivity)
	Edges          []int // Edge index of each side
	Permutations   []int // Permutation index of each side relative to its edge
	BoundaryRegion []int // Boundary region of each external side or UndefIdx
	Neighbours     []int // Neighbour indices where this element is the lower one
}

// NSides is the number of sides of the element.
func (e *Element) NSides() int {
	return quadrature.NSides(e.Dim)
}

// SideRef addresses side Side of element Element.
type SideRef struct {
	Element int
	Side    int
}

// Edge joins all sides sharing the same vertices. An edge with a single
// side lies on the boundary.
type Edge struct {
	Sides []SideRef
}

// Neighbour couples a lower dimensional element with the side of a higher
// dimensional element it lies on.
type Neighbour struct {
	Lower       int
	Higher      SideRef
	Permutation int
}

// Mesh represents a complete unstructured simplicial mesh with connectivity
type Mesh struct {
	Vertices   [][3]float64
	Elements   []Element
	Regions    []Region
	Edges      []Edge
	Neighbours []Neighbour

	regionMap     map[string]uint32
	edgeMap       map[types.SideKey]int
	boundaryMarks map[types.SideKey]int // survives BuildConnectivity
}

// NewMesh creates an empty mesh
func NewMesh() *Mesh {
	return &Mesh{
		regionMap:     make(map[string]uint32),
		edgeMap:       make(map[types.SideKey]int),
		boundaryMarks: make(map[types.SideKey]int),
	}
}

// AddRegion returns the index of the named region, creating it if needed.
func (m *Mesh) AddRegion(name string, dim int, boundary bool) uint32 {
	if idx, ok := m.regionMap[name]; ok {
		return idx
	}
	idx := uint32(len(m.Regions))
	m.Regions = append(m.Regions, Region{Name: name, Dim: dim, Boundary: boundary})
	m.regionMap[name] = idx
	return idx
}

// RegionIdx looks a region up by name.
func (m *Mesh) RegionIdx(name string) (idx uint32, ok bool) {
	idx, ok = m.regionMap[name]
	return
}

func (m *Mesh) AddVertex(x, y, z float64) int {
	m.Vertices = append(m.Vertices, [3]float64{x, y, z})
	return len(m.Vertices) - 1
}

// AddElement appends a simplex of dimension len(nodes)-1 to region.
func (m *Mesh) AddElement(region uint32, nodes ...int) (idx int, err error) {
	dim := len(nodes) - 1
	switch {
	case dim < 1 || dim > 3:
		err = fmt.Errorf("unsupported element with %d nodes", len(nodes))
		return
	case int(region) >= len(m.Regions):
		err = fmt.Errorf("region %d not defined", region)
		return
	}
	for _, n := range nodes {
		if n < 0 || n >= len(m.Vertices) {
			err = fmt.Errorf("vertex %d out of range, mesh has %d vertices", n, len(m.Vertices))
			return
		}
	}
	m.Elements = append(m.Elements, Element{
		Nodes:  append([]int(nil), nodes...),
		Dim:    dim,
		Region: region,
	})
	idx = len(m.Elements) - 1
	return
}

// SetRegion moves an element to another bulk region.
func (m *Mesh) SetRegion(elm int, region uint32) {
	m.Elements[elm].Region = region
}

func (m *Mesh) NumElements() int { return len(m.Elements) }

// SideNodes returns the global vertex indices of a side in the reference
// order of the element's side.
func (m *Mesh) SideNodes(elm, side int) (nodes []int) {
	e := &m.Elements[elm]
	ref := quadrature.SideNodes(e.Dim, side)
	nodes = make([]int, len(ref))
	for i, r := range ref {
		nodes[i] = e.Nodes[r]
	}
	return
}

// BuildConnectivity creates edges, side permutations and the neighbourings
// between elements of consecutive dimensions.
func (m *Mesh) BuildConnectivity() (err error) {
	var (
		lowerByKey = make(map[types.SideKey]int)
	)
	m.Edges = m.Edges[:0]
	m.Neighbours = m.Neighbours[:0]
	m.edgeMap = make(map[types.SideKey]int)
	for elm := range m.Elements {
		e := &m.Elements[elm]
		if e.Dim < 3 {
			key := types.NewSideKey(e.Nodes)
			if other, exists := lowerByKey[key]; exists {
				return fmt.Errorf("elements %d and %d share all vertices", other, elm)
			}
			lowerByKey[key] = elm
		}
		e.Edges = make([]int, e.NSides())
		e.Permutations = make([]int, e.NSides())
		e.BoundaryRegion = make([]int, e.NSides())
		e.Neighbours = e.Neighbours[:0]
		for i := range e.BoundaryRegion {
			e.BoundaryRegion[i] = UndefIdx
		}
	}

	// Process each side
	for elm := range m.Elements {
		e := &m.Elements[elm]
		for side := 0; side < e.NSides(); side++ {
			// A side of a dim element has dim vertices, so sides of elements
			// with different dimension never share a key
			key := types.NewSideKey(m.SideNodes(elm, side))
			edgeID, exists := m.edgeMap[key]
			if !exists {
				edgeID = len(m.Edges)
				m.Edges = append(m.Edges, Edge{})
				m.edgeMap[key] = edgeID
			}
			m.Edges[edgeID].Sides = append(m.Edges[edgeID].Sides, SideRef{elm, side})
			e.Edges[side] = edgeID

			if lower, found := lowerByKey[key]; found && m.Elements[lower].Dim == e.Dim-1 {
				nb := Neighbour{
					Lower:       lower,
					Higher:      SideRef{elm, side},
					Permutation: permutationIndex(m.Elements[lower].Nodes, m.SideNodes(elm, side)),
				}
				m.Neighbours = append(m.Neighbours, nb)
				m.Elements[lower].Neighbours = append(m.Elements[lower].Neighbours, len(m.Neighbours)-1)
			}
		}
	}
	m.makeEdgePermutations()
	for key, region := range m.boundaryMarks {
		edgeID, ok := m.edgeMap[key]
		if !ok || len(m.Edges[edgeID].Sides) != 1 {
			continue
		}
		s := m.Edges[edgeID].Sides[0]
		m.Elements[s.Element].BoundaryRegion[s.Side] = region
	}
	return
}

// makeEdgePermutations sets the permutation of every side relative to the
// first side of its edge, which is the reference with permutation 0.
func (m *Mesh) makeEdgePermutations() {
	for _, edge := range m.Edges {
		ref := edge.Sides[0]
		m.Elements[ref.Element].Permutations[ref.Side] = 0
		refNodes := m.SideNodes(ref.Element, ref.Side)
		for _, s := range edge.Sides[1:] {
			m.Elements[s.Element].Permutations[s.Side] = permutationIndex(refNodes, m.SideNodes(s.Element, s.Side))
		}
	}
}

// permutationIndex returns the index of the permutation p with
// sideNodes[p[k]] == refNodes[k].
func permutationIndex(refNodes, sideNodes []int) int {
	var (
		nodeNumbers = make(map[int]int, len(refNodes))
		perm        = make([]int, len(refNodes))
	)
	for k, n := range refNodes {
		nodeNumbers[n] = k
	}
	for i, n := range sideNodes {
		perm[nodeNumbers[n]] = i
	}
	return quadrature.PermutationIndex(perm)
}

// MarkBoundary assigns every external side whose centroid satisfies pred to
// the named boundary region. Sides already marked keep their region.
func (m *Mesh) MarkBoundary(name string, pred func(c [3]float64) bool) (n int) {
	var region = -1
	for _, edge := range m.Edges {
		if len(edge.Sides) != 1 {
			continue
		}
		s := edge.Sides[0]
		e := &m.Elements[s.Element]
		if e.BoundaryRegion[s.Side] != UndefIdx || m.IsCoupled(s) {
			continue
		}
		if !pred(m.SideCentroid(s.Element, s.Side)) {
			continue
		}
		if region < 0 {
			region = int(m.AddRegion(name, e.Dim-1, true))
		}
		e.BoundaryRegion[s.Side] = region
		m.boundaryMarks[types.NewSideKey(m.SideNodes(s.Element, s.Side))] = region
		n++
	}
	return
}

// IsCoupled reports whether a lower dimensional element lies on the side.
func (m *Mesh) IsCoupled(s SideRef) bool {
	for _, nb := range m.Neighbours {
		if nb.Higher == s {
			return true
		}
	}
	return false
}

// ElementsOfDim lists element indices of one dimension in ascending order.
func (m *Mesh) ElementsOfDim(dim int) (elms []int) {
	for i := range m.Elements {
		if m.Elements[i].Dim == dim {
			elms = append(elms, i)
		}
	}
	sort.Ints(elms)
	return
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Vertices: %d\n", len(m.Vertices))
	fmt.Printf("  Elements: %d\n", len(m.Elements))
	fmt.Printf("  Edges: %d\n", len(m.Edges))
	fmt.Printf("  Neighbours: %d\n", len(m.Neighbours))
	for i, r := range m.Regions {
		fmt.Printf("  Region[%d] %q dim=%d boundary=%v\n", i, r.Name, r.Dim, r.Boundary)
	}
}
