// Package config reads the YAML run parameters of an assembly.
package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/dgcache/types"
)

// Parameters obtained from the YAML input file
type Parameters struct {
	Title               string                `json:"Title"`
	Mesh                MeshParameters        `json:"Mesh"`
	PolynomialOrder     int                   `json:"PolynomialOrder"`
	BulkQuadratureOrder int                   `json:"BulkQuadratureOrder"`
	SideQuadratureOrder int                   `json:"SideQuadratureOrder"`
	CacheCapacity       int                   `json:"CacheCapacity"`
	Partitions          int                   `json:"Partitions"`
	Penalty             float64               `json:"Penalty"`
	Velocity            []float64             `json:"Velocity"`
	Substances          []SubstanceParameters `json:"Substances"`
}

// MeshParameters describe a generated box mesh. Elements whose centroid lies
// inside a region box are put into that region, the others into "bulk".
type MeshParameters struct {
	Dim       int         `json:"Dim"`
	Divisions []int       `json:"Divisions"`
	Size      []float64   `json:"Size"`
	Regions   []RegionBox `json:"Regions"`
	Fracture  *Fracture   `json:"Fracture,omitempty"`
}

type RegionBox struct {
	Name string     `json:"Name"`
	Min  [3]float64 `json:"Min"`
	Max  [3]float64 `json:"Max"`
}

// Contains reports whether c lies inside the box in its first dim axes.
func (rb RegionBox) Contains(c [3]float64, dim int) bool {
	for d := 0; d < dim; d++ {
		if c[d] < rb.Min[d] || c[d] > rb.Max[d] {
			return false
		}
	}
	return true
}

// Fracture embeds lower dimensional elements on the interior sides lying in
// the plane x[Axis] = Position.
type Fracture struct {
	Axis     int     `json:"Axis"`
	Position float64 `json:"Position"`
}

// SubstanceParameters are the coefficients of one substance, each given by a
// default value and optional per region overrides: Regions[region][name].
type SubstanceParameters struct {
	Name              string                        `json:"Name"`
	Porosity          float64                       `json:"Porosity"`
	Diffusion         float64                       `json:"Diffusion"`
	Source            float64                       `json:"Source"`
	Sigma             float64                       `json:"Sigma"`
	BoundaryValue     float64                       `json:"BoundaryValue"`
	BoundaryCondition string                        `json:"BoundaryCondition,omitempty"` // dirichlet when empty
	Regions           map[string]map[string]float64 `json:"Regions"`
}

// BoundaryType is the parsed boundary condition, dirichlet when unset.
func (sp SubstanceParameters) BoundaryType() (bc types.BCFLAG, err error) {
	name := strings.ToLower(strings.TrimSpace(sp.BoundaryCondition))
	switch name {
	case "":
		return types.BC_Dirichlet, nil
	case "none":
		return types.BC_None, nil
	}
	if bc = types.NewBCFLAG(name); bc == types.BC_None {
		err = fmt.Errorf("substance %q: unknown boundary condition %q", sp.Name, sp.BoundaryCondition)
	}
	return
}

// Coefficients names the coefficients a region override may set.
var Coefficients = []string{"Porosity", "Diffusion", "Source", "Sigma", "BoundaryValue"}

// Value returns coefficient name on region.
func (sp SubstanceParameters) Value(name, region string) (v float64, err error) {
	if r, ok := sp.Regions[region]; ok {
		if v, ok = r[name]; ok {
			return
		}
	}
	switch name {
	case "Porosity":
		v = sp.Porosity
	case "Diffusion":
		v = sp.Diffusion
	case "Source":
		v = sp.Source
	case "Sigma":
		v = sp.Sigma
	case "BoundaryValue":
		v = sp.BoundaryValue
	default:
		err = fmt.Errorf("unknown coefficient %q", name)
	}
	return
}

// Default returns a small 2D problem with one substance.
func Default() *Parameters {
	return &Parameters{
		Title: "Default case",
		Mesh: MeshParameters{
			Dim:       2,
			Divisions: []int{4, 4},
			Size:      []float64{1, 1},
		},
		PolynomialOrder:     1,
		BulkQuadratureOrder: 2,
		SideQuadratureOrder: 2,
		CacheCapacity:       20,
		Partitions:          1,
		Penalty:             10,
		Velocity:            []float64{1, 0, 0},
		Substances: []SubstanceParameters{
			{Name: "A", Porosity: 1, Diffusion: 0.01, Sigma: 1},
		},
	}
}

func (ip *Parameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// ReadFile parses the file at path over the defaults and validates the result.
func ReadFile(path string) (ip *Parameters, err error) {
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return
	}
	ip = Default()
	if err = ip.Parse(data); err != nil {
		err = fmt.Errorf("parsing %s: %w", path, err)
		return
	}
	err = ip.Validate()
	return
}

// Marshal renders the parameters as YAML.
func (ip *Parameters) Marshal() ([]byte, error) {
	return yaml.Marshal(ip)
}

func (ip *Parameters) Validate() error {
	m := ip.Mesh
	switch {
	case m.Dim < 1 || m.Dim > 3:
		return fmt.Errorf("mesh dimension %d not in [1,3]", m.Dim)
	case len(m.Divisions) < m.Dim || len(m.Size) < m.Dim:
		return fmt.Errorf("mesh of dimension %d needs %d divisions and sizes", m.Dim, m.Dim)
	case m.Fracture != nil && (m.Dim < 2 || m.Fracture.Axis < 0 || m.Fracture.Axis >= m.Dim):
		return fmt.Errorf("fracture on axis %d in a mesh of dimension %d", m.Fracture.Axis, m.Dim)
	case ip.PolynomialOrder < 0 || ip.PolynomialOrder > 1:
		return fmt.Errorf("polynomial order %d not in [0,1]", ip.PolynomialOrder)
	case ip.BulkQuadratureOrder < 0 || ip.SideQuadratureOrder < 0:
		return fmt.Errorf("negative quadrature order")
	case m.Dim == 3 && ip.SideQuadratureOrder > 5:
		return fmt.Errorf("side quadrature order %d has no symmetric triangle rule, use at most 5",
			ip.SideQuadratureOrder)
	case ip.CacheCapacity < 0:
		return fmt.Errorf("negative cache capacity %d", ip.CacheCapacity)
	case ip.Partitions < 1:
		return fmt.Errorf("need at least one partition, have %d", ip.Partitions)
	case ip.Penalty < 0:
		return fmt.Errorf("negative penalty %g", ip.Penalty)
	case len(ip.Velocity) != 0 && len(ip.Velocity) != 3:
		return fmt.Errorf("velocity needs 3 components, have %d", len(ip.Velocity))
	case len(ip.Substances) == 0:
		return fmt.Errorf("no substances")
	}
	for _, s := range ip.Substances {
		if s.Porosity <= 0 {
			return fmt.Errorf("substance %q: porosity must be positive", s.Name)
		}
		if s.Diffusion < 0 {
			return fmt.Errorf("substance %q: negative diffusion", s.Name)
		}
		if _, err := s.BoundaryType(); err != nil {
			return err
		}
		for region, values := range s.Regions {
			for name := range values {
				if _, err := s.Value(name, region); err != nil {
					return fmt.Errorf("substance %q region %q: %w", s.Name, region, err)
				}
			}
		}
	}
	return nil
}

func (ip *Parameters) Print() {
	ip.Fprint(os.Stdout)
}

func (ip *Parameters) Fprint(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Mesh Dimension\n", ip.Mesh.Dim)
	fmt.Fprintf(w, "%v\t\t\t= Divisions\n", ip.Mesh.Divisions[:ip.Mesh.Dim])
	fmt.Fprintf(w, "[%d]\t\t\t\t= Polynomial Order\n", ip.PolynomialOrder)
	fmt.Fprintf(w, "[%d, %d]\t\t\t= Bulk, Side Quadrature Order\n", ip.BulkQuadratureOrder, ip.SideQuadratureOrder)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Cache Capacity\n", ip.CacheCapacity)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Partitions\n", ip.Partitions)
	fmt.Fprintf(w, "%8.5f\t\t= Penalty\n", ip.Penalty)
	for _, s := range ip.Substances {
		bc, _ := s.BoundaryType()
		fmt.Fprintf(w, "Substance[%s] = porosity %g, diffusion %g, source %g, sigma %g, boundary %g (%s)\n",
			s.Name, s.Porosity, s.Diffusion, s.Source, s.Sigma, s.BoundaryValue, bc)
		keys := make([]string, 0, len(s.Regions))
		for k := range s.Regions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "Substance[%s].Regions[%s] = %v\n", s.Name, key, s.Regions[key])
		}
	}
}
