package config

import (
	"fmt"
	"math"

	"github.com/notargets/dgcache/assembly"
	"github.com/notargets/dgcache/fields"
	"github.com/notargets/dgcache/mesh"
	"github.com/notargets/dgcache/types"
)

const fractureTol = 1.e-9

// BuildMesh generates the box mesh with its regions and fracture.
func (ip *Parameters) BuildMesh() (m *mesh.Mesh, err error) {
	mp := ip.Mesh
	regionOf := func(c [3]float64) string {
		for _, rb := range mp.Regions {
			if rb.Contains(c, mp.Dim) {
				return rb.Name
			}
		}
		return "bulk"
	}
	if m, err = mesh.NewBoxMesh(mp.Dim, mp.Divisions, mp.Size, regionOf); err != nil {
		return
	}
	if f := mp.Fracture; f != nil {
		var n int
		n, err = m.EmbedLowerDim("fracture", func(c [3]float64) bool {
			return math.Abs(c[f.Axis]-f.Position) < fractureTol
		})
		if err != nil {
			return
		}
		if n == 0 {
			err = fmt.Errorf("no interior sides at %g on axis %d", f.Position, f.Axis)
		}
	}
	return
}

// BuildModel turns the substance parameters into per region constant fields
// on the regions of m.
func (ip *Parameters) BuildModel(m *mesh.Mesh) (md *assembly.Model, err error) {
	md = &assembly.Model{Penalty: ip.Penalty}
	velocity := ip.Velocity
	if len(velocity) == 0 {
		velocity = []float64{0, 0, 0}
	}
	if md.Velocity, err = fields.NewConstantField(3, 1, velocity...); err != nil {
		return
	}
	for _, sp := range ip.Substances {
		var coefs [5]*fields.ConstantField
		for i, name := range Coefficients {
			if coefs[i], err = ip.regionField(m, sp, name); err != nil {
				return
			}
		}
		var bc types.BCFLAG
		if bc, err = sp.BoundaryType(); err != nil {
			return
		}
		md.Substances = append(md.Substances, assembly.Substance{
			Name:          sp.Name,
			Porosity:      coefs[0],
			Diffusion:     coefs[1],
			Source:        coefs[2],
			Sigma:         coefs[3],
			BoundaryValue: coefs[4],
			BoundaryType:  bc,
		})
	}
	err = md.Validate()
	return
}

func (ip *Parameters) regionField(m *mesh.Mesh, sp SubstanceParameters, name string) (cf *fields.ConstantField, err error) {
	var def float64
	if def, err = sp.Value(name, ""); err != nil {
		return
	}
	if cf, err = fields.NewConstantField(1, 1, def); err != nil {
		return
	}
	for region := range sp.Regions {
		idx, ok := m.RegionIdx(region)
		if !ok {
			return nil, fmt.Errorf("substance %q: unknown region %q", sp.Name, region)
		}
		var v float64
		if v, err = sp.Value(name, region); err != nil {
			return
		}
		if err = cf.SetRegion(idx, v); err != nil {
			return
		}
	}
	return
}
