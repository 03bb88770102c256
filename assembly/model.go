package assembly

import (
	"fmt"

	"github.com/notargets/dgcache/fields"
	"github.com/notargets/dgcache/mesh"
	"github.com/notargets/dgcache/types"
)

// Substance holds the coefficients of one transported substance, all scalar
// fields.
type Substance struct {
	Name          string
	Porosity      fields.ValueSource // mass coefficient
	Diffusion     fields.ValueSource
	Source        fields.ValueSource
	Sigma         fields.ValueSource // transfer coefficient between dimensions
	BoundaryValue fields.ValueSource // Dirichlet value or flux on external sides
	BoundaryType  types.BCFLAG
}

func (s Substance) sources() []fields.ValueSource {
	return []fields.ValueSource{s.Porosity, s.Diffusion, s.Source, s.Sigma, s.BoundaryValue}
}

// Model is the advection diffusion problem assembled for every substance.
type Model struct {
	Substances []Substance
	Velocity   fields.ValueSource // 3 x 1, shared by all substances
	Penalty    float64            // interior penalty factor
}

func (md *Model) Validate() error {
	if len(md.Substances) == 0 {
		return fmt.Errorf("model has no substances")
	}
	if md.Velocity == nil {
		return fmt.Errorf("model has no velocity")
	}
	if r, c := md.Velocity.Shape(); r != 3 || c != 1 {
		return fmt.Errorf("velocity of shape %dx%d, want 3x1", r, c)
	}
	if md.Penalty < 0 {
		return fmt.Errorf("negative penalty %g", md.Penalty)
	}
	for _, s := range md.Substances {
		for i, src := range s.sources() {
			if src == nil {
				return fmt.Errorf("substance %q misses coefficient %s", s.Name, coefficientNames[i])
			}
			if r, c := src.Shape(); r != 1 || c != 1 {
				return fmt.Errorf("substance %q coefficient %s of shape %dx%d, want a scalar",
					s.Name, coefficientNames[i], r, c)
			}
		}
	}
	return nil
}

var coefficientNames = [nCoefficients]string{"porosity", "diffusion", "source", "sigma", "boundary value"}

const (
	coefPorosity = iota
	coefDiffusion
	coefSource
	coefSigma
	coefBoundary
	nCoefficients
)

// valueCaches are the cached coefficients of a worker, filled once per cache
// cycle.
type valueCaches struct {
	velocity     *fields.FieldValueCache
	coefficients [][nCoefficients]*fields.FieldValueCache // per substance
}

func newValueCaches(md *Model, ep *fields.EvalPoints, capacity int) (vc *valueCaches, err error) {
	vc = &valueCaches{
		velocity:     fields.NewFieldValueCache(3, 1),
		coefficients: make([][nCoefficients]*fields.FieldValueCache, len(md.Substances)),
	}
	if err = vc.velocity.Init(ep, capacity); err != nil {
		return
	}
	for s := range md.Substances {
		for c := 0; c < nCoefficients; c++ {
			vc.coefficients[s][c] = fields.NewFieldValueCache(1, 1)
			if err = vc.coefficients[s][c].Init(ep, capacity); err != nil {
				return
			}
		}
	}
	return
}

func (vc *valueCaches) fill(cm *fields.ElementCacheMap, m *mesh.Mesh, md *Model) (err error) {
	if err = fields.FillCache(cm, m, md.Velocity, vc.velocity); err != nil {
		return
	}
	for s, sub := range md.Substances {
		for c, src := range sub.sources() {
			if err = fields.FillCache(cm, m, src, vc.coefficients[s][c]); err != nil {
				return fmt.Errorf("substance %q %s: %w", sub.Name, coefficientNames[c], err)
			}
		}
	}
	return
}
