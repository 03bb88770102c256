package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Test packed int for side labeling
		sk := NewSideKey([]int{1, 0})
		assert.Equal(t, SideKey(1+2<<21), sk)
		assert.Equal(t, []int{0, 1}, sk.GetVertices())
		assert.Equal(t, 2, sk.NumVertices())

		assert.Equal(t, NewSideKey([]int{4, 0, 2}), NewSideKey([]int{2, 4, 0}))
		assert.Equal(t, []int{0, 2, 4}, NewSideKey([]int{2, 4, 0}).GetVertices())

		// Sides with different vertex counts never collide
		assert.NotEqual(t, NewSideKey([]int{7}), NewSideKey([]int{0, 7}))
		assert.Equal(t, 1, NewSideKey([]int{0}).NumVertices())

		// Test maximum indices
		big := 1<<21 - 2
		sk = NewSideKey([]int{big, big - 1, 0})
		assert.Equal(t, []int{0, big - 1, big}, sk.GetVertices())

		assert.Panics(t, func() { NewSideKey([]int{1<<21 - 1}) })
		assert.Panics(t, func() { NewSideKey([]int{-1}) })
		assert.Panics(t, func() { NewSideKey([]int{0, 1, 2, 3}) })
	}
	{
		s := make([]int, 3, 3)
		s[1] = 7
		g := GrowSlice(s, 10)
		assert.Equal(t, 3, len(g))
		assert.Equal(t, 10, cap(g))
		assert.Equal(t, 7, g[1])
		assert.Equal(t, 10, cap(GrowSlice(g, 4)))
	}
	{
		tokens := []string{"Dirichlet", " inflow", "total_flux", "unknown", "diffusive_flux"}
		flags := []BCFLAG{BC_Dirichlet, BC_Inflow, BC_TotalFlux, BC_None, BC_DiffusiveFlux}
		for i, token := range tokens {
			assert.Equal(t, flags[i], NewBCFLAG(token))
		}
		assert.Equal(t, "dirichlet", BC_Dirichlet.String())
	}
}
