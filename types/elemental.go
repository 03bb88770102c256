package types

import (
	"fmt"
	"sort"
)

const (
	sideKeyBits  = 21
	sideKeyMask  = 1<<sideKeyBits - 1
	maxSideVerts = 3
)

/*
SideKey is an always positive number that stores up to three vertex indices
of a mesh side in a way that can be compared. The vertices are stored in
ascending order, so a side between vertices [4,0,2] and [2,4,0] packs to the
same key. Each slot holds vertex+1, an empty slot is zero, which keeps keys of
sides with different vertex counts apart.
*/
type SideKey uint64

func NewSideKey(verts []int) (packed SideKey) {
	var (
		limit  = sideKeyMask - 1
		sorted = make([]int, len(verts))
	)
	if len(verts) == 0 || len(verts) > maxSideVerts {
		panic(fmt.Errorf("unable to pack %d vertices into a side key", len(verts)))
	}
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack vertex %d into a side key, limit is %d",
				vert, limit))
		}
	}
	copy(sorted, verts)
	sort.Ints(sorted)
	for i, vert := range sorted {
		packed |= SideKey(vert+1) << (sideKeyBits * i)
	}
	return
}

// NumVertices is the number of vertices packed into the key.
func (sk SideKey) NumVertices() (n int) {
	for i := 0; i < maxSideVerts; i++ {
		if (sk>>(sideKeyBits*i))&sideKeyMask != 0 {
			n++
		}
	}
	return
}

// GetVertices returns the packed vertices in ascending order.
func (sk SideKey) GetVertices() (verts []int) {
	for i := 0; i < maxSideVerts; i++ {
		v := int((sk >> (sideKeyBits * i)) & sideKeyMask)
		if v == 0 {
			break
		}
		verts = append(verts, v-1)
	}
	return
}
