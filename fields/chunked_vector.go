package fields

import (
	"fmt"

	"github.com/notargets/dgcache/types"
)

// ChunkedVector is a reusable growable array split in a permanent part and
// temporary items pushed after it. Storage is kept across Reset, growth is
// amortized doubling in steps of at least one chunk.
type ChunkedVector[T any] struct {
	data          []T
	chunk         int
	permanentSize int
	sealed        bool
}

func NewChunkedVector[T any](reserved, chunk int) *ChunkedVector[T] {
	return &ChunkedVector[T]{
		data:  make([]T, 0, reserved),
		chunk: max(chunk, 1),
	}
}

// Reset drops all items, the storage is kept.
func (cv *ChunkedVector[T]) Reset() {
	cv.data = cv.data[:0]
	cv.permanentSize = 0
	cv.sealed = false
}

// PushBack appends a temporary item and returns its index. Pushing to a
// vector made permanent in this cycle without a Reset panics.
func (cv *ChunkedVector[T]) PushBack(v T) int {
	if cv.sealed {
		panic(fmt.Errorf("%w: push to a permanent chunked vector without reset", ErrInvalidCacheState))
	}
	if len(cv.data) == cap(cv.data) {
		cv.data = types.GrowSlice(cv.data, max(2*cap(cv.data), cap(cv.data)+cv.chunk))
	}
	cv.data = append(cv.data, v)
	return len(cv.data) - 1
}

// MakePermanent fixes all temporary items. It is legal once per Reset.
func (cv *ChunkedVector[T]) MakePermanent() {
	if cv.sealed {
		panic(fmt.Errorf("%w: chunked vector made permanent twice", ErrInvalidCacheState))
	}
	cv.permanentSize = len(cv.data)
	cv.sealed = true
}

// RevertTemporary drops the items pushed since the last MakePermanent.
func (cv *ChunkedVector[T]) RevertTemporary() {
	cv.data = cv.data[:cv.permanentSize]
}

func (cv *ChunkedVector[T]) TemporarySize() int { return len(cv.data) }

func (cv *ChunkedVector[T]) PermanentSize() int { return cv.permanentSize }

func (cv *ChunkedVector[T]) Cap() int { return cap(cv.data) }

// At returns item i of the permanent part.
func (cv *ChunkedVector[T]) At(i int) T {
	if i < 0 || i >= cv.permanentSize {
		panic(fmt.Errorf("%w: index %d, permanent size %d", ErrPointOutOfRange, i, cv.permanentSize))
	}
	return cv.data[i]
}

// Permanent returns a view of the permanent items.
func (cv *ChunkedVector[T]) Permanent() []T { return cv.data[:cv.permanentSize] }
