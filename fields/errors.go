package fields

import "errors"

var (
	ErrCapacityExceeded     = errors.New("cache capacity exceeded")
	ErrInvalidCacheState    = errors.New("invalid cache state")
	ErrStaleRead            = errors.New("cache read before the update finished")
	ErrUnusedPoint          = errors.New("eval point not marked as used")
	ErrElementNotCached     = errors.New("element not registered in the cache")
	ErrPointOutOfRange      = errors.New("eval point out of range")
	ErrNoSubsets            = errors.New("no eval point subsets registered")
	ErrEvalPointsClosed     = errors.New("eval points are closed")
	ErrIntegralMismatch     = errors.New("integral dimensions do not match")
	ErrAsymmetricQuadrature = errors.New("side quadrature is not symmetric under side permutations")
)
