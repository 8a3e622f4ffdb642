package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when a search is requested with k < 1.
	ErrInvalidK = errors.New("k must be positive")
	// ErrNotFound is returned when a photo has no entry in the index.
	ErrNotFound = errors.New("not found in index")
	// ErrNonFinite is returned when a vector contains NaN or infinite components.
	ErrNonFinite = errors.New("vector contains non-finite value")
)

// DimensionMismatchError indicates a vector whose length does not match the
// index dimensionality. Mismatched vectors are rejected, never truncated or padded.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// InvalidDimensionError indicates an invalid configured dimensionality.
type InvalidDimensionError struct {
	Dimension int
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}
