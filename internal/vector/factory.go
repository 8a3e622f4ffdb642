package vector

import "fmt"

// IndexType selects the index implementation.
type IndexType string

const (
	// IndexTypeFlat uses exact brute-force search. Good up to ~100k vectors.
	IndexTypeFlat IndexType = "flat"
)

// NewIndex creates an index of the given type. An empty type selects flat.
// Approximate implementations plug in here without touching ingestion or the
// query engine.
func NewIndex(indexType string, dimensions int, metric Metric) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return NewFlat(dimensions, metric)
	default:
		return nil, fmt.Errorf("unknown index type: %q (supported: flat)", indexType)
	}
}
