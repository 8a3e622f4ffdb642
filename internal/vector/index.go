// Package vector provides the photo embedding index and nearest-neighbour search.
package vector

import "context"

// Index stores (photo ID, embedding) pairs and answers k-nearest-neighbour
// queries. It owns nothing but the vectors; all other photo attributes live
// in the metadata store.
type Index interface {
	// Insert adds or replaces the entry for id. Identical re-inserts are idempotent.
	Insert(ctx context.Context, id int64, vec []float32) error
	// Remove logically deletes id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id int64) error
	// Search returns up to k results ordered by ascending distance, ties
	// broken by ascending photo ID. Returns ErrInvalidK when k < 1. Fewer
	// than k results is not an error; an empty index yields an empty slice.
	Search(ctx context.Context, probe []float32, k int) ([]Result, error)
	// Vector returns the stored embedding for id, if present.
	Vector(id int64) ([]float32, bool)
	// Count returns the number of live entries.
	Count() int
	// Entries returns a consistent point-in-time copy of the live set.
	Entries() []Entry
	// ReplaceAll swaps the live set for the given entries (snapshot load).
	ReplaceAll(entries []Entry) error
	Dimensions() int
	Metric() Metric
	Close() error
}

// Entry is one live (photo ID, embedding) pair.
type Entry struct {
	ID     int64
	Vector []float32
}

// Result is a single nearest-neighbour hit. Distance semantics depend on the
// index metric (see Metric); Rank is the 1-based position in the result list.
type Result struct {
	ID       int64
	Distance float32
	Rank     int
}
