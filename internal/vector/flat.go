package vector

import (
	"context"
	"sort"
	"sync"
)

// Flat is a brute-force exact index. Linear scan with float32 distance math
// is adequate up to the hundred-thousand scale; an approximate structure can
// replace it behind the Index interface without changing callers.
type Flat struct {
	codec   *Codec
	metric  Metric
	mu      sync.RWMutex
	vectors map[int64][]float32
}

// NewFlat creates a flat index with the given dimensionality and metric.
func NewFlat(dimensions int, metric Metric) (*Flat, error) {
	codec, err := NewCodec(dimensions)
	if err != nil {
		return nil, err
	}
	return &Flat{
		codec:   codec,
		metric:  metric,
		vectors: make(map[int64][]float32),
	}, nil
}

// Insert adds or replaces the entry for id. The vector is copied; the caller
// keeps ownership of its slice.
func (f *Flat) Insert(ctx context.Context, id int64, vec []float32) error {
	if err := f.codec.Validate(vec); err != nil {
		return err
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	f.mu.Lock()
	f.vectors[id] = stored
	f.mu.Unlock()
	return nil
}

// Remove logically deletes id. Absent ids are a no-op.
func (f *Flat) Remove(ctx context.Context, id int64) error {
	f.mu.Lock()
	delete(f.vectors, id)
	f.mu.Unlock()
	return nil
}

// Search returns up to k results ordered by ascending distance, ties broken
// by ascending photo ID for determinism.
func (f *Flat) Search(ctx context.Context, probe []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if err := f.codec.Validate(probe); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	hits := make([]Result, 0, len(f.vectors))
	for id, vec := range f.vectors {
		hits = append(hits, Result{ID: id, Distance: f.metric.Distance(probe, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

// Vector returns a copy of the stored embedding for id, if present.
func (f *Flat) Vector(id int64) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	vec, ok := f.vectors[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Count returns the number of live entries.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Entries returns a point-in-time copy of the live set, ordered by ID so
// snapshots are byte-stable for identical contents.
func (f *Flat) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, 0, len(f.vectors))
	for id, vec := range f.vectors {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out = append(out, Entry{ID: id, Vector: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReplaceAll swaps the live set for the given entries. Every vector is
// validated; on error the index is left unchanged.
func (f *Flat) ReplaceAll(entries []Entry) error {
	next := make(map[int64][]float32, len(entries))
	for _, e := range entries {
		if err := f.codec.Validate(e.Vector); err != nil {
			return err
		}
		cp := make([]float32, len(e.Vector))
		copy(cp, e.Vector)
		next[e.ID] = cp
	}
	f.mu.Lock()
	f.vectors = next
	f.mu.Unlock()
	return nil
}

// Dimensions returns the index dimensionality.
func (f *Flat) Dimensions() int {
	return f.codec.Dimensions()
}

// Metric returns the distance metric.
func (f *Flat) Metric() Metric {
	return f.metric
}

// Close is a no-op for Flat.
func (f *Flat) Close() error {
	return nil
}
