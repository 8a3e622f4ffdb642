package vector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

func TestFlat_KNNFixture(t *testing.T) {
	idx, err := NewFlat(2, MetricSquaredL2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	points := map[int64][]float32{
		1: {0, 0},
		2: {1, 0},
		3: {0, 2},
		4: {3, 3},
		5: {-1, -1},
	}
	for id, v := range points {
		if err := idx.Insert(ctx, id, v); err != nil {
			t.Fatal(err)
		}
	}

	probe := []float32{0.1, 0.1}
	results, err := idx.Search(ctx, probe, 3)
	if err != nil {
		t.Fatal(err)
	}

	// Brute-force reference ordering.
	type ref struct {
		id   int64
		dist float32
	}
	refs := make([]ref, 0, len(points))
	for id, v := range points {
		refs = append(refs, ref{id, SquaredL2(probe, v)})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].dist != refs[j].dist {
			return refs[i].dist < refs[j].dist
		}
		return refs[i].id < refs[j].id
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.ID != refs[i].id {
			t.Errorf("rank %d: got id %d, want %d", i+1, r.ID, refs[i].id)
		}
		if r.Rank != i+1 {
			t.Errorf("rank field = %d, want %d", r.Rank, i+1)
		}
		if i > 0 && results[i-1].Distance > r.Distance {
			t.Errorf("distances not ascending at rank %d", i+1)
		}
	}
}

func TestFlat_Reflexivity(t *testing.T) {
	idx, _ := NewFlat(3, MetricSquaredL2)
	ctx := context.Background()
	v := []float32{0.5, -0.25, 1}
	if err := idx.Insert(ctx, 7, v); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, v, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != 7 {
		t.Fatalf("expected self match, got %+v", results)
	}
	if results[0].Distance != 0 {
		t.Errorf("self distance = %v, want 0", results[0].Distance)
	}
}

func TestFlat_InsertIdempotent(t *testing.T) {
	idx, _ := NewFlat(2, MetricSquaredL2)
	ctx := context.Background()
	v := []float32{1, 2}
	_ = idx.Insert(ctx, 1, v)
	_ = idx.Insert(ctx, 1, v)
	if idx.Count() != 1 {
		t.Errorf("Count = %d after duplicate insert, want 1", idx.Count())
	}

	// Same id with a different vector replaces the prior entry.
	if err := idx.Insert(ctx, 1, []float32{9, 9}); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 1 {
		t.Errorf("Count = %d after replace, want 1", idx.Count())
	}
	got, ok := idx.Vector(1)
	if !ok || got[0] != 9 {
		t.Errorf("replace did not take effect: %v", got)
	}
}

func TestFlat_Remove(t *testing.T) {
	idx, _ := NewFlat(2, MetricSquaredL2)
	ctx := context.Background()
	_ = idx.Insert(ctx, 1, []float32{1, 0})
	_ = idx.Insert(ctx, 2, []float32{0, 1})

	if err := idx.Remove(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 1 {
		t.Errorf("Count = %d, want 1", idx.Count())
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == 1 {
			t.Error("removed id returned by search")
		}
	}

	// Removing an absent id is a no-op, not an error.
	if err := idx.Remove(ctx, 99); err != nil {
		t.Errorf("Remove(absent) = %v", err)
	}
	if idx.Count() != 1 {
		t.Errorf("Count changed by no-op remove")
	}
}

func TestFlat_SearchInvalidK(t *testing.T) {
	idx, _ := NewFlat(2, MetricSquaredL2)
	for _, k := range []int{0, -5} {
		if _, err := idx.Search(context.Background(), []float32{0, 0}, k); !errors.Is(err, ErrInvalidK) {
			t.Errorf("Search k=%d: got %v, want ErrInvalidK", k, err)
		}
	}
}

func TestFlat_SearchEmpty(t *testing.T) {
	idx, _ := NewFlat(2, MetricSquaredL2)
	results, err := idx.Search(context.Background(), []float32{0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty index returned %d results", len(results))
	}
}

func TestFlat_FewerThanK(t *testing.T) {
	idx, _ := NewFlat(2, MetricSquaredL2)
	ctx := context.Background()
	_ = idx.Insert(ctx, 1, []float32{1, 1})
	results, err := idx.Search(ctx, []float32{0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestFlat_DimensionMismatchLeavesCount(t *testing.T) {
	idx, _ := NewFlat(512, MetricSquaredL2)
	ctx := context.Background()
	_ = idx.Insert(ctx, 1, make([]float32, 512))

	err := idx.Insert(ctx, 2, make([]float32, 256))
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if idx.Count() != 1 {
		t.Errorf("Count = %d after rejected insert, want 1", idx.Count())
	}
}

func TestFlat_TieBreakByID(t *testing.T) {
	idx, _ := NewFlat(2, MetricSquaredL2)
	ctx := context.Background()
	// Equidistant from the probe.
	_ = idx.Insert(ctx, 30, []float32{1, 0})
	_ = idx.Insert(ctx, 10, []float32{0, 1})
	_ = idx.Insert(ctx, 20, []float32{-1, 0})

	results, err := idx.Search(ctx, []float32{0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{10, 20, 30}
	for i, r := range results {
		if r.ID != want[i] {
			t.Errorf("rank %d: got %d, want %d", i+1, r.ID, want[i])
		}
	}
}

func TestFlat_InnerProductMetric(t *testing.T) {
	idx, _ := NewFlat(2, MetricInnerProduct)
	ctx := context.Background()
	_ = idx.Insert(ctx, 1, []float32{1, 0})
	_ = idx.Insert(ctx, 2, []float32{0.5, 0.5})

	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != 1 {
		t.Errorf("top hit = %d, want 1 (highest inner product)", results[0].ID)
	}
	if results[0].Distance != -1 {
		t.Errorf("distance = %v, want -1 (negative inner product)", results[0].Distance)
	}
}

func TestFlat_ConcurrentInserts(t *testing.T) {
	const n = 64
	idx, _ := NewFlat(4, MetricSquaredL2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			v := []float32{float32(id), 0, 0, 1}
			if err := idx.Insert(ctx, id, v); err != nil {
				t.Errorf("insert %d: %v", id, err)
			}
			// Concurrent reads must not block each other or corrupt state.
			if _, err := idx.Search(ctx, v, 3); err != nil {
				t.Errorf("search %d: %v", id, err)
			}
		}(int64(i))
	}
	wg.Wait()

	if idx.Count() != n {
		t.Fatalf("Count = %d, want %d", idx.Count(), n)
	}
	for i := int64(0); i < n; i++ {
		v, ok := idx.Vector(i)
		if !ok {
			t.Fatalf("missing vector %d", i)
		}
		if v[0] != float32(i) || v[3] != 1 {
			t.Fatalf("corrupted vector %d: %v", i, v)
		}
	}
}

func TestParseMetric(t *testing.T) {
	cases := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"", MetricSquaredL2, false},
		{"l2", MetricSquaredL2, false},
		{"ip", MetricInnerProduct, false},
		{"cosine", "", true},
	}
	for _, c := range cases {
		got, err := ParseMetric(c.in)
		if c.wantErr != (err != nil) {
			t.Errorf("ParseMetric(%q) err = %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseMetric(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMetricCodeRoundTrip(t *testing.T) {
	for _, m := range []Metric{MetricSquaredL2, MetricInnerProduct} {
		got, err := MetricFromCode(m.Code())
		if err != nil || got != m {
			t.Errorf("MetricFromCode(Code(%q)) = %q, %v", m, got, err)
		}
	}
	if _, err := MetricFromCode(0); err == nil {
		t.Error("MetricFromCode(0) should fail")
	}
}

func TestNewIndex(t *testing.T) {
	for _, typ := range []string{"", "flat"} {
		idx, err := NewIndex(typ, 8, MetricSquaredL2)
		if err != nil {
			t.Fatalf("NewIndex(%q): %v", typ, err)
		}
		if idx.Dimensions() != 8 {
			t.Errorf("Dimensions = %d", idx.Dimensions())
		}
	}
	if _, err := NewIndex("hnsw", 8, MetricSquaredL2); err == nil {
		t.Error("unknown index type should fail")
	}
}

func BenchmarkFlatSearch(b *testing.B) {
	idx, _ := NewFlat(128, MetricSquaredL2)
	ctx := context.Background()
	probe := make([]float32, 128)
	for i := 0; i < 10000; i++ {
		v := make([]float32, 128)
		v[i%128] = float32(i)
		_ = idx.Insert(ctx, int64(i), v)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Search(ctx, probe, 10); err != nil {
			b.Fatal(err)
		}
	}
}
