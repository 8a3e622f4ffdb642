package snapshot

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudzy/photofind/internal/vector"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snap")
	want := &Snapshot{
		Dimensions: 3,
		Metric:     vector.MetricSquaredL2,
		Generation: 7,
		Entries: []vector.Entry{
			{ID: 1, Vector: []float32{0.5, -1.25, 3}},
			{ID: 42, Vector: []float32{0, math.MaxFloat32, -0}},
		},
	}
	if err := Write(path, want); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Dimensions != 3 || got.Metric != vector.MetricSquaredL2 || got.Generation != 7 {
		t.Errorf("header mismatch: %+v", got)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(got.Entries))
	}
	for i, e := range got.Entries {
		if e.ID != want.Entries[i].ID {
			t.Errorf("entry %d: id %d, want %d", i, e.ID, want.Entries[i].ID)
		}
		for j := range e.Vector {
			if math.Float32bits(e.Vector[j]) != math.Float32bits(want.Entries[i].Vector[j]) {
				t.Errorf("entry %d component %d not bit-exact", i, j)
			}
		}
	}
}

func TestReadOrEmpty_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.snap")
	s, err := ReadOrEmpty(path, 8, vector.MetricSquaredL2)
	if err != nil {
		t.Fatal(err)
	}
	if s.Generation != 0 || len(s.Entries) != 0 {
		t.Errorf("expected empty generation-0 snapshot, got %+v", s)
	}
	if s.Dimensions != 8 {
		t.Errorf("dimensions = %d, want 8", s.Dimensions)
	}
}

func TestRead_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestWrite_NoPartialPublish(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.snap")
	s := &Snapshot{Dimensions: 2, Metric: vector.MetricSquaredL2, Generation: 1,
		Entries: []vector.Entry{{ID: 1, Vector: []float32{1, 2}}}}
	if err := Write(path, s); err != nil {
		t.Fatal(err)
	}
	// The temp file must not linger next to the published snapshot.
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestSnapshot_IDs(t *testing.T) {
	s := &Snapshot{Entries: []vector.Entry{{ID: 3}, {ID: 9}}}
	ids := s.IDs()
	if len(ids) != 2 {
		t.Fatalf("got %d ids", len(ids))
	}
	if _, ok := ids[3]; !ok {
		t.Error("missing id 3")
	}
	if _, ok := ids[9]; !ok {
		t.Error("missing id 9")
	}
}
