package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/cloudzy/photofind/internal/analyzer"
	"github.com/cloudzy/photofind/internal/embedding"
	"github.com/cloudzy/photofind/internal/ingest"
	"github.com/cloudzy/photofind/internal/keyword"
	"github.com/cloudzy/photofind/internal/models"
	"github.com/cloudzy/photofind/internal/photostore"
	"github.com/cloudzy/photofind/internal/vector"
)

type testEnv struct {
	engine   *Engine
	pipeline *ingest.Pipeline
	store    photostore.Store
	index    vector.Index
}

func newTestEnv(t *testing.T, withKeywords bool) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := photostore.NewSQLiteStore(filepath.Join(dir, "photos.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := vector.NewFlat(512, vector.MetricSquaredL2)
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}

	var kw keyword.KeywordIndex
	if withKeywords {
		bi, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword.bleve"))
		if err != nil {
			t.Fatalf("failed to create keyword index: %v", err)
		}
		t.Cleanup(func() { bi.Close() })
		kw = bi
	}

	embedder := embedding.NewMockEmbedder(512)
	pipeline := ingest.NewPipeline(store, analyzer.NewMockAnalyzer(), embedder,
		index, kw, nil, zap.NewNop())
	engine := NewEngine(store, embedder, index, kw, nil, zap.NewNop())
	return &testEnv{engine: engine, pipeline: pipeline, store: store, index: index}
}

func (env *testEnv) ingestPhotos(t *testing.T, names ...string) []*models.Photo {
	t.Helper()
	ctx := context.Background()
	photos := make([]*models.Photo, 0, len(names))
	for _, name := range names {
		photo, err := env.pipeline.IngestFile(ctx, "/photos/"+name)
		if err != nil {
			t.Fatalf("failed to ingest %s: %v", name, err)
		}
		photos = append(photos, photo)
	}
	return photos
}

func TestSearchByText(t *testing.T) {
	env := newTestEnv(t, false)
	env.ingestPhotos(t, "sunset_beach.jpg", "mountain_lake.jpg", "city_night.jpg")

	resp, err := env.engine.SearchByText(context.Background(), "sunset on the beach", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 results, got %d", resp.Total)
	}
	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("expected rank %d, got %d", i+1, r.Rank)
		}
		if r.Filename == "" {
			t.Error("expected filename in result")
		}
	}
	// Results come back in ascending distance order.
	if resp.Results[0].Distance > resp.Results[1].Distance {
		t.Errorf("results not sorted by distance: %v then %v",
			resp.Results[0].Distance, resp.Results[1].Distance)
	}
}

func TestSearchByTextEmptyQuery(t *testing.T) {
	env := newTestEnv(t, false)
	if _, err := env.engine.SearchByText(context.Background(), "   ", 5); !errors.Is(err, ErrQueryEmpty) {
		t.Errorf("expected ErrQueryEmpty, got %v", err)
	}
}

func TestSearchByTextEmptyIndex(t *testing.T) {
	env := newTestEnv(t, false)
	resp, err := env.engine.SearchByText(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if resp.Total != 0 {
		t.Errorf("expected no results from empty index, got %d", resp.Total)
	}
}

func TestSearchByTextDeterministic(t *testing.T) {
	env := newTestEnv(t, false)
	env.ingestPhotos(t, "a.jpg", "b.jpg", "c.jpg")

	first, err := env.engine.SearchByText(context.Background(), "garden flowers", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	second, err := env.engine.SearchByText(context.Background(), "garden flowers", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for i := range first.Results {
		if first.Results[i].PhotoID != second.Results[i].PhotoID {
			t.Fatalf("result order changed between identical queries at rank %d", i+1)
		}
		if first.Results[i].Distance != second.Results[i].Distance {
			t.Fatalf("distance changed between identical queries at rank %d", i+1)
		}
	}
}

func TestSearchBySimilar(t *testing.T) {
	env := newTestEnv(t, false)
	photos := env.ingestPhotos(t, "sunset_beach.jpg", "sunset_cliff.jpg", "city_night.jpg")

	resp, err := env.engine.SearchBySimilar(context.Background(), photos[0].ID, 2)
	if err != nil {
		t.Fatalf("similar search failed: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 results, got %d", resp.Total)
	}
	for i, r := range resp.Results {
		if r.PhotoID == photos[0].ID {
			t.Error("reference photo must not appear in its own results")
		}
		if r.Rank != i+1 {
			t.Errorf("expected rank %d after reference exclusion, got %d", i+1, r.Rank)
		}
	}
}

func TestSearchBySimilarUnknownReference(t *testing.T) {
	env := newTestEnv(t, false)
	env.ingestPhotos(t, "a.jpg")

	if _, err := env.engine.SearchBySimilar(context.Background(), 9999, 5); !errors.Is(err, ErrReferenceNotIndexed) {
		t.Errorf("expected ErrReferenceNotIndexed, got %v", err)
	}
}

func TestSearchByKeyword(t *testing.T) {
	env := newTestEnv(t, true)
	env.ingestPhotos(t, "sunset_beach.jpg", "city_night.jpg")

	resp, err := env.engine.SearchByKeyword(context.Background(), "sunset", 10)
	if err != nil {
		t.Fatalf("keyword search failed: %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("expected keyword hits for tag present in index")
	}
	if resp.Results[0].Score <= 0 {
		t.Errorf("expected positive relevance score, got %v", resp.Results[0].Score)
	}
	found := false
	for _, tag := range resp.Results[0].Tags {
		if tag == "sunset" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected top hit tagged sunset, got tags %v", resp.Results[0].Tags)
	}
}

func TestJoinSkipsDeletedMetadata(t *testing.T) {
	env := newTestEnv(t, false)
	photos := env.ingestPhotos(t, "a.jpg", "b.jpg")
	ctx := context.Background()

	// Delete the metadata row but leave the vector in the index, as
	// happens between a delete and the next snapshot flush.
	if err := env.store.DeletePhoto(ctx, photos[0].ID); err != nil {
		t.Fatalf("failed to delete photo: %v", err)
	}

	resp, err := env.engine.SearchByText(ctx, "anything", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected the orphaned hit to be skipped, got %d results", resp.Total)
	}
	if resp.Results[0].PhotoID != photos[1].ID {
		t.Errorf("expected surviving photo %d, got %d", photos[1].ID, resp.Results[0].PhotoID)
	}
	if resp.Results[0].Rank != 1 {
		t.Errorf("expected compacted rank 1, got %d", resp.Results[0].Rank)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	env.ingestPhotos(t, "a.jpg", "b.jpg")

	h := env.engine.Health()
	if h.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", h.Entries)
	}
	if h.Dimensions != 512 {
		t.Errorf("expected 512 dimensions, got %d", h.Dimensions)
	}
}
