// Package search implements the query engine: text search, image-to-image
// search, and keyword search over the photo index.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloudzy/photofind/internal/embedding"
	"github.com/cloudzy/photofind/internal/keyword"
	"github.com/cloudzy/photofind/internal/metrics"
	"github.com/cloudzy/photofind/internal/models"
	"github.com/cloudzy/photofind/internal/photostore"
	"github.com/cloudzy/photofind/internal/snapshot"
	"github.com/cloudzy/photofind/internal/vector"
)

// ErrQueryEmpty is returned when a text query is empty or whitespace.
var ErrQueryEmpty = errors.New("query is empty")

// ErrReferenceNotIndexed is returned when image-to-image search references
// a photo that has no vector in the index.
var ErrReferenceNotIndexed = errors.New("reference photo is not indexed")

// Engine answers search queries against the vector index, joining hits
// with photo metadata from the store. Index order is authoritative: the
// metadata join never re-sorts results.
type Engine struct {
	store     photostore.Store
	embedder  embedding.Embedder
	index     vector.Index
	keywords  keyword.KeywordIndex
	snapshots *snapshot.Manager
	logger    *zap.Logger
}

// NewEngine creates a query engine. keywords and snapshots may be nil.
func NewEngine(
	store photostore.Store,
	embedder embedding.Embedder,
	index vector.Index,
	keywords keyword.KeywordIndex,
	snapshots *snapshot.Manager,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:     store,
		embedder:  embedder,
		index:     index,
		keywords:  keywords,
		snapshots: snapshots,
		logger:    logger,
	}
}

// SearchByText embeds the query text and returns the k nearest photos.
func (e *Engine) SearchByText(ctx context.Context, query string, k int) (*models.SearchResponse, error) {
	start := time.Now()
	if isBlank(query) {
		metrics.SearchesTotal.WithLabelValues("text", "error").Inc()
		return nil, ErrQueryEmpty
	}

	probe, err := e.embedder.Embed(ctx, query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("text", "error").Inc()
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.index.Search(ctx, probe, k)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("text", "error").Inc()
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results, err := e.join(ctx, hits)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("text", "error").Inc()
		return nil, err
	}

	metrics.SearchesTotal.WithLabelValues("text", "ok").Inc()
	metrics.SearchDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
	e.logger.Debug("text search",
		zap.String("query", query),
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)))
	return &models.SearchResponse{
		Query:       query,
		Results:     results,
		Total:       len(results),
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// SearchBySimilar returns the k photos most similar to an already-indexed
// photo. The stored vector is used as the probe, so no analysis or
// embedding call happens at query time. The reference photo itself is
// excluded from the results.
func (e *Engine) SearchBySimilar(ctx context.Context, photoID int64, k int) (*models.SearchResponse, error) {
	start := time.Now()

	probe, ok := e.index.Vector(photoID)
	if !ok {
		metrics.SearchesTotal.WithLabelValues("similar", "error").Inc()
		return nil, fmt.Errorf("photo %d: %w", photoID, ErrReferenceNotIndexed)
	}

	// The reference is its own nearest neighbor, so fetch one extra hit
	// and drop it before ranking.
	hits, err := e.index.Search(ctx, probe, k+1)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("similar", "error").Inc()
		return nil, fmt.Errorf("search failed: %w", err)
	}

	filtered := make([]vector.Result, 0, k)
	for _, h := range hits {
		if h.ID == photoID {
			continue
		}
		if len(filtered) == k {
			break
		}
		filtered = append(filtered, h)
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}

	results, err := e.join(ctx, filtered)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("similar", "error").Inc()
		return nil, err
	}

	metrics.SearchesTotal.WithLabelValues("similar", "ok").Inc()
	metrics.SearchDuration.WithLabelValues("similar").Observe(time.Since(start).Seconds())
	return &models.SearchResponse{
		Query:       fmt.Sprintf("similar:%d", photoID),
		Results:     results,
		Total:       len(results),
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// SearchByKeyword runs a keyword (BM25) search over tags and captions.
func (e *Engine) SearchByKeyword(ctx context.Context, query string, k int) (*models.SearchResponse, error) {
	start := time.Now()
	if isBlank(query) {
		metrics.SearchesTotal.WithLabelValues("keyword", "error").Inc()
		return nil, ErrQueryEmpty
	}
	if e.keywords == nil {
		metrics.SearchesTotal.WithLabelValues("keyword", "error").Inc()
		return nil, errors.New("keyword search is not enabled")
	}

	hits, err := e.keywords.Search(ctx, query, k)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("keyword", "error").Inc()
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	photos, err := e.store.GetPhotos(ctx, ids)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("keyword", "error").Inc()
		return nil, fmt.Errorf("failed to load photo metadata: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(hits))
	for _, h := range hits {
		photo, ok := photos[h.ID]
		if !ok {
			continue
		}
		results = append(results, &models.SearchResult{
			PhotoID:  photo.ID,
			Filename: photo.Filename,
			Tags:     photo.Tags,
			Caption:  photo.Caption,
			Score:    h.Score,
			Rank:     len(results) + 1,
		})
	}

	metrics.SearchesTotal.WithLabelValues("keyword", "ok").Inc()
	metrics.SearchDuration.WithLabelValues("keyword").Observe(time.Since(start).Seconds())
	return &models.SearchResponse{
		Query:       query,
		Results:     results,
		Total:       len(results),
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health reports index size, snapshot generation, and dimensionality.
func (e *Engine) Health() *models.Health {
	h := &models.Health{
		Entries:    e.index.Count(),
		Dimensions: e.index.Dimensions(),
	}
	if e.snapshots != nil {
		h.Generation = e.snapshots.Generation()
	}
	return h
}

// join resolves index hits to full search results, preserving index order.
// Hits whose metadata rows have been deleted are skipped, not errors:
// the index may briefly trail the store between a delete and the next
// flush.
func (e *Engine) join(ctx context.Context, hits []vector.Result) ([]*models.SearchResult, error) {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	photos, err := e.store.GetPhotos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load photo metadata: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(hits))
	for _, h := range hits {
		photo, ok := photos[h.ID]
		if !ok {
			e.logger.Debug("search hit has no metadata row, skipping",
				zap.Int64("id", h.ID))
			continue
		}
		results = append(results, &models.SearchResult{
			PhotoID:  photo.ID,
			Filename: photo.Filename,
			Tags:     photo.Tags,
			Caption:  photo.Caption,
			Distance: h.Distance,
			Rank:     len(results) + 1,
		})
	}
	return results, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
