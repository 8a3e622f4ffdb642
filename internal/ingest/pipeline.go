// Package ingest runs the photo ingestion pipeline: analyze the image,
// persist its descriptors, embed the descriptor text, and insert the
// vector into the search index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cloudzy/photofind/internal/analyzer"
	"github.com/cloudzy/photofind/internal/embedding"
	"github.com/cloudzy/photofind/internal/keyword"
	"github.com/cloudzy/photofind/internal/metrics"
	"github.com/cloudzy/photofind/internal/models"
	"github.com/cloudzy/photofind/internal/photostore"
	"github.com/cloudzy/photofind/internal/snapshot"
	"github.com/cloudzy/photofind/internal/vector"
)

// Pipeline coordinates the stages of photo ingestion. A photo is not
// visible to search until every stage has succeeded; a failure at any
// stage leaves the index untouched.
type Pipeline struct {
	store     photostore.Store
	analyzer  analyzer.Analyzer
	embedder  embedding.Embedder
	index     vector.Index
	keywords  keyword.KeywordIndex
	snapshots *snapshot.Manager
	logger    *zap.Logger
}

// NewPipeline creates an ingestion pipeline. snapshots may be nil when no
// persistence is wanted (e.g. one-shot CLI runs against a scratch index).
func NewPipeline(
	store photostore.Store,
	an analyzer.Analyzer,
	embedder embedding.Embedder,
	index vector.Index,
	keywords keyword.KeywordIndex,
	snapshots *snapshot.Manager,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		store:     store,
		analyzer:  an,
		embedder:  embedder,
		index:     index,
		keywords:  keywords,
		snapshots: snapshots,
		logger:    logger,
	}
}

// AnalysisText composes the text that is embedded for a photo. Tags,
// description, and caption are joined so the vector reflects everything
// the analyzer saw. The same composition is used at ingest time and when
// re-embedding during reconciliation, so the two always produce the same
// vector for unchanged metadata.
func AnalysisText(a *models.Analysis) string {
	parts := make([]string, 0, 3)
	if len(a.Tags) > 0 {
		parts = append(parts, strings.Join(a.Tags, " "))
	}
	if a.Description != "" {
		parts = append(parts, a.Description)
	}
	if a.Caption != "" {
		parts = append(parts, a.Caption)
	}
	return strings.Join(parts, ". ")
}

// Ingest runs the full pipeline for a photo already present on disk and
// registered in the store. It analyzes the image, stores the descriptors,
// embeds the descriptor text, and inserts the vector and keywords.
func (p *Pipeline) Ingest(ctx context.Context, photo *models.Photo) error {
	analysis, err := p.analyzer.Describe(ctx, photo.Filepath)
	if err != nil {
		metrics.IngestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to analyze %s: %w", photo.Filename, err)
	}

	if err := p.store.UpdateDescriptors(ctx, photo.ID, analysis); err != nil {
		metrics.IngestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to store descriptors for photo %d: %w", photo.ID, err)
	}
	photo.Tags = analysis.Tags
	photo.Caption = analysis.Caption
	photo.Description = analysis.Description

	if err := p.indexPhoto(ctx, photo.ID, analysis); err != nil {
		metrics.IngestsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.IngestsTotal.WithLabelValues("ok").Inc()
	metrics.IndexEntries.Set(float64(p.index.Count()))
	p.logger.Info("photo ingested",
		zap.Int64("id", photo.ID),
		zap.String("filename", photo.Filename),
		zap.Int("tags", len(analysis.Tags)))
	return nil
}

// IngestFile registers a file with the store (if not already known) and
// ingests it. Used by the upload handler and the upload-directory watcher.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*models.Photo, error) {
	photo, err := p.store.FindByPath(ctx, path)
	if err != nil && !errors.Is(err, photostore.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up %s: %w", path, err)
	}
	if photo == nil {
		photo = &models.Photo{
			Filename: filepath.Base(path),
			Filepath: path,
		}
		if err := p.store.CreatePhoto(ctx, photo); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", path, err)
		}
	}
	if err := p.Ingest(ctx, photo); err != nil {
		return nil, err
	}
	return photo, nil
}

// IngestFileIfNew ingests path only when no photo is registered for it yet.
// The upload watcher uses this: files stored by the HTTP upload handler are
// already analyzed and indexed by the time the filesystem event fires, and
// must not cost a second vision and embedding call. Returns the photo and
// whether an ingestion ran.
func (p *Pipeline) IngestFileIfNew(ctx context.Context, path string) (*models.Photo, bool, error) {
	photo, err := p.store.FindByPath(ctx, path)
	if err != nil && !errors.Is(err, photostore.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up %s: %w", path, err)
	}
	if photo != nil {
		return photo, false, nil
	}
	photo, err = p.IngestFile(ctx, path)
	if err != nil {
		return nil, false, err
	}
	return photo, true, nil
}

// Reembed rebuilds the index entry for a photo from its stored descriptors
// without re-running image analysis. The snapshot manager calls this during
// reconciliation for photos present in the store but missing from the
// snapshot.
func (p *Pipeline) Reembed(ctx context.Context, id int64) error {
	photo, err := p.store.GetPhoto(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load photo %d: %w", id, err)
	}
	analysis := &models.Analysis{
		Tags:        photo.Tags,
		Caption:     photo.Caption,
		Description: photo.Description,
	}
	return p.indexPhoto(ctx, id, analysis)
}

// Remove deletes a photo from the store and all indexes.
func (p *Pipeline) Remove(ctx context.Context, id int64) error {
	if err := p.store.DeletePhoto(ctx, id); err != nil {
		return fmt.Errorf("failed to delete photo %d: %w", id, err)
	}
	if err := p.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove photo %d from index: %w", id, err)
	}
	if p.keywords != nil {
		if err := p.keywords.Delete(ctx, id); err != nil {
			p.logger.Warn("failed to remove photo from keyword index",
				zap.Int64("id", id), zap.Error(err))
		}
	}
	if p.snapshots != nil {
		p.snapshots.MarkDirty()
	}
	metrics.IndexEntries.Set(float64(p.index.Count()))
	p.logger.Info("photo removed", zap.Int64("id", id))
	return nil
}

func (p *Pipeline) indexPhoto(ctx context.Context, id int64, analysis *models.Analysis) error {
	text := AnalysisText(analysis)
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed photo %d: %w", id, err)
	}

	if err := p.index.Insert(ctx, id, vec); err != nil {
		return fmt.Errorf("failed to index photo %d: %w", id, err)
	}

	if p.keywords != nil {
		if err := p.keywords.Index(ctx, id, analysis.Tags, analysis.Caption); err != nil {
			p.logger.Warn("failed to index photo keywords",
				zap.Int64("id", id), zap.Error(err))
		}
	}

	if p.snapshots != nil {
		p.snapshots.MarkDirty()
	}
	return nil
}
