// Package embedding provides text embedding providers for semantic photo search.
package embedding

import (
	"context"
	"errors"
)

// ErrProvider signals an embedding provider failure. Ingestion for the
// affected photo does not complete; the error is propagated, never swallowed,
// so that no photo silently becomes unsearchable.
var ErrProvider = errors.New("embedding provider error")

// Embedder produces vector embeddings. Image and text queries meet in the
// same vector space because both sides are embedded from text: a photo's
// embedding is derived from its AI analysis (tags, description, caption), a
// query from the query string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
