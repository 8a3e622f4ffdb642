// Package analyzer produces descriptive metadata (tags, caption, description)
// for photographs using a vision model.
package analyzer

import (
	"context"
	"errors"

	"github.com/cloudzy/photofind/internal/models"
)

// ErrAnalyzer signals a vision model failure. Like embedding failures, it is
// propagated so the caller can surface the incomplete ingestion.
var ErrAnalyzer = errors.New("image analyzer error")

// Analyzer describes an image file. Implementations must be safe for
// concurrent use; ingestion runs analyses for different photos in parallel.
type Analyzer interface {
	Describe(ctx context.Context, imagePath string) (*models.Analysis, error)
	Close() error
}
