// Package photostore defines persistence for photo metadata.
package photostore

import (
	"context"
	"errors"

	"github.com/cloudzy/photofind/internal/models"
)

// ErrNotFound is returned when a photo does not exist in the store.
var ErrNotFound = errors.New("photo not found")

// Store persists photo metadata. The search subsystem only reads from it:
// AllIDs is the authoritative ID set for reconciliation, GetPhotos the batch
// lookup for result joining. Writes happen in the upload and delete paths.
type Store interface {
	CreatePhoto(ctx context.Context, photo *models.Photo) error
	GetPhoto(ctx context.Context, id int64) (*models.Photo, error)
	// GetPhotos returns metadata for the given IDs. Missing IDs are simply
	// absent from the result map, not an error.
	GetPhotos(ctx context.Context, ids []int64) (map[int64]*models.Photo, error)
	// FindByPath returns the photo stored at the given file path.
	FindByPath(ctx context.Context, path string) (*models.Photo, error)
	// ListPhotos returns a page of photos in insertion order.
	ListPhotos(ctx context.Context, offset, limit int) ([]*models.Photo, error)
	// UpdateDescriptors stores the AI-derived descriptors for a photo.
	UpdateDescriptors(ctx context.Context, id int64, analysis *models.Analysis) error
	DeletePhoto(ctx context.Context, id int64) error
	// AllIDs returns every photo ID, the authority for index reconciliation.
	AllIDs(ctx context.Context) ([]int64, error)
	CountPhotos(ctx context.Context) (int64, error)
	Close() error
}
