// Package keyword provides keyword (BM25) search over photo tags and captions.
package keyword

import "context"

// KeywordIndex defines keyword search operations over photo descriptors.
type KeywordIndex interface {
	Index(ctx context.Context, id int64, tags []string, caption string) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    int64
	Score float64
}
