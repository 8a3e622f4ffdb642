// Package models defines core data structures for photos and search results.
package models

import "time"

// Photo is the metadata record for an uploaded photograph. The embedding
// itself lives in the vector index, keyed by ID; it is never duplicated here.
type Photo struct {
	ID          int64     `json:"id" db:"id"`
	Filename    string    `json:"filename" db:"filename"`
	Filepath    string    `json:"filepath" db:"filepath"`
	Tags        []string  `json:"tags" db:"tags"`
	Caption     string    `json:"caption" db:"caption"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Analysis holds the AI-derived descriptors for a photo.
type Analysis struct {
	Tags        []string `json:"tags"`
	Caption     string   `json:"caption"`
	Description string   `json:"description"`
}
