// Package photostore provides the SQLite implementation of the Store interface.
package photostore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cloudzy/photofind/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		caption TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_photos_filename ON photos(filename);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_photos_filepath ON photos(filepath);
	`
	_, err := db.Exec(schema)
	return err
}

// CreatePhoto inserts a photo and sets its assigned ID.
func (s *SQLiteStore) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	tagsJSON, err := json.Marshal(photo.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	if photo.Tags == nil {
		tagsJSON = []byte("[]")
	}
	photo.CreatedAt = time.Now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO photos (filename, filepath, tags, caption, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		photo.Filename, photo.Filepath, string(tagsJSON), photo.Caption, photo.Description, photo.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	photo.ID = id
	return nil
}

// GetPhoto returns a photo by ID.
func (s *SQLiteStore) GetPhoto(ctx context.Context, id int64) (*models.Photo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, filepath, tags, caption, description, created_at
		 FROM photos WHERE id = ?`, id)
	return scanPhoto(row)
}

// FindByPath returns the photo stored at path.
func (s *SQLiteStore) FindByPath(ctx context.Context, path string) (*models.Photo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, filepath, tags, caption, description, created_at
		 FROM photos WHERE filepath = ?`, path)
	return scanPhoto(row)
}

func scanPhoto(row *sql.Row) (*models.Photo, error) {
	var photo models.Photo
	var tagsJSON string
	err := row.Scan(&photo.ID, &photo.Filename, &photo.Filepath, &tagsJSON,
		&photo.Caption, &photo.Description, &photo.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &photo.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	return &photo, nil
}

// GetPhotos returns metadata for the given IDs; missing IDs are absent from
// the result, not an error.
func (s *SQLiteStore) GetPhotos(ctx context.Context, ids []int64) (map[int64]*models.Photo, error) {
	out := make(map[int64]*models.Photo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, filepath, tags, caption, description, created_at
		 FROM photos WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var photo models.Photo
		var tagsJSON string
		if err := rows.Scan(&photo.ID, &photo.Filename, &photo.Filepath, &tagsJSON,
			&photo.Caption, &photo.Description, &photo.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &photo.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		out[photo.ID] = &photo
	}
	return out, rows.Err()
}

// ListPhotos returns a page of photos in insertion order.
func (s *SQLiteStore) ListPhotos(ctx context.Context, offset, limit int) ([]*models.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, filepath, tags, caption, description, created_at
		 FROM photos ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := make([]*models.Photo, 0, limit)
	for rows.Next() {
		var photo models.Photo
		var tagsJSON string
		if err := rows.Scan(&photo.ID, &photo.Filename, &photo.Filepath, &tagsJSON,
			&photo.Caption, &photo.Description, &photo.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &photo.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		photos = append(photos, &photo)
	}
	return photos, rows.Err()
}

// UpdateDescriptors stores AI-derived tags, caption, and description.
func (s *SQLiteStore) UpdateDescriptors(ctx context.Context, id int64, analysis *models.Analysis) error {
	tagsJSON, err := json.Marshal(analysis.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	if analysis.Tags == nil {
		tagsJSON = []byte("[]")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE photos SET tags = ?, caption = ?, description = ? WHERE id = ?`,
		string(tagsJSON), analysis.Caption, analysis.Description, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePhoto removes a photo by ID.
func (s *SQLiteStore) DeletePhoto(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	return err
}

// AllIDs returns every photo ID in ascending order.
func (s *SQLiteStore) AllIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM photos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountPhotos returns the number of stored photos.
func (s *SQLiteStore) CountPhotos(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
