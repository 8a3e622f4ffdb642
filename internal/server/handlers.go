package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudzy/photofind/internal/analyzer"
	"github.com/cloudzy/photofind/internal/embedding"
	"github.com/cloudzy/photofind/internal/models"
	"github.com/cloudzy/photofind/internal/photostore"
	"github.com/cloudzy/photofind/internal/search"
	"github.com/cloudzy/photofind/internal/vector"
)

// maxUploadBytes caps the multipart form size for photo uploads.
const maxUploadBytes = 32 << 20

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtension(ext, s.config.Watch.Extensions) {
		s.respondError(w, http.StatusBadRequest, "unsupported file type "+ext)
		return
	}

	// Stored under a unique name so repeated uploads of the same
	// filename never clobber each other.
	stored := filepath.Join(s.config.Storage.UploadDir, uuid.NewString()+ext)
	if err := os.MkdirAll(s.config.Storage.UploadDir, 0o755); err != nil {
		s.logger.Error("failed to create upload dir", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	dst, err := os.Create(stored)
	if err != nil {
		s.logger.Error("failed to create upload file", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(stored)
		s.logger.Error("failed to write upload file", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(stored)
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	// The record keeps the original name for display; the stored path
	// stays unique.
	photo := &models.Photo{Filename: header.Filename, Filepath: stored}
	if err := s.store.CreatePhoto(r.Context(), photo); err != nil {
		os.Remove(stored)
		s.logger.Error("failed to register photo", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.pipeline.Ingest(r.Context(), photo); err != nil {
		// The file and metadata row stay: the photo is in the known
		// recoverable state (stored but unindexed) and reconciliation
		// or a re-upload can finish the job.
		s.logger.Error("ingestion failed", zap.String("filename", header.Filename), zap.Error(err))
		if errors.Is(err, embedding.ErrProvider) || errors.Is(err, analyzer.ErrAnalyzer) {
			s.respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, photo)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	k, err := s.parseLimit(r.URL.Query().Get("k"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	response, err := s.engine.SearchByText(r.Context(), query, k)
	if err != nil {
		if errors.Is(err, search.ErrQueryEmpty) || errors.Is(err, vector.ErrInvalidK) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	k, err := s.parseLimit(r.URL.Query().Get("k"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	response, err := s.engine.SearchByKeyword(r.Context(), query, k)
	if err != nil {
		if errors.Is(err, search.ErrQueryEmpty) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}
	k, err := s.parseLimit(r.URL.Query().Get("k"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	response, err := s.engine.SearchBySimilar(r.Context(), id, k)
	if err != nil {
		if errors.Is(err, search.ErrReferenceNotIndexed) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		if errors.Is(err, vector.ErrInvalidK) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("similar search failed", zap.Int64("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// maxListLimit caps the page size for photo listing.
const maxListLimit = 100

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	skip := 0
	if raw := r.URL.Query().Get("skip"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid skip")
			return
		}
		skip = parsed
	}
	limit := s.config.Search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	photos, err := s.store.ListPhotos(r.Context(), skip, limit)
	if err != nil {
		s.logger.Error("list photos failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, photos)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}
	photo, err := s.store.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, photostore.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "photo not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, photo)
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid photo id")
		return
	}
	if err := s.pipeline.Remove(r.Context(), id); err != nil {
		if errors.Is(err, photostore.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "photo not found")
			return
		}
		s.logger.Error("deletion failed", zap.Int64("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Health())
}

func allowedExtension(ext string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// parseLimit parses a k query parameter, falling back to the configured
// default and clamping to the configured maximum. An explicit non-positive
// or non-numeric k is rejected so every search endpoint agrees.
func (s *Server) parseLimit(raw string) (int, error) {
	k := s.config.Search.DefaultLimit
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, fmt.Errorf("k must be a positive integer, got %q", raw)
		}
		k = parsed
	}
	if k > s.config.Search.MaxLimit {
		k = s.config.Search.MaxLimit
	}
	return k, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
