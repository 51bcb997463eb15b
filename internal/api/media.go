package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/matheodrd/httphelper/handler"
)

// maxUploadSize caps pond photos/videos at 32 MiB.
const maxUploadSize = 32 << 20

func (s *Server) uploadMedia() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if _, err := s.currentUser(r); err != nil {
			return err
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			return handler.NewErrWithStatus(http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		}
		defer func() {
			if err := file.Close(); err != nil {
				s.logger.Warn("failed to close upload", "error", err)
			}
		}()

		id := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
		if err := os.MkdirAll(s.Config.MediaDir, 0o755); err != nil {
			return fmt.Errorf("creating media dir: %w", err)
		}

		dst, err := os.Create(filepath.Join(s.Config.MediaDir, id))
		if err != nil {
			return fmt.Errorf("creating media file: %w", err)
		}
		size, err := io.Copy(dst, file)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("storing media file: %w", err)
		}

		return respondJSON(w, http.StatusCreated, map[string]any{
			"id":       id,
			"filename": header.Filename,
			"size":     size,
			"url":      "/api/v1/media/" + id,
		})
	})
}

func (s *Server) getMedia() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		id := r.PathValue("id")
		if id == "" || id != filepath.Base(id) {
			return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("invalid media id"))
		}

		path := filepath.Join(s.Config.MediaDir, id)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return handler.NewErrWithStatus(http.StatusNotFound, errors.New("media not found"))
		} else if err != nil {
			return fmt.Errorf("stat media file: %w", err)
		}

		http.ServeFile(w, r, path)
		return nil
	})
}
