package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/clearpath/internal/parser"
	"github.com/go-chi/chi/v5"
	"github.com/google/renameio"
)

type documentInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// handleListDocuments lists the documents the index is built from.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	names, err := parser.ListDocuments(s.cfg.DocsDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	docs := make([]documentInfo, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(s.cfg.DocsDir, name))
		if err != nil {
			continue
		}
		docs = append(docs, documentInfo{Name: name, SizeBytes: info.Size()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleUploadDocument stores an uploaded document in the corpus directory
// and queues an index rebuild.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	if err := os.MkdirAll(s.cfg.DocsDir, 0o755); err != nil {
		jsonError(w, "failed to store document", http.StatusInternalServerError)
		return
	}
	if err := renameio.WriteFile(filepath.Join(s.cfg.DocsDir, filename), data, 0o644); err != nil {
		s.log.Error("store uploaded document", "file", filename, "error", err)
		jsonError(w, "failed to store document", http.StatusInternalServerError)
		return
	}
	s.log.Info("document uploaded", "file", filename, "bytes", len(data))

	s.queueRebuild(w, map[string]any{"filename": filename})
}

// handleDeleteDocument removes a document from the corpus and queues an
// index rebuild.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := sanitizeFilename(chi.URLParam(r, "name"))
	if !parser.IsSupportedExtension(name) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err := os.Remove(filepath.Join(s.cfg.DocsDir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("document deleted", "file", name)

	s.queueRebuild(w, map[string]any{"deleted": name})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
