package idsync

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/objectfs/storenode/internal/identity"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// Store keeps the ids files peers push to this node and serves them back.
// Files live at <dir>/<node>/<backend>/ids.
type Store struct {
	dir    string
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "id store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.IO(errors.ErrCodeIOOpen, err, "failed to create id store '%s'", dir)
	}
	s := &Store{dir: dir, logger: utils.Component(logger, "idstore"), mux: http.NewServeMux()}
	s.mux.HandleFunc("GET "+PathPrefix+"{node}/{backend}", s.handleGet)
	s.mux.HandleFunc("PUT "+PathPrefix+"{node}/{backend}", s.handlePut)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Path returns where the set of node's backend is kept.
func (s *Store) Path(node string, backendID int) (string, error) {
	return utils.SecureJoin(s.dir, node, strconv.Itoa(backendID), identity.FileName)
}

func (s *Store) resolve(r *http.Request) (string, int, bool) {
	node := r.PathValue("node")
	id, err := strconv.Atoi(r.PathValue("backend"))
	if err != nil || id < 0 || node == "" || node == "." || node == ".." {
		return "", 0, false
	}
	path, err := s.Path(node, id)
	if err != nil {
		return "", 0, false
	}
	return path, id, true
}

func (s *Store) handleGet(w http.ResponseWriter, r *http.Request) {
	path, _, ok := s.resolve(r)
	if !ok {
		http.Error(w, "bad ids path", http.StatusBadRequest)
		return
	}

	ids, err := identity.ReadFile(path)
	switch {
	case errors.HasCode(err, errors.ErrCodeNotFound):
		http.Error(w, "no ids", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("failed to read stored ids", "path", path, "error", err)
		http.Error(w, "ids unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(ids)*identity.IDSize))
	_, _ = w.Write(identity.Encode(ids))
}

func (s *Store) handlePut(w http.ResponseWriter, r *http.Request) {
	path, id, ok := s.resolve(r)
	if !ok {
		http.Error(w, "bad ids path", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}
	ids, err := identity.Decode(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.logger.Error("failed to create ids directory", "path", path, "error", err)
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}
	if err := identity.WriteFile(path, ids); err != nil {
		s.logger.Error("failed to store ids", "path", path, "error", err)
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}

	s.logger.Debug("stored pushed ids", "node", r.PathValue("node"), "backend", id, "ids", len(ids))
	w.WriteHeader(http.StatusNoContent)
}
