package pki

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/mocktide/mocktide/internal/core"
)

// Store writes TLS material to a scratch directory and tracks every
// file per listener so it can be removed on release and on shutdown.
// It implements core.MaterialStore.
type Store struct {
	dir     string
	cleanup bool
	log     *slog.Logger

	mu    sync.Mutex
	files map[string][]string
}

// NewStore prepares the scratch directory. cleanup controls whether
// Shutdown removes remaining files.
func NewStore(dir string, cleanup bool) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "mocktide-tls")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir %q: %w", dir, err)
	}
	return &Store{
		dir:     dir,
		cleanup: cleanup,
		log:     slog.Default().With("component", "material-store"),
		files:   map[string][]string{},
	}, nil
}

// Dir returns the scratch directory.
func (s *Store) Dir() string { return s.dir }

// Write creates a tracked scratch file named
// <listenerID>-<kind>-<uuid>.pem with mode 0600. The O_EXCL create
// guarantees the file is new.
func (s *Store) Write(listenerID string, pemContent []byte, kind core.MaterialKind) (string, error) {
	name := fmt.Sprintf("%s-%s-%s.pem", listenerID, kind, uuid.NewString())
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s material for %q: %w", kind, listenerID, err)
	}
	_, writeErr := f.Write(pemContent)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if writeErr == nil {
			writeErr = closeErr
		}
		return "", fmt.Errorf("write %s material for %q: %w", kind, listenerID, writeErr)
	}

	s.mu.Lock()
	s.files[listenerID] = append(s.files[listenerID], path)
	s.mu.Unlock()

	return path, nil
}

// Release deletes all tracked files of a listener, best-effort.
func (s *Store) Release(listenerID string) error {
	s.mu.Lock()
	paths := s.files[listenerID]
	delete(s.files, listenerID)
	s.mu.Unlock()

	var errs []error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.log.Warn("incomplete material release", "listener", listenerID, "errors", len(errs))
	}
	return errors.Join(errs...)
}

// Shutdown releases every listener's files when cleanup is enabled.
func (s *Store) Shutdown() {
	if !s.cleanup {
		return
	}

	s.mu.Lock()
	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Release(id)
	}
}
