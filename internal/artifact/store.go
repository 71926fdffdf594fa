// Package artifact manages the tabular handoff files passed between
// pipeline stages. Each run gets its own raw and clean artifact,
// addressed by the run identifier.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when an expected artifact is missing while
// work was expected. Stage-fatal.
var ErrNotFound = errors.New("artifact not found")

// Store resolves and persists run-scoped artifacts under a base directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// RawPath returns the raw wide-format artifact path for a run.
func (s *Store) RawPath(runID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("raw_market_data_%s.csv", runID))
}

// CleanPath returns the clean long-format artifact path for a run.
func (s *Store) CleanPath(runID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("clean_market_data_%s.csv", runID))
}

// open opens an artifact for reading, mapping a missing file to ErrNotFound.
func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}
