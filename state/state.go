// Package state persists the currently-shown source path per output so
// a slideshow resumes at the same image across restarts. Storage is a
// separate TOML namespace from the engine's own configuration.
package state

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/waybg/waybg/internal/xdgpaths"
)

const fileName = "state.toml"

// document is the on-disk TOML shape: one current source path per
// output name.
type document struct {
	Outputs map[string]string `toml:"outputs"`
}

// Store is a concurrency-safe, file-backed record of the current
// source path per output. Writes are atomic (write to a temp file,
// then rename) so a crash mid-write never corrupts the file a
// subsequent startup reads.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open loads the state file at the default XDG state location,
// creating an empty one in memory if it does not yet exist on disk.
func Open() (*Store, error) {
	return OpenAt(filepath.Join(xdgpaths.StateHome(), "waybg", fileName))
}

// OpenAt loads the state file at an explicit path, for tests and
// embedders that don't want the XDG default.
func OpenAt(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Outputs: make(map[string]string)}}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	if _, err := toml.DecodeFile(path, &s.doc); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", path, err)
	}
	if s.doc.Outputs == nil {
		s.doc.Outputs = make(map[string]string)
	}
	return s, nil
}

// Current returns the recorded source path for output, if any.
func (s *Store) Current(output string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.doc.Outputs[output]
	return path, ok
}

// SetCurrent records path as output's current source and persists the
// change immediately.
func (s *Store) SetCurrent(output, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Outputs[output] = path
	return s.writeLocked()
}

func (s *Store) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&s.doc); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write state temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
