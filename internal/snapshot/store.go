// Package snapshot persists a single typed value per file. Reads are tolerant (anything
// unusable loads as absent) and writes replace the whole file atomically.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

// lockFor returns the mutex shared by every Store pointing at path.
func lockFor(path string) *sync.Mutex {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	locksMu.Lock()
	defer locksMu.Unlock()
	mu, ok := locks[key]
	if !ok {
		mu = &sync.Mutex{}
		locks[key] = mu
	}
	return mu
}

// Fallback decodes contents that are not valid JSON for T. It returns false when it
// cannot make sense of them either.
type Fallback[T any] func(contents []byte) (T, bool)

type Option[T any] func(*Store[T])

// WithFallback sets the decoder tried after JSON decoding fails.
func WithFallback[T any](fallback Fallback[T]) Option[T] {
	return func(s *Store[T]) {
		s.fallback = fallback
	}
}

// Store reads and writes one value of type T at a fixed path.
type Store[T any] struct {
	path     string
	mu       *sync.Mutex
	fallback Fallback[T]
}

func New[T any](path string, opts ...Option[T]) Store[T] {
	s := Store[T]{
		path: path,
		mu:   lockFor(path),
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s Store[T]) Path() string {
	return s.path
}

// Load returns the stored value, ok is false when the file is missing, empty or
// cannot be decoded.
func (s Store[T]) Load() (value T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s Store[T]) load() (T, bool) {
	var zero T

	contents, err := os.ReadFile(s.path)
	if err != nil {
		return zero, false
	}
	contents = bytes.TrimSpace(contents)
	if len(contents) == 0 {
		return zero, false
	}

	var value T
	err = json.Unmarshal(contents, &value)
	if err == nil {
		return value, true
	}
	if s.fallback != nil {
		return s.fallback(contents)
	}
	return zero, false
}

// Save replaces the stored value. The previous file is left untouched if anything fails.
func (s Store[T]) Save(value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(value)
}

func (s Store[T]) save(value T) error {
	contents, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	_, err = tmp.Write(append(contents, '\n'))
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", tmpName, err)
	}

	err = os.Rename(tmpName, s.path)
	if err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	committed = true
	return nil
}

// Update runs a load, fn and (if fn asks for it) a save while holding the lock for this
// path, so concurrent read-modify-write cycles on the same file cannot interleave.
// An error from fn is returned as is and nothing is saved.
func (s Store[T]) Update(fn func(prev T, ok bool) (next T, save bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.load()
	next, save, err := fn(prev, ok)
	if err != nil {
		return err
	}
	if !save {
		return nil
	}
	return s.save(next)
}
