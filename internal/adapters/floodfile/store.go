// Package floodfile is the in-memory flood line store, optionally mirrored
// to a JSON file on every mutation.
package floodfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/floodroute/internal/core/domain"
	"github.com/samirrijal/floodroute/internal/pkg/metrics"
)

// Store implements ports.FloodRepository.
//
// The in-memory map is authoritative for the lifetime of the process. The
// file, when enabled, is rewritten in full after every mutation and read once
// in New. Write failures are logged and never reach the caller.
type Store struct {
	mu     sync.Mutex
	floods map[string]domain.FloodLine
	order  []string

	persist bool
	path    string
	log     *slog.Logger
}

// New creates a store. When persist is true the file at path is loaded; a
// missing file yields an empty store, as does an unreadable or corrupt one.
func New(path string, persist bool) *Store {
	s := &Store{
		floods:  make(map[string]domain.FloodLine),
		persist: persist,
		path:    path,
		log:     slog.Default().With("component", "floodfile", "path", path),
	}
	if persist {
		s.load()
	}
	return s
}

// List returns a copy of all flood lines in insertion order.
func (s *Store) List(_ context.Context) ([]domain.FloodLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FloodLine, 0, len(s.order))
	for _, id := range s.order {
		fl := s.floods[id]
		out = append(out, domain.FloodLine{ID: fl.ID, Coordinates: fl.Coordinates.Clone()})
	}
	return out, nil
}

// Add stores coordinates under a fresh id. Degenerate lines are accepted.
func (s *Store) Add(_ context.Context, coordinates domain.Polyline) (domain.FloodLine, error) {
	if coordinates == nil {
		coordinates = domain.Polyline{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for s.has(id) {
		id = uuid.NewString()
	}

	fl := domain.FloodLine{ID: id, Coordinates: coordinates.Clone()}
	s.floods[id] = fl
	s.order = append(s.order, id)
	s.save()

	return domain.FloodLine{ID: id, Coordinates: fl.Coordinates.Clone()}, nil
}

// Remove deletes the flood line with id and reports whether it existed.
func (s *Store) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.floods[id]; !ok {
		return false, nil
	}
	delete(s.floods, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.save()
	return true, nil
}

func (s *Store) has(id string) bool {
	_, ok := s.floods[id]
	return ok
}

// Len returns the number of stored lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// save must be called with mu held.
func (s *Store) save() {
	if !s.persist {
		return
	}
	if err := s.writeFile(); err != nil {
		metrics.PersistErrors.Inc()
		s.log.Warn("flood file write failed", "error", err)
	}
}

func (s *Store) writeFile() error {
	data, err := s.encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".floods-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace flood file: %w", err)
	}
	return nil
}

// encode renders {id: {id, coordinates}, ...} keeping insertion order.
func (s *Store) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, fmt.Errorf("encode id: %w", err)
		}
		val, err := json.Marshal(s.floods[id])
		if err != nil {
			return nil, fmt.Errorf("encode flood %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Store) load() {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		s.log.Warn("flood file unreadable, starting empty", "error", err)
		return
	}
	defer f.Close()

	floods, order, err := decode(f)
	if err != nil {
		s.log.Warn("flood file corrupt, starting empty", "error", err)
		return
	}
	s.floods, s.order = floods, order
	s.log.Info("flood file loaded", "count", len(order))
}

// decode streams the top-level object so that file order becomes list order.
// The map key is the canonical id.
func decode(r io.Reader) (map[string]domain.FloodLine, []string, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("read start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	floods := make(map[string]domain.FloodLine)
	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("read key: %w", err)
		}
		id, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key, got %v", tok)
		}

		var fl domain.FloodLine
		if err := dec.Decode(&fl); err != nil {
			return nil, nil, fmt.Errorf("decode flood %s: %w", id, err)
		}
		fl.ID = id
		if fl.Coordinates == nil {
			fl.Coordinates = domain.Polyline{}
		}

		if _, dup := floods[id]; !dup {
			order = append(order, id)
		}
		floods[id] = fl
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("read end: %w", err)
	}
	return floods, order, nil
}
