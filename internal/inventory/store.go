package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Store persists the inventory as a single JSON document. Writes are atomic
// (write-to-temp-then-rename) and serialized through a process mutex plus a
// file lock, so the background worker and an interactive caller can both
// read and mutate safely.
type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore creates a store backed by the document at path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the location of the inventory document.
func (s *Store) Path() string {
	return s.path
}

// Load reads the inventory document. A missing document yields an empty
// inventory rather than an error.
func (s *Store) Load() (*Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save atomically replaces the inventory document.
func (s *Store) Save(inv *Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire inventory lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.saveLocked(inv)
}

// Mutate runs fn against the freshly loaded inventory and persists the result
// in one critical section. Returning an error from fn discards the mutation.
func (s *Store) Mutate(fn func(*Inventory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire inventory lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	inv, err := s.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(inv); err != nil {
		return err
	}
	return s.saveLocked(inv)
}

func (s *Store) loadLocked() (*Inventory, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewInventory(), nil
		}
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	inv := NewInventory()
	if len(data) > 0 {
		if err := json.Unmarshal(data, inv); err != nil {
			return nil, fmt.Errorf("parse inventory %s: %w", s.path, err)
		}
	}
	if inv.Videos == nil {
		inv.Videos = map[string]*VideoRecord{}
	}
	return inv, nil
}

func (s *Store) saveLocked(inv *Inventory) error {
	if inv == nil {
		return errors.New("inventory is nil")
	}
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure inventory directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".inventory-*.json")
	if err != nil {
		return fmt.Errorf("create temp inventory: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp inventory: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp inventory: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace inventory: %w", err)
	}
	return nil
}
