// File: internal/storage/kv/store.go (complete file)

package kv

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/baptistax/connscope/internal/storage"
)

var ErrCorrupted = errors.New("kv: corrupted value")

// Backend is the subset of storage.Engine the store needs.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
}

// Store namespaces every key under a fixed prefix so several components can
// share one engine.
type Store struct {
	backend Backend
	prefix  []byte
	mu      sync.Mutex
}

func New(b Backend, prefix string) *Store {
	return &Store{backend: b, prefix: []byte(prefix)}
}

func (s *Store) key(k string) []byte {
	out := make([]byte, 0, len(s.prefix)+len(k))
	out = append(out, s.prefix...)
	return append(out, k...)
}

func (s *Store) Get(k string) ([]byte, error) { return s.backend.Get(s.key(k)) }

func (s *Store) Put(k string, v []byte) error { return s.backend.Put(s.key(k), v) }

func (s *Store) Delete(k string) error { return s.backend.Delete(s.key(k)) }

func (s *Store) Has(k string) (bool, error) { return s.backend.Has(s.key(k)) }

// GetOr returns def when the key is absent.
func (s *Store) GetOr(k string, def []byte) ([]byte, error) {
	v, err := s.Get(k)
	if storage.IsNotFound(err) {
		return def, nil
	}
	return v, err
}

func (s *Store) GetString(k string) (string, error) {
	v, err := s.Get(k)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *Store) PutString(k, v string) error { return s.Put(k, []byte(v)) }

func (s *Store) GetUint64(k string) (uint64, error) {
	v, err := s.Get(k)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, ErrCorrupted
	}
	return binary.BigEndian.Uint64(v), nil
}

func (s *Store) PutUint64(k string, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return s.Put(k, b[:])
}

// IncrUint64 adds delta to the counter at k (absent counts as zero) and
// returns the new value.
func (s *Store) IncrUint64(k string, delta uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.GetUint64(k)
	if err != nil && !storage.IsNotFound(err) {
		return 0, err
	}
	next := cur + delta
	if err := s.PutUint64(k, next); err != nil {
		return 0, err
	}
	return next, nil
}
