// File: internal/history/store.go (complete file)

package history

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/logging"
	"github.com/baptistax/connscope/internal/metrics"
)

var log = logging.Logger("history")

var (
	// ErrBusy is returned by ToggleFavorite while another toggle is in flight.
	ErrBusy     = errors.New("history: favorite toggle in progress")
	ErrNotFound = errors.New("history: no such entry")
)

const (
	keyEntries   = "h"
	keyFavorites = "f"
	keyCounter   = "i"
)

const DefaultMaxNonFavorites = 10

// KV is the persisted key/value surface the store needs; *kv.Store
// satisfies it.
type KV interface {
	GetOr(k string, def []byte) ([]byte, error)
	Put(k string, v []byte) error
	IncrUint64(k string, delta uint64) (uint64, error)
}

type Options struct {
	KV              KV
	MaxNonFavorites int
	Now             func() time.Time
	Metrics         *metrics.Metrics
}

// Entry is a persisted record paired with its favorite status.
type Entry struct {
	conninfo.Stored
	Favorite bool
}

type Store struct {
	kv      KV
	max     int
	now     func() time.Time
	metrics *metrics.Metrics

	// mu serialises every read-modify-write of the entry list.
	mu      sync.Mutex
	favBusy atomic.Bool

	live liveCycle
}

func New(opt Options) *Store {
	s := &Store{
		kv:      opt.KV,
		max:     opt.MaxNonFavorites,
		now:     opt.Now,
		metrics: opt.Metrics,
	}
	if s.max <= 0 {
		s.max = DefaultMaxNonFavorites
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.live.init()
	return s
}

// record is one slot of the persisted list. Blobs that fail to decode are
// carried through rewrites untouched and never counted.
type record struct {
	raw    []byte
	stored conninfo.Stored
	ok     bool
}

func (s *Store) readLocked() ([]record, []uint64, error) {
	rawList, err := s.kv.GetOr(keyEntries, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("history: read entries: %w", err)
	}
	blobs, err := conninfo.DecodeBlobs(rawList)
	if err != nil {
		return nil, nil, fmt.Errorf("history: read entries: %w", err)
	}
	recs := make([]record, 0, len(blobs))
	for i, b := range blobs {
		st, err := conninfo.DecodeStored(b)
		if err != nil {
			log.Warn("skipping malformed history record", "index", i, "err", err)
			s.metrics.History("malformed")
			recs = append(recs, record{raw: b})
			continue
		}
		recs = append(recs, record{raw: b, stored: st, ok: true})
	}

	rawFav, err := s.kv.GetOr(keyFavorites, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("history: read favorites: %w", err)
	}
	favs, err := conninfo.DecodeIDs(rawFav)
	if err != nil {
		log.Warn("discarding malformed favorite list", "err", err)
		favs = nil
	}
	return recs, favs, nil
}

func (s *Store) writeEntriesLocked(recs []record) error {
	blobs := make([][]byte, 0, len(recs))
	for _, r := range recs {
		blobs = append(blobs, r.raw)
	}
	if err := s.kv.Put(keyEntries, conninfo.EncodeBlobs(blobs)); err != nil {
		return fmt.Errorf("history: write entries: %w", err)
	}
	return nil
}

// nextID hands out ids from the persisted counter, starting at 0.
func (s *Store) nextID() (uint64, error) {
	n, err := s.kv.IncrUint64(keyCounter, 1)
	if err != nil {
		return 0, fmt.Errorf("history: next id: %w", err)
	}
	return n - 1, nil
}

// RecordCandidate appends repr unless an entry with the same identity
// (metadata fields and address counts) already exists. It reports whether
// a new entry was written.
func (s *Store) RecordCandidate(repr conninfo.Repr) (conninfo.Stored, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, favs, err := s.readLocked()
	if err != nil {
		return conninfo.Stored{}, false, err
	}
	for _, r := range recs {
		if r.ok && conninfo.SameIdentity(repr, r.stored.Repr, false) {
			log.Debug("connection already in history", "id", r.stored.ID)
			s.metrics.History("duplicate")
			return r.stored, false, nil
		}
	}

	id, err := s.nextID()
	if err != nil {
		return conninfo.Stored{}, false, err
	}
	st := conninfo.Stored{
		Repr:       repr,
		DateMillis: s.now().UnixMilli(),
		ID:         id,
	}
	recs = append(recs, record{raw: conninfo.EncodeStored(st), stored: st, ok: true})
	recs, evicted := evict(recs, favs, s.max)
	if err := s.writeEntriesLocked(recs); err != nil {
		return conninfo.Stored{}, false, err
	}

	log.Info("connection recorded", "id", id, "evicted", evicted)
	s.metrics.History("recorded")
	s.countEvicted(evicted)
	return st, true, nil
}

// EvictIfNeeded drops the oldest non-favorite entries, by persisted order,
// until at most MaxNonFavorites remain. It returns how many were removed.
func (s *Store) EvictIfNeeded() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, n, err := s.evictLocked()
	return n, err
}

func (s *Store) evictLocked() ([]Entry, int, error) {
	recs, favs, err := s.readLocked()
	if err != nil {
		return nil, 0, err
	}
	kept, evicted := evict(recs, favs, s.max)
	if evicted > 0 {
		if err := s.writeEntriesLocked(kept); err != nil {
			return nil, 0, err
		}
		log.Info("evicted old history entries", "count", evicted)
		s.countEvicted(evicted)
	}
	return entries(kept, favs), evicted, nil
}

func (s *Store) countEvicted(n int) {
	for i := 0; i < n; i++ {
		s.metrics.History("evicted")
	}
}

func evict(recs []record, favs []uint64, max int) ([]record, int) {
	var nonFav []int
	for i, r := range recs {
		if r.ok && !slices.Contains(favs, r.stored.ID) {
			nonFav = append(nonFav, i)
		}
	}
	excess := len(nonFav) - max
	if excess <= 0 {
		return recs, 0
	}
	drop := make(map[int]bool, excess)
	for _, i := range nonFav[:excess] {
		drop[i] = true
	}
	kept := make([]record, 0, len(recs)-excess)
	for i, r := range recs {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	return kept, excess
}

func entries(recs []record, favs []uint64) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		if !r.ok {
			continue
		}
		out = append(out, Entry{Stored: r.stored, Favorite: slices.Contains(favs, r.stored.ID)})
	}
	return out
}

// Load evicts if needed and returns every decodable entry in persisted
// order.
func (s *Store) Load() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, _, err := s.evictLocked()
	return out, err
}

// Recent is Load with the most recently added entry first.
func (s *Store) Recent() ([]Entry, error) {
	out, err := s.Load()
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (s *Store) Get(id uint64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, favs, err := s.readLocked()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries(recs, favs) {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// ToggleFavorite flips the favorite status of id and returns the new status.
// A call made while another toggle is running is dropped with ErrBusy.
func (s *Store) ToggleFavorite(id uint64) (bool, error) {
	if !s.favBusy.CompareAndSwap(false, true) {
		return false, ErrBusy
	}
	defer s.favBusy.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, favs, err := s.readLocked()
	if err != nil {
		return false, err
	}
	known := slices.ContainsFunc(recs, func(r record) bool { return r.ok && r.stored.ID == id })
	if !known {
		return false, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	fav := !slices.Contains(favs, id)
	if fav {
		favs = append(favs, id)
	} else {
		favs = slices.DeleteFunc(favs, func(x uint64) bool { return x == id })
	}
	if err := s.kv.Put(keyFavorites, conninfo.EncodeIDs(favs)); err != nil {
		return false, fmt.Errorf("history: write favorites: %w", err)
	}

	if fav {
		log.Info("entry favorited", "id", id)
		s.metrics.History("favorite")
	} else {
		log.Info("entry unfavorited", "id", id)
		s.metrics.History("unfavorite")
	}
	return fav, nil
}

// ResolveByIdentity finds the persisted entry matching repr, comparing
// address values as well as metadata fields.
func (s *Store) ResolveByIdentity(repr conninfo.Repr) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, favs, err := s.readLocked()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries(recs, favs) {
		if conninfo.SameIdentity(e.Repr, repr, true) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// ResolveShare decodes a share token (or link) and looks it up by identity.
// The decoded connection is returned even when no entry matches.
func (s *Store) ResolveShare(token string) (conninfo.Repr, Entry, bool, error) {
	repr, err := conninfo.ParseShareToken(token)
	if err != nil {
		return conninfo.Repr{}, Entry{}, false, err
	}
	e, ok, err := s.ResolveByIdentity(repr)
	return repr, e, ok, err
}
