// File: internal/history/live.go (complete file)

package history

import (
	"sync"

	"github.com/baptistax/connscope/internal/barrier"
	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/ipcodec"
)

const (
	slotMetadata = iota
	slotDiscovery
	slotCount
)

// liveCycle is the "current live connection" of one refresh cycle. The
// snapshot is persisted once both the metadata and discovery halves have
// reported.
type liveCycle struct {
	mu        sync.Mutex
	snapshot  *conninfo.Snapshot
	addresses ipcodec.Set
	join      *barrier.Join
}

func (l *liveCycle) init() {
	l.join = barrier.New(slotCount, nil)
}

// MetadataComplete records the cycle's snapshot. When discovery has already
// completed the connection is persisted and the result of RecordCandidate
// is returned; otherwise recorded is false and nothing is written.
func (s *Store) MetadataComplete(snap conninfo.Snapshot) (conninfo.Stored, bool, error) {
	s.live.mu.Lock()
	s.live.snapshot = &snap
	s.live.mu.Unlock()
	return s.arrive(slotMetadata)
}

// DiscoveryComplete records the cycle's discovered addresses; see
// MetadataComplete.
func (s *Store) DiscoveryComplete(addrs ipcodec.Set) (conninfo.Stored, bool, error) {
	s.live.mu.Lock()
	s.live.addresses = addrs.Clone()
	s.live.mu.Unlock()
	return s.arrive(slotDiscovery)
}

func (s *Store) arrive(slot int) (conninfo.Stored, bool, error) {
	if !s.live.join.Arrive(slot) {
		return conninfo.Stored{}, false, nil
	}
	repr, ok := s.Current()
	if !ok {
		return conninfo.Stored{}, false, nil
	}
	return s.RecordCandidate(repr)
}

// Current returns the live connection once its metadata is known.
func (s *Store) Current() (conninfo.Repr, bool) {
	s.live.mu.Lock()
	defer s.live.mu.Unlock()
	if s.live.snapshot == nil {
		return conninfo.Repr{}, false
	}
	return conninfo.Repr{Info: *s.live.snapshot, Addresses: s.live.addresses.Clone()}, true
}

// Reset forgets the live connection and re-opens both completion slots.
// Persisted history is untouched.
func (s *Store) Reset() {
	s.live.mu.Lock()
	s.live.snapshot = nil
	s.live.addresses = ipcodec.Set{}
	s.live.mu.Unlock()
	s.live.join.Reset()
}
