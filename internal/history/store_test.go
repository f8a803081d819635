// File: internal/history/store_test.go (complete file)

package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/ipcodec"
	"github.com/baptistax/connscope/internal/storage"
	"github.com/baptistax/connscope/internal/storage/kv"
)

func newStore(t *testing.T) (*Store, *kv.Store) {
	t.Helper()
	e, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	backend := kv.New(e, "history/")
	clock := time.UnixMilli(1_700_000_000_000)
	s := New(Options{
		KV: backend,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	return s, backend
}

func conn(asn uint32) conninfo.Repr {
	return conninfo.Repr{
		Info: conninfo.Snapshot{
			ASNumber:       asn,
			DatacenterCode: "EWR",
			ServerAddr:     ipcodec.V4(asn),
		},
		Addresses: ipcodec.Set{V4: []uint32{asn}},
	}
}

func ids(es []Entry) []uint64 {
	out := make([]uint64, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestRecordCandidate_AssignsIDsFromZero(t *testing.T) {
	s, _ := newStore(t)

	a, ok, err := s.RecordCandidate(conn(1))
	require.NoError(t, err)
	require.True(t, ok)
	b, ok, err := s.RecordCandidate(conn(2))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, uint64(0), a.ID)
	assert.Equal(t, uint64(1), b.ID)
	assert.Less(t, a.DateMillis, b.DateMillis)
}

func TestRecordCandidate_Dedups(t *testing.T) {
	s, _ := newStore(t)

	_, ok, err := s.RecordCandidate(conn(1))
	require.NoError(t, err)
	require.True(t, ok)

	dup := conn(1)
	dup.Info.ReceivedAt = time.Now()
	dup.Info.Source = "check"
	// Address values are not part of the identity, only their count.
	dup.Addresses = ipcodec.Set{V4: []uint32{99}}

	got, ok, err := s.RecordCandidate(dup)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), got.ID)

	all, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEvict_RemovesOldestByPersistedOrder(t *testing.T) {
	s, backend := newStore(t)
	s.max = 100
	for i := uint32(0); i < 11; i++ {
		_, _, err := s.RecordCandidate(conn(i + 1))
		require.NoError(t, err)
	}

	s.max = 10
	n, err := s.EvictIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(all))

	// Persisted too, not only the returned view.
	reopened := New(Options{KV: backend})
	all, err = reopened.Load()
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestEvict_FavoriteSurvives(t *testing.T) {
	s, _ := newStore(t)
	s.max = 100
	for i := uint32(0); i < 11; i++ {
		_, _, err := s.RecordCandidate(conn(i + 1))
		require.NoError(t, err)
	}
	fav, err := s.ToggleFavorite(0)
	require.NoError(t, err)
	require.True(t, fav)

	s.max = 10
	n, err := s.EvictIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "ten non-favorites is within the cap")

	_, _, err = s.RecordCandidate(conn(50))
	require.NoError(t, err)

	all, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, all, 11)
	assert.Equal(t, uint64(0), all[0].ID)
	assert.True(t, all[0].Favorite)
	assert.Equal(t, uint64(2), all[1].ID, "oldest non-favorite is the one evicted")
}

func TestRecordCandidate_EvictsOnAppend(t *testing.T) {
	s, _ := newStore(t)
	for i := uint32(0); i < 12; i++ {
		_, _, err := s.RecordCandidate(conn(i + 1))
		require.NoError(t, err)
	}
	all, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, ids(all))
}

func TestLoad_SkipsAndKeepsMalformedRecords(t *testing.T) {
	s, backend := newStore(t)
	good := conninfo.EncodeStored(conninfo.Stored{Repr: conn(7), ID: 4})
	require.NoError(t, backend.Put(keyEntries, conninfo.EncodeBlobs([][]byte{{0xff, 0xff}, good})))

	all, err := s.Load()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint64(4), all[0].ID)

	_, _, err = s.RecordCandidate(conn(8))
	require.NoError(t, err)
	raw, err := backend.Get(keyEntries)
	require.NoError(t, err)
	blobs, err := conninfo.DecodeBlobs(raw)
	require.NoError(t, err)
	assert.Len(t, blobs, 3)
	assert.Equal(t, []byte{0xff, 0xff}, blobs[0])
}

func TestRecent_NewestFirst(t *testing.T) {
	s, _ := newStore(t)
	for i := uint32(0); i < 3; i++ {
		_, _, err := s.RecordCandidate(conn(i + 1))
		require.NoError(t, err)
	}
	all, err := s.Recent()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 1, 0}, ids(all))
}

func TestToggleFavorite(t *testing.T) {
	s, _ := newStore(t)
	_, _, err := s.RecordCandidate(conn(1))
	require.NoError(t, err)

	fav, err := s.ToggleFavorite(0)
	require.NoError(t, err)
	assert.True(t, fav)
	e, err := s.Get(0)
	require.NoError(t, err)
	assert.True(t, e.Favorite)

	fav, err = s.ToggleFavorite(0)
	require.NoError(t, err)
	assert.False(t, fav)

	_, err = s.ToggleFavorite(42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleFavorite_DropsWhileBusy(t *testing.T) {
	s, _ := newStore(t)
	_, _, err := s.RecordCandidate(conn(1))
	require.NoError(t, err)

	s.favBusy.Store(true)
	_, err = s.ToggleFavorite(0)
	assert.ErrorIs(t, err, ErrBusy)
	s.favBusy.Store(false)

	// Concurrent toggles either apply or are dropped, never interleave.
	var wg sync.WaitGroup
	applied := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ToggleFavorite(0); err == nil {
				applied <- true
			}
		}()
	}
	wg.Wait()
	close(applied)
	n := 0
	for range applied {
		n++
	}
	e, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, n%2 == 1, e.Favorite)
}

func TestLiveCycle_EndToEnd(t *testing.T) {
	s, _ := newStore(t)

	v6, err := ipcodec.ParseV6("1010:1101::1010")
	require.NoError(t, err)
	addrs := ipcodec.Set{}
	addrs.Add(ipcodec.V4(16843009))
	addrs.Add(ipcodec.V6(v6))
	snap := conninfo.Snapshot{ASNumber: 13335, DatacenterCode: "EWR"}

	_, ok, err := s.DiscoveryComplete(addrs)
	require.NoError(t, err)
	assert.False(t, ok, "metadata half still pending")
	_, ok = s.Current()
	assert.False(t, ok)

	st, ok, err := s.MetadataComplete(snap)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0), st.ID)
	assert.Equal(t, []uint32{16843009}, st.Repr.Addresses.V4)

	// A repeated signal within the same cycle does nothing.
	_, ok, err = s.MetadataComplete(snap)
	require.NoError(t, err)
	assert.False(t, ok)

	cur, ok := s.Current()
	require.True(t, ok)
	_, ok, err = s.RecordCandidate(cur)
	require.NoError(t, err)
	assert.False(t, ok)

	s.Reset()
	_, ok = s.Current()
	assert.False(t, ok)
	_, ok, err = s.MetadataComplete(snap)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.DiscoveryComplete(addrs)
	require.NoError(t, err)
	assert.False(t, ok, "same connection next cycle is deduplicated")

	all, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolve(t *testing.T) {
	s, _ := newStore(t)
	_, _, err := s.RecordCandidate(conn(1))
	require.NoError(t, err)

	e, ok, err := s.ResolveByIdentity(conn(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0), e.ID)

	other := conn(1)
	other.Addresses = ipcodec.Set{V4: []uint32{99}}
	_, ok, err = s.ResolveByIdentity(other)
	require.NoError(t, err)
	assert.False(t, ok, "resolution compares address values")

	repr, e, ok, err := s.ResolveShare("https://example.test/" + conninfo.ShareFragment(conn(1)))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), e.ID)
	assert.Equal(t, uint32(1), repr.Info.ASNumber)

	_, _, _, err = s.ResolveShare("!!!")
	assert.ErrorIs(t, err, conninfo.ErrMalformed)
}
