// File: internal/swcache/store.go (complete file)

package swcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/baptistax/connscope/internal/storage"
)

// AssetStore holds cached responses keyed by path.
type AssetStore interface {
	Get(key string) (Asset, bool, error)
	Put(key string, a Asset) error
}

// VersionStore holds the locally known version tag. An empty tag means
// none is known.
type VersionStore interface {
	Version() (string, error)
	SetVersion(v string) error
}

// KV is the persisted surface KVStore needs; *kv.Store satisfies it.
type KV interface {
	Get(k string) ([]byte, error)
	Put(k string, v []byte) error
	GetString(k string) (string, error)
	PutString(k, v string) error
}

const (
	keyVersion     = "v"
	keyAssetPrefix = "a:"
)

// KVStore persists assets and the version tag in the key/value store, with
// an in-memory LRU in front of asset reads.
type KVStore struct {
	kv    KV
	front *lru.Cache[string, Asset]
}

func NewKVStore(backend KV, size int) (*KVStore, error) {
	if size <= 0 {
		size = 256
	}
	front, err := lru.New[string, Asset](size)
	if err != nil {
		return nil, fmt.Errorf("swcache: lru: %w", err)
	}
	return &KVStore{kv: backend, front: front}, nil
}

func (s *KVStore) Get(key string) (Asset, bool, error) {
	if a, ok := s.front.Get(key); ok {
		return a.clone(), true, nil
	}
	raw, err := s.kv.Get(keyAssetPrefix + key)
	if storage.IsNotFound(err) {
		return Asset{}, false, nil
	}
	if err != nil {
		return Asset{}, false, fmt.Errorf("swcache: read %s: %w", key, err)
	}
	a, err := decodeAsset(raw)
	if err != nil {
		log.Warn("dropping undecodable cached asset", "key", key, "err", err)
		return Asset{}, false, nil
	}
	s.front.Add(key, a)
	return a.clone(), true, nil
}

// Put overwrites any previous entry; concurrent writers for one key are
// last-write-wins.
func (s *KVStore) Put(key string, a Asset) error {
	a = a.clone()
	if err := s.kv.Put(keyAssetPrefix+key, encodeAsset(a)); err != nil {
		return fmt.Errorf("swcache: write %s: %w", key, err)
	}
	s.front.Add(key, a)
	return nil
}

func (s *KVStore) Version() (string, error) {
	v, err := s.kv.GetString(keyVersion)
	if storage.IsNotFound(err) {
		return "", nil
	}
	return v, err
}

func (s *KVStore) SetVersion(v string) error {
	return s.kv.PutString(keyVersion, v)
}
