// File: internal/storage/engine.go (complete file)

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/multierr"

	"github.com/baptistax/connscope/internal/logging"
)

var log = logging.Logger("storage")

var (
	ErrNotFound = errors.New("storage: key not found")
	ErrClosed   = errors.New("storage: engine closed")
	ErrEmptyKey = errors.New("storage: empty key")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Engine is a persisted key/value store. Values are opaque.
type Engine struct {
	db     *badger.DB
	closed atomic.Bool
}

// Open opens (creating if needed) a badger database under dir.
func Open(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	opts := badger.DefaultOptions(dir).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log})
	return open(opts)
}

// OpenMemory opens a database that lives only as long as the process.
func OpenMemory() (*Engine, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{log})
	return open(opts)
}

func open(opts badger.Options) (*Engine, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Get(key []byte) ([]byte, error) {
	if err := e.check(key); err != nil {
		return nil, err
	}
	var out []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (e *Engine) Put(key, value []byte) error {
	if err := e.check(key); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (e *Engine) Delete(key []byte) error {
	if err := e.check(key); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (e *Engine) Has(key []byte) (bool, error) {
	_, err := e.Get(key)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// Close syncs and closes the database. Calling it twice is harmless.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if !e.db.Opts().InMemory {
		err = multierr.Append(err, e.db.Sync())
	}
	return multierr.Append(err, e.db.Close())
}

func (e *Engine) check(key []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return nil
}

// badgerLogger routes badger's printf-style log lines into slog. Info and
// debug chatter is demoted to debug.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, args ...interface{}) { b.l.Error(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Warningf(f string, args ...interface{}) { b.l.Warn(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Infof(f string, args ...interface{}) { b.l.Debug(fmt.Sprintf(f, args...)) }
func (b badgerLogger) Debugf(f string, args ...interface{}) { b.l.Debug(fmt.Sprintf(f, args...)) }
