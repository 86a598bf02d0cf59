// Package keyvalstore wraps badger as the durable key-value table
// behind the key custody service and the access ledger. Writes are
// atomic per key; the store offers no merge semantics, matching the
// last-writer-wins contract of the custody records.
package keyvalstore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// ErrKeyNotFound is returned by Read for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// StoreConfig configures the store.
type StoreConfig struct {
	Path          string // data directory
	MinimumFreeGB int    // refuse to open below this free-space threshold
	Logger        *logrus.Logger
}

// KeyValStore is a badger-backed durable key-value store.
type KeyValStore struct {
	config       StoreConfig
	badgerDB     *badger.DB
	log          *logrus.Logger
	readCounter  uint64
	writeCounter uint64
}

// New opens the store at config.Path, creating the directory if it
// does not exist yet.
func New(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log := config.Logger

	if err := config.check(); err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // 100MB per value log file
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger at %s: %w", config.Path, err)
	}

	if err := logDiskUsage(log, config.Path); err != nil {
		log.Warnf("could not report disk usage: %v", err)
	}

	return &KeyValStore{
		config:   config,
		badgerDB: db,
		log:      log,
	}, nil
}

// Write stores content under key, overwriting any prior value.
func (k *KeyValStore) Write(key []byte, content []byte) error {
	atomic.AddUint64(&k.writeCounter, 1)

	return k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, content)
	})
}

// Read returns the value for key, or ErrKeyNotFound.
func (k *KeyValStore) Read(key []byte) ([]byte, error) {
	atomic.AddUint64(&k.readCounter, 1)

	var value []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Has reports whether key exists.
func (k *KeyValStore) Has(key []byte) (bool, error) {
	atomic.AddUint64(&k.readCounter, 1)

	err := k.badgerDB.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (k *KeyValStore) Delete(key []byte) error {
	atomic.AddUint64(&k.writeCounter, 1)

	return k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Counters returns the read and write operation counts since open.
func (k *KeyValStore) Counters() (reads, writes uint64) {
	return atomic.LoadUint64(&k.readCounter), atomic.LoadUint64(&k.writeCounter)
}

// Close closes the underlying badger database.
func (k *KeyValStore) Close() error {
	return k.badgerDB.Close()
}
