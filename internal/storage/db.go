package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = badger.ErrKeyNotFound

// errStopScan ends a Scan early without reporting an error.
var errStopScan = errors.New("stop scan")

// StopScan may be returned from a Scan callback to end iteration.
func StopScan() error { return errStopScan }

// Options configures DocStorage.
type Options struct {
	// InMemory keeps all data in memory; Path is ignored.
	InMemory bool
	Logger   *slog.Logger
}

// DocStorage provides low-level BadgerDB operations for document storage
type DocStorage struct {
	db *badger.DB
}

// NewDocStorage creates a new document storage instance
func NewDocStorage(path string, o Options) (*DocStorage, error) {
	opts := badger.DefaultOptions(path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if o.Logger != nil {
		opts.Logger = badgerLogger{o.Logger.With("component", "badger")}
	} else {
		opts.Logger = nil
	}

	opts.NumVersionsToKeep = 1
	opts.NumCompactors = 2
	opts.ValueThreshold = 1024
	opts.BlockCacheSize = 64 << 20
	opts.IndexCacheSize = 32 << 20
	opts.MemTableSize = 32 << 20
	opts.SyncWrites = false
	opts.DetectConflicts = false

	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &DocStorage{db: badgerDB}, nil
}

// Close closes the BadgerDB instance
func (ds *DocStorage) Close() error {
	return ds.db.Close()
}

// Set stores a document with the given key
func (ds *DocStorage) Set(key string, data []byte) error {
	return ds.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Get retrieves a document by key
func (ds *DocStorage) Get(key string) ([]byte, error) {
	var data []byte

	err := ds.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})

	return data, err
}

// Delete removes a document by key
func (ds *DocStorage) Delete(key string) error {
	return ds.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Scan iterates over all keys with the given prefix in key order. Returning
// StopScan() from fn ends the iteration cleanly.
func (ds *DocStorage) Scan(prefix string, fn func(key string, value []byte) error) error {
	err := ds.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.Key())

			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if err := fn(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errStopScan) {
		return nil
	}
	return err
}

// Count returns the number of keys with the given prefix
func (ds *DocStorage) Count(prefix string) (int64, error) {
	var count int64

	err := ds.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// BatchSet stores multiple key-value pairs atomically
func (ds *DocStorage) BatchSet(items map[string][]byte) error {
	return ds.db.Update(func(txn *badger.Txn) error {
		for key, data := range items {
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetJSON stores a JSON-serializable value
func (ds *DocStorage) SetJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return ds.Set(key, data)
}

// GetJSON retrieves and unmarshals a JSON value
func (ds *DocStorage) GetJSON(key string, dest interface{}) error {
	data, err := ds.Get(key)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
