package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skshohagmiah/flin-fanout/internal/collection"
	"github.com/skshohagmiah/flin-fanout/internal/storage"
)

const indexMetadataKey = "db:indexes_metadata"

// Option configures a DocStore.
type Option func(*DocStore)

// WithMaxMembershipValues sets the per-query cap on list values.
func WithMaxMembershipValues(n int) Option {
	return func(ds *DocStore) {
		if n > 0 {
			ds.maxValues = n
		}
	}
}

// WithLogger sets the logger used by the store and by Badger.
func WithLogger(l *slog.Logger) Option {
	return func(ds *DocStore) {
		if l != nil {
			ds.log = l
		}
	}
}

// InMemory keeps the store in memory; the path passed to New is ignored.
func InMemory() Option {
	return func(ds *DocStore) { ds.inMemory = true }
}

// DocStore provides high-level document database operations
type DocStore struct {
	storage   *storage.DocStorage
	log       *slog.Logger
	maxValues int
	inMemory  bool

	mu sync.RWMutex
	// Index tracking: collection -> field -> value key -> document IDs
	indexes map[string]map[string]map[string][]string
}

// New creates a new document store
func New(path string, opts ...Option) (*DocStore, error) {
	ds := &DocStore{
		log:       slog.Default(),
		maxValues: DefaultMaxMembershipValues,
		indexes:   make(map[string]map[string]map[string][]string),
	}
	for _, opt := range opts {
		opt(ds)
	}
	ds.log = ds.log.With("component", "db")

	store, err := storage.NewDocStorage(path, storage.Options{InMemory: ds.inMemory, Logger: ds.log})
	if err != nil {
		return nil, err
	}
	ds.storage = store

	if err := ds.loadIndexMetadata(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load indexes: %w", err)
	}

	return ds, nil
}

// Close closes the document store
func (ds *DocStore) Close() error {
	return ds.storage.Close()
}

// MaxMembershipValues is the per-query cap on list values.
func (ds *DocStore) MaxMembershipValues() int {
	return ds.maxValues
}

// Collection returns a queryable handle over a collection.
func (ds *DocStore) Collection(name string) collection.Ref {
	return &Ref{store: ds, collection: name, limit: -1}
}

// Insert adds a new document to a collection
func (ds *DocStore) Insert(coll string, doc Document) (string, error) {
	if err := checkCollection(coll); err != nil {
		return "", err
	}

	if doc == nil {
		doc = make(Document)
	}

	id, ok := doc[FieldID].(string)
	if !ok || id == "" {
		id = uuid.New().String()
		doc[FieldID] = id
	}

	now := time.Now().UnixMilli()
	doc[FieldCreatedAt] = now
	doc[FieldUpdatedAt] = now

	prev, _ := ds.Get(coll, id)
	if err := ds.put(coll, id, doc); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	if prev != nil {
		ds.removeIndexes(coll, id, prev)
	}
	ds.updateIndexes(coll, id, doc)
	return id, nil
}

// InsertMany inserts documents in one batch and returns their ids in order.
func (ds *DocStore) InsertMany(coll string, docs []Document) ([]string, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	ids := make([]string, len(docs))
	items := make(map[string][]byte, len(docs))
	// last position of each id; earlier docs with the same id are overwritten
	last := make(map[string]int, len(docs))
	prev := make(map[string]Document)
	for i, doc := range docs {
		if doc == nil {
			doc = make(Document)
			docs[i] = doc
		}
		id, ok := doc[FieldID].(string)
		if !ok || id == "" {
			id = uuid.New().String()
			doc[FieldID] = id
		}
		doc[FieldCreatedAt] = now
		doc[FieldUpdatedAt] = now

		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document %s: %w", id, err)
		}
		items[makeKey(coll, id)] = data
		ids[i] = id
		last[id] = i
		if _, checked := prev[id]; !checked {
			old, _ := ds.Get(coll, id)
			prev[id] = old
		}
	}

	if err := ds.storage.BatchSet(items); err != nil {
		return nil, fmt.Errorf("failed to insert documents: %w", err)
	}
	for id, old := range prev {
		if old != nil {
			ds.removeIndexes(coll, id, old)
		}
	}
	for i, doc := range docs {
		if last[ids[i]] == i {
			ds.updateIndexes(coll, ids[i], doc)
		}
	}
	return ids, nil
}

// Get retrieves a document by ID
func (ds *DocStore) Get(coll, id string) (Document, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidDocument
	}

	data, err := ds.storage.Get(makeKey(coll, id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// tryUseIndexes attempts to use an equality index to satisfy filters.
// Returns candidate document IDs and whether an index was used.
func (ds *DocStore) tryUseIndexes(coll string, filters []collection.Filter) ([]string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	collIndexes, ok := ds.indexes[coll]
	if !ok || len(collIndexes) == 0 {
		return nil, false
	}

	for _, filter := range filters {
		if filter.Op != collection.OpEq {
			continue
		}
		if fieldIndex, hasIndex := collIndexes[filter.Field]; hasIndex {
			ids := append([]string(nil), fieldIndex[collection.Key(filter.Value)]...)
			sort.Strings(ids)
			return ids, true
		}
	}

	return nil, false
}

// Find returns the documents matching every filter, in id order. Filters are
// checked against the physical query limits first.
func (ds *DocStore) Find(coll string, opts FindOptions) ([]Document, error) {
	if err := checkCollection(coll); err != nil {
		return nil, err
	}
	if err := validateFilters(opts.Filters, ds.maxValues); err != nil {
		return nil, err
	}

	var results []Document
	want := -1
	if opts.Limit > 0 {
		want = opts.Skip + opts.Limit
	}
	full := func() bool { return want > 0 && len(results) >= want }

	if docIDs, canUseIndex := ds.tryUseIndexes(coll, opts.Filters); canUseIndex {
		for _, id := range docIDs {
			if full() {
				break
			}
			doc, err := ds.Get(coll, id)
			if err != nil {
				// index may briefly lag a delete
				continue
			}
			if matchesFilters(id, doc, opts.Filters) {
				results = append(results, doc)
			}
		}
	} else {
		prefix := makeCollectionPrefix(coll)
		err := ds.storage.Scan(prefix, func(key string, data []byte) error {
			var doc Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}

			id := key[len(prefix):]
			if matchesFilters(id, doc, opts.Filters) {
				results = append(results, doc)
			}
			if full() {
				return storage.StopScan()
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if opts.Skip > 0 {
		if opts.Skip >= len(results) {
			return []Document{}, nil
		}
		results = results[opts.Skip:]
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

// Update modifies a document
func (ds *DocStore) Update(coll, id string, opts UpdateOptions) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidDocument
	}

	doc, err := ds.Get(coll, id)
	if err != nil {
		return err
	}

	oldDoc := make(Document, len(doc))
	for k, v := range doc {
		oldDoc[k] = v
	}

	if opts.Merge {
		for k, v := range opts.Set {
			doc[k] = v
		}
	} else {
		created := doc[FieldCreatedAt]
		doc = make(Document, len(opts.Set)+3)
		for k, v := range opts.Set {
			doc[k] = v
		}
		doc[FieldID] = id
		doc[FieldCreatedAt] = created
	}

	doc[FieldUpdatedAt] = time.Now().UnixMilli()

	for _, field := range opts.Unset {
		delete(doc, field)
	}

	if err := ds.put(coll, id, doc); err != nil {
		return err
	}

	ds.removeIndexes(coll, id, oldDoc)
	ds.updateIndexes(coll, id, doc)
	return nil
}

// Delete removes a document
func (ds *DocStore) Delete(coll, id string) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidDocument
	}

	doc, err := ds.Get(coll, id)
	if err != nil {
		return err
	}

	if err := ds.storage.Delete(makeKey(coll, id)); err != nil {
		return err
	}

	ds.removeIndexes(coll, id, doc)
	return nil
}

// Count returns the number of documents in a collection
func (ds *DocStore) Count(coll string) (int64, error) {
	if err := checkCollection(coll); err != nil {
		return 0, err
	}
	return ds.storage.Count(makeCollectionPrefix(coll))
}

// CreateIndex builds an equality index on a (possibly dotted) field
func (ds *DocStore) CreateIndex(coll, field string) error {
	if err := checkCollection(coll); err != nil {
		return err
	}
	if field == "" {
		return ErrInvalidDocument
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := ds.buildIndex(coll, field); err != nil {
		return err
	}
	ds.log.Info("index created", "collection", coll, "field", field)
	return ds.saveIndexMetadata()
}

// DropIndex removes an index
func (ds *DocStore) DropIndex(coll, field string) error {
	if err := checkCollection(coll); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if c, ok := ds.indexes[coll]; ok {
		delete(c, field)
		if len(c) == 0 {
			delete(ds.indexes, coll)
		}
	}

	return ds.saveIndexMetadata()
}

// ListIndexes returns all indexed fields of a collection, sorted
func (ds *DocStore) ListIndexes(coll string) []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var fields []string
	for field := range ds.indexes[coll] {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Helper functions

// checkCollection rejects names that would make one collection's key prefix
// cover another's.
func checkCollection(coll string) error {
	if coll == "" {
		return ErrInvalidCollection
	}
	if strings.Contains(coll, ":") {
		return fmt.Errorf("%w: %q contains ':'", ErrInvalidCollection, coll)
	}
	return nil
}

func makeKey(coll, id string) string {
	return fmt.Sprintf("doc:%s:%s", coll, id)
}

func makeCollectionPrefix(coll string) string {
	return fmt.Sprintf("doc:%s:", coll)
}

func (ds *DocStore) put(coll, id string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return ds.storage.Set(makeKey(coll, id), data)
}

// buildIndex scans the collection and (re)fills one field index.
// Caller holds ds.mu.
func (ds *DocStore) buildIndex(coll, field string) error {
	fieldIndex := make(map[string][]string)

	prefix := makeCollectionPrefix(coll)
	err := ds.storage.Scan(prefix, func(key string, data []byte) error {
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		if val, err := collection.Lookup(doc, field); err == nil {
			k := collection.Key(val)
			fieldIndex[k] = append(fieldIndex[k], key[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, ok := ds.indexes[coll]; !ok {
		ds.indexes[coll] = make(map[string]map[string][]string)
	}
	ds.indexes[coll][field] = fieldIndex
	return nil
}

func (ds *DocStore) updateIndexes(coll, id string, doc Document) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for field, fieldIndex := range ds.indexes[coll] {
		if val, err := collection.Lookup(doc, field); err == nil {
			k := collection.Key(val)
			if !slices.Contains(fieldIndex[k], id) {
				fieldIndex[k] = append(fieldIndex[k], id)
			}
		}
	}
}

func (ds *DocStore) removeIndexes(coll, id string, doc Document) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for field, fieldIndex := range ds.indexes[coll] {
		val, err := collection.Lookup(doc, field)
		if err != nil {
			continue
		}
		k := collection.Key(val)
		ids := fieldIndex[k]
		kept := ids[:0]
		for _, existing := range ids {
			if existing != id {
				kept = append(kept, existing)
			}
		}
		if len(kept) == 0 {
			delete(fieldIndex, k)
		} else {
			fieldIndex[k] = kept
		}
	}
}

// loadIndexMetadata restores the set of indexed fields and rebuilds their
// contents, which are not persisted.
func (ds *DocStore) loadIndexMetadata() error {
	var metadata map[string][]string
	err := ds.storage.GetJSON(indexMetadataKey, &metadata)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil
		}
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	for coll, fields := range metadata {
		for _, field := range fields {
			if err := ds.buildIndex(coll, field); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ds *DocStore) saveIndexMetadata() error {
	metadata := make(map[string][]string)
	for coll, fields := range ds.indexes {
		for field := range fields {
			metadata[coll] = append(metadata[coll], field)
		}
	}

	return ds.storage.SetJSON(indexMetadataKey, metadata)
}
