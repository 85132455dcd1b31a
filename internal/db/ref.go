package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
)

// Ref is an immutable physical query over one collection. Every Where or
// Limit call returns a new Ref; the receiver is left untouched.
type Ref struct {
	store      *DocStore
	collection string
	filters    []collection.Filter
	limit      int
}

// Where adds a filter condition
func (r *Ref) Where(field string, op collection.Operator, value interface{}) collection.Ref {
	next := r.clone()
	next.filters = append(next.filters, collection.Filter{Field: field, Op: op, Value: value})
	return next
}

// Limit sets the maximum number of documents to return; n <= 0 means no limit
func (r *Ref) Limit(n int) collection.Ref {
	next := r.clone()
	next.limit = n
	return next
}

// Get executes the query.
func (r *Ref) Get(ctx context.Context) ([]collection.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := r.store.Find(r.collection, FindOptions{
		Filters: r.filters,
		Limit:   r.limit,
	})
	if err != nil {
		return nil, err
	}
	r.store.log.Debug("physical query", "query", r.String(), "returned", len(docs))

	snaps := make([]collection.Snapshot, 0, len(docs))
	for _, doc := range docs {
		id, _ := doc[FieldID].(string)
		snaps = append(snaps, &Snapshot{id: id, data: doc})
	}
	return snaps, nil
}

// String returns a string representation of the query
func (r *Ref) String() string {
	parts := make([]string, len(r.filters))
	for i, f := range r.filters {
		parts[i] = f.String()
	}
	return fmt.Sprintf("Query{collection=%s, where=[%s], limit=%d}",
		r.collection, strings.Join(parts, "; "), r.limit)
}

func (r *Ref) clone() *Ref {
	return &Ref{
		store:      r.store,
		collection: r.collection,
		filters:    append([]collection.Filter(nil), r.filters...),
		limit:      r.limit,
	}
}

// Snapshot is a fetched document.
type Snapshot struct {
	id   string
	data Document
}

// ID returns the document id.
func (s *Snapshot) ID() string { return s.id }

// Data returns the document body, including the reserved _id and timestamp
// fields.
func (s *Snapshot) Data() map[string]interface{} { return s.data }
