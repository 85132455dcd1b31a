package fanout

import (
	"context"
	"sync"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
)

type fakeDoc struct {
	id   string
	data map[string]interface{}
}

func (d fakeDoc) ID() string                   { return d.id }
func (d fakeDoc) Data() map[string]interface{} { return d.data }

// fakeStore is an in-memory store without any per-query limits that records
// every physical query it receives.
type fakeStore struct {
	mu     sync.Mutex
	docs   []fakeDoc
	calls  [][]collection.Filter
	limits []int
	failAt int // 1-based call number that fails; 0 never fails
	err    error
}

func newFakeStore(docs ...fakeDoc) *fakeStore {
	return &fakeStore{docs: docs}
}

func (s *fakeStore) Collection(string) collection.Ref {
	return &fakeRef{store: s, limit: -1}
}

type fakeRef struct {
	store   *fakeStore
	filters []collection.Filter
	limit   int
}

func (r *fakeRef) Where(field string, op collection.Operator, value interface{}) collection.Ref {
	filters := append(append([]collection.Filter{}, r.filters...), collection.Filter{Field: field, Op: op, Value: value})
	return &fakeRef{store: r.store, filters: filters, limit: r.limit}
}

func (r *fakeRef) Limit(n int) collection.Ref {
	return &fakeRef{store: r.store, filters: r.filters, limit: n}
}

func (r *fakeRef) Get(context.Context) ([]collection.Snapshot, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, r.filters)
	s.limits = append(s.limits, r.limit)
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return nil, s.err
	}

	var out []collection.Snapshot
	for _, d := range s.docs {
		if r.limit > 0 && len(out) >= r.limit {
			break
		}
		if fakeMatchesAll(d, r.filters) {
			out = append(out, d)
		}
	}
	return out, nil
}

func fakeMatchesAll(d fakeDoc, filters []collection.Filter) bool {
	for _, f := range filters {
		val, err := collection.FieldValue(d, f.Field)
		if err != nil {
			return false
		}
		list, _ := collection.Values(f.Value)
		var ok bool
		switch f.Op {
		case collection.OpEq:
			ok = collection.Equal(val, f.Value)
		case collection.OpNe:
			ok = !collection.Equal(val, f.Value)
		case collection.OpIn:
			ok = collection.Contains(list, val)
		case collection.OpNotIn:
			ok = !collection.Contains(list, val)
		case collection.OpArrayContainsAny:
			field, isList := collection.Values(val)
			ok = isList && collection.Intersects(field, list)
		case collection.OpLt, collection.OpLte, collection.OpGt, collection.OpGte:
			c, comparable := collection.Compare(val, f.Value)
			ok = comparable && map[collection.Operator]bool{
				collection.OpLt:  c < 0,
				collection.OpLte: c <= 0,
				collection.OpGt:  c > 0,
				collection.OpGte: c >= 0,
			}[f.Op]
		}
		if !ok {
			return false
		}
	}
	return true
}

func ids(snaps []collection.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID()
	}
	return out
}

func seq(n int) []interface{} {
	out := make([]interface{}, n)
	for i := range out {
		out[i] = i
	}
	return out
}
