package fanout

import (
	"errors"
	"fmt"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
	"github.com/skshohagmiah/flin-fanout/internal/metrics"
)

// accept reports whether snap passes every deferred constraint. An
// evaluation error counts as a failed constraint.
func (q *Query) accept(snap collection.Snapshot) bool {
	for _, f := range q.deferred {
		ok, err := evaluate(snap, f)
		if err != nil {
			metrics.EvalErrorsTotal.Inc()
			q.log.Warn("deferred constraint evaluation failed",
				"doc_id", snap.ID(), "field", f.Field, "op", f.Op, "err", err)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// evaluate checks one deferred constraint against a fetched document.
// A missing leaf field reads as nil; an untraversable path is an error.
func evaluate(snap collection.Snapshot, f collection.Filter) (bool, error) {
	val, err := collection.FieldValue(snap, f.Field)
	if err != nil {
		if !errors.Is(err, collection.ErrFieldMissing) {
			return false, err
		}
		val = nil
	}

	switch f.Op {
	case collection.OpIn, collection.OpNotIn:
		list, ok := collection.Values(f.Value)
		if !ok {
			return false, fmt.Errorf("%s needs a list value, got %T", f.Op, f.Value)
		}
		found := collection.Contains(list, val)
		if f.Op == collection.OpIn {
			return found, nil
		}
		return !found, nil

	case collection.OpArrayContainsAny, collection.OpArrayNotContainsAny:
		field, ok := collection.Values(val)
		if !ok {
			return false, fmt.Errorf("%w: %s is %T", collection.ErrNotArray, f.Field, val)
		}
		list, ok := collection.Values(f.Value)
		if !ok {
			return false, fmt.Errorf("%s needs a list value, got %T", f.Op, f.Value)
		}
		hit := collection.Intersects(field, list)
		if f.Op == collection.OpArrayContainsAny {
			return hit, nil
		}
		return !hit, nil

	default:
		return !collection.Equal(val, f.Value), nil
	}
}
