package db

import (
	"fmt"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
)

// validateFilters enforces the limits a single physical query is held to:
// list operators carry 1..maxValues values, at most one of in / not-in /
// array-contains-any, at most one !=, and != never alongside not-in.
func validateFilters(filters []collection.Filter, maxValues int) error {
	var disjunctive, notEqual, notIn int

	for _, f := range filters {
		if !f.Op.Valid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidQuery, ErrUnsupportedOperator, f.Op)
		}
		if f.Field == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidQuery)
		}

		if f.Op.IsMembership() {
			switch f.Op {
			case collection.OpArrayNotContainsAny:
				return fmt.Errorf("%w: %w %q", ErrInvalidQuery, ErrUnsupportedOperator, f.Op)
			case collection.OpNe:
				notEqual++
			case collection.OpNotIn:
				disjunctive++
				notIn++
			default:
				disjunctive++
			}
		}

		if f.Op.TakesArray() {
			values, ok := collection.Values(f.Value)
			if !ok {
				return fmt.Errorf("%w: %s requires an array value", ErrInvalidQuery, f.Op)
			}
			if len(values) == 0 {
				return fmt.Errorf("%w: %s requires a non-empty array", ErrInvalidQuery, f.Op)
			}
			if len(values) > maxValues {
				return fmt.Errorf("%w: %w: %s on %q has %d values, max %d",
					ErrInvalidQuery, ErrTooManyValues, f.Op, f.Field, len(values), maxValues)
			}
		}
	}

	if disjunctive > 1 || notEqual > 1 || (notEqual > 0 && notIn > 0) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrMultipleMembership)
	}
	return nil
}

// matchesFilters checks if a document matches all filter conditions
func matchesFilters(id string, doc Document, filters []collection.Filter) bool {
	for _, filter := range filters {
		if !matchesFilter(id, doc, filter) {
			return false
		}
	}
	return true
}

// matchesFilter checks if a document matches a single filter condition.
// Documents that lack the field never match, including for != and not-in.
func matchesFilter(id string, doc Document, filter collection.Filter) bool {
	var (
		val interface{}
		err error
	)
	if filter.Field == collection.DocumentID {
		val = id
	} else {
		val, err = collection.Lookup(doc, filter.Field)
		if err != nil {
			return false
		}
	}

	switch filter.Op {
	case collection.OpEq:
		return collection.Equal(val, filter.Value)
	case collection.OpNe:
		return val != nil && !collection.Equal(val, filter.Value)
	case collection.OpGt, collection.OpGte, collection.OpLt, collection.OpLte:
		c, ok := collection.Compare(val, filter.Value)
		if !ok {
			return false
		}
		switch filter.Op {
		case collection.OpGt:
			return c > 0
		case collection.OpGte:
			return c >= 0
		case collection.OpLt:
			return c < 0
		default:
			return c <= 0
		}
	case collection.OpIn:
		list, _ := collection.Values(filter.Value)
		return collection.Contains(list, val)
	case collection.OpNotIn:
		list, _ := collection.Values(filter.Value)
		return val != nil && !collection.Contains(list, val)
	case collection.OpArrayContainsAny:
		field, ok := collection.Values(val)
		if !ok {
			return false
		}
		list, _ := collection.Values(filter.Value)
		return collection.Intersects(field, list)
	default:
		return false
	}
}
