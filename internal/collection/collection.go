package collection

import (
	"context"
	"fmt"
	"strings"
)

// Operator is a field comparator understood by the backing store.
type Operator string

// Operator constants
const (
	OpIn                  Operator = "in"
	OpNotIn               Operator = "not-in"
	OpArrayContainsAny    Operator = "array-contains-any"
	OpArrayNotContainsAny Operator = "array-not-contains-any"
	OpNe                  Operator = "!="
	OpLt                  Operator = "<"
	OpLte                 Operator = "<="
	OpEq                  Operator = "=="
	OpGte                 Operator = ">="
	OpGt                  Operator = ">"
)

// DocumentID is the pseudo-field that designates a document's id rather than
// a path into its data.
const DocumentID = "__name__"

var operators = []Operator{
	OpIn, OpNotIn, OpArrayContainsAny, OpArrayNotContainsAny,
	OpNe, OpLt, OpLte, OpEq, OpGte, OpGt,
}

// ParseOperator accepts the canonical spelling plus a few common aliases
// ("eq", "ne", "not_in", ...).
func ParseOperator(s string) (Operator, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", "-")
	switch norm {
	case "eq", "=":
		return OpEq, nil
	case "ne", "<>", "not-equal":
		return OpNe, nil
	case "lt":
		return OpLt, nil
	case "lte":
		return OpLte, nil
	case "gt":
		return OpGt, nil
	case "gte":
		return OpGte, nil
	}
	for _, op := range operators {
		if string(op) == norm {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Valid reports whether op is one of the known comparators.
func (op Operator) Valid() bool {
	for _, known := range operators {
		if op == known {
			return true
		}
	}
	return false
}

// IsMembership reports whether op is subject to the per-query value cap and
// the one-membership-filter-per-query rule.
func (op Operator) IsMembership() bool {
	switch op {
	case OpIn, OpNotIn, OpArrayContainsAny, OpArrayNotContainsAny, OpNe:
		return true
	}
	return false
}

// TakesArray reports whether the filter value must be a list.
func (op Operator) TakesArray() bool {
	switch op {
	case OpIn, OpNotIn, OpArrayContainsAny, OpArrayNotContainsAny:
		return true
	}
	return false
}

// Filter is a single {field, comparator, value} constraint.
type Filter struct {
	Field string      `json:"field"`
	Op    Operator    `json:"op"`
	Value interface{} `json:"value"`
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
}

// Snapshot is one fetched document.
type Snapshot interface {
	ID() string
	Data() map[string]interface{}
}

// Ref is a queryable collection handle. Where and Limit never mutate the
// receiver; they return a handle carrying the additional constraint.
type Ref interface {
	Where(field string, op Operator, value interface{}) Ref
	Limit(n int) Ref
	Get(ctx context.Context) ([]Snapshot, error)
}

// Client hands out collection handles.
type Client interface {
	Collection(name string) Ref
}
