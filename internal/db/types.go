package db

import (
	"errors"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
)

// Common errors
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidDocument   = errors.New("invalid document")

	// Physical query limits. All of these wrap ErrInvalidQuery.
	ErrTooManyValues       = errors.New("too many membership values")
	ErrMultipleMembership  = errors.New("more than one membership filter")
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// DefaultMaxMembershipValues is the per-query cap on in/not-in/
// array-contains-any values.
const DefaultMaxMembershipValues = 10

// Reserved document fields
const (
	FieldID        = "_id"
	FieldCreatedAt = "_created_at"
	FieldUpdatedAt = "_updated_at"
)

// Document represents a single document in a collection
type Document map[string]interface{}

// FindOptions represents options for find operations
type FindOptions struct {
	Filters []collection.Filter
	Skip    int
	Limit   int
}

// UpdateOptions represents update operations
type UpdateOptions struct {
	Set   Document // Fields to set
	Unset []string // Fields to remove
	Merge bool     // If true, merge with existing doc; if false, replace
}
