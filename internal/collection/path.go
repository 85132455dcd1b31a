package collection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFieldMissing is returned when the last path segment is absent.
	ErrFieldMissing = errors.New("field missing")
	// ErrPathNotTraversable is returned when an intermediate segment is
	// absent or is not an object.
	ErrPathNotTraversable = errors.New("path not traversable")
	// ErrNotArray is returned when an array operator meets a scalar field.
	ErrNotArray = errors.New("field is not an array")
)

// Lookup resolves a dotted field path ("address.city") in data.
func Lookup(data map[string]interface{}, path string) (interface{}, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrPathNotTraversable)
	}

	segments := strings.Split(path, ".")
	current := data
	for i, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrPathNotTraversable, path)
		}
		val, ok := current[seg]
		if i == len(segments)-1 {
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrFieldMissing, path)
			}
			return val, nil
		}
		if !ok || val == nil {
			return nil, fmt.Errorf("%w: %q is undefined in %q", ErrPathNotTraversable, seg, path)
		}
		next, ok := val.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T in %q", ErrPathNotTraversable, seg, val, path)
		}
		current = next
	}
	return nil, fmt.Errorf("%w: %s", ErrFieldMissing, path)
}

// FieldValue resolves field against a document, treating DocumentID as the
// snapshot id.
func FieldValue(snap Snapshot, field string) (interface{}, error) {
	if field == DocumentID {
		return snap.ID(), nil
	}
	return Lookup(snap.Data(), field)
}
