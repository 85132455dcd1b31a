package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snap struct {
	id   string
	data map[string]interface{}
}

func (s snap) ID() string                   { return s.id }
func (s snap) Data() map[string]interface{} { return s.data }

func TestParseOperator(t *testing.T) {
	cases := map[string]Operator{
		"in":                     OpIn,
		"not-in":                 OpNotIn,
		"not_in":                 OpNotIn,
		"array-contains-any":     OpArrayContainsAny,
		"ARRAY_NOT_CONTAINS_ANY": OpArrayNotContainsAny,
		"!=":                     OpNe,
		"ne":                     OpNe,
		"==":                     OpEq,
		"eq":                     OpEq,
		">=":                     OpGte,
		"lt":                     OpLt,
	}
	for in, want := range cases {
		got, err := ParseOperator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOperator("like")
	assert.Error(t, err)
}

func TestOperatorClasses(t *testing.T) {
	for _, op := range []Operator{OpIn, OpNotIn, OpArrayContainsAny, OpArrayNotContainsAny, OpNe} {
		assert.True(t, op.IsMembership(), op)
	}
	for _, op := range []Operator{OpEq, OpLt, OpLte, OpGt, OpGte} {
		assert.False(t, op.IsMembership(), op)
		assert.False(t, op.TakesArray(), op)
	}
	assert.False(t, OpNe.TakesArray())
	assert.False(t, Operator("like").Valid())
}

func TestLookup(t *testing.T) {
	data := map[string]interface{}{
		"name": "ada",
		"address": map[string]interface{}{
			"city": "London",
			"geo":  map[string]interface{}{"lat": 51.5},
		},
		"nothing": nil,
	}

	v, err := Lookup(data, "name")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	v, err = Lookup(data, "address.geo.lat")
	require.NoError(t, err)
	assert.Equal(t, 51.5, v)

	_, err = Lookup(data, "address.zip")
	assert.ErrorIs(t, err, ErrFieldMissing)

	_, err = Lookup(data, "missing.city")
	assert.ErrorIs(t, err, ErrPathNotTraversable)

	_, err = Lookup(data, "nothing.city")
	assert.ErrorIs(t, err, ErrPathNotTraversable)

	_, err = Lookup(data, "name.first")
	assert.ErrorIs(t, err, ErrPathNotTraversable)

	_, err = Lookup(data, "address..city")
	assert.ErrorIs(t, err, ErrPathNotTraversable)
}

func TestFieldValueDocumentID(t *testing.T) {
	s := snap{id: "u1", data: map[string]interface{}{"__name__": "shadowed"}}
	v, err := FieldValue(s, DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "u1", v)
}

func TestChunk(t *testing.T) {
	values := make([]interface{}, 23)
	for i := range values {
		values[i] = i
	}

	chunks := Chunk(values, 10)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[1], 10)
	assert.Len(t, chunks[2], 3)
	assert.Equal(t, 0, chunks[0][0])
	assert.Equal(t, 10, chunks[1][0])
	assert.Equal(t, 22, chunks[2][2])

	assert.Empty(t, Chunk(nil, 10))
	assert.Len(t, Chunk(values[:10], 10), 1)
}

func TestValuesAndEquality(t *testing.T) {
	list, ok := Values([]int{1, 2, 3})
	require.True(t, ok)
	assert.Len(t, list, 3)

	_, ok = Values("abc")
	assert.False(t, ok)

	assert.True(t, Equal(3, 3.0))
	assert.False(t, Equal("3", 3))
	assert.True(t, Contains([]interface{}{"a", 2.0}, 2))
	assert.True(t, Intersects([]interface{}{"a", "c"}, []interface{}{"c", "d"}))
	assert.False(t, Intersects([]interface{}{"a"}, []interface{}{"c", "d"}))
	assert.Equal(t, Key(3), Key(3.0))
}

func TestCompare(t *testing.T) {
	c, ok := Compare(1, 2.5)
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare("b", "a")
	require.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare("b", 1)
	assert.False(t, ok)
}
