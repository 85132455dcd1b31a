package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
)

// Helper function to create a test DB
func createTestDB(tb testing.TB) *DocStore {
	tb.Helper()
	db, err := New(tb.TempDir())
	require.NoError(tb, err)
	tb.Cleanup(func() { db.Close() })
	return db
}

func seedUsers(t *testing.T, db *DocStore, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := db.Insert("users", Document{
			"name": fmt.Sprintf("User %c", 'A'+i),
			"age":  20 + i,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestInsert(t *testing.T) {
	db := createTestDB(t)

	id, err := db.Insert("users", Document{"name": "John Doe", "age": 30})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = db.Insert("", Document{})
	assert.ErrorIs(t, err, ErrInvalidCollection)
}

func TestInsertKeepsProvidedID(t *testing.T) {
	db := createTestDB(t)

	id, err := db.Insert("users", Document{FieldID: "ada", "name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada", id)
}

func TestGet(t *testing.T) {
	db := createTestDB(t)

	id, err := db.Insert("users", Document{"name": "John Doe", "age": 30})
	require.NoError(t, err)

	doc, err := db.Get("users", id)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", doc["name"])
	// numbers come back as float64 after the JSON round trip
	assert.Equal(t, float64(30), doc["age"])

	_, err = db.Get("users", "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestFind(t *testing.T) {
	db := createTestDB(t)
	seedUsers(t, db, 5)

	results, err := db.Find("users", FindOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 5)

	results, err = db.Find("users", FindOptions{
		Filters: []collection.Filter{{Field: "age", Op: collection.OpGt, Value: 22}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindOperators(t *testing.T) {
	db := createTestDB(t)
	_, err := db.InsertMany("posts", []Document{
		{FieldID: "p1", "tags": []interface{}{"a", "b"}, "author": map[string]interface{}{"name": "ann"}},
		{FieldID: "p2", "tags": []interface{}{"c"}, "author": map[string]interface{}{"name": "bob"}},
		{FieldID: "p3", "tags": []interface{}{"d"}},
	})
	require.NoError(t, err)

	cases := []struct {
		name   string
		filter collection.Filter
		want   []string
	}{
		{"in", collection.Filter{Field: "author.name", Op: collection.OpIn, Value: []string{"ann", "zed"}}, []string{"p1"}},
		{"not-in skips missing field", collection.Filter{Field: "author.name", Op: collection.OpNotIn, Value: []string{"ann"}}, []string{"p2"}},
		{"!= skips missing field", collection.Filter{Field: "author.name", Op: collection.OpNe, Value: "bob"}, []string{"p1"}},
		{"array-contains-any", collection.Filter{Field: "tags", Op: collection.OpArrayContainsAny, Value: []string{"b", "c"}}, []string{"p1", "p2"}},
		{"document id", collection.Filter{Field: collection.DocumentID, Op: collection.OpIn, Value: []string{"p3", "p9"}}, []string{"p3"}},
		{"document id range", collection.Filter{Field: collection.DocumentID, Op: collection.OpGte, Value: "p2"}, []string{"p2", "p3"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := db.Find("posts", FindOptions{Filters: []collection.Filter{tc.filter}})
			require.NoError(t, err)
			var got []string
			for _, doc := range results {
				got = append(got, doc[FieldID].(string))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFindEnforcesQueryLimits(t *testing.T) {
	db := createTestDB(t)
	seedUsers(t, db, 1)

	eleven := make([]interface{}, 11)
	for i := range eleven {
		eleven[i] = i
	}

	cases := []struct {
		name    string
		filters []collection.Filter
		want    error
	}{
		{"too many values", []collection.Filter{{Field: "age", Op: collection.OpIn, Value: eleven}}, ErrTooManyValues},
		{"two membership filters", []collection.Filter{
			{Field: "age", Op: collection.OpIn, Value: []int{1}},
			{Field: "name", Op: collection.OpArrayContainsAny, Value: []string{"x"}},
		}, ErrMultipleMembership},
		{"!= with not-in", []collection.Filter{
			{Field: "age", Op: collection.OpNe, Value: 1},
			{Field: "name", Op: collection.OpNotIn, Value: []string{"x"}},
		}, ErrMultipleMembership},
		{"array-not-contains-any", []collection.Filter{{Field: "tags", Op: collection.OpArrayNotContainsAny, Value: []string{"x"}}}, ErrUnsupportedOperator},
		{"empty in", []collection.Filter{{Field: "age", Op: collection.OpIn, Value: []int{}}}, ErrInvalidQuery},
		{"scalar in", []collection.Filter{{Field: "age", Op: collection.OpIn, Value: 3}}, ErrInvalidQuery},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.Find("users", FindOptions{Filters: tc.filters})
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}

	// != together with in is allowed
	_, err := db.Find("users", FindOptions{Filters: []collection.Filter{
		{Field: "age", Op: collection.OpNe, Value: 1},
		{Field: "age", Op: collection.OpIn, Value: []int{20, 21}},
	}})
	assert.NoError(t, err)
}

func TestMaxMembershipValuesOption(t *testing.T) {
	db, err := New("", InMemory(), WithMaxMembershipValues(2))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Find("users", FindOptions{Filters: []collection.Filter{
		{Field: "age", Op: collection.OpIn, Value: []int{1, 2, 3}},
	}})
	assert.ErrorIs(t, err, ErrTooManyValues)
	assert.Equal(t, 2, db.MaxMembershipValues())
}

func TestUpdate(t *testing.T) {
	db := createTestDB(t)

	id, err := db.Insert("users", Document{"name": "John", "age": 30})
	require.NoError(t, err)

	require.NoError(t, db.Update("users", id, UpdateOptions{Set: Document{"age": 31}, Merge: true}))

	updated, err := db.Get("users", id)
	require.NoError(t, err)
	assert.Equal(t, float64(31), updated["age"])
	assert.Equal(t, "John", updated["name"], "merge keeps other fields")

	require.NoError(t, db.Update("users", id, UpdateOptions{Set: Document{"age": 40}}))
	replaced, err := db.Get("users", id)
	require.NoError(t, err)
	assert.NotContains(t, replaced, "name")
	assert.Equal(t, id, replaced[FieldID])
}

func TestDelete(t *testing.T) {
	db := createTestDB(t)

	id, err := db.Insert("users", Document{"name": "John"})
	require.NoError(t, err)

	require.NoError(t, db.Delete("users", id))

	_, err = db.Get("users", id)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestIndex(t *testing.T) {
	db := createTestDB(t)
	seedUsers(t, db, 10)

	require.NoError(t, db.CreateIndex("users", "age"))
	assert.Equal(t, []string{"age"}, db.ListIndexes("users"))

	results, err := db.Find("users", FindOptions{
		Filters: []collection.Filter{{Field: "age", Op: collection.OpEq, Value: 23}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "User D", results[0]["name"])

	// documents inserted after index creation are indexed too
	_, err = db.Insert("users", Document{"name": "Late", "age": 23})
	require.NoError(t, err)
	results, err = db.Find("users", FindOptions{
		Filters: []collection.Filter{{Field: "age", Op: collection.OpEq, Value: 23.0}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	require.NoError(t, db.DropIndex("users", "age"))
	assert.Empty(t, db.ListIndexes("users"))
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := New(dir)
	require.NoError(t, err)
	seedUsers(t, db, 3)
	require.NoError(t, db.CreateIndex("users", "age"))
	require.NoError(t, db.Close())

	db, err = New(dir)
	require.NoError(t, err)
	defer db.Close()

	results, err := db.Find("users", FindOptions{
		Filters: []collection.Filter{{Field: "age", Op: collection.OpEq, Value: 21}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestReinsertUnderIndexReplacesEntry(t *testing.T) {
	db := createTestDB(t)
	require.NoError(t, db.CreateIndex("users", "role"))

	_, err := db.Insert("users", Document{FieldID: "u1", "role": "admin"})
	require.NoError(t, err)
	_, err = db.Insert("users", Document{FieldID: "u1", "role": "admin"})
	require.NoError(t, err)

	snaps, err := db.Collection("users").Where("role", collection.OpEq, "admin").Get(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "u1", snaps[0].ID())

	// changing the indexed value drops the old entry
	_, err = db.Insert("users", Document{FieldID: "u1", "role": "viewer"})
	require.NoError(t, err)
	snaps, err = db.Collection("users").Where("role", collection.OpEq, "admin").Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = db.InsertMany("users", []Document{
		{FieldID: "u1", "role": "editor"},
		{FieldID: "u2", "role": "editor"},
		{FieldID: "u2", "role": "editor"},
	})
	require.NoError(t, err)
	for role, want := range map[string]int{"viewer": 0, "editor": 2} {
		snaps, err = db.Collection("users").Where("role", collection.OpEq, role).Get(context.Background())
		require.NoError(t, err)
		assert.Len(t, snaps, want, role)
	}

	count, err := db.Count("users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCollectionNamesDoNotOverlap(t *testing.T) {
	db := createTestDB(t)

	_, err := db.Insert("users", Document{FieldID: "u1", "role": "admin"})
	require.NoError(t, err)
	_, err = db.Insert("users_archive", Document{FieldID: "old", "role": "admin"})
	require.NoError(t, err)

	_, err = db.Insert("users:archive", Document{FieldID: "old", "role": "admin"})
	assert.ErrorIs(t, err, ErrInvalidCollection)
	_, err = db.InsertMany("users:archive", []Document{{"role": "admin"}})
	assert.ErrorIs(t, err, ErrInvalidCollection)
	_, err = db.Find("users:archive", FindOptions{})
	assert.ErrorIs(t, err, ErrInvalidCollection)
	_, err = db.Count("a:b")
	assert.ErrorIs(t, err, ErrInvalidCollection)
	_, err = db.Get("a:b", "x")
	assert.ErrorIs(t, err, ErrInvalidCollection)

	snaps, err := db.Collection("users").Where("role", collection.OpIn, []string{"admin"}).Get(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "u1", snaps[0].ID())

	count, err := db.Count("users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCount(t *testing.T) {
	db := createTestDB(t)
	seedUsers(t, db, 3)

	count, err := db.Count("users")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestTimestamps(t *testing.T) {
	db := createTestDB(t)

	id, err := db.Insert("users", Document{"name": "John"})
	require.NoError(t, err)

	retrieved, err := db.Get("users", id)
	require.NoError(t, err)
	updatedAt, ok := retrieved[FieldUpdatedAt].(float64)
	require.True(t, ok)
	assert.NotZero(t, retrieved[FieldCreatedAt])

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, db.Update("users", id, UpdateOptions{Set: Document{"age": 25}, Merge: true}))

	updated, err := db.Get("users", id)
	require.NoError(t, err)
	assert.Greater(t, updated[FieldUpdatedAt].(float64), updatedAt)
}

func TestPagination(t *testing.T) {
	db := createTestDB(t)
	seedUsers(t, db, 10)

	results, err := db.Find("users", FindOptions{Skip: 5, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = db.Find("users", FindOptions{Skip: 20})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRefIsImmutable(t *testing.T) {
	db := createTestDB(t)
	seedUsers(t, db, 5)

	base := db.Collection("users")
	older := base.Where("age", collection.OpGte, 22)
	capped := older.Limit(1)

	all, err := base.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 5)

	some, err := older.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, some, 3)

	one, err := capped.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.NotEmpty(t, one[0].ID())
	assert.Equal(t, one[0].ID(), one[0].Data()[FieldID])

	assert.Empty(t, base.(*Ref).filters)
	assert.Contains(t, older.(*Ref).String(), "age >= 22")
}

func TestRefGetHonoursContext(t *testing.T) {
	db := createTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := db.Collection("users").Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// BenchmarkFind benchmarks finding documents
func BenchmarkFind(b *testing.B) {
	db := createTestDB(b)

	for i := 0; i < 1000; i++ {
		db.Insert("users", Document{"name": "User", "age": 20 + i%20})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		db.Find("users", FindOptions{
			Filters: []collection.Filter{{Field: "age", Op: collection.OpGt, Value: 25}},
		})
	}
}
