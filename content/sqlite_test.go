package content

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.ReplaceKind(ctx, KindPost, samplePosts()))
	require.NoError(t, s.ReplaceKind(ctx, KindAuthor, []Record{
		{ID: "a1", Slug: "mia", Title: "Mia", Metadata: map[string]any{"name": "Mia Chen"}},
		{ID: "a2", Slug: "leo", Title: "Leo", Metadata: map[string]any{"name": "Leo Ruiz"}},
	}))
	return s
}

func TestSQLiteListByKindOrder(t *testing.T) {
	s := setupTestSQLite(t)

	records, err := s.ListByKind(context.Background(), KindPost)
	require.NoError(t, err)
	assert.Equal(t, []string{"oaxaca-tacos", "tokyo-ramen", "paris-pastry", "draft-notes"}, slugs(records))
	assert.Equal(t, KindPost, records[0].Type)
}

func TestSQLiteGetBySlug(t *testing.T) {
	s := setupTestSQLite(t)
	ctx := context.Background()

	r, err := s.GetBySlug(ctx, KindAuthor, "mia")
	require.NoError(t, err)
	assert.Equal(t, "a1", r.ID)
	assert.Equal(t, "Mia Chen", r.String("name"))

	_, err = s.GetBySlug(ctx, KindAuthor, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	// slugs are unique per kind, not globally
	_, err = s.GetBySlug(ctx, KindPost, "mia")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSearch(t *testing.T) {
	s := setupTestSQLite(t)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"text in title", Query{Text: "RAMEN"}, []string{"tokyo-ramen"}},
		{"text in country", Query{Text: "japan"}, []string{"tokyo-ramen", "draft-notes"}},
		{"text in excerpt", Query{Text: "croissant"}, []string{"paris-pastry"}},
		{"region", Query{Region: "asia"}, []string{"tokyo-ramen", "draft-notes"}},
		{"rating", Query{Rating: "5"}, []string{"tokyo-ramen", "paris-pastry"}},
		{"tag", Query{Tag: "street-food"}, []string{"oaxaca-tacos", "tokyo-ramen"}},
		{"tag is exact", Query{Tag: "street"}, []string{}},
		{"category", Query{Category: "sweet-tooth"}, []string{"paris-pastry"}},
		{"combined", Query{Text: "o", Region: "asia", Rating: "5"}, []string{"tokyo-ramen"}},
		{"no match", Query{Text: "zzz"}, []string{}},
		{"text does not span fields", Query{Text: "tokyo japan"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Search(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, slugs(res.Records))
			assert.Equal(t, len(tt.want), res.Total)
		})
	}
}

func TestSQLiteSearchAgreesWithMatches(t *testing.T) {
	s := setupTestSQLite(t)
	queries := []Query{
		{Text: "a"},
		{Text: "tokyo", Tag: "noodles"},
		{Region: "europe", Category: "sweet-tooth"},
		{Rating: "4", Tag: "street-food"},
	}
	for _, q := range queries {
		res, err := s.Search(context.Background(), q)
		require.NoError(t, err)

		want := Filter(samplePosts(), q)
		SortByPublished(want)
		assert.Equal(t, slugs(want), slugs(res.Records), "query %+v", q)
	}
}

func TestSQLiteListByRelation(t *testing.T) {
	s := setupTestSQLite(t)
	ctx := context.Background()

	records, err := s.ListByRelation(ctx, KindAuthor, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tokyo-ramen", "paris-pastry"}, slugs(records))

	records, err = s.ListByRelation(ctx, KindCategory, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"oaxaca-tacos", "tokyo-ramen"}, slugs(records))

	records, err = s.ListByRelation(ctx, KindAuthor, "a")
	require.NoError(t, err)
	assert.Empty(t, records, "ids must match whole list entries")
}

func TestSQLiteReplaceKind(t *testing.T) {
	s := setupTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceKind(ctx, KindPost, samplePosts()[:1]))
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[KindPost])
	assert.Equal(t, 2, counts[KindAuthor], "other kinds are untouched")
}

func TestSQLiteCancelledContext(t *testing.T) {
	s := setupTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, Query{Text: "ramen"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
