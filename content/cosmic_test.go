package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCosmic serves canned objects and records the decoded query of every
// request.
type fakeCosmic struct {
	mu      sync.Mutex
	queries []map[string]any
	respond func(query map[string]any) (int, any)
}

func (f *fakeCosmic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var query map[string]any
	_ = json.Unmarshal([]byte(r.URL.Query().Get("query")), &query)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	status, body := f.respond(query)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeCosmic) lastQuery() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

func objects(records ...Record) map[string]any {
	return map[string]any{"objects": records, "total": len(records)}
}

func newTestCosmic(t *testing.T, fake *fakeCosmic) *CosmicClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewCosmicClient(CosmicConfig{
		BaseURL:    srv.URL,
		BucketSlug: "wanderbites",
		ReadKey:    "read-key",
	}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewCosmicClientRequiresCredentials(t *testing.T) {
	_, err := NewCosmicClient(CosmicConfig{ReadKey: "k"}, nil, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewCosmicClient(CosmicConfig{BucketSlug: "b"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestCosmicRequestShape(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_ = json.NewEncoder(w).Encode(objects())
	}))
	defer srv.Close()

	c, err := NewCosmicClient(CosmicConfig{BaseURL: srv.URL + "/", BucketSlug: "wanderbites", ReadKey: "secret"}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)
	_, err = c.ListByKind(context.Background(), KindAuthor)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/buckets/wanderbites/objects", got.URL.Path)
	assert.Equal(t, "secret", got.URL.Query().Get("read_key"))
	assert.Equal(t, "1", got.URL.Query().Get("depth"))
	assert.JSONEq(t, `{"type":"authors"}`, got.URL.Query().Get("query"))
}

func TestCosmicGetBySlug(t *testing.T) {
	fake := &fakeCosmic{respond: func(q map[string]any) (int, any) {
		if q["slug"] == "tokyo-ramen" {
			return http.StatusOK, objects(samplePosts()[0])
		}
		return http.StatusNotFound, map[string]any{"message": "No objects found"}
	}}
	c := newTestCosmic(t, fake)

	r, err := c.GetBySlug(context.Background(), KindPost, "tokyo-ramen")
	require.NoError(t, err)
	assert.Equal(t, "Tokyo Ramen Crawl", r.Title)

	_, err = c.GetBySlug(context.Background(), KindPost, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCosmicListNotFoundIsEmpty(t *testing.T) {
	fake := &fakeCosmic{respond: func(map[string]any) (int, any) {
		return http.StatusNotFound, map[string]any{"message": "No objects found"}
	}}
	c := newTestCosmic(t, fake)

	records, err := c.ListByKind(context.Background(), KindPost)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	res, err := c.Search(context.Background(), Query{Text: "nothing"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
}

func TestCosmicServerErrorIsTransport(t *testing.T) {
	fake := &fakeCosmic{respond: func(map[string]any) (int, any) {
		return http.StatusInternalServerError, map[string]any{"message": "boom"}
	}}
	c := newTestCosmic(t, fake)

	_, err := c.Search(context.Background(), Query{Text: "ramen"})
	require.Error(t, err)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Equal(t, "search", te.Op)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestCosmicMalformedBodyIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()
	c, err := NewCosmicClient(CosmicConfig{BaseURL: srv.URL, BucketSlug: "b", ReadKey: "k"}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	_, err = c.ListByKind(context.Background(), KindPost)
	assert.True(t, IsTransport(err))
}

func TestCosmicCancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewCosmicClient(CosmicConfig{BaseURL: srv.URL, BucketSlug: "b", ReadKey: "k"}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, Query{Text: "ramen"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsTransport(err))
}

func TestCosmicSearchTextQueryIsEscaped(t *testing.T) {
	fake := &fakeCosmic{respond: func(map[string]any) (int, any) {
		return http.StatusOK, objects()
	}}
	c := newTestCosmic(t, fake)

	_, err := c.Search(context.Background(), Query{Text: "c++ (fish)", Tag: "street-food"})
	require.NoError(t, err)

	q := fake.lastQuery()
	assert.Equal(t, "blog-posts", q["type"])
	assert.Equal(t, "street-food", q["metadata.tags"])
	or, ok := q["$or"].([]any)
	require.True(t, ok)
	require.Len(t, or, 4)
	title := or[0].(map[string]any)["title"].(map[string]any)
	assert.Equal(t, `c\+\+ \(fish\)`, title["$regex"])
	assert.Equal(t, "i", title["$options"])
}

func TestCosmicSearchFiltersRegionAndRating(t *testing.T) {
	fake := &fakeCosmic{respond: func(map[string]any) (int, any) {
		return http.StatusOK, objects(samplePosts()...)
	}}
	c := newTestCosmic(t, fake)

	res, err := c.Search(context.Background(), Query{Region: "asia"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tokyo-ramen", "draft-notes"}, slugs(res.Records))
	assert.Equal(t, 2, res.Total)

	res, err = c.Search(context.Background(), Query{Rating: "5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tokyo-ramen", "paris-pastry"}, slugs(res.Records))
}

func TestCosmicSearchSortsNewestFirst(t *testing.T) {
	fake := &fakeCosmic{respond: func(map[string]any) (int, any) {
		return http.StatusOK, objects(samplePosts()...)
	}}
	c := newTestCosmic(t, fake)

	res, err := c.Search(context.Background(), Query{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"oaxaca-tacos", "tokyo-ramen", "paris-pastry", "draft-notes"}, slugs(res.Records))
}

func TestCosmicSearchByCategory(t *testing.T) {
	fake := &fakeCosmic{respond: func(q map[string]any) (int, any) {
		switch {
		case q["type"] == "categories" && q["slug"] == "street-eats":
			return http.StatusOK, objects(Record{ID: "c1", Slug: "street-eats", Title: "Street Eats"})
		case q["type"] == "categories":
			return http.StatusNotFound, map[string]any{}
		case q["metadata.categories"] == "c1":
			// Cosmic may return relations unexpanded.
			return http.StatusOK, objects(postRecord("p1", "tokyo-ramen", "Tokyo Ramen Crawl", "2024-03-10", map[string]any{
				"categories": []any{"c1"},
			}))
		}
		return http.StatusOK, objects()
	}}
	c := newTestCosmic(t, fake)

	res, err := c.Search(context.Background(), Query{Category: "street-eats"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tokyo-ramen"}, slugs(res.Records))

	res, err = c.Search(context.Background(), Query{Category: "no-such-category"})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestCosmicListByRelation(t *testing.T) {
	fake := &fakeCosmic{respond: func(map[string]any) (int, any) {
		return http.StatusOK, objects(samplePosts()[0])
	}}
	c := newTestCosmic(t, fake)

	_, err := c.ListByRelation(context.Background(), KindAuthor, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", fake.lastQuery()["metadata.author"])

	_, err = c.ListByRelation(context.Background(), KindPost, "x")
	assert.Error(t, err)
}
