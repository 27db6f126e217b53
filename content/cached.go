package content

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/eringen/wanderbites/cache"
)

// Cached wraps a Repository with a read-through cache. Only successful
// responses are stored; ErrNotFound and transport errors always reach the
// caller fresh. A failing cache is logged and bypassed.
type Cached struct {
	repo  Repository
	store cache.Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCached creates a caching decorator. A zero ttl defaults to 5 minutes.
func NewCached(repo Repository, store cache.Store, ttl time.Duration, log zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		repo:  repo,
		store: store,
		ttl:   ttl,
		log:   log.With().Str("component", "content_cache").Logger(),
	}
}

// Invalidate drops every cached response.
func (c *Cached) Invalidate(ctx context.Context) error {
	return c.store.Flush(ctx)
}

// Search serves q from the cache, keyed by its JSON form, or the repository.
func (c *Cached) Search(ctx context.Context, q Query) (Result, error) {
	key := "search:" + mustKey(q)
	var res Result
	if c.load(ctx, key, &res) {
		return res, nil
	}
	res, err := c.repo.Search(ctx, q)
	if err != nil {
		return Result{}, err
	}
	c.save(ctx, key, res)
	return res, nil
}

// GetBySlug serves one record by kind and slug, caching only hits.
func (c *Cached) GetBySlug(ctx context.Context, kind Kind, slug string) (Record, error) {
	key := "get:" + string(kind) + ":" + slug
	var r Record
	if c.load(ctx, key, &r) {
		return r, nil
	}
	r, err := c.repo.GetBySlug(ctx, kind, slug)
	if err != nil {
		return Record{}, err
	}
	c.save(ctx, key, r)
	return r, nil
}

// ListByKind serves every record of kind.
func (c *Cached) ListByKind(ctx context.Context, kind Kind) ([]Record, error) {
	key := "list:" + string(kind)
	var records []Record
	if c.load(ctx, key, &records) {
		return records, nil
	}
	records, err := c.repo.ListByKind(ctx, kind)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, records)
	return records, nil
}

// ListByRelation serves the posts that reference relatedID.
func (c *Cached) ListByRelation(ctx context.Context, related Kind, relatedID string) ([]Record, error) {
	key := "rel:" + string(related) + ":" + relatedID
	var records []Record
	if c.load(ctx, key, &records) {
		return records, nil
	}
	records, err := c.repo.ListByRelation(ctx, related, relatedID)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, records)
	return records, nil
}

func (c *Cached) load(ctx context.Context, key string, dst any) bool {
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return false
	}
	return true
}

func (c *Cached) save(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func mustKey(q Query) string {
	b, _ := json.Marshal(q)
	return string(b)
}
