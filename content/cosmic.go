package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCosmicURL is the Cosmic REST API root.
const DefaultCosmicURL = "https://api.cosmicjs.com/v3"

// objectProps are the fields requested for every object.
const objectProps = "id,slug,title,type,metadata,created_at,modified_at"

// CosmicConfig configures a CosmicClient.
type CosmicConfig struct {
	BaseURL    string        // default DefaultCosmicURL
	BucketSlug string        // required
	ReadKey    string        // required
	Timeout    time.Duration // default 10s
}

// CosmicClient is a Repository backed by a Cosmic bucket. Text, tag and
// category filters are part of the Cosmic query; region and rating are
// select-dropdown objects and are matched after the response arrives.
type CosmicClient struct {
	cfg    CosmicConfig
	client *http.Client
	log    zerolog.Logger
}

// NewCosmicClient creates a client for the configured bucket. A nil
// httpClient gets one with cfg.Timeout.
func NewCosmicClient(cfg CosmicConfig, httpClient *http.Client, log zerolog.Logger) (*CosmicClient, error) {
	if cfg.BucketSlug == "" {
		return nil, errors.New("content: cosmic bucket slug is required")
	}
	if cfg.ReadKey == "" {
		return nil, errors.New("content: cosmic read key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCosmicURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &CosmicClient{
		cfg:    cfg,
		client: httpClient,
		log:    log.With().Str("component", "cosmic").Logger(),
	}, nil
}

type objectsResponse struct {
	Objects []Record `json:"objects"`
	Total   int      `json:"total"`
}

// find runs an object query. A 404 from Cosmic ("no objects found") is
// returned as ErrNotFound.
func (c *CosmicClient) find(ctx context.Context, op string, query map[string]any, limit int) ([]Record, error) {
	q, err := json.Marshal(query)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	params := url.Values{}
	params.Set("read_key", c.cfg.ReadKey)
	params.Set("query", string(q))
	params.Set("props", objectProps)
	params.Set("depth", "1")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	endpoint := fmt.Sprintf("%s/buckets/%s/objects?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.BucketSlug), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("cosmic request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(body)))}
	}

	var out objectsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return out.Objects, nil
}

// list is find for list operations: not-found becomes an empty list.
func (c *CosmicClient) list(ctx context.Context, op string, query map[string]any) ([]Record, error) {
	records, err := c.find(ctx, op, query, 0)
	if errors.Is(err, ErrNotFound) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	SortByPublished(records)
	return records, nil
}

// ListByKind fetches every object of kind.
func (c *CosmicClient) ListByKind(ctx context.Context, kind Kind) ([]Record, error) {
	return c.list(ctx, "list "+string(kind), map[string]any{"type": kind})
}

// GetBySlug fetches one object by slug.
func (c *CosmicClient) GetBySlug(ctx context.Context, kind Kind, slug string) (Record, error) {
	records, err := c.find(ctx, "get "+string(kind), map[string]any{"type": kind, "slug": slug}, 1)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}
	return records[0], nil
}

// ListByRelation fetches the posts referencing relatedID.
func (c *CosmicClient) ListByRelation(ctx context.Context, related Kind, relatedID string) ([]Record, error) {
	field, ok := relationField(related)
	if !ok {
		return nil, fmt.Errorf("content: no post relation for kind %q", related)
	}
	query := map[string]any{"type": KindPost}
	query["metadata."+field] = relatedID
	return c.list(ctx, "posts by "+string(related), query)
}

// Search runs a filtered post search.
func (c *CosmicClient) Search(ctx context.Context, q Query) (Result, error) {
	query := map[string]any{"type": KindPost}
	if q.Text != "" {
		query["$or"] = textQuery(q.Text)
	}
	if q.Tag != "" {
		query["metadata.tags"] = q.Tag
	}
	if q.Category != "" {
		cat, err := c.GetBySlug(ctx, KindCategory, q.Category)
		if errors.Is(err, ErrNotFound) {
			return Result{Records: []Record{}}, nil
		}
		if err != nil {
			return Result{}, err
		}
		query["metadata.categories"] = cat.ID
	}

	records, err := c.list(ctx, "search", query)
	if err != nil {
		return Result{}, err
	}
	// The category constraint was resolved to an id above.
	post := q
	post.Category = ""
	records = Filter(records, post)
	return Result{Records: records, Total: len(records)}, nil
}

// textQuery builds the case-insensitive substring clauses. The text is
// quoted so user input is never interpreted as a pattern.
func textQuery(text string) []map[string]any {
	pattern := regexp.QuoteMeta(text)
	fields := []string{"title", "metadata.excerpt", "metadata.city", "metadata.country"}
	clauses := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		clauses = append(clauses, map[string]any{
			f: map[string]any{"$regex": pattern, "$options": "i"},
		})
	}
	return clauses
}
