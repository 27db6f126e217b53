package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eringen/wanderbites/content"
)

// Response is the JSON body of the search endpoint.
type Response struct {
	Posts   []content.Record `json:"posts"`
	Total   int              `json:"total"`
	Filters FilterSet        `json:"filters"`
	Error   string           `json:"error,omitempty"`
}

// RepositorySearcher searches a content repository in process.
type RepositorySearcher struct {
	Repo content.Repository
}

// Search runs f against the repository. An empty set returns no records
// without touching the repository.
func (s RepositorySearcher) Search(ctx context.Context, f FilterSet) (content.Result, error) {
	if f.IsEmpty() {
		return content.Result{Records: []content.Record{}}, nil
	}
	return s.Repo.Search(ctx, f.Query())
}

// RemoteSearcher searches through a running site's search endpoint.
type RemoteSearcher struct {
	BaseURL string // site root, e.g. http://localhost:3000
	Client  *http.Client
}

// NewRemoteSearcher creates a RemoteSearcher with a timeout-bound client.
func NewRemoteSearcher(baseURL string, timeout time.Duration) *RemoteSearcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteSearcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Search calls GET /api/search. Failures are reported as
// *content.TransportError; cancellation is returned as the context error.
func (s *RemoteSearcher) Search(ctx context.Context, f FilterSet) (content.Result, error) {
	const op = "remote search"
	if f.IsEmpty() {
		return content.Result{Records: []content.Record{}}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/api/search?"+f.Values().Encode(), nil)
	if err != nil {
		return content.Result{}, &content.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return content.Result{}, ctxErr
		}
		return content.Result{}, &content.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var body Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return content.Result{}, ctxErr
		}
		if resp.StatusCode != http.StatusOK {
			return content.Result{}, &content.TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(resp.Status)}
		}
		return content.Result{}, &content.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := body.Error
		if msg == "" {
			msg = resp.Status
		}
		return content.Result{}, &content.TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if body.Posts == nil {
		body.Posts = []content.Record{}
	}
	return content.Result{Records: body.Posts, Total: body.Total}, nil
}
