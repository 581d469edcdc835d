// Package apiclient is the engine's network collaborator: a thin typed
// client for the remote feed API. It decodes both wire shapes the backend
// emits (discussions-array and items-array) but leaves normalization to the
// ingestion boundary in the orchestrator.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"feedstore/pkg/models"
)

// FeedResponse is the dual-shape wire payload: either Discussions or Items
// is populated, plus flat user/group arrays for hydration.
type FeedResponse struct {
	Discussions []*models.ShallowDiscussionResponse `json:"discussions,omitempty"`
	Items       []*models.FeedItem                  `json:"items,omitempty"`
	Users       []*models.User                      `json:"users,omitempty"`
	Groups      []*models.Group                     `json:"groups,omitempty"`
}

type lastIDResponse struct {
	LastID string `json:"last_id"`
}

// Client calls the remote feed API. Construct with New; the zero value is
// not usable.
type Client struct {
	base    string
	timeout time.Duration
	http    *fasthttp.Client
}

// New returns a client for the API at baseURL. A non-positive timeout
// falls back to 10s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    baseURL,
		timeout: timeout,
		http:    &fasthttp.Client{},
	}
}

// GetFeed fetches one feed page for q. A non-empty after id requests the
// page following that id.
func (c *Client) GetFeed(ctx context.Context, q models.FeedQuery, after string) (*FeedResponse, error) {
	var out FeedResponse
	if err := c.getJSON(ctx, "/v1/feed", queryArgs(q, after), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSearch fetches search results for q.
func (c *Client) GetSearch(ctx context.Context, q models.FeedQuery) (*FeedResponse, error) {
	var out FeedResponse
	if err := c.getJSON(ctx, "/v1/search", queryArgs(q, ""), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LastIDForFeed resolves the pagination cursor for q.
func (c *Client) LastIDForFeed(ctx context.Context, q models.FeedQuery) (string, error) {
	var out lastIDResponse
	if err := c.getJSON(ctx, "/v1/feed/last_id", queryArgs(q, ""), &out); err != nil {
		return "", err
	}
	return out.LastID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, args url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("feed api %s: %w", path, err)
	}

	uri := c.base + path
	if enc := args.Encode(); enc != "" {
		uri += "?" + enc
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// the goroutine owns the pooled request/response pair and hands back a
	// copied body, so an early return on ctx.Done cannot race the pool
	type result struct {
		body []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(uri)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("Accept", "application/json")

		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			ch <- result{err: fmt.Errorf("feed api %s: %w", path, err)}
			return
		}
		if code := resp.StatusCode(); code < 200 || code > 299 {
			ch <- result{err: fmt.Errorf("feed api %s: status %d", path, code)}
			return
		}
		ch <- result{body: append([]byte(nil), resp.Body()...)}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		if err := json.Unmarshal(r.body, out); err != nil {
			return fmt.Errorf("feed api %s: decode: %w", path, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("feed api %s: %w", path, ctx.Err())
	}
}

func queryArgs(q models.FeedQuery, after string) url.Values {
	args := url.Values{}
	if q.ContactID != "" {
		args.Set("contact_id", q.ContactID)
	}
	if q.GroupID != "" {
		args.Set("group_id", q.GroupID)
	}
	if q.LocationID != "" {
		args.Set("location_id", q.LocationID)
	}
	if q.Hidden {
		args.Set("hidden", "1")
	}
	if after != "" {
		args.Set("after", after)
	}
	return args
}
