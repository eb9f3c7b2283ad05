// Package search provides web search for chat requests: a client for a
// remote /api/web-search endpoint and a local Service backed by the Brave
// Search API with readable-content extraction.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/fetch"
)

const (
	DefaultTimeout  = 15 * time.Second
	EnhancedTimeout = 25 * time.Second

	DefaultMaxResults  = 5
	EnhancedMaxResults = 8
)

// Query is the body of a web-search request.
type Query struct {
	Query          string `json:"query"`
	MaxResults     int    `json:"maxResults"`
	UserLocation   string `json:"userLocation,omitempty"`
	ExtractContent bool   `json:"extractContent"`
}

// NewQuery builds the query for a chat turn. Enhanced search asks for more
// results and for page content.
func NewQuery(text, location string, enhanced bool) Query {
	q := Query{
		Query:        text,
		MaxResults:   DefaultMaxResults,
		UserLocation: location,
	}

	if enhanced {
		q.MaxResults = EnhancedMaxResults
		q.ExtractContent = true
	}

	return q
}

// Timeout is the budget for a search call.
func (q Query) Timeout() time.Duration {
	if q.ExtractContent {
		return EnhancedTimeout
	}

	return DefaultTimeout
}

type Response struct {
	Query   string              `json:"query"`
	Results []chat.SearchResult `json:"results"`
}

// Client calls a remote web-search endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

func (c *Client) Search(ctx context.Context, q Query) ([]chat.SearchResult, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	timeout := q.Timeout()
	resp, err := fetch.Do(ctx, c.httpClient, req, timeout, fmt.Sprintf("Web search timed out after %ds", int(timeout.Seconds())))
	if err != nil {
		return nil, err
	}

	data, err := fetch.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search failed with status %d", resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return out.Results, nil
}
