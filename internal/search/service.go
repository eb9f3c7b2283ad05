package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/mihaisavezi/polychat/internal/chat"
)

const (
	BraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

	pageUserAgent   = "Mozilla/5.0 (compatible; PolychatSearch/1.0)"
	pageTimeout     = 8 * time.Second
	maxPageBytes    = 2 << 20
	maxContentChars = 3000
	fetchWorkers    = 4
	maxSearchCount  = 20
)

// ErrNotConfigured is returned when no Brave API key is set.
var ErrNotConfigured = errors.New("web search is not configured")

// Service answers web-search queries itself using the Brave Search API.
type Service struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewService(apiKey string, httpClient *http.Client, logger *slog.Logger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Service{
		apiKey:     apiKey,
		endpoint:   BraveEndpoint,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithEndpoint points the service at a different Brave-compatible endpoint.
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

func (s *Service) Configured() bool {
	return s.apiKey != ""
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Profile     struct {
				Name string `json:"name"`
			} `json:"profile"`
			MetaURL struct {
				Hostname string `json:"hostname"`
			} `json:"meta_url"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs the query and, when asked, extracts readable page content for
// each result. Pages that fail to load keep their snippet only.
func (s *Service) Search(ctx context.Context, q Query) ([]chat.SearchResult, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	if strings.TrimSpace(q.Query) == "" {
		return nil, errors.New("query is required")
	}

	results, err := s.braveSearch(ctx, q)
	if err != nil {
		return nil, err
	}

	if q.ExtractContent && len(results) > 0 {
		s.extractAll(ctx, results)
	}

	return results, nil
}

func (s *Service) braveSearch(ctx context.Context, q Query) ([]chat.SearchResult, error) {
	n := q.MaxResults
	if n <= 0 {
		n = DefaultMaxResults
	}

	if n > maxSearchCount {
		n = maxSearchCount
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create brave request: %w", err)
	}

	params := req.URL.Query()
	params.Set("q", q.Query)
	params.Set("count", strconv.Itoa(n))

	// Brave takes a two-letter country code
	if loc := strings.TrimSpace(q.UserLocation); len(loc) == 2 {
		params.Set("country", strings.ToLower(loc))
	}

	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search returned status %d", resp.StatusCode)
	}

	var data braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	results := make([]chat.SearchResult, 0, len(data.Web.Results))

	for i, item := range data.Web.Results {
		if i >= n {
			break
		}

		source := item.Profile.Name
		if source == "" {
			source = item.MetaURL.Hostname
		}

		results = append(results, chat.SearchResult{
			Title:   stripTags(item.Title),
			URL:     item.URL,
			Snippet: stripTags(item.Description),
			Source:  source,
		})
	}

	return results, nil
}

// extractAll fills ExtractedContent in place, fetching pages concurrently.
func (s *Service) extractAll(ctx context.Context, results []chat.SearchResult) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)

	for i := range results {
		g.Go(func() error {
			text, err := s.extract(gctx, results[i].URL)
			if err != nil {
				s.logger.Debug("Content extraction failed", "url", results[i].URL, "error", err)
				return nil
			}

			results[i].ExtractedContent = text

			return nil
		})
	}

	_ = g.Wait()
}

func (s *Service) extract(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return "", fmt.Errorf("unsupported url %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", pageUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if r := []rune(text); len(r) > maxContentChars {
		text = string(r[:maxContentChars])
	}

	return text, nil
}

// Brave wraps matched terms in <strong> tags and escapes entities in
// titles and descriptions.
func stripTags(s string) string {
	var sb strings.Builder

	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}

	return html.UnescapeString(sb.String())
}
