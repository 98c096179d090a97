// Package contentapi fetches panel candidates from the JSON content service.
package contentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/scanner"
)

// HTTPClient allows injection for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// Client talks to the content service. It is registered as the "api"
// scanner strategy.
type Client struct {
	endpoint string
	apiKey   string
	http     HTTPClient
}

var _ scanner.Scanner = (*Client)(nil)

// NewClient creates a reusable HTTP client for endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the strategy inside the registry.
func (c *Client) Name() string {
	return "api"
}

type listResponse struct {
	Items []apiItem `json:"items"`
}

// apiItem mirrors the service payload; ids arrive as numbers or strings.
type apiItem struct {
	ID          any    `json:"id"`
	Title       string `json:"title"`
	Image       string `json:"image"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
	Trending    bool   `json:"trending"`
	Breaking    bool   `json:"breaking"`
	Featured    bool   `json:"featured"`
}

// Scan requests up to req.Limit stories for the panel, in service order.
func (c *Client) Scan(ctx context.Context, req scanner.Request) ([]domain.ContentItem, error) {
	target, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := c.get(ctx, target, &resp); err != nil {
		return nil, fmt.Errorf("panel %s: %w", req.PanelKey, err)
	}

	items := make([]domain.ContentItem, 0, len(resp.Items))
	for _, raw := range resp.Items {
		if strings.TrimSpace(raw.Title) == "" {
			continue
		}
		publishedAt, _ := time.Parse(time.RFC3339, raw.PublishedAt)
		items = append(items, domain.ContentItem{
			ID:          domain.NormalizeID(raw.ID),
			Title:       strings.TrimSpace(raw.Title),
			Image:       raw.Image,
			URL:         raw.URL,
			Source:      raw.Source,
			PublishedAt: publishedAt,
			Flags: domain.Flags{
				Trending: raw.Trending,
				Breaking: raw.Breaking,
				Featured: raw.Featured,
			},
		})
	}

	return scanner.Truncate(items, req.Limit), nil
}

func (c *Client) buildURL(req scanner.Request) (string, error) {
	base := req.URL
	if base == "" {
		base = c.endpoint + "/panels/" + url.PathEscape(req.Option("section", req.PanelKey))
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid panel url %s: %w", base, err)
	}

	query := parsed.Query()
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if lang := req.Option("language", ""); lang != "" {
		query.Set("lang", lang)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) get(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
