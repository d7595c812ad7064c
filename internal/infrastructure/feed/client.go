// Package feed talks to the paginated upstream media feed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"CatalogSync/internal/config"
	"CatalogSync/internal/ports"
)

// ErrUnexpectedStatus is returned for any non-200 feed response.
var ErrUnexpectedStatus = errors.New("unexpected feed status")

// Client fetches the listing count and individual pages from the feed.
type Client struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	pageSize  int
	userAgent string
}

var _ ports.FeedSource = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets the configured timeout.
func NewClient(cfg config.FeedConfig, client *http.Client) *Client {
	if client == nil {
		timeout := cfg.Timeout.Std()
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		client:    client,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		pageSize:  pageSize,
		userAgent: cfg.UserAgent,
	}
}

// PageSize is the number of entries requested per page.
func (c *Client) PageSize() int {
	return c.pageSize
}

// TotalCount calls the root listing endpoint and returns the total result count.
func (c *Client) TotalCount(ctx context.Context) (int, error) {
	pageURL, err := buildPageURL(c.baseURL, c.apiKey, 1, 1)
	if err != nil {
		return 0, err
	}

	body, err := c.get(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	var listing struct {
		TotalResults struct {
			Content flexInt `json:"content"`
		} `json:"opensearch:totalResults"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return 0, fmt.Errorf("decode listing: %w", err)
	}

	return int(listing.TotalResults.Content), nil
}

// FetchPage returns the raw body of a 1-based page.
func (c *Client) FetchPage(ctx context.Context, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}

	pageURL, err := buildPageURL(c.baseURL, c.apiKey, (page-1)*c.pageSize+1, c.pageSize)
	if err != nil {
		return nil, err
	}

	return c.get(ctx, pageURL)
}

func (c *Client) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return body, nil
}

func buildPageURL(base, apiKey string, startIndex, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("alt", "json")
	query.Set("start-index", strconv.Itoa(startIndex))
	query.Set("max-results", strconv.Itoa(pageSize))
	if apiKey != "" {
		query.Set("key", apiKey)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
