// Package stats fetches engagement statistics for batches of videos.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CatalogSync/internal/config"
	"CatalogSync/internal/domain"
	"CatalogSync/internal/ports"
)

// MaxIDsPerCall is the hard per-request id limit of the statistics API.
const MaxIDsPerCall = 50

var (
	// ErrTooManyIDs is returned when a batch exceeds MaxIDsPerCall.
	ErrTooManyIDs = errors.New("too many ids for one statistics call")
	// ErrUnexpectedStatus is returned for any non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected statistics status")
)

// Client talks to the statistics API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.StatsClient = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.StatsConfig, client *http.Client) *Client {
	if client == nil {
		timeout := cfg.Timeout.Std()
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     client,
	}
}

type listResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// ViewCounts returns statistics for the ids the API knows about. Unknown ids
// are simply absent from the result.
func (c *Client) ViewCounts(ctx context.Context, ids []string) ([]domain.VideoStats, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxIDsPerCall {
		return nil, fmt.Errorf("%w: %d", ErrTooManyIDs, len(ids))
	}

	reqURL, err := c.buildURL(ids)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]domain.VideoStats, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.ID == "" {
			continue
		}
		views, err := strconv.ParseInt(strings.TrimSpace(item.Statistics.ViewCount), 10, 64)
		if err != nil {
			out = append(out, domain.VideoStats{ID: item.ID, Hidden: true})
			continue
		}
		out = append(out, domain.VideoStats{ID: item.ID, ViewCount: views})
	}
	return out, nil
}

func (c *Client) buildURL(ids []string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("part", "id,statistics")
	q.Set("id", strings.Join(ids, ","))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
