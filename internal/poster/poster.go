// SPDX-License-Identifier: MIT

// Package poster resolves artwork URLs for titles through an OMDb-style
// lookup API. Lookups are best-effort and cached; a missing poster is an
// empty string, never an error.
package poster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/cache"
	"github.com/telepost-bot/telepost/internal/log"
)

const (
	reqTimeout      = 10 * time.Second
	defaultCacheTTL = 24 * time.Hour
)

// Client queries the artwork API. A zero Base disables lookups entirely.
type Client struct {
	base   string
	key    string
	http   *http.Client
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// New builds a Client. c may be nil to disable caching; ttl <= 0 falls back
// to the default.
func New(base, key string, c cache.Cache, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		base:   base,
		key:    key,
		http:   &http.Client{Timeout: reqTimeout},
		cache:  c,
		ttl:    ttl,
		logger: log.WithComponent("poster"),
	}
}

type apiResponse struct {
	Response string `json:"Response"`
	Poster   string `json:"Poster"`
	Error    string `json:"Error"`
}

// Lookup returns a poster URL for the title, or "" when none is known.
func (c *Client) Lookup(ctx context.Context, title string, year int) string {
	if c.base == "" || c.key == "" || title == "" {
		return ""
	}

	key := fmt.Sprintf("poster:%s:%d", strings.ToLower(title), year)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v
		}
	}

	poster, err := c.fetch(ctx, title, year)
	if err != nil {
		c.logger.Debug().Err(err).Str("title", title).Msg("poster lookup failed")
		return ""
	}

	if c.cache != nil {
		// Negative results are cached too, so unknown titles do not hit
		// the API on every batch.
		c.cache.Set(key, poster, c.ttl)
	}
	return poster
}

func (c *Client) fetch(ctx context.Context, title string, year int) (string, error) {
	q := url.Values{}
	q.Set("apikey", c.key)
	q.Set("t", title)
	if year != 0 {
		q.Set("y", strconv.Itoa(year))
	}
	endpoint := strings.TrimSuffix(c.base, "/") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poster: unexpected status %d", resp.StatusCode)
	}
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("poster: decode response: %w", err)
	}
	if !strings.EqualFold(body.Response, "true") {
		return "", fmt.Errorf("poster: api error: %s", body.Error)
	}
	if body.Poster == "" || body.Poster == "N/A" {
		return "", nil
	}
	return body.Poster, nil
}
