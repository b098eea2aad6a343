// SPDX-License-Identifier: MIT

// Package shortener rewrites public file links through the owner's URL
// shortener. Shortening is best-effort: any failure falls back to the
// original link so a broken shortener never blocks publishing.
package shortener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/cache"
	"github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/store"
)

const (
	attempts        = 3
	backoff         = time.Second
	reqTimeout      = 10 * time.Second
	defaultCacheTTL = 12 * time.Hour
)

// Client talks to droplink-style shortener APIs:
// GET https://{domain}/api?api={key}&url={link} returning a JSON body with
// status and shortenedUrl fields.
type Client struct {
	http   *http.Client
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// New builds a Client. c may be nil to disable caching; ttl <= 0 falls back
// to the default.
func New(c cache.Cache, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		http:   &http.Client{Timeout: reqTimeout},
		cache:  c,
		ttl:    ttl,
		logger: log.WithComponent("shortener"),
	}
}

type apiResponse struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	Message      string `json:"message"`
}

// Shorten rewrites link using the owner's configured shortener. The original
// link comes back when the owner has no shortener or it misbehaves.
func (c *Client) Shorten(ctx context.Context, u *store.User, link string) string {
	if u.ShortenerURL == "" || u.ShortenerAPI == "" {
		return link
	}

	key := fmt.Sprintf("short:%s:%s", u.ShortenerURL, link)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v
		}
	}

	short, err := c.call(ctx, u.ShortenerURL, u.ShortenerAPI, link)
	if err != nil {
		c.logger.Warn().Err(err).
			Int64(log.FieldOwnerID, u.UserID).
			Str("domain", u.ShortenerURL).
			Msg("shortening failed, using original link")
		return link
	}

	if c.cache != nil {
		c.cache.Set(key, short, c.ttl)
	}
	return short
}

// Validate checks a domain/key pair by shortening a probe link.
func (c *Client) Validate(ctx context.Context, domain, api string) bool {
	_, err := c.call(ctx, domain, api, "https://example.com")
	return err == nil
}

func (c *Client) call(ctx context.Context, domain, api, link string) (string, error) {
	base := domain
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	endpoint := fmt.Sprintf("%s/api?api=%s&url=%s",
		strings.TrimSuffix(base, "/"), url.QueryEscape(api), url.QueryEscape(link))

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		short, err := c.once(ctx, endpoint)
		if err == nil {
			return short, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (c *Client) once(ctx context.Context, endpoint string) (string, error) {
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
		return "", fmt.Errorf("shortener: unexpected status %d", resp.StatusCode)
	}
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("shortener: decode response: %w", err)
	}
	if !strings.EqualFold(body.Status, "success") || body.ShortenedURL == "" {
		return "", fmt.Errorf("shortener: api error: %s", body.Message)
	}
	return body.ShortenedURL, nil
}
