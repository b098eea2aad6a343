// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for fatal misconfiguration. It fails
// fast on anything the daemon cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return fmt.Errorf("TELEPOST_BOT_TOKEN is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen addr must not be empty")
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("invalid public base URL %q: %w", c.PublicBaseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("unsupported public base URL scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("public base URL %q is missing host", c.PublicBaseURL)
		}
	}
	if c.BatchWindow <= 0 {
		return fmt.Errorf("batch window must be positive, got %s", c.BatchWindow)
	}
	if c.IngestPause < 0 {
		return fmt.Errorf("ingest pause must not be negative, got %s", c.IngestPause)
	}
	if c.PostDelay < 0 {
		return fmt.Errorf("post delay must not be negative, got %s", c.PostDelay)
	}
	if c.PendingDrainMax <= 0 {
		return fmt.Errorf("pending drain max must be positive, got %d", c.PendingDrainMax)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit requests must be positive, got %d", c.RateLimitRequests)
	}
	return nil
}
