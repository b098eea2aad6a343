// SPDX-License-Identifier: MIT

// Package config loads and validates the telepost daemon configuration.
// Precedence: environment > config file > defaults.
package config

import "time"

// Config holds the full runtime configuration of the daemon.
type Config struct {
	// Logging
	LogLevel   string `yaml:"log_level"`
	LogService string `yaml:"log_service"`
	Version    string `yaml:"-"`

	// Storage
	DataDir string `yaml:"data_dir"` // badger database and small state files

	// Telegram
	BotToken        string `yaml:"bot_token"`
	OwnerDBChannel  int64  `yaml:"owner_db_channel"`  // fallback archive channel
	BotUsernameFile string `yaml:"bot_username_file"` // atomically rewritten at startup

	// HTTP delivery
	ListenAddr    string `yaml:"listen_addr"`
	PublicBaseURL string `yaml:"public_base_url"` // external base for /get links, e.g. http://1.2.3.4:8080

	// Collection engine
	BatchWindow     time.Duration `yaml:"batch_window"`      // inactivity deadline per window
	IngestPause     time.Duration `yaml:"ingest_pause"`      // politeness pause between events
	PostDelay       time.Duration `yaml:"post_delay"`        // delay between published posts
	EditThrottle    time.Duration `yaml:"edit_throttle"`     // min interval between dashboard edits
	PendingDrainMax int           `yaml:"pending_drain_max"` // safety cap on queued files per user

	// Cache (poster / shortener lookups)
	RedisAddr string        `yaml:"redis_addr"` // empty = in-memory cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// Poster lookup
	PosterAPIBase string `yaml:"poster_api_base"`
	PosterAPIKey  string `yaml:"poster_api_key"`

	// HTTP rate limiting
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		LogLevel:          "info",
		LogService:        "telepost",
		DataDir:           "/var/lib/telepost",
		BotUsernameFile:   "bot_username.txt",
		ListenAddr:        ":8080",
		BatchWindow:       5 * time.Second,
		IngestPause:       500 * time.Millisecond,
		PostDelay:         2 * time.Second,
		EditThrottle:      1500 * time.Millisecond,
		PendingDrainMax:   200,
		CacheTTL:          6 * time.Hour,
		RateLimitRequests: 60,
		RateLimitWindow:   time.Minute,
	}
}
