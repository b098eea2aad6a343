// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader resolves the effective configuration with precedence
// ENV > file > defaults.
type Loader struct {
	path    string // optional YAML config file
	version string
}

// NewLoader creates a config loader. path may be empty.
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Load merges defaults, the optional YAML file and environment overrides,
// then validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.path != "" {
		if err := mergeFile(&cfg, l.path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", l.path, err)
		}
	}
	mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal over the defaults: absent keys keep their values.
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	cfg.LogLevel = ParseString("TELEPOST_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("TELEPOST_LOG_SERVICE", cfg.LogService)
	cfg.DataDir = ParseString("TELEPOST_DATA", cfg.DataDir)
	cfg.BotToken = ParseString("TELEPOST_BOT_TOKEN", cfg.BotToken)
	cfg.OwnerDBChannel = ParseInt64("TELEPOST_OWNER_DB_CHANNEL", cfg.OwnerDBChannel)
	cfg.BotUsernameFile = ParseString("TELEPOST_BOT_USERNAME_FILE", cfg.BotUsernameFile)
	cfg.ListenAddr = ParseString("TELEPOST_LISTEN", cfg.ListenAddr)
	cfg.PublicBaseURL = ParseString("TELEPOST_PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.BatchWindow = ParseDuration("TELEPOST_BATCH_WINDOW", cfg.BatchWindow)
	cfg.IngestPause = ParseDuration("TELEPOST_INGEST_PAUSE", cfg.IngestPause)
	cfg.PostDelay = ParseDuration("TELEPOST_POST_DELAY", cfg.PostDelay)
	cfg.EditThrottle = ParseDuration("TELEPOST_EDIT_THROTTLE", cfg.EditThrottle)
	cfg.PendingDrainMax = ParseInt("TELEPOST_PENDING_DRAIN_MAX", cfg.PendingDrainMax)
	cfg.RedisAddr = ParseString("TELEPOST_REDIS_ADDR", cfg.RedisAddr)
	cfg.CacheTTL = ParseDuration("TELEPOST_CACHE_TTL", cfg.CacheTTL)
	cfg.PosterAPIBase = ParseString("TELEPOST_POSTER_API_BASE", cfg.PosterAPIBase)
	cfg.PosterAPIKey = ParseString("TELEPOST_POSTER_API_KEY", cfg.PosterAPIKey)
	cfg.RateLimitRequests = ParseInt("TELEPOST_RATE_LIMIT_REQUESTS", cfg.RateLimitRequests)
	cfg.RateLimitWindow = ParseDuration("TELEPOST_RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
}
