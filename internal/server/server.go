// SPDX-License-Identifier: MIT

// Package server is the public HTTP surface: link resolution, file streaming
// and downloads, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/gateway"
	"github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/metrics"
	"github.com/telepost-bot/telepost/internal/store"
)

// FileOpener is the gateway slice the streaming routes need.
type FileOpener interface {
	OpenFile(ctx context.Context, fileID string) (gateway.FileMeta, io.ReadCloser, error)
}

// Config wires a Server.
type Config struct {
	Store    store.Store
	Registry *collector.Registry
	Opener   FileOpener
	// BotUsername resolves the bot's username for deep links; evaluated per
	// request because it is only known after the gateway connects.
	BotUsername func() string
	Version     string

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Server serves the public routes.
type Server struct {
	cfg    Config
	logger zerolog.Logger
}

// New builds a Server.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, logger: log.WithComponent("server")}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(accessLog)
	if s.cfg.RateLimitRequests > 0 {
		r.Use(rateLimit(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
	}

	r.Get("/", s.handleStatus)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/get/{composite}", s.handleGet)
	r.Get("/stream/{owner}/{uid}", s.handleStream(false))
	r.Get("/download/{owner}/{uid}", s.handleStream(true))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	files, err := s.cfg.Store.TotalFiles(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("file count unavailable")
	}
	status := struct {
		Service   string          `json:"service"`
		Version   string          `json:"version"`
		Bot       string          `json:"bot"`
		Files     int             `json:"files"`
		Collector collector.Stats `json:"collector"`
	}{
		Service:   "telepost",
		Version:   s.cfg.Version,
		Bot:       s.cfg.BotUsername(),
		Files:     files,
		Collector: s.cfg.Registry.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn().Err(err).Msg("status encoding failed")
	}
}

// handleGet redirects a public file link into the bot's private chat, where
// delivery happens via the start payload.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	composite := chi.URLParam(r, "composite")
	owner, uid, ok := splitComposite(composite)
	if !ok {
		metrics.RecordStreamRequest("get", "bad_request")
		http.Error(w, "malformed link", http.StatusBadRequest)
		return
	}
	if _, err := s.cfg.Store.GetFile(r.Context(), owner, uid); err != nil {
		metrics.RecordStreamRequest("get", "not_found")
		http.NotFound(w, r)
		return
	}

	bot := s.cfg.BotUsername()
	if bot == "" {
		metrics.RecordStreamRequest("get", "unavailable")
		http.Error(w, "bot unavailable", http.StatusServiceUnavailable)
		return
	}
	target := fmt.Sprintf("https://t.me/%s?start=get_%s", bot, url.QueryEscape(composite))
	metrics.RecordStreamRequest("get", "redirect")
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleStream(download bool) http.HandlerFunc {
	route := "stream"
	if download {
		route = "download"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := strconv.ParseInt(chi.URLParam(r, "owner"), 10, 64)
		if err != nil {
			metrics.RecordStreamRequest(route, "bad_request")
			http.Error(w, "malformed link", http.StatusBadRequest)
			return
		}
		uid := chi.URLParam(r, "uid")

		rec, err := s.cfg.Store.GetFile(r.Context(), owner, uid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				metrics.RecordStreamRequest(route, "not_found")
				http.NotFound(w, r)
				return
			}
			metrics.RecordStreamRequest(route, "error")
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		meta, rc, err := s.cfg.Opener.OpenFile(r.Context(), rec.FileID)
		if err != nil {
			metrics.RecordStreamRequest(route, "upstream_error")
			s.logger.Error().Err(err).
				Str(log.FieldFileUniqueID, uid).
				Msg("opening archived file failed")
			http.Error(w, "file unavailable", http.StatusBadGateway)
			return
		}
		defer rc.Close()

		disposition := "inline"
		if download {
			disposition = "attachment"
		}
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`%s; filename=%q`, disposition, rec.FileName))
		if rec.MimeType != "" {
			w.Header().Set("Content-Type", rec.MimeType)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		size := rec.FileSize
		if meta.FileSize > 0 {
			size = meta.FileSize
		}
		if size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}

		if _, err := io.Copy(w, rc); err != nil {
			// client went away mid-stream, nothing to answer
			metrics.RecordStreamRequest(route, "aborted")
			return
		}
		metrics.RecordStreamRequest(route, "ok")
	}
}

// splitComposite parses "ownerID_fileUniqueID". The unique id may itself
// contain underscores, so only the first one splits.
func splitComposite(s string) (int64, string, bool) {
	i := strings.Index(s, "_")
	if i <= 0 || i == len(s)-1 {
		return 0, "", false
	}
	owner, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return owner, s[i+1:], true
}
