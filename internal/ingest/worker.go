// SPDX-License-Identifier: MIT

// Package ingest runs the single-consumer worker that turns raw platform
// events into archived, parsed, routed files. One goroutine drains the queue
// so per-owner processing order always matches arrival order.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/dashboard"
	"github.com/telepost-bot/telepost/internal/gateway"
	"github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/metrics"
	"github.com/telepost-bot/telepost/internal/store"
	"github.com/telepost-bot/telepost/internal/title"
)

const defaultQueueSize = 512

// Event is one media message to ingest.
type Event struct {
	OwnerID      int64
	Source       gateway.MessageRef
	FileID       string
	FileUniqueID string
	FileName     string
	FileSize     int64
	MimeType     string
}

// Gateway is the slice of the platform gateway the worker needs: archiving
// copies plus the dashboard message surface.
type Gateway interface {
	dashboard.Messenger
	Copy(ctx context.Context, from gateway.MessageRef, toChat int64) (gateway.MessageRef, error)
}

// Config wires a Worker.
type Config struct {
	Store    store.Store
	Registry *collector.Registry
	Gateway  Gateway
	// ArchiveChat receives copies when the owner has no index channel of
	// their own. Zero disables the fallback.
	ArchiveChat int64
	// Pause is the idle gap between consecutive events.
	Pause time.Duration
	// EditInterval throttles dashboard edits.
	EditInterval time.Duration
	QueueSize    int
}

// Worker is the ingest consumer. Enqueue from any goroutine; exactly one
// Run loop consumes.
type Worker struct {
	queue chan Event

	st           store.Store
	reg          *collector.Registry
	gw           Gateway
	archiveChat  int64
	pause        time.Duration
	editInterval time.Duration
	logger       zerolog.Logger
}

// NewWorker builds a Worker; call Run to start consuming.
func NewWorker(cfg Config) *Worker {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Worker{
		queue:        make(chan Event, size),
		st:           cfg.Store,
		reg:          cfg.Registry,
		gw:           cfg.Gateway,
		archiveChat:  cfg.ArchiveChat,
		pause:        cfg.Pause,
		editInterval: cfg.EditInterval,
		logger:       log.WithComponent("ingest"),
	}
}

// Enqueue hands an event to the worker, blocking when the queue is full.
func (w *Worker) Enqueue(ctx context.Context, ev Event) error {
	select {
	case w.queue <- ev:
		metrics.SetIngestQueueDepth(len(w.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes the queue until ctx is cancelled. A panic while handling one
// event is logged and the loop keeps going.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.queue:
			w.safeProcess(ctx, ev)
			metrics.SetIngestQueueDepth(len(w.queue))
			if w.pause > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(w.pause):
				}
			}
		}
	}
}

func (w *Worker) safeProcess(ctx context.Context, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordIngest("panic")
			w.logger.Error().
				Interface("panic", p).
				Int64(log.FieldOwnerID, ev.OwnerID).
				Str(log.FieldFilename, ev.FileName).
				Msg("recovered from panic while processing event")
		}
	}()
	w.process(ctx, ev)
}

func (w *Worker) process(ctx context.Context, ev Event) {
	logger := w.logger.With().
		Int64(log.FieldOwnerID, ev.OwnerID).
		Str(log.FieldFileUniqueID, ev.FileUniqueID).
		Str(log.FieldFilename, ev.FileName).
		Logger()

	archive := w.resolveArchive(ctx, ev.OwnerID)
	if archive == 0 {
		metrics.RecordIngest("unconfigured")
		logger.Warn().Str(log.FieldEvent, "ingest.drop").Msg("no archive channel configured, dropping file")
		return
	}

	copied, err := w.gw.Copy(ctx, ev.Source, archive)
	if err != nil {
		metrics.RecordIngest("copy_failed")
		logger.Error().Err(err).Int64(log.FieldChatID, archive).Msg("archiving copy failed")
		return
	}

	streamID := uuid.NewString()
	uid := ev.FileUniqueID
	if uid == "" {
		// Some media arrives without a platform unique id; the generated
		// stream id keys the record instead.
		uid = streamID
	}
	rec := &store.FileRecord{
		OwnerID:      ev.OwnerID,
		FileUniqueID: uid,
		MessageID:    copied.MessageID,
		StreamID:     streamID,
		FileID:       ev.FileID,
		MimeType:     ev.MimeType,
		FileName:     ev.FileName,
		FileSize:     ev.FileSize,
		RawLink:      messageLink(archive, copied.MessageID),
		CreatedAt:    time.Now().UTC(),
	}
	if err := w.st.PutFile(ctx, rec); err != nil {
		metrics.RecordIngest("store_failed")
		logger.Error().Err(err).Msg("persisting file record failed")
		return
	}

	info := title.Parse(ev.FileName)
	if info == nil {
		w.reg.AddSkipped(ev.OwnerID, ev.FileName)
		metrics.RecordIngest("skipped")
		logger.Info().Str(log.FieldEvent, "ingest.skip").Msg("filename not recognisable as a title")
		return
	}

	res := w.reg.Add(&collector.File{Record: rec, Title: info})
	w.afterRoute(ctx, ev.OwnerID, res, logger)
}

func (w *Worker) afterRoute(ctx context.Context, owner int64, res collector.AddResult, logger zerolog.Logger) {
	switch res.Routing {
	case collector.RoutedDropped:
		metrics.RecordIngest("dropped")
		return
	case collector.RoutedPending:
		metrics.RecordIngest("pending")
		return
	case collector.RoutedNew:
		metrics.RecordIngest("collected")
		rep, err := dashboard.New(ctx, w.gw, owner, dashboard.CollectingText(res.Title, res.FileCount), w.editInterval, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("progress message could not be created")
			return
		}
		if !w.reg.AttachReport(res.Window, rep) {
			// The window closed while the message was being sent; it belongs
			// to a finalizer now and will never see the reporter.
			_ = rep.Discard(ctx)
		}
	case collector.RoutedExisting:
		metrics.RecordIngest("collected")
		if res.Report != nil {
			res.Report.Set(dashboard.CollectingText(res.Title, res.FileCount))
		}
	}
}

func (w *Worker) resolveArchive(ctx context.Context, owner int64) int64 {
	u, err := w.st.GetUser(ctx, owner)
	if err == nil && u.IndexDBChannel != 0 {
		return u.IndexDBChannel
	}
	return w.archiveChat
}

// messageLink builds the private t.me deep link for a copied message.
func messageLink(chatID int64, messageID int) string {
	slug := strconv.FormatInt(chatID, 10)
	slug = strings.TrimPrefix(slug, "-100")
	slug = strings.TrimPrefix(slug, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", slug, messageID)
}
