// SPDX-License-Identifier: MIT

// Package pipeline finalizes closed collection windows: it partitions the
// window into title batches, verifies the destination channel once, publishes
// the rendered posts with pacing, and drains the owner's pending queue into
// fresh windows when done.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/dashboard"
	"github.com/telepost-bot/telepost/internal/gateway"
	"github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/metrics"
	"github.com/telepost-bot/telepost/internal/render"
	"github.com/telepost-bot/telepost/internal/similarity"
	"github.com/telepost-bot/telepost/internal/store"
)

// Config wires a Pipeline.
type Config struct {
	Store    store.Store
	Registry *collector.Registry
	Gateway  gateway.Gateway
	Renderer *render.Renderer
	// PostDelay paces consecutive posts to the destination channel.
	PostDelay time.Duration
	// EditInterval throttles dashboard edits on drained windows.
	EditInterval time.Duration
}

// Pipeline runs one finalization per closed window. The registry guarantees
// at most one finalization per owner at a time; the post limiter is shared
// across owners because the platform rate-limits the bot as a whole.
type Pipeline struct {
	ctx          context.Context
	st           store.Store
	reg          *collector.Registry
	gw           gateway.Gateway
	renderer     *render.Renderer
	limiter      *rate.Limiter
	editInterval time.Duration
	logger       zerolog.Logger
}

// New builds a Pipeline. ctx bounds every finalization started later; cancel
// it to stop in-flight publishing on shutdown.
func New(ctx context.Context, cfg Config) *Pipeline {
	return &Pipeline{
		ctx:          ctx,
		st:           cfg.Store,
		reg:          cfg.Registry,
		gw:           cfg.Gateway,
		renderer:     cfg.Renderer,
		limiter:      rate.NewLimiter(rate.Every(cfg.PostDelay), 1),
		editInterval: cfg.EditInterval,
		logger:       log.WithComponent("pipeline"),
	}
}

// OnClose is the registry close callback. It always releases the owner's
// lock, even on panic.
func (p *Pipeline) OnClose(owner int64, w *collector.Window) {
	logger := p.logger.With().
		Int64(log.FieldOwnerID, owner).
		Str(log.FieldWindowKey, w.Key).
		Logger()

	defer p.release(owner, logger)
	defer func() {
		if r := recover(); r != nil {
			w.MarkFailed()
			metrics.RecordWindowFinalized("panic")
			logger.Error().Interface("panic", r).Msg("recovered from panic during finalization")
		}
	}()

	p.finalize(p.ctx, owner, w, logger)
}

func (p *Pipeline) finalize(ctx context.Context, owner int64, w *collector.Window, logger zerolog.Logger) {
	if len(w.Files) == 0 {
		// Nothing collected (skipped-only window): clean up quietly.
		if w.Report != nil {
			_ = w.Report.Discard(ctx)
		}
		w.MarkPublished()
		metrics.RecordWindowFinalized("empty")
		return
	}

	u, err := p.st.GetUser(ctx, owner)
	if err != nil {
		p.fail(ctx, w, "owner settings unavailable", logger)
		return
	}

	dest := u.PostChannel()
	if dest == 0 {
		p.fail(ctx, w, "no post channel configured", logger)
		return
	}

	// One probe per finalization, not per post.
	if err := p.gw.ProbeChat(ctx, dest); err != nil {
		if errors.Is(err, gateway.ErrChatInaccessible) {
			p.dropChannel(ctx, owner, dest, logger)
			_, _ = p.gw.Send(ctx, owner, gateway.Payload{
				Text: fmt.Sprintf("⚠️ I can no longer post to channel <code>%d</code>. It has been removed from your settings; add a channel I am an admin of and post again.", dest),
			})
			p.fail(ctx, w, "post channel inaccessible", logger)
			return
		}
		p.fail(ctx, w, "post channel check failed", logger)
		return
	}

	batches := partition(w.Files)
	if w.Report != nil {
		w.Report.Set(fmt.Sprintf("🗂 Grouping complete: %d batch(es), publishing…", len(batches)))
	}

	published := 0
	for i, batch := range batches {
		posts := p.renderer.Render(ctx, u, batch)
		for _, post := range posts {
			if err := p.limiter.Wait(ctx); err != nil {
				p.fail(ctx, w, "shut down mid-publish", logger)
				return
			}
			if _, err := p.gw.Send(ctx, dest, post); err != nil {
				logger.Error().Err(err).Int64(log.FieldChatID, dest).Msg("publishing post failed")
				p.fail(ctx, w, fmt.Sprintf("publishing failed after %d of %d batches", published, len(batches)), logger)
				return
			}
		}
		published++
		metrics.RecordBatchPublished()
		if w.Report != nil {
			w.Report.Set(fmt.Sprintf("📤 Published batch %d of %d…", i+1, len(batches)))
		}
	}

	w.MarkPublished()
	metrics.RecordWindowFinalized("published")
	logger.Info().
		Str(log.FieldEvent, "window.published").
		Int("batches", published).
		Msg("window published")

	if w.Report != nil {
		_ = w.Report.Discard(ctx)
	}
	if len(w.Skipped) > 0 {
		_, _ = p.gw.Send(ctx, owner, gateway.Payload{
			Text:              skippedSummary(w.Skipped),
			DisableWebPreview: true,
		})
	}
}

// fail marks the window terminally failed and leaves the reason visible in
// the progress message.
func (p *Pipeline) fail(ctx context.Context, w *collector.Window, reason string, logger zerolog.Logger) {
	w.MarkFailed()
	metrics.RecordWindowFinalized("failed")
	logger.Warn().Str(log.FieldEvent, "window.failed").Str("reason", reason).Msg("finalization failed")
	if w.Report != nil {
		_ = w.Report.Finish(ctx, "❌ "+html.EscapeString(reason))
	}
}

// dropChannel removes an unreachable channel from the owner's settings so
// the next batch does not run into the same wall.
func (p *Pipeline) dropChannel(ctx context.Context, owner, dest int64, logger zerolog.Logger) {
	_, err := p.st.UpdateUser(ctx, owner, func(u *store.User) error {
		kept := u.PostChannels[:0]
		for _, ch := range u.PostChannels {
			if ch != dest {
				kept = append(kept, ch)
			}
		}
		u.PostChannels = kept
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64(log.FieldChatID, dest).Msg("removing unreachable channel failed")
	}
}

// release drops the owner's lock and gives every drained window a fresh
// progress message.
func (p *Pipeline) release(owner int64, logger zerolog.Logger) {
	created := p.reg.Release(owner)
	for _, d := range created {
		rep, err := dashboard.New(p.ctx, p.gw, owner, dashboard.CollectingText(d.Title, d.Count), p.editInterval, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("progress message for drained window could not be created")
			continue
		}
		if !p.reg.AttachReport(d.Window, rep) {
			_ = rep.Discard(p.ctx)
		}
	}
}

// partition splits a window's files into per-title batches. Batch order
// follows arrival order; each file joins the best-scoring existing batch,
// with an exact key match always winning.
func partition(files []*collector.File) [][]*collector.File {
	type batch struct {
		key   string
		files []*collector.File
	}
	var batches []*batch
	for _, f := range files {
		key := f.Title.GroupingKey
		var target *batch
		bestScore := 0
		for _, b := range batches {
			if key == b.key {
				target = b
				break
			}
			score := similarity.Score(key, b.key)
			if score <= collector.MatchThreshold && similarity.PartialScore(key, b.key) < collector.PartialThreshold {
				continue
			}
			if score > bestScore {
				target = b
				bestScore = score
			}
		}
		if target == nil {
			target = &batch{key: key}
			batches = append(batches, target)
		}
		target.files = append(target.files, f)
	}
	out := make([][]*collector.File, len(batches))
	for i, b := range batches {
		out[i] = b.files
	}
	return out
}

func skippedSummary(skipped []string) string {
	var sb strings.Builder
	sb.WriteString("⚠️ Skipped files (no recognisable title):\n")
	for _, name := range skipped {
		sb.WriteString("• <code>")
		sb.WriteString(html.EscapeString(name))
		sb.WriteString("</code>\n")
	}
	return sb.String()
}
