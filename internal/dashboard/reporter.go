// SPDX-License-Identifier: MIT

// Package dashboard maintains the per-collection progress message: a single
// platform message that is edited in place as files arrive and batches are
// posted. Edits are coalesced so bursts of updates never exceed one platform
// call per throttle interval.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/gateway"
)

// CollectingText is the progress body shown while a window is open. Both
// the ingest worker and the pending-queue drain render the same shape.
func CollectingText(title string, count int) string {
	noun := "files"
	if count == 1 {
		noun = "file"
	}
	return fmt.Sprintf("🗂 <b>%s</b>\nCollecting… %d %s received", title, count, noun)
}

// Messenger is the slice of the gateway the reporter needs.
type Messenger interface {
	Send(ctx context.Context, chatID int64, payload gateway.Payload) (gateway.MessageRef, error)
	Edit(ctx context.Context, ref gateway.MessageRef, text string) error
	Delete(ctx context.Context, ref gateway.MessageRef) error
}

// Reporter owns one progress message. Writers call Set with the full desired
// text; a background flusher pushes the latest text to the platform at most
// once per interval. Finish and Discard are terminal.
type Reporter struct {
	gw       Messenger
	ref      gateway.MessageRef
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	latest string
	shown  string
	done   bool

	stop chan struct{}
	idle chan struct{}
}

// New sends the initial progress message and starts the flush loop.
func New(ctx context.Context, gw Messenger, chatID int64, text string, interval time.Duration, logger zerolog.Logger) (*Reporter, error) {
	ref, err := gw.Send(ctx, chatID, gateway.Payload{Text: text, DisableWebPreview: true})
	if err != nil {
		return nil, err
	}
	r := &Reporter{
		gw:       gw,
		ref:      ref,
		interval: interval,
		logger:   logger,
		latest:   text,
		shown:    text,
		stop:     make(chan struct{}),
		idle:     make(chan struct{}),
	}
	go r.flushLoop()
	return r, nil
}

// Ref returns the underlying message reference.
func (r *Reporter) Ref() gateway.MessageRef { return r.ref }

// Set replaces the desired text. The flush loop pushes it when the throttle
// allows; intermediate states may never reach the platform.
func (r *Reporter) Set(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.latest = text
}

func (r *Reporter) flushLoop() {
	defer close(r.idle)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush(context.Background())
		case <-r.stop:
			return
		}
	}
}

func (r *Reporter) flush(ctx context.Context) {
	r.mu.Lock()
	if r.done || r.latest == r.shown {
		r.mu.Unlock()
		return
	}
	text := r.latest
	r.mu.Unlock()

	if err := r.gw.Edit(ctx, r.ref, text); err != nil {
		r.logger.Warn().Err(err).
			Int64("chat_id", r.ref.ChatID).
			Msg("dashboard edit failed")
		return
	}

	r.mu.Lock()
	r.shown = text
	r.mu.Unlock()
}

func (r *Reporter) halt() bool {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return false
	}
	r.done = true
	r.mu.Unlock()
	close(r.stop)
	<-r.idle
	return true
}

// Stop halts the flush loop without touching the platform message. Used on
// shutdown when the message should survive as-is.
func (r *Reporter) Stop() { r.halt() }

// Finish stops the flush loop and writes a final state immediately,
// bypassing the throttle.
func (r *Reporter) Finish(ctx context.Context, text string) error {
	if !r.halt() {
		return nil
	}
	if text == r.shown {
		return nil
	}
	return r.gw.Edit(ctx, r.ref, text)
}

// Discard stops the flush loop and removes the message.
func (r *Reporter) Discard(ctx context.Context) error {
	if !r.halt() {
		return nil
	}
	return r.gw.Delete(ctx, r.ref)
}
