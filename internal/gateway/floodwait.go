// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/metrics"
)

// cooldownSlack is added to every platform-mandated wait, matching the
// platform's guidance to not retry at the exact boundary.
const cooldownSlack = 5 * time.Second

// Suppressor is a process-wide flag raised while the gateway is serving a
// flood-wait cooldown. Window-close timers consult it and reschedule
// silently instead of firing into an unusable gateway.
type Suppressor struct {
	until atomic.Int64 // unix nanos; 0 = not suppressed
}

// Suspended reports whether timer-driven finalization should hold off.
func (s *Suppressor) Suspended() bool {
	u := s.until.Load()
	return u != 0 && time.Now().UnixNano() < u
}

func (s *Suppressor) raise(d time.Duration) {
	deadline := time.Now().Add(d).UnixNano()
	for {
		cur := s.until.Load()
		if cur >= deadline {
			return
		}
		if s.until.CompareAndSwap(cur, deadline) {
			return
		}
	}
}

// Protected wraps a Gateway with transparent flood-wait handling: every call
// is retried indefinitely on FloodWaitError, sleeping out the cooldown and
// raising the suppressor for its duration. Other errors pass through.
type Protected struct {
	inner      Gateway
	suppressor *Suppressor
	logger     zerolog.Logger
}

// NewProtected wraps inner. suppressor may be shared with the collector.
func NewProtected(inner Gateway, suppressor *Suppressor, logger zerolog.Logger) *Protected {
	return &Protected{inner: inner, suppressor: suppressor, logger: logger}
}

// Suppressor returns the flag shared with timer owners.
func (p *Protected) Suppressor() *Suppressor { return p.suppressor }

func (p *Protected) retry(ctx context.Context, method string, fn func() error) error {
	for {
		err := fn()
		var fw *FloodWaitError
		if !errors.As(err, &fw) {
			if err != nil {
				metrics.RecordGatewayCall(method, "error")
			} else {
				metrics.RecordGatewayCall(method, "success")
			}
			return err
		}

		wait := fw.RetryAfter + cooldownSlack
		metrics.RecordFloodWait()
		p.suppressor.raise(wait)
		p.logger.Warn().
			Str("method", method).
			Dur("wait", wait).
			Msg("flood wait, sleeping before retry")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Protected) Send(ctx context.Context, chatID int64, payload Payload) (MessageRef, error) {
	var ref MessageRef
	err := p.retry(ctx, "send", func() error {
		var err error
		ref, err = p.inner.Send(ctx, chatID, payload)
		return err
	})
	return ref, err
}

func (p *Protected) Edit(ctx context.Context, ref MessageRef, text string) error {
	return p.retry(ctx, "edit", func() error {
		return p.inner.Edit(ctx, ref, text)
	})
}

func (p *Protected) Delete(ctx context.Context, ref MessageRef) error {
	return p.retry(ctx, "delete", func() error {
		return p.inner.Delete(ctx, ref)
	})
}

func (p *Protected) Copy(ctx context.Context, from MessageRef, toChat int64) (MessageRef, error) {
	var ref MessageRef
	err := p.retry(ctx, "copy", func() error {
		var err error
		ref, err = p.inner.Copy(ctx, from, toChat)
		return err
	})
	return ref, err
}

func (p *Protected) SendFile(ctx context.Context, chatID int64, fileID, caption string) (MessageRef, error) {
	var ref MessageRef
	err := p.retry(ctx, "send_file", func() error {
		var err error
		ref, err = p.inner.SendFile(ctx, chatID, fileID, caption)
		return err
	})
	return ref, err
}

func (p *Protected) ProbeChat(ctx context.Context, chatID int64) error {
	return p.retry(ctx, "probe_chat", func() error {
		return p.inner.ProbeChat(ctx, chatID)
	})
}

func (p *Protected) OpenFile(ctx context.Context, fileID string) (FileMeta, io.ReadCloser, error) {
	var meta FileMeta
	var rc io.ReadCloser
	err := p.retry(ctx, "open_file", func() error {
		var err error
		meta, rc, err = p.inner.OpenFile(ctx, fileID)
		return err
	})
	return meta, rc, err
}
