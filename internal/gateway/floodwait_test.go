// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telepost-bot/telepost/internal/log"
)

// stubGateway fails each method with the queued errors, then succeeds.
type stubGateway struct {
	sendErrs []error
	sends    int
}

func (s *stubGateway) Send(ctx context.Context, chatID int64, p Payload) (MessageRef, error) {
	s.sends++
	if len(s.sendErrs) > 0 {
		err := s.sendErrs[0]
		s.sendErrs = s.sendErrs[1:]
		return MessageRef{}, err
	}
	return MessageRef{ChatID: chatID, MessageID: s.sends}, nil
}

func (s *stubGateway) Edit(context.Context, MessageRef, string) error   { return nil }
func (s *stubGateway) Delete(context.Context, MessageRef) error         { return nil }
func (s *stubGateway) ProbeChat(context.Context, int64) error           { return nil }
func (s *stubGateway) Copy(_ context.Context, _ MessageRef, to int64) (MessageRef, error) {
	return MessageRef{ChatID: to}, nil
}
func (s *stubGateway) SendFile(_ context.Context, chat int64, _, _ string) (MessageRef, error) {
	return MessageRef{ChatID: chat}, nil
}
func (s *stubGateway) OpenFile(context.Context, string) (FileMeta, io.ReadCloser, error) {
	return FileMeta{}, nil, errors.New("not implemented")
}

func TestProtectedPassesThroughOrdinaryErrors(t *testing.T) {
	boom := errors.New("boom")
	inner := &stubGateway{sendErrs: []error{boom}}
	p := NewProtected(inner, &Suppressor{}, log.WithComponent("test"))

	_, err := p.Send(context.Background(), 1, Payload{Text: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, inner.sends, "ordinary errors must not be retried")
}

func TestProtectedSleepsOutFloodWaitAndRaisesSuppressor(t *testing.T) {
	inner := &stubGateway{sendErrs: []error{&FloodWaitError{RetryAfter: time.Hour}}}
	sup := &Suppressor{}
	p := NewProtected(inner, sup, log.WithComponent("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Send(ctx, 1, Payload{Text: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// The call parked in the cooldown sleep rather than spinning.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, inner.sends)

	// Timers consult this flag and hold off while the cooldown runs.
	assert.True(t, sup.Suspended())
}

func TestProtectedRetriesAfterCooldown(t *testing.T) {
	inner := &stubGateway{sendErrs: []error{&FloodWaitError{RetryAfter: -cooldownSlack}}}
	p := NewProtected(inner, &Suppressor{}, log.WithComponent("test"))

	ref, err := p.Send(context.Background(), 1, Payload{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ref.ChatID)
	assert.Equal(t, 2, inner.sends, "expected one retry after the cooldown")
}

func TestSuppressorExpires(t *testing.T) {
	sup := &Suppressor{}
	assert.False(t, sup.Suspended())

	sup.raise(30 * time.Millisecond)
	assert.True(t, sup.Suspended())

	time.Sleep(50 * time.Millisecond)
	assert.False(t, sup.Suspended())
}

func TestSuppressorKeepsLatestDeadline(t *testing.T) {
	sup := &Suppressor{}
	sup.raise(time.Hour)
	sup.raise(time.Millisecond) // must not shorten the active cooldown
	assert.True(t, sup.Suspended())
}
