// SPDX-License-Identifier: MIT

// Package testutil provides shared fakes for exercising components that
// talk to the messaging platform.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/telepost-bot/telepost/internal/gateway"
)

// Call records one gateway invocation.
type Call struct {
	Method  string
	ChatID  int64
	Ref     gateway.MessageRef
	Payload gateway.Payload
	Text    string
	FileID  string
}

// FakeGateway is an in-memory Gateway that records every call and can be
// scripted to fail. Errors queued via FailNext are consumed one per call of
// the named method, which is how flood-wait retry behaviour is exercised.
type FakeGateway struct {
	mu      sync.Mutex
	calls   []Call
	nextID  int
	errs    map[string][]error
	files   map[string][]byte
	probeOK map[int64]bool
}

// NewFakeGateway returns an empty fake. All probes succeed until
// SetProbeResult marks a chat inaccessible.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		nextID:  100,
		errs:    make(map[string][]error),
		files:   make(map[string][]byte),
		probeOK: make(map[int64]bool),
	}
}

// FailNext queues err to be returned by the next call of method.
func (f *FakeGateway) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = append(f.errs[method], err)
}

// SetProbeResult controls whether ProbeChat on chatID succeeds.
func (f *FakeGateway) SetProbeResult(chatID int64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeOK[chatID] = !ok
}

// AddFile registers streamable content for a file id.
func (f *FakeGateway) AddFile(fileID string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileID] = content
}

// Calls returns a copy of all recorded calls.
func (f *FakeGateway) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns recorded calls of a single method.
func (f *FakeGateway) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeGateway) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if q := f.errs[c.Method]; len(q) > 0 {
		err := q[0]
		f.errs[c.Method] = q[1:]
		return err
	}
	return nil
}

func (f *FakeGateway) newRef(chatID int64) gateway.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return gateway.MessageRef{ChatID: chatID, MessageID: f.nextID}
}

func (f *FakeGateway) Send(ctx context.Context, chatID int64, p gateway.Payload) (gateway.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return gateway.MessageRef{}, err
	}
	if err := f.record(Call{Method: "send", ChatID: chatID, Payload: p}); err != nil {
		return gateway.MessageRef{}, err
	}
	return f.newRef(chatID), nil
}

func (f *FakeGateway) Edit(ctx context.Context, ref gateway.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.record(Call{Method: "edit", Ref: ref, Text: text})
}

func (f *FakeGateway) Delete(ctx context.Context, ref gateway.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.record(Call{Method: "delete", Ref: ref})
}

func (f *FakeGateway) Copy(ctx context.Context, from gateway.MessageRef, toChat int64) (gateway.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return gateway.MessageRef{}, err
	}
	if err := f.record(Call{Method: "copy", ChatID: toChat, Ref: from}); err != nil {
		return gateway.MessageRef{}, err
	}
	return f.newRef(toChat), nil
}

func (f *FakeGateway) SendFile(ctx context.Context, chatID int64, fileID, caption string) (gateway.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return gateway.MessageRef{}, err
	}
	if err := f.record(Call{Method: "send_file", ChatID: chatID, FileID: fileID, Text: caption}); err != nil {
		return gateway.MessageRef{}, err
	}
	return f.newRef(chatID), nil
}

func (f *FakeGateway) ProbeChat(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.record(Call{Method: "probe_chat", ChatID: chatID}); err != nil {
		return err
	}
	f.mu.Lock()
	blocked := f.probeOK[chatID]
	f.mu.Unlock()
	if blocked {
		return fmt.Errorf("probe chat %d: %w", chatID, gateway.ErrChatInaccessible)
	}
	return nil
}

func (f *FakeGateway) OpenFile(ctx context.Context, fileID string) (gateway.FileMeta, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return gateway.FileMeta{}, nil, err
	}
	if err := f.record(Call{Method: "open_file", FileID: fileID}); err != nil {
		return gateway.FileMeta{}, nil, err
	}
	f.mu.Lock()
	content, ok := f.files[fileID]
	f.mu.Unlock()
	if !ok {
		return gateway.FileMeta{}, nil, fmt.Errorf("open file %s: %w", fileID, gateway.ErrChatInaccessible)
	}
	meta := gateway.FileMeta{FileSize: int64(len(content))}
	return meta, io.NopCloser(bytes.NewReader(content)), nil
}
