// SPDX-License-Identifier: MIT

// Package gateway abstracts the chat platform: sending, editing and deleting
// messages, copying files into archive channels, and fetching file content.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Button is one inline URL button.
type Button struct {
	Label string
	URL   string
}

// Payload is one ready-to-send message.
type Payload struct {
	Text              string
	PhotoURL          string   // when set, sent as a photo with Text as caption
	Buttons           []Button // rendered one per row
	DisableWebPreview bool
}

// MessageRef identifies a message in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// FileMeta describes the media attached to an archived message.
type FileMeta struct {
	FileName     string
	FileSize     int64
	MimeType     string
	FileUniqueID string
}

// FloodWaitError reports a platform rate-limit with a mandatory cooldown.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %s", e.RetryAfter)
}

// ErrChatInaccessible marks a chat the bot cannot post to (kicked, deleted,
// never joined). Callers treat it as a configuration problem, not a retry.
var ErrChatInaccessible = errors.New("gateway: chat inaccessible")

// Gateway is the messaging boundary. All methods honour ctx cancellation.
type Gateway interface {
	// Send posts a payload to a chat.
	Send(ctx context.Context, chatID int64, p Payload) (MessageRef, error)
	// Edit replaces the text of an existing message.
	Edit(ctx context.Context, ref MessageRef, text string) error
	// Delete removes a message. Deleting an already-deleted message is not
	// an error.
	Delete(ctx context.Context, ref MessageRef) error
	// Copy duplicates a message (with media) into another chat.
	Copy(ctx context.Context, from MessageRef, toChat int64) (MessageRef, error)
	// SendFile delivers an archived file to a chat by platform file id.
	SendFile(ctx context.Context, chatID int64, fileID, caption string) (MessageRef, error)
	// ProbeChat verifies the bot can post to the chat, returning
	// ErrChatInaccessible when it cannot.
	ProbeChat(ctx context.Context, chatID int64) error
	// OpenFile streams the content of an archived file by its platform file id.
	OpenFile(ctx context.Context, fileID string) (FileMeta, io.ReadCloser, error)
}
