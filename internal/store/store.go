// SPDX-License-Identifier: MIT

// Package store persists user settings and archived-file records.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// FooterButton is one user-configured button appended to every post.
type FooterButton struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// User holds the per-user posting configuration.
type User struct {
	UserID            int64          `json:"user_id"`
	PostChannels      []int64        `json:"post_channels"`
	IndexDBChannel    int64          `json:"index_db_channel"` // 0 = unset, fall back to owner archive
	ShortenerURL      string         `json:"shortener_url"`
	ShortenerAPI      string         `json:"shortener_api"`
	ShortenerEnabled  bool           `json:"shortener_enabled"`
	ShowPoster        bool           `json:"show_poster"`
	FooterButtons     []FooterButton `json:"footer_buttons"`
	HowToDownloadLink string         `json:"how_to_download_link"`
}

// PostChannel returns the user's destination channel, 0 if none configured.
func (u *User) PostChannel() int64 {
	if u == nil || len(u.PostChannels) == 0 {
		return 0
	}
	return u.PostChannels[0]
}

// NewUser returns the default settings for a first-seen user.
func NewUser(id int64) *User {
	return &User{
		UserID:           id,
		ShortenerEnabled: true,
		ShowPoster:       true,
	}
}

// FileRecord is the durable record of one archived file.
type FileRecord struct {
	OwnerID      int64     `json:"owner_id"`
	FileUniqueID string    `json:"file_unique_id"`
	MessageID    int       `json:"message_id"` // archived copy in the archive channel
	StreamID     string    `json:"stream_id"`  // generated id, keys the record when the platform gives no unique id
	FileID       string    `json:"file_id"`    // platform file id used for streaming
	MimeType     string    `json:"mime_type"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	RawLink      string    `json:"raw_link"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the persistence boundary for users and file records.
type Store interface {
	// GetUser returns ErrNotFound for unknown users.
	GetUser(ctx context.Context, id int64) (*User, error)
	// PutUser stores the full user document.
	PutUser(ctx context.Context, u *User) error
	// UpdateUser applies fn to the stored user (created with defaults when
	// absent) and persists the result atomically.
	UpdateUser(ctx context.Context, id int64, fn func(*User) error) (*User, error)

	// PutFile upserts a file record keyed by (owner, file unique id).
	PutFile(ctx context.Context, rec *FileRecord) error
	// GetFile returns ErrNotFound for unknown records.
	GetFile(ctx context.Context, ownerID int64, fileUniqueID string) (*FileRecord, error)
	// FileCount returns the number of records owned by a user.
	FileCount(ctx context.Context, ownerID int64) (int, error)
	// TotalFiles returns the number of records across all owners.
	TotalFiles(ctx context.Context) (int, error)

	// FindOwnerByIndexChannel resolves which user registered the given
	// channel as their index channel. ErrNotFound when nobody did.
	FindOwnerByIndexChannel(ctx context.Context, channelID int64) (int64, error)

	Close() error
}
