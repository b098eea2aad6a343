// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores under test: both backends must behave identically.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{
		"badger": b,
		"memory": NewMemoryStore(),
	}
}

func TestUserLifecycle(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetUser(ctx, 7)
			assert.ErrorIs(t, err, ErrNotFound)

			// UpdateUser creates with defaults when absent.
			u, err := s.UpdateUser(ctx, 7, func(u *User) error {
				u.PostChannels = append(u.PostChannels, -100123)
				u.ShortenerURL = "sho.rt"
				return nil
			})
			require.NoError(t, err)
			assert.True(t, u.ShortenerEnabled, "defaults applied")
			assert.True(t, u.ShowPoster)
			assert.Equal(t, int64(-100123), u.PostChannel())

			got, err := s.GetUser(ctx, 7)
			require.NoError(t, err)
			if diff := cmp.Diff(u, got); diff != "" {
				t.Fatalf("stored user mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileRecordRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := &FileRecord{
				OwnerID:      42,
				FileUniqueID: "AQADBAAD",
				MessageID:    1001,
				StreamID:     "b1f4c7aa-0d2e-4a53-9a51-1b1f0d8a1c55",
				FileName:     "Show.S01E01.1080p.mkv",
				FileSize:     734003200,
				RawLink:      "https://t.me/c/123/1001",
				CreatedAt:    time.Now().UTC().Truncate(time.Second),
			}
			require.NoError(t, s.PutFile(ctx, rec))

			got, err := s.GetFile(ctx, 42, "AQADBAAD")
			require.NoError(t, err)
			if diff := cmp.Diff(rec, got); diff != "" {
				t.Fatalf("file record mismatch (-want +got):\n%s", diff)
			}

			_, err = s.GetFile(ctx, 42, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			// Upsert: same key overwrites, count stays stable.
			rec.FileSize = 1
			require.NoError(t, s.PutFile(ctx, rec))
			n, err := s.FileCount(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			n, err = s.FileCount(ctx, 99)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			// TotalFiles spans owners.
			other := *rec
			other.OwnerID = 99
			require.NoError(t, s.PutFile(ctx, &other))
			total, err := s.TotalFiles(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, total)
		})
	}
}

func TestFactory(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = Open("bolt", "")
	assert.Error(t, err)
}
