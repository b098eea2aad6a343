// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/render"
	"github.com/telepost-bot/telepost/internal/store"
	"github.com/telepost-bot/telepost/internal/testutil"
	"github.com/telepost-bot/telepost/internal/title"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	ownerID = int64(1)
	destID  = int64(-100555)
)

type fixture struct {
	gw  *testutil.FakeGateway
	st  store.Store
	reg *collector.Registry
	pl  *Pipeline

	closed chan *collector.Window
	hold   chan struct{}
}

// newFixture wires registry and pipeline together. The OnClose hook parks on
// f.hold after announcing the close, letting tests enqueue pending files
// while the owner lock is held.
func newFixture(t *testing.T, gated bool) *fixture {
	t.Helper()
	f := &fixture{
		gw:     testutil.NewFakeGateway(),
		st:     store.NewMemoryStore(),
		closed: make(chan *collector.Window, 8),
		hold:   make(chan struct{}),
	}
	_, err := f.st.UpdateUser(context.Background(), ownerID, func(u *store.User) error {
		u.PostChannels = []int64{destID}
		u.ShortenerEnabled = false
		u.ShowPoster = false
		return nil
	})
	require.NoError(t, err)

	cfg := Config{
		Store:        f.st,
		Gateway:      f.gw,
		Renderer:     &render.Renderer{BaseURL: "https://example.com"},
		PostDelay:    time.Millisecond,
		EditInterval: 10 * time.Millisecond,
	}
	f.reg = collector.NewRegistry(collector.Config{
		Inactivity: 40 * time.Millisecond,
		OnClose: func(owner int64, w *collector.Window) {
			f.closed <- w
			if gated {
				<-f.hold
			}
			f.pl.OnClose(owner, w)
		},
	})
	cfg.Registry = f.reg
	f.pl = New(context.Background(), cfg)

	t.Cleanup(f.reg.Shutdown)
	return f
}

func mkFile(t *testing.T, name string) *collector.File {
	t.Helper()
	info := title.Parse(name)
	require.NotNil(t, info)
	return &collector.File{
		Record: &store.FileRecord{
			OwnerID:      ownerID,
			FileUniqueID: "uid-" + name,
			FileName:     name,
			FileSize:     1 << 30,
		},
		Title: info,
	}
}

func waitClosed(t *testing.T, f *fixture) *collector.Window {
	t.Helper()
	select {
	case w := <-f.closed:
		return w
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for window close")
		return nil
	}
}

func postsTo(f *fixture, chat int64) int {
	n := 0
	for _, c := range f.gw.CallsTo("send") {
		if c.ChatID == chat {
			n++
		}
	}
	return n
}

func TestFinalizePublishesWindow(t *testing.T) {
	f := newFixture(t, false)

	f.reg.Add(mkFile(t, "Some.Show.S01E01.720p.mkv"))
	f.reg.Add(mkFile(t, "Some.Show.S01E02.720p.mkv"))

	w := waitClosed(t, f)
	require.Eventually(t, func() bool {
		return w.State() == collector.StatePublished
	}, 3*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, postsTo(f, destID))
	require.Equal(t, 1, len(f.gw.CallsTo("probe_chat")))
	require.Eventually(t, func() bool {
		return !f.reg.Locked(ownerID)
	}, time.Second, 10*time.Millisecond)
}

func TestFinalizeSplitsMixedWindowIntoBatches(t *testing.T) {
	f := newFixture(t, false)

	// Force both titles into one window, then let partitioning pull them
	// apart again.
	w := &collector.Window{
		Key:     "mixed",
		OwnerID: ownerID,
		Files: []*collector.File{
			mkFile(t, "Some.Show.S01E01.720p.mkv"),
			mkFile(t, "Other.Movie.2021.1080p.mkv"),
			mkFile(t, "Some.Show.S01E02.720p.mkv"),
		},
	}
	f.pl.OnClose(ownerID, w)

	require.Equal(t, collector.StatePublished, w.State())
	require.Equal(t, 2, postsTo(f, destID))

	sends := f.gw.CallsTo("send")
	require.Contains(t, sends[0].Payload.Text, "Some Show")
	require.Contains(t, sends[1].Payload.Text, "Other Movie")
}

func TestPartitionPicksBestScoringBatch(t *testing.T) {
	file := func(key, name string) *collector.File {
		return &collector.File{
			Record: &store.FileRecord{OwnerID: ownerID, FileUniqueID: "uid-" + name, FileName: name},
			Title:  &title.Info{GroupingKey: key, DisplayTitle: name},
		}
	}

	// The probe key scores 97 against the first batch and 100 against the
	// second (its tokens are a strict subset), so it must land in the second
	// even though the first already clears the threshold.
	f1 := file("the moonlight kingdom complete sagas", "a.mkv")
	f2 := file("the moonlight kingdom saga", "b.mkv")
	f3 := file("the moonlight kingdom saga complete", "c.mkv")

	batches := partition([]*collector.File{f1, f2, f3})
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 1)
	require.Equal(t, "a.mkv", batches[0][0].Record.FileName)
	require.Len(t, batches[1], 2)
	require.Equal(t, "b.mkv", batches[1][0].Record.FileName)
	require.Equal(t, "c.mkv", batches[1][1].Record.FileName)
}

func TestFinalizeInaccessibleChannel(t *testing.T) {
	f := newFixture(t, false)
	f.gw.SetProbeResult(destID, false)

	w := &collector.Window{
		Key:     "some show s01",
		OwnerID: ownerID,
		Files:   []*collector.File{mkFile(t, "Some.Show.S01E01.mkv")},
	}
	f.pl.OnClose(ownerID, w)

	require.Equal(t, collector.StateFailed, w.State())
	require.Equal(t, 0, postsTo(f, destID))

	// Owner got a notice and the broken channel is gone from settings.
	require.Equal(t, 1, postsTo(f, ownerID))
	u, err := f.st.GetUser(context.Background(), ownerID)
	require.NoError(t, err)
	require.Empty(t, u.PostChannels)
	require.False(t, f.reg.Locked(ownerID))
}

func TestFinalizeEmptyWindowIsSilent(t *testing.T) {
	f := newFixture(t, false)

	w := &collector.Window{Key: "some show s01", OwnerID: ownerID}
	f.pl.OnClose(ownerID, w)

	require.Equal(t, collector.StatePublished, w.State())
	require.Empty(t, f.gw.CallsTo("send"))
	require.Empty(t, f.gw.CallsTo("probe_chat"))
}

func TestFinalizePublishFailure(t *testing.T) {
	f := newFixture(t, false)
	f.gw.FailNext("send", errors.New("boom"))

	w := &collector.Window{
		Key:     "some show s01",
		OwnerID: ownerID,
		Files:   []*collector.File{mkFile(t, "Some.Show.S01E01.mkv")},
	}
	f.pl.OnClose(ownerID, w)

	require.Equal(t, collector.StateFailed, w.State())
	require.False(t, f.reg.Locked(ownerID))
}

func TestPendingDrainedIntoFreshWindowAfterRelease(t *testing.T) {
	f := newFixture(t, true)

	f.reg.Add(mkFile(t, "Some.Show.S01E01.720p.mkv"))
	first := waitClosed(t, f)

	// Owner is locked: these park in the pending queue.
	require.Equal(t, collector.RoutedPending, f.reg.Add(mkFile(t, "Some.Show.S02E01.720p.mkv")).Routing)
	require.Equal(t, collector.RoutedPending, f.reg.Add(mkFile(t, "Some.Show.S02E02.720p.mkv")).Routing)

	close(f.hold)

	require.Eventually(t, func() bool {
		return first.State() == collector.StatePublished
	}, 3*time.Second, 10*time.Millisecond)

	// The drained window collects on its own timer and publishes too.
	second := waitClosed(t, f)
	require.Len(t, second.Files, 2)
	require.Equal(t, "Some.Show.S02E01.720p.mkv", second.Files[0].Record.FileName)
	require.NotNil(t, second.Report)

	require.Eventually(t, func() bool {
		return second.State() == collector.StatePublished
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, postsTo(f, destID))
}
