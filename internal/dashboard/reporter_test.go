// SPDX-License-Identifier: MIT

package dashboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/testutil"
)

func newReporter(t *testing.T, gw *testutil.FakeGateway, interval time.Duration) *Reporter {
	t.Helper()
	r, err := New(context.Background(), gw, 7, "initial", interval, log.WithComponent("test"))
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestReporterSendsInitialMessage(t *testing.T) {
	gw := testutil.NewFakeGateway()
	r := newReporter(t, gw, time.Hour)

	sends := gw.CallsTo("send")
	require.Len(t, sends, 1)
	assert.Equal(t, int64(7), sends[0].ChatID)
	assert.Equal(t, "initial", sends[0].Payload.Text)
	assert.Equal(t, int64(7), r.Ref().ChatID)
}

func TestReporterCoalescesBursts(t *testing.T) {
	gw := testutil.NewFakeGateway()
	r := newReporter(t, gw, 40*time.Millisecond)

	for i := 0; i < 20; i++ {
		r.Set(strings.Repeat("x", i+1))
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		edits := gw.CallsTo("edit")
		return len(edits) > 0 && edits[len(edits)-1].Text == strings.Repeat("x", 20)
	}, 2*time.Second, 10*time.Millisecond)

	// 20 updates in ~40ms must collapse to far fewer edits than updates.
	assert.Less(t, len(gw.CallsTo("edit")), 5)
}

func TestReporterFinishBypassesThrottle(t *testing.T) {
	gw := testutil.NewFakeGateway()
	r := newReporter(t, gw, time.Hour)

	require.NoError(t, r.Finish(context.Background(), "done"))

	edits := gw.CallsTo("edit")
	require.Len(t, edits, 1)
	assert.Equal(t, "done", edits[0].Text)

	// Terminal: later updates are ignored.
	r.Set("ignored")
	require.NoError(t, r.Finish(context.Background(), "again"))
	assert.Len(t, gw.CallsTo("edit"), 1)
}

func TestReporterDiscardDeletesMessage(t *testing.T) {
	gw := testutil.NewFakeGateway()
	r := newReporter(t, gw, time.Hour)

	require.NoError(t, r.Discard(context.Background()))
	require.Len(t, gw.CallsTo("delete"), 1)
	assert.Equal(t, r.Ref(), gw.CallsTo("delete")[0].Ref)
}
