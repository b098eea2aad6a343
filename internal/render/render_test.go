// SPDX-License-Identifier: MIT

package render

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/store"
	"github.com/telepost-bot/telepost/internal/title"
)

func mkFile(t *testing.T, name string, size int64) *collector.File {
	t.Helper()
	info := title.Parse(name)
	require.NotNil(t, info)
	return &collector.File{
		Record: &store.FileRecord{
			OwnerID:      1,
			FileUniqueID: "uid-" + name,
			FileName:     name,
			FileSize:     size,
		},
		Title: info,
	}
}

func TestNaturalLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"S01E02", "S01E10", true},
		{"S01E10", "S01E02", false},
		{"S01E02", "S01E02", false},
		{"S01E09", "S01E10", true},
		{"S02E01", "S01E10", false},
		{"e2", "E10", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, naturalLess(c.a, c.b), "%q < %q", c.a, c.b)
	}
}

func TestRenderSortsEpisodesNaturally(t *testing.T) {
	r := &Renderer{BaseURL: "https://example.com"}
	u := store.NewUser(1)
	u.ShortenerEnabled = false

	files := []*collector.File{
		mkFile(t, "Some.Show.S01E10.720p.mkv", 100),
		mkFile(t, "Some.Show.S01E02.720p.mkv", 100),
		mkFile(t, "Some.Show.S01E01.720p.mkv", 100),
	}
	posts := r.Render(context.Background(), u, files)
	require.Len(t, posts, 1)

	text := posts[0].Text
	i1 := strings.Index(text, "uid-Some.Show.S01E01")
	i2 := strings.Index(text, "uid-Some.Show.S01E02")
	i10 := strings.Index(text, "uid-Some.Show.S01E10")
	require.True(t, i1 >= 0 && i2 >= 0 && i10 >= 0)
	assert.Less(t, i1, i2)
	assert.Less(t, i2, i10)
}

func TestRenderPaginatesLongBatches(t *testing.T) {
	r := &Renderer{BaseURL: "https://example.com"}
	u := store.NewUser(1)

	var files []*collector.File
	for i := 1; i <= 60; i++ {
		files = append(files, mkFile(t, fmt.Sprintf("Some.Show.S01E%02d.720p.x265.mkv", i), 1<<30))
	}
	posts := r.Render(context.Background(), u, files)
	require.Greater(t, len(posts), 1)

	for i, p := range posts {
		assert.LessOrEqual(t, len(p.Text), textLimit, "part %d over limit", i)
		assert.Contains(t, p.Text, fmt.Sprintf("Part %d/%d", i+1, len(posts)))
	}
}

type staticPosters struct{ url string }

func (s staticPosters) Lookup(context.Context, string, int) string { return s.url }

func TestRenderPosterOnFirstPartOnly(t *testing.T) {
	r := &Renderer{
		BaseURL: "https://example.com",
		Posters: staticPosters{url: "https://img.example.com/p.jpg"},
	}
	u := store.NewUser(1)
	require.True(t, u.ShowPoster)

	var files []*collector.File
	for i := 1; i <= 40; i++ {
		files = append(files, mkFile(t, fmt.Sprintf("Some.Show.S01E%02d.1080p.mkv", i), 1<<30))
	}
	posts := r.Render(context.Background(), u, files)
	require.Greater(t, len(posts), 1)

	assert.Equal(t, "https://img.example.com/p.jpg", posts[0].PhotoURL)
	assert.LessOrEqual(t, len(posts[0].Text), photoCaptionLimit)
	for _, p := range posts[1:] {
		assert.Empty(t, p.PhotoURL)
	}
}

type upperShortener struct{}

func (upperShortener) Shorten(_ context.Context, _ *store.User, link string) string {
	return "https://sho.rt/" + strings.ToUpper(link[len(link)-4:])
}

func TestRenderAppliesShortener(t *testing.T) {
	r := &Renderer{BaseURL: "https://example.com", Shortener: upperShortener{}}
	u := store.NewUser(1)
	require.True(t, u.ShortenerEnabled)

	posts := r.Render(context.Background(), u, []*collector.File{
		mkFile(t, "Some.Show.S01E01.mkv", 100),
	})
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Text, "https://sho.rt/")
	assert.NotContains(t, posts[0].Text, "example.com/get/")
}

func TestRenderFooterButtonsOnLastPart(t *testing.T) {
	r := &Renderer{BaseURL: "https://example.com"}
	u := store.NewUser(1)
	u.HowToDownloadLink = "https://example.com/howto"
	u.FooterButtons = []store.FooterButton{{Name: "Updates", URL: "https://t.me/updates"}}

	var files []*collector.File
	for i := 1; i <= 60; i++ {
		files = append(files, mkFile(t, fmt.Sprintf("Some.Show.S01E%02d.720p.x265.mkv", i), 1<<30))
	}
	posts := r.Render(context.Background(), u, files)
	require.Greater(t, len(posts), 1)

	for _, p := range posts[:len(posts)-1] {
		assert.Empty(t, p.Buttons)
	}
	last := posts[len(posts)-1]
	require.Len(t, last.Buttons, 2)
	assert.Equal(t, "Updates", last.Buttons[0].Label)
	assert.Equal(t, "How to Download", last.Buttons[1].Label)
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1 << 20, "5.00 MB"},
		{3 * 1 << 30, "3.00 GB"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatBytes(c.in))
	}
}
