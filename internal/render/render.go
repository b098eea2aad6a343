// SPDX-License-Identifier: MIT

// Package render turns a finalized batch of files into the posts published
// to the owner's channel: sorted entries, public links, captions paginated
// against the platform's length limits.
package render

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/gateway"
	"github.com/telepost-bot/telepost/internal/store"
)

// Platform caption limits. A post with a photo is capped at the photo
// caption limit, text-only posts at the message limit.
const (
	photoCaptionLimit = 1024
	textLimit         = 4096
)

// partReserve keeps room in the header for a " • Part i/N" suffix that is
// only known after packing.
const partReserve = len(" • Part 88/88")

const decoLine = "▰▱▰▱▰▱▰▱▰▱▰▱"

// LinkShortener rewrites a public link per the owner's settings. It never
// fails: on any trouble the original link comes back.
type LinkShortener interface {
	Shorten(ctx context.Context, u *store.User, link string) string
}

// PosterSource resolves artwork for a title. Empty string means no poster.
type PosterSource interface {
	Lookup(ctx context.Context, title string, year int) string
}

// Renderer builds post payloads. Shortener and Posters may be nil.
type Renderer struct {
	BaseURL   string
	Shortener LinkShortener
	Posters   PosterSource
}

// Render produces the ordered posts for one batch. Files are sorted
// naturally by episode, the caption is split into parts when it outgrows the
// platform limit, and the poster (if any) rides on the first part only.
func (r *Renderer) Render(ctx context.Context, u *store.User, files []*collector.File) []gateway.Payload {
	if len(files) == 0 {
		return nil
	}

	sorted := make([]*collector.File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return naturalLess(sortKey(sorted[i]), sortKey(sorted[j]))
	})

	line := titleLine(sorted[0])
	entries := make([]string, len(sorted))
	for i, f := range sorted {
		entries[i] = r.entry(ctx, u, f)
	}

	var posterURL string
	if u.ShowPoster && r.Posters != nil {
		info := sorted[0].Title
		posterURL = r.Posters.Lookup(ctx, info.DisplayTitle, info.Year)
	}

	headerLen := len(header(line, "")) + partReserve
	parts := pack(entries, headerLen, posterURL != "")

	buttons := footerButtons(u)
	posts := make([]gateway.Payload, len(parts))
	for i, body := range parts {
		suffix := ""
		if len(parts) > 1 {
			suffix = fmt.Sprintf(" • Part %d/%d", i+1, len(parts))
		}
		p := gateway.Payload{
			Text:              header(line, suffix) + body,
			DisableWebPreview: true,
		}
		if i == 0 {
			p.PhotoURL = posterURL
		}
		if i == len(parts)-1 {
			p.Buttons = buttons
		}
		posts[i] = p
	}
	return posts
}

func sortKey(f *collector.File) string {
	if f.Title.EpisodeTag != "" {
		return f.Title.EpisodeTag
	}
	return f.Record.FileName
}

func header(titleLine, suffix string) string {
	return decoLine + "\n🎬 <b>" + titleLine + suffix + "</b>\n" + decoLine + "\n\n"
}

func titleLine(f *collector.File) string {
	info := f.Title
	line := html.EscapeString(info.DisplayTitle)
	if info.Year != 0 {
		line += fmt.Sprintf(" (%d)", info.Year)
	}
	return line
}

// entry renders one file line pair: label, then the public link and size.
func (r *Renderer) entry(ctx context.Context, u *store.User, f *collector.File) string {
	label := f.Title.QualityTags
	if label == "" {
		label = f.Title.EpisodeTag
	}
	if label == "" {
		label = f.Record.FileName
	}

	link := fmt.Sprintf("%s/get/%d_%s", strings.TrimRight(r.BaseURL, "/"), f.Record.OwnerID, f.Record.FileUniqueID)
	if u.ShortenerEnabled && r.Shortener != nil {
		link = r.Shortener.Shorten(ctx, u, link)
	}

	return fmt.Sprintf("📁 <b>%s</b>\n➤ <a href=%q>Click Here</a> [%s]\n\n",
		html.EscapeString(label), link, formatBytes(f.Record.FileSize))
}

// pack distributes entries over as few parts as the caption limits allow,
// never splitting a single entry.
func pack(entries []string, headerLen int, hasPoster bool) []string {
	limit := func(part int) int {
		if part == 0 && hasPoster {
			return photoCaptionLimit - headerLen
		}
		return textLimit - headerLen
	}

	var parts []string
	var cur strings.Builder
	for _, e := range entries {
		if cur.Len() > 0 && cur.Len()+len(e) > limit(len(parts)) {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
		cur.WriteString(e)
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.TrimRight(cur.String(), "\n"))
	}
	return parts
}

func footerButtons(u *store.User) []gateway.Button {
	var buttons []gateway.Button
	for _, b := range u.FooterButtons {
		buttons = append(buttons, gateway.Button{Label: b.Name, URL: b.URL})
	}
	if u.HowToDownloadLink != "" {
		buttons = append(buttons, gateway.Button{Label: "How to Download", URL: u.HowToDownloadLink})
	}
	return buttons
}

// formatBytes renders a human size with two decimals above the byte range.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < len(units)-1; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %s", float64(n)/float64(div), units[exp])
}
