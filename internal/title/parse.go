// SPDX-License-Identifier: MIT

// Package title derives grouping metadata from release filenames.
//
// The parser is deliberately regex-based and self-contained: it tolerates
// arbitrary free text, never fails, and returns nil only for files that
// should not be collected at all (samples, unusable names).
package title

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Info is the parsed, immutable description of one filename.
type Info struct {
	GroupingKey  string // normalized lower-case title (+ season for series)
	DisplayTitle string // title-cased batch title for captions
	Year         int    // 0 if none detected
	IsSeries     bool
	Season       int    // 0 if not a series
	Episode      int    // 0 if not a series
	EpisodeTag   string // "S01E02" style, "" for movies
	QualityTags  string // " | "-joined sorted tags, may be ""
}

var (
	extRe      = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|webm|mov|flv|wmv|m4v|ts)$`)
	qualityRe  = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|540p|WEB-?DL|WEBRip|BluRay|HDTC|HDTS|HDRip|CAMRip|x264|x265|HEVC|AAC|10bit|Dual[\s-]?Audio)\b`)
	seasonEpRe = regexp.MustCompile(`(?i)\bS(\d{1,2})[\s.]?E(\d{1,3})\b`)
	wordSERe   = regexp.MustCompile(`(?i)\bseason[\s.]*(\d{1,2})\b[\s.]*\bepisode[\s.]*(\d{1,3})\b`)
	yearRe     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	bracketRe  = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)
	handleRe   = regexp.MustCompile(`@\S+`)
	digitsRe   = regexp.MustCompile(`\d+`)
	nonAlphaRe = regexp.MustCompile(`[^a-z\s]`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

// junkWords are language markers, rip-group tags and filler terms stripped
// from titles before grouping. Matching is whole-word, case-insensitive.
var junkWords = []string{
	"hindi", "english", "eng", "tamil", "telugu", "malayalam", "kannada",
	"bengali", "marathi", "gujarati", "punjabi", "urdu", "nepali", "spanish",
	"chinese", "korean", "japanese", "dual audio", "multi audio", "org",
	"original", "hindi dubbed", "dubbed", "eng sub", "dub", "subs", "tam", "tel", "hin",
	"uncut", "unrated", "extended", "remastered", "final", "true", "proper",
	"hq", "line", "full movie", "full video", "watch online", "download",
	"complete", "combined", "web series", "completed", "esubs", "esub",
	"msubs", "hevc", "ep", "s0",
}

var junkRe = buildJunkRe()

func buildJunkRe() *regexp.Regexp {
	escaped := make([]string, len(junkWords))
	for i, w := range junkWords {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

var titleCaser = cases.Title(language.English)

// Parse extracts grouping metadata from a filename. It returns nil when the
// file should be skipped entirely (sample files, names that clean down to
// nothing).
func Parse(filename string) *Info {
	if strings.TrimSpace(filename) == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(filename), "sample") {
		return nil
	}

	name := extRe.ReplaceAllString(filename, "")
	name = strings.NewReplacer(".", " ", "_", " ").Replace(name)

	info := &Info{}

	// Quality tags: dedupe, normalize spacing, sort for stable output.
	if tags := qualityRe.FindAllString(name, -1); len(tags) > 0 {
		seen := map[string]string{}
		for _, tag := range tags {
			norm := strings.ReplaceAll(tag, " ", "")
			seen[strings.ToLower(norm)] = norm
		}
		keys := make([]string, 0, len(seen))
		for k := range seen {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, seen[k])
		}
		info.QualityTags = strings.Join(parts, " | ")
	}

	// Series markers. The marker also bounds the title text.
	titleEnd := len(name)
	if m := seasonEpRe.FindStringSubmatchIndex(name); m != nil {
		info.IsSeries = true
		info.Season, _ = strconv.Atoi(name[m[2]:m[3]])
		info.Episode, _ = strconv.Atoi(name[m[4]:m[5]])
		titleEnd = m[0]
	} else if m := wordSERe.FindStringSubmatchIndex(name); m != nil {
		info.IsSeries = true
		info.Season, _ = strconv.Atoi(name[m[2]:m[3]])
		info.Episode, _ = strconv.Atoi(name[m[4]:m[5]])
		titleEnd = m[0]
	}
	if info.IsSeries {
		info.EpisodeTag = fmt.Sprintf("S%02dE%02d", info.Season, info.Episode)
	}

	// Year, if it appears before any series marker, also bounds the title.
	if m := yearRe.FindStringIndex(name); m != nil {
		info.Year, _ = strconv.Atoi(name[m[0]:m[1]])
		if m[0] < titleEnd {
			titleEnd = m[0]
		}
	}

	base := strings.TrimSpace(name[:titleEnd])
	if base == "" {
		base = strings.TrimSpace(name)
	}

	cleaned := cleanTitle(base)
	if len(cleaned) < 2 {
		// Cleaning ate everything; fall back to the raw base text.
		cleaned = strings.ToLower(spacesRe.ReplaceAllString(base, " "))
		cleaned = strings.TrimSpace(cleaned)
	}
	if len(cleaned) < 2 {
		return nil
	}

	info.DisplayTitle = titleCaser.String(cleaned)
	info.GroupingKey = cleaned
	if info.IsSeries {
		info.GroupingKey = fmt.Sprintf("%s s%02d", cleaned, info.Season)
	}
	return info
}

// cleanTitle strips junk words, bracketed runs, uploader handles, digits and
// punctuation, leaving a lower-case space-separated title.
func cleanTitle(s string) string {
	s = strings.ToLower(s)
	s = bracketRe.ReplaceAllString(s, "")
	s = handleRe.ReplaceAllString(s, "")
	s = junkRe.ReplaceAllString(s, "")
	s = digitsRe.ReplaceAllString(s, "")
	s = nonAlphaRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
