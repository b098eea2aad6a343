// SPDX-License-Identifier: MIT

package title

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeriesEpisode(t *testing.T) {
	info := Parse("The.Expanse.S03E07.1080p.WEB-DL.x265.mkv")
	require.NotNil(t, info)

	assert.True(t, info.IsSeries)
	assert.Equal(t, 3, info.Season)
	assert.Equal(t, 7, info.Episode)
	assert.Equal(t, "S03E07", info.EpisodeTag)
	assert.Equal(t, "the expanse s03", info.GroupingKey)
	assert.Equal(t, "The Expanse", info.DisplayTitle)
	assert.Contains(t, info.QualityTags, "1080p")
	assert.Contains(t, info.QualityTags, "x265")
}

func TestParseMovieWithYear(t *testing.T) {
	info := Parse("Dune.Part.Two.2024.2160p.BluRay.x264-GROUP.mkv")
	require.NotNil(t, info)

	assert.False(t, info.IsSeries)
	assert.Equal(t, 2024, info.Year)
	assert.Equal(t, "dune part two", info.GroupingKey)
	assert.Equal(t, "Dune Part Two", info.DisplayTitle)
}

func TestParseRejectsSamples(t *testing.T) {
	assert.Nil(t, Parse("The.Expanse.S03E07.SAMPLE.mkv"))
	assert.Nil(t, Parse("sample.mkv"))
}

func TestParseRejectsEmptyAndJunkOnly(t *testing.T) {
	assert.Nil(t, Parse(""))
	assert.Nil(t, Parse("   "))
}

func TestParseStripsJunkWords(t *testing.T) {
	info := Parse("Some.Show.Hindi.Dubbed.Complete.S01E02.720p.WEBRip.mkv")
	require.NotNil(t, info)
	assert.Equal(t, "some show s01", info.GroupingKey)
}

func TestParseWordSeasonEpisodeForm(t *testing.T) {
	info := Parse("My Show Season 2 Episode 10 480p.mp4")
	require.NotNil(t, info)
	assert.True(t, info.IsSeries)
	assert.Equal(t, 2, info.Season)
	assert.Equal(t, 10, info.Episode)
	assert.Equal(t, "S02E10", info.EpisodeTag)
}

func TestParseSameShowDifferentEpisodesShareKey(t *testing.T) {
	a := Parse("Show.Name.S01E01.1080p.mkv")
	b := Parse("Show.Name.S01E02.1080p.mkv")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.GroupingKey, b.GroupingKey)
}

func TestParseNeverPanicsOnGarbage(t *testing.T) {
	for _, name := range []string{
		"%%%%....___",
		"@uploader_only.mkv",
		"1234567890.mkv",
		"....",
		"der.äöü.film.2020.mkv",
	} {
		assert.NotPanics(t, func() { Parse(name) }, name)
	}
}
