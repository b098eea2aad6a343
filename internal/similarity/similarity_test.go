// SPDX-License-Identifier: MIT

package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreIdentity(t *testing.T) {
	assert.Equal(t, 100, Score("the expanse s03", "the expanse s03"))
	assert.Equal(t, 100, Score("The Expanse S03", "the  expanse s03"))
}

func TestScoreWordOrderInsensitive(t *testing.T) {
	assert.Equal(t, 100, Score("expanse the s03", "the expanse s03"))
}

func TestScoreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"breaking bad s01", "breaking bad s02"},
		{"dune part two", "dune"},
		{"a", "completely different"},
	}
	for _, p := range pairs {
		assert.Equal(t, Score(p[0], p[1]), Score(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestScoreRange(t *testing.T) {
	cases := [][2]string{
		{"", ""}, {"x", ""}, {"abc", "xyz"}, {"show name", "show name s01"},
	}
	for _, c := range cases {
		s := Score(c[0], c[1])
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 100)
	}
}

func TestScoreSimilarTitlesAboveThreshold(t *testing.T) {
	// Same show, small variation: should clear a 90 threshold.
	assert.GreaterOrEqual(t, Score("the expanse s03", "the expanse s03"), 90)
	assert.GreaterOrEqual(t, Score("some show s01", "some  Show s01"), 90)
}

func TestScoreDifferentShowsBelowThreshold(t *testing.T) {
	assert.Less(t, Score("the expanse s03", "breaking bad s01"), 90)
	assert.Less(t, Score("dark s01", "the office s01"), 90)
}

func TestPartialScoreSubset(t *testing.T) {
	// A key embedded in a longer key scores 100 partially.
	assert.Equal(t, 100, PartialScore("show name", "show name extended edition"))
	assert.Equal(t, 100, PartialScore("show name extended edition", "show name"))
}

func TestPartialScoreEmpty(t *testing.T) {
	assert.Equal(t, 0, PartialScore("", "anything"))
	assert.Equal(t, 100, PartialScore("", ""))
}
