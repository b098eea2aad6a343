// SPDX-License-Identifier: MIT

// Package similarity scores how closely two grouping keys match.
//
// Scores are integers in [0,100]. The engine combines a token-set ratio
// (robust against word order and repeated qualifiers) with a partial ratio
// (robust against one key being a strict subset of the other).
package similarity

import (
	"sort"
	"strings"
)

// Score returns the token-set ratio between two keys, 0..100.
func Score(a, b string) int {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	var inter, diffA, diffB []string
	for tok := range tokensA {
		if _, ok := tokensB[tok]; ok {
			inter = append(inter, tok)
		} else {
			diffA = append(diffA, tok)
		}
	}
	for tok := range tokensB {
		if _, ok := tokensA[tok]; !ok {
			diffB = append(diffB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(diffA)
	sort.Strings(diffB)

	base := strings.Join(inter, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(diffA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(diffB, " "))

	best := ratio(base, withA)
	if r := ratio(base, withB); r > best {
		best = r
	}
	if r := ratio(withA, withB); r > best {
		best = r
	}
	return best
}

// PartialScore returns the best ratio of the shorter key against any
// equally sized window of the longer key, 0..100. It catches keys that are
// strict supersets of one another ("show name" vs "show name extended").
func PartialScore(a, b string) int {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}

	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := ratio(short, long[i:i+len(short)]); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// ratio is the classic Levenshtein similarity: (len(a)+len(b)-dist) scaled
// to 0..100.
func ratio(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	d := levenshtein(a, b)
	r := (total - 2*d) * 100 / total
	if r < 0 {
		r = 0
	}
	return r
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
