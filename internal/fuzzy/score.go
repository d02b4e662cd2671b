// Package fuzzy scores the similarity of two counterparty names on a 0-100
// scale. It is deliberately cheap: containment and word overlap cover the
// usual "Janssens Jan BVBA" vs "Jan Janssens" cases, with an edit-distance
// fallback for names that do not split into words.
package fuzzy

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Names longer than this skip the edit-distance fallback and score 0.
const maxDistanceLen = 100

// Score returns a 0-100 similarity between two free-text names. Empty input
// on either side scores 0. The first applicable rule wins: exact match after
// normalization, containment, word-set overlap, edit distance.
func Score(a, b string) int {
	na := normalize(a)
	nb := normalize(b)
	if na == "" || nb == "" {
		return 0
	}

	if na == nb {
		return 100
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		la := utf8.RuneCountInString(na)
		lb := utf8.RuneCountInString(nb)
		shorter, longer := la, lb
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return int(math.Round(float64(shorter) / float64(longer) * 100))
	}

	wordsA := strings.Fields(na)
	wordsB := strings.Fields(nb)
	if len(wordsA) > 0 && len(wordsB) > 0 {
		return wordOverlapScore(wordsA, wordsB)
	}

	// Unreachable today: normalize leaves any non-empty string with at least
	// one field, so the word-overlap rule above always applies first. Kept as
	// the contract's last resort should normalization ever strip punctuation
	// or split on more than whitespace.
	return distanceScore(na, nb)
}

// normalize lowercases, trims, and collapses internal whitespace runs.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// wordOverlapScore is the Jaccard index of the word sets, boosted by 1.3 when
// the names share a word longer than three characters (short tokens such as
// "de" or "nv" are weak evidence).
func wordOverlapScore(wordsA, wordsB []string) int {
	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	common := 0
	significant := false
	for w := range setA {
		if _, ok := setB[w]; ok {
			common++
			if utf8.RuneCountInString(w) > 3 {
				significant = true
			}
		}
	}

	union := len(setA) + len(setB) - common
	score := float64(common) / float64(union) * 100
	if significant {
		score = math.Min(100, score*1.3)
	}
	return int(score)
}

func distanceScore(a, b string) int {
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la > maxDistanceLen || lb > maxDistanceLen {
		return 0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(float64(maxLen-dist) / float64(maxLen) * 100))
}
