// Package keywords matches free-text keywords extracted during analysis
// against the tracked-keyword registry and maintains the per-keyword counters.
package keywords

import (
	"strings"
	"unicode"
)

// OverlapThreshold is the fraction of a tracked keyword's significant words
// that must be exceeded by containment hits for rule 4 to fire. A policy
// constant, not a law; 0.5 mirrors the behavior the registry was tuned
// against (one of two significant words is not enough).
const OverlapThreshold = 0.5

// significantWordLen is the minimum length for a word to count toward the
// overlap fraction.
const significantWordLen = 2

// Normalize lowercases a keyword, strips punctuation and trims surrounding
// whitespace. Both sides of every comparison are normalized first.
func Normalize(keyword string) string {
	var b strings.Builder
	b.Grow(len(keyword))
	for _, r := range strings.ToLower(keyword) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Matches reports whether an extracted free-text keyword is considered a hit
// for a tracked keyword. Rules, in order:
//  1. exact equality after normalization;
//  2. containment in either direction;
//  3. singular/plural fold: strip one trailing "s" from each side
//     independently and re-compare;
//  4. multi-word overlap: strictly more than OverlapThreshold of the tracked
//     keyword's significant words contain or are contained by some extracted
//     word, so a two-word tracked keyword needs both words covered.
func Matches(extracted, tracked string) bool {
	e := Normalize(extracted)
	k := Normalize(tracked)
	if e == "" || k == "" {
		return false
	}

	if e == k {
		return true
	}

	if strings.Contains(e, k) || strings.Contains(k, e) {
		return true
	}

	if singularFold(e) == singularFold(k) {
		return true
	}

	return wordOverlap(e, k) > OverlapThreshold
}

// singularFold strips a single trailing "s". Each side is folded
// independently, so "rates" matches "rate" and vice versa.
func singularFold(keyword string) string {
	words := strings.Fields(keyword)
	for i, word := range words {
		if len(word) > 1 && strings.HasSuffix(word, "s") {
			words[i] = word[:len(word)-1]
		}
	}
	return strings.Join(words, " ")
}

// wordOverlap returns the fraction of tracked's significant words that have
// a containment relationship with any word of extracted.
func wordOverlap(extracted, tracked string) float64 {
	extractedWords := strings.Fields(extracted)

	var significant, matched int
	for _, tw := range strings.Fields(tracked) {
		if len(tw) <= significantWordLen {
			continue
		}
		significant++
		for _, ew := range extractedWords {
			if strings.Contains(ew, tw) || strings.Contains(tw, ew) {
				matched++
				break
			}
		}
	}

	if significant == 0 {
		return 0
	}
	return float64(matched) / float64(significant)
}
