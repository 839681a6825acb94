// Package similarity provides pure string-similarity scoring for project
// name matching.
//
// Scores are in [0, 1]: 1.0 means the normalized strings are identical,
// values near 1.0 mean a small number of character edits separate them,
// and values near 0 mean the strings are unrelated. Scoring is reflexive
// and symmetric, so it is safe to use for ranking candidates from either
// direction.
package similarity

import "strings"

// singleEditScore is the minimum score for strings one edit apart.
// Length normalization alone drops a single edit below the useful
// range for names of six characters or fewer.
const singleEditScore = 0.9

// Score returns the similarity between a and b in [0, 1].
//
// Both inputs are normalized (case-folded, whitespace-trimmed) before
// comparison. Identical normalized strings score exactly 1.0; otherwise
// the score is 1 - d/maxLen where d is the Levenshtein distance between
// the normalized strings, floored at singleEditScore when d is 1.
// Single-edit variants of project names score above 0.85 regardless of
// length, unrelated strings below 0.3.
func Score(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	ra := []rune(na)
	rb := []rune(nb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}

	d := levenshtein(ra, rb)
	score := 1.0 - float64(d)/float64(maxLen)
	if d == 1 && score < singleEditScore {
		score = singleEditScore
	}
	return score
}

// Normalize case-folds and trims a string for comparison. Interior
// whitespace runs collapse to a single space so declared names and
// directory basenames compare consistently.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// levenshtein computes the edit distance between two rune slices using
// two rolling rows.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
