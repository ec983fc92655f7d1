package services

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// Similarity acceptance thresholds. Domain heuristics, kept tunable.
var (
	FuzzyMinRatio        = 0.90
	FuzzyMinGap          = 0.05
	FuzzySuperstringMin  = 0.92
	ConfNormSameDossier  = 0.95
	ConfNormCrossDossier = 0.90
	ConfPipeSameDossier  = 0.95
	ConfPipeCrossDossier = 0.90
	ConfKombiSameDossier = 0.90
	ConfKombiCrossDoss   = 0.85
	ConfBrandSameDossier = 0.90
	ConfBrandCrossDoss   = 0.85
)

var reWhitespace = regexp.MustCompile(`\s+`)

// NormalizeName prepares an indication name for comparison: NFC, collapsed
// whitespace, trailing colon stripped, case-folded.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	s := norm.NFC.String(name)
	s = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ":"))
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

// SimilarityRatio is a [0,1] string similarity based on edit distance.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// BestFuzzyMatch scores the normalized segment name against every candidate
// name and applies the acceptance rule: best ratio >= FuzzyMinRatio and
// either a gap of FuzzyMinGap to the runner-up, or a prefix/superstring
// relation with ratio >= FuzzySuperstringMin. Returns the winning candidate
// index and its ratio, or (-1, 0) if nothing qualifies.
func BestFuzzyMatch(name string, candidates []string) (int, float64) {
	if name == "" || len(candidates) == 0 {
		return -1, 0
	}
	best := -1
	bestRatio, secondRatio := 0.0, 0.0
	for i, cand := range candidates {
		r := SimilarityRatio(name, cand)
		if r > bestRatio {
			secondRatio = bestRatio
			best, bestRatio = i, r
		} else if r > secondRatio {
			secondRatio = r
		}
	}
	if best < 0 || bestRatio < FuzzyMinRatio {
		return -1, 0
	}
	if bestRatio-secondRatio >= FuzzyMinGap {
		return best, bestRatio
	}
	cand := candidates[best]
	superstring := strings.HasPrefix(cand, name) || strings.HasSuffix(cand, name) ||
		strings.HasPrefix(name, cand) || strings.HasSuffix(name, cand)
	if superstring && bestRatio >= FuzzySuperstringMin {
		return best, bestRatio
	}
	return -1, 0
}
