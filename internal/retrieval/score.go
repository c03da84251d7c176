package retrieval

import (
	"math"
	"strings"
	"unicode"
)

// cosineSimilarity computes 1 - cosine_distance in double precision,
// clamped to [0, 1] to absorb floating-point drift at the boundary.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// tokenize lowercases and splits on anything that is not a letter or
// digit, mirroring what the full-text index does to the content.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// lexicalScore ranks content against query terms by coverage (how many
// distinct terms appear) weighted by a saturating term frequency, so a
// chunk matching all terms once beats a chunk repeating one term.
func lexicalScore(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	counts := make(map[string]int)
	for _, tok := range tokenize(content) {
		counts[tok]++
	}

	matched := 0
	var tf float64
	seen := make(map[string]bool, len(queryTerms))
	distinct := 0
	for _, term := range queryTerms {
		if seen[term] {
			continue
		}
		seen[term] = true
		distinct++
		if n := counts[term]; n > 0 {
			matched++
			tf += float64(n)
		}
	}
	if matched == 0 {
		return 0
	}
	coverage := float64(matched) / float64(distinct)
	return coverage * (tf / (tf + 1))
}
