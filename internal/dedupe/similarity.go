package dedupe

import (
	"github.com/agext/levenshtein"

	"github.com/attic-market/appraisal/internal/model"
)

// DefaultThreshold is the similarity threshold used when callers pass 0.
const DefaultThreshold = 0.85

// exactTitleThreshold short-circuits a pair to duplicate when the titles
// alone are this similar, regardless of the other fields.
const exactTitleThreshold = 0.95

// stringSimilarity is 1 - editDistance/maxLen over normalized inputs.
func stringSimilarity(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == nb {
		return 1
	}
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.Distance(na, nb, nil)
	return 1 - float64(dist)/float64(maxLen)
}

// yearSimilarity scores exact matches 1.0, off-by-one 0.5 (catalogs often
// disagree between printing and copyright year), anything else 0.
func yearSimilarity(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0
	}
}

// isDuplicate judges whether two items refer to the same physical item at
// the given threshold. Both titles must be present; the title gate runs
// first, then the remaining fields vote into a weighted average.
func isDuplicate(a, b model.Item, threshold float64) bool {
	if a.Title == "" || b.Title == "" {
		return false
	}

	titleSim := stringSimilarity(a.Title, b.Title)
	if titleSim < threshold {
		return false
	}
	if titleSim >= exactTitleThreshold {
		return true
	}

	score := titleSim
	criteria := 1

	if a.Year != 0 && b.Year != 0 {
		score += yearSimilarity(a.Year, b.Year)
		criteria++
	}
	if a.Author != "" && b.Author != "" {
		score += stringSimilarity(a.Author, b.Author)
		criteria++
	}
	if a.Publisher != "" && b.Publisher != "" {
		score += stringSimilarity(a.Publisher, b.Publisher)
		criteria++
	}

	return score/float64(criteria) >= threshold
}
