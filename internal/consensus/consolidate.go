// Package consensus merges a batch of expert opinions into a single
// weighted-vote result with a merged field set and a consolidated rarity
// judgment.
package consensus

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/attic-market/appraisal/internal/model"
)

// ErrNoValidOpinions is returned when consolidation is attempted on an
// empty opinion batch. It is the only failure mode of this package.
var ErrNoValidOpinions = eris.New("consensus: no valid opinions")

// Consolidate merges a non-empty batch of opinions into a ConsensusResult.
// The result is a deterministic function of the input multiset: category
// voting, field merge, and rarity averaging are all defined over the whole
// batch, so completion order of the upstream queries cannot change it.
// Ties in the category vote break toward the category seen first in input
// order.
func Consolidate(opinions []model.Opinion) (*model.ConsensusResult, error) {
	if len(opinions) == 0 {
		return nil, ErrNoValidOpinions
	}

	category, agreement := voteCategory(opinions)

	result := &model.ConsensusResult{
		Category:     category,
		Fields:       mergeFields(opinions),
		AgreementPct: agreement,
		Rarity:       consolidateRarity(opinions),
		Opinions:     opinions,
	}
	result.Recommendations = recommend(opinions, result.Rarity)

	return result, nil
}

// voteCategory runs the confidence-weighted category vote and computes the
// agreement percentage for the winner. A single opinion always agrees with
// itself at 100%.
func voteCategory(opinions []model.Opinion) (model.Category, float64) {
	weights := make(map[model.Category]float64)
	firstSeen := make(map[model.Category]int)

	for i, op := range opinions {
		if _, ok := firstSeen[op.Category]; !ok {
			firstSeen[op.Category] = i
		}
		weights[op.Category] += op.Confidence
	}

	// Seed with the first opinion's category so an all-zero-weight batch
	// still breaks toward first-seen instead of the zero value.
	winner := opinions[0].Category
	best := weights[winner]
	for cat, w := range weights {
		switch {
		case w > best:
			winner, best = cat, w
		case w == best && firstSeen[cat] < firstSeen[winner]:
			winner = cat
		}
	}

	if len(opinions) == 1 {
		return winner, 100
	}

	matching := 0
	for _, op := range opinions {
		if op.Category == winner {
			matching++
		}
	}
	return winner, float64(matching) / float64(len(opinions)) * 100
}

// singleValuedFields are merged by taking the value from the most
// confident opinion that provided one. Year is special-cased below.
var singleValuedFields = []string{
	model.FieldTitle,
	model.FieldAuthor,
	model.FieldYear,
	model.FieldPublisher,
	model.FieldFormat,
	model.FieldCondition,
	model.FieldIdentifier,
}

func mergeFields(opinions []model.Opinion) map[string]model.FieldValue {
	merged := make(map[string]model.FieldValue)

	for _, key := range singleValuedFields {
		var bestVal model.FieldValue
		bestConf := -1.0
		provided := 0
		for _, op := range opinions {
			v := op.Field(key)
			if v.Absent() {
				continue
			}
			provided++
			if op.Confidence > bestConf {
				bestConf = op.Confidence
				bestVal = v
			}
		}
		if provided == 0 {
			continue
		}
		merged[key] = bestVal
	}

	// Year disagreements resolve to the median of all provided years, not
	// the most confident one, so a single wrong expert cannot skew it.
	if years := providedYears(opinions); len(years) > 1 && !allEqual(years) {
		merged[model.FieldYear] = model.NumberField(float64(medianYear(years)))
	}

	return merged
}

func providedYears(opinions []model.Opinion) []int {
	var years []int
	for _, op := range opinions {
		if y, ok := op.Field(model.FieldYear).Int(); ok && y != 0 {
			years = append(years, y)
		}
	}
	return years
}

func allEqual(years []int) bool {
	for _, y := range years[1:] {
		if y != years[0] {
			return false
		}
	}
	return true
}

// medianYear picks the middle provided year; even counts take the lower
// middle so the result is always a year some expert actually reported.
func medianYear(years []int) int {
	sorted := make([]int, len(years))
	copy(sorted, years)
	sort.Ints(sorted)
	return sorted[(len(sorted)-1)/2]
}
