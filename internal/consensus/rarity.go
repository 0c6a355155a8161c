package consensus

import (
	"math"

	"github.com/attic-market/appraisal/internal/model"
)

// tierScores maps each qualitative tier to its fixed numeric score on the
// 1-10 scale. The reverse mapping uses the same thresholds.
var tierScores = map[model.RarityTier]int{
	model.RarityCommon:    2,
	model.RarityUncommon:  4,
	model.RarityRare:      6,
	model.RarityVeryRare:  8,
	model.RarityUltraRare: 10,
}

// consolidateRarity averages the per-opinion tier scores, rounds to the
// nearest integer, and re-maps the rounded average back to a tier.
// Distinguishing factors accumulate as the score crosses 6 and 8.
func consolidateRarity(opinions []model.Opinion) model.RarityAssessment {
	total := 0
	counted := 0
	for _, op := range opinions {
		score, ok := tierScores[op.Rarity]
		if !ok {
			// Unrecognized tiers were supposed to be filtered by the
			// adapter; treat any stragglers as common.
			score = tierScores[model.RarityCommon]
		}
		total += score
		counted++
	}

	score := int(math.Round(float64(total) / float64(counted)))

	assessment := model.RarityAssessment{
		Score: score,
		Level: levelForScore(score),
	}
	if score > 6 {
		assessment.Factors = append(assessment.Factors, "limited production")
	}
	if score > 8 {
		assessment.Factors = append(assessment.Factors, "high collector demand")
	}
	return assessment
}

// levelForScore maps a rounded 1-10 score back to a qualitative tier using
// the tierScores thresholds.
func levelForScore(score int) model.RarityTier {
	switch {
	case score <= 2:
		return model.RarityCommon
	case score <= 4:
		return model.RarityUncommon
	case score <= 6:
		return model.RarityRare
	case score <= 8:
		return model.RarityVeryRare
	default:
		return model.RarityUltraRare
	}
}

// recommend produces rule-based next steps for the item's owner.
func recommend(opinions []model.Opinion, rarity model.RarityAssessment) []string {
	var recs []string

	if rarity.Score >= 7 {
		recs = append(recs, "seek professional authentication")
	}

	hasCondition := false
	for _, op := range opinions {
		if !op.Field(model.FieldCondition).Absent() {
			hasCondition = true
			break
		}
	}
	if !hasCondition {
		recs = append(recs, "add condition detail")
	}

	if len(opinions) < 2 {
		recs = append(recs, "collect a second opinion")
	}

	return recs
}
