package model

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// RarityTier is an expert's qualitative rarity judgment, ordered from
// most to least common.
type RarityTier string

const (
	RarityCommon    RarityTier = "common"
	RarityUncommon  RarityTier = "uncommon"
	RarityRare      RarityTier = "rare"
	RarityVeryRare  RarityTier = "very_rare"
	RarityUltraRare RarityTier = "ultra_rare"
)

// rarityOrder maps tiers to their position in the ordered enumeration.
var rarityOrder = map[RarityTier]int{
	RarityCommon:    0,
	RarityUncommon:  1,
	RarityRare:      2,
	RarityVeryRare:  3,
	RarityUltraRare: 4,
}

// Valid reports whether t is one of the defined tiers.
func (t RarityTier) Valid() bool {
	_, ok := rarityOrder[t]
	return ok
}

// ParseRarityTier validates a raw tier string from an expert response.
func ParseRarityTier(s string) (RarityTier, error) {
	t := RarityTier(s)
	if !t.Valid() {
		return "", eris.Errorf("model: unknown rarity tier %q", s)
	}
	return t, nil
}

// FieldKind tags which variant of a FieldValue is populated.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldNumber FieldKind = "number"
	FieldAbsent FieldKind = "absent"
)

// FieldValue is a closed tagged value for extracted item fields. Experts
// return free-form JSON; anything that does not parse into one of these
// variants is quarantined at the adapter boundary rather than passed
// through as an untyped blob.
type FieldValue struct {
	Kind FieldKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
}

// StringField builds a string-valued field. Empty strings become absent.
func StringField(s string) FieldValue {
	if s == "" {
		return AbsentField()
	}
	return FieldValue{Kind: FieldString, Str: s}
}

// NumberField builds a numeric field.
func NumberField(n float64) FieldValue {
	return FieldValue{Kind: FieldNumber, Num: n}
}

// AbsentField marks a field the expert could not determine.
func AbsentField() FieldValue {
	return FieldValue{Kind: FieldAbsent}
}

// Absent reports whether the field carries no value.
func (v FieldValue) Absent() bool {
	return v.Kind == FieldAbsent || v.Kind == ""
}

// Text renders the field for display and comparison. Numbers use minimal
// decimal notation (years come back as "1997", not "1997.000000").
func (v FieldValue) Text() string {
	switch v.Kind {
	case FieldString:
		return v.Str
	case FieldNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Int returns the numeric value truncated to int, and whether the field
// held a number.
func (v FieldValue) Int() (int, bool) {
	if v.Kind != FieldNumber {
		return 0, false
	}
	return int(v.Num), true
}

// ParseFieldValue converts a raw JSON value from an expert response into a
// FieldValue. Unsupported shapes (objects, arrays, booleans) are rejected.
func ParseFieldValue(raw any) (FieldValue, error) {
	switch val := raw.(type) {
	case nil:
		return AbsentField(), nil
	case string:
		return StringField(val), nil
	case float64:
		return NumberField(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return FieldValue{}, eris.Wrapf(err, "model: parse field number %q", val.String())
		}
		return NumberField(f), nil
	default:
		return FieldValue{}, eris.Errorf("model: unsupported field value type %T", raw)
	}
}

// Well-known field keys used by experts and the consensus merge.
const (
	FieldTitle      = "title"
	FieldAuthor     = "author"
	FieldYear       = "year"
	FieldPublisher  = "publisher"
	FieldFormat     = "format"
	FieldCondition  = "condition"
	FieldIdentifier = "identifier"
)

// Opinion is one expert's structured read of an item. Immutable once
// produced; owned by the orchestrator for the duration of one evaluation.
type Opinion struct {
	Source        string                `json:"source"`
	Category      Category              `json:"category"`
	Fields        map[string]FieldValue `json:"fields"`
	Confidence    float64               `json:"confidence"` // [0,1]
	Rarity        RarityTier            `json:"rarity"`
	SearchPhrases []string              `json:"search_phrases,omitempty"`
	Latency       time.Duration         `json:"latency_ns"`
}

// Field returns the named field, or an absent value if the expert did not
// provide it.
func (o Opinion) Field(key string) FieldValue {
	if o.Fields == nil {
		return AbsentField()
	}
	v, ok := o.Fields[key]
	if !ok {
		return AbsentField()
	}
	return v
}

// RarityAssessment is the consolidated rarity judgment across opinions.
type RarityAssessment struct {
	Score   int        `json:"score"` // 1-10
	Level   RarityTier `json:"level"`
	Factors []string   `json:"factors,omitempty"`
}

// ConsensusResult is the merged, weighted-vote outcome across a batch of
// opinions. Created once per evaluation; never mutated after construction.
type ConsensusResult struct {
	Category        Category              `json:"category"`
	Fields          map[string]FieldValue `json:"fields"`
	AgreementPct    float64               `json:"agreement_pct"` // [0,100]
	Rarity          RarityAssessment      `json:"rarity"`
	Recommendations []string              `json:"recommendations,omitempty"`
	Opinions        []Opinion             `json:"opinions"` // full inputs, for audit
}
