package experts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attic-market/appraisal/internal/model"
)

func TestParseOpinion_CleanJSON(t *testing.T) {
	text := `{
		"category": "Books",
		"confidence": 0.85,
		"rarity": "rare",
		"fields": {"title": "The Hobbit", "year": 1937, "author": "J.R.R. Tolkien"},
		"search_phrases": ["hobbit first edition 1937"]
	}`

	op, err := parseOpinion("claude-sonnet", text)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", op.Source)
	assert.Equal(t, model.CategoryBooks, op.Category)
	assert.Equal(t, 0.85, op.Confidence)
	assert.Equal(t, model.RarityRare, op.Rarity)
	assert.Equal(t, "The Hobbit", op.Field(model.FieldTitle).Text())
	y, ok := op.Field(model.FieldYear).Int()
	require.True(t, ok)
	assert.Equal(t, 1937, y)
	assert.Equal(t, []string{"hobbit first edition 1937"}, op.SearchPhrases)
}

func TestParseOpinion_MarkdownFences(t *testing.T) {
	text := "```json\n{\"category\": \"Music\", \"confidence\": 0.7, \"rarity\": \"common\", \"fields\": {}}\n```"

	op, err := parseOpinion("e", text)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryMusic, op.Category)
}

func TestParseOpinion_ProseAroundJSON(t *testing.T) {
	text := `Here is my assessment:
{"category": "Cards", "confidence": 0.6, "rarity": "uncommon", "fields": {}}
Let me know if you need more detail.`

	op, err := parseOpinion("e", text)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryCards, op.Category)
}

func TestParseOpinion_NotJSON(t *testing.T) {
	_, err := parseOpinion("e", "I think this is a rare book worth a lot.")
	assert.ErrorIs(t, err, ErrMalformedExpertResponse)
}

func TestParseOpinion_MissingCategory(t *testing.T) {
	_, err := parseOpinion("e", `{"confidence": 0.5, "rarity": "common"}`)
	assert.ErrorIs(t, err, ErrMalformedExpertResponse)
}

func TestParseOpinion_UnknownRarity(t *testing.T) {
	_, err := parseOpinion("e", `{"category": "Books", "confidence": 0.5, "rarity": "legendary"}`)
	assert.ErrorIs(t, err, ErrMalformedExpertResponse)
}

func TestParseOpinion_ConfidenceClamped(t *testing.T) {
	op, err := parseOpinion("e", `{"category": "Books", "confidence": 1.7, "rarity": "common"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, op.Confidence)

	op, err = parseOpinion("e", `{"category": "Books", "confidence": -0.2, "rarity": "common"}`)
	require.NoError(t, err)
	assert.Zero(t, op.Confidence)
}

func TestParseOpinion_UnparseableFieldQuarantined(t *testing.T) {
	text := `{
		"category": "Books",
		"confidence": 0.8,
		"rarity": "common",
		"fields": {"title": "Dune", "condition": {"grade": "fine"}}
	}`

	op, err := parseOpinion("e", text)
	require.NoError(t, err)
	assert.Equal(t, "Dune", op.Field(model.FieldTitle).Text())
	// The object-valued condition is dropped, not passed through.
	assert.True(t, op.Field(model.FieldCondition).Absent())
}

func TestParseOpinion_EmptyStringFieldAbsent(t *testing.T) {
	op, err := parseOpinion("e", `{"category": "Books", "confidence": 0.8, "rarity": "common", "fields": {"author": ""}}`)
	require.NoError(t, err)
	assert.True(t, op.Field(model.FieldAuthor).Absent())
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`noise {"a":1} noise`))
	assert.Equal(t, `{"a":1}`, extractJSON(`{"a":1}`))
}
