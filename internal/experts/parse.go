package experts

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/attic-market/appraisal/internal/model"
)

// ErrMalformedExpertResponse marks a response that could not be parsed
// into an Opinion. The orchestrator treats it exactly like any other
// adapter failure: isolated, counted, excluded from the batch.
var ErrMalformedExpertResponse = eris.New("experts: malformed expert response")

// rawOpinion is the wire shape experts are prompted to return.
type rawOpinion struct {
	Category      string         `json:"category"`
	Confidence    float64        `json:"confidence"`
	Rarity        string         `json:"rarity"`
	Fields        map[string]any `json:"fields"`
	SearchPhrases []string       `json:"search_phrases"`
}

// parseOpinion is the strict parse boundary between free-text model
// output and the typed core. Nothing malformed passes through: a response
// that fails here is quarantined, never thrown past this boundary.
func parseOpinion(source, text string) (*model.Opinion, error) {
	var raw rawOpinion
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return nil, eris.Wrapf(ErrMalformedExpertResponse, "%s: %v", source, err)
	}

	if raw.Category == "" {
		return nil, eris.Wrapf(ErrMalformedExpertResponse, "%s: missing category", source)
	}

	rarity, err := model.ParseRarityTier(raw.Rarity)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedExpertResponse, "%s: %v", source, err)
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	fields := make(map[string]model.FieldValue, len(raw.Fields))
	for key, value := range raw.Fields {
		fv, err := model.ParseFieldValue(value)
		if err != nil {
			// Quarantine unparseable fields instead of failing the
			// whole opinion or passing untyped blobs through.
			zap.L().Debug("experts: dropping unparseable field",
				zap.String("source", source),
				zap.String("field", key),
				zap.Error(err),
			)
			continue
		}
		if !fv.Absent() {
			fields[key] = fv
		}
	}

	return &model.Opinion{
		Source:        source,
		Category:      model.Category(raw.Category),
		Fields:        fields,
		Confidence:    confidence,
		Rarity:        rarity,
		SearchPhrases: raw.SearchPhrases,
	}, nil
}

// extractJSON pulls a JSON object out of text that may contain markdown
// fences or prose around it.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
