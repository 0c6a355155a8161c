package experts

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/attic-market/appraisal/internal/model"
	"github.com/attic-market/appraisal/internal/resilience"
)

const claudeMaxTokens = 1024

const claudeSystemPrompt = `You are a collectibles appraiser. Examine the item description and respond with ONLY a JSON object, no prose:
{
  "category": "Books" | "Music" | "Cards" | "Art",
  "confidence": 0.0-1.0,
  "rarity": "common" | "uncommon" | "rare" | "very_rare" | "ultra_rare",
  "fields": {"title": string, "author": string, "year": number, "publisher": string, "format": string, "condition": string, "identifier": string},
  "search_phrases": [string]
}
Omit fields you cannot determine. Never guess identifiers.`

// messenger abstracts the Anthropic messages API so tests can stub it.
type messenger interface {
	createMessage(ctx context.Context, modelID, system, user string) (string, error)
}

type sdkMessenger struct {
	client sdk.Client
}

func (m *sdkMessenger) createMessage(ctx context.Context, modelID, system, user string) (string, error) {
	msg, err := m.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: claudeMaxTokens,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(user))},
	})
	if err != nil {
		return "", eris.Wrap(err, "experts: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		b.WriteString(block.Text)
	}
	return b.String(), nil
}

// ClaudeConfig configures the Claude expert adapter.
type ClaudeConfig struct {
	APIKey string
	// Models is the ordered fallback chain; each model attempt is an
	// isolated failure domain and the first usable opinion wins.
	Models []string
	Retry  resilience.RetryConfig
}

// ClaudeExpert examines items with Claude models via anthropic-sdk-go.
type ClaudeExpert struct {
	name   string
	models []string
	retry  resilience.RetryConfig
	api    messenger
}

// NewClaude creates a Claude expert with the given roster name.
func NewClaude(name string, cfg ClaudeConfig) *ClaudeExpert {
	return &ClaudeExpert{
		name:   name,
		models: cfg.Models,
		retry:  cfg.Retry,
		api:    &sdkMessenger{client: sdk.NewClient(option.WithAPIKey(cfg.APIKey))},
	}
}

func (e *ClaudeExpert) Name() string { return e.name }

// Examine asks each configured model in order until one returns a
// well-formed opinion. Malformed responses count as failed attempts, not
// fatal errors.
func (e *ClaudeExpert) Examine(ctx context.Context, item model.Item) (*model.Opinion, error) {
	if len(e.models) == 0 {
		return nil, eris.New("experts: no models configured")
	}

	prompt := describeItem(item)

	var lastErr error
	for _, modelID := range e.models {
		start := time.Now()
		text, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (string, error) {
			return e.api.createMessage(ctx, modelID, claudeSystemPrompt, prompt)
		})
		if err != nil {
			lastErr = err
			zap.L().Warn("experts: model attempt failed",
				zap.String("expert", e.name),
				zap.String("model", modelID),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		opinion, err := parseOpinion(e.name, text)
		if err != nil {
			lastErr = err
			zap.L().Warn("experts: unparseable response",
				zap.String("expert", e.name),
				zap.String("model", modelID),
				zap.Error(err),
			)
			continue
		}

		opinion.Latency = time.Since(start)
		return opinion, nil
	}

	return nil, eris.Wrapf(lastErr, "experts: %s exhausted model fallbacks", e.name)
}

// describeItem renders the owner-supplied record for the prompt.
func describeItem(item model.Item) string {
	var b strings.Builder
	write := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	write("Category hint", string(item.Category))
	write("Title", item.Title)
	write("Author/Artist", item.Author)
	write("Publisher", item.Publisher)
	if item.Year != 0 {
		fmt.Fprintf(&b, "Year: %d\n", item.Year)
	}
	write("Format", item.Format)
	write("Condition", item.Condition)
	for kind, id := range item.Identifiers {
		fmt.Fprintf(&b, "Identifier (%s): %s\n", kind, id)
	}
	write("Notes", item.Notes)
	return b.String()
}
