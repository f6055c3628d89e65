package retro

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"intentbot/internal/lexicon"
	"intentbot/internal/storage/sqlite"
)

const defaultModel = "claude-sonnet-4-5-20250929"

// Suggestion is one proposed lexicon addition distilled from repeated
// corrections. Advisory only: nothing applies until an admin accepts.
type Suggestion struct {
	Term      string `json:"term"`
	Table     string `json:"table"`
	Rationale string `json:"rationale"`
}

// Analyzer clusters repeated human corrections and asks the model
// which keyword-table additions would prevent them. It never sits on
// the classification path.
type Analyzer struct {
	apiKey string
	model  string
	db     *sql.DB
}

func NewAnalyzer(apiKey, model string, db *sql.DB) *Analyzer {
	if model == "" {
		model = defaultModel
	}
	return &Analyzer{apiKey: apiKey, model: model, db: db}
}

func (a *Analyzer) Enabled() bool { return a.apiKey != "" }

// Analyze returns lexicon suggestions for phrases corrected at least
// twice to the same intent. With no repeated corrections it returns an
// empty slice without calling the model.
func (a *Analyzer) Analyze(ctx context.Context) ([]Suggestion, error) {
	if !a.Enabled() {
		return nil, fmt.Errorf("retrospective disabled: no API key configured")
	}

	repeated, err := sqlite.GetRepeatedCorrections(a.db, 2, 50)
	if err != nil {
		return nil, fmt.Errorf("load repeated corrections: %w", err)
	}
	if len(repeated) == 0 {
		return []Suggestion{}, nil
	}

	log.Printf("retro analyze provider=anthropic model=%s corrections=%d", a.model, len(repeated))
	text, err := a.callModel(ctx, buildPrompts(repeated))
	if err != nil {
		return nil, err
	}
	suggestions, err := parseSuggestions(text)
	if err != nil {
		return nil, err
	}
	return filterSuggestions(suggestions), nil
}

type prompts struct {
	system string
	user   string
}

func buildPrompts(repeated []sqlite.RepeatedCorrection) prompts {
	var lines strings.Builder
	for _, r := range repeated {
		text := strings.TrimSpace(r.Text)
		if len(text) > 120 {
			text = text[:120] + "..."
		}
		lines.WriteString(fmt.Sprintf("- %q predicted=%s corrected=%s times=%d\n", text, r.Predicted, r.Corrected, r.Count))
	}

	system := fmt.Sprintf(`You tune the keyword tables of an Italian shop-bot intent classifier.
Given phrases that human reviewers repeatedly corrected, propose terms to add to one of these tables:
- %s: concrete product names
- %s: product category words
- %s: frequently-asked-question keywords

Only propose terms that appear in the corrected phrases. Skip corrections no table addition can fix.

Respond with JSON only (no markdown):
[{"term": "creatina", "table": "products", "rationale": "asked twice, corrected to search"}, ...]`,
		lexicon.TableProducts, lexicon.TableCategories, lexicon.TableFAQ)

	user := "Repeated corrections:\n" + lines.String()
	return prompts{system: system, user: user}
}

func (a *Analyzer) callModel(ctx context.Context, p prompts) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(a.apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: p.system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic call: %w", err)
	}

	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

func parseSuggestions(text string) ([]Suggestion, error) {
	text = strings.TrimSpace(text)
	// Tolerate a fenced response despite the no-markdown instruction.
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			text = text[start : end+1]
		}
	}
	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(text), &suggestions); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return suggestions, nil
}

func filterSuggestions(in []Suggestion) []Suggestion {
	out := make([]Suggestion, 0, len(in))
	for _, s := range in {
		s.Term = strings.ToLower(strings.TrimSpace(s.Term))
		s.Table = strings.TrimSpace(s.Table)
		if s.Term == "" {
			continue
		}
		switch s.Table {
		case lexicon.TableProducts, lexicon.TableCategories, lexicon.TableFAQ:
			out = append(out, s)
		}
	}
	return out
}
