package snapshot

import (
	"time"

	"intentbot/internal/domain"
	"intentbot/internal/lexicon"
)

// FormatVersion is bumped whenever the section layout changes in a way
// old readers cannot handle.
const FormatVersion = 1

// Snapshot is the single versioned model artifact: everything live
// classification needs, in named sections, replaced atomically as one
// file and never edited in place.
type Snapshot struct {
	Header     Header         `json:"header"`
	Vectorizer Vectorizer     `json:"vectorizer"`
	Classifier ClassifierData `json:"classifier"`
	RuleTables RuleTables     `json:"rule_tables"`
	UsageStats UsageStats     `json:"usage_stats"`
}

type Header struct {
	FormatVersion int       `json:"format_version"`
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Accuracy      float64   `json:"accuracy"`
}

// Vectorizer holds the fitted vocabulary: feature token (unigram or
// space-joined bigram) to column index.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
}

// ClassifierData holds the multinomial counts per class, sparse over
// vocabulary indices. Probabilities are derived at load time.
type ClassifierData struct {
	Classes     []string      `json:"classes"`
	DocCounts   []int         `json:"doc_counts"`
	TokenTotals []int         `json:"token_totals"`
	TokenCounts []map[int]int `json:"token_counts"`
}

// RuleTables is the audit copy of the rule state the snapshot was
// created with. Live tables rebuild from the lexicon file at startup;
// this section records what the model was trained alongside.
type RuleTables struct {
	Patterns []domain.PatternRule `json:"patterns"`
	Lexicon  lexicon.Lexicon      `json:"lexicon"`
}

type UsageStats struct {
	Total      int64            `json:"total"`
	EmptyInput int64            `json:"empty_input"`
	ByStage    map[string]int64 `json:"by_stage"`
	ByIntent   map[string]int64 `json:"by_intent"`
}
