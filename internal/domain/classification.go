package domain

import "time"

// Match is the outcome of a single cascade stage. Stages that do not
// apply return (Match{}, false) rather than an error.
type Match struct {
	Intent     Intent
	Confidence float64
	Reason     string
	Tokens     []string
}

// ClassificationResult is the final decision for one input text.
// Built once per call and never mutated afterwards.
type ClassificationResult struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Stage      Stage    `json:"stage"`
	Reason     string   `json:"reason"`
	Tokens     []string `json:"tokens,omitempty"`
}

type TrainingExample struct {
	Text   string `json:"message"`
	Intent Intent `json:"intent"`
}

// PatternRule is one regular-expression rule in data form, as kept in
// rule tables and snapshots. Rules are grouped per intent and keep
// their declaration order.
type PatternRule struct {
	Intent Intent `json:"intent" yaml:"intent"`
	Expr   string `json:"expr" yaml:"expr"`
}

// FeedbackRecord is one human-reviewed correction. Rows are never
// deleted; Used flips to true exactly once, when a retrain cycle
// incorporates the row.
type FeedbackRecord struct {
	ID               int64
	Text             string
	Predicted        Intent
	Corrected        Intent
	Used             bool
	ClassificationID string
	CreatedAt        time.Time
}

// ClassificationRecord is one row of the classification log.
type ClassificationRecord struct {
	ID         string
	ChatID     string
	Text       string
	Intent     Intent
	Confidence float64
	Stage      Stage
	CreatedAt  time.Time
}

type IntentMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// EvaluationMetrics summarizes a model run against a held-out split.
// Transient: computed per retrain cycle, persisted only as the single
// accuracy number in the snapshot header.
type EvaluationMetrics struct {
	Accuracy  float64                  `json:"accuracy"`
	PerIntent map[Intent]IntentMetrics `json:"per_intent"`
	TestSize  int                      `json:"test_size"`
}

type RetrainOutcome string

const (
	OutcomePromoted RetrainOutcome = "promoted"
	OutcomePatched  RetrainOutcome = "patched"
	OutcomeRejected RetrainOutcome = "rejected"
	OutcomeFailed   RetrainOutcome = "failed"
)

// RetrainReport is the structured result of one retrain cycle. The
// lifecycle manager never returns raw errors to callers; failures are
// folded into Outcome and Message.
type RetrainReport struct {
	Outcome      RetrainOutcome `json:"outcome"`
	Success      bool           `json:"success"`
	Accuracy     float64        `json:"accuracy,omitempty"`
	OldAccuracy  *float64       `json:"old_accuracy,omitempty"`
	PatternOnly  bool           `json:"pattern_only,omitempty"`
	Message      string         `json:"message"`
	FeedbackUsed int            `json:"feedback_used,omitempty"`
}

type RetrainingStatus struct {
	CanRetrain      bool `json:"can_retrain"`
	FeedbackPending int  `json:"feedback_pending"`
}
