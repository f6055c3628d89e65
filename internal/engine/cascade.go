package engine

import (
	"sync"
	"unicode/utf8"

	"intentbot/internal/domain"
	"intentbot/internal/snapshot"
)

// Statistics are the lifetime usage counters of one cascade instance.
// They ride along in the snapshot but never influence classification.
type Statistics struct {
	Total      int64
	EmptyInput int64
	ByStage    map[domain.Stage]int64
	ByIntent   map[domain.Intent]int64
}

func newStatistics() Statistics {
	return Statistics{
		ByStage:  make(map[domain.Stage]int64),
		ByIntent: make(map[domain.Intent]int64),
	}
}

// Cascade runs the three classifier stages in fixed order and owns the
// decision thresholds and usage statistics. Classify is safe for
// concurrent use: the statistical model swaps atomically inside the
// StatisticalClassifier, the rule stages swap under rulesMu when the
// lexicon is refreshed, and the counters have their own lock.
type Cascade struct {
	settings    Settings
	statistical *StatisticalClassifier

	rulesMu    sync.RWMutex
	patterns   *PatternMatcher
	heuristics *HeuristicRuleEngine

	statsMu sync.Mutex
	stats   Statistics
}

func NewCascade(settings Settings, patterns *PatternMatcher, statistical *StatisticalClassifier, heuristics *HeuristicRuleEngine) *Cascade {
	return &Cascade{
		settings:    settings,
		statistical: statistical,
		patterns:    patterns,
		heuristics:  heuristics,
		stats:       newStatistics(),
	}
}

func (c *Cascade) Settings() Settings { return c.settings }

// Statistical exposes the trainable stage to the lifecycle manager,
// which swaps new models in through it.
func (c *Cascade) Statistical() *StatisticalClassifier { return c.statistical }

// Heuristics returns the live heuristic stage, used off the decision
// path for entity extraction.
func (c *Cascade) Heuristics() *HeuristicRuleEngine {
	c.rulesMu.RLock()
	defer c.rulesMu.RUnlock()
	return c.heuristics
}

// PatternRules returns the live pattern table in data form.
func (c *Cascade) PatternRules() []domain.PatternRule {
	c.rulesMu.RLock()
	defer c.rulesMu.RUnlock()
	return c.patterns.Rules()
}

// SwapRules replaces both rule-based stages in one step, used after a
// lexicon refresh. In-flight Classify calls finish against the old
// tables.
func (c *Cascade) SwapRules(patterns *PatternMatcher, heuristics *HeuristicRuleEngine) {
	c.rulesMu.Lock()
	c.patterns = patterns
	c.heuristics = heuristics
	c.rulesMu.Unlock()
}

// Classify resolves text through the cascade. It never returns an
// error: degenerate input and a total rule miss both resolve to the
// fallback intent with zero confidence.
func (c *Cascade) Classify(text string) domain.ClassificationResult {
	normalized := Normalize(text)
	if utf8.RuneCountInString(normalized) <= 1 {
		res := domain.ClassificationResult{
			Intent:     domain.IntentFallback,
			Confidence: 0.0,
			Stage:      domain.StageFallback,
			Reason:     "empty or single-character input",
		}
		c.record(res, true)
		return res
	}

	res := c.run(normalized)
	c.record(res, false)
	return res
}

func (c *Cascade) run(normalized string) domain.ClassificationResult {
	c.rulesMu.RLock()
	patterns, heuristics := c.patterns, c.heuristics
	c.rulesMu.RUnlock()

	if m, ok := patterns.Match(normalized); ok && m.Confidence >= c.settings.MinConfidence {
		return result(m, domain.StagePattern)
	}

	if c.settings.HybridEnabled && c.statistical != nil && c.statistical.Trained() {
		if m, ok := c.statistical.Predict(normalized); ok && m.Confidence >= c.settings.FallbackThreshold {
			return result(m, domain.StageStatistical)
		}
	}

	if m, ok := heuristics.Match(normalized); ok && m.Confidence >= c.settings.FallbackThreshold {
		return result(m, domain.StageHeuristic)
	}

	return domain.ClassificationResult{
		Intent:     domain.IntentFallback,
		Confidence: 0.0,
		Stage:      domain.StageFallback,
		Reason:     "no stage reached its confidence threshold",
	}
}

func result(m domain.Match, stage domain.Stage) domain.ClassificationResult {
	return domain.ClassificationResult{
		Intent:     m.Intent,
		Confidence: m.Confidence,
		Stage:      stage,
		Reason:     m.Reason,
		Tokens:     m.Tokens,
	}
}

func (c *Cascade) record(res domain.ClassificationResult, empty bool) {
	c.statsMu.Lock()
	c.stats.Total++
	if empty {
		c.stats.EmptyInput++
	}
	c.stats.ByStage[res.Stage]++
	c.stats.ByIntent[res.Intent]++
	c.statsMu.Unlock()
}

// Stats returns a copy of the usage counters.
func (c *Cascade) Stats() Statistics {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	out := newStatistics()
	out.Total = c.stats.Total
	out.EmptyInput = c.stats.EmptyInput
	for k, v := range c.stats.ByStage {
		out.ByStage[k] = v
	}
	for k, v := range c.stats.ByIntent {
		out.ByIntent[k] = v
	}
	return out
}

// UsageStats converts the counters to snapshot form.
func (c *Cascade) UsageStats() snapshot.UsageStats {
	s := c.Stats()
	out := snapshot.UsageStats{
		Total:      s.Total,
		EmptyInput: s.EmptyInput,
		ByStage:    make(map[string]int64, len(s.ByStage)),
		ByIntent:   make(map[string]int64, len(s.ByIntent)),
	}
	for k, v := range s.ByStage {
		out.ByStage[string(k)] = v
	}
	for k, v := range s.ByIntent {
		out.ByIntent[string(k)] = v
	}
	return out
}

// RestoreStats seeds the counters from a loaded snapshot so lifetime
// totals survive restarts. Unknown labels are kept as-is: old counters
// should not vanish because a label was retired.
func (c *Cascade) RestoreStats(us snapshot.UsageStats) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats = newStatistics()
	c.stats.Total = us.Total
	c.stats.EmptyInput = us.EmptyInput
	for k, v := range us.ByStage {
		c.stats.ByStage[domain.Stage(k)] = v
	}
	for k, v := range us.ByIntent {
		c.stats.ByIntent[domain.Intent(k)] = v
	}
}
