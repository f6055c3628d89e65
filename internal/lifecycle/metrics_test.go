package lifecycle

import (
	"math"
	"testing"

	"intentbot/internal/domain"
)

// tablePredictor answers from a fixed text-to-intent map.
type tablePredictor map[string]domain.Intent

func (p tablePredictor) Predict(text string) (domain.Match, bool) {
	intent, ok := p[text]
	if !ok {
		return domain.Match{}, false
	}
	return domain.Match{Intent: intent, Confidence: 0.9}, true
}

func TestEvaluate(t *testing.T) {
	// Four test examples: order is predicted right twice, faq once; one
	// faq example is mislabeled as order.
	test := []domain.TrainingExample{
		{Text: "a", Intent: domain.IntentOrder},
		{Text: "b", Intent: domain.IntentOrder},
		{Text: "c", Intent: domain.IntentFAQ},
		{Text: "d", Intent: domain.IntentFAQ},
	}
	model := tablePredictor{
		"a": domain.IntentOrder,
		"b": domain.IntentOrder,
		"c": domain.IntentFAQ,
		"d": domain.IntentOrder,
	}

	m := Evaluate(model, test)
	if m.TestSize != 4 {
		t.Errorf("TestSize = %d, want 4", m.TestSize)
	}
	if m.Accuracy != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", m.Accuracy)
	}

	order := m.PerIntent[domain.IntentOrder]
	if order.Support != 2 {
		t.Errorf("order support = %d, want 2", order.Support)
	}
	// Two true positives, one false positive from the mislabeled faq.
	if !approxEqual(order.Precision, 2.0/3.0) || !approxEqual(order.Recall, 1.0) {
		t.Errorf("order precision/recall = %v/%v", order.Precision, order.Recall)
	}
	if !approxEqual(order.F1, 0.8) {
		t.Errorf("order f1 = %v, want 0.8", order.F1)
	}

	faq := m.PerIntent[domain.IntentFAQ]
	if !approxEqual(faq.Precision, 1.0) || !approxEqual(faq.Recall, 0.5) {
		t.Errorf("faq precision/recall = %v/%v", faq.Precision, faq.Recall)
	}
}

func TestEvaluateCountsMissAsWrong(t *testing.T) {
	test := []domain.TrainingExample{
		{Text: "known", Intent: domain.IntentOrder},
		{Text: "unknown", Intent: domain.IntentOrder},
	}
	model := tablePredictor{"known": domain.IntentOrder}
	m := Evaluate(model, test)
	if m.Accuracy != 0.5 {
		t.Errorf("Accuracy = %v, want 0.5", m.Accuracy)
	}
}

func TestEvaluateEmptyTestSet(t *testing.T) {
	m := Evaluate(tablePredictor{}, nil)
	if m.Accuracy != 0 || m.TestSize != 0 || len(m.PerIntent) != 0 {
		t.Errorf("unexpected metrics for empty test set: %+v", m)
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
