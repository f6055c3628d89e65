package lifecycle

import "intentbot/internal/domain"

// Predictor is the slice of the statistical classifier the evaluator
// needs: one prediction per text, ok=false when untrained.
type Predictor interface {
	Predict(text string) (domain.Match, bool)
}

// Evaluate scores a model against a held-out split: overall accuracy
// plus per-intent precision, recall, F1 and support. A prediction miss
// (untrained model) counts as wrong.
func Evaluate(model Predictor, test []domain.TrainingExample) domain.EvaluationMetrics {
	metrics := domain.EvaluationMetrics{
		PerIntent: make(map[domain.Intent]domain.IntentMetrics),
		TestSize:  len(test),
	}
	if len(test) == 0 {
		return metrics
	}

	truePos := make(map[domain.Intent]int)
	falsePos := make(map[domain.Intent]int)
	support := make(map[domain.Intent]int)
	correct := 0

	for _, ex := range test {
		support[ex.Intent]++
		m, ok := model.Predict(ex.Text)
		if !ok {
			continue
		}
		if m.Intent == ex.Intent {
			truePos[ex.Intent]++
			correct++
		} else {
			falsePos[m.Intent]++
		}
	}

	metrics.Accuracy = float64(correct) / float64(len(test))
	for intent, n := range support {
		tp := float64(truePos[intent])
		fp := float64(falsePos[intent])
		var precision, recall, f1 float64
		if tp+fp > 0 {
			precision = tp / (tp + fp)
		}
		recall = tp / float64(n)
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		metrics.PerIntent[intent] = domain.IntentMetrics{
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   n,
		}
	}
	return metrics
}
