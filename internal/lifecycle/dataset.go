package lifecycle

import (
	"math/rand"
	"strings"

	"intentbot/internal/domain"
)

// assembleDataset concatenates the bootstrap examples with the pending
// feedback (corrected label applied), then deduplicates by
// case-insensitive exact text, keeping the first occurrence.
func assembleDataset(base []domain.TrainingExample, feedback []domain.FeedbackRecord) []domain.TrainingExample {
	out := make([]domain.TrainingExample, 0, len(base)+len(feedback))
	seen := make(map[string]bool, len(base)+len(feedback))

	add := func(ex domain.TrainingExample) {
		key := strings.ToLower(strings.TrimSpace(ex.Text))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, ex)
	}

	for _, ex := range base {
		add(ex)
	}
	for _, f := range feedback {
		add(domain.TrainingExample{Text: f.Text, Intent: f.Corrected})
	}
	return out
}

// stratifiedSplit shuffles within each intent class and splits 80/20,
// guaranteeing the test side gets at least one example per represented
// class: the per-class split index is max(int(n*0.8), n-2).
func stratifiedSplit(examples []domain.TrainingExample, rng *rand.Rand) (train, test []domain.TrainingExample) {
	byIntent := make(map[domain.Intent][]domain.TrainingExample)
	var order []domain.Intent
	for _, ex := range examples {
		if _, ok := byIntent[ex.Intent]; !ok {
			order = append(order, ex.Intent)
		}
		byIntent[ex.Intent] = append(byIntent[ex.Intent], ex)
	}

	for _, intent := range order {
		class := byIntent[intent]
		rng.Shuffle(len(class), func(i, j int) { class[i], class[j] = class[j], class[i] })
		n := len(class)
		splitIdx := int(float64(n) * 0.8)
		if n-2 > splitIdx {
			splitIdx = n - 2
		}
		train = append(train, class[:splitIdx]...)
		test = append(test, class[splitIdx:]...)
	}
	return train, test
}
