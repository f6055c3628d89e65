package engine

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"intentbot/internal/domain"
	"intentbot/internal/snapshot"
)

// featureTokens expands text into unigram + bigram features. Bigrams
// are space-joined so they share the vocabulary map with unigrams.
func featureTokens(text string) []string {
	tokens := Tokenize(text)
	feats := make([]string, 0, len(tokens)*2)
	feats = append(feats, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		feats = append(feats, tokens[i]+" "+tokens[i+1])
	}
	return feats
}

// naiveBayes is a multinomial model over the feature vocabulary with
// additive (Laplace) smoothing. Raw counts are kept for persistence;
// log probabilities are derived once after training or restore.
type naiveBayes struct {
	classes     []domain.Intent
	vocab       map[string]int
	docCounts   []int
	tokenTotals []int
	tokenCounts []map[int]int

	logPrior  []float64
	logProb   []map[int]float64
	logUnseen []float64
}

func trainNaiveBayes(examples []domain.TrainingExample) (*naiveBayes, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("empty training set")
	}

	classSet := make(map[domain.Intent]bool)
	for _, ex := range examples {
		classSet[ex.Intent] = true
	}
	if len(classSet) < 2 {
		return nil, fmt.Errorf("training set needs at least two intent classes, got %d", len(classSet))
	}
	classes := make([]domain.Intent, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	classIdx := make(map[domain.Intent]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}

	// Build vocabulary.
	vocab := make(map[string]int)
	for _, ex := range examples {
		for _, f := range featureTokens(ex.Text) {
			if _, ok := vocab[f]; !ok {
				vocab[f] = len(vocab)
			}
		}
	}

	// Per-class feature counts.
	nb := &naiveBayes{
		classes:     classes,
		vocab:       vocab,
		docCounts:   make([]int, len(classes)),
		tokenTotals: make([]int, len(classes)),
		tokenCounts: make([]map[int]int, len(classes)),
	}
	for i := range nb.tokenCounts {
		nb.tokenCounts[i] = make(map[int]int)
	}
	for _, ex := range examples {
		ci := classIdx[ex.Intent]
		nb.docCounts[ci]++
		for _, f := range featureTokens(ex.Text) {
			idx := vocab[f]
			nb.tokenCounts[ci][idx]++
			nb.tokenTotals[ci]++
		}
	}

	nb.derive()
	return nb, nil
}

// derive computes the log-space parameters from the raw counts.
func (nb *naiveBayes) derive() {
	totalDocs := 0
	for _, d := range nb.docCounts {
		totalDocs += d
	}
	v := float64(len(nb.vocab))
	nb.logPrior = make([]float64, len(nb.classes))
	nb.logProb = make([]map[int]float64, len(nb.classes))
	nb.logUnseen = make([]float64, len(nb.classes))
	for ci := range nb.classes {
		nb.logPrior[ci] = math.Log(float64(nb.docCounts[ci]) / float64(totalDocs))
		denom := float64(nb.tokenTotals[ci]) + v
		nb.logUnseen[ci] = math.Log(1.0 / denom)
		probs := make(map[int]float64, len(nb.tokenCounts[ci]))
		for idx, count := range nb.tokenCounts[ci] {
			probs[idx] = math.Log((float64(count) + 1.0) / denom)
		}
		nb.logProb[ci] = probs
	}
}

// predict returns the argmax class and its posterior probability.
// Features outside the vocabulary carry no signal and are dropped, the
// same way the fitted vectorizer would drop them.
func (nb *naiveBayes) predict(text string) (domain.Intent, float64) {
	var known []int
	for _, f := range featureTokens(text) {
		if idx, ok := nb.vocab[f]; ok {
			known = append(known, idx)
		}
	}

	scores := make([]float64, len(nb.classes))
	for ci := range nb.classes {
		s := nb.logPrior[ci]
		for _, idx := range known {
			if lp, ok := nb.logProb[ci][idx]; ok {
				s += lp
			} else {
				s += nb.logUnseen[ci]
			}
		}
		scores[ci] = s
	}

	best := 0
	for ci := 1; ci < len(scores); ci++ {
		if scores[ci] > scores[best] {
			best = ci
		}
	}

	// Normalize to a probability via log-sum-exp.
	maxScore := scores[best]
	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}
	posterior := 1.0 / sum

	return nb.classes[best], posterior
}

// StatisticalClassifier is the trainable cascade stage. Fit builds a
// complete replacement model and swaps it in with one pointer store,
// so concurrent Predict calls never see a half-trained model.
type StatisticalClassifier struct {
	model atomic.Pointer[naiveBayes]
}

func NewStatisticalClassifier() *StatisticalClassifier {
	return &StatisticalClassifier{}
}

func (s *StatisticalClassifier) Fit(examples []domain.TrainingExample) error {
	nb, err := trainNaiveBayes(examples)
	if err != nil {
		return err
	}
	s.model.Store(nb)
	return nil
}

func (s *StatisticalClassifier) Trained() bool {
	return s.model.Load() != nil
}

// AdoptFrom takes over other's trained model with a single pointer
// store. In-flight Predict calls finish on whichever model they loaded.
func (s *StatisticalClassifier) AdoptFrom(other *StatisticalClassifier) {
	if nb := other.model.Load(); nb != nil {
		s.model.Store(nb)
	}
}

// Predict reports the model's own posterior as the confidence, with no
// recalibration. Untrained classifiers report ok=false.
func (s *StatisticalClassifier) Predict(text string) (domain.Match, bool) {
	nb := s.model.Load()
	if nb == nil {
		return domain.Match{}, false
	}
	intent, confidence := nb.predict(text)
	return domain.Match{
		Intent:     intent,
		Confidence: confidence,
		Reason:     "statistical posterior",
	}, true
}

// Export emits the model in snapshot form. Only meaningful on a
// trained classifier; callers gate on Trained.
func (s *StatisticalClassifier) Export() (snapshot.Vectorizer, snapshot.ClassifierData) {
	nb := s.model.Load()
	if nb == nil {
		return snapshot.Vectorizer{}, snapshot.ClassifierData{}
	}
	vec := snapshot.Vectorizer{Vocabulary: make(map[string]int, len(nb.vocab))}
	for tok, idx := range nb.vocab {
		vec.Vocabulary[tok] = idx
	}
	data := snapshot.ClassifierData{
		Classes:     make([]string, len(nb.classes)),
		DocCounts:   append([]int(nil), nb.docCounts...),
		TokenTotals: append([]int(nil), nb.tokenTotals...),
		TokenCounts: make([]map[int]int, len(nb.classes)),
	}
	for i, c := range nb.classes {
		data.Classes[i] = string(c)
		counts := make(map[int]int, len(nb.tokenCounts[i]))
		for idx, n := range nb.tokenCounts[i] {
			counts[idx] = n
		}
		data.TokenCounts[i] = counts
	}
	return vec, data
}

// RestoreStatisticalClassifier rebuilds a trained classifier from
// snapshot sections, re-deriving the log-space parameters.
func RestoreStatisticalClassifier(vec snapshot.Vectorizer, data snapshot.ClassifierData) (*StatisticalClassifier, error) {
	n := len(data.Classes)
	if n == 0 {
		return nil, fmt.Errorf("snapshot classifier section has no classes")
	}
	if len(data.DocCounts) != n || len(data.TokenTotals) != n || len(data.TokenCounts) != n {
		return nil, fmt.Errorf("snapshot classifier sections disagree on class count")
	}
	nb := &naiveBayes{
		classes:     make([]domain.Intent, n),
		vocab:       make(map[string]int, len(vec.Vocabulary)),
		docCounts:   append([]int(nil), data.DocCounts...),
		tokenTotals: append([]int(nil), data.TokenTotals...),
		tokenCounts: make([]map[int]int, n),
	}
	for i, c := range data.Classes {
		intent, err := domain.ParseIntent(c)
		if err != nil {
			return nil, fmt.Errorf("snapshot classifier: %w", err)
		}
		nb.classes[i] = intent
		counts := make(map[int]int, len(data.TokenCounts[i]))
		for idx, cnt := range data.TokenCounts[i] {
			counts[idx] = cnt
		}
		nb.tokenCounts[i] = counts
	}
	for tok, idx := range vec.Vocabulary {
		nb.vocab[tok] = idx
	}
	nb.derive()

	s := NewStatisticalClassifier()
	s.model.Store(nb)
	return s, nil
}
