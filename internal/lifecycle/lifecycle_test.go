package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"intentbot/internal/domain"
	"intentbot/internal/engine"
	"intentbot/internal/lexicon"
	"intentbot/internal/snapshot"
)

// fakeStore is an in-memory FeedbackStore.
type fakeStore struct {
	mu          sync.Mutex
	records     []domain.FeedbackRecord
	markUsedErr error
}

func (s *fakeStore) PendingFeedback(limit int) ([]domain.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FeedbackRecord
	for _, r := range s.records {
		if !r.Used {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) PendingCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if !r.Used {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) MarkUsed(ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markUsedErr != nil {
		return s.markUsedErr
	}
	for _, id := range ids {
		for i := range s.records {
			if s.records[i].ID == id {
				s.records[i].Used = true
			}
		}
	}
	return nil
}

func (s *fakeStore) usedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.Used {
			n++
		}
	}
	return n
}

func (s *fakeStore) add(texts []string, corrected domain.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, text := range texts {
		s.records = append(s.records, domain.FeedbackRecord{
			ID:        int64(len(s.records) + 1),
			Text:      text,
			Predicted: domain.IntentFallback,
			Corrected: corrected,
		})
	}
}

// separableDataset builds two classes whose examples all carry a
// class-signature token, so any split trains a classifier that scores
// the whole dataset correctly.
func separableDataset() []domain.TrainingExample {
	var out []domain.TrainingExample
	for i := 0; i < 10; i++ {
		out = append(out, domain.TrainingExample{
			Text:   fmt.Sprintf("compralo adesso variante%d", i),
			Intent: domain.IntentOrder,
		})
		out = append(out, domain.TrainingExample{
			Text:   fmt.Sprintf("spedizione dettaglio%d", i),
			Intent: domain.IntentFAQ,
		})
	}
	return out
}

func newTestManager(t *testing.T, store FeedbackStore, dataset func() ([]domain.TrainingExample, error)) (*Manager, *engine.Cascade, Options) {
	t.Helper()
	dir := t.TempDir()
	lex := lexicon.Default()
	patterns, err := engine.NewPatternMatcher(engine.DefaultPatternRules(), lex.OrderVerbs)
	if err != nil {
		t.Fatalf("pattern matcher: %v", err)
	}
	cascade := engine.NewCascade(engine.DefaultSettings(), patterns, engine.NewStatisticalClassifier(), engine.NewHeuristicRuleEngine(lex))
	opts := Options{
		SnapshotPath:   filepath.Join(dir, "model.json"),
		BackupDir:      filepath.Join(dir, "backups"),
		MinFeedback:    10,
		MinImprovement: 0.05,
		Dataset:        dataset,
		Seed:           7,
	}
	return NewManager(cascade, store, opts), cascade, opts
}

func fixedDataset(examples []domain.TrainingExample) func() ([]domain.TrainingExample, error) {
	return func() ([]domain.TrainingExample, error) { return examples, nil }
}

func TestRetrainRejectedWithoutEnoughFeedback(t *testing.T) {
	store := &fakeStore{}
	store.add([]string{"una sola correzione"}, domain.IntentOrder)
	m, _, opts := newTestManager(t, store, fixedDataset(separableDataset()))

	// Seed an active snapshot so we can check it is untouched.
	if report := m.Bootstrap(context.Background()); report.Outcome != domain.OutcomePromoted {
		t.Fatalf("bootstrap outcome = %s (%s)", report.Outcome, report.Message)
	}
	before, err := os.ReadFile(opts.SnapshotPath)
	if err != nil {
		t.Fatal(err)
	}

	report := m.Retrain(context.Background())
	if report.Outcome != domain.OutcomeRejected {
		t.Fatalf("outcome = %s, want rejected (%s)", report.Outcome, report.Message)
	}
	if !strings.Contains(report.Message, "only 1 feedback pending (min: 10)") {
		t.Errorf("unexpected message: %q", report.Message)
	}
	after, err := os.ReadFile(opts.SnapshotPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("rejected cycle modified the model file")
	}
	if store.usedCount() != 0 {
		t.Error("rejected cycle consumed feedback")
	}
}

func TestBootstrapPromotesFirstModel(t *testing.T) {
	store := &fakeStore{}
	m, cascade, opts := newTestManager(t, store, fixedDataset(separableDataset()))

	report := m.Bootstrap(context.Background())
	if report.Outcome != domain.OutcomePromoted {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if !report.Success {
		t.Error("promoted report not marked successful")
	}
	if report.OldAccuracy != nil {
		t.Errorf("first model should have no prior accuracy, got %v", *report.OldAccuracy)
	}
	if !cascade.Statistical().Trained() {
		t.Error("cascade classifier untrained after promotion")
	}
	if !snapshot.Exists(opts.SnapshotPath) {
		t.Error("no snapshot written")
	}
	snap, err := snapshot.Load(opts.SnapshotPath)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Header.ID == "" {
		t.Error("snapshot header has no id")
	}
	if snap.Header.Accuracy != report.Accuracy {
		t.Errorf("snapshot accuracy %v != report accuracy %v", snap.Header.Accuracy, report.Accuracy)
	}
	if len(snap.RuleTables.Patterns) == 0 || len(snap.RuleTables.Lexicon.Products) == 0 {
		t.Error("snapshot rule tables empty")
	}
}

func TestRetrainPromotesOverWeakPrior(t *testing.T) {
	store := &fakeStore{}
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("compralo extra%d", i))
	}
	store.add(texts, domain.IntentOrder)
	m, cascade, _ := newTestManager(t, store, fixedDataset(separableDataset()))

	// Prior trained on swapped labels scores near zero on any split.
	inverted := make([]domain.TrainingExample, 0, len(separableDataset()))
	for _, ex := range separableDataset() {
		flip := domain.IntentFAQ
		if ex.Intent == domain.IntentFAQ {
			flip = domain.IntentOrder
		}
		inverted = append(inverted, domain.TrainingExample{Text: ex.Text, Intent: flip})
	}
	if err := cascade.Statistical().Fit(inverted); err != nil {
		t.Fatalf("fit prior: %v", err)
	}

	report := m.Retrain(context.Background())
	if report.Outcome != domain.OutcomePromoted {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if report.OldAccuracy == nil {
		t.Fatal("prior accuracy missing from report")
	}
	if report.Accuracy < *report.OldAccuracy+0.05 {
		t.Errorf("promotion without the required margin: %v vs %v", report.Accuracy, *report.OldAccuracy)
	}
	if report.FeedbackUsed != 10 {
		t.Errorf("FeedbackUsed = %d, want 10", report.FeedbackUsed)
	}
	if store.usedCount() != 10 {
		t.Errorf("store marked %d rows used, want 10", store.usedCount())
	}
}

func TestRetrainPatchedWhenCandidateCannotImprove(t *testing.T) {
	store := &fakeStore{}
	m, _, opts := newTestManager(t, store, fixedDataset(separableDataset()))

	if report := m.Bootstrap(context.Background()); report.Outcome != domain.OutcomePromoted {
		t.Fatalf("bootstrap outcome = %s (%s)", report.Outcome, report.Message)
	}
	priorSnap, err := snapshot.Load(opts.SnapshotPath)
	if err != nil {
		t.Fatal(err)
	}

	// Feedback rows duplicate bootstrap texts: dedup drops them, so the
	// candidate sees the same data the prior did and cannot clear the
	// improvement bar.
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("Compralo adesso variante%d", i))
	}
	store.add(texts, domain.IntentOrder)

	report := m.Retrain(context.Background())
	if report.Outcome != domain.OutcomePatched {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if !report.PatternOnly {
		t.Error("patched report should be pattern-only")
	}
	if report.OldAccuracy == nil {
		t.Error("patched report missing prior accuracy")
	}
	if report.FeedbackUsed != 10 || store.usedCount() != 10 {
		t.Errorf("feedback not consumed: report=%d store=%d", report.FeedbackUsed, store.usedCount())
	}

	// The statistical sections of the artifact must be unchanged; only
	// header and rule tables are refreshed.
	after, err := snapshot.Load(opts.SnapshotPath)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(after.Vectorizer, priorSnap.Vectorizer) {
		t.Error("patched cycle changed the vectorizer section")
	}
	if !reflect.DeepEqual(after.Classifier, priorSnap.Classifier) {
		t.Error("patched cycle changed the classifier section")
	}
	if after.Header.ID == priorSnap.Header.ID {
		t.Error("patched cycle reused the prior snapshot id")
	}
}

func TestRetrainRestoresBackupOnFailure(t *testing.T) {
	store := &fakeStore{}
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("testo %d", i))
	}
	store.add(texts, domain.IntentOrder)

	calls := 0
	dataset := func() ([]domain.TrainingExample, error) {
		calls++
		if calls > 1 {
			return nil, fmt.Errorf("dataset source unavailable")
		}
		return separableDataset(), nil
	}
	m, _, opts := newTestManager(t, store, dataset)

	if report := m.Bootstrap(context.Background()); report.Outcome != domain.OutcomePromoted {
		t.Fatalf("bootstrap outcome = %s (%s)", report.Outcome, report.Message)
	}
	before, err := os.ReadFile(opts.SnapshotPath)
	if err != nil {
		t.Fatal(err)
	}

	report := m.Retrain(context.Background())
	if report.Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if !strings.Contains(report.Message, "dataset source unavailable") {
		t.Errorf("unexpected message: %q", report.Message)
	}

	after, err := os.ReadFile(opts.SnapshotPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("failed cycle left a modified model file")
	}
	entries, err := os.ReadDir(opts.BackupDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Error("no backup written before the failed cycle")
	}
	if store.usedCount() != 0 {
		t.Error("failed cycle consumed feedback")
	}
}

func TestRetrainRejectsConcurrentCycle(t *testing.T) {
	store := &fakeStore{}
	m, _, _ := newTestManager(t, store, fixedDataset(separableDataset()))

	m.running.Store(true)
	defer m.running.Store(false)

	report := m.Retrain(context.Background())
	if report.Outcome != domain.OutcomeRejected {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	if report.Message != "retrain already in progress" {
		t.Errorf("unexpected message: %q", report.Message)
	}
}

func TestRetrainTimeoutReport(t *testing.T) {
	store := &fakeStore{}
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("testo scaduto %d", i))
	}
	store.add(texts, domain.IntentOrder)
	m, _, _ := newTestManager(t, store, fixedDataset(separableDataset()))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	report := m.Retrain(ctx)
	if report.Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if report.Message != "retrain timed out before completion" {
		t.Errorf("unexpected message: %q", report.Message)
	}
	if store.usedCount() != 0 {
		t.Error("timed-out cycle consumed feedback")
	}
}

func TestRetrainCanceledReport(t *testing.T) {
	store := &fakeStore{}
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("testo annullato %d", i))
	}
	store.add(texts, domain.IntentOrder)
	m, _, _ := newTestManager(t, store, fixedDataset(separableDataset()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := m.Retrain(ctx)
	if report.Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if report.Message != "retrain canceled" {
		t.Errorf("unexpected message: %q", report.Message)
	}
}

func TestRetrainFailsOnInsufficientData(t *testing.T) {
	store := &fakeStore{}
	// Ten pending rows pass the gate, but they all share one text, so
	// after dedup the dataset stays tiny.
	store.add([]string{"ok", "ok", "ok", "ok", "ok", "ok", "ok", "ok", "ok", "ok"}, domain.IntentOrder)
	tiny := []domain.TrainingExample{
		{Text: "compralo", Intent: domain.IntentOrder},
		{Text: "spedizione", Intent: domain.IntentFAQ},
	}
	m, _, _ := newTestManager(t, store, fixedDataset(tiny))

	report := m.Retrain(context.Background())
	if report.Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if !strings.Contains(report.Message, "insufficient data") {
		t.Errorf("unexpected message: %q", report.Message)
	}
}

func TestRetrainKeepsSwapWhenMarkingFails(t *testing.T) {
	store := &fakeStore{markUsedErr: fmt.Errorf("database locked")}
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("compralo nuovo%d", i))
	}
	store.add(texts, domain.IntentOrder)
	m, _, opts := newTestManager(t, store, fixedDataset(separableDataset()))

	report := m.Retrain(context.Background())
	if report.Outcome != domain.OutcomePromoted {
		t.Fatalf("outcome = %s (%s)", report.Outcome, report.Message)
	}
	if !strings.Contains(report.Message, "marking feedback failed") {
		t.Errorf("unexpected message: %q", report.Message)
	}
	if report.FeedbackUsed != 0 {
		t.Errorf("FeedbackUsed = %d, want 0 after marking failure", report.FeedbackUsed)
	}
	if !snapshot.Exists(opts.SnapshotPath) {
		t.Error("snapshot missing: marking failure must not undo the swap")
	}
}

func TestStatus(t *testing.T) {
	store := &fakeStore{}
	m, _, _ := newTestManager(t, store, fixedDataset(separableDataset()))

	status := m.Status()
	if status.CanRetrain || status.FeedbackPending != 0 {
		t.Errorf("empty store status = %+v", status)
	}

	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("correzione %d", i))
	}
	store.add(texts, domain.IntentOrder)
	status = m.Status()
	if !status.CanRetrain || status.FeedbackPending != 10 {
		t.Errorf("full store status = %+v", status)
	}
}
