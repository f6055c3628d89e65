package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"intentbot/internal/domain"
	"intentbot/internal/engine"
	"intentbot/internal/lexicon"
	"intentbot/internal/snapshot"
)

// FeedbackStore is the slice of the persistence layer the lifecycle
// manager consumes: pending rows in, used flags out.
type FeedbackStore interface {
	PendingFeedback(limit int) ([]domain.FeedbackRecord, error)
	PendingCount() (int, error)
	MarkUsed(ids []int64) error
}

// pendingFetchLimit bounds one cycle's feedback batch. Anything beyond
// it stays pending for the next cycle.
const pendingFetchLimit = 5000

type Options struct {
	SnapshotPath   string
	BackupDir      string
	LexiconPath    string
	MinFeedback    int
	MinImprovement float64
	// Dataset supplies the bootstrap examples each cycle starts from.
	Dataset func() ([]domain.TrainingExample, error)
	// Seed fixes the split shuffle; zero means time-seeded.
	Seed int64
}

// Manager owns the retrain workflow: gate, backup, dataset assembly,
// train, evaluate, promote-or-patch, commit, and rollback on error.
// At most one cycle runs at a time; a concurrent request is rejected.
type Manager struct {
	cascade *engine.Cascade
	store   FeedbackStore
	opts    Options

	running atomic.Bool
	rngMu   sync.Mutex
	rng     *rand.Rand
}

func NewManager(cascade *engine.Cascade, store FeedbackStore, opts Options) *Manager {
	if opts.MinFeedback <= 0 {
		opts.MinFeedback = 10
	}
	if opts.MinImprovement <= 0 {
		opts.MinImprovement = 0.05
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		cascade: cascade,
		store:   store,
		opts:    opts,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Status is the read-only gate check the dashboard consults before it
// offers the retrain action.
func (m *Manager) Status() domain.RetrainingStatus {
	pending, err := m.store.PendingCount()
	if err != nil {
		log.Printf("lifecycle status error: %v", err)
		return domain.RetrainingStatus{}
	}
	return domain.RetrainingStatus{
		CanRetrain:      pending >= m.opts.MinFeedback,
		FeedbackPending: pending,
	}
}

// Retrain runs one full cycle. It never returns a raw error: every
// failure mode lands in the report's Outcome and Message.
func (m *Manager) Retrain(ctx context.Context) domain.RetrainReport {
	if !m.running.CompareAndSwap(false, true) {
		return domain.RetrainReport{
			Outcome: domain.OutcomeRejected,
			Message: "retrain already in progress",
		}
	}
	defer m.running.Store(false)

	pending, err := m.store.PendingCount()
	if err != nil {
		return failed(fmt.Sprintf("count pending feedback: %v", err))
	}
	if pending < m.opts.MinFeedback {
		return domain.RetrainReport{
			Outcome: domain.OutcomeRejected,
			Message: fmt.Sprintf("only %d feedback pending (min: %d)", pending, m.opts.MinFeedback),
		}
	}

	feedback, err := m.store.PendingFeedback(pendingFetchLimit)
	if err != nil {
		return failed(fmt.Sprintf("load pending feedback: %v", err))
	}
	return m.cycle(ctx, feedback)
}

// Bootstrap trains the very first model from the bootstrap dataset
// alone, bypassing the feedback gate. Used once on cold start when no
// snapshot exists; a concurrent cycle still wins the serialization.
func (m *Manager) Bootstrap(ctx context.Context) domain.RetrainReport {
	if !m.running.CompareAndSwap(false, true) {
		return domain.RetrainReport{
			Outcome: domain.OutcomeRejected,
			Message: "retrain already in progress",
		}
	}
	defer m.running.Store(false)
	return m.cycle(ctx, nil)
}

func (m *Manager) cycle(ctx context.Context, feedback []domain.FeedbackRecord) domain.RetrainReport {
	start := time.Now()

	// Backup before any mutation. No active snapshot is a warning, not
	// a failure: there is nothing to protect yet.
	backupPath := ""
	if snapshot.Exists(m.opts.SnapshotPath) {
		var err error
		backupPath, err = snapshot.Backup(m.opts.SnapshotPath, m.opts.BackupDir)
		if err != nil {
			return failed(fmt.Sprintf("backup active model: %v", err))
		}
		log.Printf("lifecycle backup created path=%s", backupPath)
	} else {
		log.Printf("lifecycle backup skipped: no active snapshot at %s", m.opts.SnapshotPath)
	}

	report := m.train(ctx, feedback, backupPath)
	if report.Outcome == domain.OutcomeFailed && backupPath != "" {
		if err := snapshot.Restore(backupPath, m.opts.SnapshotPath); err != nil {
			log.Printf("lifecycle restore error: %v", err)
			report.Message += fmt.Sprintf(" (restore failed: %v)", err)
		} else {
			log.Printf("lifecycle restored backup path=%s", backupPath)
		}
	}
	log.Printf("lifecycle cycle outcome=%s accuracy=%.4f elapsed=%s", report.Outcome, report.Accuracy, time.Since(start).Round(time.Millisecond))
	return report
}

func (m *Manager) train(ctx context.Context, feedback []domain.FeedbackRecord, backupPath string) domain.RetrainReport {
	if r, done := ctxReport(ctx); done {
		return r
	}

	base, err := m.opts.Dataset()
	if err != nil {
		return failed(fmt.Sprintf("load bootstrap dataset: %v", err))
	}
	dataset := assembleDataset(base, feedback)
	if len(dataset) < 10 {
		return failed(fmt.Sprintf("insufficient data: %d examples (min: 10)", len(dataset)))
	}

	m.rngMu.Lock()
	train, test := stratifiedSplit(dataset, m.rng)
	m.rngMu.Unlock()
	log.Printf("lifecycle split train=%d test=%d", len(train), len(test))

	if r, done := ctxReport(ctx); done {
		return r
	}

	candidate := engine.NewStatisticalClassifier()
	if err := candidate.Fit(train); err != nil {
		return failed(fmt.Sprintf("train candidate: %v", err))
	}

	candMetrics := Evaluate(candidate, test)

	var oldAccuracy *float64
	prior := m.cascade.Statistical()
	if prior.Trained() {
		priorMetrics := Evaluate(prior, test)
		oldAccuracy = &priorMetrics.Accuracy
	}

	if r, done := ctxReport(ctx); done {
		return r
	}

	promote := oldAccuracy == nil || candMetrics.Accuracy >= *oldAccuracy+m.opts.MinImprovement

	var report domain.RetrainReport
	if promote {
		if err := m.commit(candidate, candMetrics.Accuracy); err != nil {
			return failed(fmt.Sprintf("commit promoted model: %v", err))
		}
		prior.AdoptFrom(candidate)
		report = domain.RetrainReport{
			Outcome:     domain.OutcomePromoted,
			Success:     true,
			Accuracy:    candMetrics.Accuracy,
			OldAccuracy: oldAccuracy,
			Message:     fmt.Sprintf("model retrained successfully, accuracy: %.2f%%", candMetrics.Accuracy*100),
		}
	} else {
		// Patch-only: the statistical model stays, but the refreshed
		// rule tables are still worth persisting — and the feedback has
		// been weighed, so it counts as consumed.
		if err := m.commit(prior, *oldAccuracy); err != nil {
			return failed(fmt.Sprintf("commit patched tables: %v", err))
		}
		report = domain.RetrainReport{
			Outcome:     domain.OutcomePatched,
			Success:     true,
			Accuracy:    candMetrics.Accuracy,
			OldAccuracy: oldAccuracy,
			PatternOnly: true,
			Message: fmt.Sprintf("candidate did not clear the improvement bar (%.2f%% vs %.2f%%), rule tables refreshed",
				candMetrics.Accuracy*100, *oldAccuracy*100),
		}
	}

	// Feedback is marked only after the snapshot swap succeeded. A
	// marking failure does not undo the swap: the rows stay pending and
	// dedup absorbs them on the next cycle.
	if len(feedback) > 0 {
		ids := make([]int64, len(feedback))
		for i, f := range feedback {
			ids[i] = f.ID
		}
		if err := m.store.MarkUsed(ids); err != nil {
			log.Printf("lifecycle mark-used error: %v", err)
			report.Message += fmt.Sprintf(" (marking feedback failed: %v)", err)
		} else {
			report.FeedbackUsed = len(ids)
		}
	}
	return report
}

// commit builds the snapshot around model's current state and swaps it
// into place atomically.
func (m *Manager) commit(model *engine.StatisticalClassifier, accuracy float64) error {
	lex, err := lexicon.Load(m.opts.LexiconPath)
	if err != nil {
		return fmt.Errorf("load lexicon for snapshot: %w", err)
	}
	vec, clf := model.Export()
	snap := &snapshot.Snapshot{
		Header: snapshot.Header{
			FormatVersion: snapshot.FormatVersion,
			ID:            uuid.NewString(),
			CreatedAt:     time.Now().UTC(),
			Accuracy:      accuracy,
		},
		Vectorizer: vec,
		Classifier: clf,
		RuleTables: snapshot.RuleTables{
			Patterns: m.cascade.PatternRules(),
			Lexicon:  *lex,
		},
		UsageStats: m.cascade.UsageStats(),
	}
	return snapshot.Save(m.opts.SnapshotPath, snap)
}

// ctxReport maps a context expiry to its failure report. The timeout
// wording is distinct from training failures so operators can tell a
// slow cycle from a broken one.
func ctxReport(ctx context.Context) (domain.RetrainReport, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return failed("retrain timed out before completion"), true
	case ctx.Err() != nil:
		return failed("retrain canceled"), true
	}
	return domain.RetrainReport{}, false
}

func failed(msg string) domain.RetrainReport {
	return domain.RetrainReport{Outcome: domain.OutcomeFailed, Message: msg}
}
