package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"intentbot/internal/bootstrap"
	"intentbot/internal/config"
	"intentbot/internal/domain"
	"intentbot/internal/engine"
	"intentbot/internal/lexicon"
	"intentbot/internal/lifecycle"
	"intentbot/internal/retro"
	"intentbot/internal/schedule"
	"intentbot/internal/server"
	"intentbot/internal/snapshot"
	"intentbot/internal/storage/sqlite"
)

func Main() {
	cfg := config.LoadConfig()
	log.Printf(
		"Config loaded. Listen=%s DB=%s Model=%s RetrainSchedule=%s MinFeedback=%d MinImprovement=%.2f Timezone=%s",
		cfg.ListenAddr, cfg.DBPath, cfg.ModelPath, cfg.RetrainSchedule,
		cfg.MinFeedbackForRetrain, cfg.MinAccuracyImprovement, cfg.Timezone,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	os.MkdirAll(filepath.Dir(cfg.ModelPath), 0755)
	os.MkdirAll(cfg.BackupDir, 0755)

	settings, err := engine.LoadSettings(cfg.EngineConfigPath)
	if err != nil {
		log.Fatalf("Failed to load engine config: %v", err)
	}
	if _, statErr := os.Stat(cfg.EngineConfigPath); os.IsNotExist(statErr) {
		if err := engine.SaveSettings(cfg.EngineConfigPath, settings); err != nil {
			log.Printf("WARNING: could not write engine config defaults: %v", err)
		}
	}
	log.Printf("Engine settings min_confidence=%.2f fallback_threshold=%.2f hybrid=%t",
		settings.MinConfidence, settings.FallbackThreshold, settings.HybridEnabled)

	cascade, err := buildCascade(cfg, settings)
	if err != nil {
		log.Fatalf("Failed to build classification engine: %v", err)
	}

	manager := lifecycle.NewManager(cascade, feedbackStore{db}, lifecycle.Options{
		SnapshotPath:   cfg.ModelPath,
		BackupDir:      cfg.BackupDir,
		LexiconPath:    cfg.LexiconPath,
		MinFeedback:    cfg.MinFeedbackForRetrain,
		MinImprovement: cfg.MinAccuracyImprovement,
		Dataset:        func() ([]domain.TrainingExample, error) { return bootstrap.Load(cfg.BootstrapDatasetPath) },
	})

	restoreModel(cfg, cascade, manager)

	var analyzer *retro.Analyzer
	if cfg.RetroEnabled() {
		analyzer = retro.NewAnalyzer(cfg.AnthropicAPIKey, cfg.RetroModel, db)
	}

	schedule.Start("auto-retrain", cfg.RetrainSchedule, cfg.Location, func() string {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RetrainTimeout())
		defer cancel()
		report := manager.Retrain(ctx)
		return fmt.Sprintf("%s: %s", report.Outcome, report.Message)
	})
	schedule.Start("history-cleanup", cfg.CleanupSchedule, cfg.Location, func() string {
		maxAge := time.Duration(cfg.ChatHistoryMaxAgeDays) * 24 * time.Hour
		deleted, err := sqlite.ClearOldHistory(db, maxAge)
		if err != nil {
			return "error: " + err.Error()
		}
		return fmt.Sprintf("deleted %d chat turns", deleted)
	})

	reloadRules := func() error {
		lex, err := lexicon.Load(cfg.LexiconPath)
		if err != nil {
			return err
		}
		patterns, err := engine.NewPatternMatcher(engine.DefaultPatternRules(), lex.OrderVerbs)
		if err != nil {
			return err
		}
		cascade.SwapRules(patterns, engine.NewHeuristicRuleEngine(lex))
		log.Printf("Rule tables reloaded from %s", cfg.LexiconPath)
		return nil
	}

	srv := server.New(cfg, db, cascade, manager, analyzer, reloadRules)
	log.Println("Starting intentbot...")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}

func buildCascade(cfg config.Config, settings engine.Settings) (*engine.Cascade, error) {
	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return nil, err
	}
	patterns, err := engine.NewPatternMatcher(engine.DefaultPatternRules(), lex.OrderVerbs)
	if err != nil {
		return nil, err
	}
	heuristics := engine.NewHeuristicRuleEngine(lex)
	return engine.NewCascade(settings, patterns, engine.NewStatisticalClassifier(), heuristics), nil
}

// restoreModel loads the active snapshot if one exists; otherwise the
// service runs rule-only, or trains a first model from the bootstrap
// dataset when configured to.
func restoreModel(cfg config.Config, cascade *engine.Cascade, manager *lifecycle.Manager) {
	if snapshot.Exists(cfg.ModelPath) {
		snap, err := snapshot.Load(cfg.ModelPath)
		if err != nil {
			log.Printf("WARNING: could not load model snapshot: %v — serving rule-only", err)
			return
		}
		restored, err := engine.RestoreStatisticalClassifier(snap.Vectorizer, snap.Classifier)
		if err != nil {
			log.Printf("WARNING: could not restore statistical model: %v — serving rule-only", err)
			return
		}
		cascade.Statistical().AdoptFrom(restored)
		cascade.RestoreStats(snap.UsageStats)
		log.Printf("Model snapshot loaded id=%s created=%s accuracy=%.4f",
			snap.Header.ID, snap.Header.CreatedAt.Format("2006-01-02 15:04:05"), snap.Header.Accuracy)
		return
	}

	if !cfg.BootstrapOnStart {
		log.Printf("No model snapshot at %s — serving rule-only until first retrain", cfg.ModelPath)
		return
	}
	log.Printf("No model snapshot — training initial model from bootstrap dataset")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RetrainTimeout())
	defer cancel()
	report := manager.Bootstrap(ctx)
	log.Printf("Bootstrap train outcome=%s message=%s", report.Outcome, report.Message)
}

// feedbackStore adapts the sqlite package to the lifecycle manager's
// store interface.
type feedbackStore struct {
	db *sql.DB
}

func (s feedbackStore) PendingFeedback(limit int) ([]domain.FeedbackRecord, error) {
	return sqlite.GetPendingFeedback(s.db, limit)
}

func (s feedbackStore) PendingCount() (int, error) {
	return sqlite.CountPendingFeedback(s.db)
}

func (s feedbackStore) MarkUsed(ids []int64) error {
	return sqlite.MarkFeedbackUsed(s.db, ids)
}
