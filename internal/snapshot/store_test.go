package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"intentbot/internal/domain"
	"intentbot/internal/lexicon"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Header: Header{
			FormatVersion: FormatVersion,
			ID:            "11111111-2222-3333-4444-555555555555",
			CreatedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			Accuracy:      0.875,
		},
		Vectorizer: Vectorizer{
			Vocabulary: map[string]int{"voglio": 0, "anavar": 1, "voglio anavar": 2},
		},
		Classifier: ClassifierData{
			Classes:     []string{"faq", "order"},
			DocCounts:   []int{3, 5},
			TokenTotals: []int{7, 11},
			TokenCounts: []map[int]int{{0: 2}, {0: 3, 1: 4, 2: 4}},
		},
		RuleTables: RuleTables{
			Patterns: []domain.PatternRule{
				{Intent: domain.IntentList, Expr: `\blista\b`},
			},
			Lexicon: *lexicon.Default(),
		},
		UsageStats: UsageStats{
			Total:    42,
			ByStage:  map[string]int64{"pattern": 30, "statistical": 12},
			ByIntent: map[string]int64{"order": 20, "faq": 22},
		},
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	want := testSnapshot()
	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Header.ID != want.Header.ID || got.Header.Accuracy != want.Header.Accuracy {
		t.Errorf("header changed: got %+v want %+v", got.Header, want.Header)
	}
	if len(got.Vectorizer.Vocabulary) != 3 || got.Vectorizer.Vocabulary["voglio anavar"] != 2 {
		t.Errorf("vocabulary changed: %v", got.Vectorizer.Vocabulary)
	}
	if got.Classifier.TokenCounts[1][2] != 4 {
		t.Errorf("token counts changed: %v", got.Classifier.TokenCounts)
	}
	if got.UsageStats.ByStage["pattern"] != 30 {
		t.Errorf("usage stats changed: %v", got.UsageStats)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := Save(path, testSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "model.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestLoadRejectsUnknownFormatVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	snap := testSnapshot()
	snap.Header.FormatVersion = FormatVersion + 1
	if err := Save(path, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected format version error")
	} else if !strings.Contains(err.Error(), "format version") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(filepath.Join(dir, "missing.json")) {
		t.Error("Exists true for missing file")
	}
	if Exists(dir) {
		t.Error("Exists true for a directory")
	}
	path := filepath.Join(dir, "model.json")
	if err := Save(path, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists false for saved snapshot")
	}
}

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "model.json")
	backups := filepath.Join(dir, "backups")
	if err := Save(active, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	original, err := os.ReadFile(active)
	if err != nil {
		t.Fatal(err)
	}

	backupPath, err := Backup(active, backups)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	name := filepath.Base(backupPath)
	if !strings.HasPrefix(name, "model_backup_") || !strings.HasSuffix(name, ".json") {
		t.Errorf("unexpected backup name %q", name)
	}

	// Clobber the active file, then restore.
	changed := testSnapshot()
	changed.Header.Accuracy = 0.1
	if err := Save(active, changed); err != nil {
		t.Fatal(err)
	}
	if err := Restore(backupPath, active); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	restored, err := os.ReadFile(active)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, original) {
		t.Error("restored snapshot is not byte-identical to the backup source")
	}
}

func TestBackupWithoutActiveSnapshot(t *testing.T) {
	dir := t.TempDir()
	if _, err := Backup(filepath.Join(dir, "missing.json"), dir); err == nil {
		t.Fatal("expected error when active snapshot is missing")
	}
}
