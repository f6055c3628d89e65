package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"intentbot/internal/domain"
)

func TestDatasetLabels(t *testing.T) {
	examples := Dataset()
	if len(examples) < 40 {
		t.Fatalf("dataset too small: %d examples", len(examples))
	}
	counts := make(map[domain.Intent]int)
	for _, ex := range examples {
		if ex.Text == "" {
			t.Error("dataset contains an empty text")
		}
		if _, err := domain.ParseIntent(string(ex.Intent)); err != nil {
			t.Errorf("invalid intent %q on %q", ex.Intent, ex.Text)
		}
		counts[ex.Intent]++
	}
	for _, intent := range []domain.Intent{
		domain.IntentOrder, domain.IntentSearch, domain.IntentFAQ,
		domain.IntentList, domain.IntentGreeting, domain.IntentContact,
	} {
		if counts[intent] < 5 {
			t.Errorf("intent %s has only %d examples", intent, counts[intent])
		}
	}
	if counts[domain.IntentFallback] != 0 {
		t.Error("dataset should not train the fallback intent")
	}
}

func TestLoadMissingFile(t *testing.T) {
	examples, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(examples) != len(Dataset()) {
		t.Errorf("missing file should yield the built-in dataset alone")
	}
}

func TestLoadMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	content := `{
		"conversations": [
			{"message": "hai lo zinco?", "intent": "search"},
			{"message": "boh", "intent": "nonsense"},
			{"message": "", "intent": "order"}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	examples, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(examples) != len(Dataset())+1 {
		t.Fatalf("len = %d, want built-in + 1 (unknown intent and empty message skipped)", len(examples))
	}
	last := examples[len(examples)-1]
	if last.Text != "hai lo zinco?" || last.Intent != domain.IntentSearch {
		t.Errorf("merged example = %+v", last)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	examples, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(examples) != len(Dataset()) {
		t.Errorf("empty path should yield the built-in dataset")
	}
}
