package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadConfigDefaults(t *testing.T) {
	writeConfig(t, "admin_token: secret\n")

	cfg := LoadConfig()
	if cfg.AdminToken != "secret" {
		t.Errorf("AdminToken = %q", cfg.AdminToken)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.RetrainSchedule != "0 * * * *" || cfg.CleanupSchedule != "30 3 * * *" {
		t.Errorf("schedules = %q / %q", cfg.RetrainSchedule, cfg.CleanupSchedule)
	}
	if cfg.MinFeedbackForRetrain != 10 || cfg.MinAccuracyImprovement != 0.05 {
		t.Errorf("retrain gate = %d / %v", cfg.MinFeedbackForRetrain, cfg.MinAccuracyImprovement)
	}
	if cfg.RetrainTimeout() != 120*time.Second {
		t.Errorf("RetrainTimeout = %v", cfg.RetrainTimeout())
	}
	if cfg.ChatHistoryKeep != 5 || cfg.ChatHistoryMaxAgeDays != 7 {
		t.Errorf("chat history = %d / %d", cfg.ChatHistoryKeep, cfg.ChatHistoryMaxAgeDays)
	}
	if cfg.RetroEnabled() {
		t.Error("retrospective enabled without an API key")
	}
	if cfg.Location == nil {
		t.Error("Location not set")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	writeConfig(t, `
admin_token: secret
listen_addr: ":9000"
min_feedback_for_retrain: 25
min_accuracy_improvement: 0.1
bootstrap_on_start: true
anthropic_api_key: sk-test
timezone: UTC
`)

	cfg := LoadConfig()
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.MinFeedbackForRetrain != 25 || cfg.MinAccuracyImprovement != 0.1 {
		t.Errorf("retrain gate = %d / %v", cfg.MinFeedbackForRetrain, cfg.MinAccuracyImprovement)
	}
	if !cfg.BootstrapOnStart {
		t.Error("BootstrapOnStart not read")
	}
	if !cfg.RetroEnabled() {
		t.Error("retrospective disabled despite API key")
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	writeConfig(t, "admin_token: from-file\nlisten_addr: \":9000\"\n")
	t.Setenv("ADMIN_TOKEN", "from-env")
	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("RETRAIN_TIMEOUT_SECONDS", "45")
	t.Setenv("BOOTSTRAP_ON_START", "true")

	cfg := LoadConfig()
	if cfg.AdminToken != "from-env" {
		t.Errorf("AdminToken = %q, env should win", cfg.AdminToken)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q, env should win", cfg.ListenAddr)
	}
	if cfg.RetrainTimeoutSeconds != 45 {
		t.Errorf("RetrainTimeoutSeconds = %d", cfg.RetrainTimeoutSeconds)
	}
	if !cfg.BootstrapOnStart {
		t.Error("BOOTSTRAP_ON_START override ignored")
	}
}
