package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	AdminToken string `yaml:"admin_token"`

	DBPath           string `yaml:"db_path"`
	ModelPath        string `yaml:"model_path"`
	BackupDir        string `yaml:"backup_dir"`
	LexiconPath      string `yaml:"lexicon_path"`
	EngineConfigPath string `yaml:"engine_config_path"`

	BootstrapDatasetPath string `yaml:"bootstrap_dataset_path"`
	BootstrapOnStart     bool   `yaml:"bootstrap_on_start"`

	RetrainSchedule        string  `yaml:"retrain_schedule"`
	CleanupSchedule        string  `yaml:"cleanup_schedule"`
	RetrainTimeoutSeconds  int     `yaml:"retrain_timeout_seconds"`
	MinFeedbackForRetrain  int     `yaml:"min_feedback_for_retrain"`
	MinAccuracyImprovement float64 `yaml:"min_accuracy_improvement"`

	ChatHistoryKeep       int `yaml:"chat_history_keep"`
	ChatHistoryMaxAgeDays int `yaml:"chat_history_max_age_days"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	RetroModel      string `yaml:"retro_model"`

	Timezone string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.AdminToken, "ADMIN_TOKEN")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ModelPath, "MODEL_PATH")
	envOverride(&cfg.BackupDir, "BACKUP_DIR")
	envOverride(&cfg.LexiconPath, "LEXICON_PATH")
	envOverride(&cfg.EngineConfigPath, "ENGINE_CONFIG_PATH")
	envOverride(&cfg.BootstrapDatasetPath, "BOOTSTRAP_DATASET_PATH")
	envOverrideBool(&cfg.BootstrapOnStart, "BOOTSTRAP_ON_START")
	envOverride(&cfg.RetrainSchedule, "RETRAIN_SCHEDULE")
	envOverride(&cfg.CleanupSchedule, "CLEANUP_SCHEDULE")
	envOverrideInt(&cfg.RetrainTimeoutSeconds, "RETRAIN_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.MinFeedbackForRetrain, "MIN_FEEDBACK_FOR_RETRAIN")
	envOverrideFloat(&cfg.MinAccuracyImprovement, "MIN_ACCURACY_IMPROVEMENT")
	envOverrideInt(&cfg.ChatHistoryKeep, "CHAT_HISTORY_KEEP")
	envOverrideInt(&cfg.ChatHistoryMaxAgeDays, "CHAT_HISTORY_MAX_AGE_DAYS")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.RetroModel, "RETRO_MODEL")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./intentbot.db"
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = "./data/model.json"
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = "./data/backups"
	}
	if cfg.EngineConfigPath == "" {
		cfg.EngineConfigPath = "./data/engine.yaml"
	}
	if cfg.RetrainSchedule == "" {
		cfg.RetrainSchedule = "0 * * * *"
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "30 3 * * *"
	}
	if cfg.RetrainTimeoutSeconds == 0 {
		cfg.RetrainTimeoutSeconds = 120
	}
	if cfg.MinFeedbackForRetrain == 0 {
		cfg.MinFeedbackForRetrain = 10
	}
	if cfg.MinAccuracyImprovement == 0 {
		cfg.MinAccuracyImprovement = 0.05
	}
	if cfg.ChatHistoryKeep == 0 {
		cfg.ChatHistoryKeep = 5
	}
	if cfg.ChatHistoryMaxAgeDays == 0 {
		cfg.ChatHistoryMaxAgeDays = 7
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if cfg.AdminToken == "" {
		log.Fatalf("Required config 'admin_token' is not set (via config.yaml or env var)")
	}
	if cfg.MinFeedbackForRetrain < 1 {
		log.Fatalf("invalid min_feedback_for_retrain '%d': must be >= 1", cfg.MinFeedbackForRetrain)
	}
	if cfg.MinAccuracyImprovement < 0 || cfg.MinAccuracyImprovement > 1 {
		log.Fatalf("invalid min_accuracy_improvement '%f': must be between 0 and 1", cfg.MinAccuracyImprovement)
	}
	if cfg.RetrainTimeoutSeconds < 5 {
		log.Fatalf("invalid retrain_timeout_seconds '%d': must be >= 5", cfg.RetrainTimeoutSeconds)
	}
	if cfg.ChatHistoryKeep < 1 {
		log.Fatalf("invalid chat_history_keep '%d': must be >= 1", cfg.ChatHistoryKeep)
	}
	if cfg.AnthropicAPIKey == "" {
		log.Printf("WARNING: anthropic_api_key is not set. The correction retrospective is disabled.")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

func (c Config) RetrainTimeout() time.Duration {
	return time.Duration(c.RetrainTimeoutSeconds) * time.Second
}

func (c Config) RetroEnabled() bool {
	return c.AnthropicAPIKey != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
