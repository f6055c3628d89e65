package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the human-readable engine configuration that lives next
// to the model artifact: the two cascade thresholds and the hybrid-mode
// flag. It loads and saves independently of the snapshot.
type Settings struct {
	MinConfidence     float64 `yaml:"min_confidence"`
	FallbackThreshold float64 `yaml:"fallback_threshold"`
	HybridEnabled     bool    `yaml:"hybrid_enabled"`
}

func DefaultSettings() Settings {
	return Settings{
		MinConfidence:     0.65,
		FallbackThreshold: 0.45,
		HybridEnabled:     true,
	}
}

// LoadSettings reads the engine config file at path. A missing file
// yields the defaults; a present but invalid file is an error.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse engine config: %w", err)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		return s, fmt.Errorf("min_confidence %f out of range [0,1]", s.MinConfidence)
	}
	if s.FallbackThreshold < 0 || s.FallbackThreshold > 1 {
		return s, fmt.Errorf("fallback_threshold %f out of range [0,1]", s.FallbackThreshold)
	}
	return s, nil
}

func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal engine config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
