// Package config loads mnemo's recognized configuration surface: the
// graph backend's base URL, the narrative/consolidation toggles, and the
// debug flag, per spec.md §6. Watcher (watcher.go) layers live-reload on
// top of this loader via fsnotify.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Narrative holds the consolidation/injection tuning keys under the
// "narrative." prefix.
type Narrative struct {
	Enabled              bool   `yaml:"enabled"`
	Threshold            int    `yaml:"threshold"`
	StoryFilename        string `yaml:"storyFilename"`
	AutoBootstrapHistory bool   `yaml:"autoBootstrapHistory"`
}

// Graphiti holds the GraphAdapter's connection settings.
type Graphiti struct {
	BaseURL string `yaml:"baseUrl"`
}

// Config is the full recognized configuration surface from spec.md §6.
// Nothing beyond these keys is invented.
type Config struct {
	Graphiti  Graphiti  `yaml:"graphiti"`
	Narrative Narrative `yaml:"narrative"`
	Debug     bool      `yaml:"debug"`
}

// SkipResonanceEnvVar is the env var that bypasses the Resonance Pipeline
// while retaining Story injection, per spec.md §6.
const SkipResonanceEnvVar = "MIND_SKIP_RESONANCE"

// Default returns the zero-value-safe default configuration:
// narrative consolidation enabled, a 5000-token threshold, STORY.md, and
// cold-start bootstrap left off (the caller must opt in explicitly).
func Default() Config {
	return Config{
		Narrative: Narrative{
			Enabled:       true,
			Threshold:     5000,
			StoryFilename: "STORY.md",
		},
	}
}

// Load reads and parses a YAML config file at path, overlaying it onto
// Default(). A missing file is not an error: the defaults are returned
// unchanged, matching a fresh install with no config.yaml written yet.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SkipResonance reports whether MIND_SKIP_RESONANCE is set, per spec.md §6.
func SkipResonance() bool {
	return os.Getenv(SkipResonanceEnvVar) == "1"
}
