// Package model defines the data structures for deckplan's configuration,
// catalog entries, placement planning, and wizard session state.
package model

type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Deckplan  DeckplanConfig  `yaml:"deckplan"`
	Inference InferenceConfig `yaml:"inference"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type DeckplanConfig struct {
	Version       string `yaml:"version"`
	Created       string `yaml:"created"`
	WorkspaceRoot string `yaml:"workspace_root"`
}

type InferenceConfig struct {
	StartingRail int     `yaml:"starting_rail"`
	SlotMarginMM float64 `yaml:"slot_margin_mm"`
}

type MatcherConfig struct {
	CacheSize   int `yaml:"cache_size"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

type StorageConfig struct {
	Dir        string `yaml:"dir"`
	ConfigsDir string `yaml:"configs_dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ApplyDefaults fills zero-valued tuning fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Inference.StartingRail <= 0 {
		c.Inference.StartingRail = 1
	}
	if c.Inference.SlotMarginMM <= 0 {
		c.Inference.SlotMarginMM = 2.0
	}
	if c.Matcher.CacheSize <= 0 {
		c.Matcher.CacheSize = 256
	}
	if c.Matcher.CacheTTLSec <= 0 {
		c.Matcher.CacheTTLSec = 30
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "state"
	}
	if c.Storage.ConfigsDir == "" {
		c.Storage.ConfigsDir = "configurations"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
