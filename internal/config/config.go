// Package config handles reading and writing .scry/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/scry-dev/scry/internal/llm"
)

// Config is the top-level structure for .scry/config.yaml.
type Config struct {
	Version int           `yaml:"version"`
	Engine  EngineConfig  `yaml:"engine"`
	LLM     llm.Config    `yaml:"llm"`
	Search  SearchConfig  `yaml:"search"`
	Storage StorageConfig `yaml:"storage"`
}

// EngineConfig controls the workflow policy applied to new sessions.
type EngineConfig struct {
	MaxRevisions     int     `yaml:"max_revisions"`
	QualityThreshold float64 `yaml:"quality_threshold"`
	ApprovalRequired bool    `yaml:"approval_required"`
	StepTimeout      int     `yaml:"step_timeout"` // seconds per collaborator call
}

// SearchConfig controls the web search collaborator.
type SearchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// StorageConfig locates the checkpoint database and event log.
type StorageConfig struct {
	Database string `yaml:"database"` // relative to the .scry directory
}

const configDir = ".scry"
const configFile = "config.yaml"

// Dir returns the .scry directory under dir.
func Dir(dir string) string {
	return filepath.Join(dir, configDir)
}

// DatabasePath resolves the checkpoint database location for cfg.
func (c *Config) DatabasePath(dir string) string {
	db := c.Storage.Database
	if db == "" {
		db = "sessions.db"
	}
	if filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(Dir(dir), db)
}

// ReadConfig reads .scry/config.yaml from the given directory.
// dir is the working root (not .scry/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to .scry/config.yaml in the given directory.
// Creates the .scry/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			MaxRevisions:     3,
			QualityThreshold: 0.8,
			ApprovalRequired: true,
			StepTimeout:      120,
		},
		LLM: llm.Config{
			Backend: "gemini",
		},
		Search: SearchConfig{
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Database: "sessions.db",
		},
	}
}
