package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Engine.MaxRevisions = 5
	cfg.LLM.Backend = "ollama"
	cfg.LLM.Model = "llama3.1:latest"

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if loaded.Engine.MaxRevisions != 5 {
		t.Errorf("MaxRevisions: got %d, want 5", loaded.Engine.MaxRevisions)
	}
	if loaded.LLM.Backend != "ollama" {
		t.Errorf("LLM.Backend: got %q, want %q", loaded.LLM.Backend, "ollama")
	}
	if loaded.LLM.Model != "llama3.1:latest" {
		t.Errorf("LLM.Model: got %q, want %q", loaded.LLM.Model, "llama3.1:latest")
	}
}

func TestDefaultConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Engine.MaxRevisions != 3 {
		t.Errorf("default MaxRevisions: got %d, want 3", cfg.Engine.MaxRevisions)
	}
	if cfg.Engine.QualityThreshold != 0.8 {
		t.Errorf("default QualityThreshold: got %g, want 0.8", cfg.Engine.QualityThreshold)
	}
	if !cfg.Engine.ApprovalRequired {
		t.Error("default ApprovalRequired: got false, want true")
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestReadConfigMalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, ".scry")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("engine: ["), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadConfig(tmpDir)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestBackwardCompatibility(t *testing.T) {
	// Simulate an old config file without the search or storage sections.
	tmpDir := t.TempDir()
	oldConfig := `version: 1
engine:
  max_revisions: 2
  quality_threshold: 0.7
  approval_required: false
llm:
  backend: gemini
`
	dir := filepath.Join(tmpDir, ".scry")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(oldConfig), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if loaded.Engine.MaxRevisions != 2 {
		t.Errorf("MaxRevisions: got %d, want 2", loaded.Engine.MaxRevisions)
	}
	if loaded.Search.Concurrency != 0 {
		t.Errorf("Search.Concurrency: got %d, want zero value", loaded.Search.Concurrency)
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.DatabasePath("/work")
	want := filepath.Join("/work", ".scry", "sessions.db")
	if got != want {
		t.Errorf("DatabasePath: got %q, want %q", got, want)
	}

	cfg.Storage.Database = "/var/lib/scry/sessions.db"
	if got := cfg.DatabasePath("/work"); got != "/var/lib/scry/sessions.db" {
		t.Errorf("absolute DatabasePath: got %q", got)
	}
}
