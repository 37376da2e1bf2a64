// Package llm selects and wraps the language model backend the workflow
// nodes talk to. Two backends are supported: the Gemini API and a local
// Ollama server.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend    string `yaml:"backend"`
	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host,omitempty"`
}

// Provider generates text completions. It satisfies node.Generator.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the provider for cfg.Backend. An empty backend defaults
// to Gemini.
func New(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	switch backend {
	case "gemini":
		return newGemini(cfg)
	case "ollama":
		return newOllama(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm backend: %s", cfg.Backend)
	}
}
