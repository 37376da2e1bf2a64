package llm

import (
	"strings"
	"testing"
)

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "davinci"})
	if err == nil || !strings.Contains(err.Error(), "unsupported llm backend") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewGeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New(Config{Backend: "gemini"})
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewOllamaDefaults(t *testing.T) {
	p, err := New(Config{Backend: "ollama"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("name = %s", p.Name())
	}
	if p.(*ollamaProvider).model != ollamaDefaultModel {
		t.Errorf("model = %s", p.(*ollamaProvider).model)
	}
}
