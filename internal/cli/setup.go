// setup.go wires config, collaborators, nodes, and the engine for the
// commands that execute research sessions.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/scry-dev/scry/internal/checkpoint"
	"github.com/scry-dev/scry/internal/config"
	"github.com/scry-dev/scry/internal/engine"
	"github.com/scry-dev/scry/internal/llm"
	"github.com/scry-dev/scry/internal/log"
	"github.com/scry-dev/scry/internal/node"
	"github.com/scry-dev/scry/internal/search"
	"github.com/scry-dev/scry/internal/session"
	"github.com/scry-dev/scry/internal/ui"
)

// runtime bundles everything a session-executing command needs.
type runtime struct {
	cfg    *config.Config
	store  *checkpoint.Store
	engine *engine.Engine
	// research is exposed so commands can attach a progress callback.
	research *node.ResearchNode
}

func (rt *runtime) Close() {
	_ = rt.store.Close()
}

// loadConfig reads .scry/config.yaml from the working directory.
func loadConfig() (*config.Config, string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := config.ReadConfig(dir)
	if err != nil {
		return nil, "", fmt.Errorf("reading config (run 'scry init' first): %w", err)
	}
	return cfg, dir, nil
}

// openRuntime builds the full engine stack from config.
func openRuntime() (*runtime, error) {
	cfg, dir, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := checkpoint.Open(cfg.DatabasePath(dir))
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store: %w", err)
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		store.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.Engine.StepTimeout) * time.Second
	research := &node.ResearchNode{
		Search:      &search.DuckDuckGo{},
		Timeout:     timeout,
		Concurrency: cfg.Search.Concurrency,
	}
	nodes := engine.Nodes{
		Plan:     &node.PlanNode{Gen: provider, Timeout: timeout},
		Research: research,
		Review:   &node.ReviewNode{Gen: provider, Timeout: timeout},
		Write:    &node.WriteNode{Gen: provider, Timeout: timeout},
	}

	logger, err := log.NewLogger(dir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	eng, err := engine.New(store, nodes, engine.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, store: store, engine: eng, research: research}, nil
}

// openStoreOnly opens just the checkpoint store, for read-only commands
// that need no collaborators.
func openStoreOnly() (*checkpoint.Store, error) {
	cfg, dir, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.Open(cfg.DatabasePath(dir))
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store: %w", err)
	}
	return store, nil
}

// sessionOptions maps the config policy to per-session options.
func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		MaxRevisions:     cfg.Engine.MaxRevisions,
		QualityThreshold: cfg.Engine.QualityThreshold,
		HITLEnabled:      cfg.Engine.ApprovalRequired,
	}
}

// attachProgress routes research step updates into a live display.
func attachProgress(rt *runtime, display *ui.ProgressDisplay) {
	rt.research.OnStep = func(stepID int, state string) {
		switch state {
		case node.StepSearching:
			display.UpdateStep(stepID, ui.StepSearching)
		case node.StepDone:
			display.UpdateStep(stepID, ui.StepDone)
		case node.StepFailed:
			display.UpdateStep(stepID, ui.StepFailed)
		}
	}
}
