package node

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scry-dev/scry/internal/session"
	"github.com/scry-dev/scry/prompts"
)

// PlanNode breaks the user query into research steps. It owns the
// session's plan and writes it exactly once.
type PlanNode struct {
	Gen     Generator
	Timeout time.Duration
}

// Name implements Node.
func (n *PlanNode) Name() string { return NamePlanner }

// Run asks the generator for a step list and parses it into the plan.
func (n *PlanNode) Run(ctx context.Context, s session.Session) (session.Session, error) {
	out := s.Clone()

	prompt := prompts.PlannerSystemPrompt + "\n\nResearch Query: " + s.Query

	callCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	text, err := n.Gen.Generate(callCtx, prompt)
	if err != nil {
		return s, fmt.Errorf("%w: planner: %v", ErrCollaborator, err)
	}

	steps := parsePlan(text)
	if len(steps) == 0 {
		if strings.TrimSpace(text) == "" {
			return s, fmt.Errorf("%w: empty planner response", ErrPlanningFailed)
		}
		// The model answered in prose; fall back to a single step that
		// searches the raw query.
		steps = []session.PlanStep{{
			ID:          1,
			Task:        "Research: " + s.Query,
			SearchQuery: s.Query,
		}}
	}

	out.Plan = steps
	return out, nil
}

// parsePlan extracts "STEP n: task" / "SEARCH: query" pairs from the
// planner response. Steps without an explicit search query fall back to
// their task text.
func parsePlan(text string) []session.PlanStep {
	var steps []session.PlanStep
	var current *session.PlanStep

	flush := func() {
		if current == nil {
			return
		}
		if strings.TrimSpace(current.Task) == "" {
			current = nil
			return
		}
		if strings.TrimSpace(current.SearchQuery) == "" {
			current.SearchQuery = current.Task
		}
		steps = append(steps, *current)
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "STEP"):
			flush()
			task := ""
			if idx := strings.Index(line, ":"); idx >= 0 {
				task = strings.TrimSpace(line[idx+1:])
			}
			current = &session.PlanStep{ID: nextStepID(steps), Task: task}
		case strings.HasPrefix(upper, "SEARCH:"):
			if current != nil {
				current.SearchQuery = strings.TrimSpace(line[len("SEARCH:"):])
			}
		}
	}
	flush()

	return steps
}

func nextStepID(steps []session.PlanStep) int {
	return len(steps) + 1
}
