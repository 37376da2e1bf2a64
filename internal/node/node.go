// Package node implements the four workflow processing units: Plan,
// Research, Review, and Write. Each node is a pure step over a session
// snapshot — it receives a copy, calls its external collaborator, and
// returns a new snapshot touching only the fields it owns.
package node

import (
	"context"
	"errors"

	"github.com/scry-dev/scry/internal/session"
)

// Node names as recorded in checkpoints.
const (
	NamePlanner    = "planner"
	NameResearcher = "researcher"
	NameReviewer   = "reviewer"
	NameWriter     = "writer"
)

// Sentinel errors for node failures.
var (
	// ErrCollaborator indicates the external service call failed or
	// timed out.
	ErrCollaborator = errors.New("collaborator call failed")
	// ErrPlanningFailed indicates the planner produced zero usable steps.
	ErrPlanningFailed = errors.New("planning produced no steps")
	// ErrMalformedReview indicates the reviewer output violated the
	// critique contract (missing or out-of-range score).
	ErrMalformedReview = errors.New("malformed review")
)

// Node is a single workflow processing unit.
type Node interface {
	Name() string
	Run(ctx context.Context, s session.Session) (session.Session, error)
}

// Generator produces text from a prompt. Implemented by the LLM providers.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SearchResult is one ranked snippet returned by the search collaborator.
type SearchResult struct {
	Title   string
	Snippet string
	URL     string
}

// Searcher runs a web search for a query string.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}
