package node

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scry-dev/scry/internal/session"
)

const defaultSearchConcurrency = 4

// Step progress states reported through OnStep.
const (
	StepSearching = "searching"
	StepDone      = "done"
	StepFailed    = "failed"
)

// ResearchNode runs the search collaborator once per incomplete plan step.
// Steps are dispatched concurrently but merged strictly in plan order, so
// the resulting findings are deterministic regardless of completion order.
// A failed search marks its step attempted with no findings; it never
// aborts the other steps or the session.
type ResearchNode struct {
	Search      Searcher
	Timeout     time.Duration
	Concurrency int

	// OnStep, when set, receives progress updates for display. It is
	// called from worker goroutines and must be safe for concurrent use.
	OnStep func(stepID int, state string)
}

// Name implements Node.
func (n *ResearchNode) Name() string { return NameResearcher }

type stepResult struct {
	step    session.PlanStep
	results []string
	sources []string
	failed  bool
}

// Run gathers findings for every incomplete step and merges them into the
// session. On a refinement pass, new results are appended to the step's
// existing finding rather than replacing it.
func (n *ResearchNode) Run(ctx context.Context, s session.Session) (session.Session, error) {
	out := s.Clone()

	steps := out.IncompleteSteps()
	if len(steps) == 0 {
		return out, nil
	}

	limit := n.Concurrency
	if limit <= 0 {
		limit = defaultSearchConcurrency
	}

	results := make([]stepResult, len(steps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, step := range steps {
		i, step := i, step
		g.Go(func() error {
			n.notify(step.ID, StepSearching)

			callCtx := gctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, n.Timeout)
				defer cancel()
			}

			hits, err := n.Search.Search(callCtx, step.SearchQuery)
			if err != nil {
				// Absorbed per step: record no findings, keep going.
				results[i] = stepResult{step: step, failed: true}
				n.notify(step.ID, StepFailed)
				return nil
			}

			res := stepResult{step: step}
			for _, hit := range hits {
				if hit.Snippet != "" {
					res.results = append(res.results, hit.Snippet)
				}
				if hit.URL != "" {
					res.sources = append(res.sources, hit.URL)
				}
			}
			results[i] = res
			n.notify(step.ID, StepDone)
			return nil
		})
	}
	// Workers never return errors, but Wait still propagates a context
	// cancellation from gctx.
	if err := g.Wait(); err != nil {
		return s, err
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}

	if out.Findings == nil {
		out.Findings = make(map[int]session.Finding, len(results))
	}
	// Merge in step order.
	for _, res := range results {
		merged := mergeFinding(out.Findings[res.step.ID], res)
		out.Findings[res.step.ID] = merged
	}
	for i := range out.Plan {
		for _, res := range results {
			if out.Plan[i].ID == res.step.ID {
				out.Plan[i].Done = true
			}
		}
	}

	return out, nil
}

// mergeFinding folds a new pass's results into an existing finding,
// skipping snippets already recorded.
func mergeFinding(existing session.Finding, res stepResult) session.Finding {
	existing.StepID = res.step.ID
	existing.Query = res.step.SearchQuery

	seen := make(map[string]bool, len(existing.Results))
	for _, r := range existing.Results {
		seen[r] = true
	}
	for _, r := range res.results {
		if !seen[r] {
			existing.Results = append(existing.Results, r)
			seen[r] = true
		}
	}

	seenSrc := make(map[string]bool, len(existing.Sources))
	for _, src := range existing.Sources {
		seenSrc[src] = true
	}
	for _, src := range res.sources {
		if !seenSrc[src] {
			existing.Sources = append(existing.Sources, src)
			seenSrc[src] = true
		}
	}

	return existing
}

func (n *ResearchNode) notify(stepID int, state string) {
	if n.OnStep != nil {
		n.OnStep(stepID, state)
	}
}
