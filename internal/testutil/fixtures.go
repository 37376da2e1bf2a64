// Package testutil provides session fixtures shared across scry tests.
package testutil

import (
	"testing"
	"time"

	"github.com/scry-dev/scry/internal/session"
)

// FixtureTime is the deterministic base timestamp used by fixtures.
var FixtureTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// ResearchedSession returns a session with a two-step plan and findings
// recorded for every step, positioned at the reviewing state.
func ResearchedSession(t *testing.T, id string) session.Session {
	t.Helper()

	s := session.New(id, "history of lighthouses", FixtureTime)
	s.Status = session.StatusReviewing
	s.Options = session.Options{MaxRevisions: 3, QualityThreshold: 0.8, HITLEnabled: true}
	s.Plan = []session.PlanStep{
		{ID: 1, Task: "Trace the origins of lighthouse construction", SearchQuery: "ancient lighthouse history", Done: true},
		{ID: 2, Task: "Explain the Fresnel lens breakthrough", SearchQuery: "fresnel lens lighthouse optics", Done: true},
	}
	s.Findings = map[int]session.Finding{
		1: {
			StepID:  1,
			Query:   "ancient lighthouse history",
			Results: []string{"The Pharos of Alexandria guided ships from around 280 BC."},
			Sources: []string{"https://example.org/pharos"},
		},
		2: {
			StepID:  2,
			Query:   "fresnel lens lighthouse optics",
			Results: []string{"Fresnel's 1822 lens multiplied the reach of lighthouse beams."},
			Sources: []string{"https://example.org/fresnel"},
		},
	}
	s.UpdatedAt = FixtureTime.Add(time.Minute)
	return s
}

// CompletedSession returns a reviewed and synthesized session in the
// completed state.
func CompletedSession(t *testing.T, id string) session.Session {
	t.Helper()

	s := ResearchedSession(t, id)
	s.Status = session.StatusCompleted
	s.Review = &session.Review{
		Score:    0.85,
		Feedback: "Coverage is solid; the optics section is the strongest.",
	}
	s.FinalAnswer = "Lighthouses evolved from open fires on headlands to engineered optical systems [1][2]."
	s.UpdatedAt = FixtureTime.Add(2 * time.Minute)
	return s
}
