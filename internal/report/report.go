// Package report renders a completed research session as a markdown
// document: the query, the plan with findings, the review verdict, and
// the synthesized answer with its sources.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scry-dev/scry/internal/session"
)

// Report holds the aggregated data for a research session document.
type Report struct {
	SessionID   string
	Query       string
	Status      session.Status
	Steps       []StepReport
	Score       float64
	HasReview   bool
	Feedback    string
	Revisions   int
	FinalAnswer string
	Sources     []string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// StepReport is one plan step with its research outcome.
type StepReport struct {
	ID          int
	Task        string
	Query       string
	ResultCount int
	Sources     []string
}

// Generate builds a Report from a session snapshot. Sessions in any state
// are accepted; an in-flight session simply yields a partial document.
func Generate(s session.Session) *Report {
	r := &Report{
		SessionID:   s.ID,
		Query:       s.Query,
		Status:      s.Status,
		Revisions:   s.RevisionCount,
		FinalAnswer: s.FinalAnswer,
		StartedAt:   s.CreatedAt,
		FinishedAt:  s.UpdatedAt,
	}

	if s.Review != nil {
		r.HasReview = true
		r.Score = s.Review.Score
		r.Feedback = s.Review.Feedback
	}

	seen := make(map[string]bool)
	for _, step := range s.Plan {
		sr := StepReport{ID: step.ID, Task: step.Task, Query: step.SearchQuery}
		if f, ok := s.Findings[step.ID]; ok {
			sr.ResultCount = len(f.Results)
			sr.Sources = append(sr.Sources, f.Sources...)
			for _, src := range f.Sources {
				if !seen[src] {
					seen[src] = true
					r.Sources = append(r.Sources, src)
				}
			}
		}
		r.Steps = append(r.Steps, sr)
	}
	sort.Strings(r.Sources)

	return r
}

// FormatMarkdown renders the report as a markdown document.
func FormatMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research Report\n\n")
	fmt.Fprintf(&b, "**Query:** %s\n\n", r.Query)
	fmt.Fprintf(&b, "**Session:** `%s`  \n", r.SessionID)
	fmt.Fprintf(&b, "**Status:** %s  \n", r.Status)
	if r.HasReview {
		fmt.Fprintf(&b, "**Review score:** %.2f  \n", r.Score)
	}
	fmt.Fprintf(&b, "**Revisions:** %d\n\n", r.Revisions)

	if len(r.Steps) > 0 {
		fmt.Fprintf(&b, "## Research Plan\n\n")
		for _, step := range r.Steps {
			fmt.Fprintf(&b, "%d. %s", step.ID, step.Task)
			if step.ResultCount > 0 {
				fmt.Fprintf(&b, " (%d results)", step.ResultCount)
			}
			fmt.Fprintf(&b, "\n")
		}
		fmt.Fprintf(&b, "\n")
	}

	if r.FinalAnswer != "" {
		fmt.Fprintf(&b, "## Answer\n\n%s\n\n", r.FinalAnswer)
	}

	if r.HasReview && r.Feedback != "" {
		fmt.Fprintf(&b, "## Reviewer Notes\n\n%s\n\n", r.Feedback)
	}

	if len(r.Sources) > 0 {
		fmt.Fprintf(&b, "## Sources\n\n")
		for i, src := range r.Sources {
			fmt.Fprintf(&b, "%d. %s\n", i+1, src)
		}
		fmt.Fprintf(&b, "\n")
	}

	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "---\nGenerated from the session's latest checkpoint (last update %s).\n",
			r.FinishedAt.UTC().Format(time.RFC3339))
	}

	return b.String()
}
