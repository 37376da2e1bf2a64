package report

import (
	"strings"
	"testing"

	"github.com/scry-dev/scry/internal/session"
	"github.com/scry-dev/scry/internal/testutil"
)

func TestGenerateCompletedSession(t *testing.T) {
	s := testutil.CompletedSession(t, "rep-1")

	r := Generate(s)
	if r.SessionID != "rep-1" {
		t.Errorf("session id = %s", r.SessionID)
	}
	if len(r.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(r.Steps))
	}
	if r.Steps[0].ResultCount != 1 {
		t.Errorf("step 1 results = %d", r.Steps[0].ResultCount)
	}
	if !r.HasReview || r.Score != 0.85 {
		t.Errorf("review = %v score %g", r.HasReview, r.Score)
	}
	if len(r.Sources) != 2 {
		t.Fatalf("sources = %v", r.Sources)
	}
	// Sources are sorted and deduplicated.
	if r.Sources[0] != "https://example.org/fresnel" {
		t.Errorf("sources not sorted: %v", r.Sources)
	}
}

func TestGenerateDeduplicatesSources(t *testing.T) {
	s := testutil.CompletedSession(t, "rep-2")
	f := s.Findings[2]
	f.Sources = append(f.Sources, "https://example.org/pharos")
	s.Findings[2] = f

	r := Generate(s)
	if len(r.Sources) != 2 {
		t.Errorf("sources = %v, want 2 unique", r.Sources)
	}
}

func TestGeneratePartialSession(t *testing.T) {
	s := testutil.ResearchedSession(t, "rep-3")

	r := Generate(s)
	if r.HasReview {
		t.Error("unreviewed session reports a review")
	}
	if r.FinalAnswer != "" {
		t.Errorf("answer = %q", r.FinalAnswer)
	}
	if r.Status != session.StatusReviewing {
		t.Errorf("status = %s", r.Status)
	}
}

func TestFormatMarkdown(t *testing.T) {
	r := Generate(testutil.CompletedSession(t, "rep-4"))

	doc := FormatMarkdown(r)
	for _, want := range []string{
		"# Research Report",
		"history of lighthouses",
		"## Research Plan",
		"## Answer",
		"## Sources",
		"https://example.org/pharos",
		"0.85",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestFormatMarkdownPartial(t *testing.T) {
	r := Generate(testutil.ResearchedSession(t, "rep-5"))

	doc := FormatMarkdown(r)
	if strings.Contains(doc, "## Answer") {
		t.Error("partial document has an answer section")
	}
	if !strings.Contains(doc, "## Research Plan") {
		t.Error("partial document missing the plan")
	}
}
