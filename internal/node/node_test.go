package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scry-dev/scry/internal/session"
)

type fakeGen struct {
	reply      string
	err        error
	lastPrompt string
}

func (g *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	g.lastPrompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]SearchResult
	failOn  map[string]bool
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]SearchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.mu.Unlock()
	if f.failOn[query] {
		return nil, errors.New("search backend down")
	}
	return f.results[query], nil
}

func baseSession() session.Session {
	return session.New("s-1", "impact of tidal power", time.Now())
}

func TestPlanParsesSteps(t *testing.T) {
	gen := &fakeGen{reply: `STEP 1: Survey existing tidal power plants
SEARCH: tidal power plants in operation 2024

STEP 2: Environmental impact studies
SEARCH: tidal turbine environmental impact

STEP 3: Cost comparison with offshore wind
SEARCH: tidal power cost per MWh vs offshore wind`}

	n := &PlanNode{Gen: gen}
	out, err := n.Run(context.Background(), baseSession())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Plan) != 3 {
		t.Fatalf("len(Plan) = %d, want 3", len(out.Plan))
	}
	if out.Plan[0].Task != "Survey existing tidal power plants" {
		t.Errorf("step 1 task = %q", out.Plan[0].Task)
	}
	if out.Plan[1].SearchQuery != "tidal turbine environmental impact" {
		t.Errorf("step 2 query = %q", out.Plan[1].SearchQuery)
	}
	for i, step := range out.Plan {
		if step.ID != i+1 {
			t.Errorf("step %d id = %d", i, step.ID)
		}
		if step.Done {
			t.Errorf("step %d should start incomplete", i)
		}
	}
}

func TestPlanStepWithoutSearchFallsBackToTask(t *testing.T) {
	gen := &fakeGen{reply: "STEP 1: Look at grid integration challenges"}
	n := &PlanNode{Gen: gen}
	out, err := n.Run(context.Background(), baseSession())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Plan[0].SearchQuery != out.Plan[0].Task {
		t.Errorf("query = %q, want task fallback", out.Plan[0].SearchQuery)
	}
}

func TestPlanProseFallsBackToSingleStep(t *testing.T) {
	gen := &fakeGen{reply: "I would look into tidal stream generators first."}
	n := &PlanNode{Gen: gen}
	out, err := n.Run(context.Background(), baseSession())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Plan) != 1 {
		t.Fatalf("len(Plan) = %d, want 1", len(out.Plan))
	}
	if out.Plan[0].SearchQuery != "impact of tidal power" {
		t.Errorf("fallback query = %q", out.Plan[0].SearchQuery)
	}
}

func TestPlanEmptyResponseFails(t *testing.T) {
	n := &PlanNode{Gen: &fakeGen{reply: "  \n "}}
	_, err := n.Run(context.Background(), baseSession())
	if !errors.Is(err, ErrPlanningFailed) {
		t.Errorf("err = %v, want ErrPlanningFailed", err)
	}
}

func TestPlanCollaboratorError(t *testing.T) {
	n := &PlanNode{Gen: &fakeGen{err: errors.New("rate limited")}}
	_, err := n.Run(context.Background(), baseSession())
	if !errors.Is(err, ErrCollaborator) {
		t.Errorf("err = %v, want ErrCollaborator", err)
	}
}

func TestPlanDoesNotMutateInput(t *testing.T) {
	gen := &fakeGen{reply: "STEP 1: a\nSEARCH: b"}
	n := &PlanNode{Gen: gen}
	in := baseSession()
	if _, err := n.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if in.Plan != nil {
		t.Error("input session was mutated")
	}
}

func researchSession() session.Session {
	s := baseSession()
	s.Plan = []session.PlanStep{
		{ID: 1, Task: "a", SearchQuery: "q1"},
		{ID: 2, Task: "b", SearchQuery: "q2"},
		{ID: 3, Task: "c", SearchQuery: "q3"},
	}
	return s
}

func TestResearchSearchesEveryIncompleteStep(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{
		"q1": {{Snippet: "r1", URL: "u1"}},
		"q2": {{Snippet: "r2", URL: "u2"}},
		"q3": {{Snippet: "r3", URL: "u3"}},
	}}
	n := &ResearchNode{Search: searcher}

	out, err := n.Run(context.Background(), researchSession())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(searcher.calls) != 3 {
		t.Errorf("search calls = %d, want 3", len(searcher.calls))
	}
	if !out.AllStepsAttempted() {
		t.Error("all steps should be marked done")
	}
	for id := 1; id <= 3; id++ {
		f, ok := out.Findings[id]
		if !ok {
			t.Fatalf("no finding for step %d", id)
		}
		want := fmt.Sprintf("r%d", id)
		if len(f.Results) != 1 || f.Results[0] != want {
			t.Errorf("step %d results = %v, want [%s]", id, f.Results, want)
		}
	}
}

func TestResearchSkipsCompletedSteps(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{}}
	s := researchSession()
	s.Plan[0].Done = true

	n := &ResearchNode{Search: searcher}
	if _, err := n.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, q := range searcher.calls {
		if q == "q1" {
			t.Error("completed step was re-searched")
		}
	}
}

func TestResearchPartialFailureAbsorbed(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]SearchResult{
			"q1": {{Snippet: "r1"}},
			"q3": {{Snippet: "r3"}},
		},
		failOn: map[string]bool{"q2": true},
	}
	n := &ResearchNode{Search: searcher}

	out, err := n.Run(context.Background(), researchSession())
	if err != nil {
		t.Fatalf("one failed step must not fail the node: %v", err)
	}
	if !out.AllStepsAttempted() {
		t.Error("failed step should still count as attempted")
	}
	if got := out.Findings[2]; len(got.Results) != 0 {
		t.Errorf("failed step findings = %v, want none", got.Results)
	}
	if len(out.Findings[1].Results) != 1 || len(out.Findings[3].Results) != 1 {
		t.Error("successful steps should keep their findings")
	}
}

func TestResearchRefinementAppendsWithoutDuplicates(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]SearchResult{
		"q1": {{Snippet: "old", URL: "u1"}, {Snippet: "new", URL: "u2"}},
	}}
	s := baseSession()
	s.Plan = []session.PlanStep{{ID: 1, Task: "a", SearchQuery: "q1"}}
	s.Findings = map[int]session.Finding{
		1: {StepID: 1, Query: "q1", Results: []string{"old"}, Sources: []string{"u1"}},
	}

	n := &ResearchNode{Search: searcher}
	out, err := n.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	f := out.Findings[1]
	if len(f.Results) != 2 {
		t.Fatalf("results = %v, want old+new", f.Results)
	}
	if f.Results[0] != "old" || f.Results[1] != "new" {
		t.Errorf("results order = %v", f.Results)
	}
	if len(f.Sources) != 2 {
		t.Errorf("sources = %v, want deduped u1,u2", f.Sources)
	}
}

func TestResearchReportsProgress(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]SearchResult{"q1": {{Snippet: "r"}}},
		failOn:  map[string]bool{"q2": true},
	}
	var mu sync.Mutex
	states := make(map[int][]string)

	s := baseSession()
	s.Plan = []session.PlanStep{
		{ID: 1, SearchQuery: "q1", Task: "a"},
		{ID: 2, SearchQuery: "q2", Task: "b"},
	}
	n := &ResearchNode{Search: searcher, OnStep: func(id int, state string) {
		mu.Lock()
		states[id] = append(states[id], state)
		mu.Unlock()
	}}
	if _, err := n.Run(context.Background(), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := states[1]; len(got) != 2 || got[1] != StepDone {
		t.Errorf("step 1 states = %v", got)
	}
	if got := states[2]; len(got) != 2 || got[1] != StepFailed {
		t.Errorf("step 2 states = %v", got)
	}
}

func reviewSession() session.Session {
	s := baseSession()
	s.Plan = []session.PlanStep{{ID: 1, SearchQuery: "q1", Done: true}}
	s.Findings = map[int]session.Finding{
		1: {StepID: 1, Query: "q1", Results: []string{"r1"}, Sources: []string{"u1"}},
	}
	return s
}

func TestReviewParsesCritique(t *testing.T) {
	gen := &fakeGen{reply: `SCORE: 0.85
FEEDBACK: Solid coverage of the main aspects.
SUGGESTIONS: None
SHOULD_REFINE: NO`}
	n := &ReviewNode{Gen: gen}

	out, err := n.Run(context.Background(), reviewSession())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Review == nil {
		t.Fatal("review not set")
	}
	if out.Review.Score != 0.85 {
		t.Errorf("score = %v, want 0.85", out.Review.Score)
	}
	if out.Review.Feedback != "Solid coverage of the main aspects." {
		t.Errorf("feedback = %q", out.Review.Feedback)
	}
	if len(out.Review.Suggestions) != 0 {
		t.Errorf("suggestions = %v, want none", out.Review.Suggestions)
	}
	if !strings.Contains(gen.lastPrompt, "r1") {
		t.Error("prompt should include the findings")
	}
}

func TestReviewSuggestionsParsed(t *testing.T) {
	gen := &fakeGen{reply: "SCORE: 0.4\nFEEDBACK: Thin.\nSUGGESTIONS: more sources, cover costs"}
	n := &ReviewNode{Gen: gen}
	out, err := n.Run(context.Background(), reviewSession())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Review.Suggestions) != 2 {
		t.Errorf("suggestions = %v, want 2", out.Review.Suggestions)
	}
}

func TestReviewScoreSpellings(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"SCORE: 0.8", 0.8},
		{"SCORE: 0.8/1.0", 0.8},
		{"SCORE: 80%", 0.8},
	}
	for _, tt := range tests {
		n := &ReviewNode{Gen: &fakeGen{reply: tt.raw + "\nFEEDBACK: ok"}}
		out, err := n.Run(context.Background(), reviewSession())
		if err != nil {
			t.Errorf("%q: %v", tt.raw, err)
			continue
		}
		if out.Review.Score != tt.want {
			t.Errorf("%q: score = %v, want %v", tt.raw, out.Review.Score, tt.want)
		}
	}
}

func TestReviewMalformedScore(t *testing.T) {
	for _, reply := range []string{
		"SCORE: 1.7\nFEEDBACK: x",
		"SCORE: -0.2\nFEEDBACK: x",
		"SCORE: excellent\nFEEDBACK: x",
		"FEEDBACK: no score at all",
	} {
		n := &ReviewNode{Gen: &fakeGen{reply: reply}}
		_, err := n.Run(context.Background(), reviewSession())
		if !errors.Is(err, ErrMalformedReview) {
			t.Errorf("reply %q: err = %v, want ErrMalformedReview", reply, err)
		}
	}
}

func TestWriteSynthesizesAnswer(t *testing.T) {
	gen := &fakeGen{reply: "Tidal power is promising but site-limited."}
	s := reviewSession()
	s.Review = &session.Review{Score: 0.9, Feedback: "good"}

	n := &WriteNode{Gen: gen}
	out, err := n.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.FinalAnswer == "" {
		t.Error("final answer not set")
	}
	if !strings.Contains(gen.lastPrompt, "u1") {
		t.Error("prompt should list sources")
	}
	if !strings.Contains(gen.lastPrompt, "Reviewer Feedback: good") {
		t.Error("prompt should carry reviewer feedback")
	}
}

func TestWriteEmptyAnswerFails(t *testing.T) {
	n := &WriteNode{Gen: &fakeGen{reply: "   "}}
	_, err := n.Run(context.Background(), reviewSession())
	if !errors.Is(err, ErrCollaborator) {
		t.Errorf("err = %v, want ErrCollaborator", err)
	}
}
