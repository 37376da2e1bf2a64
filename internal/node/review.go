package node

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scry-dev/scry/internal/session"
	"github.com/scry-dev/scry/prompts"
)

// Findings shown to the reviewer are truncated to keep the prompt bounded.
const (
	reviewMaxResultsPerStep = 3
	reviewMaxResultLen      = 500
)

// ReviewNode evaluates the gathered findings and produces the critique
// that drives the self-correction loop. It owns the session's review field.
type ReviewNode struct {
	Gen     Generator
	Timeout time.Duration
}

// Name implements Node.
func (n *ReviewNode) Name() string { return NameReviewer }

// Run formats the findings for evaluation and parses the critique response.
func (n *ReviewNode) Run(ctx context.Context, s session.Session) (session.Session, error) {
	out := s.Clone()

	prompt := fmt.Sprintf(
		"%s\n\nOriginal Query: %s\n\nGathered Research:\n%s\n\nCurrent Revision Count: %d\n\nPlease evaluate whether this research adequately answers the original query.",
		prompts.ReviewerSystemPrompt, s.Query, formatFindingsForReview(s), s.RevisionCount,
	)

	callCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	text, err := n.Gen.Generate(callCtx, prompt)
	if err != nil {
		return s, fmt.Errorf("%w: reviewer: %v", ErrCollaborator, err)
	}

	review, err := parseCritique(text)
	if err != nil {
		return s, err
	}

	out.Review = review
	return out, nil
}

// formatFindingsForReview renders the findings in plan order with the
// per-step truncation the reviewer prompt expects.
func formatFindingsForReview(s session.Session) string {
	ids := make([]int, 0, len(s.Findings))
	for id := range s.Findings {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		f := s.Findings[id]
		fmt.Fprintf(&b, "\n### Step %d: %s\nFindings:\n", f.StepID, f.Query)
		if len(f.Results) == 0 {
			b.WriteString("  (no findings)\n")
			continue
		}
		for i, r := range f.Results {
			if i >= reviewMaxResultsPerStep {
				break
			}
			if len(r) > reviewMaxResultLen {
				r = r[:reviewMaxResultLen] + "..."
			}
			fmt.Fprintf(&b, "  %d. %s\n", i+1, r)
		}
		if len(f.Sources) > 0 {
			max := len(f.Sources)
			if max > reviewMaxResultsPerStep {
				max = reviewMaxResultsPerStep
			}
			fmt.Fprintf(&b, "Sources: %s\n", strings.Join(f.Sources[:max], ", "))
		}
	}
	return b.String()
}

// parseCritique extracts SCORE / FEEDBACK / SUGGESTIONS lines from the
// reviewer response. A missing score, or a score still outside [0, 1]
// after normalizing percentage and fraction spellings, is a
// MalformedReview error rather than a silent clamp.
func parseCritique(text string) (*session.Review, error) {
	review := &session.Review{}
	scoreSeen := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "SCORE:"):
			raw := strings.TrimSpace(line[len("SCORE:"):])
			score, err := parseScore(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedReview, err)
			}
			review.Score = score
			scoreSeen = true
		case strings.HasPrefix(upper, "FEEDBACK:"):
			review.Feedback = strings.TrimSpace(line[len("FEEDBACK:"):])
		case strings.HasPrefix(upper, "SUGGESTIONS:"):
			raw := strings.TrimSpace(line[len("SUGGESTIONS:"):])
			if raw != "" && !strings.EqualFold(raw, "none") {
				for _, s := range strings.Split(raw, ",") {
					if s = strings.TrimSpace(s); s != "" {
						review.Suggestions = append(review.Suggestions, s)
					}
				}
			}
		}
	}

	if !scoreSeen {
		return nil, fmt.Errorf("%w: no score line in response", ErrMalformedReview)
	}
	if review.Feedback == "" {
		review.Feedback = "No detailed feedback provided."
	}
	return review, nil
}

// parseScore accepts "0.8", "0.8/1.0" and "80%" spellings.
func parseScore(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	percent := strings.Contains(raw, "%")
	raw = strings.ReplaceAll(raw, "%", "")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	raw = strings.TrimSpace(raw)

	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable score %q", raw)
	}
	if percent {
		score /= 100.0
	}
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("score %v outside [0, 1]", score)
	}
	return score, nil
}
