package node

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scry-dev/scry/internal/session"
	"github.com/scry-dev/scry/prompts"
)

// WriteNode synthesizes the final answer from the full findings and the
// latest critique. It owns the session's final answer field and runs only
// after the review gate has been satisfied.
type WriteNode struct {
	Gen     Generator
	Timeout time.Duration
}

// Name implements Node.
func (n *WriteNode) Name() string { return NameWriter }

// Run builds the synthesis prompt and records the final answer.
func (n *WriteNode) Run(ctx context.Context, s session.Session) (session.Session, error) {
	out := s.Clone()

	var b strings.Builder
	b.WriteString(prompts.WriterSystemPrompt)
	fmt.Fprintf(&b, "\n\nOriginal Query: %s\n", s.Query)

	ids := make([]int, 0, len(s.Findings))
	for id := range s.Findings {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var sources []string
	seenSrc := make(map[string]bool)
	for _, id := range ids {
		f := s.Findings[id]
		fmt.Fprintf(&b, "\n## Research for: %s\n", f.Query)
		for i, r := range f.Results {
			fmt.Fprintf(&b, "\n%d. %s\n", i+1, r)
		}
		for _, src := range f.Sources {
			if !seenSrc[src] {
				sources = append(sources, src)
				seenSrc[src] = true
			}
		}
	}

	if len(sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, src := range sources {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, src)
		}
	}

	if s.Review != nil && s.Review.Feedback != "" {
		fmt.Fprintf(&b, "\nReviewer Feedback: %s\n", s.Review.Feedback)
	}

	callCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	text, err := n.Gen.Generate(callCtx, b.String())
	if err != nil {
		return s, fmt.Errorf("%w: writer: %v", ErrCollaborator, err)
	}
	if strings.TrimSpace(text) == "" {
		return s, fmt.Errorf("%w: writer returned empty answer", ErrCollaborator)
	}

	out.FinalAnswer = text
	return out, nil
}
