package engine

import "github.com/scry-dev/scry/internal/session"

// Policy defaults applied when Start receives zero-value options.
const (
	DefaultMaxRevisions     = 3
	DefaultQualityThreshold = 0.8
)

// DefaultOptions returns the default per-session policy: up to three
// refinement passes, a 0.8 quality gate, and human approval enabled.
func DefaultOptions() session.Options {
	return session.Options{
		MaxRevisions:     DefaultMaxRevisions,
		QualityThreshold: DefaultQualityThreshold,
		HITLEnabled:      true,
	}
}

func normalizeOptions(opts session.Options) session.Options {
	if opts.MaxRevisions <= 0 {
		opts.MaxRevisions = DefaultMaxRevisions
	}
	if opts.QualityThreshold <= 0 {
		opts.QualityThreshold = DefaultQualityThreshold
	}
	return opts
}

// Next is the routing decision table. Given the state a node just ran in
// and the fields that drive branching, it returns the status to enter and
// whether entering it consumes a revision (the self-correction loop).
//
// The reviewing branch deliberately proceeds toward synthesis once the
// revision cap is reached, even when the score is below the threshold:
// termination is guaranteed over quality.
func Next(status session.Status, review *session.Review, revisionCount int, opts session.Options) (session.Status, bool) {
	switch status {
	case session.StatusPlanning:
		return session.StatusResearching, false

	case session.StatusResearching:
		return session.StatusReviewing, false

	case session.StatusReviewing:
		if (review != nil && review.Score >= opts.QualityThreshold) || revisionCount >= opts.MaxRevisions {
			if opts.HITLEnabled {
				return session.StatusAwaitingApproval, false
			}
			return session.StatusWriting, false
		}
		return session.StatusResearching, true

	case session.StatusWriting:
		return session.StatusCompleted, false
	}

	// Non-running states have no outgoing node transition.
	return status, false
}
