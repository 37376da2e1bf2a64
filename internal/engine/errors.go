package engine

import (
	"errors"
	"fmt"

	"github.com/scry-dev/scry/internal/checkpoint"
	"github.com/scry-dev/scry/internal/node"
)

// Error kinds surfaced to callers.
const (
	KindCollaborator    = "collaborator_error"
	KindPlanningFailed  = "planning_failed"
	KindMalformedReview = "malformed_review"
	KindPersistence     = "persistence_error"
	KindInvalidState    = "invalid_state"
	KindNotFound        = "not_found"
)

// Sentinel errors for engine operations.
var (
	// ErrInvalidState is returned when an operation is illegal for the
	// session's current status, e.g. resuming a completed session.
	ErrInvalidState = errors.New("invalid session state")
	// ErrInvalidDecision is returned for an unrecognized resume decision.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Error is the caller-visible failure record: a taxonomy kind, a message,
// and the session plus checkpoint sequence at the time of failure.
type Error struct {
	Kind      string
	SessionID string
	Seq       int
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v (session %s, seq %d)", e.Kind, e.Err, e.SessionID, e.Seq)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps an underlying error to its taxonomy kind.
func classify(err error) string {
	switch {
	case errors.Is(err, node.ErrPlanningFailed):
		return KindPlanningFailed
	case errors.Is(err, node.ErrMalformedReview):
		return KindMalformedReview
	case errors.Is(err, node.ErrCollaborator):
		return KindCollaborator
	case errors.Is(err, checkpoint.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidDecision):
		return KindInvalidState
	default:
		return KindPersistence
	}
}
