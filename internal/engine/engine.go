// Package engine drives the research workflow: it selects the next node
// from the session's status, runs it, commits a checkpoint after every
// step, and honors the suspension and termination rules.
//
// Suspension is cooperative and stackless: when a session reaches
// awaiting_approval the engine commits the suspended snapshot and returns;
// Resume is a fresh entry point that folds the external decision into the
// state and continues the loop. The durable checkpoint, not a parked
// goroutine, carries the continuation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scry-dev/scry/internal/checkpoint"
	"github.com/scry-dev/scry/internal/log"
	"github.com/scry-dev/scry/internal/node"
	"github.com/scry-dev/scry/internal/session"
)

// Checkpoint node labels for transitions that are not node executions.
const (
	nodeResume = "resume"
	nodeAbort  = "abort"
	nodeReplay = "replay"
)

// Store is the checkpoint persistence the engine depends on.
// *checkpoint.Store satisfies it; tests may substitute a failing store.
type Store interface {
	Append(snap session.Session, nodeName string) (int, error)
	Latest(sessionID string) (checkpoint.Checkpoint, error)
	Restore(sessionID string, seq int) (checkpoint.Checkpoint, error)
	List(sessionID string) ([]checkpoint.Summary, error)
}

// Nodes holds the four workflow processing units.
type Nodes struct {
	Plan     node.Node
	Research node.Node
	Review   node.Node
	Write    node.Node
}

// Engine coordinates node execution and checkpoint persistence.
type Engine struct {
	store  Store
	nodes  Nodes
	logger *log.Logger
	clock  func() time.Time
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger attaches the JSONL event log. Logging failures never fail
// the workflow.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New wires a workflow engine to its checkpoint store and nodes.
func New(store Store, nodes Nodes, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: checkpoint store is required")
	}
	if nodes.Plan == nil || nodes.Research == nil || nodes.Review == nil || nodes.Write == nil {
		return nil, fmt.Errorf("engine: all four nodes are required")
	}
	e := &Engine{
		store: store,
		nodes: nodes,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Decision is an external approval-gate decision supplied to Resume.
type Decision struct {
	Kind     string // approve | feedback | reject
	Feedback string // required for feedback
}

// Start creates a new session, commits checkpoint 0, and runs the workflow
// until it suspends or terminates. An empty sessionID generates one.
func (e *Engine) Start(ctx context.Context, query, sessionID string, opts session.Options) (session.Session, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return session.Session{}, &Error{Kind: KindInvalidState, SessionID: sessionID, Err: fmt.Errorf("%w: empty query", ErrInvalidState)}
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if _, err := e.store.Latest(sessionID); err == nil {
		return session.Session{}, &Error{Kind: KindInvalidState, SessionID: sessionID, Err: fmt.Errorf("%w: session %s already exists", ErrInvalidState, sessionID)}
	} else if !errors.Is(err, checkpoint.ErrNotFound) {
		return session.Session{}, &Error{Kind: KindPersistence, SessionID: sessionID, Err: err}
	}

	s := session.New(sessionID, query, e.clock())
	s.Options = normalizeOptions(opts)

	seq, err := e.store.Append(s, checkpoint.NodeInitial)
	if err != nil {
		// The store refuses a second initial checkpoint, closing the window
		// between the existence check above and the commit.
		if errors.Is(err, checkpoint.ErrSessionExists) {
			return session.Session{}, &Error{Kind: KindInvalidState, SessionID: sessionID,
				Err: fmt.Errorf("%w: session %s already exists", ErrInvalidState, sessionID)}
		}
		return session.Session{}, &Error{Kind: KindPersistence, SessionID: sessionID, Err: err}
	}
	e.logEvent(log.Event{Event: log.EventSessionStarted, SessionID: sessionID, Seq: seq, Status: string(s.Status)})

	return e.run(ctx, s)
}

// Status returns the session's current snapshot: the checkpoint with the
// highest sequence number.
func (e *Engine) Status(sessionID string) (session.Session, error) {
	cp, err := e.store.Latest(sessionID)
	if err != nil {
		return session.Session{}, &Error{Kind: classify(err), SessionID: sessionID, Err: err}
	}
	return cp.Session, nil
}

// ListCheckpoints returns checkpoint summaries for the session, oldest first.
func (e *Engine) ListCheckpoints(sessionID string) ([]checkpoint.Summary, error) {
	summaries, err := e.store.List(sessionID)
	if err != nil {
		return nil, &Error{Kind: KindPersistence, SessionID: sessionID, Err: err}
	}
	if len(summaries) == 0 {
		return nil, &Error{Kind: KindNotFound, SessionID: sessionID, Err: checkpoint.ErrNotFound}
	}
	return summaries, nil
}

// RestoreCheckpoint returns the snapshot at a historical sequence number.
// It is a read-only peek; it does not continue execution.
func (e *Engine) RestoreCheckpoint(sessionID string, seq int) (checkpoint.Checkpoint, error) {
	cp, err := e.store.Restore(sessionID, seq)
	if err != nil {
		return checkpoint.Checkpoint{}, &Error{Kind: classify(err), SessionID: sessionID, Seq: seq, Err: err}
	}
	return cp, nil
}

// Resume consumes the pending decision of a suspended session and continues
// execution until the next suspension or terminal state.
func (e *Engine) Resume(ctx context.Context, sessionID string, decision Decision) (session.Session, error) {
	cp, err := e.store.Latest(sessionID)
	if err != nil {
		return session.Session{}, &Error{Kind: classify(err), SessionID: sessionID, Err: err}
	}
	s := cp.Session

	if s.Status != session.StatusAwaitingApproval {
		return s, &Error{
			Kind: KindInvalidState, SessionID: sessionID, Seq: cp.Seq,
			Err: fmt.Errorf("%w: session is %s, not awaiting_approval", ErrInvalidState, s.Status),
		}
	}

	switch decision.Kind {
	case session.DecisionApprove:
		s.Status = session.StatusWriting

	case session.DecisionFeedback:
		if strings.TrimSpace(decision.Feedback) == "" {
			return s, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: cp.Seq,
				Err: fmt.Errorf("%w: feedback decision requires text", ErrInvalidDecision)}
		}
		if s.Review == nil {
			s.Review = &session.Review{}
		}
		if s.Review.Feedback != "" {
			s.Review.Feedback += "\n\nHuman feedback: " + decision.Feedback
		} else {
			s.Review.Feedback = "Human feedback: " + decision.Feedback
		}
		// A forced pass consumes exactly one revision, even past the cap;
		// the cap check then sends the next review straight to synthesis.
		s.RevisionCount++
		s.ReopenSteps()
		s.Status = session.StatusResearching

	case session.DecisionReject:
		s.Status = session.StatusAborted

	default:
		return s, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: cp.Seq,
			Err: fmt.Errorf("%w: %q", ErrInvalidDecision, decision.Kind)}
	}

	s.Pending = nil
	s.UpdatedAt = e.clock()

	seq, err := e.store.Append(s, nodeResume)
	if err != nil {
		if errors.Is(err, checkpoint.ErrSessionAborted) {
			return cp.Session, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: cp.Seq,
				Err: fmt.Errorf("%w: session was aborted", ErrInvalidState)}
		}
		return cp.Session, &Error{Kind: KindPersistence, SessionID: sessionID, Seq: cp.Seq, Err: err}
	}
	e.logEvent(log.Event{Event: log.EventDecisionApplied, SessionID: sessionID, Seq: seq, Decision: decision.Kind, Status: string(s.Status)})

	if s.Status == session.StatusAborted {
		e.logEvent(log.Event{Event: log.EventSessionAborted, SessionID: sessionID, Seq: seq})
		return s, nil
	}
	return e.run(ctx, s)
}

// Continue picks up an interrupted session from its latest checkpoint.
// Suspended sessions are returned as-is (they continue via Resume);
// terminal sessions are an InvalidState error.
func (e *Engine) Continue(ctx context.Context, sessionID string) (session.Session, error) {
	cp, err := e.store.Latest(sessionID)
	if err != nil {
		return session.Session{}, &Error{Kind: classify(err), SessionID: sessionID, Err: err}
	}
	s := cp.Session

	if s.Status.Terminal() {
		return s, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: cp.Seq,
			Err: fmt.Errorf("%w: session is %s", ErrInvalidState, s.Status)}
	}
	if s.Status == session.StatusAwaitingApproval {
		return s, nil
	}
	return e.run(ctx, s)
}

// Replay restores a historical checkpoint and continues execution from it.
// The restored snapshot is re-committed at a new sequence number, so the
// branch point is itself recorded and later checkpoints stay untouched.
func (e *Engine) Replay(ctx context.Context, sessionID string, fromSeq int) (session.Session, error) {
	cp, err := e.store.Restore(sessionID, fromSeq)
	if err != nil {
		return session.Session{}, &Error{Kind: classify(err), SessionID: sessionID, Seq: fromSeq, Err: err}
	}
	s := cp.Session

	if s.Status.Terminal() {
		return s, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: fromSeq,
			Err: fmt.Errorf("%w: checkpoint %d is %s", ErrInvalidState, fromSeq, s.Status)}
	}

	s.UpdatedAt = e.clock()
	seq, err := e.store.Append(s, nodeReplay)
	if err != nil {
		if errors.Is(err, checkpoint.ErrSessionAborted) {
			return session.Session{}, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: fromSeq,
				Err: fmt.Errorf("%w: session is aborted", ErrInvalidState)}
		}
		return session.Session{}, &Error{Kind: KindPersistence, SessionID: sessionID, Seq: fromSeq, Err: err}
	}
	e.logEvent(log.Event{Event: log.EventReplayStarted, SessionID: sessionID, Seq: seq, Status: string(s.Status)})

	if s.Status == session.StatusAwaitingApproval {
		return s, nil
	}
	return e.run(ctx, s)
}

// Abort terminates the session. Once the aborted checkpoint is committed
// the store refuses every later append for the session, so an in-flight
// node result is discarded rather than merged.
func (e *Engine) Abort(sessionID string) (session.Session, error) {
	cp, err := e.store.Latest(sessionID)
	if err != nil {
		return session.Session{}, &Error{Kind: classify(err), SessionID: sessionID, Err: err}
	}
	s := cp.Session

	if s.Status.Terminal() {
		return s, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: cp.Seq,
			Err: fmt.Errorf("%w: session is already %s", ErrInvalidState, s.Status)}
	}

	s.Status = session.StatusAborted
	s.Pending = nil
	s.UpdatedAt = e.clock()

	seq, err := e.store.Append(s, nodeAbort)
	if err != nil {
		if errors.Is(err, checkpoint.ErrSessionAborted) {
			return s, &Error{Kind: KindInvalidState, SessionID: sessionID, Seq: cp.Seq,
				Err: fmt.Errorf("%w: session is already aborted", ErrInvalidState)}
		}
		return cp.Session, &Error{Kind: KindPersistence, SessionID: sessionID, Seq: cp.Seq, Err: err}
	}
	e.logEvent(log.Event{Event: log.EventSessionAborted, SessionID: sessionID, Seq: seq})
	return s, nil
}

// run executes nodes until the session suspends or terminates. Each
// iteration commits exactly one checkpoint; the engine never advances past
// an uncommitted write.
func (e *Engine) run(ctx context.Context, s session.Session) (session.Session, error) {
	for s.Status.Running() {
		if err := ctx.Err(); err != nil {
			return e.abortOnCancel(s)
		}

		n := e.nodeFor(s.Status)

		next, err := n.Run(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return e.abortOnCancel(s)
			}
			return e.fail(s, n.Name(), err)
		}

		nextStatus, revise := Next(next.Status, next.Review, next.RevisionCount, next.Options)
		if revise {
			next.RevisionCount++
			next.ReopenSteps()
		}
		if nextStatus == session.StatusAwaitingApproval {
			next.Pending = &session.PendingDecision{
				Options:     []string{session.DecisionApprove, session.DecisionFeedback, session.DecisionReject},
				RequestedAt: e.clock(),
			}
		}
		next.Status = nextStatus
		next.UpdatedAt = e.clock()

		seq, err := e.store.Append(next, n.Name())
		if err != nil {
			// An abort committed while the node was in flight makes the
			// store refuse the result; honor the abort and discard it.
			if errors.Is(err, checkpoint.ErrSessionAborted) {
				return e.abortedSnapshot(s)
			}
			return s, &Error{Kind: KindPersistence, SessionID: s.ID, Err: err}
		}
		e.logNode(n.Name(), next, seq, revise)

		if next.Status == session.StatusAwaitingApproval {
			return next, nil
		}
		if next.Status.Terminal() {
			return next, nil
		}
		s = next
	}
	return s, nil
}

func (e *Engine) nodeFor(status session.Status) node.Node {
	switch status {
	case session.StatusPlanning:
		return e.nodes.Plan
	case session.StatusResearching:
		return e.nodes.Research
	case session.StatusReviewing:
		return e.nodes.Review
	default:
		return e.nodes.Write
	}
}

// fail commits a failed checkpoint and surfaces the taxonomy error.
// Plan, Review, and Write failures are session-fatal; Research absorbs its
// per-step failures internally, so any error from it lands here only on
// cancellation, handled by the caller.
func (e *Engine) fail(s session.Session, nodeName string, cause error) (session.Session, error) {
	kind := classify(cause)
	s.Status = session.StatusFailed
	s.Failure = &session.Failure{Kind: kind, Message: cause.Error()}
	s.UpdatedAt = e.clock()

	seq, err := e.store.Append(s, nodeName)
	if err != nil {
		if errors.Is(err, checkpoint.ErrSessionAborted) {
			return e.abortedSnapshot(s)
		}
		return s, &Error{Kind: KindPersistence, SessionID: s.ID, Err: err}
	}
	e.logEvent(log.Event{Event: log.EventSessionFailed, SessionID: s.ID, Seq: seq, Node: nodeName, Error: cause.Error()})

	return s, &Error{Kind: kind, SessionID: s.ID, Seq: seq, Err: cause}
}

func (e *Engine) abortOnCancel(s session.Session) (session.Session, error) {
	// The caller's context was cancelled; record the abort. If one is
	// already committed the store refuses the duplicate.
	s.Status = session.StatusAborted
	s.Pending = nil
	s.UpdatedAt = e.clock()
	seq, err := e.store.Append(s, nodeAbort)
	if errors.Is(err, checkpoint.ErrSessionAborted) {
		return e.abortedSnapshot(s)
	}
	if err == nil {
		e.logEvent(log.Event{Event: log.EventSessionAborted, SessionID: s.ID, Seq: seq})
	}
	return s, nil
}

// abortedSnapshot returns the committed aborted checkpoint after the store
// refused a write, falling back to marking the in-memory snapshot.
func (e *Engine) abortedSnapshot(s session.Session) (session.Session, error) {
	if latest, err := e.store.Latest(s.ID); err == nil {
		return latest.Session, nil
	}
	s.Status = session.StatusAborted
	s.Pending = nil
	return s, nil
}

func (e *Engine) logNode(nodeName string, s session.Session, seq int, revise bool) {
	switch nodeName {
	case node.NamePlanner:
		e.logEvent(log.Event{Event: log.EventPlanCreated, SessionID: s.ID, Seq: seq, Node: nodeName, Steps: len(s.Plan), Status: string(s.Status)})
	case node.NameResearcher:
		e.logEvent(log.Event{Event: log.EventStepsResearched, SessionID: s.ID, Seq: seq, Node: nodeName, Steps: len(s.Plan), Status: string(s.Status)})
	case node.NameReviewer:
		score := 0.0
		if s.Review != nil {
			score = s.Review.Score
		}
		e.logEvent(log.Event{Event: log.EventReviewScored, SessionID: s.ID, Seq: seq, Node: nodeName, Score: score, Revision: s.RevisionCount, Status: string(s.Status)})
		if revise {
			e.logEvent(log.Event{Event: log.EventRevisionStarted, SessionID: s.ID, Seq: seq, Revision: s.RevisionCount})
		}
		if s.Status == session.StatusAwaitingApproval {
			e.logEvent(log.Event{Event: log.EventAwaitingApproval, SessionID: s.ID, Seq: seq})
		}
	case node.NameWriter:
		e.logEvent(log.Event{Event: log.EventSessionCompleted, SessionID: s.ID, Seq: seq, Status: string(s.Status)})
	}
}

func (e *Engine) logEvent(event log.Event) {
	if e.logger == nil {
		return
	}
	_ = e.logger.Append(event)
}
