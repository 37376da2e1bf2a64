// Package session defines the research session value object that flows
// through every workflow node. Sessions are treated as immutable snapshots:
// nodes and the engine work on copies and commit new snapshots to the
// checkpoint store, never editing a previous one.
package session

import "time"

// Status is the workflow state a session is currently in.
type Status string

const (
	StatusPlanning         Status = "planning"
	StatusResearching      Status = "researching"
	StatusReviewing        Status = "reviewing"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusWriting          Status = "writing"
	StatusCompleted        Status = "completed"
	StatusAborted          Status = "aborted"
	StatusFailed           Status = "failed"
)

// Running reports whether the session is in an in-flight machine state,
// i.e. the engine has a node to execute for it.
func (s Status) Running() bool {
	switch s {
	case StatusPlanning, StatusResearching, StatusReviewing, StatusWriting:
		return true
	}
	return false
}

// Terminal reports whether no further execution is possible for the session.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusFailed:
		return true
	}
	return false
}

// PlanStep is a single sub-task produced by the planner.
type PlanStep struct {
	ID          int    `json:"id"`
	Task        string `json:"task"`
	SearchQuery string `json:"search_query"`
	Done        bool   `json:"done"`
}

// Finding holds the research results gathered for one plan step.
// Results accumulate across refinement passes; a new pass appends to
// Results rather than replacing it.
type Finding struct {
	StepID  int      `json:"step_id"`
	Query   string   `json:"query"`
	Results []string `json:"results"`
	Sources []string `json:"sources,omitempty"`
}

// Review is the latest critique of the gathered findings.
type Review struct {
	Score       float64  `json:"score"` // always within [0, 1]
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Decision kinds accepted while a session awaits approval.
const (
	DecisionApprove  = "approve"
	DecisionFeedback = "feedback"
	DecisionReject   = "reject"
)

// PendingDecision describes the external input required to resume a
// suspended session. It is set exactly when Status is awaiting_approval
// and cleared by the resume call that supplies a decision.
type PendingDecision struct {
	Options     []string  `json:"options"`
	RequestedAt time.Time `json:"requested_at"`
}

// Failure records why a session transitioned to failed.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Options is the per-session workflow policy. It is recorded in the session
// snapshot so that resumed and replayed runs keep the policy they started
// with, and concurrent sessions can run under different policies.
type Options struct {
	MaxRevisions     int     `json:"max_revisions"`
	QualityThreshold float64 `json:"quality_threshold"`
	HITLEnabled      bool    `json:"hitl_enabled"`
}

// Session is one end-to-end research task instance.
type Session struct {
	ID            string           `json:"id"`
	Query         string           `json:"query"`
	Status        Status           `json:"status"`
	Options       Options          `json:"options"`
	RevisionCount int              `json:"revision_count"`
	Plan          []PlanStep       `json:"plan,omitempty"`
	Findings      map[int]Finding  `json:"findings,omitempty"`
	Review        *Review          `json:"review,omitempty"`
	FinalAnswer   string           `json:"final_answer,omitempty"`
	Pending       *PendingDecision `json:"pending_decision,omitempty"`
	Failure       *Failure         `json:"failure,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// New creates the initial snapshot for a fresh research session.
func New(id, query string, now time.Time) Session {
	return Session{
		ID:        id,
		Query:     query,
		Status:    StatusPlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session. Nodes receive clones so that
// a node error can never leave a half-mutated snapshot behind.
func (s Session) Clone() Session {
	out := s
	if s.Plan != nil {
		out.Plan = make([]PlanStep, len(s.Plan))
		copy(out.Plan, s.Plan)
	}
	if s.Findings != nil {
		out.Findings = make(map[int]Finding, len(s.Findings))
		for id, f := range s.Findings {
			cf := f
			cf.Results = append([]string(nil), f.Results...)
			cf.Sources = append([]string(nil), f.Sources...)
			out.Findings[id] = cf
		}
	}
	if s.Review != nil {
		r := *s.Review
		r.Suggestions = append([]string(nil), s.Review.Suggestions...)
		out.Review = &r
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Options = append([]string(nil), s.Pending.Options...)
		out.Pending = &p
	}
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}

// IncompleteSteps returns the plan steps not yet marked done, in plan order.
func (s Session) IncompleteSteps() []PlanStep {
	var steps []PlanStep
	for _, step := range s.Plan {
		if !step.Done {
			steps = append(steps, step)
		}
	}
	return steps
}

// AllStepsAttempted reports whether every plan step has been attempted.
func (s Session) AllStepsAttempted() bool {
	if len(s.Plan) == 0 {
		return false
	}
	for _, step := range s.Plan {
		if !step.Done {
			return false
		}
	}
	return true
}

// ReopenSteps clears the done flags on all plan steps so a refinement pass
// re-attempts each one. Existing findings are kept for augmentation.
func (s *Session) ReopenSteps() {
	for i := range s.Plan {
		s.Plan[i].Done = false
	}
}

// Summary is a compact session view for listings and status output.
type Summary struct {
	ID            string  `json:"id"`
	Query         string  `json:"query"`
	Status        Status  `json:"status"`
	RevisionCount int     `json:"revision_count"`
	Steps         int     `json:"steps"`
	StepsDone     int     `json:"steps_done"`
	Score         float64 `json:"score,omitempty"`
	HasAnswer     bool    `json:"has_answer"`
}

// Summarize builds a Summary from the session snapshot.
func (s Session) Summarize() Summary {
	sum := Summary{
		ID:            s.ID,
		Query:         s.Query,
		Status:        s.Status,
		RevisionCount: s.RevisionCount,
		Steps:         len(s.Plan),
		HasAnswer:     s.FinalAnswer != "",
	}
	for _, step := range s.Plan {
		if step.Done {
			sum.StepsDone++
		}
	}
	if s.Review != nil {
		sum.Score = s.Review.Score
	}
	return sum
}
