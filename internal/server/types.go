package server

import (
	"time"

	"github.com/scry-dev/scry/internal/session"
)

// StartRequest begins a new research session.
type StartRequest struct {
	Query            string   `json:"query"`
	SessionID        string   `json:"session_id,omitempty"`
	MaxRevisions     *int     `json:"max_revisions,omitempty"`
	QualityThreshold *float64 `json:"quality_threshold,omitempty"`
	ApprovalRequired *bool    `json:"approval_required,omitempty"`
}

// StartResponse acknowledges an accepted session.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// DecisionRequest resolves a suspended session.
type DecisionRequest struct {
	Decision string `json:"decision"` // approve | feedback | reject
	Feedback string `json:"feedback,omitempty"`
}

// StatusResponse is the session summary returned by the status endpoint.
type StatusResponse struct {
	SessionID     string             `json:"session_id"`
	Query         string             `json:"query"`
	Status        session.Status     `json:"status"`
	RevisionCount int                `json:"revision_count"`
	StepsTotal    int                `json:"steps_total"`
	StepsDone     int                `json:"steps_done"`
	Score         *float64           `json:"score,omitempty"`
	Pending       []string           `json:"pending_decisions,omitempty"`
	FinalAnswer   string             `json:"final_answer,omitempty"`
	Failure       *session.Failure   `json:"failure,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CheckpointEntry describes one checkpoint in the list endpoint.
type CheckpointEntry struct {
	Seq       int            `json:"seq"`
	Node      string         `json:"node"`
	Status    session.Status `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// CheckpointResponse is the full snapshot at one sequence number.
type CheckpointResponse struct {
	SessionID string          `json:"session_id"`
	Seq       int             `json:"seq"`
	Node      string          `json:"node"`
	CreatedAt time.Time       `json:"created_at"`
	Session   session.Session `json:"session"`
}

// ErrorResponse carries a taxonomy error to the client.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusResponse(s session.Session) StatusResponse {
	sum := s.Summarize()
	resp := StatusResponse{
		SessionID:     sum.ID,
		Query:         sum.Query,
		Status:        sum.Status,
		RevisionCount: sum.RevisionCount,
		StepsTotal:    sum.Steps,
		StepsDone:     sum.StepsDone,
		FinalAnswer:   s.FinalAnswer,
		Failure:       s.Failure,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.Review != nil {
		score := sum.Score
		resp.Score = &score
	}
	if s.Pending != nil {
		resp.Pending = s.Pending.Options
	}
	return resp
}
