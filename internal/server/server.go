// Package server exposes the workflow engine over HTTP. Research runs
// execute in the background; clients poll the status endpoint and resolve
// approval gates through the decision endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/scry-dev/scry/internal/engine"
	"github.com/scry-dev/scry/internal/session"
)

// Server is the research API server.
type Server struct {
	engine   *engine.Engine
	defaults session.Options
	listener net.Listener
	server   *http.Server

	wg     sync.WaitGroup
	runCtx context.Context
	cancel context.CancelFunc
}

// NewServer creates a server bound to addr ("127.0.0.1:0" picks a free port).
// defaults is the policy applied when a start request leaves options unset.
func NewServer(addr string, eng *engine.Engine, defaults session.Options) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: binding listener: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		engine:   eng,
		defaults: defaults,
		listener: ln,
		runCtx:   runCtx,
		cancel:   cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /research", s.handleStart)
	mux.HandleFunc("GET /research/{id}", s.handleStatus)
	mux.HandleFunc("POST /research/{id}/approve", s.handleDecision)
	mux.HandleFunc("POST /research/{id}/abort", s.handleAbort)
	mux.HandleFunc("GET /research/{id}/checkpoints", s.handleListCheckpoints)
	mux.HandleFunc("GET /research/{id}/checkpoints/{seq}", s.handleCheckpoint)

	s.server = &http.Server{Handler: mux}
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start begins serving HTTP requests. Call in a goroutine.
func (s *Server) Start() error {
	return s.server.Serve(s.listener)
}

// Stop shuts down the server and cancels in-flight research runs, then
// waits for their abort checkpoints to commit.
func (s *Server) Stop() error {
	s.cancel()
	err := s.server.Close()
	s.wg.Wait()
	return err
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, engine.KindInvalidState, "query is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	} else if _, err := s.engine.Status(sessionID); err == nil {
		writeError(w, http.StatusConflict, engine.KindInvalidState, fmt.Sprintf("session %s already exists", sessionID))
		return
	}

	opts := s.defaults
	if req.MaxRevisions != nil {
		opts.MaxRevisions = *req.MaxRevisions
	}
	if req.QualityThreshold != nil {
		opts.QualityThreshold = *req.QualityThreshold
	}
	if req.ApprovalRequired != nil {
		opts.HITLEnabled = *req.ApprovalRequired
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Failures are checkpointed; the status endpoint surfaces them.
		_, _ = s.engine.Start(s.runCtx, req.Query, sessionID, opts)
	}()

	writeJSON(w, http.StatusAccepted, StartResponse{SessionID: sessionID, Status: string(session.StatusPlanning)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Status(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(snap))
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !readJSON(w, r, &req) {
		return
	}

	sessionID := r.PathValue("id")
	snap, err := s.engine.Status(sessionID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if snap.Status != session.StatusAwaitingApproval {
		writeError(w, http.StatusConflict, engine.KindInvalidState,
			fmt.Sprintf("session is %s, not awaiting_approval", snap.Status))
		return
	}
	if req.Decision == session.DecisionFeedback && req.Feedback == "" {
		writeError(w, http.StatusBadRequest, engine.KindInvalidState, "feedback decision requires text")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.engine.Resume(s.runCtx, sessionID, engine.Decision{Kind: req.Decision, Feedback: req.Feedback})
	}()

	writeJSON(w, http.StatusAccepted, StartResponse{SessionID: sessionID, Status: string(snap.Status)})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Abort(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(snap))
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.engine.ListCheckpoints(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	entries := make([]CheckpointEntry, 0, len(summaries))
	for _, cp := range summaries {
		entries = append(entries, CheckpointEntry{
			Seq:       cp.Seq,
			Node:      cp.Node,
			Status:    cp.Status,
			CreatedAt: cp.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	var seq int
	if _, err := fmt.Sscanf(r.PathValue("seq"), "%d", &seq); err != nil {
		writeError(w, http.StatusBadRequest, engine.KindInvalidState, "seq must be an integer")
		return
	}

	cp, err := s.engine.RestoreCheckpoint(r.PathValue("id"), seq)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckpointResponse{
		SessionID: cp.SessionID,
		Seq:       cp.Seq,
		Node:      cp.Node,
		CreatedAt: cp.CreatedAt,
		Session:   cp.Session,
	})
}

// --- Helpers ---

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, engine.KindInvalidState, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, ErrorResponse{Kind: kind, Message: message})
}

// writeEngineError maps the engine's error taxonomy to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var engErr *engine.Error
	if !errors.As(err, &engErr) {
		writeError(w, http.StatusInternalServerError, engine.KindPersistence, err.Error())
		return
	}
	code := http.StatusInternalServerError
	switch engErr.Kind {
	case engine.KindNotFound:
		code = http.StatusNotFound
	case engine.KindInvalidState:
		code = http.StatusConflict
	}
	writeError(w, code, engErr.Kind, engErr.Error())
}
