package engine

import (
	"testing"

	"github.com/scry-dev/scry/internal/session"
)

func TestNextRouting(t *testing.T) {
	hitl := session.Options{MaxRevisions: 3, QualityThreshold: 0.8, HITLEnabled: true}
	auto := session.Options{MaxRevisions: 3, QualityThreshold: 0.8, HITLEnabled: false}

	tests := []struct {
		name       string
		status     session.Status
		review     *session.Review
		revisions  int
		opts       session.Options
		wantStatus session.Status
		wantRevise bool
	}{
		{
			name:       "planning advances to researching",
			status:     session.StatusPlanning,
			opts:       hitl,
			wantStatus: session.StatusResearching,
		},
		{
			name:       "researching advances to reviewing",
			status:     session.StatusResearching,
			opts:       hitl,
			wantStatus: session.StatusReviewing,
		},
		{
			name:       "low score under cap loops back",
			status:     session.StatusReviewing,
			review:     &session.Review{Score: 0.5},
			revisions:  0,
			opts:       hitl,
			wantStatus: session.StatusResearching,
			wantRevise: true,
		},
		{
			name:       "passing score suspends when approval is on",
			status:     session.StatusReviewing,
			review:     &session.Review{Score: 0.9},
			opts:       hitl,
			wantStatus: session.StatusAwaitingApproval,
		},
		{
			name:       "passing score goes straight to writing when approval is off",
			status:     session.StatusReviewing,
			review:     &session.Review{Score: 0.9},
			opts:       auto,
			wantStatus: session.StatusWriting,
		},
		{
			name:       "score exactly at threshold passes",
			status:     session.StatusReviewing,
			review:     &session.Review{Score: 0.8},
			opts:       auto,
			wantStatus: session.StatusWriting,
		},
		{
			name:       "revision cap forces exit even on low score",
			status:     session.StatusReviewing,
			review:     &session.Review{Score: 0.1},
			revisions:  3,
			opts:       auto,
			wantStatus: session.StatusWriting,
		},
		{
			name:       "revision cap forces suspension when approval is on",
			status:     session.StatusReviewing,
			review:     &session.Review{Score: 0.1},
			revisions:  3,
			opts:       hitl,
			wantStatus: session.StatusAwaitingApproval,
		},
		{
			name:       "missing review under cap loops back",
			status:     session.StatusReviewing,
			review:     nil,
			revisions:  1,
			opts:       auto,
			wantStatus: session.StatusResearching,
			wantRevise: true,
		},
		{
			name:       "writing advances to completed",
			status:     session.StatusWriting,
			opts:       hitl,
			wantStatus: session.StatusCompleted,
		},
		{
			name:       "terminal status stays put",
			status:     session.StatusCompleted,
			opts:       hitl,
			wantStatus: session.StatusCompleted,
		},
		{
			name:       "suspended status stays put",
			status:     session.StatusAwaitingApproval,
			opts:       hitl,
			wantStatus: session.StatusAwaitingApproval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, revise := Next(tt.status, tt.review, tt.revisions, tt.opts)
			if got != tt.wantStatus {
				t.Errorf("Next() status = %s, want %s", got, tt.wantStatus)
			}
			if revise != tt.wantRevise {
				t.Errorf("Next() revise = %v, want %v", revise, tt.wantRevise)
			}
		})
	}
}

func TestNormalizeOptions(t *testing.T) {
	opts := normalizeOptions(session.Options{})
	if opts.MaxRevisions != DefaultMaxRevisions {
		t.Errorf("MaxRevisions = %d, want %d", opts.MaxRevisions, DefaultMaxRevisions)
	}
	if opts.QualityThreshold != DefaultQualityThreshold {
		t.Errorf("QualityThreshold = %g, want %g", opts.QualityThreshold, DefaultQualityThreshold)
	}

	custom := normalizeOptions(session.Options{MaxRevisions: 5, QualityThreshold: 0.6, HITLEnabled: true})
	if custom.MaxRevisions != 5 || custom.QualityThreshold != 0.6 || !custom.HITLEnabled {
		t.Errorf("custom options were rewritten: %+v", custom)
	}
}
