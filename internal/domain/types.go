// Package domain defines the shared types of the quest service: diagnostic
// records consumed from the assessment platform, per-session progress state,
// mission context, and proof scoring results.
package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when no progress record exists for a session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCredentialMismatch is returned when the presented credential hash does
	// not match the stored one.
	ErrCredentialMismatch = errors.New("session credential mismatch")
)

// RevisionConflictError rejects a stale compare-and-swap write. Current
// carries the server state so the caller can merge and retry.
type RevisionConflictError struct {
	Current ProgressRecord
}

func (e *RevisionConflictError) Error() string {
	return "stale progress revision"
}

// SubscriptionActive is the subscription status required for quest access.
const SubscriptionActive = "active"

// DiagnosticRecord is the read-only view of a completed diagnostic assessment.
// It is owned and mutated entirely outside this service.
type DiagnosticRecord struct {
	ID                 string
	FullName           string
	Email              string
	Whatsapp           string
	SubscriptionStatus string
	Profile            *Profile
	CreatedAt          time.Time
}

// Eligible reports whether the record unlocks the quest: subscription active
// and a non-empty aggregated profile.
func (r DiagnosticRecord) Eligible() bool {
	return r.SubscriptionStatus == SubscriptionActive && r.Profile != nil && !r.Profile.Empty()
}

// Profile is the aggregated career profile computed by the diagnostic.
type Profile struct {
	DeclaredRole string   `json:"declared_role"`
	RealRole     string   `json:"real_role"`
	Maturity     string   `json:"maturity"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Exclusions   []string `json:"exclusions"`
	FinalActions []string `json:"final_actions,omitempty"`
	SkillGaps    []string `json:"skill_gaps,omitempty"`
}

// Empty reports whether the profile carries no usable signal.
func (p Profile) Empty() bool {
	return p.DeclaredRole == "" && p.RealRole == "" && p.Maturity == "" &&
		len(p.Strengths) == 0 && len(p.Weaknesses) == 0
}

// ProgressRecord is the persisted quest state for one diagnostic session.
// Doc is opaque to the store; Revision increases by exactly one per accepted
// compare-and-swap write.
type ProgressRecord struct {
	SessionID string
	TokenHash string
	Doc       json.RawMessage
	Revision  int64
	UpdatedAt time.Time
}

// ProofSubmission captures a scored proof inside the progress document.
type ProofSubmission struct {
	TaskID      string    `json:"task_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Score       int       `json:"score"`
	Label       string    `json:"label"`
	Tips        []string  `json:"tips,omitempty"`
}

// ProgressDoc is the best-effort structured view of the opaque progress
// document. Clients own the document shape; the service only decodes the
// fields it needs for coaching summaries.
type ProgressDoc struct {
	Level          int                        `json:"level"`
	XP             int                        `json:"xp"`
	CompletedTasks []string                   `json:"completed_tasks"`
	Proofs         map[string]ProofSubmission `json:"proofs"`
}

// DecodeDoc decodes raw progress into ProgressDoc, tolerating unknown fields
// and malformed input. A document that cannot be decoded yields a zero value.
func DecodeDoc(raw json.RawMessage) ProgressDoc {
	var doc ProgressDoc
	if len(raw) == 0 {
		return doc
	}
	_ = json.Unmarshal(raw, &doc)
	return doc
}

// MissionContext identifies the quest task a proof or coaching request refers
// to. It conditions AI feedback so tips are task-specific.
type MissionContext struct {
	PhaseID   string   `json:"phase_id"`
	TaskID    string   `json:"task_id"`
	Title     string   `json:"title"`
	Objective string   `json:"objective"`
	Actions   []string `json:"actions,omitempty"`
}
