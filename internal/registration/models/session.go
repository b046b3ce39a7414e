package models

import (
	"time"

	id "enrolld/pkg/domain"
)

// Status is the workflow state of a registration session. Transitions move
// strictly forward; the only backward-looking edge is the explicit abort into
// StatusFailed.
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusStaged             Status = "STAGED"
	StatusValidated          Status = "VALIDATED"
	StatusCategoryDetermined Status = "CATEGORY_DETERMINED"
	StatusAccountLinked      Status = "ACCOUNT_LINKED"
	StatusRecordCreated      Status = "RECORD_CREATED"
	StatusCompleted          Status = "COMPLETED"
	StatusFailed             Status = "FAILED"
)

// IsValid reports whether the status is one of the workflow states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusStaged, StatusValidated, StatusCategoryDetermined,
		StatusAccountLinked, StatusRecordCreated, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further step may run from this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress tracks which steps have succeeded. Flags are set monotonically and
// never reverted except by abort.
type Progress struct {
	Staged             bool `json:"staged"`
	Validated          bool `json:"validated"`
	CategoryDetermined bool `json:"category_determined"`
	AccountLinked      bool `json:"account_linked"`
	Persisted          bool `json:"persisted"`
}

// RuleCheck is the recorded outcome of a single business rule.
type RuleCheck struct {
	Rule     string   `json:"rule"`
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationOutcome aggregates the per-rule results of one validate step.
// Score is the share of passed checks out of 100; a record with no applicable
// checks scores 100.
type ValidationOutcome struct {
	Valid  bool        `json:"valid"`
	Score  int         `json:"score"`
	Checks []RuleCheck `json:"checks"`
}

// Transition is one entry in the session's audit trail. A transition is
// appended for every step execution, successful or not.
type Transition struct {
	Step       string    `json:"step"`
	ExecutedAt time.Time `json:"executed_at"`
	Outcome    string    `json:"outcome"`
	Errors     []string  `json:"errors,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Transition outcomes.
const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
)

// RegistrationSession is a time-boxed record of an in-progress multi-step
// registration. Payload is frozen at staging; later steps only append derived
// state. Version is the check-and-set token enforced by the session store.
type RegistrationSession struct {
	ID            id.SessionID       `json:"id"`
	MemberNumber  id.MemberNumber    `json:"member_number"`
	Status        Status             `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	LastUpdatedAt time.Time          `json:"last_updated_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
	Payload       CandidateRecord    `json:"payload"`
	Progress      Progress           `json:"progress"`
	Validation    *ValidationOutcome `json:"validation,omitempty"`
	Category      Category           `json:"category,omitempty"`
	AccountID     id.AccountID       `json:"account_id,omitempty"`
	RecordID      id.RecordID        `json:"record_id,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	Transitions   []Transition       `json:"transitions"`
	Version       int64              `json:"version"`
}

// Expired reports whether the session is past its TTL at the given instant.
// Expired sessions are inert: reads and abort remain valid, step transitions
// do not.
func (s *RegistrationSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// RecordTransition appends a trail entry and touches the update timestamp.
func (s *RegistrationSession) RecordTransition(step string, at time.Time, outcome string, errs, warnings []string) {
	s.Transitions = append(s.Transitions, Transition{
		Step:       step,
		ExecutedAt: at,
		Outcome:    outcome,
		Errors:     errs,
		Warnings:   warnings,
	})
	s.LastUpdatedAt = at
}

// Clone returns a deep copy so stores never hand out aliased state.
func (s *RegistrationSession) Clone() *RegistrationSession {
	out := *s
	out.Payload = s.Payload.Clone()
	if s.Validation != nil {
		validation := *s.Validation
		validation.Checks = append([]RuleCheck(nil), s.Validation.Checks...)
		out.Validation = &validation
	}
	out.Transitions = append([]Transition(nil), s.Transitions...)
	return &out
}

// SessionFilter selects sessions for listing. Zero values mean "no
// constraint".
type SessionFilter struct {
	Status       Status
	MemberNumber id.MemberNumber
}

// Matches reports whether a session satisfies the filter.
func (f SessionFilter) Matches(session *RegistrationSession) bool {
	if f.Status != "" && session.Status != f.Status {
		return false
	}
	if !f.MemberNumber.IsEmpty() && session.MemberNumber != f.MemberNumber {
		return false
	}
	return true
}
