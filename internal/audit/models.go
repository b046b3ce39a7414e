package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Events never carry raw member numbers; identifying keys are hashed by the
// emitter before the event leaves the service.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	SessionID   string    `json:"session_id,omitempty"`
	Rule        string    `json:"rule,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	SubjectHash string    `json:"subject_hash,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Action names the audited operation.
type Action string

const (
	ActionSessionStaged      Action = "session_staged"
	ActionRuleChecked        Action = "rule_checked"
	ActionUniquenessChecked  Action = "uniqueness_checked"
	ActionAccountScanChecked Action = "account_scope_checked"
	ActionCategoryDetermined Action = "category_determined"
	ActionAccountLinked      Action = "account_linked"
	ActionRecordCreated      Action = "record_created"
	ActionSessionCompleted   Action = "session_completed"
	ActionSessionAborted     Action = "session_aborted"
	ActionStepFailed         Action = "step_failed"
	ActionCutoffUpdated      Action = "cutoff_updated"
)

// Outcomes used in the Outcome field.
const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
)
