package models

import "time"

// BenefitCutoff is an admin-controlled date that time-boxes a benefit
// window. It is scoped by key so unrelated workflows can carry their own
// cutoffs, and it is writable only through the admin surface: the whole
// point of the mechanism is that users cannot influence it.
type BenefitCutoff struct {
	ScopeKey   string    `json:"scope_key"`
	CutoffDate time.Time `json:"cutoff_date"`
	UpdatedAt  time.Time `json:"updated_at"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
}
