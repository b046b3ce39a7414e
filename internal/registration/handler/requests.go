package handler

import "enrolld/internal/registration/models"

// StageRequest opens a registration session.
type StageRequest struct {
	MemberNumber string                 `json:"member_number"`
	Payload      models.CandidateRecord `json:"payload"`
}

// LinkAccountRequest links a verified account to the session.
type LinkAccountRequest struct {
	AccountID string `json:"account_id"`
}

// AbortRequest moves the session to its terminal failed state.
type AbortRequest struct {
	Reason string `json:"reason"`
}
