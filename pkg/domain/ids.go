// Package domain holds the typed identifiers shared across modules.
// Keeping them in one place stops string IDs from leaking between
// unrelated aggregates.
package domain

import "github.com/google/uuid"

// SessionID identifies one in-progress registration attempt. It is minted at
// staging and never reused.
type SessionID uuid.UUID

// NewSessionID returns a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID parses the canonical UUID form of a session ID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

func (id SessionID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText encodes the ID in canonical UUID form so JSON payloads and
// store serializations carry strings, not byte arrays.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// RecordID identifies a persisted education record in the backing store.
type RecordID uuid.UUID

// NewRecordID returns a fresh random record identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

// ParseRecordID parses the canonical UUID form of a record ID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

func (id RecordID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText encodes the ID in canonical UUID form.
func (id RecordID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (id *RecordID) UnmarshalText(text []byte) error {
	parsed, err := ParseRecordID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AccountID identifies the member account a record is linked to. Account IDs
// come from the upstream account system, so they stay opaque strings here.
type AccountID string

func (id AccountID) String() string { return string(id) }

// IsEmpty reports whether no account is referenced.
func (id AccountID) IsEmpty() bool { return id == "" }

// MemberNumber is the registrant's external business key. It is never a
// storage key on our side and must never appear raw in audit output.
type MemberNumber string

func (n MemberNumber) String() string { return string(n) }

// IsEmpty reports whether the member number is unset.
func (n MemberNumber) IsEmpty() bool { return n == "" }
