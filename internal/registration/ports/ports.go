// Package ports defines shared interfaces for the registration module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication.
package ports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"enrolld/internal/audit"
	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
)

// SessionStore is the expiring, check-and-set keyed store backing in-progress
// registrations.
type SessionStore interface {
	// Put stores a fresh session. The stored entry outlives the session's
	// logical TTL so an expired session stays readable and abortable.
	Put(ctx context.Context, session *models.RegistrationSession, ttl time.Duration) error

	// Get returns the session or sentinel.ErrNotFound.
	Get(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error)

	// Update persists a modified session if and only if its Version still
	// matches the stored one, then bumps the version. A lost race returns
	// sentinel.ErrConflict.
	Update(ctx context.Context, session *models.RegistrationSession) error

	// Delete removes a session.
	Delete(ctx context.Context, sessionID id.SessionID) error

	// List returns sessions matching the filter.
	List(ctx context.Context, filter models.SessionFilter) ([]*models.RegistrationSession, error)
}

// RecordStore is the persistence gateway for education records.
type RecordStore interface {
	// Create persists a record. The caller assigns the ID; creating an ID
	// that already exists returns sentinel.ErrConflict.
	Create(ctx context.Context, record *models.EducationRecord) (*models.EducationRecord, error)

	// FindByID returns the record or sentinel.ErrNotFound.
	FindByID(ctx context.Context, recordID id.RecordID) (*models.EducationRecord, error)

	// FindByFilter returns records matching the filter's equality/range
	// constraints.
	FindByFilter(ctx context.Context, filter models.RecordFilter) ([]*models.EducationRecord, error)

	// Update replaces a stored record's fields.
	Update(ctx context.Context, record *models.EducationRecord) (*models.EducationRecord, error)

	// Delete removes a record.
	Delete(ctx context.Context, recordID id.RecordID) error
}

// SettingsLookup reads the admin-controlled benefit cutoff. Read-only from
// the workflow's perspective.
type SettingsLookup interface {
	CurrentCutoffDate(ctx context.Context, scopeKey string) (time.Time, error)
}

// AccountVerifier checks account existence against the upstream account
// system.
type AccountVerifier interface {
	AccountExists(ctx context.Context, accountID id.AccountID) (bool, error)
}

// AuditPublisher emits audit events for workflow and rule operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit is a shared helper for emitting audit events across registration
// services. It logs to the structured logger and the publisher when
// available; emission failures are logged and swallowed, never propagated.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event) {
	if logger != nil {
		logger.InfoContext(ctx, string(event.Action),
			"session_id", event.SessionID,
			"rule", event.Rule,
			"outcome", event.Outcome,
			"log_type", "audit",
		)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

// HashSubject redacts an identifying key for audit output. Events carry the
// short hash, never the raw business key.
func HashSubject(subject string) string {
	if subject == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}
