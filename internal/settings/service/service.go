// Package service exposes the benefit cutoff to the workflow (read-only) and
// to the admin surface (writes).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"enrolld/internal/audit"
	"enrolld/internal/settings/models"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetCutoff(ctx context.Context, scopeKey string) (*models.BenefitCutoff, error)
	UpsertCutoff(ctx context.Context, cutoff models.BenefitCutoff) error
}

// AuditPublisher emits audit events for cutoff changes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CurrentCutoffDate implements the read-only lookup the workflow consumes.
func (s *Service) CurrentCutoffDate(ctx context.Context, scopeKey string) (time.Time, error) {
	cutoff, err := s.store.GetCutoff(ctx, scopeKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return time.Time{}, dErrors.Newf(dErrors.CodeNotFound, "no cutoff configured for scope %s", scopeKey)
	}
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "cutoff lookup failed")
	}
	return cutoff.CutoffDate, nil
}

// GetCutoff returns the full cutoff setting for the admin surface.
func (s *Service) GetCutoff(ctx context.Context, scopeKey string) (*models.BenefitCutoff, error) {
	cutoff, err := s.store.GetCutoff(ctx, scopeKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no cutoff configured for scope %s", scopeKey)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "cutoff lookup failed")
	}
	return cutoff, nil
}

// SetCutoff updates the cutoff. Callers must come through the admin-gated
// surface; the workflow never holds a reference to this method.
func (s *Service) SetCutoff(ctx context.Context, scopeKey string, date time.Time, updatedBy string) (*models.BenefitCutoff, error) {
	if scopeKey == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "scope key is required")
	}
	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "cutoff date is required")
	}

	cutoff := models.BenefitCutoff{
		ScopeKey:   scopeKey,
		CutoffDate: date,
		UpdatedAt:  requestcontext.Now(ctx),
		UpdatedBy:  updatedBy,
	}
	if err := s.store.UpsertCutoff(ctx, cutoff); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store cutoff")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "benefit cutoff updated",
			"scope_key", scopeKey,
			"cutoff_date", date.Format(time.DateOnly),
		)
	}
	if s.auditPublisher != nil {
		// Fire-and-forget; audit problems never fail the update.
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			Action:  audit.ActionCutoffUpdated,
			Outcome: audit.OutcomePass,
			Reason:  date.Format(time.DateOnly),
		})
	}
	return &cutoff, nil
}
