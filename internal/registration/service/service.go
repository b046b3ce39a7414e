// Package service implements the business-rule checks that need persistence
// lookups, plus the aggregate validation over a candidate record.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"enrolld/internal/audit"
	"enrolld/internal/registration/models"
	"enrolld/internal/registration/ports"
	"enrolld/internal/registration/rules"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/requestcontext"
)

type Service struct {
	records        ports.RecordStore
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(records ports.RecordStore, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}

	svc := &Service{
		records: records,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// CheckUniqueness reports whether no other record shares the member number.
// A failing record store is a distinct backend-unavailable error: callers
// must never treat an unreachable backend as "unique".
func (s *Service) CheckUniqueness(ctx context.Context, member id.MemberNumber, excludeID id.RecordID) (bool, error) {
	if member.IsEmpty() {
		return false, dErrors.New(dErrors.CodeBadRequest, "member number is required")
	}

	existing, err := s.records.FindByFilter(ctx, models.RecordFilter{
		MemberNumber: member,
		ExcludeID:    excludeID,
	})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "uniqueness check failed")
	}

	unique := len(existing) == 0
	s.emitCheck(ctx, audit.ActionUniquenessChecked, member, unique)
	return unique, nil
}

// CheckOneRecordPerAccount reports whether the account has no other linked
// record.
func (s *Service) CheckOneRecordPerAccount(ctx context.Context, accountID id.AccountID, excludeID id.RecordID) (bool, error) {
	if accountID.IsEmpty() {
		return false, dErrors.New(dErrors.CodeBadRequest, "account id is required")
	}

	existing, err := s.records.FindByFilter(ctx, models.RecordFilter{
		AccountID: accountID,
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "account scope check failed")
	}

	unlinked := len(existing) == 0
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:      audit.ActionAccountScanChecked,
		Outcome:     outcome(unlinked),
		SubjectHash: ports.HashSubject(accountID.String()),
	})
	return unlinked, nil
}

// ValidateRecord runs every rule applicable to the fields present in the
// candidate. Absent fields are skipped, not failed, so partially staged
// records stay validatable. One audit event is emitted per executed rule.
func (s *Service) ValidateRecord(ctx context.Context, member id.MemberNumber, candidate models.CandidateRecord) models.ValidationOutcome {
	currentYear := requestcontext.Now(ctx).Year()

	var checks []models.RuleCheck
	run := func(rule string, result rules.Result) {
		checks = append(checks, models.RuleCheck{
			Rule:     rule,
			Passed:   result.Valid,
			Errors:   result.Errors,
			Warnings: result.Warnings,
		})
		s.emitRule(ctx, rule, member, result.Valid)
	}

	if candidate.InstitutionRegion != nil && candidate.Country != nil {
		run(rules.RuleGeographicAlignment, rules.GeographicAlignment(*candidate.InstitutionRegion, *candidate.Country))
	}
	if candidate.GraduationYear != nil {
		run(rules.RuleTemporalBound, rules.TemporalBound(*candidate.GraduationYear, currentYear))
	}
	// The declaration rule always runs in a registration context: absence is
	// exactly the condition it exists to catch.
	run(rules.RuleWorkDeclaration, rules.WorkDeclaration(candidate.WorksInIndustry, true))
	if candidate.DegreeType != nil && candidate.GraduationYear != nil {
		run(rules.RuleDegreePlausibility, rules.DegreePlausibility(*candidate.DegreeType, *candidate.GraduationYear))
	}

	outcome := models.ValidationOutcome{Checks: checks, Valid: true, Score: 100}
	if len(checks) == 0 {
		return outcome
	}

	passed := 0
	for _, check := range checks {
		if check.Passed {
			passed++
		} else {
			outcome.Valid = false
		}
	}
	outcome.Score = passed * 100 / len(checks)
	return outcome
}

func (s *Service) emitRule(ctx context.Context, rule string, member id.MemberNumber, passed bool) {
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:      audit.ActionRuleChecked,
		Rule:        rule,
		Outcome:     outcome(passed),
		SubjectHash: ports.HashSubject(member.String()),
	})
}

func (s *Service) emitCheck(ctx context.Context, action audit.Action, member id.MemberNumber, passed bool) {
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:      action,
		Outcome:     outcome(passed),
		SubjectHash: ports.HashSubject(member.String()),
	})
}

func outcome(passed bool) string {
	if passed {
		return audit.OutcomePass
	}
	return audit.OutcomeFail
}
