// Package workflow drives a registration session through its ordered steps:
// stage, validate, determine category, link account, create record, complete.
// Each step runs synchronously inside the request that triggers it, checks
// the session's expiry passively, and advances state all-or-nothing through
// the session store's check-and-set update.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"enrolld/internal/audit"
	"enrolld/internal/registration/category"
	"enrolld/internal/registration/metrics"
	"enrolld/internal/registration/models"
	"enrolld/internal/registration/ports"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Step identifiers recorded in the session trail.
const (
	StepStage        = "stage"
	StepValidate     = "validate"
	StepCategory     = "determine_category"
	StepLinkAccount  = "link_account"
	StepCreateRecord = "create_record"
	StepComplete     = "complete"
	StepAbort        = "abort"
)

// DefaultCutoffScope is the settings key holding the benefit cutoff date for
// this workflow.
const DefaultCutoffScope = "education.benefit_cutoff"

// RuleChecker is the business-rule service surface the workflow needs.
type RuleChecker interface {
	CheckUniqueness(ctx context.Context, member id.MemberNumber, excludeID id.RecordID) (bool, error)
	CheckOneRecordPerAccount(ctx context.Context, accountID id.AccountID, excludeID id.RecordID) (bool, error)
	ValidateRecord(ctx context.Context, member id.MemberNumber, candidate models.CandidateRecord) models.ValidationOutcome
}

type Orchestrator struct {
	sessions       ports.SessionStore
	records        ports.RecordStore
	checker        RuleChecker
	settings       ports.SettingsLookup
	accounts       ports.AccountVerifier
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	sessionTTL     time.Duration
	cutoffScope    string
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(o *Orchestrator) { o.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.sessionTTL = ttl }
}

func WithCutoffScope(scope string) Option {
	return func(o *Orchestrator) { o.cutoffScope = scope }
}

func New(
	sessions ports.SessionStore,
	records ports.RecordStore,
	checker RuleChecker,
	settings ports.SettingsLookup,
	accounts ports.AccountVerifier,
	opts ...Option,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("rule checker is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings lookup is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account verifier is required")
	}

	o := &Orchestrator{
		sessions:    sessions,
		records:     records,
		checker:     checker,
		settings:    settings,
		accounts:    accounts,
		sessionTTL:  24 * time.Hour,
		cutoffScope: DefaultCutoffScope,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Stage creates a fresh session holding the candidate payload exactly as
// submitted. The payload is frozen from here on; later steps only append
// derived state.
func (o *Orchestrator) Stage(ctx context.Context, member id.MemberNumber, payload models.CandidateRecord) (*models.RegistrationSession, error) {
	start := time.Now()
	if member.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "member number is required")
	}

	now := requestcontext.Now(ctx)
	session := &models.RegistrationSession{
		ID:           id.NewSessionID(),
		MemberNumber: member,
		Status:       models.StatusStaged,
		CreatedAt:    now,
		ExpiresAt:    now.Add(o.sessionTTL),
		Payload:      payload.Clone(),
		Progress:     models.Progress{Staged: true},
	}
	session.RecordTransition(StepStage, now, models.OutcomePass, nil, nil)

	if err := o.sessions.Put(ctx, session, o.sessionTTL); err != nil {
		o.observe(StepStage, models.OutcomeFail, start)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store session")
	}

	ports.LogAudit(ctx, o.logger, o.auditPublisher, audit.Event{
		Action:      audit.ActionSessionStaged,
		SessionID:   session.ID.String(),
		Outcome:     audit.OutcomePass,
		SubjectHash: ports.HashSubject(member.String()),
	})
	o.observe(StepStage, models.OutcomePass, start)
	return session, nil
}

// Validate runs the rule aggregate plus the uniqueness check. On rule
// failure the session stays at STAGED with the itemized outcome recorded, so
// the caller can correct the payload and retry indefinitely while the
// session lives.
func (o *Orchestrator) Validate(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	start := time.Now()
	session, err := o.loadForStep(ctx, sessionID, StepValidate)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	if err := requireStatus(session, models.StatusStaged); err != nil {
		return session, err
	}

	unique, err := o.checker.CheckUniqueness(ctx, session.MemberNumber, session.RecordID)
	if err != nil {
		// Backend unavailable is not a validation verdict; surface it as-is.
		return session, o.stepFailed(ctx, session, StepValidate, start, err, nil)
	}

	outcome := o.checker.ValidateRecord(ctx, session.MemberNumber, session.Payload)
	session.Validation = &outcome

	var errs, warnings []string
	for _, check := range outcome.Checks {
		errs = append(errs, check.Errors...)
		warnings = append(warnings, check.Warnings...)
	}

	switch {
	case !unique:
		errs = append(errs, "a record for this member already exists")
		session.RecordTransition(StepValidate, now, models.OutcomeFail, errs, warnings)
		if err := o.save(ctx, session); err != nil {
			return session, err
		}
		o.observe(StepValidate, models.OutcomeFail, start)
		return session, dErrors.New(dErrors.CodeConflict, "a record for this member already exists")

	case !outcome.Valid:
		session.RecordTransition(StepValidate, now, models.OutcomeFail, errs, warnings)
		if err := o.save(ctx, session); err != nil {
			return session, err
		}
		o.observe(StepValidate, models.OutcomeFail, start)
		return session, dErrors.New(dErrors.CodeValidation, "candidate record failed validation")
	}

	session.Progress.Validated = true
	session.Status = models.StatusValidated
	session.ErrorMessage = ""
	session.RecordTransition(StepValidate, now, models.OutcomePass, nil, warnings)
	if err := o.save(ctx, session); err != nil {
		return session, err
	}
	o.observe(StepValidate, models.OutcomePass, start)
	return session, nil
}

// DetermineCategory derives the membership classification from the staged
// graduation year and the admin-controlled cutoff date.
func (o *Orchestrator) DetermineCategory(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	start := time.Now()
	session, err := o.loadForStep(ctx, sessionID, StepCategory)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(session, models.StatusValidated); err != nil {
		return session, err
	}
	now := requestcontext.Now(ctx)

	if session.Payload.GraduationYear == nil {
		err := dErrors.New(dErrors.CodeValidation, "graduation year is required to determine category")
		return session, o.stepFailed(ctx, session, StepCategory, start, err, []string{"graduation year is missing"})
	}

	cutoff, err := o.settings.CurrentCutoffDate(ctx, o.cutoffScope)
	if err != nil {
		wrapped := dErrors.Wrap(err, dErrors.CodeUnavailable, "cutoff date lookup failed")
		return session, o.stepFailed(ctx, session, StepCategory, start, wrapped, nil)
	}

	session.Category = category.Determine(*session.Payload.GraduationYear, cutoff, now)
	session.Progress.CategoryDetermined = true
	session.Status = models.StatusCategoryDetermined
	session.RecordTransition(StepCategory, now, models.OutcomePass, nil, nil)
	if err := o.save(ctx, session); err != nil {
		return session, err
	}

	ports.LogAudit(ctx, o.logger, o.auditPublisher, audit.Event{
		Action:    audit.ActionCategoryDetermined,
		SessionID: session.ID.String(),
		Outcome:   audit.OutcomePass,
		Reason:    string(session.Category),
	})
	o.observe(StepCategory, models.OutcomePass, start)
	return session, nil
}

// LinkAccount verifies the account upstream and links it to the session. A
// failed verification records the error without advancing state, so the call
// may be retried with a different account.
func (o *Orchestrator) LinkAccount(ctx context.Context, sessionID id.SessionID, accountID id.AccountID) (*models.RegistrationSession, error) {
	start := time.Now()
	session, err := o.loadForStep(ctx, sessionID, StepLinkAccount)
	if err != nil {
		return nil, err
	}
	if accountID.IsEmpty() {
		return session, dErrors.New(dErrors.CodeBadRequest, "account id is required")
	}
	// Relinking a different account stays open until record creation starts.
	if err := requireStatus(session, models.StatusCategoryDetermined, models.StatusAccountLinked); err != nil {
		return session, err
	}
	if !session.RecordID.IsNil() {
		return session, dErrors.New(dErrors.CodeConflict, "record creation already started")
	}
	now := requestcontext.Now(ctx)

	exists, err := o.accounts.AccountExists(ctx, accountID)
	if err != nil {
		wrapped := dErrors.Wrap(err, dErrors.CodeUnavailable, "account verification failed")
		return session, o.stepFailed(ctx, session, StepLinkAccount, start, wrapped, nil)
	}
	if !exists {
		err := dErrors.Newf(dErrors.CodeNotFound, "account %s not found", accountID)
		return session, o.stepFailed(ctx, session, StepLinkAccount, start, err, []string{"account not found"})
	}

	free, err := o.checker.CheckOneRecordPerAccount(ctx, accountID, session.RecordID)
	if err != nil {
		return session, o.stepFailed(ctx, session, StepLinkAccount, start, err, nil)
	}
	if !free {
		err := dErrors.New(dErrors.CodeConflict, "account already has a linked record")
		return session, o.stepFailed(ctx, session, StepLinkAccount, start, err, []string{"account already has a linked record"})
	}

	session.AccountID = accountID
	session.Progress.AccountLinked = true
	session.Status = models.StatusAccountLinked
	session.ErrorMessage = ""
	session.RecordTransition(StepLinkAccount, now, models.OutcomePass, nil, nil)
	if err := o.save(ctx, session); err != nil {
		return session, err
	}

	ports.LogAudit(ctx, o.logger, o.auditPublisher, audit.Event{
		Action:      audit.ActionAccountLinked,
		SessionID:   session.ID.String(),
		Outcome:     audit.OutcomePass,
		SubjectHash: ports.HashSubject(accountID.String()),
	})
	o.observe(StepLinkAccount, models.OutcomePass, start)
	return session, nil
}

// CreateRecord persists the enriched candidate. The step is idempotent: once
// a backend record exists for the session, re-invocations return the existing
// ID and never create a second record. Mutual exclusion between concurrent
// calls rides on the session store's check-and-set: the record ID is reserved
// on the session before the backend create, so exactly one caller wins the
// reservation.
func (o *Orchestrator) CreateRecord(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	start := time.Now()
	session, err := o.loadForStep(ctx, sessionID, StepCreateRecord)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	// Idempotent completion.
	if session.Progress.Persisted && !session.RecordID.IsNil() {
		o.observe(StepCreateRecord, models.OutcomePass, start)
		return session, nil
	}
	if err := requireStatus(session, models.StatusAccountLinked); err != nil {
		return session, err
	}

	record, buildErr := o.buildRecord(session, now)
	if buildErr != nil {
		return session, o.stepFailed(ctx, session, StepCreateRecord, start, buildErr, nil)
	}

	// Recovery: a reserved ID with persisted=false means a prior attempt died
	// between the backend create and the final session update.
	if !session.RecordID.IsNil() {
		existing, err := o.records.FindByID(ctx, session.RecordID)
		switch {
		case err == nil:
			return o.finishCreate(ctx, session, existing.ID, now, start)
		case errors.Is(err, sentinel.ErrNotFound):
			record.ID = session.RecordID
		default:
			wrapped := dErrors.Wrap(err, dErrors.CodeUnavailable, "record lookup failed")
			return session, o.stepFailed(ctx, session, StepCreateRecord, start, wrapped, nil)
		}
	} else {
		record.ID = id.NewRecordID()
		session.RecordID = record.ID
		// Reservation write doubles as the critical section; a concurrent
		// caller loses the version check here.
		if err := o.save(ctx, session); err != nil {
			o.observe(StepCreateRecord, models.OutcomeFail, start)
			return session, err
		}
	}

	if _, err := o.records.Create(ctx, record); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		// Retry from scratch: no partial state survives a failed attempt.
		session.RecordID = id.RecordID{}
		wrapped := dErrors.Wrap(err, dErrors.CodeUnavailable, "record creation failed")
		return session, o.stepFailed(ctx, session, StepCreateRecord, start, wrapped, nil)
	}

	return o.finishCreate(ctx, session, record.ID, now, start)
}

func (o *Orchestrator) finishCreate(ctx context.Context, session *models.RegistrationSession, recordID id.RecordID, now time.Time, start time.Time) (*models.RegistrationSession, error) {
	session.RecordID = recordID
	session.Progress.Persisted = true
	session.Status = models.StatusRecordCreated
	session.ErrorMessage = ""
	session.RecordTransition(StepCreateRecord, now, models.OutcomePass, nil, nil)
	if err := o.save(ctx, session); err != nil {
		return session, err
	}

	ports.LogAudit(ctx, o.logger, o.auditPublisher, audit.Event{
		Action:      audit.ActionRecordCreated,
		SessionID:   session.ID.String(),
		Outcome:     audit.OutcomePass,
		SubjectHash: ports.HashSubject(session.MemberNumber.String()),
	})
	o.observe(StepCreateRecord, models.OutcomePass, start)
	return session, nil
}

func (o *Orchestrator) buildRecord(session *models.RegistrationSession, now time.Time) (*models.EducationRecord, error) {
	payload := session.Payload
	switch {
	case payload.GraduationYear == nil:
		return nil, dErrors.New(dErrors.CodeValidation, "graduation year is required")
	case payload.InstitutionName == nil:
		return nil, dErrors.New(dErrors.CodeValidation, "institution name is required")
	case payload.InstitutionRegion == nil:
		return nil, dErrors.New(dErrors.CodeValidation, "institution region is required")
	case payload.Country == nil:
		return nil, dErrors.New(dErrors.CodeValidation, "country is required")
	case payload.DegreeType == nil:
		return nil, dErrors.New(dErrors.CodeValidation, "degree type is required")
	case payload.WorksInIndustry == nil:
		return nil, dErrors.New(dErrors.CodeValidation, "work declaration is required")
	case !session.Category.IsValid():
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session reached record creation without a category")
	}

	return &models.EducationRecord{
		MemberNumber:      session.MemberNumber,
		AccountID:         session.AccountID,
		GraduationYear:    *payload.GraduationYear,
		InstitutionName:   *payload.InstitutionName,
		InstitutionRegion: *payload.InstitutionRegion,
		Country:           *payload.Country,
		DegreeType:        *payload.DegreeType,
		WorksInIndustry:   *payload.WorksInIndustry,
		Category:          session.Category,
		CreatedAt:         now,
	}, nil
}

// Complete finalizes the session.
func (o *Orchestrator) Complete(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	start := time.Now()
	session, err := o.loadForStep(ctx, sessionID, StepComplete)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(session, models.StatusRecordCreated); err != nil {
		return session, err
	}
	now := requestcontext.Now(ctx)

	session.Status = models.StatusCompleted
	session.RecordTransition(StepComplete, now, models.OutcomePass, nil, nil)
	if err := o.save(ctx, session); err != nil {
		return session, err
	}

	ports.LogAudit(ctx, o.logger, o.auditPublisher, audit.Event{
		Action:    audit.ActionSessionCompleted,
		SessionID: session.ID.String(),
		Outcome:   audit.OutcomePass,
	})
	o.observe(StepComplete, models.OutcomePass, start)
	return session, nil
}

// Abort moves a non-terminal session to FAILED. Unlike every other step it
// remains valid on an expired session.
func (o *Orchestrator) Abort(ctx context.Context, sessionID id.SessionID, reason string) (*models.RegistrationSession, error) {
	start := time.Now()
	session, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return session, dErrors.New(dErrors.CodeConflict, "session already finished")
	}
	now := requestcontext.Now(ctx)

	session.Status = models.StatusFailed
	session.ErrorMessage = reason
	session.RecordTransition(StepAbort, now, models.OutcomeFail, []string{reason}, nil)
	if err := o.save(ctx, session); err != nil {
		return session, err
	}

	ports.LogAudit(ctx, o.logger, o.auditPublisher, audit.Event{
		Action:    audit.ActionSessionAborted,
		SessionID: session.ID.String(),
		Outcome:   audit.OutcomeFail,
		Reason:    reason,
	})
	o.observe(StepAbort, models.OutcomePass, start)
	return session, nil
}

// Get reads a session without advancing it. Always valid, expired or not.
func (o *Orchestrator) Get(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	return o.load(ctx, sessionID)
}

// List returns sessions matching the filter.
func (o *Orchestrator) List(ctx context.Context, filter models.SessionFilter) ([]*models.RegistrationSession, error) {
	sessions, err := o.sessions.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list sessions")
	}
	return sessions, nil
}

func (o *Orchestrator) load(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load session")
	}
	return session, nil
}

// loadForStep loads a session and applies the gates shared by every
// step-advancing operation: terminal sessions and expired sessions reject
// without recording a transition, leaving state untouched.
func (o *Orchestrator) loadForStep(ctx context.Context, sessionID id.SessionID, step string) (*models.RegistrationSession, error) {
	session, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return session, dErrors.Newf(dErrors.CodeConflict, "session is %s", session.Status)
	}
	if session.Expired(requestcontext.Now(ctx)) {
		o.metrics.IncrementExpired()
		if o.logger != nil {
			o.logger.WarnContext(ctx, "step rejected on expired session",
				"session_id", session.ID.String(),
				"step", step,
			)
		}
		return session, dErrors.New(dErrors.CodeExpired, "session has expired")
	}
	return session, nil
}

// requireStatus rejects a step invoked out of order. Every step advances
// from a fixed source status and a session's status never moves backward.
func requireStatus(session *models.RegistrationSession, allowed ...models.Status) error {
	for _, status := range allowed {
		if session.Status == status {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeConflict, "step not allowed while session is %s", session.Status)
}

// stepFailed records a failed step execution on the trail, persists it
// best-effort, and returns the original error.
func (o *Orchestrator) stepFailed(ctx context.Context, session *models.RegistrationSession, step string, start time.Time, cause error, errs []string) error {
	now := requestcontext.Now(ctx)
	if len(errs) == 0 {
		errs = []string{cause.Error()}
	}
	session.ErrorMessage = errs[0]
	session.RecordTransition(step, now, models.OutcomeFail, errs, nil)
	if err := o.save(ctx, session); err != nil && o.logger != nil {
		o.logger.WarnContext(ctx, "failed to persist step failure",
			"session_id", session.ID.String(),
			"step", step,
			"error", err,
		)
	}

	ports.LogAudit(ctx, o.logger, o.auditPublisher, audit.Event{
		Action:    audit.ActionStepFailed,
		SessionID: session.ID.String(),
		Rule:      step,
		Outcome:   audit.OutcomeFail,
		Reason:    errs[0],
	})
	o.observe(step, models.OutcomeFail, start)
	return cause
}

func (o *Orchestrator) save(ctx context.Context, session *models.RegistrationSession) error {
	err := o.sessions.Update(ctx, session)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "session was updated concurrently")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store session")
	}
}

func (o *Orchestrator) observe(step, outcome string, start time.Time) {
	o.metrics.ObserveStep(step, outcome, start)
}
