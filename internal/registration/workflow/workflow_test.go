package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/account"
	"enrolld/internal/registration/models"
	regservice "enrolld/internal/registration/service"
	recordstore "enrolld/internal/registration/store/record"
	sessionstore "enrolld/internal/registration/store/session"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// fixedCutoff is a settings lookup pinned to one date, optionally failing.
type fixedCutoff struct {
	cutoff time.Time
	err    error
}

func (f *fixedCutoff) CurrentCutoffDate(context.Context, string) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.cutoff, nil
}

// faultyRecordStore delegates to the in-memory store but fails Create while
// tripped, standing in for an unreachable persistence backend.
type faultyRecordStore struct {
	*recordstore.InMemoryRecordStore
	failCreate bool
}

func (f *faultyRecordStore) Create(ctx context.Context, record *models.EducationRecord) (*models.EducationRecord, error) {
	if f.failCreate {
		return nil, sentinel.ErrUnavailable
	}
	return f.InMemoryRecordStore.Create(ctx, record)
}

type WorkflowSuite struct {
	suite.Suite
	sessions     *sessionstore.InMemorySessionStore
	records      *recordstore.InMemoryRecordStore
	accounts     *account.InMemoryDirectory
	settings     *fixedCutoff
	orchestrator *Orchestrator
	ctx          context.Context
	now          time.Time
}

func (s *WorkflowSuite) SetupTest() {
	s.sessions = sessionstore.New()
	s.records = recordstore.New()
	s.accounts = account.NewInMemoryDirectory()
	s.accounts.Add("acct-1")
	s.settings = &fixedCutoff{cutoff: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)}

	checker, err := regservice.New(s.records)
	s.Require().NoError(err)

	s.orchestrator, err = New(s.sessions, s.records, checker, s.settings, s.accounts)
	s.Require().NoError(err)

	s.now = time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int { return &i }
func strPtr(v string) *string { return &v }
func regionPtr(r models.InstitutionRegion) *models.InstitutionRegion { return &r }
func degreePtr(d models.DegreeType) *models.DegreeType { return &d }

func validPayload() models.CandidateRecord {
	return models.CandidateRecord{
		GraduationYear:    intPtr(2020),
		InstitutionName:   strPtr("Example University"),
		InstitutionRegion: regionPtr(models.RegionDomestic),
		Country:           strPtr(models.DomesticCountry),
		DegreeType:        degreePtr(models.DegreeBachelor),
		WorksInIndustry:   boolPtr(true),
	}
}

// stageThrough advances a fresh session for the member up to and including
// the named step. The account is registered in the directory first.
func (s *WorkflowSuite) stageThrough(step string, member id.MemberNumber, acct id.AccountID, payload models.CandidateRecord) *models.RegistrationSession {
	s.accounts.Add(acct)

	session, err := s.orchestrator.Stage(s.ctx, member, payload)
	s.Require().NoError(err)
	if step == StepStage {
		return session
	}

	session, err = s.orchestrator.Validate(s.ctx, session.ID)
	s.Require().NoError(err)
	if step == StepValidate {
		return session
	}

	session, err = s.orchestrator.DetermineCategory(s.ctx, session.ID)
	s.Require().NoError(err)
	if step == StepCategory {
		return session
	}

	session, err = s.orchestrator.LinkAccount(s.ctx, session.ID, acct)
	s.Require().NoError(err)
	if step == StepLinkAccount {
		return session
	}

	session, err = s.orchestrator.CreateRecord(s.ctx, session.ID)
	s.Require().NoError(err)
	return session
}

func (s *WorkflowSuite) TestHappyPath() {
	session := s.stageThrough(StepCreateRecord, "M-1", "acct-1", validPayload())

	session, err := s.orchestrator.Complete(s.ctx, session.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusCompleted, session.Status)
	s.True(session.Progress.Staged)
	s.True(session.Progress.Validated)
	s.True(session.Progress.CategoryDetermined)
	s.True(session.Progress.AccountLinked)
	s.True(session.Progress.Persisted)
	s.Equal(models.CategoryGraduate, session.Category, "2020 graduate in 2026 is past the benefit window")
	s.Equal(id.AccountID("acct-1"), session.AccountID)
	s.False(session.RecordID.IsNil())

	record, err := s.records.FindByID(s.ctx, session.RecordID)
	s.Require().NoError(err)
	s.Equal(session.MemberNumber, record.MemberNumber)
	s.Equal(models.CategoryGraduate, record.Category)

	// One transition per executed step, all passing.
	s.Len(session.Transitions, 6)
	for _, tr := range session.Transitions {
		s.Equal(models.OutcomePass, tr.Outcome, "step %s", tr.Step)
	}
}

func (s *WorkflowSuite) TestStage() {
	s.Run("empty member number is a bad request", func() {
		_, err := s.orchestrator.Stage(s.ctx, "", validPayload())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("staged session carries the payload and an expiry", func() {
		session, err := s.orchestrator.Stage(s.ctx, "M-2", validPayload())
		s.Require().NoError(err)
		s.Equal(models.StatusStaged, session.Status)
		s.Equal(s.now.Add(24*time.Hour), session.ExpiresAt)
		s.Require().NotNil(session.Payload.GraduationYear)
		s.Equal(2020, *session.Payload.GraduationYear)
	})

	s.Run("staging does not mutate the caller's payload", func() {
		payload := validPayload()
		session, err := s.orchestrator.Stage(s.ctx, "M-3", payload)
		s.Require().NoError(err)

		*payload.GraduationYear = 1900
		got, err := s.orchestrator.Get(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(2020, *got.Payload.GraduationYear)
	})
}

func (s *WorkflowSuite) TestValidate() {
	s.Run("rule failure leaves the session staged and retryable", func() {
		payload := validPayload()
		payload.WorksInIndustry = nil
		session, err := s.orchestrator.Stage(s.ctx, "M-4", payload)
		s.Require().NoError(err)

		got, err := s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(models.StatusStaged, got.Status)
		s.False(got.Progress.Validated)
		s.Require().NotNil(got.Validation)
		s.False(got.Validation.Valid)

		// The session is not dead: validate may run again.
		_, err = s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("existing record for the member is a conflict, and clears when it goes away", func() {
		existing := &models.EducationRecord{
			ID:           id.NewRecordID(),
			MemberNumber: "M-5",
			AccountID:    "acct-old",
		}
		_, err := s.records.Create(s.ctx, existing)
		s.Require().NoError(err)

		session, err := s.orchestrator.Stage(s.ctx, "M-5", validPayload())
		s.Require().NoError(err)

		_, err = s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		s.Require().NoError(s.records.Delete(s.ctx, existing.ID))
		got, err := s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusValidated, got.Status)
	})

	s.Run("warnings do not block validation", func() {
		payload := validPayload()
		payload.GraduationYear = intPtr(2027)
		payload.DegreeType = degreePtr(models.DegreeProfessional)
		session, err := s.orchestrator.Stage(s.ctx, "M-6", payload)
		s.Require().NoError(err)

		got, err := s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusValidated, got.Status)
		s.True(got.Validation.Valid)
	})
}

func (s *WorkflowSuite) TestDetermineCategory() {
	s.Run("requires validation first", func() {
		session, err := s.orchestrator.Stage(s.ctx, "M-7", validPayload())
		s.Require().NoError(err)

		got, err := s.orchestrator.DetermineCategory(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Len(got.Transitions, 1, "precondition rejection must not extend the trail")
	})

	s.Run("derives the category from the cutoff", func() {
		payload := validPayload()
		payload.GraduationYear = intPtr(2026)
		session, err := s.orchestrator.Stage(s.ctx, "M-8", payload)
		s.Require().NoError(err)
		_, err = s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().NoError(err)

		got, err := s.orchestrator.DetermineCategory(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.CategoryNewGraduate, got.Category)
		s.Equal(models.StatusCategoryDetermined, got.Status)
	})

	s.Run("settings outage is unavailable, recorded on the trail", func() {
		session := s.stageThrough(StepValidate, "M-8b", "acct-8b", validPayload())
		s.settings.err = errors.New("settings store down")
		defer func() { s.settings.err = nil }()

		got, err := s.orchestrator.DetermineCategory(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.False(got.Progress.CategoryDetermined)

		last := got.Transitions[len(got.Transitions)-1]
		s.Equal(StepCategory, last.Step)
		s.Equal(models.OutcomeFail, last.Outcome)
	})
}

func (s *WorkflowSuite) TestLinkAccount() {
	s.Run("requires a determined category", func() {
		session := s.stageThrough(StepValidate, "M-20", "acct-20", validPayload())
		_, err := s.orchestrator.LinkAccount(s.ctx, session.ID, "acct-20")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown account fails without advancing, then succeeds with a known one", func() {
		session := s.stageThrough(StepCategory, "M-21", "acct-21", validPayload())

		got, err := s.orchestrator.LinkAccount(s.ctx, session.ID, "acct-missing")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.False(got.Progress.AccountLinked)
		s.Equal(models.StatusCategoryDetermined, got.Status)

		got, err = s.orchestrator.LinkAccount(s.ctx, session.ID, "acct-21")
		s.Require().NoError(err)
		s.Equal(models.StatusAccountLinked, got.Status)
		s.Equal(id.AccountID("acct-21"), got.AccountID)
	})

	s.Run("account already holding a record is a conflict", func() {
		_, err := s.records.Create(s.ctx, &models.EducationRecord{
			ID:           id.NewRecordID(),
			MemberNumber: "M-other",
			AccountID:    "acct-22",
		})
		s.Require().NoError(err)

		session := s.stageThrough(StepCategory, "M-22", "acct-22", validPayload())
		_, err = s.orchestrator.LinkAccount(s.ctx, session.ID, "acct-22")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("relinking stops once record creation has started", func() {
		session := s.stageThrough(StepCreateRecord, "M-23", "acct-23", validPayload())
		s.accounts.Add("acct-24")

		_, err := s.orchestrator.LinkAccount(s.ctx, session.ID, "acct-24")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *WorkflowSuite) TestCreateRecord() {
	s.Run("requires a linked account", func() {
		session := s.stageThrough(StepCategory, "M-30", "acct-30", validPayload())
		_, err := s.orchestrator.CreateRecord(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("repeat calls return the same record and never create a second", func() {
		session := s.stageThrough(StepCreateRecord, "M-31", "acct-31", validPayload())
		firstID := session.RecordID

		again, err := s.orchestrator.CreateRecord(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(firstID, again.RecordID)

		records, err := s.records.FindByFilter(s.ctx, models.RecordFilter{MemberNumber: "M-31"})
		s.Require().NoError(err)
		s.Len(records, 1)
	})

	s.Run("recovers a reservation that persisted but never finalized", func() {
		session := s.stageThrough(StepLinkAccount, "M-32", "acct-32", validPayload())

		// Simulate a crash after the backend create: the record exists and
		// the session holds the reservation, but persisted was never set.
		reserved := id.NewRecordID()
		_, err := s.records.Create(s.ctx, &models.EducationRecord{
			ID:           reserved,
			MemberNumber: session.MemberNumber,
			AccountID:    session.AccountID,
		})
		s.Require().NoError(err)

		stored, err := s.sessions.Get(s.ctx, session.ID)
		s.Require().NoError(err)
		stored.RecordID = reserved
		s.Require().NoError(s.sessions.Update(s.ctx, stored))

		got, err := s.orchestrator.CreateRecord(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(reserved, got.RecordID, "the reserved ID must be adopted, not replaced")
		s.True(got.Progress.Persisted)

		records, err := s.records.FindByFilter(s.ctx, models.RecordFilter{MemberNumber: "M-32"})
		s.Require().NoError(err)
		s.Len(records, 1)
	})

	s.Run("failed backend create clears the reservation and retries from scratch", func() {
		faulty := &faultyRecordStore{InMemoryRecordStore: s.records}
		checker, err := regservice.New(faulty)
		s.Require().NoError(err)
		s.orchestrator, err = New(s.sessions, faulty, checker, s.settings, s.accounts)
		s.Require().NoError(err)

		session := s.stageThrough(StepLinkAccount, "M-33", "acct-33", validPayload())

		faulty.failCreate = true
		got, err := s.orchestrator.CreateRecord(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.True(got.RecordID.IsNil(), "no partial state survives a failed attempt")
		s.False(got.Progress.Persisted)
		s.Equal(models.StatusAccountLinked, got.Status)

		last := got.Transitions[len(got.Transitions)-1]
		s.Equal(StepCreateRecord, last.Step)
		s.Equal(models.OutcomeFail, last.Outcome)

		stored, err := s.sessions.Get(s.ctx, session.ID)
		s.Require().NoError(err)
		s.True(stored.RecordID.IsNil(), "the cleared reservation must be persisted")

		faulty.failCreate = false
		got, err = s.orchestrator.CreateRecord(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRecordCreated, got.Status)
		s.False(got.RecordID.IsNil())

		records, err := s.records.FindByFilter(s.ctx, models.RecordFilter{MemberNumber: "M-33"})
		s.Require().NoError(err)
		s.Len(records, 1, "the retry must not leave an orphan record")
	})
}

func (s *WorkflowSuite) TestStepOrdering() {
	s.Run("validate cannot rerun once the session has advanced", func() {
		session := s.stageThrough(StepLinkAccount, "M-35", "acct-35", validPayload())

		got, err := s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(models.StatusAccountLinked, got.Status)

		stored, err := s.orchestrator.Get(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAccountLinked, stored.Status, "status must never move backward")
		s.Len(stored.Transitions, len(session.Transitions), "ordering rejection must not extend the trail")
	})

	s.Run("category cannot be rederived after the record is created", func() {
		session := s.stageThrough(StepCreateRecord, "M-36", "acct-36", validPayload())

		got, err := s.orchestrator.DetermineCategory(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(models.StatusRecordCreated, got.Status)

		record, err := s.records.FindByID(s.ctx, session.RecordID)
		s.Require().NoError(err)
		s.Equal(got.Category, record.Category, "session and backend record must stay in agreement")
	})

	s.Run("validate advances once and then conflicts", func() {
		session := s.stageThrough(StepStage, "M-37", "acct-37", validPayload())

		got, err := s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusValidated, got.Status)

		// A second pass after success is an ordering conflict, not a rerun.
		_, err = s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *WorkflowSuite) TestComplete() {
	s.Run("requires a persisted record", func() {
		session := s.stageThrough(StepLinkAccount, "M-40", "acct-40", validPayload())
		_, err := s.orchestrator.Complete(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("completed sessions reject further steps", func() {
		session := s.stageThrough(StepCreateRecord, "M-41", "acct-41", validPayload())
		_, err := s.orchestrator.Complete(s.ctx, session.ID)
		s.Require().NoError(err)

		_, err = s.orchestrator.Validate(s.ctx, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *WorkflowSuite) TestExpiry() {
	s.Run("expired session rejects steps without touching state", func() {
		session, err := s.orchestrator.Stage(s.ctx, "M-9", validPayload())
		s.Require().NoError(err)

		later := requestcontext.WithTime(context.Background(), s.now.Add(25*time.Hour))
		_, err = s.orchestrator.Validate(later, session.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))

		got, err := s.orchestrator.Get(later, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusStaged, got.Status)
		s.Len(got.Transitions, 1, "the rejected step must not appear on the trail")
	})

	s.Run("expired session can still be read and aborted", func() {
		session, err := s.orchestrator.Stage(s.ctx, "M-10", validPayload())
		s.Require().NoError(err)

		later := requestcontext.WithTime(context.Background(), s.now.Add(25*time.Hour))
		got, err := s.orchestrator.Abort(later, session.ID, "expired, giving up")
		s.Require().NoError(err)
		s.Equal(models.StatusFailed, got.Status)
	})
}

func (s *WorkflowSuite) TestAbort() {
	s.Run("aborts any in-flight session with the reason recorded", func() {
		session := s.stageThrough(StepCategory, "M-50", "acct-50", validPayload())

		got, err := s.orchestrator.Abort(s.ctx, session.ID, "user cancelled")
		s.Require().NoError(err)
		s.Equal(models.StatusFailed, got.Status)
		s.Equal("user cancelled", got.ErrorMessage)

		last := got.Transitions[len(got.Transitions)-1]
		s.Equal(StepAbort, last.Step)
	})

	s.Run("terminal sessions cannot be aborted again", func() {
		session := s.stageThrough(StepStage, "M-51", "acct-51", validPayload())
		_, err := s.orchestrator.Abort(s.ctx, session.ID, "first")
		s.Require().NoError(err)

		_, err = s.orchestrator.Abort(s.ctx, session.ID, "second")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown session is not found", func() {
		_, err := s.orchestrator.Abort(s.ctx, id.NewSessionID(), "whatever")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
