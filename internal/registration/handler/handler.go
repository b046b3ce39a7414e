package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Workflow is the orchestrator surface the HTTP layer consumes.
type Workflow interface {
	Stage(ctx context.Context, member id.MemberNumber, payload models.CandidateRecord) (*models.RegistrationSession, error)
	Validate(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error)
	DetermineCategory(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error)
	LinkAccount(ctx context.Context, sessionID id.SessionID, accountID id.AccountID) (*models.RegistrationSession, error)
	CreateRecord(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error)
	Complete(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error)
	Abort(ctx context.Context, sessionID id.SessionID, reason string) (*models.RegistrationSession, error)
	Get(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]*models.RegistrationSession, error)
}

// RecordReader is the read-only record surface exposed over HTTP.
type RecordReader interface {
	FindByID(ctx context.Context, recordID id.RecordID) (*models.EducationRecord, error)
}

// Handler exposes the registration workflow over HTTP. It delegates to the
// orchestrator and keeps transport concerns out of business logic.
type Handler struct {
	workflow Workflow
	records  RecordReader
	logger   *slog.Logger
}

func New(workflow Workflow, records RecordReader, logger *slog.Logger) *Handler {
	return &Handler{
		workflow: workflow,
		records:  records,
		logger:   logger,
	}
}

// Register mounts the public registration routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations", h.handleStage)
	r.Get("/registrations/{sessionID}", h.handleGet)
	r.Post("/registrations/{sessionID}/validate", h.step(h.workflow.Validate))
	r.Post("/registrations/{sessionID}/category", h.step(h.workflow.DetermineCategory))
	r.Post("/registrations/{sessionID}/record", h.step(h.workflow.CreateRecord))
	r.Post("/registrations/{sessionID}/complete", h.step(h.workflow.Complete))
	r.Post("/registrations/{sessionID}/account", h.handleLinkAccount)
	r.Post("/registrations/{sessionID}/abort", h.handleAbort)
	r.Get("/records/{recordID}", h.handleGetRecord)
}

// RegisterAdmin mounts the admin listing route. The caller wraps the router
// in the admin-token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/registrations", h.handleList)
}

func (h *Handler) handleStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"), nil)
		return
	}

	session, err := h.workflow.Stage(ctx, id.MemberNumber(req.MemberNumber), req.Payload)
	if err != nil {
		h.logFailure(ctx, "stage failed", err)
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// step adapts the orchestrator operations that take only a session ID.
func (h *Handler) step(op func(context.Context, id.SessionID) (*models.RegistrationSession, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, ok := h.sessionID(w, r)
		if !ok {
			return
		}

		session, err := op(ctx, sessionID)
		if err != nil {
			h.logFailure(ctx, "workflow step failed", err)
			writeError(w, err, session)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (h *Handler) handleLinkAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req LinkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"), nil)
		return
	}

	session, err := h.workflow.LinkAccount(ctx, sessionID, id.AccountID(req.AccountID))
	if err != nil {
		h.logFailure(ctx, "link account failed", err)
		writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req AbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"), nil)
		return
	}
	if req.Reason == "" {
		req.Reason = "aborted by caller"
	}

	session, err := h.workflow.Abort(ctx, sessionID, req.Reason)
	if err != nil {
		h.logFailure(ctx, "abort failed", err)
		writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.workflow.Get(ctx, sessionID)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.SessionFilter{
		Status:       models.Status(r.URL.Query().Get("status")),
		MemberNumber: id.MemberNumber(r.URL.Query().Get("member_number")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", filter.Status), nil)
		return
	}

	sessions, err := h.workflow.List(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "list sessions failed", err)
		writeError(w, err, nil)
		return
	}
	if sessions == nil {
		sessions = []*models.RegistrationSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid record id"), nil)
		return
	}

	record, err := h.records.FindByID(ctx, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "record not found"), nil)
		return
	}
	if err != nil {
		h.logFailure(ctx, "record lookup failed", err)
		writeError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "record lookup failed"), nil)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"), nil)
		return id.SessionID{}, false
	}
	return sessionID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
