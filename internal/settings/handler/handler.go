package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"enrolld/internal/settings/models"
	dErrors "enrolld/pkg/domain-errors"
)

// Service is the settings surface the admin API consumes.
type Service interface {
	GetCutoff(ctx context.Context, scopeKey string) (*models.BenefitCutoff, error)
	SetCutoff(ctx context.Context, scopeKey string, date time.Time, updatedBy string) (*models.BenefitCutoff, error)
}

// Handler exposes benefit cutoffs on the admin surface only. The router
// mounts it behind the admin-token middleware; there is deliberately no
// public write path to a cutoff.
type Handler struct {
	settings Service
	logger   *slog.Logger
}

func New(settings Service, logger *slog.Logger) *Handler {
	return &Handler{settings: settings, logger: logger}
}

// RegisterAdmin mounts the cutoff routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/settings/cutoff/{scopeKey}", h.handleGet)
	r.Put("/settings/cutoff/{scopeKey}", h.handleSet)
}

type setCutoffRequest struct {
	CutoffDate string `json:"cutoff_date"`
	UpdatedBy  string `json:"updated_by"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cutoff, err := h.settings.GetCutoff(r.Context(), chi.URLParam(r, "scopeKey"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cutoff)
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setCutoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	date, err := time.Parse(time.DateOnly, req.CutoffDate)
	if err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeBadRequest, "cutoff_date must be YYYY-MM-DD"))
		return
	}

	cutoff, err := h.settings.SetCutoff(r.Context(), chi.URLParam(r, "scopeKey"), date, req.UpdatedBy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cutoff)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest:
		status = http.StatusBadRequest
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}

	message := "internal error"
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	h.writeJSON(w, status, map[string]string{
		"error":             string(dErrors.CodeOf(err)),
		"error_description": message,
	})
}
