package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"payoutdesk/internal/domain"
	"payoutdesk/internal/work"
	"payoutdesk/pkg/logger"
	"payoutdesk/pkg/validator"
)

// WorkService is the work registry as seen by HTTP.
type WorkService interface {
	CreateWork(ctx context.Context, actor domain.Principal, req *work.CreateWorkRequest) (*domain.Work, error)
	TransitionWork(ctx context.Context, actor domain.Principal, id uuid.UUID, status domain.WorkStatus) (*domain.Work, error)
	DeleteWork(ctx context.Context, actor domain.Principal, id uuid.UUID) error
	GetWork(ctx context.Context, actor domain.Principal, id uuid.UUID) (*work.WorkDetails, error)
	ListWorks(ctx context.Context, actor domain.Principal) ([]*domain.Work, error)
}

// WorkHandler manages work endpoints.
type WorkHandler struct {
	service   WorkService
	validator *validator.Validator
	logger    logger.Logger
}

// NewWorkHandler creates a WorkHandler.
func NewWorkHandler(service WorkService, val *validator.Validator, log logger.Logger) *WorkHandler {
	return &WorkHandler{service: service, validator: val, logger: log}
}

// CreateWork handles POST /work.
func (h *WorkHandler) CreateWork(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req work.CreateWorkRequest
	if err := decodeBody(w, r, h.validator, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	created, err := h.service.CreateWork(r.Context(), actor, &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// ListWorks handles GET /work.
func (h *WorkHandler) ListWorks(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	works, err := h.service.ListWorks(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"works": works,
		"count": len(works),
	})
}

// GetWork handles GET /work/{id}.
func (h *WorkHandler) GetWork(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	details, err := h.service.GetWork(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, details)
}

// TransitionWork handles PATCH /work/{id}.
func (h *WorkHandler) TransitionWork(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req work.TransitionWorkRequest
	if err := decodeBody(w, r, h.validator, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.TransitionWork(r.Context(), actor, id, req.Status)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// DeleteWork handles DELETE /work/{id}.
func (h *WorkHandler) DeleteWork(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeleteWork(r.Context(), actor, id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
