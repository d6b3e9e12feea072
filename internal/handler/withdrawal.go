package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"payoutdesk/internal/domain"
	"payoutdesk/internal/withdrawal"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
	"payoutdesk/pkg/validator"
)

// WithdrawalService is the withdrawal ledger as seen by HTTP.
type WithdrawalService interface {
	CreateWithdrawal(ctx context.Context, actor domain.Principal, req *withdrawal.CreateWithdrawalRequest) (*domain.Withdrawal, error)
	Advance(ctx context.Context, actor domain.Principal, id uuid.UUID, req *withdrawal.AdvanceRequest) (*domain.Withdrawal, error)
	GetWithdrawal(ctx context.Context, actor domain.Principal, id uuid.UUID) (*withdrawal.Details, error)
	ReviewQueue(ctx context.Context, actor domain.Principal, status domain.WithdrawalStatus, overdueOnly bool) ([]domain.WithdrawalView, error)
}

// WithdrawalHandler manages withdrawal endpoints.
type WithdrawalHandler struct {
	service   WithdrawalService
	validator *validator.Validator
	logger    logger.Logger
}

// NewWithdrawalHandler creates a WithdrawalHandler.
func NewWithdrawalHandler(service WithdrawalService, val *validator.Validator, log logger.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{service: service, validator: val, logger: log}
}

// CreateWithdrawal handles POST /withdrawal.
func (h *WithdrawalHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req withdrawal.CreateWithdrawalRequest
	if err := decodeBody(w, r, h.validator, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	created, err := h.service.CreateWithdrawal(r.Context(), actor, &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// AdvanceWithdrawal handles PATCH /withdrawal/{id}.
func (h *WithdrawalHandler) AdvanceWithdrawal(w http.ResponseWriter, r *http.Request) {
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

	var req withdrawal.AdvanceRequest
	if err := decodeBody(w, r, h.validator, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.Advance(r.Context(), actor, id, &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// GetWithdrawal handles GET /withdrawal/{id}.
func (h *WithdrawalHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
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

	details, err := h.service.GetWithdrawal(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, details)
}

// ReviewQueue handles GET /withdrawal?status=waiting&overdue=true.
func (h *WithdrawalHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	status := domain.WithdrawalStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, r, h.logger, errors.New(errors.CodeValidation, "unknown status %q", status))
		return
	}
	overdue := false
	if v := q.Get("overdue"); v != "" {
		overdue, err = strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, h.logger, errors.New(errors.CodeValidation, "overdue must be a boolean"))
			return
		}
	}

	queue, err := h.service.ReviewQueue(r.Context(), actor, status, overdue)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"withdrawals": queue,
		"count":       len(queue),
	})
}
