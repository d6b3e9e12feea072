package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
	"payoutdesk/pkg/validator"
)

// RateTableService exposes the current rate snapshot.
type RateTableService interface {
	Table(ctx context.Context) (domain.RateTable, error)
	Refresh(ctx context.Context) (domain.RateTable, error)
}

// RateStore persists operator-maintained rates.
type RateStore interface {
	Upsert(ctx context.Context, rate *domain.CurrencyRate) error
}

// UpdateRateRequest is the body of PUT /rates/{currency}.
type UpdateRateRequest struct {
	Rate decimal.Decimal `json:"rate" validate:"required"`
}

// ForexHandler manages the rate table endpoints.
type ForexHandler struct {
	service   RateTableService
	store     RateStore
	reporting domain.Currency
	validator *validator.Validator
	logger    logger.Logger
}

// NewForexHandler creates a ForexHandler.
func NewForexHandler(service RateTableService, store RateStore, reporting domain.Currency, val *validator.Validator, log logger.Logger) *ForexHandler {
	return &ForexHandler{
		service:   service,
		store:     store,
		reporting: reporting,
		validator: val,
		logger:    log,
	}
}

// GetRates handles GET /rates.
func (h *ForexHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	table, err := h.service.Table(r.Context())
	if err != nil {
		respondError(w, r, h.logger, errors.WithCause(errors.CodeMissingRate, err, "rate table unavailable"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reporting_currency": h.reporting,
		"rates":              table,
	})
}

// UpdateRate handles PUT /rates/{currency}. Only finance and admin may edit
// rates; the snapshot is refreshed right after the write.
func (h *ForexHandler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if !actor.HasRole(domain.RoleFinance, domain.RoleAdmin) {
		respondError(w, r, h.logger, errors.ErrForbidden)
		return
	}

	currency := domain.Currency(strings.ToUpper(mux.Vars(r)["currency"]))
	if len(currency) != 3 {
		respondError(w, r, h.logger, errors.New(errors.CodeValidation, "invalid currency %q", currency))
		return
	}
	if currency == h.reporting {
		respondError(w, r, h.logger, errors.New(errors.CodeValidation, "the reporting currency always has rate 1"))
		return
	}

	var req UpdateRateRequest
	if err := decodeBody(w, r, h.validator, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if !req.Rate.IsPositive() {
		respondError(w, r, h.logger, errors.New(errors.CodeValidation, "rate must be positive"))
		return
	}

	rate := &domain.CurrencyRate{CurrencyCode: currency, Rate: req.Rate, UpdatedAt: time.Now().UTC()}
	if err := h.store.Upsert(r.Context(), rate); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if _, err := h.service.Refresh(r.Context()); err != nil {
		h.logger.Warn("Rate refresh after update failed", map[string]interface{}{
			"currency": currency,
			"error":    err.Error(),
		})
	}

	h.logger.Info("Currency rate updated", map[string]interface{}{
		"currency": currency,
		"rate":     req.Rate.String(),
		"user_id":  actor.ID.String(),
	})

	respondJSON(w, http.StatusOK, rate)
}
