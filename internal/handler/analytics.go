package handler

import (
	"context"
	"net/http"
	"strconv"

	"payoutdesk/internal/analytics"
	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
)

// ReportService produces the analytics report.
type ReportService interface {
	Generate(ctx context.Context, actor domain.Principal, req analytics.ReportRequest) (*domain.Report, error)
}

// ReportHandler manages the analytics report endpoint.
type ReportHandler struct {
	service ReportService
	logger  logger.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(service ReportService, log logger.Logger) *ReportHandler {
	return &ReportHandler{service: service, logger: log}
}

// GetReport handles GET /report?window=30d&grouping=operator&top=5.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	actor, err := principal(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	req := analytics.ReportRequest{
		Window:   q.Get("window"),
		Start:    q.Get("start"),
		End:      q.Get("end"),
		Grouping: q.Get("grouping"),
	}
	if v := q.Get("top"); v != "" {
		req.Top, err = strconv.Atoi(v)
		if err != nil {
			respondError(w, r, h.logger, errors.New(errors.CodeValidation, "top must be an integer"))
			return
		}
	}

	report, err := h.service.Generate(r.Context(), actor, req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
