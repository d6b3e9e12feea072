package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payoutdesk/internal/domain"
	"payoutdesk/internal/ranking"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
)

// Grouping selects which rollups a report carries.
type Grouping string

const (
	GroupingAll          Grouping = "all"
	GroupingOperator     Grouping = "operator"
	GroupingCounterparty Grouping = "counterparty"
)

// WithdrawalSource loads the withdrawals created in [from, to).
type WithdrawalSource interface {
	FindCreatedBetween(ctx context.Context, from, to time.Time) ([]*domain.Withdrawal, error)
}

// WorkSource loads works by id. Ids with no stored work are simply absent
// from the result.
type WorkSource interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Work, error)
}

// RateProvider supplies the current rate table.
type RateProvider interface {
	Table(ctx context.Context) (domain.RateTable, error)
}

// ReportRequest holds the raw report parameters.
type ReportRequest struct {
	Window   string
	Start    string
	End      string
	Grouping string
	Top      int
}

// Service loads a ledger snapshot, prices it and ranks the result.
type Service struct {
	withdrawals WithdrawalSource
	works       WorkSource
	rates       RateProvider
	engine      *Engine
	topN        int
	logger      logger.Logger
	now         func() time.Time
}

func NewService(withdrawals WithdrawalSource, works WorkSource, rates RateProvider, engine *Engine, topN int, log logger.Logger) *Service {
	if topN <= 0 {
		topN = 10
	}
	return &Service{
		withdrawals: withdrawals,
		works:       works,
		rates:       rates,
		engine:      engine,
		topN:        topN,
		logger:      log,
		now:         time.Now,
	}
}

// Generate builds a report for actor. Operators have no access to reports.
func (s *Service) Generate(ctx context.Context, actor domain.Principal, req ReportRequest) (*domain.Report, error) {
	if !actor.Active() {
		return nil, errors.ErrUnauthorized
	}
	if actor.HasRole(domain.RoleOperator) {
		return nil, errors.New(errors.CodeForbidden, "reports are limited to supervisors")
	}

	grouping, err := parseGrouping(req.Grouping)
	if err != nil {
		return nil, err
	}
	top := s.topN
	if req.Top < 0 {
		return nil, errors.New(errors.CodeValidation, "top must not be negative")
	}
	if req.Top > 0 {
		top = req.Top
	}

	asOf := s.now().UTC()
	window, err := ParseWindow(req.Window, req.Start, req.End, asOf, s.engine.location)
	if err != nil {
		return nil, err
	}

	from := window.Start
	if lb := s.engine.LookbackStart(asOf); lb.Before(from) {
		from = lb
	}
	to := window.End
	if past := asOf.Add(time.Nanosecond); past.After(to) {
		to = past
	}

	withdrawals, err := s.withdrawals.FindCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0)
	for _, w := range withdrawals {
		if !seen[w.WorkID] {
			seen[w.WorkID] = true
			ids = append(ids, w.WorkID)
		}
	}
	works, err := s.works.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	table, err := s.rates.Table(ctx)
	if err != nil {
		return nil, errors.WithCause(errors.CodeMissingRate, err, "rate table unavailable")
	}

	report, err := s.engine.Aggregate(Input{
		Works:       works,
		Withdrawals: withdrawals,
		Rates:       table,
		Window:      window,
		AsOf:        asOf,
	})
	if err != nil {
		s.logger.Error("Report aggregation failed", map[string]interface{}{
			"actor_id": actor.ID,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.rank(report, grouping, top)

	s.logger.Info("Report generated", map[string]interface{}{
		"actor_id":    actor.ID,
		"window":      window.Start.Format(time.RFC3339) + "/" + window.End.Format(time.RFC3339),
		"grouping":    grouping,
		"withdrawals": report.Totals.Withdrawals,
		"skipped":     report.SkippedDangling,
	})

	return report, nil
}

func (s *Service) rank(report *domain.Report, grouping Grouping, top int) {
	if grouping == GroupingAll || grouping == GroupingOperator {
		report.TopOperators = ranking.TopN(report.Operators, top,
			func(r domain.OperatorRollup) decimal.Decimal { return r.TotalProfit },
			func(r domain.OperatorRollup) string { return r.OperatorID.String() })
	} else {
		report.Operators = nil
	}

	if grouping == GroupingAll || grouping == GroupingCounterparty {
		report.TopCounterparties = ranking.TopN(report.Counterparties, top,
			func(r domain.CounterpartyRollup) decimal.Decimal { return r.TotalProfit },
			func(r domain.CounterpartyRollup) string { return r.CounterpartyID })
	} else {
		report.Counterparties = nil
	}
}

func parseGrouping(v string) (Grouping, error) {
	switch g := Grouping(strings.ToLower(strings.TrimSpace(v))); g {
	case "":
		return GroupingAll, nil
	case GroupingAll, GroupingOperator, GroupingCounterparty:
		return g, nil
	default:
		return "", errors.New(errors.CodeValidation, "unknown grouping %q", v)
	}
}
