// Package analytics turns a snapshot of works and withdrawals into the
// profitability, SLA and leaderboard report read by supervisors.
package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payoutdesk/internal/domain"
	"payoutdesk/internal/forex"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
)

// SeriesDays is the fixed length of the daily time series.
const SeriesDays = 30

const dateLayout = "2006-01-02"

const (
	hundredths   = 2
	rateDecimals = 4
)

var hourNanos = decimal.NewFromInt(int64(time.Hour))

// Input is one aggregation run. AsOf is the single clock reading every
// window, sub-window and SLA computation in the run is measured against.
type Input struct {
	Works       []*domain.Work
	Withdrawals []*domain.Withdrawal
	Rates       domain.RateTable
	Window      Window
	AsOf        time.Time
}

// Engine aggregates ledger snapshots. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	converter forex.Converter
	location  *time.Location
	sla       time.Duration
	logger    logger.Logger
}

// NewEngine creates an aggregation engine. Calendar days are taken in loc.
func NewEngine(converter forex.Converter, loc *time.Location, sla time.Duration, log logger.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if sla <= 0 {
		sla = domain.DefaultSLA
	}
	return &Engine{converter: converter, location: loc, sla: sla, logger: log}
}

// LookbackStart is the earliest created_at the run needs besides the window:
// the start of the daily series or of the 30-day sub-window, whichever is
// earlier.
func (e *Engine) LookbackStart(asOf time.Time) time.Time {
	local := asOf.In(e.location)
	seriesStart := time.Date(local.Year(), local.Month(), local.Day()-(SeriesDays-1), 0, 0, 0, 0, e.location)
	monthStart := asOf.Add(-30 * 24 * time.Hour)
	if seriesStart.Before(monthStart) {
		return seriesStart
	}
	return monthStart
}

// workRef is the outcome of resolving a withdrawal's owning work: either
// Found with the work or Missing.
type workRef struct {
	work  *domain.Work
	found bool
}

type workIndex map[uuid.UUID]*domain.Work

func (idx workIndex) resolve(id uuid.UUID) workRef {
	w, ok := idx[id]
	if !ok || w == nil {
		return workRef{}
	}
	return workRef{work: w, found: true}
}

type operatorAcc struct {
	id          uuid.UUID
	withdrawals int
	received    int
	profit      decimal.Decimal
}

type counterpartyAcc struct {
	id          string
	withdrawals int
	received    int
	deposits    decimal.Decimal
	paidOut     decimal.Decimal
	profit      decimal.Decimal
	dailyProfit map[string]decimal.Decimal
}

type dayAcc struct {
	date        string
	deposits    decimal.Decimal
	withdrawals decimal.Decimal
	profit      decimal.Decimal
}

// run carries the accumulators of a single Aggregate call.
type run struct {
	in           Input
	todayStart   time.Time
	weekStart    time.Time
	monthStart   time.Time
	lookback     time.Time
	days         []*dayAcc
	dayIndex     map[string]int
	operators    map[uuid.UUID]*operatorAcc
	counterparts map[string]*counterpartyAcc

	count          int
	byStatus       domain.StatusCounts
	overdue        int
	totalProfit    decimal.Decimal
	profitToday    decimal.Decimal
	profitWeek     decimal.Decimal
	profitMonth    decimal.Decimal
	processed      int
	processingNano decimal.Decimal
	skipped        int
}

// Aggregate builds the report for in. Amounts are converted exactly and only
// rounded when the report is assembled. A withdrawal whose work cannot be
// resolved is skipped and counted; a currency without a rate fails the whole
// run with ErrMissingRate.
func (e *Engine) Aggregate(in Input) (*domain.Report, error) {
	r := e.newRun(in)

	idx := make(workIndex, len(in.Works))
	for _, w := range in.Works {
		idx[w.ID] = w
	}

	for _, w := range in.Withdrawals {
		inWindow := in.Window.Contains(w.CreatedAt)
		recent := !w.CreatedAt.Before(r.lookback) && !w.CreatedAt.After(in.AsOf)
		if !inWindow && !recent {
			continue
		}

		ref := idx.resolve(w.WorkID)
		if !ref.found {
			r.skipped++
			e.logger.Warn("Skipping withdrawal with dangling work reference", map[string]interface{}{
				"withdrawal_id": w.ID,
				"work_id":       w.WorkID,
			})
			continue
		}

		deposit, err := e.toReporting(ref.work.DepositAmount, ref.work.CounterpartyCurrency, in.Rates)
		if err != nil {
			return nil, err
		}
		paidOut, err := e.toReporting(w.WithdrawalAmount, ref.work.CounterpartyCurrency, in.Rates)
		if err != nil {
			return nil, err
		}
		profit := paidOut.Sub(deposit)

		if recent {
			r.addRecent(w, deposit, paidOut, profit, e.location)
		}
		if inWindow {
			r.addWindowed(w, ref.work, deposit, paidOut, profit, e)
		}
	}

	return r.report(e.converter.ReportingCurrency()), nil
}

func (e *Engine) toReporting(amount decimal.Decimal, currency domain.Currency, table domain.RateTable) (decimal.Decimal, error) {
	v, err := e.converter.ToReporting(amount, currency, table)
	if err != nil {
		return decimal.Zero, errors.WithCause(errors.CodeMissingRate, err, "no %s rate for %s", e.converter.ReportingCurrency(), currency)
	}
	return v, nil
}

func (e *Engine) newRun(in Input) *run {
	local := in.AsOf.In(e.location)
	r := &run{
		in:           in,
		todayStart:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.location),
		weekStart:    in.AsOf.Add(-7 * 24 * time.Hour),
		monthStart:   in.AsOf.Add(-30 * 24 * time.Hour),
		lookback:     e.LookbackStart(in.AsOf),
		days:         make([]*dayAcc, SeriesDays),
		dayIndex:     make(map[string]int, SeriesDays),
		operators:    make(map[uuid.UUID]*operatorAcc),
		counterparts: make(map[string]*counterpartyAcc),
	}
	for i := 0; i < SeriesDays; i++ {
		day := time.Date(local.Year(), local.Month(), local.Day()-(SeriesDays-1-i), 0, 0, 0, 0, e.location)
		key := day.Format(dateLayout)
		r.days[i] = &dayAcc{date: key}
		r.dayIndex[key] = i
	}
	return r
}

func (r *run) addRecent(w *domain.Withdrawal, deposit, paidOut, profit decimal.Decimal, loc *time.Location) {
	if i, ok := r.dayIndex[w.CreatedAt.In(loc).Format(dateLayout)]; ok {
		d := r.days[i]
		d.deposits = d.deposits.Add(deposit)
		d.withdrawals = d.withdrawals.Add(paidOut)
		d.profit = d.profit.Add(profit)
	}
	if !w.CreatedAt.Before(r.todayStart) {
		r.profitToday = r.profitToday.Add(profit)
	}
	if w.CreatedAt.After(r.weekStart) {
		r.profitWeek = r.profitWeek.Add(profit)
	}
	if w.CreatedAt.After(r.monthStart) {
		r.profitMonth = r.profitMonth.Add(profit)
	}
}

func (r *run) addWindowed(w *domain.Withdrawal, work *domain.Work, deposit, paidOut, profit decimal.Decimal, e *Engine) {
	r.count++
	r.totalProfit = r.totalProfit.Add(profit)

	switch w.Status {
	case domain.WithdrawalStatusNew:
		r.byStatus.New++
	case domain.WithdrawalStatusWaiting:
		r.byStatus.Waiting++
	case domain.WithdrawalStatusReceived:
		r.byStatus.Received++
	case domain.WithdrawalStatusBlock:
		r.byStatus.Block++
	}
	if w.IsOverdue(r.in.AsOf, e.sla) {
		r.overdue++
	}
	if w.Status.Terminal() {
		r.processed++
		r.processingNano = r.processingNano.Add(decimal.NewFromInt(int64(w.UpdatedAt.Sub(w.CreatedAt))))
	}
	received := w.Status == domain.WithdrawalStatusReceived

	op, ok := r.operators[work.OwnerID]
	if !ok {
		op = &operatorAcc{id: work.OwnerID}
		r.operators[work.OwnerID] = op
	}
	op.withdrawals++
	if received {
		op.received++
	}
	op.profit = op.profit.Add(profit)

	cp, ok := r.counterparts[work.CounterpartyID]
	if !ok {
		cp = &counterpartyAcc{id: work.CounterpartyID, dailyProfit: make(map[string]decimal.Decimal)}
		r.counterparts[work.CounterpartyID] = cp
	}
	cp.withdrawals++
	if received {
		cp.received++
	}
	cp.deposits = cp.deposits.Add(deposit)
	cp.paidOut = cp.paidOut.Add(paidOut)
	cp.profit = cp.profit.Add(profit)
	day := w.CreatedAt.In(e.location).Format(dateLayout)
	cp.dailyProfit[day] = cp.dailyProfit[day].Add(profit)
}

func (r *run) report(currency domain.Currency) *domain.Report {
	totals := domain.GlobalTotals{
		Withdrawals:        r.count,
		ByStatus:           r.byStatus,
		Overdue:            r.overdue,
		TotalProfit:        r.totalProfit.Round(hundredths),
		AverageProfit:      decimal.Zero,
		ProfitToday:        r.profitToday.Round(hundredths),
		ProfitLast7Days:    r.profitWeek.Round(hundredths),
		ProfitLast30Days:   r.profitMonth.Round(hundredths),
		AvgProcessingHours: decimal.Zero,
	}
	if r.count > 0 {
		totals.AverageProfit = r.totalProfit.Div(decimal.NewFromInt(int64(r.count))).Round(hundredths)
	}
	if r.processed > 0 {
		totals.AvgProcessingHours = r.processingNano.
			Div(decimal.NewFromInt(int64(r.processed))).
			Div(hourNanos).
			Round(hundredths)
	}

	operators := make([]domain.OperatorRollup, 0, len(r.operators))
	for _, acc := range r.operators {
		operators = append(operators, domain.OperatorRollup{
			OperatorID:  acc.id,
			Withdrawals: acc.withdrawals,
			Received:    acc.received,
			TotalProfit: acc.profit.Round(hundredths),
			SuccessRate: successRate(acc.received, acc.withdrawals),
		})
	}
	sort.Slice(operators, func(i, j int) bool {
		return operators[i].OperatorID.String() < operators[j].OperatorID.String()
	})

	counterparties := make([]domain.CounterpartyRollup, 0, len(r.counterparts))
	for _, acc := range r.counterparts {
		counterparties = append(counterparties, domain.CounterpartyRollup{
			CounterpartyID:   acc.id,
			Withdrawals:      acc.withdrawals,
			Received:         acc.received,
			TotalDeposits:    acc.deposits.Round(hundredths),
			TotalWithdrawals: acc.paidOut.Round(hundredths),
			TotalProfit:      acc.profit.Round(hundredths),
			SuccessRate:      successRate(acc.received, acc.withdrawals),
			BestDayProfit:    bestDay(acc.dailyProfit).Round(hundredths),
		})
	}
	sort.Slice(counterparties, func(i, j int) bool {
		return counterparties[i].CounterpartyID < counterparties[j].CounterpartyID
	})

	daily := make([]domain.DailyPoint, 0, SeriesDays)
	for _, d := range r.days {
		daily = append(daily, domain.DailyPoint{
			Date:        d.date,
			Deposits:    d.deposits.Round(hundredths),
			Withdrawals: d.withdrawals.Round(hundredths),
			Profit:      d.profit.Round(hundredths),
		})
	}

	return &domain.Report{
		GeneratedAt:     r.in.AsOf,
		Currency:        currency,
		WindowStart:     r.in.Window.Start,
		WindowEnd:       r.in.Window.End,
		Totals:          totals,
		Operators:       operators,
		Counterparties:  counterparties,
		Daily:           daily,
		SkippedDangling: r.skipped,
	}
}

func successRate(received, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(received)).Div(decimal.NewFromInt(int64(total))).Round(rateDecimals)
}

func bestDay(days map[string]decimal.Decimal) decimal.Decimal {
	best := decimal.Zero
	first := true
	for _, p := range days {
		if first || p.GreaterThan(best) {
			best = p
			first = false
		}
	}
	return best
}
