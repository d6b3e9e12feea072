package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusCounts counts withdrawals per status.
type StatusCounts struct {
	New      int `json:"new"`
	Waiting  int `json:"waiting"`
	Received int `json:"received"`
	Block    int `json:"block"`
}

// GlobalTotals are the report-wide figures.
type GlobalTotals struct {
	Withdrawals        int             `json:"withdrawals"`
	ByStatus           StatusCounts    `json:"by_status"`
	Overdue            int             `json:"overdue"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	AverageProfit      decimal.Decimal `json:"average_profit"`
	ProfitToday        decimal.Decimal `json:"profit_today"`
	ProfitLast7Days    decimal.Decimal `json:"profit_last_7_days"`
	ProfitLast30Days   decimal.Decimal `json:"profit_last_30_days"`
	AvgProcessingHours decimal.Decimal `json:"avg_processing_hours"`
}

// OperatorRollup aggregates withdrawals by Work owner.
type OperatorRollup struct {
	OperatorID  uuid.UUID       `json:"operator_id"`
	Withdrawals int             `json:"withdrawals"`
	Received    int             `json:"received"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	SuccessRate decimal.Decimal `json:"success_rate"`
}

// CounterpartyRollup aggregates withdrawals by Work counterparty.
type CounterpartyRollup struct {
	CounterpartyID   string          `json:"counterparty_id"`
	Withdrawals      int             `json:"withdrawals"`
	Received         int             `json:"received"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	SuccessRate      decimal.Decimal `json:"success_rate"`
	BestDayProfit    decimal.Decimal `json:"best_day_profit"`
}

// DailyPoint is one calendar day of the time series.
type DailyPoint struct {
	Date        string          `json:"date"`
	Deposits    decimal.Decimal `json:"deposits"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Profit      decimal.Decimal `json:"profit"`
}

// Report is the output of one aggregation run. All amounts are in Currency
// and rounded to two places.
type Report struct {
	GeneratedAt       time.Time            `json:"generated_at"`
	Currency          Currency             `json:"currency"`
	WindowStart       time.Time            `json:"window_start"`
	WindowEnd         time.Time            `json:"window_end"`
	Totals            GlobalTotals         `json:"totals"`
	Operators         []OperatorRollup     `json:"operators,omitempty"`
	Counterparties    []CounterpartyRollup `json:"counterparties,omitempty"`
	Daily             []DailyPoint         `json:"daily"`
	TopOperators      []OperatorRollup     `json:"top_operators,omitempty"`
	TopCounterparties []CounterpartyRollup `json:"top_counterparties,omitempty"`
	SkippedDangling   int                  `json:"skipped_dangling"`
}
