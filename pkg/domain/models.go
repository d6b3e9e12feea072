package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency represents ISO 4217 currency codes
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

// Work is a deposit placed by an operator against a counterparty account.
type Work struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	OwnerID              uuid.UUID       `json:"owner_id" db:"owner_id"`
	CounterpartyID       string          `json:"counterparty_id" db:"counterparty_id"`
	CounterpartyCurrency Currency        `json:"counterparty_currency" db:"counterparty_currency"`
	DepositAmount        decimal.Decimal `json:"deposit_amount" db:"deposit_amount"`
	Status               WorkStatus      `json:"status" db:"status"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

type WorkStatus string

const (
	WorkStatusActive    WorkStatus = "active"
	WorkStatusCompleted WorkStatus = "completed"
	WorkStatusCancelled WorkStatus = "cancelled"
	WorkStatusBlocked   WorkStatus = "blocked"
)

// Valid reports whether s is a known work status.
func (s WorkStatus) Valid() bool {
	switch s {
	case WorkStatusActive, WorkStatusCompleted, WorkStatusCancelled, WorkStatusBlocked:
		return true
	}
	return false
}

// Withdrawal is a payout request raised against a Work. Its currency is the
// owning Work's counterparty currency.
type Withdrawal struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	WorkID           uuid.UUID        `json:"work_id" db:"work_id"`
	WithdrawalAmount decimal.Decimal  `json:"withdrawal_amount" db:"withdrawal_amount"`
	Status           WithdrawalStatus `json:"status" db:"status"`
	ReviewerComment  string           `json:"reviewer_comment" db:"reviewer_comment"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

type WithdrawalStatus string

const (
	WithdrawalStatusNew      WithdrawalStatus = "new"
	WithdrawalStatusWaiting  WithdrawalStatus = "waiting"
	WithdrawalStatusReceived WithdrawalStatus = "received"
	WithdrawalStatusBlock    WithdrawalStatus = "block"
)

// Valid reports whether s is a known withdrawal status.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusNew, WithdrawalStatusWaiting, WithdrawalStatusReceived, WithdrawalStatusBlock:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusReceived || s == WithdrawalStatusBlock
}

// DefaultSLA is how long a waiting withdrawal may stay open before it is overdue.
const DefaultSLA = 4 * time.Hour

// IsOverdue is true when the withdrawal is waiting and strictly more than sla
// has elapsed since it was created.
func (w *Withdrawal) IsOverdue(now time.Time, sla time.Duration) bool {
	return w.Status == WithdrawalStatusWaiting && now.Sub(w.CreatedAt) > sla
}

// WithdrawalComment is the audit record written for every status change.
type WithdrawalComment struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	WithdrawalID uuid.UUID        `json:"withdrawal_id" db:"withdrawal_id"`
	ActorID      uuid.UUID        `json:"actor_id" db:"actor_id"`
	FromStatus   WithdrawalStatus `json:"from_status" db:"from_status"`
	ToStatus     WithdrawalStatus `json:"to_status" db:"to_status"`
	Comment      string           `json:"comment" db:"comment"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// CurrencyRate is the price of one unit of CurrencyCode in the reporting currency.
type CurrencyRate struct {
	CurrencyCode Currency        `json:"currency_code" db:"currency_code"`
	Rate         decimal.Decimal `json:"rate" db:"rate_to_reporting"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// RateTable maps a currency to its rate into the reporting currency.
type RateTable map[Currency]decimal.Decimal

// Clone returns an independent copy of the table.
func (t RateTable) Clone() RateTable {
	out := make(RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// WithdrawalView is a withdrawal as presented to readers, with its inherited
// currency and the derived overdue flag computed at read time.
type WithdrawalView struct {
	Withdrawal
	Currency Currency `json:"currency"`
	Overdue  bool     `json:"overdue"`
}

// NewWithdrawalView derives the read model of w as of now.
func NewWithdrawalView(w *Withdrawal, currency Currency, now time.Time, sla time.Duration) WithdrawalView {
	return WithdrawalView{
		Withdrawal: *w,
		Currency:   currency,
		Overdue:    w.IsOverdue(now, sla),
	}
}
