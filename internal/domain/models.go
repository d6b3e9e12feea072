// Package domain re-exports core domain types so internal code can import
// `payoutdesk/internal/domain` while using definitions from `payoutdesk/pkg/domain`.
package domain

import pkg "payoutdesk/pkg/domain"

// Currency represents a currency code.
type Currency = pkg.Currency

// Principal is the authenticated caller.
type Principal = pkg.Principal

// Role is a principal's authorization role.
type Role = pkg.Role

// PrincipalStatus marks a principal active or inactive.
type PrincipalStatus = pkg.PrincipalStatus

// Work is a tracked deposit.
type Work = pkg.Work

// WorkStatus represents work lifecycle states.
type WorkStatus = pkg.WorkStatus

// Withdrawal is a payout request against a Work.
type Withdrawal = pkg.Withdrawal

// WithdrawalStatus represents withdrawal lifecycle states.
type WithdrawalStatus = pkg.WithdrawalStatus

// WithdrawalComment is the audit record of a status change.
type WithdrawalComment = pkg.WithdrawalComment

// CurrencyRate is a single reporting-currency rate.
type CurrencyRate = pkg.CurrencyRate

// RateTable maps currencies to reporting-currency rates.
type RateTable = pkg.RateTable

// DefaultSLA is the overdue threshold for waiting withdrawals.
const DefaultSLA = pkg.DefaultSLA

// Re-exported currency codes.
const (
	USD = pkg.USD
	EUR = pkg.EUR
	GBP = pkg.GBP
)

// Re-exported roles.
const (
	RoleOperator    = pkg.RoleOperator
	RoleTeamLead    = pkg.RoleTeamLead
	RoleCoordinator = pkg.RoleCoordinator
	RoleHR          = pkg.RoleHR
	RoleFinance     = pkg.RoleFinance
	RoleAdmin       = pkg.RoleAdmin
)

// Re-exported principal statuses.
const (
	PrincipalStatusActive   = pkg.PrincipalStatusActive
	PrincipalStatusInactive = pkg.PrincipalStatusInactive
)

// Re-exported work statuses.
const (
	WorkStatusActive    = pkg.WorkStatusActive
	WorkStatusCompleted = pkg.WorkStatusCompleted
	WorkStatusCancelled = pkg.WorkStatusCancelled
	WorkStatusBlocked   = pkg.WorkStatusBlocked
)

// Re-exported withdrawal statuses.
const (
	WithdrawalStatusNew      = pkg.WithdrawalStatusNew
	WithdrawalStatusWaiting  = pkg.WithdrawalStatusWaiting
	WithdrawalStatusReceived = pkg.WithdrawalStatusReceived
	WithdrawalStatusBlock    = pkg.WithdrawalStatusBlock
)

// WithdrawalView is the read model of a withdrawal.
type WithdrawalView = pkg.WithdrawalView

// NewWithdrawalView derives the read model of a withdrawal.
var NewWithdrawalView = pkg.NewWithdrawalView
