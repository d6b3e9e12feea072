// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCore ensures critical configuration is present.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(strings.TrimSpace(c.Reporting.Currency)) != 3 {
		missing = append(missing, "REPORTING_CURRENCY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return c.validateReporting()
}

func (c *Config) validateReporting() error {
	var bad []string
	for code, rate := range c.Reporting.FallbackRates {
		if len(code) != 3 || !rate.IsPositive() {
			bad = append(bad, code)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("invalid FALLBACK_RATES entries: %s", strings.Join(bad, ", "))
	}

	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", c.Reporting.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.Reporting.RateRefreshSchedule); err != nil {
		return fmt.Errorf("invalid RATE_REFRESH_SCHEDULE %q: %w", c.Reporting.RateRefreshSchedule, err)
	}
	if _, err := cron.ParseStandard(c.Reporting.OverdueSweepSchedule); err != nil {
		return fmt.Errorf("invalid OVERDUE_SWEEP_SCHEDULE %q: %w", c.Reporting.OverdueSweepSchedule, err)
	}
	if c.Reporting.WithdrawalSLA <= 0 {
		return fmt.Errorf("WITHDRAWAL_SLA must be positive")
	}
	if c.Reporting.TopN <= 0 {
		return fmt.Errorf("REPORT_TOP_N must be positive")
	}
	return nil
}
