package service

import (
	"fmt"
	"time"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

// ComputeFine evaluates the tiered late fine for a single billing
// period. Tiers are additive: every tier whose start day has been
// reached contributes, fixed tiers once and per-day tiers for each day
// since their start day (bounded by the tier cap). The result is never
// negative; an asOf date on or before the due date yields zero.
//
// Both the payment commit and the outstanding-detail preview call this
// one function, so a quote can never drift from the charge.
func ComputeFine(dueDate, asOf time.Time, rule *models.LateFineRule) int64 {
	if rule == nil {
		return 0
	}

	daysLate := daysBetween(dueDate, asOf)
	if daysLate <= 0 {
		return 0
	}

	var fine int64
	for _, tier := range rule.Tiers {
		if daysLate < tier.StartDay {
			continue
		}
		switch tier.Type {
		case models.TierFixed:
			fine += tier.Amount
		case models.TierPerDay:
			contribution := tier.Amount * int64(daysLate-tier.StartDay+1)
			if tier.MaxAmount != nil && contribution > *tier.MaxAmount {
				contribution = *tier.MaxAmount
			}
			fine += contribution
		}
	}
	return fine
}

// ValidateRule checks a late fine rule at configuration-write time so
// malformed schedules are rejected before they can reach a payment.
func ValidateRule(rule *models.LateFineRule) error {
	if rule == nil || len(rule.Tiers) == 0 {
		return appErrors.Clone(appErrors.ErrInvalidRule, "a fine rule requires at least one tier")
	}
	for i, tier := range rule.Tiers {
		if tier.StartDay < 0 {
			return appErrors.Clone(appErrors.ErrInvalidRule, fmt.Sprintf("tier %d: start day must not be negative", i+1))
		}
		if tier.Amount < 0 {
			return appErrors.Clone(appErrors.ErrInvalidRule, fmt.Sprintf("tier %d: amount must not be negative", i+1))
		}
		switch tier.Type {
		case models.TierFixed, models.TierPerDay:
		default:
			return appErrors.Clone(appErrors.ErrInvalidRule, fmt.Sprintf("tier %d: unknown tier type %q", i+1, tier.Type))
		}
		if tier.MaxAmount != nil && *tier.MaxAmount < 0 {
			return appErrors.Clone(appErrors.ErrInvalidRule, fmt.Sprintf("tier %d: cap must not be negative", i+1))
		}
	}
	return nil
}

// daysBetween counts whole calendar days from a to b, negative when b
// precedes a. Timestamps are collapsed to UTC dates first so partial
// days never count as late.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}
