package models

import (
	"fmt"
	"time"
)

// FeeFrequency describes how often a fee head is billed.
type FeeFrequency string

const (
	FrequencyMonthly FeeFrequency = "monthly"
	FrequencyYearly  FeeFrequency = "yearly"
	FrequencyOneTime FeeFrequency = "one-time"
)

// FeeHead is a named category of charge (tuition, library, transport, ...).
// Heads referenced by payments are deactivated, never deleted.
type FeeHead struct {
	ID            string       `db:"id" json:"id"`
	Name          string       `db:"name" json:"name"`
	Description   string       `db:"description" json:"description"`
	Frequency     FeeFrequency `db:"frequency" json:"frequency"`
	ClassBased    bool         `db:"class_based" json:"class_based"`
	DefaultAmount int64        `db:"default_amount" json:"default_amount"`
	Active        bool         `db:"active" json:"active"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// FeeStructureEntry maps (fee head, class, ward, academic year) to an
// amount in the smallest currency unit. At most one active entry exists
// per key tuple; superseded entries are deactivated and kept queryable.
type FeeStructureEntry struct {
	ID           string    `db:"id" json:"id"`
	FeeHeadID    string    `db:"fee_head_id" json:"fee_head_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	WardID       string    `db:"ward_id" json:"ward_id"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	Amount       int64     `db:"amount" json:"amount"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LateFineTierType selects how a tier accrues.
type LateFineTierType string

const (
	TierFixed  LateFineTierType = "fixed"
	TierPerDay LateFineTierType = "per-day"
)

// LateFineTier is one step of a tiered penalty schedule. A tier applies
// once the lateness in days reaches StartDay. Fixed tiers contribute
// Amount once; per-day tiers contribute Amount for every day from
// StartDay onward, bounded by MaxAmount when set.
type LateFineTier struct {
	ID        string           `db:"id" json:"id"`
	RuleID    string           `db:"rule_id" json:"rule_id"`
	StartDay  int              `db:"start_day" json:"start_day"`
	Amount    int64            `db:"amount" json:"amount"`
	Type      LateFineTierType `db:"type" json:"type"`
	MaxAmount *int64           `db:"max_amount" json:"max_amount,omitempty"`
}

// LateFineRule is an ordered set of tiers applied independently per
// billing period.
type LateFineRule struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Description  string         `db:"description" json:"description"`
	AcademicYear string         `db:"academic_year" json:"academic_year"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	Tiers        []LateFineTier `db:"-" json:"tiers"`
}

// Period is the billing bucket an obligation belongs to. Monthly heads
// use Month 1..12; yearly and one-time heads use Month 0, anchored to
// the starting calendar year of the academic year. A zero month keeps
// the settlement key tuple fully comparable (SQL NULLs never collide
// in unique indexes, so the sentinel is stored as 0, not NULL).
type Period struct {
	Month int `db:"month" json:"month"`
	Year  int `db:"year" json:"year"`
}

// IsMonthly reports whether the period is a month bucket.
func (p Period) IsMonthly() bool {
	return p.Month >= 1 && p.Month <= 12
}

// Label renders the period for receipts and pickers.
func (p Period) Label() string {
	if !p.IsMonthly() {
		return fmt.Sprintf("AY %d", p.Year)
	}
	return fmt.Sprintf("%s %d", time.Month(p.Month).String(), p.Year)
}

// DueDate returns the nominal date the period's fees fall due. Monthly
// periods are due on dueDay of their billing month; year buckets are
// due on dueDay of the academic year's first month.
func (p Period) DueDate(dueDay, yearStartMonth int) time.Time {
	month := p.Month
	if !p.IsMonthly() {
		month = yearStartMonth
	}
	return time.Date(p.Year, time.Month(month), dueDay, 0, 0, 0, 0, time.UTC)
}

// SettlementKey identifies one obligation of one student.
type SettlementKey struct {
	FeeHeadID string `json:"fee_head_id"`
	Period    Period `json:"period"`
}

// Settlement records the fact that a (student, fee head, period)
// obligation has been paid, with a back-reference to the settling
// receipt. A triple transitions unsettled -> settled exactly once.
type Settlement struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	FeeHeadID     string    `db:"fee_head_id" json:"fee_head_id"`
	PeriodMonth   int       `db:"period_month" json:"period_month"`
	PeriodYear    int       `db:"period_year" json:"period_year"`
	ReceiptNumber string    `db:"receipt_number" json:"receipt_number"`
	SettledAt     time.Time `db:"settled_at" json:"settled_at"`
}

// Key returns the obligation key of the settlement.
func (s Settlement) Key() SettlementKey {
	return SettlementKey{FeeHeadID: s.FeeHeadID, Period: Period{Month: s.PeriodMonth, Year: s.PeriodYear}}
}
