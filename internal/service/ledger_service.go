package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type settlementReader interface {
	ListSettlements(ctx context.Context, studentID string) ([]models.Settlement, error)
	FilterSettled(ctx context.Context, studentID string, keys []models.SettlementKey) ([]models.SettlementKey, error)
}

type paymentReader interface {
	HistoryByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	FindByReceipt(ctx context.Context, receiptNumber string) (*models.Payment, error)
}

type catalogReader interface {
	ListFeeHeads(ctx context.Context, activeOnly bool) ([]models.FeeHead, error)
	FindActiveRule(ctx context.Context, academicYear string) (*models.LateFineRule, error)
}

type studentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindDetailByAdmissionNumber(ctx context.Context, admissionNumber string) (*models.StudentDetail, error)
}

type amountResolver interface {
	ResolveAmount(ctx context.Context, head *models.FeeHead, classID, wardID, academicYear string) (int64, error)
}

// LedgerOptions carries calendar policy for the ledger.
type LedgerOptions struct {
	DueDay         int
	YearStartMonth int
	CacheTTL       time.Duration
}

// LedgerService answers read-only questions about a student's fee
// ledger: which periods are settled, what an outstanding payment would
// cost, and the payment history. The charge computation it exposes via
// ChargesFor is the same code path the payment processor commits, so a
// preview can never diverge from the eventual charge.
type LedgerService struct {
	settlements settlementReader
	payments    paymentReader
	catalog     catalogReader
	students    studentReader
	resolver    amountResolver
	cache       *CacheService
	opts        LedgerOptions
	logger      *zap.Logger
	now         func() time.Time
}

// NewLedgerService creates a ledger query service instance.
func NewLedgerService(settlements settlementReader, payments paymentReader, catalog catalogReader, students studentReader, resolver amountResolver, cache *CacheService, opts LedgerOptions, logger *zap.Logger) *LedgerService {
	if opts.DueDay < 1 || opts.DueDay > 28 {
		opts.DueDay = 10
	}
	if opts.YearStartMonth < 1 || opts.YearStartMonth > 12 {
		opts.YearStartMonth = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		settlements: settlements,
		payments:    payments,
		catalog:     catalog,
		students:    students,
		resolver:    resolver,
		cache:       cache,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// Student resolves a student by ID, falling back to admission number.
func (s *LedgerService) Student(ctx context.Context, ref string) (*models.StudentDetail, error) {
	student, err := s.students.FindDetailByID(ctx, ref)
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student, err = s.students.FindDetailByAdmissionNumber(ctx, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// PeriodStatus renders the payable-months picker: one entry per billing
// bucket of the academic year with per-head settled state.
func (s *LedgerService) PeriodStatus(ctx context.Context, studentRef, academicYear string) ([]models.PeriodStatus, error) {
	startYear, err := academicYearStart(academicYear)
	if err != nil {
		return nil, err
	}

	student, err := s.Student(ctx, studentRef)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("fees:status:%s:%s", student.ID, academicYear)
	var cached []models.PeriodStatus
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	heads, err := s.catalog.ListFeeHeads(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee heads")
	}

	settlements, err := s.settlements.ListSettlements(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settlements")
	}
	settled := make(map[models.SettlementKey]string, len(settlements))
	for _, st := range settlements {
		settled[st.Key()] = st.ReceiptNumber
	}

	var statuses []models.PeriodStatus
	for _, period := range s.academicYearPeriods(startYear) {
		status := models.PeriodStatus{Period: period, Label: period.Label()}
		for i := range heads {
			head := &heads[i]
			if !headApplies(head, period) {
				continue
			}
			key := models.SettlementKey{FeeHeadID: head.ID, Period: period}
			receipt, ok := settled[key]
			status.FeeHeads = append(status.FeeHeads, models.PeriodFeeStatus{
				FeeHeadID:     head.ID,
				FeeHeadName:   head.Name,
				Settled:       ok,
				ReceiptNumber: receipt,
			})
		}
		if len(status.FeeHeads) > 0 {
			statuses = append(statuses, status)
		}
	}

	_ = s.cache.Set(ctx, cacheKey, statuses, s.opts.CacheTTL)
	return statuses, nil
}

// OutstandingDetail previews the charge breakdown for the selected
// periods without mutating anything.
func (s *LedgerService) OutstandingDetail(ctx context.Context, studentRef string, periods []models.Period) ([]models.PeriodCharges, error) {
	student, err := s.Student(ctx, studentRef)
	if err != nil {
		return nil, err
	}
	return s.ChargesFor(ctx, student, periods, s.now())
}

// ChargesFor computes, per period, the unpaid fee lines and the late
// fine as of the given instant. Both the preview endpoint and the
// payment processor rely on this single implementation.
func (s *LedgerService) ChargesFor(ctx context.Context, student *models.StudentDetail, periods []models.Period, asOf time.Time) ([]models.PeriodCharges, error) {
	if len(periods) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one period is required")
	}

	heads, err := s.catalog.ListFeeHeads(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee heads")
	}

	var keys []models.SettlementKey
	for _, period := range periods {
		for i := range heads {
			if headApplies(&heads[i], period) {
				keys = append(keys, models.SettlementKey{FeeHeadID: heads[i].ID, Period: period})
			}
		}
	}
	settledKeys, err := s.settlements.FilterSettled(ctx, student.ID, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check settlements")
	}
	settled := make(map[models.SettlementKey]struct{}, len(settledKeys))
	for _, key := range settledKeys {
		settled[key] = struct{}{}
	}

	rules := make(map[string]*models.LateFineRule)

	var charges []models.PeriodCharges
	for _, period := range periods {
		year := s.academicYearOf(period)
		charge := models.PeriodCharges{
			Period:  period,
			Label:   period.Label(),
			DueDate: period.DueDate(s.opts.DueDay, s.opts.YearStartMonth),
		}

		for i := range heads {
			head := &heads[i]
			if !headApplies(head, period) {
				continue
			}
			if _, ok := settled[models.SettlementKey{FeeHeadID: head.ID, Period: period}]; ok {
				continue
			}
			amount, err := s.resolver.ResolveAmount(ctx, head, student.ClassID, student.WardID, year)
			if err != nil {
				return nil, err
			}
			charge.Lines = append(charge.Lines, models.ChargeLine{
				FeeHeadID:   head.ID,
				FeeHeadName: head.Name,
				Amount:      amount,
			})
		}

		if len(charge.Lines) > 0 {
			rule, ok := rules[year]
			if !ok {
				rule, err = s.fineRule(ctx, year)
				if err != nil {
					return nil, err
				}
				rules[year] = rule
			}
			charge.LateFine = ComputeFine(charge.DueDate, asOf, rule)
		}

		charges = append(charges, charge)
	}

	sort.Slice(charges, func(i, j int) bool {
		a, b := charges[i].Period, charges[j].Period
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return charges, nil
}

// History returns a student's payments, most recent first.
func (s *LedgerService) History(ctx context.Context, studentRef string) ([]models.Payment, error) {
	student, err := s.Student(ctx, studentRef)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.HistoryByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}
	return payments, nil
}

// Receipt loads a payment by receipt number.
func (s *LedgerService) Receipt(ctx context.Context, receiptNumber string) (*models.Payment, error) {
	payment, err := s.payments.FindByReceipt(ctx, receiptNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}
	return payment, nil
}

func (s *LedgerService) fineRule(ctx context.Context, academicYear string) (*models.LateFineRule, error) {
	rule, err := s.catalog.FindActiveRule(ctx, academicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fine rule")
	}
	return rule, nil
}

// academicYearPeriods enumerates the billing buckets of the academic
// year starting in startYear: the year bucket first, then every month
// from the start month through the month before it in the next year.
func (s *LedgerService) academicYearPeriods(startYear int) []models.Period {
	periods := []models.Period{{Month: 0, Year: startYear}}
	for offset := 0; offset < 12; offset++ {
		month := s.opts.YearStartMonth + offset
		year := startYear
		if month > 12 {
			month -= 12
			year++
		}
		periods = append(periods, models.Period{Month: month, Year: year})
	}
	return periods
}

// academicYearOf maps a period back to its academic year label.
func (s *LedgerService) academicYearOf(period models.Period) string {
	start := period.Year
	if period.IsMonthly() && period.Month < s.opts.YearStartMonth {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

// headApplies reports whether a fee head bills into the given period:
// monthly heads into month buckets, yearly and one-time heads into the
// year bucket.
func headApplies(head *models.FeeHead, period models.Period) bool {
	if period.IsMonthly() {
		return head.Frequency == models.FrequencyMonthly
	}
	return head.Frequency == models.FrequencyYearly || head.Frequency == models.FrequencyOneTime
}

// academicYearStart parses the leading calendar year of an academic
// year label such as "2025-2026".
func academicYearStart(academicYear string) (int, error) {
	parts := strings.SplitN(academicYear, "-", 2)
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1900 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "academic_year must look like 2025-2026")
	}
	return year, nil
}
