package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type paymentLedger interface {
	FilterSettled(ctx context.Context, studentID string, keys []models.SettlementKey) ([]models.SettlementKey, error)
	CommitPayment(ctx context.Context, payment *models.Payment) error
}

type chargeQuoter interface {
	Student(ctx context.Context, ref string) (*models.StudentDetail, error)
	ChargesFor(ctx context.Context, student *models.StudentDetail, periods []models.Period, asOf time.Time) ([]models.PeriodCharges, error)
}

// PaymentItemRequest selects one (fee head, period) obligation and the
// amount the operator saw on screen for it.
type PaymentItemRequest struct {
	FeeHeadID      string `json:"fee_head_id" validate:"required"`
	Month          int    `json:"month" validate:"gte=0,lte=12"`
	Year           int    `json:"year" validate:"gte=2000,lte=2100"`
	ExpectedAmount int64  `json:"expected_amount" validate:"gte=0"`
}

// Period returns the billing bucket the item targets.
func (i PaymentItemRequest) Period() models.Period {
	return models.Period{Month: i.Month, Year: i.Year}
}

// ProcessPaymentRequest records a collection against selected
// obligations. Expected amounts are what the client displayed; the
// server recomputes everything and rejects on any difference rather
// than silently charging a different figure.
type ProcessPaymentRequest struct {
	StudentID        string               `json:"student_id" validate:"required"`
	Items            []PaymentItemRequest `json:"items" validate:"required,min=1,dive"`
	ExpectedLateFine *int64               `json:"expected_late_fine"`
	Method           models.PaymentMethod `json:"method" validate:"required,oneof=cash card bank_transfer cheque online"`
	TransactionRef   string               `json:"transaction_ref"`
	Remarks          string               `json:"remarks"`
}

// PaymentService turns a verified charge quote into a committed,
// immutable payment. All writes for one student are serialized through
// a per-student lock so the settle check and the commit cannot
// interleave with another collection for the same student.
type PaymentService struct {
	ledger         paymentLedger
	quoter         chargeQuoter
	cache          *CacheService
	metrics        *MetricsService
	validator      *validator.Validate
	logger         *zap.Logger
	yearStartMonth int
	now            func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPaymentService creates a payment service instance.
func NewPaymentService(ledger paymentLedger, quoter chargeQuoter, cache *CacheService, metrics *MetricsService, yearStartMonth int, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if yearStartMonth < 1 || yearStartMonth > 12 {
		yearStartMonth = 4
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		ledger:         ledger,
		quoter:         quoter,
		cache:          cache,
		metrics:        metrics,
		validator:      validate,
		logger:         logger,
		yearStartMonth: yearStartMonth,
		now:            time.Now,
		locks:          make(map[string]*sync.Mutex),
	}
}

// ProcessPayment verifies and commits a payment, returning the stored
// record with its allocated receipt number. The whole request fails if
// any selected obligation is already settled or any amount differs
// from the server-side computation; there are no partial commits.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest, collectedBy string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	keys := make([]models.SettlementKey, 0, len(req.Items))
	seen := make(map[models.SettlementKey]struct{}, len(req.Items))
	periodSet := make(map[models.Period]struct{})
	for _, item := range req.Items {
		key := models.SettlementKey{FeeHeadID: item.FeeHeadID, Period: item.Period()}
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("duplicate item for %s", key.Period.Label()))
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
		periodSet[key.Period] = struct{}{}
	}
	periods := make([]models.Period, 0, len(periodSet))
	for period := range periodSet {
		periods = append(periods, period)
	}

	student, err := s.quoter.Student(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payments can be recorded only for active students")
	}

	unlock := s.lockStudent(student.ID)
	defer unlock()

	settled, err := s.ledger.FilterSettled(ctx, student.ID, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to check settlements")
	}
	if len(settled) > 0 {
		return nil, appErrors.Clone(appErrors.ErrAlreadySettled,
			fmt.Sprintf("fee already settled for %s", settled[0].Period.Label()))
	}

	asOf := s.now()
	charges, err := s.quoter.ChargesFor(ctx, student, periods, asOf)
	if err != nil {
		return nil, err
	}

	quoted := make(map[models.SettlementKey]models.ChargeLine, len(keys))
	fines := make(map[models.Period]int64, len(charges))
	for _, charge := range charges {
		fines[charge.Period] = charge.LateFine
		for _, line := range charge.Lines {
			quoted[models.SettlementKey{FeeHeadID: line.FeeHeadID, Period: charge.Period}] = line
		}
	}

	payment := &models.Payment{
		StudentID:      student.ID,
		ClassID:        student.ClassID,
		AcademicYear:   s.academicYearAt(asOf),
		Method:         req.Method,
		TransactionRef: req.TransactionRef,
		Remarks:        req.Remarks,
		CollectedBy:    collectedBy,
		PaymentDate:    asOf.UTC(),
	}

	for _, item := range req.Items {
		key := models.SettlementKey{FeeHeadID: item.FeeHeadID, Period: item.Period()}
		line, ok := quoted[key]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("fee head %s is not billable for %s", item.FeeHeadID, key.Period.Label()))
		}
		if line.Amount != item.ExpectedAmount {
			return nil, appErrors.Clone(appErrors.ErrAmountMismatch,
				fmt.Sprintf("%s for %s is %d, client expected %d", line.FeeHeadName, key.Period.Label(), line.Amount, item.ExpectedAmount))
		}
		payment.Items = append(payment.Items, models.PaymentItem{
			FeeHeadID:   line.FeeHeadID,
			FeeHeadName: line.FeeHeadName,
			PeriodMonth: key.Period.Month,
			PeriodYear:  key.Period.Year,
			Amount:      line.Amount,
		})
		payment.TotalAmount += line.Amount
	}

	for period := range periodSet {
		payment.LateFine += fines[period]
	}
	if req.ExpectedLateFine != nil && *req.ExpectedLateFine != payment.LateFine {
		return nil, appErrors.Clone(appErrors.ErrAmountMismatch,
			fmt.Sprintf("late fine is %d, client expected %d", payment.LateFine, *req.ExpectedLateFine))
	}
	payment.NetAmount = payment.TotalAmount + payment.LateFine

	if err := s.ledger.CommitPayment(ctx, payment); err != nil {
		if appErr, ok := err.(*appErrors.Error); ok {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to commit payment")
	}

	_ = s.cache.Invalidate(ctx, fmt.Sprintf("fees:status:%s:*", student.ID))
	s.metrics.RecordPayment(string(payment.Method), payment.TotalAmount, payment.LateFine)

	s.logger.Info("payment committed",
		zap.String("receipt_number", payment.ReceiptNumber),
		zap.String("student_id", student.ID),
		zap.Int64("net_amount", payment.NetAmount),
		zap.Int("items", len(payment.Items)))

	return payment, nil
}

// lockStudent serializes payment processing per student.
func (s *PaymentService) lockStudent(studentID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[studentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[studentID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// academicYearAt labels the academic year containing the instant.
func (s *PaymentService) academicYearAt(t time.Time) string {
	start := t.Year()
	if int(t.Month()) < s.yearStartMonth {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}
