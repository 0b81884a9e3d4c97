package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type feeStructureRepository interface {
	ListStructureEntries(ctx context.Context, academicYear string, activeOnly bool) ([]models.FeeStructureEntry, error)
	FindActiveEntry(ctx context.Context, feeHeadID, classID, wardID, academicYear string) (*models.FeeStructureEntry, error)
	UpsertStructureEntry(ctx context.Context, entry *models.FeeStructureEntry) error
}

// UpsertStructureRequest sets the amount for a fee structure key tuple.
type UpsertStructureRequest struct {
	FeeHeadID    string `json:"fee_head_id" validate:"required"`
	ClassID      string `json:"class_id" validate:"required"`
	WardID       string `json:"ward_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
	Amount       int64  `json:"amount" validate:"gte=0"`
}

// FeeStructureService administers fee structure entries and resolves
// the amount owed for a (fee head, class, ward, year) tuple. It is the
// single amount-resolution path for both preview and commit.
type FeeStructureService struct {
	repo      feeStructureRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeStructureService creates a fee structure service instance.
func NewFeeStructureService(repo feeStructureRepository, validate *validator.Validate, logger *zap.Logger) *FeeStructureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeStructureService{repo: repo, validator: validate, logger: logger}
}

// List returns entries for an academic year, superseded ones included.
func (s *FeeStructureService) List(ctx context.Context, academicYear string, activeOnly bool) ([]models.FeeStructureEntry, error) {
	if academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic_year is required")
	}
	entries, err := s.repo.ListStructureEntries(ctx, academicYear, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee structures")
	}
	return entries, nil
}

// Upsert replaces the active entry for a key tuple, keeping history.
func (s *FeeStructureService) Upsert(ctx context.Context, req UpsertStructureRequest) (*models.FeeStructureEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}

	entry := &models.FeeStructureEntry{
		FeeHeadID:    req.FeeHeadID,
		ClassID:      req.ClassID,
		WardID:       req.WardID,
		AcademicYear: req.AcademicYear,
		Amount:       req.Amount,
	}
	if err := s.repo.UpsertStructureEntry(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store fee structure")
	}
	return entry, nil
}

// ResolveAmount returns the amount owed for a fee head by a student of
// the given class and ward. Heads that do not vary by class use the
// catalog default. Class-based heads require a configured entry: a
// missing entry is a configuration error surfaced to the caller, never
// a silent fallback to the catalog amount.
func (s *FeeStructureService) ResolveAmount(ctx context.Context, head *models.FeeHead, classID, wardID, academicYear string) (int64, error) {
	if !head.ClassBased {
		return head.DefaultAmount, nil
	}

	entry, err := s.repo.FindActiveEntry(ctx, head.ID, classID, wardID, academicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("fee structure entry missing",
				zap.String("fee_head_id", head.ID),
				zap.String("class_id", classID),
				zap.String("ward_id", wardID),
				zap.String("academic_year", academicYear))
			return 0, appErrors.Clone(appErrors.ErrConfigurationMissing,
				fmt.Sprintf("no fee structure entry for %s in academic year %s", head.Name, academicYear))
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve fee amount")
	}
	return entry.Amount, nil
}
