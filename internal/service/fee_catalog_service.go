package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type feeHeadRepository interface {
	ListFeeHeads(ctx context.Context, activeOnly bool) ([]models.FeeHead, error)
	FindFeeHead(ctx context.Context, id string) (*models.FeeHead, error)
	CreateFeeHead(ctx context.Context, head *models.FeeHead) error
	UpdateFeeHead(ctx context.Context, head *models.FeeHead) error
	CountPaymentItems(ctx context.Context, feeHeadID string) (int, error)
}

type fineRuleRepository interface {
	ListRules(ctx context.Context) ([]models.LateFineRule, error)
	CreateRule(ctx context.Context, rule *models.LateFineRule) error
	DeactivateRule(ctx context.Context, id string) error
}

// CreateFeeHeadRequest describes payload for creating fee heads.
type CreateFeeHeadRequest struct {
	Name          string              `json:"name" validate:"required"`
	Description   string              `json:"description"`
	Frequency     models.FeeFrequency `json:"frequency" validate:"required,oneof=monthly yearly one-time"`
	ClassBased    bool                `json:"class_based"`
	DefaultAmount int64               `json:"default_amount" validate:"gte=0"`
}

// UpdateFeeHeadRequest updates mutable fee head fields. Frequency and
// class_based are fixed after creation because settled obligations
// depend on them.
type UpdateFeeHeadRequest struct {
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description"`
	DefaultAmount int64  `json:"default_amount" validate:"gte=0"`
	Active        *bool  `json:"active"`
}

// FineTierInput is one tier of a fine rule payload.
type FineTierInput struct {
	StartDay  int                     `json:"start_day" validate:"gte=0"`
	Amount    int64                   `json:"amount" validate:"gte=0"`
	Type      models.LateFineTierType `json:"type" validate:"required,oneof=fixed per-day"`
	MaxAmount *int64                  `json:"max_amount"`
}

// CreateFineRuleRequest describes payload for creating late fine rules.
type CreateFineRuleRequest struct {
	Name         string          `json:"name" validate:"required"`
	Description  string          `json:"description"`
	AcademicYear string          `json:"academic_year" validate:"required"`
	Active       bool            `json:"active"`
	Tiers        []FineTierInput `json:"tiers" validate:"required,min=1,dive"`
}

// FeeCatalogService administers fee heads and late fine rules.
type FeeCatalogService struct {
	heads     feeHeadRepository
	rules     fineRuleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeCatalogService creates a fee catalog service instance.
func NewFeeCatalogService(heads feeHeadRepository, rules fineRuleRepository, validate *validator.Validate, logger *zap.Logger) *FeeCatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeCatalogService{heads: heads, rules: rules, validator: validate, logger: logger}
}

// ListFeeHeads returns the fee head catalog.
func (s *FeeCatalogService) ListFeeHeads(ctx context.Context, activeOnly bool) ([]models.FeeHead, error) {
	heads, err := s.heads.ListFeeHeads(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee heads")
	}
	return heads, nil
}

// GetFeeHead returns a fee head by ID.
func (s *FeeCatalogService) GetFeeHead(ctx context.Context, id string) (*models.FeeHead, error) {
	head, err := s.heads.FindFeeHead(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee head not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee head")
	}
	return head, nil
}

// CreateFeeHead adds a new fee head to the catalog.
func (s *FeeCatalogService) CreateFeeHead(ctx context.Context, req CreateFeeHeadRequest) (*models.FeeHead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee head payload")
	}

	head := &models.FeeHead{
		Name:          req.Name,
		Description:   req.Description,
		Frequency:     req.Frequency,
		ClassBased:    req.ClassBased,
		DefaultAmount: req.DefaultAmount,
		Active:        true,
	}
	if err := s.heads.CreateFeeHead(ctx, head); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee head")
	}
	return head, nil
}

// UpdateFeeHead modifies descriptive fields of a fee head.
func (s *FeeCatalogService) UpdateFeeHead(ctx context.Context, id string, req UpdateFeeHeadRequest) (*models.FeeHead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee head payload")
	}

	head, err := s.GetFeeHead(ctx, id)
	if err != nil {
		return nil, err
	}

	head.Name = req.Name
	head.Description = req.Description
	head.DefaultAmount = req.DefaultAmount
	if req.Active != nil {
		head.Active = *req.Active
	}

	if err := s.heads.UpdateFeeHead(ctx, head); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee head")
	}
	return head, nil
}

// DeactivateFeeHead retires a fee head. Heads referenced by payments
// are never deleted, only deactivated.
func (s *FeeCatalogService) DeactivateFeeHead(ctx context.Context, id string) (*models.FeeHead, error) {
	head, err := s.GetFeeHead(ctx, id)
	if err != nil {
		return nil, err
	}

	head.Active = false
	if err := s.heads.UpdateFeeHead(ctx, head); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate fee head")
	}
	return head, nil
}

// ListFineRules returns all configured late fine rules.
func (s *FeeCatalogService) ListFineRules(ctx context.Context) ([]models.LateFineRule, error) {
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fine rules")
	}
	return rules, nil
}

// CreateFineRule validates and stores a late fine rule. Malformed
// schedules are rejected here, never at payment time.
func (s *FeeCatalogService) CreateFineRule(ctx context.Context, req CreateFineRuleRequest) (*models.LateFineRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fine rule payload")
	}

	rule := &models.LateFineRule{
		Name:         req.Name,
		Description:  req.Description,
		AcademicYear: req.AcademicYear,
		Active:       req.Active,
	}
	for _, tier := range req.Tiers {
		rule.Tiers = append(rule.Tiers, models.LateFineTier{
			StartDay:  tier.StartDay,
			Amount:    tier.Amount,
			Type:      tier.Type,
			MaxAmount: tier.MaxAmount,
		})
	}

	if err := ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fine rule")
	}
	return rule, nil
}

// DeactivateFineRule retires a fine rule.
func (s *FeeCatalogService) DeactivateFineRule(ctx context.Context, id string) error {
	if err := s.rules.DeactivateRule(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate fine rule")
	}
	return nil
}
