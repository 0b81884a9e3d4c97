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

type wardRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Ward, error)
	FindByID(ctx context.Context, id string) (*models.Ward, error)
	Create(ctx context.Context, ward *models.Ward) error
	Update(ctx context.Context, ward *models.Ward) error
}

// WardRequest is the create/update payload for ward categories.
type WardRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// WardService manages ward categories.
type WardService struct {
	repo      wardRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWardService creates a ward service instance.
func NewWardService(repo wardRepository, validate *validator.Validate, logger *zap.Logger) *WardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WardService{repo: repo, validator: validate, logger: logger}
}

// List returns wards, optionally active only.
func (s *WardService) List(ctx context.Context, activeOnly bool) ([]models.Ward, error) {
	wards, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list wards")
	}
	return wards, nil
}

// Get returns a ward by ID.
func (s *WardService) Get(ctx context.Context, id string) (*models.Ward, error) {
	ward, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ward not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ward")
	}
	return ward, nil
}

// Create adds a ward category.
func (s *WardService) Create(ctx context.Context, req WardRequest) (*models.Ward, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ward payload")
	}

	ward := &models.Ward{
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	}
	if req.Active != nil {
		ward.Active = *req.Active
	}
	if err := s.repo.Create(ctx, ward); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ward")
	}
	return ward, nil
}

// Update modifies a ward category.
func (s *WardService) Update(ctx context.Context, id string, req WardRequest) (*models.Ward, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ward payload")
	}

	ward, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ward.Name = req.Name
	ward.Description = req.Description
	if req.Active != nil {
		ward.Active = *req.Active
	}

	if err := s.repo.Update(ctx, ward); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ward")
	}
	return ward, nil
}
