package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindDetailByAdmissionNumber(ctx context.Context, admissionNumber string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type wardLookup interface {
	FindByID(ctx context.Context, id string) (*models.Ward, error)
}

// AdmitStudentRequest admits a new student. The admission number is
// allocated server side.
type AdmitStudentRequest struct {
	Name          string    `json:"name" validate:"required"`
	ClassID       string    `json:"class_id" validate:"required"`
	WardID        string    `json:"ward_id" validate:"required"`
	DateOfBirth   time.Time `json:"date_of_birth" validate:"required"`
	Gender        string    `json:"gender" validate:"required,oneof=male female other"`
	ParentName    string    `json:"parent_name" validate:"required"`
	ParentContact string    `json:"parent_contact" validate:"required"`
	Address       string    `json:"address"`
}

// UpdateStudentRequest modifies mutable student fields.
type UpdateStudentRequest struct {
	Name          string    `json:"name" validate:"required"`
	ClassID       string    `json:"class_id" validate:"required"`
	WardID        string    `json:"ward_id" validate:"required"`
	DateOfBirth   time.Time `json:"date_of_birth" validate:"required"`
	Gender        string    `json:"gender" validate:"required,oneof=male female other"`
	ParentName    string    `json:"parent_name" validate:"required"`
	ParentContact string    `json:"parent_contact" validate:"required"`
	Address       string    `json:"address"`
}

// StudentService manages the student directory.
type StudentService struct {
	repo      studentRepository
	classes   classLookup
	wards     wardLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a student service instance.
func NewStudentService(repo studentRepository, classes classLookup, wards wardLookup, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classes: classes, wards: wards, validator: validate, logger: logger}
}

// List returns students matching the filter with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by ID or admission number.
func (s *StudentService) Get(ctx context.Context, ref string) (*models.StudentDetail, error) {
	student, err := s.repo.FindDetailByID(ctx, ref)
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student, err = s.repo.FindDetailByAdmissionNumber(ctx, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Admit creates a student record with a freshly allocated admission
// number.
func (s *StudentService) Admit(ctx context.Context, req AdmitStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}
	if err := s.checkPlacement(ctx, req.ClassID, req.WardID); err != nil {
		return nil, err
	}

	student := &models.Student{
		Name:          req.Name,
		ClassID:       req.ClassID,
		WardID:        req.WardID,
		DateOfBirth:   req.DateOfBirth,
		Gender:        req.Gender,
		ParentName:    req.ParentName,
		ParentContact: req.ParentContact,
		Address:       req.Address,
		Status:        models.StudentStatusActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to admit student")
	}

	s.logger.Info("student admitted",
		zap.String("student_id", student.ID),
		zap.String("admission_number", student.AdmissionNumber))

	return s.Get(ctx, student.ID)
}

// Update modifies a student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlacement(ctx, req.ClassID, req.WardID); err != nil {
		return nil, err
	}

	student := detail.Student
	student.Name = req.Name
	student.ClassID = req.ClassID
	student.WardID = req.WardID
	student.DateOfBirth = req.DateOfBirth
	student.Gender = req.Gender
	student.ParentName = req.ParentName
	student.ParentContact = req.ParentContact
	student.Address = req.Address

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return s.Get(ctx, student.ID)
}

// SetStatus transitions the enrollment status. Student records are
// never deleted; ledger history must stay resolvable.
func (s *StudentService) SetStatus(ctx context.Context, id string, status models.StudentStatus) (*models.StudentDetail, error) {
	switch status {
	case models.StudentStatusActive, models.StudentStatusInactive, models.StudentStatusTransferred:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, detail.ID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	return s.Get(ctx, detail.ID)
}

func (s *StudentService) checkPlacement(ctx context.Context, classID, wardID string) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class")
	}
	if _, err := s.wards.FindByID(ctx, wardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "ward does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify ward")
	}
	return nil
}
