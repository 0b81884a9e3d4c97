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

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
	SummaryByStudent(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error)
}

// MarkAttendanceEntry is one student's mark within a class sheet.
type MarkAttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=present absent late leave"`
}

// MarkAttendanceRequest records a class attendance sheet for one day.
type MarkAttendanceRequest struct {
	ClassID string                `json:"class_id" validate:"required"`
	Date    time.Time             `json:"date" validate:"required"`
	Entries []MarkAttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService records and summarizes daily attendance.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService creates an attendance service instance.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, validator: validate, logger: logger}
}

// Mark upserts the sheet entries. Re-marking a day revises the earlier
// marks instead of duplicating them.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest, markedBy string) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	date := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, time.UTC)
	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		record := models.AttendanceRecord{
			StudentID: entry.StudentID,
			ClassID:   req.ClassID,
			Date:      date,
			Status:    entry.Status,
			MarkedBy:  markedBy,
		}
		if err := s.repo.Upsert(ctx, &record); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
		records = append(records, record)
	}
	return records, nil
}

// Sheet returns the marks for a class on one day.
func (s *AttendanceService) Sheet(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	records, err := s.repo.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return records, nil
}

// Summary aggregates a student's attendance over a date range.
func (s *AttendanceService) Summary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}
	summary, err := s.repo.SummaryByStudent(ctx, studentID, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.AttendanceSummary{StudentID: studentID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize attendance")
	}
	return summary, nil
}
