package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidya-labs/school-console-api/internal/models"
)

// AttendanceRepository handles persistence for daily attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository instantiates an attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records or revises the mark for (student, date).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO attendance_records (id, student_id, class_id, date, status, marked_by, created_at)
        VALUES (:id, :student_id, :class_id, :date, :status, :marked_by, :created_at)
        ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListByClassAndDate returns all marks for a class on one day.
func (r *AttendanceRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, student_id, class_id, date, status, marked_by, created_at
        FROM attendance_records WHERE class_id = $1 AND date = $2 ORDER BY student_id`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, date); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// SummaryByStudent aggregates a student's marks between two dates.
func (r *AttendanceRepository) SummaryByStudent(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error) {
	const query = `SELECT student_id,
        COUNT(*) FILTER (WHERE status = 'present') AS present,
        COUNT(*) FILTER (WHERE status = 'absent') AS absent,
        COUNT(*) FILTER (WHERE status = 'late') AS late,
        COUNT(*) FILTER (WHERE status = 'leave') AS leave
        FROM attendance_records WHERE student_id = $1 AND date BETWEEN $2 AND $3 GROUP BY student_id`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID, from, to); err != nil {
		return nil, err
	}
	return &summary, nil
}
