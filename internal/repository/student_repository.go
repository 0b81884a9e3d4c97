package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidya-labs/school-console-api/internal/models"
)

// StudentRepository handles persistence for admitted students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository instantiates a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `s.id, s.name, s.admission_number, s.class_id, s.ward_id, s.date_of_birth,
        s.gender, s.parent_name, s.parent_contact, s.address, s.admission_date, s.status, s.created_at, s.updated_at,
        c.name AS class_name, w.name AS ward_name`

const studentDetailJoins = `FROM students s
        LEFT JOIN classes c ON c.id = s.class_id
        LEFT JOIN wards w ON w.id = s.ward_id`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := studentDetailJoins
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.WardID != "" {
		conditions = append(conditions, fmt.Sprintf("s.ward_id = $%d", len(args)+1))
		args = append(args, filter.WardID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.name ILIKE $%d OR s.admission_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":             "s.name",
		"admission_number": "s.admission_number",
		"admission_date":   "s.admission_date",
		"class_name":       "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.admission_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentDetailColumns, base+clause, orderBy, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindDetailByID returns a student with class and ward context.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.id = $1", studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindDetailByAdmissionNumber resolves a student by admission number.
func (r *StudentRepository) FindDetailByAdmissionNumber(ctx context.Context, admissionNumber string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.admission_number = $1", studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, admissionNumber); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a student, allocating the next admission number of the
// admission year inside a transaction.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.AdmissionDate.IsZero() {
		student.AdmissionDate = now
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	student.CreatedAt = now
	student.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admission tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	year := student.AdmissionDate.Year()
	var seq int
	err = tx.GetContext(ctx, &seq, `INSERT INTO admission_sequences (year, last_value) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_value = admission_sequences.last_value + 1
        RETURNING last_value`, year)
	if err != nil {
		return fmt.Errorf("next admission sequence: %w", err)
	}
	student.AdmissionNumber = fmt.Sprintf("ADM-%d-%04d", year, seq)

	const query = `INSERT INTO students (id, name, admission_number, class_id, ward_id, date_of_birth, gender,
        parent_name, parent_contact, address, admission_date, status, created_at, updated_at)
        VALUES (:id, :name, :admission_number, :class_id, :ward_id, :date_of_birth, :gender,
        :parent_name, :parent_contact, :address, :admission_date, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit admission tx: %w", err)
	}
	return nil
}

// Update modifies mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, class_id = :class_id, ward_id = :ward_id,
        date_of_birth = :date_of_birth, gender = :gender, parent_name = :parent_name,
        parent_contact = :parent_contact, address = :address, status = :status, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateStatus transitions a student's enrollment status.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}
