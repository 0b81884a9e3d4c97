package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidya-labs/school-console-api/internal/models"
)

// WardRepository handles persistence for ward categories.
type WardRepository struct {
	db *sqlx.DB
}

// NewWardRepository instantiates a ward repository.
func NewWardRepository(db *sqlx.DB) *WardRepository {
	return &WardRepository{db: db}
}

// List returns all wards, optionally limited to active ones.
func (r *WardRepository) List(ctx context.Context, activeOnly bool) ([]models.Ward, error) {
	query := `SELECT id, name, description, active, created_at, updated_at FROM wards`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`

	var wards []models.Ward
	if err := r.db.SelectContext(ctx, &wards, query); err != nil {
		return nil, fmt.Errorf("list wards: %w", err)
	}
	return wards, nil
}

// FindByID loads a ward by identifier.
func (r *WardRepository) FindByID(ctx context.Context, id string) (*models.Ward, error) {
	const query = `SELECT id, name, description, active, created_at, updated_at FROM wards WHERE id = $1`
	var ward models.Ward
	if err := r.db.GetContext(ctx, &ward, query, id); err != nil {
		return nil, err
	}
	return &ward, nil
}

// Create inserts a new ward record.
func (r *WardRepository) Create(ctx context.Context, ward *models.Ward) error {
	if ward.ID == "" {
		ward.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ward.CreatedAt.IsZero() {
		ward.CreatedAt = now
	}
	ward.UpdatedAt = now

	const query = `INSERT INTO wards (id, name, description, active, created_at, updated_at)
        VALUES (:id, :name, :description, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ward); err != nil {
		return fmt.Errorf("create ward: %w", err)
	}
	return nil
}

// Update modifies an existing ward.
func (r *WardRepository) Update(ctx context.Context, ward *models.Ward) error {
	ward.UpdatedAt = time.Now().UTC()
	const query = `UPDATE wards SET name = :name, description = :description, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, ward); err != nil {
		return fmt.Errorf("update ward: %w", err)
	}
	return nil
}
