package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidya-labs/school-console-api/internal/models"
)

// FeeCatalogRepository handles persistence for fee heads, fee structure
// entries and late fine rules. The catalog is administered, never
// mutated by the payment engine.
type FeeCatalogRepository struct {
	db *sqlx.DB
}

// NewFeeCatalogRepository instantiates a fee catalog repository.
func NewFeeCatalogRepository(db *sqlx.DB) *FeeCatalogRepository {
	return &FeeCatalogRepository{db: db}
}

const feeHeadColumns = `id, name, description, frequency, class_based, default_amount, active, created_at, updated_at`

// ListFeeHeads returns fee heads, optionally only active ones.
func (r *FeeCatalogRepository) ListFeeHeads(ctx context.Context, activeOnly bool) ([]models.FeeHead, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_heads`, feeHeadColumns)
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`

	var heads []models.FeeHead
	if err := r.db.SelectContext(ctx, &heads, query); err != nil {
		return nil, fmt.Errorf("list fee heads: %w", err)
	}
	return heads, nil
}

// FindFeeHead loads a fee head by identifier.
func (r *FeeCatalogRepository) FindFeeHead(ctx context.Context, id string) (*models.FeeHead, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_heads WHERE id = $1`, feeHeadColumns)
	var head models.FeeHead
	if err := r.db.GetContext(ctx, &head, query, id); err != nil {
		return nil, err
	}
	return &head, nil
}

// CreateFeeHead inserts a new fee head.
func (r *FeeCatalogRepository) CreateFeeHead(ctx context.Context, head *models.FeeHead) error {
	if head.ID == "" {
		head.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if head.CreatedAt.IsZero() {
		head.CreatedAt = now
	}
	head.UpdatedAt = now

	const query = `INSERT INTO fee_heads (id, name, description, frequency, class_based, default_amount, active, created_at, updated_at)
        VALUES (:id, :name, :description, :frequency, :class_based, :default_amount, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, head); err != nil {
		return fmt.Errorf("create fee head: %w", err)
	}
	return nil
}

// UpdateFeeHead modifies descriptive fields of a fee head. Frequency and
// class_based stay fixed once obligations may reference the head.
func (r *FeeCatalogRepository) UpdateFeeHead(ctx context.Context, head *models.FeeHead) error {
	head.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fee_heads SET name = :name, description = :description, default_amount = :default_amount, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, head); err != nil {
		return fmt.Errorf("update fee head: %w", err)
	}
	return nil
}

// CountPaymentItems reports how many payment lines reference a fee head.
func (r *FeeCatalogRepository) CountPaymentItems(ctx context.Context, feeHeadID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payment_items WHERE fee_head_id = $1`, feeHeadID); err != nil {
		return 0, fmt.Errorf("count fee head payment items: %w", err)
	}
	return count, nil
}

const structureColumns = `id, fee_head_id, class_id, ward_id, academic_year, amount, active, created_at, updated_at`

// ListStructureEntries returns structure entries for an academic year,
// including superseded ones so history stays queryable.
func (r *FeeCatalogRepository) ListStructureEntries(ctx context.Context, academicYear string, activeOnly bool) ([]models.FeeStructureEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_structures WHERE academic_year = $1`, structureColumns)
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	var entries []models.FeeStructureEntry
	if err := r.db.SelectContext(ctx, &entries, query, academicYear); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return entries, nil
}

// FindActiveEntry resolves the single active entry for a key tuple.
func (r *FeeCatalogRepository) FindActiveEntry(ctx context.Context, feeHeadID, classID, wardID, academicYear string) (*models.FeeStructureEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_structures
        WHERE fee_head_id = $1 AND class_id = $2 AND ward_id = $3 AND academic_year = $4 AND active = TRUE`, structureColumns)
	var entry models.FeeStructureEntry
	if err := r.db.GetContext(ctx, &entry, query, feeHeadID, classID, wardID, academicYear); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpsertStructureEntry deactivates any active entry for the key tuple
// and inserts the replacement in one transaction, so the invariant of
// at most one active entry per tuple holds and history is appended,
// never overwritten.
func (r *FeeCatalogRepository) UpsertStructureEntry(ctx context.Context, entry *models.FeeStructureEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entry.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fee structure tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE fee_structures SET active = FALSE, updated_at = $5
        WHERE fee_head_id = $1 AND class_id = $2 AND ward_id = $3 AND academic_year = $4 AND active = TRUE`,
		entry.FeeHeadID, entry.ClassID, entry.WardID, entry.AcademicYear, now); err != nil {
		return fmt.Errorf("supersede fee structure: %w", err)
	}

	const query = `INSERT INTO fee_structures (id, fee_head_id, class_id, ward_id, academic_year, amount, active, created_at, updated_at)
        VALUES (:id, :fee_head_id, :class_id, :ward_id, :academic_year, :amount, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert fee structure: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit fee structure tx: %w", err)
	}
	return nil
}

const ruleColumns = `id, name, description, academic_year, active, created_at, updated_at`

// FindActiveRule returns the active late fine rule for an academic year
// with its tiers in ascending start-day order. sql.ErrNoRows means no
// rule is configured, which callers treat as "no fine".
func (r *FeeCatalogRepository) FindActiveRule(ctx context.Context, academicYear string) (*models.LateFineRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM late_fine_rules WHERE academic_year = $1 AND active = TRUE LIMIT 1`, ruleColumns)
	var rule models.LateFineRule
	if err := r.db.GetContext(ctx, &rule, query, academicYear); err != nil {
		return nil, err
	}
	if err := r.loadTiers(ctx, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns all fine rules with tiers.
func (r *FeeCatalogRepository) ListRules(ctx context.Context) ([]models.LateFineRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM late_fine_rules ORDER BY academic_year DESC, created_at DESC`, ruleColumns)
	var rules []models.LateFineRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list fine rules: %w", err)
	}
	for i := range rules {
		if err := r.loadTiers(ctx, &rules[i]); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func (r *FeeCatalogRepository) loadTiers(ctx context.Context, rule *models.LateFineRule) error {
	const query = `SELECT id, rule_id, start_day, amount, type, max_amount FROM late_fine_tiers WHERE rule_id = $1 ORDER BY start_day ASC`
	if err := r.db.SelectContext(ctx, &rule.Tiers, query, rule.ID); err != nil {
		return fmt.Errorf("load fine tiers: %w", err)
	}
	return nil
}

// CreateRule inserts a validated fine rule and its tiers, deactivating
// any previously active rule for the same academic year.
func (r *FeeCatalogRepository) CreateRule(ctx context.Context, rule *models.LateFineRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fine rule tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if rule.Active {
		if _, err = tx.ExecContext(ctx, `UPDATE late_fine_rules SET active = FALSE, updated_at = $2 WHERE academic_year = $1 AND active = TRUE`, rule.AcademicYear, now); err != nil {
			return fmt.Errorf("supersede fine rule: %w", err)
		}
	}

	const ruleQuery = `INSERT INTO late_fine_rules (id, name, description, academic_year, active, created_at, updated_at)
        VALUES (:id, :name, :description, :academic_year, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, ruleQuery, rule); err != nil {
		return fmt.Errorf("insert fine rule: %w", err)
	}

	const tierQuery = `INSERT INTO late_fine_tiers (id, rule_id, start_day, amount, type, max_amount)
        VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range rule.Tiers {
		tier := &rule.Tiers[i]
		if tier.ID == "" {
			tier.ID = uuid.NewString()
		}
		tier.RuleID = rule.ID
		var maxAmount interface{}
		if tier.MaxAmount != nil {
			maxAmount = *tier.MaxAmount
		} else {
			maxAmount = sql.NullInt64{}
		}
		if _, err = tx.ExecContext(ctx, tierQuery, tier.ID, tier.RuleID, tier.StartDay, tier.Amount, tier.Type, maxAmount); err != nil {
			return fmt.Errorf("insert fine tier: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit fine rule tx: %w", err)
	}
	return nil
}

// DeactivateRule retires a fine rule without deleting it.
func (r *FeeCatalogRepository) DeactivateRule(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE late_fine_rules SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate fine rule: %w", err)
	}
	return nil
}
