package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

// LedgerRepository owns the settlement index and the append-only payment
// log. Settlement rows are written only by CommitPayment; payments have
// no update or delete paths.
type LedgerRepository struct {
	db            *sqlx.DB
	receiptPrefix string
}

// NewLedgerRepository instantiates a ledger repository.
func NewLedgerRepository(db *sqlx.DB, receiptPrefix string) *LedgerRepository {
	if receiptPrefix == "" {
		receiptPrefix = "REC"
	}
	return &LedgerRepository{db: db, receiptPrefix: receiptPrefix}
}

const settlementColumns = `id, student_id, fee_head_id, period_month, period_year, receipt_number, settled_at`

// ListSettlements returns every settlement recorded for a student.
func (r *LedgerRepository) ListSettlements(ctx context.Context, studentID string) ([]models.Settlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM settlements WHERE student_id = $1 ORDER BY period_year, period_month`, settlementColumns)
	var settlements []models.Settlement
	if err := r.db.SelectContext(ctx, &settlements, query, studentID); err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return settlements, nil
}

// FilterSettled returns the subset of keys already settled for the
// student. The settlement index makes this an indexed lookup rather
// than a scan over payment history.
func (r *LedgerRepository) FilterSettled(ctx context.Context, studentID string, keys []models.SettlementKey) ([]models.SettlementKey, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(keys))
	args := []interface{}{studentID}
	for _, key := range keys {
		conditions = append(conditions, fmt.Sprintf("(fee_head_id = $%d AND period_month = $%d AND period_year = $%d)",
			len(args)+1, len(args)+2, len(args)+3))
		args = append(args, key.FeeHeadID, key.Period.Month, key.Period.Year)
	}

	query := fmt.Sprintf(`SELECT fee_head_id, period_month, period_year FROM settlements WHERE student_id = $1 AND (%s)`,
		strings.Join(conditions, " OR "))

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter settled: %w", err)
	}
	defer rows.Close()

	var settled []models.SettlementKey
	for rows.Next() {
		var feeHeadID string
		var month, year int
		if err := rows.Scan(&feeHeadID, &month, &year); err != nil {
			return nil, fmt.Errorf("scan settled key: %w", err)
		}
		settled = append(settled, models.SettlementKey{FeeHeadID: feeHeadID, Period: models.Period{Month: month, Year: year}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settled keys: %w", err)
	}
	return settled, nil
}

// CommitPayment persists the payment, its line items and the matching
// settlement rows in a single transaction, allocating the next receipt
// number of the payment year. Either everything lands or nothing does;
// the settlements unique index rejects a concurrent double-settlement
// even if the pre-commit check raced.
func (r *LedgerRepository) CommitPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = now
	}
	payment.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	year := payment.PaymentDate.Year()
	var seq int
	err = tx.GetContext(ctx, &seq, `INSERT INTO receipt_sequences (year, last_value) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_value = receipt_sequences.last_value + 1
        RETURNING last_value`, year)
	if err != nil {
		return fmt.Errorf("next receipt sequence: %w", err)
	}
	payment.ReceiptNumber = fmt.Sprintf("%s-%d-%06d", r.receiptPrefix, year, seq)

	const paymentQuery = `INSERT INTO payments (id, receipt_number, student_id, class_id, academic_year,
        total_amount, late_fine, net_amount, method, transaction_ref, remarks, collected_by, payment_date, created_at)
        VALUES (:id, :receipt_number, :student_id, :class_id, :academic_year,
        :total_amount, :late_fine, :net_amount, :method, :transaction_ref, :remarks, :collected_by, :payment_date, :created_at)`
	if _, err = tx.NamedExecContext(ctx, paymentQuery, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	const itemQuery = `INSERT INTO payment_items (id, payment_id, fee_head_id, fee_head_name, period_month, period_year, amount)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	const settlementQuery = `INSERT INTO settlements (id, student_id, fee_head_id, period_month, period_year, receipt_number, settled_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i := range payment.Items {
		item := &payment.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.PaymentID = payment.ID
		if _, err = tx.ExecContext(ctx, itemQuery, item.ID, item.PaymentID, item.FeeHeadID, item.FeeHeadName, item.PeriodMonth, item.PeriodYear, item.Amount); err != nil {
			return fmt.Errorf("insert payment item: %w", err)
		}
		if _, err = tx.ExecContext(ctx, settlementQuery, uuid.NewString(), payment.StudentID, item.FeeHeadID, item.PeriodMonth, item.PeriodYear, payment.ReceiptNumber, now); err != nil {
			if isUniqueViolation(err) {
				err = appErrors.Clone(appErrors.ErrAlreadySettled,
					fmt.Sprintf("%s is already settled for %s", item.FeeHeadName, item.Period().Label()))
			} else {
				err = fmt.Errorf("insert settlement: %w", err)
			}
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit payment tx: %w", err)
	}
	return nil
}

const paymentColumns = `id, receipt_number, student_id, class_id, academic_year, total_amount, late_fine,
        net_amount, method, transaction_ref, remarks, collected_by, payment_date, created_at`

// HistoryByStudent returns a student's payments, most recent first,
// with line items attached.
func (r *LedgerRepository) HistoryByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE student_id = $1 ORDER BY payment_date DESC, receipt_number DESC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	for i := range payments {
		if err := r.loadItems(ctx, &payments[i]); err != nil {
			return nil, err
		}
	}
	return payments, nil
}

// FindByReceipt loads a single payment by receipt number.
func (r *LedgerRepository) FindByReceipt(ctx context.Context, receiptNumber string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE receipt_number = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, receiptNumber); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *LedgerRepository) loadItems(ctx context.Context, payment *models.Payment) error {
	const query = `SELECT id, payment_id, fee_head_id, fee_head_name, period_month, period_year, amount
        FROM payment_items WHERE payment_id = $1 ORDER BY period_year, period_month, fee_head_name`
	if err := r.db.SelectContext(ctx, &payment.Items, query, payment.ID); err != nil {
		return fmt.Errorf("load payment items: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
