package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func samplePayment() *models.Payment {
	return &models.Payment{
		StudentID:    "stu1",
		ClassID:      "class5",
		AcademicYear: "2025-2026",
		TotalAmount:  150000,
		LateFine:     80,
		NetAmount:    150080,
		Method:       models.MethodCash,
		CollectedBy:  "user1",
		PaymentDate:  time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC),
		Items: []models.PaymentItem{
			{FeeHeadID: "tuition", FeeHeadName: "Tuition Fee", PeriodMonth: 4, PeriodYear: 2025, Amount: 150000},
		},
	}
}

func TestCommitPayment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, "REC")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO receipt_sequences").
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payment_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO settlements").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := samplePayment()
	err := repo.CommitPayment(context.Background(), payment)
	require.NoError(t, err)

	assert.Equal(t, "REC-2025-000007", payment.ReceiptNumber)
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, payment.ID, payment.Items[0].PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitPaymentDoubleSettlement(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, "REC")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO receipt_sequences").
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(8))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payment_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO settlements").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CommitPayment(context.Background(), samplePayment())
	require.ErrorIs(t, err, appErrors.ErrAlreadySettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitPaymentRollbackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, "REC")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO receipt_sequences").
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(9))
	mock.ExpectExec("INSERT INTO payments").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.CommitPayment(context.Background(), samplePayment())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterSettled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, "REC")

	rows := sqlmock.NewRows([]string{"fee_head_id", "period_month", "period_year"}).
		AddRow("tuition", 4, 2025)
	mock.ExpectQuery("SELECT fee_head_id, period_month, period_year FROM settlements").
		WithArgs("stu1", "tuition", 4, 2025, "tuition", 5, 2025).
		WillReturnRows(rows)

	settled, err := repo.FilterSettled(context.Background(), "stu1", []models.SettlementKey{
		{FeeHeadID: "tuition", Period: models.Period{Month: 4, Year: 2025}},
		{FeeHeadID: "tuition", Period: models.Period{Month: 5, Year: 2025}},
	})
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, models.Period{Month: 4, Year: 2025}, settled[0].Period)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterSettledNoKeys(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, "REC")

	settled, err := repo.FilterSettled(context.Background(), "stu1", nil)
	require.NoError(t, err)
	assert.Empty(t, settled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSettlements(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, "REC")

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "fee_head_id", "period_month", "period_year", "receipt_number", "settled_at"}).
		AddRow("s1", "stu1", "tuition", 4, 2025, "REC-2025-000001", now).
		AddRow("s2", "stu1", "admission", 0, 2025, "REC-2025-000001", now)
	mock.ExpectQuery("SELECT (.+) FROM settlements WHERE student_id").
		WithArgs("stu1").
		WillReturnRows(rows)

	settlements, err := repo.ListSettlements(context.Background(), "stu1")
	require.NoError(t, err)
	require.Len(t, settlements, 2)
	assert.Equal(t, models.SettlementKey{FeeHeadID: "tuition", Period: models.Period{Month: 4, Year: 2025}}, settlements[0].Key())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReceipt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db, "REC")

	now := time.Now()
	paymentRows := sqlmock.NewRows([]string{"id", "receipt_number", "student_id", "class_id", "academic_year", "total_amount", "late_fine", "net_amount", "method", "transaction_ref", "remarks", "collected_by", "payment_date", "created_at"}).
		AddRow("p1", "REC-2025-000007", "stu1", "class5", "2025-2026", 150000, 80, 150080, "cash", "", "", "user1", now, now)
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE receipt_number").
		WithArgs("REC-2025-000007").
		WillReturnRows(paymentRows)

	itemRows := sqlmock.NewRows([]string{"id", "payment_id", "fee_head_id", "fee_head_name", "period_month", "period_year", "amount"}).
		AddRow("i1", "p1", "tuition", "Tuition Fee", 4, 2025, 150000)
	mock.ExpectQuery("SELECT (.+) FROM payment_items WHERE payment_id").
		WithArgs("p1").
		WillReturnRows(itemRows)

	payment, err := repo.FindByReceipt(context.Background(), "REC-2025-000007")
	require.NoError(t, err)
	assert.Equal(t, int64(150080), payment.NetAmount)
	require.Len(t, payment.Items, 1)
	assert.Equal(t, "Tuition Fee", payment.Items[0].FeeHeadName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
