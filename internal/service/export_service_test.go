package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
	"github.com/vidya-labs/school-console-api/pkg/export"
	"github.com/vidya-labs/school-console-api/pkg/storage"
)

type mockLedgerQueries struct {
	student      *models.StudentDetail
	history      []models.Payment
	receipt      *models.Payment
	receiptCalls int
}

func (m *mockLedgerQueries) Student(ctx context.Context, ref string) (*models.StudentDetail, error) {
	if m.student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return m.student, nil
}

func (m *mockLedgerQueries) History(ctx context.Context, studentRef string) ([]models.Payment, error) {
	return m.history, nil
}

func (m *mockLedgerQueries) Receipt(ctx context.Context, receiptNumber string) (*models.Payment, error) {
	m.receiptCalls++
	if m.receipt == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
	}
	return m.receipt, nil
}

func exportFixture() *mockLedgerQueries {
	return &mockLedgerQueries{
		student: &models.StudentDetail{
			Student:   models.Student{ID: "stu1", Name: "Asha Rao", AdmissionNumber: "ADM-2025-0001"},
			ClassName: "Class 5",
			WardName:  "North",
		},
		receipt: &models.Payment{
			ID:            "p1",
			ReceiptNumber: "REC-2025-000042",
			StudentID:     "stu1",
			TotalAmount:   650000,
			LateFine:      160,
			NetAmount:     650160,
			Method:        models.MethodCash,
			CollectedBy:   "user1",
			PaymentDate:   time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC),
			Items: []models.PaymentItem{
				{FeeHeadID: "tuition", FeeHeadName: "Tuition Fee", PeriodMonth: 4, PeriodYear: 2025, Amount: 150000},
				{FeeHeadID: "admission", FeeHeadName: "Admission Fee", PeriodMonth: 0, PeriodYear: 2025, Amount: 500000},
			},
		},
	}
}

func TestExportServiceLedgerCSV(t *testing.T) {
	ledger := exportFixture()
	ledger.history = []models.Payment{*ledger.receipt}
	svc := NewExportService(ledger, export.NewCSVExporter(), export.NewReceiptRenderer("", ""), nil, zap.NewNop())

	data, filename, err := svc.LedgerCSV(context.Background(), "stu1")
	require.NoError(t, err)
	assert.Equal(t, "ledger-ADM-2025-0001.csv", filename)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "receipt_number,payment_date,fee_head,period,amount,late_fine,net_amount,method", lines[0])
	assert.Contains(t, lines[1], "REC-2025-000042")
	assert.Contains(t, lines[1], "Tuition Fee")
	assert.Contains(t, lines[1], "6501.60")

	// The fine and net totals appear only on the first item row.
	assert.NotContains(t, lines[2], "6501.60")
}

func TestExportServiceReceiptPDF(t *testing.T) {
	ledger := exportFixture()
	svc := NewExportService(ledger, export.NewCSVExporter(), export.NewReceiptRenderer("Vidya Public School", "12 Lake Road"), nil, zap.NewNop())

	data, err := svc.ReceiptPDF(context.Background(), "REC-2025-000042")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestExportServiceReceiptPDFArchived(t *testing.T) {
	archive, err := storage.NewReceiptArchive(t.TempDir())
	require.NoError(t, err)

	ledger := exportFixture()
	svc := NewExportService(ledger, export.NewCSVExporter(), export.NewReceiptRenderer("Vidya Public School", "12 Lake Road"), archive, zap.NewNop())

	first, err := svc.ReceiptPDF(context.Background(), "REC-2025-000042")
	require.NoError(t, err)
	require.Equal(t, 1, ledger.receiptCalls)

	// Reprints serve the archived bytes without re-rendering.
	second, err := svc.ReceiptPDF(context.Background(), "REC-2025-000042")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ledger.receiptCalls)
}

func TestExportServiceReceiptPDFNotFound(t *testing.T) {
	ledger := &mockLedgerQueries{}
	svc := NewExportService(ledger, export.NewCSVExporter(), export.NewReceiptRenderer("", ""), nil, zap.NewNop())

	_, err := svc.ReceiptPDF(context.Background(), "REC-2025-999999")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
