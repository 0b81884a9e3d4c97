package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
	"github.com/vidya-labs/school-console-api/pkg/export"
	"github.com/vidya-labs/school-console-api/pkg/storage"
)

type ledgerQueries interface {
	Student(ctx context.Context, ref string) (*models.StudentDetail, error)
	History(ctx context.Context, studentRef string) ([]models.Payment, error)
	Receipt(ctx context.Context, receiptNumber string) (*models.Payment, error)
}

// ExportService renders printable receipts and ledger exports.
type ExportService struct {
	ledger   ledgerQueries
	csv      *export.CSVExporter
	receipts *export.ReceiptRenderer
	archive  *storage.ReceiptArchive
	logger   *zap.Logger
}

// NewExportService creates an export service instance. The archive is
// optional; without it every reprint re-renders.
func NewExportService(ledger ledgerQueries, csv *export.CSVExporter, receipts *export.ReceiptRenderer, archive *storage.ReceiptArchive, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{ledger: ledger, csv: csv, receipts: receipts, archive: archive, logger: logger}
}

// ReceiptPDF returns the printable receipt for a committed payment,
// serving archived bytes when available so reprints are stable.
func (s *ExportService) ReceiptPDF(ctx context.Context, receiptNumber string) ([]byte, error) {
	if s.archive != nil {
		if data, err := s.archive.Load(receiptNumber); err == nil {
			return data, nil
		}
	}

	payment, err := s.ledger.Receipt(ctx, receiptNumber)
	if err != nil {
		return nil, err
	}
	student, err := s.ledger.Student(ctx, payment.StudentID)
	if err != nil {
		return nil, err
	}

	receipt := export.Receipt{
		ReceiptNumber:   payment.ReceiptNumber,
		PaymentDate:     payment.PaymentDate.Format("02 Jan 2006"),
		StudentName:     student.Name,
		AdmissionNumber: student.AdmissionNumber,
		ClassName:       student.ClassName,
		WardName:        student.WardName,
		TotalAmount:     payment.TotalAmount,
		LateFine:        payment.LateFine,
		NetAmount:       payment.NetAmount,
		Method:          string(payment.Method),
		TransactionRef:  payment.TransactionRef,
		CollectedBy:     payment.CollectedBy,
	}
	for _, item := range payment.Items {
		receipt.Lines = append(receipt.Lines, export.ReceiptLine{
			FeeHead: item.FeeHeadName,
			Period:  item.Period().Label(),
			Amount:  item.Amount,
		})
	}

	data, err := s.receipts.Render(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	if s.archive != nil {
		if err := s.archive.Store(payment.ReceiptNumber, data); err != nil {
			s.logger.Warn("failed to archive receipt", zap.String("receipt_number", payment.ReceiptNumber), zap.Error(err))
		}
	}
	return data, nil
}

// LedgerCSV exports a student's payment history as CSV.
func (s *ExportService) LedgerCSV(ctx context.Context, studentRef string) ([]byte, string, error) {
	student, err := s.ledger.Student(ctx, studentRef)
	if err != nil {
		return nil, "", err
	}
	payments, err := s.ledger.History(ctx, student.ID)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"receipt_number", "payment_date", "fee_head", "period", "amount", "late_fine", "net_amount", "method"},
	}
	for _, payment := range payments {
		for i, item := range payment.Items {
			row := map[string]string{
				"receipt_number": payment.ReceiptNumber,
				"payment_date":   payment.PaymentDate.Format("2006-01-02"),
				"fee_head":       item.FeeHeadName,
				"period":         item.Period().Label(),
				"amount":         export.FormatAmount(item.Amount),
				"method":         string(payment.Method),
			}
			if i == 0 {
				row["late_fine"] = export.FormatAmount(payment.LateFine)
				row["net_amount"] = export.FormatAmount(payment.NetAmount)
			}
			dataset.Rows = append(dataset.Rows, row)
		}
	}

	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ledger export")
	}
	filename := fmt.Sprintf("ledger-%s.csv", student.AdmissionNumber)
	return data, filename, nil
}
