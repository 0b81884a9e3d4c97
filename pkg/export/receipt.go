package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptLine is one printed charge on a fee receipt.
type ReceiptLine struct {
	FeeHead string
	Period  string
	Amount  int64
}

// Receipt carries the printable content of a committed payment.
type Receipt struct {
	SchoolName      string
	SchoolAddress   string
	ReceiptNumber   string
	PaymentDate     string
	StudentName     string
	AdmissionNumber string
	ClassName       string
	WardName        string
	Lines           []ReceiptLine
	TotalAmount     int64
	LateFine        int64
	NetAmount       int64
	Method          string
	TransactionRef  string
	CollectedBy     string
}

// ReceiptRenderer produces printable PDF receipts for payments.
type ReceiptRenderer struct {
	schoolName    string
	schoolAddress string
}

// NewReceiptRenderer constructs a receipt renderer with the school
// letterhead.
func NewReceiptRenderer(schoolName, schoolAddress string) *ReceiptRenderer {
	if schoolName == "" {
		schoolName = "School Fee Receipt"
	}
	return &ReceiptRenderer{schoolName: schoolName, schoolAddress: schoolAddress}
}

// Render produces the PDF bytes for one receipt.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.ReceiptNumber == "" {
		return nil, fmt.Errorf("receipt number is required")
	}
	if receipt.SchoolName == "" {
		receipt.SchoolName = r.schoolName
	}
	if receipt.SchoolAddress == "" {
		receipt.SchoolAddress = r.schoolAddress
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, receipt.SchoolName, "", 1, "C", false, 0, "")
	if receipt.SchoolAddress != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, receipt.SchoolAddress, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, "FEE RECEIPT", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	labelled := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, value, "", 1, "", false, 0, "")
	}
	labelled("Receipt No:", receipt.ReceiptNumber)
	labelled("Date:", receipt.PaymentDate)
	labelled("Student:", receipt.StudentName)
	labelled("Admission No:", receipt.AdmissionNumber)
	labelled("Class:", receipt.ClassName)
	labelled("Ward:", receipt.WardName)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 8, "Fee Head", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 8, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, "Amount", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, line := range receipt.Lines {
		pdf.CellFormat(90, 7, line.FeeHead, "1", 0, "", false, 0, "")
		pdf.CellFormat(50, 7, line.Period, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, FormatAmount(line.Amount), "1", 1, "R", false, 0, "")
	}

	totals := func(label string, amount int64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(140, 7, label, "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, FormatAmount(amount), "1", 1, "R", false, 0, "")
	}
	totals("Total", receipt.TotalAmount, false)
	if receipt.LateFine > 0 {
		totals("Late Fine", receipt.LateFine, false)
	}
	totals("Net Amount", receipt.NetAmount, true)
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 9)
	method := receipt.Method
	if receipt.TransactionRef != "" {
		method = fmt.Sprintf("%s (%s)", method, receipt.TransactionRef)
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Payment method: %s", method), "", 1, "", false, 0, "")
	if receipt.CollectedBy != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Collected by: %s", receipt.CollectedBy), "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatAmount renders a smallest-currency-unit amount with two decimal
// places, e.g. 123450 -> "1234.50".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
