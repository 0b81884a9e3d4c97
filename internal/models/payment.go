package models

import "time"

// PaymentMethod enumerates how a payment was collected. Methods are
// recorded, not processed against a gateway.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
	MethodOnline       PaymentMethod = "online"
)

// ValidPaymentMethod reports whether m is a known collection method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodCheque, MethodOnline:
		return true
	}
	return false
}

// PaymentItem is one settled (fee head, period, amount) line of a payment.
type PaymentItem struct {
	ID          string `db:"id" json:"id"`
	PaymentID   string `db:"payment_id" json:"-"`
	FeeHeadID   string `db:"fee_head_id" json:"fee_head_id"`
	FeeHeadName string `db:"fee_head_name" json:"fee_head_name"`
	PeriodMonth int    `db:"period_month" json:"period_month"`
	PeriodYear  int    `db:"period_year" json:"period_year"`
	Amount      int64  `db:"amount" json:"amount"`
}

// Period returns the billing bucket the item settles.
func (i PaymentItem) Period() Period {
	return Period{Month: i.PeriodMonth, Year: i.PeriodYear}
}

// Payment is the immutable record of a completed collection. There are
// no update or delete code paths; corrections require a compensating
// record.
type Payment struct {
	ID             string        `db:"id" json:"id"`
	ReceiptNumber  string        `db:"receipt_number" json:"receipt_number"`
	StudentID      string        `db:"student_id" json:"student_id"`
	ClassID        string        `db:"class_id" json:"class_id"`
	AcademicYear   string        `db:"academic_year" json:"academic_year"`
	TotalAmount    int64         `db:"total_amount" json:"total_amount"`
	LateFine       int64         `db:"late_fine" json:"late_fine"`
	NetAmount      int64         `db:"net_amount" json:"net_amount"`
	Method         PaymentMethod `db:"method" json:"method"`
	TransactionRef string        `db:"transaction_ref" json:"transaction_ref,omitempty"`
	Remarks        string        `db:"remarks" json:"remarks,omitempty"`
	CollectedBy    string        `db:"collected_by" json:"collected_by"`
	PaymentDate    time.Time     `db:"payment_date" json:"payment_date"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	Items          []PaymentItem `db:"-" json:"items"`
}

// PeriodFeeStatus reports the settlement state of one fee head within a
// period, for the payable-months picker.
type PeriodFeeStatus struct {
	FeeHeadID     string `json:"fee_head_id"`
	FeeHeadName   string `json:"fee_head_name"`
	Settled       bool   `json:"settled"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
}

// PeriodStatus groups fee head settlement state for one billing bucket.
type PeriodStatus struct {
	Period   Period            `json:"period"`
	Label    string            `json:"label"`
	FeeHeads []PeriodFeeStatus `json:"fee_heads"`
}

// ChargeLine is one previewed (fee head, amount) charge within a period.
type ChargeLine struct {
	FeeHeadID   string `json:"fee_head_id"`
	FeeHeadName string `json:"fee_head_name"`
	Amount      int64  `json:"amount"`
}

// PeriodCharges is the previewed breakdown of what a payment would
// charge for one period: unpaid fee lines plus the computed late fine.
type PeriodCharges struct {
	Period   Period       `json:"period"`
	Label    string       `json:"label"`
	DueDate  time.Time    `json:"due_date"`
	Lines    []ChargeLine `json:"lines"`
	LateFine int64        `json:"late_fine"`
}

// Total sums the period's fee lines excluding the fine.
func (p PeriodCharges) Total() int64 {
	var total int64
	for _, line := range p.Lines {
		total += line.Amount
	}
	return total
}
