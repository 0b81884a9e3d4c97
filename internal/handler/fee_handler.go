package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidya-labs/school-console-api/internal/models"
	"github.com/vidya-labs/school-console-api/internal/service"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
	"github.com/vidya-labs/school-console-api/pkg/response"
)

type ledgerQuerier interface {
	PeriodStatus(ctx context.Context, studentRef, academicYear string) ([]models.PeriodStatus, error)
	OutstandingDetail(ctx context.Context, studentRef string, periods []models.Period) ([]models.PeriodCharges, error)
	History(ctx context.Context, studentRef string) ([]models.Payment, error)
	Receipt(ctx context.Context, receiptNumber string) (*models.Payment, error)
}

type paymentProcessor interface {
	ProcessPayment(ctx context.Context, req service.ProcessPaymentRequest, collectedBy string) (*models.Payment, error)
}

type ledgerExporter interface {
	ReceiptPDF(ctx context.Context, receiptNumber string) ([]byte, error)
	LedgerCSV(ctx context.Context, studentRef string) ([]byte, string, error)
}

// FeeHandler exposes the fee ledger: period status, charge previews,
// payments, history and receipts.
type FeeHandler struct {
	ledger   ledgerQuerier
	payments paymentProcessor
	exports  ledgerExporter
}

// NewFeeHandler creates a new handler.
func NewFeeHandler(ledger ledgerQuerier, payments paymentProcessor, exports ledgerExporter) *FeeHandler {
	return &FeeHandler{ledger: ledger, payments: payments, exports: exports}
}

// PeriodStatus godoc
// @Summary Payable periods for a student
// @Description List billing periods of an academic year with per fee head settlement state
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID or admission number"
// @Param academic_year query string true "Academic year, e.g. 2025-2026"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/status/{studentId} [get]
func (h *FeeHandler) PeriodStatus(c *gin.Context) {
	academicYear := c.Query("academic_year")
	statuses, err := h.ledger.PeriodStatus(c.Request.Context(), c.Param("studentId"), academicYear)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// OutstandingDetail godoc
// @Summary Charge preview for selected periods
// @Description Compute unpaid fee lines and late fine for the selected billing periods
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID or admission number"
// @Param periods query string true "Comma separated month-year pairs, e.g. 4-2025,5-2025"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /fees/details/{studentId} [get]
func (h *FeeHandler) OutstandingDetail(c *gin.Context) {
	periods, err := parsePeriods(c.Query("periods"))
	if err != nil {
		response.Error(c, err)
		return
	}

	charges, err := h.ledger.OutstandingDetail(c.Request.Context(), c.Param("studentId"), periods)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charges, nil)
}

// ProcessPayment godoc
// @Summary Record a fee payment
// @Description Verify and commit a payment against selected obligations
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ProcessPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /fees/payments [post]
func (h *FeeHandler) ProcessPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	payment, err := h.payments.ProcessPayment(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// History godoc
// @Summary Payment history
// @Description Return a student's payments, most recent first
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID or admission number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/ledger/{studentId} [get]
func (h *FeeHandler) History(c *gin.Context) {
	payments, err := h.ledger.History(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// ExportLedger godoc
// @Summary Export payment history
// @Description Download a student's payment history as CSV
// @Tags Fees
// @Produce text/csv
// @Security BearerAuth
// @Param studentId path string true "Student ID or admission number"
// @Success 200 {string} string "CSV content"
// @Failure 404 {object} response.Envelope
// @Router /fees/ledger/{studentId}/export [get]
func (h *FeeHandler) ExportLedger(c *gin.Context) {
	data, filename, err := h.exports.LedgerCSV(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// Receipt godoc
// @Summary Receipt lookup
// @Description Return the payment behind a receipt number
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param receiptNumber path string true "Receipt number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/receipts/{receiptNumber} [get]
func (h *FeeHandler) Receipt(c *gin.Context) {
	payment, err := h.ledger.Receipt(c.Request.Context(), c.Param("receiptNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// ReceiptPDF godoc
// @Summary Printable receipt
// @Description Render the receipt as a PDF document
// @Tags Fees
// @Produce application/pdf
// @Security BearerAuth
// @Param receiptNumber path string true "Receipt number"
// @Success 200 {string} string "PDF content"
// @Failure 404 {object} response.Envelope
// @Router /fees/receipts/{receiptNumber}/pdf [get]
func (h *FeeHandler) ReceiptPDF(c *gin.Context) {
	receiptNumber := c.Param("receiptNumber")
	data, err := h.exports.ReceiptPDF(c.Request.Context(), receiptNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", receiptNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", data)
}
