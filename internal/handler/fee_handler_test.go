package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-labs/school-console-api/internal/middleware"
	"github.com/vidya-labs/school-console-api/internal/models"
	"github.com/vidya-labs/school-console-api/internal/service"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type ledgerQuerierMock struct {
	statuses    []models.PeriodStatus
	statusErr   error
	charges     []models.PeriodCharges
	chargesErr  error
	payments    []models.Payment
	receipt     *models.Payment
	receiptErr  error
	lastStudent string
	lastYear    string
	lastPeriods []models.Period
}

func (m *ledgerQuerierMock) PeriodStatus(ctx context.Context, studentRef, academicYear string) ([]models.PeriodStatus, error) {
	m.lastStudent = studentRef
	m.lastYear = academicYear
	return m.statuses, m.statusErr
}

func (m *ledgerQuerierMock) OutstandingDetail(ctx context.Context, studentRef string, periods []models.Period) ([]models.PeriodCharges, error) {
	m.lastStudent = studentRef
	m.lastPeriods = periods
	return m.charges, m.chargesErr
}

func (m *ledgerQuerierMock) History(ctx context.Context, studentRef string) ([]models.Payment, error) {
	m.lastStudent = studentRef
	return m.payments, nil
}

func (m *ledgerQuerierMock) Receipt(ctx context.Context, receiptNumber string) (*models.Payment, error) {
	return m.receipt, m.receiptErr
}

type paymentProcessorMock struct {
	payment     *models.Payment
	err         error
	lastReq     service.ProcessPaymentRequest
	collectedBy string
}

func (m *paymentProcessorMock) ProcessPayment(ctx context.Context, req service.ProcessPaymentRequest, collectedBy string) (*models.Payment, error) {
	m.lastReq = req
	m.collectedBy = collectedBy
	return m.payment, m.err
}

type ledgerExporterMock struct {
	pdf      []byte
	csv      []byte
	filename string
	err      error
}

func (m *ledgerExporterMock) ReceiptPDF(ctx context.Context, receiptNumber string) ([]byte, error) {
	return m.pdf, m.err
}

func (m *ledgerExporterMock) LedgerCSV(ctx context.Context, studentRef string) ([]byte, string, error) {
	return m.csv, m.filename, m.err
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, w
}

func TestFeeHandlerPeriodStatus(t *testing.T) {
	ledger := &ledgerQuerierMock{statuses: []models.PeriodStatus{{Period: models.Period{Month: 4, Year: 2025}, Label: "April 2025"}}}
	h := NewFeeHandler(ledger, &paymentProcessorMock{}, &ledgerExporterMock{})

	c, w := testContext(t, http.MethodGet, "/fees/status/stu1?academic_year=2025-2026", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "stu1"}}

	h.PeriodStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu1", ledger.lastStudent)
	assert.Equal(t, "2025-2026", ledger.lastYear)
}

func TestFeeHandlerPeriodStatusNotFound(t *testing.T) {
	ledger := &ledgerQuerierMock{statusErr: appErrors.Clone(appErrors.ErrNotFound, "student not found")}
	h := NewFeeHandler(ledger, &paymentProcessorMock{}, &ledgerExporterMock{})

	c, w := testContext(t, http.MethodGet, "/fees/status/ghost?academic_year=2025-2026", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "ghost"}}

	h.PeriodStatus(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeeHandlerOutstandingDetail(t *testing.T) {
	ledger := &ledgerQuerierMock{charges: []models.PeriodCharges{{Period: models.Period{Month: 4, Year: 2025}}}}
	h := NewFeeHandler(ledger, &paymentProcessorMock{}, &ledgerExporterMock{})

	c, w := testContext(t, http.MethodGet, "/fees/details/stu1?periods=4-2025,0-2025", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "stu1"}}

	h.OutstandingDetail(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ledger.lastPeriods, 2)
	assert.Equal(t, models.Period{Month: 4, Year: 2025}, ledger.lastPeriods[0])
	assert.Equal(t, models.Period{Month: 0, Year: 2025}, ledger.lastPeriods[1])
}

func TestFeeHandlerOutstandingDetailBadPeriods(t *testing.T) {
	h := NewFeeHandler(&ledgerQuerierMock{}, &paymentProcessorMock{}, &ledgerExporterMock{})

	c, w := testContext(t, http.MethodGet, "/fees/details/stu1?periods=garbage", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "stu1"}}

	h.OutstandingDetail(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeHandlerProcessPayment(t *testing.T) {
	payments := &paymentProcessorMock{payment: &models.Payment{ReceiptNumber: "REC-2025-000042", NetAmount: 150080}}
	h := NewFeeHandler(&ledgerQuerierMock{}, payments, &ledgerExporterMock{})

	body, _ := json.Marshal(service.ProcessPaymentRequest{
		StudentID: "stu1",
		Items:     []service.PaymentItemRequest{{FeeHeadID: "tuition", Month: 4, Year: 2025, ExpectedAmount: 150000}},
		Method:    models.MethodCash,
	})
	c, w := testContext(t, http.MethodPost, "/fees/payments", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user1", Role: models.RoleOperator})

	h.ProcessPayment(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user1", payments.collectedBy)
	assert.Equal(t, "stu1", payments.lastReq.StudentID)
}

func TestFeeHandlerProcessPaymentUnauthenticated(t *testing.T) {
	h := NewFeeHandler(&ledgerQuerierMock{}, &paymentProcessorMock{}, &ledgerExporterMock{})

	c, w := testContext(t, http.MethodPost, "/fees/payments", []byte(`{}`))

	h.ProcessPayment(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFeeHandlerProcessPaymentConflict(t *testing.T) {
	payments := &paymentProcessorMock{err: appErrors.Clone(appErrors.ErrAlreadySettled, "fee already settled for April 2025")}
	h := NewFeeHandler(&ledgerQuerierMock{}, payments, &ledgerExporterMock{})

	body, _ := json.Marshal(service.ProcessPaymentRequest{
		StudentID: "stu1",
		Items:     []service.PaymentItemRequest{{FeeHeadID: "tuition", Month: 4, Year: 2025, ExpectedAmount: 150000}},
		Method:    models.MethodCash,
	})
	c, w := testContext(t, http.MethodPost, "/fees/payments", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user1", Role: models.RoleOperator})

	h.ProcessPayment(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestFeeHandlerExportLedger(t *testing.T) {
	exports := &ledgerExporterMock{csv: []byte("receipt_number\n"), filename: "ledger-ADM-2025-0001.csv"}
	h := NewFeeHandler(&ledgerQuerierMock{}, &paymentProcessorMock{}, exports)

	c, w := testContext(t, http.MethodGet, "/fees/ledger/stu1/export", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "stu1"}}

	h.ExportLedger(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ledger-ADM-2025-0001.csv")
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestFeeHandlerReceiptPDF(t *testing.T) {
	exports := &ledgerExporterMock{pdf: []byte("%PDF-1.3")}
	h := NewFeeHandler(&ledgerQuerierMock{}, &paymentProcessorMock{}, exports)

	c, w := testContext(t, http.MethodGet, "/fees/receipts/REC-2025-000042/pdf", nil)
	c.Params = gin.Params{{Key: "receiptNumber", Value: "REC-2025-000042"}}

	h.ReceiptPDF(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestParsePeriods(t *testing.T) {
	periods, err := parsePeriods("4-2025, 5-2025,0-2025")
	require.NoError(t, err)
	assert.Equal(t, []models.Period{{Month: 4, Year: 2025}, {Month: 5, Year: 2025}, {Month: 0, Year: 2025}}, periods)

	_, err = parsePeriods("")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = parsePeriods("13-2025")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = parsePeriods("4-1999")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = parsePeriods("april")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
