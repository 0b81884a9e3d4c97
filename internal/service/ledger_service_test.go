package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type mockLedgerStore struct {
	settlements   []models.Settlement
	payments      map[string]*models.Payment
	history       []models.Payment
	listCalled    bool
	commitErr     error
	lastCommitted *models.Payment
}

func (m *mockLedgerStore) ListSettlements(ctx context.Context, studentID string) ([]models.Settlement, error) {
	m.listCalled = true
	return m.settlements, nil
}

func (m *mockLedgerStore) FilterSettled(ctx context.Context, studentID string, keys []models.SettlementKey) ([]models.SettlementKey, error) {
	settled := make(map[models.SettlementKey]struct{}, len(m.settlements))
	for _, st := range m.settlements {
		settled[st.Key()] = struct{}{}
	}
	var matched []models.SettlementKey
	for _, key := range keys {
		if _, ok := settled[key]; ok {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

func (m *mockLedgerStore) HistoryByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	return m.history, nil
}

func (m *mockLedgerStore) FindByReceipt(ctx context.Context, receiptNumber string) (*models.Payment, error) {
	if p, ok := m.payments[receiptNumber]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLedgerStore) CommitPayment(ctx context.Context, payment *models.Payment) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	payment.ReceiptNumber = "REC-2025-000042"
	m.lastCommitted = payment
	for _, item := range payment.Items {
		m.settlements = append(m.settlements, models.Settlement{
			StudentID:     payment.StudentID,
			FeeHeadID:     item.FeeHeadID,
			PeriodMonth:   item.PeriodMonth,
			PeriodYear:    item.PeriodYear,
			ReceiptNumber: payment.ReceiptNumber,
		})
	}
	return nil
}

type mockCatalogReader struct {
	heads []models.FeeHead
	rule  *models.LateFineRule
}

func (m *mockCatalogReader) ListFeeHeads(ctx context.Context, activeOnly bool) ([]models.FeeHead, error) {
	return m.heads, nil
}

func (m *mockCatalogReader) FindActiveRule(ctx context.Context, academicYear string) (*models.LateFineRule, error) {
	if m.rule == nil {
		return nil, sql.ErrNoRows
	}
	return m.rule, nil
}

type mockStudentReader struct {
	students map[string]*models.StudentDetail
}

func (m *mockStudentReader) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentReader) FindDetailByAdmissionNumber(ctx context.Context, admissionNumber string) (*models.StudentDetail, error) {
	for _, s := range m.students {
		if s.AdmissionNumber == admissionNumber {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockAmountResolver struct {
	amounts map[string]int64
	err     error
}

func (m *mockAmountResolver) ResolveAmount(ctx context.Context, head *models.FeeHead, classID, wardID, academicYear string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.amounts[head.ID], nil
}

type mockCacheStore struct {
	statuses []models.PeriodStatus
	setKeys  []string
	deleted  []string
}

func (m *mockCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	if m.statuses == nil {
		return appErrors.ErrCacheMiss
	}
	if out, ok := dest.(*[]models.PeriodStatus); ok {
		*out = m.statuses
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *mockCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setKeys = append(m.setKeys, key)
	return nil
}

func (m *mockCacheStore) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func ledgerFixture() (*mockLedgerStore, *mockCatalogReader, *mockStudentReader, *mockAmountResolver) {
	store := &mockLedgerStore{payments: map[string]*models.Payment{}}
	catalog := &mockCatalogReader{
		heads: []models.FeeHead{
			{ID: "tuition", Name: "Tuition Fee", Frequency: models.FrequencyMonthly, ClassBased: true, Active: true},
			{ID: "admission", Name: "Admission Fee", Frequency: models.FrequencyYearly, DefaultAmount: 500000, Active: true},
		},
		rule: tieredRule(),
	}
	students := &mockStudentReader{students: map[string]*models.StudentDetail{
		"stu1": {
			Student:   models.Student{ID: "stu1", Name: "Asha Rao", AdmissionNumber: "ADM-2025-0001", ClassID: "class5", WardID: "ward2", Status: models.StudentStatusActive},
			ClassName: "Class 5",
			WardName:  "North",
		},
	}}
	resolver := &mockAmountResolver{amounts: map[string]int64{"tuition": 150000, "admission": 500000}}
	return store, catalog, students, resolver
}

func newTestLedgerService(store *mockLedgerStore, catalog *mockCatalogReader, students *mockStudentReader, resolver *mockAmountResolver, cache *CacheService) *LedgerService {
	return NewLedgerService(store, store, catalog, students, resolver, cache, LedgerOptions{DueDay: 10, YearStartMonth: 4}, zap.NewNop())
}

func TestLedgerServicePeriodStatus(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	store.settlements = []models.Settlement{
		{StudentID: "stu1", FeeHeadID: "tuition", PeriodMonth: 4, PeriodYear: 2025, ReceiptNumber: "REC-2025-000001"},
	}
	cacheStore := &mockCacheStore{}
	svc := newTestLedgerService(store, catalog, students, resolver, NewCacheService(cacheStore, true, nil, nil))

	statuses, err := svc.PeriodStatus(context.Background(), "stu1", "2025-2026")
	require.NoError(t, err)
	require.Len(t, statuses, 13)

	yearBucket := statuses[0]
	assert.Equal(t, models.Period{Month: 0, Year: 2025}, yearBucket.Period)
	require.Len(t, yearBucket.FeeHeads, 1)
	assert.Equal(t, "admission", yearBucket.FeeHeads[0].FeeHeadID)
	assert.False(t, yearBucket.FeeHeads[0].Settled)

	april := statuses[1]
	assert.Equal(t, models.Period{Month: 4, Year: 2025}, april.Period)
	require.Len(t, april.FeeHeads, 1)
	assert.True(t, april.FeeHeads[0].Settled)
	assert.Equal(t, "REC-2025-000001", april.FeeHeads[0].ReceiptNumber)

	may := statuses[2]
	assert.Equal(t, models.Period{Month: 5, Year: 2025}, may.Period)
	assert.False(t, may.FeeHeads[0].Settled)

	// The last month bucket wraps into the next calendar year.
	march := statuses[12]
	assert.Equal(t, models.Period{Month: 3, Year: 2026}, march.Period)

	require.Len(t, cacheStore.setKeys, 1)
	assert.Equal(t, "fees:status:stu1:2025-2026", cacheStore.setKeys[0])
}

func TestLedgerServicePeriodStatusCacheHit(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	cached := []models.PeriodStatus{{Period: models.Period{Month: 4, Year: 2025}, Label: "April 2025"}}
	cacheStore := &mockCacheStore{statuses: cached}
	svc := newTestLedgerService(store, catalog, students, resolver, NewCacheService(cacheStore, true, nil, nil))

	statuses, err := svc.PeriodStatus(context.Background(), "stu1", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, cached, statuses)
	assert.False(t, store.listCalled)
}

func TestLedgerServicePeriodStatusBadAcademicYear(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	_, err := svc.PeriodStatus(context.Background(), "stu1", "not-a-year")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLedgerServiceChargesFor(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	student := students.students["stu1"]
	asOf := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	charges, err := svc.ChargesFor(context.Background(), student, []models.Period{
		{Month: 4, Year: 2025},
		{Month: 0, Year: 2025},
	}, asOf)
	require.NoError(t, err)
	require.Len(t, charges, 2)

	// Sorted with the year bucket first.
	yearCharge := charges[0]
	assert.Equal(t, models.Period{Month: 0, Year: 2025}, yearCharge.Period)
	require.Len(t, yearCharge.Lines, 1)
	assert.Equal(t, int64(500000), yearCharge.Lines[0].Amount)

	april := charges[1]
	require.Len(t, april.Lines, 1)
	assert.Equal(t, "Tuition Fee", april.Lines[0].FeeHeadName)
	assert.Equal(t, int64(150000), april.Lines[0].Amount)
	assert.Equal(t, int64(150000), april.Total())

	// Both buckets fall due on 10 April, 25 days before asOf.
	assert.Equal(t, int64(80), april.LateFine)
	assert.Equal(t, int64(80), yearCharge.LateFine)
}

func TestLedgerServiceChargesForExcludesSettled(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	store.settlements = []models.Settlement{
		{StudentID: "stu1", FeeHeadID: "tuition", PeriodMonth: 4, PeriodYear: 2025, ReceiptNumber: "REC-2025-000001"},
	}
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	charges, err := svc.ChargesFor(context.Background(), students.students["stu1"], []models.Period{{Month: 4, Year: 2025}}, asOf)
	require.NoError(t, err)
	require.Len(t, charges, 1)

	// Nothing left to pay, so no fine either.
	assert.Empty(t, charges[0].Lines)
	assert.Zero(t, charges[0].LateFine)
}

func TestLedgerServiceChargesForNoFineWithoutRule(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	catalog.rule = nil
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	asOf := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	charges, err := svc.ChargesFor(context.Background(), students.students["stu1"], []models.Period{{Month: 4, Year: 2025}}, asOf)
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.NotEmpty(t, charges[0].Lines)
	assert.Zero(t, charges[0].LateFine)
}

func TestLedgerServiceChargesForConfigurationMissing(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	resolver.err = appErrors.Clone(appErrors.ErrConfigurationMissing, "no fee structure entry for Tuition Fee in academic year 2025-2026")
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	_, err := svc.ChargesFor(context.Background(), students.students["stu1"], []models.Period{{Month: 4, Year: 2025}}, time.Now())
	require.ErrorIs(t, err, appErrors.ErrConfigurationMissing)
}

func TestLedgerServiceChargesForRequiresPeriods(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	_, err := svc.ChargesFor(context.Background(), students.students["stu1"], nil, time.Now())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLedgerServiceStudentAdmissionNumberFallback(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	student, err := svc.Student(context.Background(), "ADM-2025-0001")
	require.NoError(t, err)
	assert.Equal(t, "stu1", student.ID)

	_, err = svc.Student(context.Background(), "ADM-1999-9999")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestLedgerServiceReceiptNotFound(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	_, err := svc.Receipt(context.Background(), "REC-2025-999999")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAcademicYearPeriods(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	periods := svc.academicYearPeriods(2025)
	require.Len(t, periods, 13)
	assert.Equal(t, models.Period{Month: 0, Year: 2025}, periods[0])
	assert.Equal(t, models.Period{Month: 4, Year: 2025}, periods[1])
	assert.Equal(t, models.Period{Month: 12, Year: 2025}, periods[9])
	assert.Equal(t, models.Period{Month: 1, Year: 2026}, periods[10])
	assert.Equal(t, models.Period{Month: 3, Year: 2026}, periods[12])
}

func TestAcademicYearOf(t *testing.T) {
	store, catalog, students, resolver := ledgerFixture()
	svc := newTestLedgerService(store, catalog, students, resolver, nil)

	assert.Equal(t, "2025-2026", svc.academicYearOf(models.Period{Month: 4, Year: 2025}))
	assert.Equal(t, "2025-2026", svc.academicYearOf(models.Period{Month: 3, Year: 2026}))
	assert.Equal(t, "2025-2026", svc.academicYearOf(models.Period{Month: 0, Year: 2025}))
	assert.Equal(t, "2026-2027", svc.academicYearOf(models.Period{Month: 4, Year: 2026}))
}
