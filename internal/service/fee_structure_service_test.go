package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

type structureKey struct {
	feeHeadID    string
	classID      string
	wardID       string
	academicYear string
}

type mockStructureRepo struct {
	entries map[structureKey]*models.FeeStructureEntry
}

func (m *mockStructureRepo) ListStructureEntries(ctx context.Context, academicYear string, activeOnly bool) ([]models.FeeStructureEntry, error) {
	var entries []models.FeeStructureEntry
	for _, entry := range m.entries {
		if entry.AcademicYear == academicYear {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (m *mockStructureRepo) FindActiveEntry(ctx context.Context, feeHeadID, classID, wardID, academicYear string) (*models.FeeStructureEntry, error) {
	key := structureKey{feeHeadID, classID, wardID, academicYear}
	if entry, ok := m.entries[key]; ok {
		return entry, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStructureRepo) UpsertStructureEntry(ctx context.Context, entry *models.FeeStructureEntry) error {
	if m.entries == nil {
		m.entries = make(map[structureKey]*models.FeeStructureEntry)
	}
	entry.ID = "entry1"
	entry.Active = true
	m.entries[structureKey{entry.FeeHeadID, entry.ClassID, entry.WardID, entry.AcademicYear}] = entry
	return nil
}

func TestFeeStructureResolveAmountDefault(t *testing.T) {
	svc := NewFeeStructureService(&mockStructureRepo{}, validator.New(), zap.NewNop())

	head := &models.FeeHead{ID: "library", Name: "Library Fee", ClassBased: false, DefaultAmount: 20000}
	amount, err := svc.ResolveAmount(context.Background(), head, "class5", "ward2", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), amount)
}

func TestFeeStructureResolveAmountClassBased(t *testing.T) {
	repo := &mockStructureRepo{entries: map[structureKey]*models.FeeStructureEntry{
		{"tuition", "class5", "ward2", "2025-2026"}: {FeeHeadID: "tuition", ClassID: "class5", WardID: "ward2", AcademicYear: "2025-2026", Amount: 150000, Active: true},
	}}
	svc := NewFeeStructureService(repo, validator.New(), zap.NewNop())

	head := &models.FeeHead{ID: "tuition", Name: "Tuition Fee", ClassBased: true, DefaultAmount: 999}
	amount, err := svc.ResolveAmount(context.Background(), head, "class5", "ward2", "2025-2026")
	require.NoError(t, err)

	// The configured entry wins; the catalog default is never consulted.
	assert.Equal(t, int64(150000), amount)
}

func TestFeeStructureResolveAmountConfigurationMissing(t *testing.T) {
	svc := NewFeeStructureService(&mockStructureRepo{}, validator.New(), zap.NewNop())

	head := &models.FeeHead{ID: "tuition", Name: "Tuition Fee", ClassBased: true, DefaultAmount: 999}
	_, err := svc.ResolveAmount(context.Background(), head, "class5", "ward2", "2025-2026")
	require.ErrorIs(t, err, appErrors.ErrConfigurationMissing)
}

func TestFeeStructureUpsert(t *testing.T) {
	repo := &mockStructureRepo{}
	svc := NewFeeStructureService(repo, validator.New(), zap.NewNop())

	entry, err := svc.Upsert(context.Background(), UpsertStructureRequest{
		FeeHeadID:    "tuition",
		ClassID:      "class5",
		WardID:       "ward2",
		AcademicYear: "2025-2026",
		Amount:       150000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), entry.Amount)

	stored, err := repo.FindActiveEntry(context.Background(), "tuition", "class5", "ward2", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), stored.Amount)
}

func TestFeeStructureUpsertValidation(t *testing.T) {
	svc := NewFeeStructureService(&mockStructureRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Upsert(context.Background(), UpsertStructureRequest{FeeHeadID: "tuition"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Upsert(context.Background(), UpsertStructureRequest{
		FeeHeadID: "tuition", ClassID: "class5", WardID: "ward2", AcademicYear: "2025-2026", Amount: -1,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFeeStructureListRequiresYear(t *testing.T) {
	svc := NewFeeStructureService(&mockStructureRepo{}, validator.New(), zap.NewNop())

	_, err := svc.List(context.Background(), "", true)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
