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

type mockCatalogRepo struct {
	heads       map[string]*models.FeeHead
	rules       []models.LateFineRule
	deactivated []string
}

func (m *mockCatalogRepo) ListFeeHeads(ctx context.Context, activeOnly bool) ([]models.FeeHead, error) {
	var heads []models.FeeHead
	for _, head := range m.heads {
		if !activeOnly || head.Active {
			heads = append(heads, *head)
		}
	}
	return heads, nil
}

func (m *mockCatalogRepo) FindFeeHead(ctx context.Context, id string) (*models.FeeHead, error) {
	if head, ok := m.heads[id]; ok {
		return head, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalogRepo) CreateFeeHead(ctx context.Context, head *models.FeeHead) error {
	if m.heads == nil {
		m.heads = make(map[string]*models.FeeHead)
	}
	head.ID = "head1"
	m.heads[head.ID] = head
	return nil
}

func (m *mockCatalogRepo) UpdateFeeHead(ctx context.Context, head *models.FeeHead) error {
	m.heads[head.ID] = head
	return nil
}

func (m *mockCatalogRepo) CountPaymentItems(ctx context.Context, feeHeadID string) (int, error) {
	return 0, nil
}

func (m *mockCatalogRepo) ListRules(ctx context.Context) ([]models.LateFineRule, error) {
	return m.rules, nil
}

func (m *mockCatalogRepo) CreateRule(ctx context.Context, rule *models.LateFineRule) error {
	rule.ID = "rule1"
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *mockCatalogRepo) DeactivateRule(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newTestCatalogService(repo *mockCatalogRepo) *FeeCatalogService {
	return NewFeeCatalogService(repo, repo, validator.New(), zap.NewNop())
}

func TestCreateFeeHead(t *testing.T) {
	repo := &mockCatalogRepo{}
	svc := newTestCatalogService(repo)

	head, err := svc.CreateFeeHead(context.Background(), CreateFeeHeadRequest{
		Name:       "Tuition Fee",
		Frequency:  models.FrequencyMonthly,
		ClassBased: true,
	})
	require.NoError(t, err)
	assert.True(t, head.Active)
	assert.Equal(t, models.FrequencyMonthly, head.Frequency)
}

func TestCreateFeeHeadInvalidFrequency(t *testing.T) {
	svc := newTestCatalogService(&mockCatalogRepo{})

	_, err := svc.CreateFeeHead(context.Background(), CreateFeeHeadRequest{Name: "Tuition Fee", Frequency: "weekly"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUpdateFeeHeadKeepsFrequency(t *testing.T) {
	repo := &mockCatalogRepo{heads: map[string]*models.FeeHead{
		"head1": {ID: "head1", Name: "Tuition Fee", Frequency: models.FrequencyMonthly, ClassBased: true, Active: true},
	}}
	svc := newTestCatalogService(repo)

	head, err := svc.UpdateFeeHead(context.Background(), "head1", UpdateFeeHeadRequest{Name: "Tuition", DefaultAmount: 1000})
	require.NoError(t, err)
	assert.Equal(t, "Tuition", head.Name)
	assert.Equal(t, models.FrequencyMonthly, head.Frequency)
	assert.True(t, head.ClassBased)
}

func TestDeactivateFeeHead(t *testing.T) {
	repo := &mockCatalogRepo{heads: map[string]*models.FeeHead{
		"head1": {ID: "head1", Name: "Tuition Fee", Frequency: models.FrequencyMonthly, Active: true},
	}}
	svc := newTestCatalogService(repo)

	head, err := svc.DeactivateFeeHead(context.Background(), "head1")
	require.NoError(t, err)
	assert.False(t, head.Active)

	_, err = svc.DeactivateFeeHead(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCreateFineRule(t *testing.T) {
	repo := &mockCatalogRepo{}
	svc := newTestCatalogService(repo)

	rule, err := svc.CreateFineRule(context.Background(), CreateFineRuleRequest{
		Name:         "Standard",
		AcademicYear: "2025-2026",
		Active:       true,
		Tiers: []FineTierInput{
			{StartDay: 10, Amount: 50, Type: models.TierFixed},
			{StartDay: 20, Amount: 5, Type: models.TierPerDay, MaxAmount: int64Ptr(200)},
		},
	})
	require.NoError(t, err)
	require.Len(t, rule.Tiers, 2)
	assert.Len(t, repo.rules, 1)
}

func TestCreateFineRuleRejectsMalformedTier(t *testing.T) {
	svc := newTestCatalogService(&mockCatalogRepo{})

	_, err := svc.CreateFineRule(context.Background(), CreateFineRuleRequest{
		Name:         "Broken",
		AcademicYear: "2025-2026",
		Tiers:        []FineTierInput{{StartDay: 5, Amount: 10, Type: models.TierPerDay, MaxAmount: int64Ptr(-1)}},
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidRule)
}

func TestCreateFineRuleRequiresTiers(t *testing.T) {
	svc := newTestCatalogService(&mockCatalogRepo{})

	_, err := svc.CreateFineRule(context.Background(), CreateFineRuleRequest{Name: "Empty", AcademicYear: "2025-2026"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDeactivateFineRule(t *testing.T) {
	repo := &mockCatalogRepo{}
	svc := newTestCatalogService(repo)

	require.NoError(t, svc.DeactivateFineRule(context.Background(), "rule1"))
	assert.Equal(t, []string{"rule1"}, repo.deactivated)
}
