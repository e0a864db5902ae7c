package matching_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/clearledger/reconcile/internal/matching"
)

func newService(t *testing.T) (*matching.Service, *matching.MockRuleRepository) {
	t.Helper()

	ctrl := gomock.NewController(t)
	repo := matching.NewMockRuleRepository(ctrl)
	engine := matching.NewEngine(matching.DefaultConfig(), nil)

	return matching.NewService(engine, repo), repo
}

func TestService_Rules(t *testing.T) {
	svc, repo := newService(t)

	want := []matching.Rule{{ID: uuid.New(), Name: "Bank fees"}}

	repo.EXPECT().
		ListRules(gomock.Any(), "acc-1").
		Return(want, nil)

	got, err := svc.Rules(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestService_Rules_RepoError(t *testing.T) {
	svc, repo := newService(t)

	repo.EXPECT().
		ListRules(gomock.Any(), "acc-1").
		Return(nil, errors.New("db error"))

	_, err := svc.Rules(context.Background(), "acc-1")
	assert.Error(t, err)
}

func TestService_AddRule(t *testing.T) {
	svc, repo := newService(t)

	rule := &matching.Rule{
		ID:   uuid.New(),
		Name: "Bank fees",
		Conditions: []matching.Condition{
			{Field: matching.FieldAmount, Operator: matching.OpEquals, Tolerance: decimal.NewFromFloat(0.01)},
		},
		Enabled: true,
	}

	repo.EXPECT().CreateRule(gomock.Any(), rule).Return(nil)

	assert.NoError(t, svc.AddRule(context.Background(), rule))
}

func TestService_AddRule_RejectsUnsupportedCondition(t *testing.T) {
	svc, _ := newService(t)

	rule := &matching.Rule{
		ID:   uuid.New(),
		Name: "broken",
		Conditions: []matching.Condition{
			{Field: matching.FieldDate, Operator: matching.OpContains},
		},
	}

	err := svc.AddRule(context.Background(), rule)

	var ruleErr *matching.RuleEvaluationError
	assert.ErrorAs(t, err, &ruleErr)
}

func TestService_RecordManualMatch_PersistsPromotedRule(t *testing.T) {
	svc, repo := newService(t)

	bank := bankDebit("b1", 5, 12.50, "MONTHLY ACCT FEE")
	internal := internalTx("i1", 5, -12.50, "Bank charges monthly")

	// The third observation of the same pattern promotes a rule.
	repo.EXPECT().
		CreateRule(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rule *matching.Rule) error {
			assert.Equal(t, matching.ProvenanceSystem, rule.Provenance)
			assert.Equal(t, 50, rule.Priority)
			return nil
		})

	ctx := context.Background()
	require.NoError(t, svc.RecordManualMatch(ctx, "acc-1", bank, internal))
	require.NoError(t, svc.RecordManualMatch(ctx, "acc-1", bank, internal))
	require.NoError(t, svc.RecordManualMatch(ctx, "acc-1", bank, internal))
}

func TestService_RecordManualMatch_PersistError(t *testing.T) {
	svc, repo := newService(t)

	bank := bankDebit("b1", 5, 12.50, "MONTHLY ACCT FEE")
	internal := internalTx("i1", 5, -12.50, "Bank charges monthly")

	repo.EXPECT().
		CreateRule(gomock.Any(), gomock.Any()).
		Return(errors.New("db error"))

	ctx := context.Background()
	require.NoError(t, svc.RecordManualMatch(ctx, "acc-1", bank, internal))
	require.NoError(t, svc.RecordManualMatch(ctx, "acc-1", bank, internal))
	assert.Error(t, svc.RecordManualMatch(ctx, "acc-1", bank, internal))
}
