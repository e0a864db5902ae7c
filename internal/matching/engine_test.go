package matching_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/reconcile/internal/matching"
	"github.com/clearledger/reconcile/internal/statement"
)

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func bankCredit(id string, day int, amount float64, desc string) statement.BankTransaction {
	return statement.BankTransaction{
		ID:          id,
		Date:        date(day),
		Description: desc,
		Credit:      decimal.NewFromFloat(amount),
	}
}

func bankDebit(id string, day int, amount float64, desc string) statement.BankTransaction {
	return statement.BankTransaction{
		ID:          id,
		Date:        date(day),
		Description: desc,
		Debit:       decimal.NewFromFloat(amount),
	}
}

func internalTx(id string, day int, amount float64, desc string) statement.InternalTransaction {
	t := statement.TypeCredit
	if amount < 0 {
		t = statement.TypeDebit
	}

	return statement.InternalTransaction{
		ID:          id,
		Date:        date(day),
		Description: desc,
		Type:        t,
		Amount:      decimal.NewFromFloat(amount),
	}
}

func newEngine(t *testing.T) *matching.Engine {
	t.Helper()
	return matching.NewEngine(matching.DefaultConfig(), nil)
}

func TestEngine_ExactMatch(t *testing.T) {
	bank := []statement.BankTransaction{bankCredit("b1", 5, 1000.00, "DEPOSIT")}
	internal := []statement.InternalTransaction{internalTx("i1", 5, 1000.00, "Customer deposit")}

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, matching.MatchExact, result.Matches[0].Type)
	assert.Equal(t, 100, result.Matches[0].Confidence)
	assert.Equal(t, matching.MatchedBySystem, result.Matches[0].MatchedBy)
	assert.Empty(t, result.UnmatchedBank)
	assert.Empty(t, result.UnmatchedInternal)
}

func TestEngine_ReferenceMismatchBlocksExact(t *testing.T) {
	bank := []statement.BankTransaction{bankCredit("b1", 5, 1000.00, "DEPOSIT")}
	bank[0].Reference = "A1"

	internal := []statement.InternalTransaction{internalTx("i1", 5, 1000.00, "DEPOSIT")}
	internal[0].Reference = "B2"

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	// Amount, date, and description all agree, so the pair still falls
	// through to the fuzzy pass.
	require.Len(t, result.Matches, 1)
	assert.Equal(t, matching.MatchFuzzy, result.Matches[0].Type)
}

func TestEngine_ExactPrefersFirstCandidate(t *testing.T) {
	bank := []statement.BankTransaction{bankCredit("b1", 5, 100.00, "PAYMENT")}
	internal := []statement.InternalTransaction{
		internalTx("i1", 5, 100.00, "first candidate"),
		internalTx("i2", 5, 100.00, "second candidate"),
	}

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "i1", result.Matches[0].Internal.ID)
	require.Len(t, result.UnmatchedInternal, 1)
	assert.Equal(t, "i2", result.UnmatchedInternal[0].ID)
}

func TestEngine_FuzzyMatch(t *testing.T) {
	bank := []statement.BankTransaction{bankDebit("b1", 5, 499.99, "AIRTIME PURCHASE")}
	internal := []statement.InternalTransaction{internalTx("i1", 6, -500.00, "Airtime purchase fee")}

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, matching.MatchFuzzy, m.Type)
	assert.GreaterOrEqual(t, m.Confidence, 75)
	assert.LessOrEqual(t, m.Confidence, 100)
}

func TestEngine_FuzzyBelowThresholdLeftUnmatched(t *testing.T) {
	bank := []statement.BankTransaction{bankDebit("b1", 5, 499.99, "AIRTIME PURCHASE")}
	internal := []statement.InternalTransaction{internalTx("i1", 25, -650.00, "Office rent")}

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	assert.Empty(t, result.Matches)
	assert.Len(t, result.UnmatchedBank, 1)
	assert.Len(t, result.UnmatchedInternal, 1)
}

func TestEngine_RuleBasedMatch(t *testing.T) {
	bank := []statement.BankTransaction{bankDebit("b1", 5, 12.50, "MONTHLY ACCT FEE")}
	internal := []statement.InternalTransaction{internalTx("i1", 28, -12.50, "Bank charges")}

	rule := matching.Rule{
		ID:        uuid.New(),
		AccountID: "acc-1",
		Name:      "Bank fees",
		Conditions: []matching.Condition{
			{Field: matching.FieldAmount, Operator: matching.OpEquals, Tolerance: decimal.NewFromFloat(0.01)},
			{Field: matching.FieldDescription, Operator: matching.OpContains, Value: "fee"},
		},
		Priority: 80,
		Enabled:  true,
	}

	result := newEngine(t).Match(context.Background(), bank, internal, []matching.Rule{rule})

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, matching.MatchRuleBased, m.Type)
	assert.Equal(t, 90, m.Confidence)
	require.NotNil(t, m.RuleID)
	assert.Equal(t, rule.ID, *m.RuleID)
}

func TestEngine_DisabledRuleIgnored(t *testing.T) {
	bank := []statement.BankTransaction{bankDebit("b1", 5, 12.50, "MONTHLY ACCT FEE")}
	internal := []statement.InternalTransaction{internalTx("i1", 28, -12.50, "Bank charges")}

	rule := matching.Rule{
		ID:   uuid.New(),
		Name: "Disabled",
		Conditions: []matching.Condition{
			{Field: matching.FieldAmount, Operator: matching.OpEquals, Tolerance: decimal.NewFromFloat(0.01)},
		},
		Priority: 80,
		Enabled:  false,
	}

	result := newEngine(t).Match(context.Background(), bank, internal, []matching.Rule{rule})

	assert.Empty(t, result.Matches)
}

func TestEngine_HigherPriorityRuleWins(t *testing.T) {
	bank := []statement.BankTransaction{bankDebit("b1", 5, 12.50, "MONTHLY ACCT FEE")}
	internal := []statement.InternalTransaction{internalTx("i1", 20, -12.50, "Bank charges")}

	amountCond := matching.Condition{Field: matching.FieldAmount, Operator: matching.OpEquals, Tolerance: decimal.NewFromFloat(0.01)}

	low := matching.Rule{ID: uuid.New(), Name: "low", Conditions: []matching.Condition{amountCond}, Priority: 10, Enabled: true}
	high := matching.Rule{ID: uuid.New(), Name: "high", Conditions: []matching.Condition{amountCond}, Priority: 90, Enabled: true}

	result := newEngine(t).Match(context.Background(), bank, internal, []matching.Rule{low, high})

	require.Len(t, result.Matches, 1)
	assert.Equal(t, high.ID, *result.Matches[0].RuleID)
}

func TestEngine_BadRuleSkippedNotFatal(t *testing.T) {
	bank := []statement.BankTransaction{bankDebit("b1", 5, 12.50, "MONTHLY ACCT FEE")}
	internal := []statement.InternalTransaction{internalTx("i1", 20, -12.50, "Bank charges")}

	broken := matching.Rule{
		ID:   uuid.New(),
		Name: "broken",
		Conditions: []matching.Condition{
			{Field: matching.FieldAmount, Operator: matching.OpContains},
		},
		Priority: 99,
		Enabled:  true,
	}
	good := matching.Rule{
		ID:   uuid.New(),
		Name: "good",
		Conditions: []matching.Condition{
			{Field: matching.FieldAmount, Operator: matching.OpEquals, Tolerance: decimal.NewFromFloat(0.01)},
		},
		Priority: 10,
		Enabled:  true,
	}

	result := newEngine(t).Match(context.Background(), bank, internal, []matching.Rule{broken, good})

	require.Len(t, result.Matches, 1)
	assert.Equal(t, good.ID, *result.Matches[0].RuleID)
}

func TestEngine_EarlierPassConsumesTransactions(t *testing.T) {
	// b1/i1 qualify for the exact pass; b2/i2 only fuzzily. The exact pair
	// must not be stolen by a fuzzy guess against i2.
	bank := []statement.BankTransaction{
		bankCredit("b1", 5, 300.00, "TRANSFER IN"),
		bankDebit("b2", 5, 499.99, "AIRTIME PURCHASE"),
	}
	internal := []statement.InternalTransaction{
		internalTx("i1", 5, 300.00, "Transfer in"),
		internalTx("i2", 6, -500.00, "Airtime purchase fee"),
	}

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	require.Len(t, result.Matches, 2)

	byBank := map[string]matching.Match{}
	for _, m := range result.Matches {
		byBank[m.Bank.ID] = m
	}

	assert.Equal(t, matching.MatchExact, byBank["b1"].Type)
	assert.Equal(t, "i1", byBank["b1"].Internal.ID)
	assert.Equal(t, matching.MatchFuzzy, byBank["b2"].Type)
	assert.Equal(t, "i2", byBank["b2"].Internal.ID)
}

func TestEngine_NoDoubleClaims(t *testing.T) {
	// Several bank transactions compete for fewer similar internal ones.
	bank := []statement.BankTransaction{
		bankDebit("b1", 5, 500.00, "SUPPLIER PAYMENT"),
		bankDebit("b2", 5, 500.00, "SUPPLIER PAYMENT"),
		bankDebit("b3", 5, 500.00, "SUPPLIER PAYMENT"),
	}
	internal := []statement.InternalTransaction{
		internalTx("i1", 5, -500.00, "Supplier payment"),
		internalTx("i2", 6, -500.00, "Supplier payment"),
	}

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	seenBank := map[string]bool{}
	seenInternal := map[string]bool{}

	for _, m := range result.Matches {
		assert.False(t, seenBank[m.Bank.ID], "bank tx matched twice")
		assert.False(t, seenInternal[m.Internal.ID], "internal tx matched twice")
		seenBank[m.Bank.ID] = true
		seenInternal[m.Internal.ID] = true
	}

	// Pool completeness: matched sides plus residuals equal the inputs.
	assert.Equal(t, len(bank), len(result.Matches)+len(result.UnmatchedBank))
	assert.Equal(t, len(internal), len(result.Matches)+len(result.UnmatchedInternal))
}

func TestEngine_ConfidenceBounds(t *testing.T) {
	bank := []statement.BankTransaction{
		bankCredit("b1", 5, 1000.00, "SALARY JANUARY"),
		bankDebit("b2", 6, 499.99, "AIRTIME PURCHASE"),
		bankDebit("b3", 7, 75.20, "CARD 4421 GROCERIES"),
	}
	internal := []statement.InternalTransaction{
		internalTx("i1", 5, 1000.00, "Salary January"),
		internalTx("i2", 6, -500.00, "Airtime purchase fee"),
		internalTx("i3", 7, -75.20, "Groceries"),
	}

	result := newEngine(t).Match(context.Background(), bank, internal, nil)

	for _, m := range result.Matches {
		assert.GreaterOrEqual(t, m.Confidence, 0)
		assert.LessOrEqual(t, m.Confidence, 100)
	}
}

func TestEngine_EmptyPools(t *testing.T) {
	result := newEngine(t).Match(context.Background(), nil, nil, nil)

	assert.Empty(t, result.Matches)
	assert.Empty(t, result.UnmatchedBank)
	assert.Empty(t, result.UnmatchedInternal)
}

func TestEngine_CancelledContextStopsBetweenPasses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bank := []statement.BankTransaction{bankCredit("b1", 5, 1000.00, "DEPOSIT")}
	internal := []statement.InternalTransaction{internalTx("i1", 5, 1000.00, "Deposit")}

	result := newEngine(t).Match(ctx, bank, internal, nil)

	// Nothing ran; the inputs come back untouched as residuals.
	assert.Empty(t, result.Matches)
	assert.Len(t, result.UnmatchedBank, 1)
	assert.Len(t, result.UnmatchedInternal, 1)
}
