package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/reconcile/internal/statement"
)

func TestSuggestions_ExactLeadsTheList(t *testing.T) {
	bank := bankCredit("b1", 5, 1000.00, "SALARY JANUARY")
	pool := []statement.InternalTransaction{
		internalTx("i1", 20, 950.00, "Salary advance"),
		internalTx("i2", 5, 1000.00, "Salary January"),
	}

	suggestions := newEngine(t).Suggestions(bank, pool, 5)

	require.NotEmpty(t, suggestions)
	assert.Equal(t, "i2", suggestions[0].Internal.ID)
	assert.Equal(t, 100, suggestions[0].Confidence)
}

func TestSuggestions_ReasonsReflectFactors(t *testing.T) {
	bank := bankDebit("b1", 5, 499.99, "AIRTIME PURCHASE")
	pool := []statement.InternalTransaction{
		internalTx("i1", 6, -500.00, "Airtime purchase fee"),
	}

	suggestions := newEngine(t).Suggestions(bank, pool, 5)

	require.Len(t, suggestions, 1)
	s := suggestions[0]
	assert.Contains(t, s.Reasons, "Amount matches")
	assert.Contains(t, s.Reasons, "Date is close")
	assert.Contains(t, s.Reasons, "Description is similar")
	assert.GreaterOrEqual(t, s.Confidence, 60)
	assert.LessOrEqual(t, s.Confidence, 100)
}

func TestSuggestions_RankedAndLimited(t *testing.T) {
	bank := bankDebit("b1", 5, 250.00, "SUPPLIER ACME LTD")
	pool := []statement.InternalTransaction{
		internalTx("i1", 10, -250.00, "Supplier Acme Ltd"),
		internalTx("i2", 5, -250.00, "Supplier Acme Ltd"),
		internalTx("i3", 6, -250.00, "Supplier Acme Ltd"),
	}

	suggestions := newEngine(t).Suggestions(bank, pool, 2)

	require.Len(t, suggestions, 2)

	for i := 1; i < len(suggestions); i++ {
		assert.GreaterOrEqual(t, suggestions[i-1].Confidence, suggestions[i].Confidence)
	}
}

func TestSuggestions_NoCandidates(t *testing.T) {
	bank := bankDebit("b1", 5, 499.99, "AIRTIME PURCHASE")
	pool := []statement.InternalTransaction{
		internalTx("i1", 28, -9000.00, "Quarterly rent"),
	}

	assert.Empty(t, newEngine(t).Suggestions(bank, pool, 5))
	assert.Empty(t, newEngine(t).Suggestions(bank, nil, 5))
	assert.Empty(t, newEngine(t).Suggestions(bank, pool, 0))
}
