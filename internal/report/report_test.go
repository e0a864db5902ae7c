package report_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/reconcile/internal/report"
	"github.com/clearledger/reconcile/internal/session"
	"github.com/clearledger/reconcile/internal/statement"
)

func buildSession(t *testing.T) *session.Session {
	t.Helper()

	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	sess, err := session.New(session.CreateParams{
		AccountID:      "acc-1",
		PeriodStart:    day(1),
		PeriodEnd:      day(31),
		ClosingBalance: decimal.NewFromInt(250),
		BankTransactions: []statement.BankTransaction{
			{ID: "b1", Date: day(5), Description: "DEPOSIT", Credit: decimal.NewFromInt(200)},
			{ID: "b2", Date: day(9), Description: "FEE", Debit: decimal.NewFromInt(15)},
		},
		InternalTransactions: []statement.InternalTransaction{
			{ID: "i1", Date: day(5), Description: "Deposit", Type: statement.TypeCredit, Amount: decimal.NewFromInt(200)},
		},
	})
	require.NoError(t, err)

	_, err = sess.ManualMatch("b1", "i1")
	require.NoError(t, err)

	require.NoError(t, sess.AddAdjustment(session.Adjustment{
		Description: "Unposted bank fee",
		Amount:      decimal.NewFromInt(15),
		Type:        session.AdjustmentBankFee,
	}))

	return sess
}

func TestGenerate(t *testing.T) {
	sess := buildSession(t)

	r := report.Generate(sess)

	assert.Equal(t, sess.ID, r.SessionID)
	assert.Equal(t, 2, r.TotalBankTransactions)
	assert.Equal(t, 1, r.TotalInternalTransactions)
	assert.Equal(t, 1, r.MatchedCount)
	assert.Equal(t, 1, r.UnmatchedBankCount)
	assert.Equal(t, 0, r.UnmatchedInternalCount)
	assert.InDelta(t, 0.5, r.MatchRate, 1e-9)
	assert.Equal(t, 1, r.AdjustmentCount)
	assert.True(t, r.AdjustmentTotal.Equal(decimal.NewFromInt(15)))

	// difference = 250 − 200 − 15
	assert.True(t, r.Difference.Equal(decimal.NewFromInt(35)), "got %s", r.Difference)
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestGenerate_DeterministicExceptTimestamp(t *testing.T) {
	sess := buildSession(t)

	r1 := report.Generate(sess)
	r2 := report.Generate(sess)

	r1.GeneratedAt = time.Time{}
	r2.GeneratedAt = time.Time{}

	assert.Equal(t, r1, r2)
}

func TestGenerate_ZeroBankTransactions(t *testing.T) {
	sess, err := session.New(session.CreateParams{AccountID: "acc-1"})
	require.NoError(t, err)

	r := report.Generate(sess)

	assert.Equal(t, 0.0, r.MatchRate)
	assert.Equal(t, 0, r.TotalBankTransactions)
}

func TestGenerate_DoesNotMutateSession(t *testing.T) {
	sess := buildSession(t)

	matchesBefore := len(sess.Matches)
	diffBefore := sess.Difference

	_ = report.Generate(sess)

	assert.Equal(t, matchesBefore, len(sess.Matches))
	assert.True(t, diffBefore.Equal(sess.Difference))
}
