// Package report derives read-only summaries from session snapshots. A
// report is never stored as authoritative state; it is always regenerable.
package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile/internal/session"
)

// Report is a point-in-time projection of a reconciliation session. Two
// reports generated from the same session content are identical except for
// GeneratedAt.
type Report struct {
	SessionID   uuid.UUID      `json:"session_id"`
	AccountID   string         `json:"account_id"`
	Status      session.Status `json:"status"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`

	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	BookBalance    decimal.Decimal `json:"book_balance"`
	Difference     decimal.Decimal `json:"difference"`

	TotalBankTransactions     int     `json:"total_bank_transactions"`
	TotalInternalTransactions int     `json:"total_internal_transactions"`
	MatchedCount              int     `json:"matched_count"`
	UnmatchedBankCount        int     `json:"unmatched_bank_count"`
	UnmatchedInternalCount    int     `json:"unmatched_internal_count"`
	MatchRate                 float64 `json:"match_rate"`

	AdjustmentCount int             `json:"adjustment_count"`
	AdjustmentTotal decimal.Decimal `json:"adjustment_total"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Generate projects the session into a report without mutating it.
func Generate(sess *session.Session) Report {
	adjustmentTotal := decimal.Zero
	for _, adj := range sess.Adjustments {
		adjustmentTotal = adjustmentTotal.Add(adj.Amount)
	}

	matchRate := 0.0
	if len(sess.BankTransactions) > 0 {
		matchRate = float64(len(sess.Matches)) / float64(len(sess.BankTransactions))
	}

	return Report{
		SessionID:   sess.ID,
		AccountID:   sess.AccountID,
		Status:      sess.Status,
		PeriodStart: sess.PeriodStart,
		PeriodEnd:   sess.PeriodEnd,

		OpeningBalance: sess.OpeningBalance,
		ClosingBalance: sess.ClosingBalance,
		BookBalance:    sess.BookBalance,
		Difference:     sess.Difference,

		TotalBankTransactions:     len(sess.BankTransactions),
		TotalInternalTransactions: len(sess.InternalTransactions),
		MatchedCount:              len(sess.Matches),
		UnmatchedBankCount:        len(sess.UnmatchedBank),
		UnmatchedInternalCount:    len(sess.UnmatchedInternal),
		MatchRate:                 matchRate,

		AdjustmentCount: len(sess.Adjustments),
		AdjustmentTotal: adjustmentTotal,

		GeneratedAt: time.Now().UTC(),
	}
}
