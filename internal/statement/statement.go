// Package statement holds the normalized transaction records the
// reconciliation core consumes. Parsing of raw statement formats happens
// upstream; by the time records reach this package they carry UTC dates and
// decimal amounts.
package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies an internal ledger transaction.
type Type string

const (
	TypeCredit Type = "credit"
	TypeDebit  Type = "debit"
)

// BankTransaction is a line item from the externally issued statement.
// Exactly one of Debit/Credit is expected to be non-zero.
type BankTransaction struct {
	ID          string           `json:"id"`
	Date        time.Time        `json:"date"`
	Description string           `json:"description"`
	Reference   string           `json:"reference,omitempty"`
	Debit       decimal.Decimal  `json:"debit"`
	Credit      decimal.Decimal  `json:"credit"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
}

// Amount returns the signed movement of the transaction: positive for
// credits, negative for debits.
func (t BankTransaction) Amount() decimal.Decimal {
	if !t.Credit.IsZero() {
		return t.Credit
	}

	return t.Debit.Neg()
}

// InternalTransaction is a line item from the organization's own ledger.
type InternalTransaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Type        Type            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference,omitempty"`
}

// SignedAmount normalizes the amount against the transaction type: debits
// are negative regardless of the sign the ledger recorded.
func (t InternalTransaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeDebit {
		return t.Amount.Abs().Neg()
	}

	return t.Amount.Abs()
}
