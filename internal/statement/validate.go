package statement

import (
	"fmt"
	"strings"
)

// FieldError describes one invalid record found during ingestion.
type FieldError struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("record %q (row %d): %s: %s", e.ID, e.Index, e.Field, e.Reason)
}

// ValidationErrors collects every invalid record in a batch so callers can
// surface all bad rows at once instead of failing on the first.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}

	return fmt.Sprintf("%d invalid records: %s", len(e), strings.Join(msgs, "; "))
}

// ValidateBank checks required fields on a batch of bank transactions and
// returns every violation found. A nil result means the batch is clean.
func ValidateBank(txs []BankTransaction) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool, len(txs))

	for i, tx := range txs {
		if tx.ID == "" {
			errs = append(errs, FieldError{Index: i, Field: "id", Reason: "missing identifier"})
		} else if seen[tx.ID] {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "id", Reason: "duplicate identifier"})
		}

		seen[tx.ID] = true

		if tx.Date.IsZero() {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "date", Reason: "missing date"})
		}

		if strings.TrimSpace(tx.Description) == "" {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "description", Reason: "missing description"})
		}

		if tx.Debit.IsZero() && tx.Credit.IsZero() {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "amount", Reason: "neither debit nor credit set"})
		}

		if !tx.Debit.IsZero() && !tx.Credit.IsZero() {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "amount", Reason: "both debit and credit set"})
		}
	}

	return errs
}

// ValidateInternal checks required fields on a batch of internal
// transactions and returns every violation found.
func ValidateInternal(txs []InternalTransaction) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool, len(txs))

	for i, tx := range txs {
		if tx.ID == "" {
			errs = append(errs, FieldError{Index: i, Field: "id", Reason: "missing identifier"})
		} else if seen[tx.ID] {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "id", Reason: "duplicate identifier"})
		}

		seen[tx.ID] = true

		if tx.Date.IsZero() {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "date", Reason: "missing date"})
		}

		if strings.TrimSpace(tx.Description) == "" {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "description", Reason: "missing description"})
		}

		if tx.Amount.IsZero() {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "amount", Reason: "zero amount"})
		}

		if tx.Type != TypeCredit && tx.Type != TypeDebit {
			errs = append(errs, FieldError{ID: tx.ID, Index: i, Field: "type", Reason: fmt.Sprintf("unknown type %q", tx.Type)})
		}
	}

	return errs
}
