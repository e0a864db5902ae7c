// Package session implements the reconciliation workspace: a stateful
// aggregate holding matched and unmatched transaction pools, adjustments,
// balances, and a one-directional status machine. All mutation goes through
// named operations that keep the pools and the difference consistent.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile/internal/matching"
	"github.com/clearledger/reconcile/internal/statement"
)

// Status is the lifecycle state of a session. Transitions are
// one-directional: in-progress → completed → approved, or
// in-progress → rejected.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// AdjustmentType classifies why a residual difference exists.
type AdjustmentType string

const (
	AdjustmentBankFee          AdjustmentType = "bank-fee"
	AdjustmentTimingDifference AdjustmentType = "timing-difference"
	AdjustmentErrorCorrection  AdjustmentType = "error-correction"
	AdjustmentOther            AdjustmentType = "other"
)

// Adjustment is a manually recorded amount explaining part of the difference
// the matcher cannot attribute to any transaction pair.
type Adjustment struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        AdjustmentType  `json:"type"`
	Approved    bool            `json:"approved"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Session is the aggregate root for one reconciliation effort over one
// statement period. Every bank and internal transaction sits either in its
// unmatched pool or on exactly one match, never both.
type Session struct {
	ID          uuid.UUID `json:"id"`
	AccountID   string    `json:"account_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	BookBalance    decimal.Decimal `json:"book_balance"`

	Status Status `json:"status"`

	BankTransactions     []statement.BankTransaction     `json:"bank_transactions"`
	InternalTransactions []statement.InternalTransaction `json:"internal_transactions"`

	Matches           []matching.Match                `json:"matches"`
	UnmatchedBank     []statement.BankTransaction     `json:"unmatched_bank"`
	UnmatchedInternal []statement.InternalTransaction `json:"unmatched_internal"`

	Adjustments []Adjustment    `json:"adjustments"`
	Difference  decimal.Decimal `json:"difference"`

	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// CreateParams carries everything needed to open a session. Empty
// transaction lists are legal and mean there is nothing to reconcile.
type CreateParams struct {
	AccountID            string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	OpeningBalance       decimal.Decimal
	ClosingBalance       decimal.Decimal
	BankTransactions     []statement.BankTransaction
	InternalTransactions []statement.InternalTransaction
}

// New validates the supplied transaction lists and opens an in-progress
// session with everything unmatched. Validation failures are collected and
// returned together as statement.ValidationErrors.
func New(params CreateParams) (*Session, error) {
	var errs statement.ValidationErrors

	errs = append(errs, statement.ValidateBank(params.BankTransactions)...)
	errs = append(errs, statement.ValidateInternal(params.InternalTransactions)...)

	if len(errs) > 0 {
		return nil, errs
	}

	bookBalance := decimal.Zero
	for _, tx := range params.InternalTransactions {
		bookBalance = bookBalance.Add(tx.SignedAmount())
	}

	now := time.Now().UTC()

	s := &Session{
		ID:                   uuid.New(),
		AccountID:            params.AccountID,
		PeriodStart:          params.PeriodStart,
		PeriodEnd:            params.PeriodEnd,
		OpeningBalance:       params.OpeningBalance,
		ClosingBalance:       params.ClosingBalance,
		BookBalance:          bookBalance,
		Status:               StatusInProgress,
		BankTransactions:     params.BankTransactions,
		InternalTransactions: params.InternalTransactions,
		UnmatchedBank:        append([]statement.BankTransaction(nil), params.BankTransactions...),
		UnmatchedInternal:    append([]statement.InternalTransaction(nil), params.InternalTransactions...),
		CreatedAt:            now,
		UpdatedAt:            now,
		Version:              1,
	}
	s.recomputeDifference()

	return s, nil
}

// ensureOpen rejects mutation on any session that has left in-progress.
// Approved sessions are immutable by contract; completed and rejected ones
// refuse with a state conflict.
func (s *Session) ensureOpen() error {
	switch s.Status {
	case StatusInProgress:
		return nil
	case StatusApproved:
		return &ImmutableStateError{Status: s.Status}
	default:
		return &ConflictError{Message: fmt.Sprintf("session is %s; matching and adjustments are closed", s.Status)}
	}
}

// ApplyMatchResult absorbs a batch engine run: appends its matches and
// replaces the unmatched pools with the engine's residuals.
func (s *Session) ApplyMatchResult(result matching.Result) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	s.Matches = append(s.Matches, result.Matches...)
	s.UnmatchedBank = result.UnmatchedBank
	s.UnmatchedInternal = result.UnmatchedInternal
	s.touch()

	return nil
}

// ManualMatch pairs one bank and one internal transaction at confidence 100.
// Both sides must currently sit in their unmatched pools.
func (s *Session) ManualMatch(bankTxID, internalTxID string) (*matching.Match, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	bankIdx := -1

	for i, tx := range s.UnmatchedBank {
		if tx.ID == bankTxID {
			bankIdx = i
			break
		}
	}

	if bankIdx < 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("bank transaction %q is not unmatched", bankTxID)}
	}

	internalIdx := -1

	for i, tx := range s.UnmatchedInternal {
		if tx.ID == internalTxID {
			internalIdx = i
			break
		}
	}

	if internalIdx < 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("internal transaction %q is not unmatched", internalTxID)}
	}

	match := matching.Match{
		ID:         uuid.New(),
		Bank:       s.UnmatchedBank[bankIdx],
		Internal:   s.UnmatchedInternal[internalIdx],
		Type:       matching.MatchManual,
		Confidence: 100,
		MatchedBy:  matching.MatchedByUser,
		MatchedAt:  time.Now().UTC(),
	}

	s.Matches = append(s.Matches, match)
	s.UnmatchedBank = append(s.UnmatchedBank[:bankIdx], s.UnmatchedBank[bankIdx+1:]...)
	s.UnmatchedInternal = append(s.UnmatchedInternal[:internalIdx], s.UnmatchedInternal[internalIdx+1:]...)
	s.touch()

	return &match, nil
}

// Unmatch removes a match and returns both sides to their unmatched pools.
func (s *Session) Unmatch(matchID uuid.UUID) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	for i, m := range s.Matches {
		if m.ID != matchID {
			continue
		}

		s.Matches = append(s.Matches[:i], s.Matches[i+1:]...)
		s.UnmatchedBank = append(s.UnmatchedBank, m.Bank)
		s.UnmatchedInternal = append(s.UnmatchedInternal, m.Internal)
		s.touch()

		return nil
	}

	return &NotFoundError{Resource: "match", ID: matchID.String()}
}

// AddAdjustment records an adjustment and recomputes the difference.
func (s *Session) AddAdjustment(adj Adjustment) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if adj.ID == uuid.Nil {
		adj.ID = uuid.New()
	}

	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}

	s.Adjustments = append(s.Adjustments, adj)
	s.recomputeDifference()
	s.touch()

	return nil
}

// RemoveAdjustment deletes an adjustment and recomputes the difference.
func (s *Session) RemoveAdjustment(id uuid.UUID) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	for i, adj := range s.Adjustments {
		if adj.ID != id {
			continue
		}

		s.Adjustments = append(s.Adjustments[:i], s.Adjustments[i+1:]...)
		s.recomputeDifference()
		s.touch()

		return nil
	}

	return &NotFoundError{Resource: "adjustment", ID: id.String()}
}

// Complete moves an in-progress session to completed. Remaining unmatched
// items are permitted; partial reconciliation is a normal outcome.
func (s *Session) Complete() error {
	switch s.Status {
	case StatusInProgress:
		s.Status = StatusCompleted
		s.touch()

		return nil
	case StatusApproved:
		return &ImmutableStateError{Status: s.Status}
	default:
		return &ConflictError{Message: fmt.Sprintf("cannot complete a %s session", s.Status)}
	}
}

// Approve finalizes a completed session. Approval identity is accepted as
// given; enforcing who may approve is the caller's concern. After approval
// every mutating operation fails with ImmutableStateError.
func (s *Session) Approve(approverID string) error {
	switch s.Status {
	case StatusCompleted:
		now := time.Now().UTC()
		s.Status = StatusApproved
		s.ApprovedBy = approverID
		s.ApprovedAt = &now
		s.touch()

		return nil
	case StatusApproved:
		return &ImmutableStateError{Status: s.Status}
	default:
		return &ConflictError{Message: fmt.Sprintf("cannot approve a %s session", s.Status)}
	}
}

// Reject abandons an in-progress session.
func (s *Session) Reject() error {
	switch s.Status {
	case StatusInProgress:
		s.Status = StatusRejected
		s.touch()

		return nil
	case StatusApproved:
		return &ImmutableStateError{Status: s.Status}
	default:
		return &ConflictError{Message: fmt.Sprintf("cannot reject a %s session", s.Status)}
	}
}

// recomputeDifference applies closing − book − Σ(adjustments). The result is
// independent of match counts: a fully matched set can still carry a balance
// gap from unposted items.
func (s *Session) recomputeDifference() {
	adjustmentTotal := decimal.Zero
	for _, adj := range s.Adjustments {
		adjustmentTotal = adjustmentTotal.Add(adj.Amount)
	}

	s.Difference = s.ClosingBalance.Sub(s.BookBalance).Sub(adjustmentTotal)
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
