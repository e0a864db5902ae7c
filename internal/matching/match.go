// Package matching implements the reconciliation matching engine: a
// deterministic exact pass, a rule-based pass driven by configurable
// conditions, and a weighted fuzzy pass, plus non-committing suggestions and
// pattern learning that promotes recurring manual matches into rules.
package matching

import (
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile/internal/statement"
)

// MatchType records which pass produced a match.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchFuzzy     MatchType = "fuzzy"
	MatchRuleBased MatchType = "rule-based"
	MatchManual    MatchType = "manual"
)

// MatchedBy records whether the match was made by the engine or a person.
type MatchedBy string

const (
	MatchedBySystem MatchedBy = "system"
	MatchedByUser   MatchedBy = "user"
)

// Match pairs one bank transaction with one internal transaction. Within a
// session each transaction appears in at most one active match.
type Match struct {
	ID         uuid.UUID                     `json:"id"`
	Bank       statement.BankTransaction     `json:"bank_transaction"`
	Internal   statement.InternalTransaction `json:"internal_transaction"`
	Type       MatchType                     `json:"type"`
	Confidence int                           `json:"confidence"`
	MatchedBy  MatchedBy                     `json:"matched_by"`
	MatchedAt  time.Time                     `json:"matched_at"`
	RuleID     *uuid.UUID                    `json:"rule_id,omitempty"`
}

// Suggestion is a non-committing candidate pairing for a single bank
// transaction. Suggestions never mutate session state.
type Suggestion struct {
	Internal   statement.InternalTransaction `json:"internal_transaction"`
	Confidence int                           `json:"confidence"`
	Reasons    []string                      `json:"reasons"`
}

// Result is the outcome of a batch matching run. The residual pools contain
// every transaction no pass could pair.
type Result struct {
	Matches           []Match
	UnmatchedBank     []statement.BankTransaction
	UnmatchedInternal []statement.InternalTransaction
}
