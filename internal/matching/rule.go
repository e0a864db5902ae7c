package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile/internal/similarity"
	"github.com/clearledger/reconcile/internal/statement"
)

// Provenance records whether a rule was written by a user or learned by the
// engine from repeated manual matches.
type Provenance string

const (
	ProvenanceUser   Provenance = "user"
	ProvenanceSystem Provenance = "system"
)

// Field names the transaction attribute a condition inspects.
type Field string

const (
	FieldAmount      Field = "amount"
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldReference   Field = "reference"
)

// Operator names the comparison a condition applies.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpRange      Operator = "range"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
)

// Condition is one field/operator/value test inside a rule. Amount
// conditions compare the pair's amounts within Tolerance; when Value is set
// both amounts must additionally sit within Tolerance of it. Date conditions
// support equals (same day) and range (within Days). String conditions on
// description/reference are case-insensitive and tested bidirectionally;
// when Value is set the test runs against Value instead of the paired field.
type Condition struct {
	Field     Field           `json:"field"`
	Operator  Operator        `json:"operator"`
	Value     string          `json:"value,omitempty"`
	Tolerance decimal.Decimal `json:"tolerance"`
	Days      int             `json:"days,omitempty"`
}

// Rule is an ordered set of conditions that, when all hold for a pair,
// produces a rule-based match. Rules are evaluated in descending priority.
type Rule struct {
	ID         uuid.UUID   `json:"id"`
	AccountID  string      `json:"account_id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Priority   int         `json:"priority"`
	Enabled    bool        `json:"enabled"`
	Provenance Provenance  `json:"provenance"`
	CreatedAt  time.Time   `json:"created_at"`
}

// RuleEvaluationError marks a condition whose field/operator combination the
// engine does not support. The offending rule is skipped for the pair being
// tested; it never aborts a matching pass.
type RuleEvaluationError struct {
	RuleID   uuid.UUID
	Field    Field
	Operator Operator
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: unsupported condition %s/%s", e.RuleID, e.Field, e.Operator)
}

// Matches reports whether every condition of the rule holds for the pair.
func (r Rule) Matches(bank statement.BankTransaction, internal statement.InternalTransaction) (bool, error) {
	for _, cond := range r.Conditions {
		ok, err := cond.eval(r.ID, bank, internal)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func (c Condition) eval(ruleID uuid.UUID, bank statement.BankTransaction, internal statement.InternalTransaction) (bool, error) {
	switch c.Field {
	case FieldAmount:
		return c.evalAmount(ruleID, bank.Amount(), internal.SignedAmount())
	case FieldDate:
		return c.evalDate(ruleID, bank.Date, internal.Date)
	case FieldDescription:
		return c.evalString(ruleID, bank.Description, internal.Description)
	case FieldReference:
		return c.evalString(ruleID, bank.Reference, internal.Reference)
	default:
		return false, &RuleEvaluationError{RuleID: ruleID, Field: c.Field, Operator: c.Operator}
	}
}

func (c Condition) evalAmount(ruleID uuid.UUID, bankAmount, internalAmount decimal.Decimal) (bool, error) {
	if c.Operator != OpEquals {
		return false, &RuleEvaluationError{RuleID: ruleID, Field: c.Field, Operator: c.Operator}
	}

	if !similarity.AmountsClose(bankAmount, internalAmount, c.Tolerance) {
		return false, nil
	}

	if c.Value == "" {
		return true, nil
	}

	anchor, err := decimal.NewFromString(c.Value)
	if err != nil {
		return false, &RuleEvaluationError{RuleID: ruleID, Field: c.Field, Operator: c.Operator}
	}

	return similarity.AmountsClose(bankAmount, anchor, c.Tolerance), nil
}

func (c Condition) evalDate(ruleID uuid.UUID, bankDate, internalDate time.Time) (bool, error) {
	switch c.Operator {
	case OpEquals:
		return similarity.DatesClose(bankDate, internalDate, 0), nil
	case OpRange:
		return similarity.DatesClose(bankDate, internalDate, c.Days), nil
	default:
		return false, &RuleEvaluationError{RuleID: ruleID, Field: c.Field, Operator: c.Operator}
	}
}

func (c Condition) evalString(ruleID uuid.UUID, bankValue, internalValue string) (bool, error) {
	a := strings.ToLower(strings.TrimSpace(bankValue))
	b := strings.ToLower(strings.TrimSpace(internalValue))

	if c.Value != "" {
		b = strings.ToLower(strings.TrimSpace(c.Value))
	}

	switch c.Operator {
	case OpEquals:
		return a == b, nil
	case OpContains:
		return a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)), nil
	case OpStartsWith:
		return a != "" && b != "" && (strings.HasPrefix(a, b) || strings.HasPrefix(b, a)), nil
	case OpEndsWith:
		return a != "" && b != "" && (strings.HasSuffix(a, b) || strings.HasSuffix(b, a)), nil
	default:
		return false, &RuleEvaluationError{RuleID: ruleID, Field: c.Field, Operator: c.Operator}
	}
}
