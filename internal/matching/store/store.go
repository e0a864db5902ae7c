package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/clearledger/reconcile/internal/matching"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListRules(ctx context.Context, accountID string) ([]matching.Rule, error) {
	query := `
		SELECT id, account_id, name, conditions, priority, enabled, provenance, created_at
		FROM matching_rules
		WHERE account_id = $1
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var rules []matching.Rule

	for rows.Next() {
		var (
			rule       matching.Rule
			conditions []byte
		)

		if err := rows.Scan(
			&rule.ID,
			&rule.AccountID,
			&rule.Name,
			&conditions,
			&rule.Priority,
			&rule.Enabled,
			&rule.Provenance,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}

		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("decoding conditions for rule %s: %w", rule.ID, err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}

	return rules, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *matching.Rule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("encoding conditions: %w", err)
	}

	query := `
		INSERT INTO matching_rules (id, account_id, name, conditions, priority, enabled, provenance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query,
		rule.ID,
		rule.AccountID,
		rule.Name,
		conditions,
		rule.Priority,
		rule.Enabled,
		rule.Provenance,
	); err != nil {
		return fmt.Errorf("creating rule: %w", err)
	}

	return nil
}
