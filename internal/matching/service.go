package matching

import (
	"context"
	"fmt"

	"github.com/clearledger/reconcile/internal/statement"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type RuleRepository interface {
	ListRules(ctx context.Context, accountID string) ([]Rule, error)
	CreateRule(ctx context.Context, rule *Rule) error
}

// Service ties the engine to persisted matching rules and the per-account
// pattern learner.
type Service struct {
	engine  *Engine
	repo    RuleRepository
	learner *Learner
}

func NewService(engine *Engine, repo RuleRepository) *Service {
	return &Service{
		engine:  engine,
		repo:    repo,
		learner: NewLearner(0),
	}
}

// Engine exposes the underlying engine for callers that run batch passes.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Rules returns the account's persisted rules.
func (s *Service) Rules(ctx context.Context, accountID string) ([]Rule, error) {
	rules, err := s.repo.ListRules(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}

	return rules, nil
}

// AddRule validates and persists a user-defined rule. Every condition must
// be evaluable, so a broken rule is rejected at creation instead of being
// skipped on every pass.
func (s *Service) AddRule(ctx context.Context, rule *Rule) error {
	probeBank := statement.BankTransaction{Description: "probe", Reference: "probe"}
	probeInternal := statement.InternalTransaction{Description: "probe", Reference: "probe", Type: statement.TypeCredit}

	for _, cond := range rule.Conditions {
		if _, err := cond.eval(rule.ID, probeBank, probeInternal); err != nil {
			return fmt.Errorf("invalid rule: %w", err)
		}
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return fmt.Errorf("creating rule: %w", err)
	}

	return nil
}

// RecordManualMatch feeds one manual match into the learner and persists any
// rule the pattern promotes.
func (s *Service) RecordManualMatch(ctx context.Context, accountID string, bank statement.BankTransaction, internal statement.InternalTransaction) error {
	rule := s.learner.Observe(accountID, bank, internal)
	if rule == nil {
		return nil
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return fmt.Errorf("persisting learned rule: %w", err)
	}

	return nil
}
