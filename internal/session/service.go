package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile/internal/matching"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=session
type Repository interface {
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	UpdateSession(ctx context.Context, sess *Session) error
}

// Service serializes all mutation per session id and drives the matching
// engine against the session's pools. The aggregate reads then writes shared
// pools, so concurrent manual matches on one session are a correctness
// hazard, not just a performance one.
type Service struct {
	repo     Repository
	matching *matching.Service
	log      *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(repo Repository, matchingSvc *matching.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo:     repo,
		matching: matchingSvc,
		log:      log,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) lock(id uuid.UUID) func() {
	s.mu.Lock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}

	s.mu.Unlock()
	l.Lock()

	return l.Unlock
}

// mutate loads the session, applies fn under the per-session lock, and saves
// the result. Domain errors from fn leave the stored session untouched.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	return sess, nil
}

// Create validates the normalized transaction lists and persists a new
// in-progress session. Validation failures come back as a collected list so
// the caller can surface every bad row at once.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Session, error) {
	sess, err := New(params)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetSession(ctx, id)
}

// AutoMatch runs the three-pass engine over the session's current unmatched
// pools using the account's rules. Re-running once no further matches are
// possible yields an empty delta.
func (s *Service) AutoMatch(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		rules, err := s.matching.Rules(ctx, sess.AccountID)
		if err != nil {
			return err
		}

		result := s.matching.Engine().Match(ctx, sess.UnmatchedBank, sess.UnmatchedInternal, rules)

		return sess.ApplyMatchResult(result)
	})
}

// ManualMatch pairs two transactions by hand and feeds the pattern to the
// learner. A learner failure is logged, never surfaced: the match itself
// already succeeded.
func (s *Service) ManualMatch(ctx context.Context, id uuid.UUID, bankTxID, internalTxID string) (*Session, error) {
	var match *matching.Match

	sess, err := s.mutate(ctx, id, func(sess *Session) error {
		m, err := sess.ManualMatch(bankTxID, internalTxID)
		if err != nil {
			return err
		}

		match = m

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.matching.RecordManualMatch(ctx, sess.AccountID, match.Bank, match.Internal); err != nil {
		s.log.Warn("failed to record manual match pattern",
			"session", sess.ID,
			"bank_tx", bankTxID,
			"error", err)
	}

	return sess, nil
}

func (s *Service) Unmatch(ctx context.Context, id, matchID uuid.UUID) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.Unmatch(matchID)
	})
}

func (s *Service) AddAdjustment(ctx context.Context, id uuid.UUID, adj Adjustment) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.AddAdjustment(adj)
	})
}

func (s *Service) RemoveAdjustment(ctx context.Context, id, adjustmentID uuid.UUID) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.RemoveAdjustment(adjustmentID)
	})
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.Complete()
	})
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID, approverID string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.Approve(approverID)
	})
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.Reject()
	})
}

// Suggestions ranks candidate internal transactions for one unmatched bank
// transaction. Read-only: session state is never touched.
func (s *Service) Suggestions(ctx context.Context, id uuid.UUID, bankTxID string, limit int) ([]matching.Suggestion, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, tx := range sess.UnmatchedBank {
		if tx.ID == bankTxID {
			return s.matching.Engine().Suggestions(tx, sess.UnmatchedInternal, limit), nil
		}
	}

	return nil, &NotFoundError{Resource: "unmatched bank transaction", ID: bankTxID}
}
