package matching

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/clearledger/reconcile/internal/similarity"
	"github.com/clearledger/reconcile/internal/statement"
)

// Confidence assigned by the deterministic passes. Fuzzy matches carry the
// rounded blend score instead.
const (
	confidenceExact     = 100
	confidenceRuleBased = 90
)

// Fuzzy blend weights and per-factor thresholds. A factor only contributes
// when it clears its own threshold; the weighted sum is then normalized by
// the number of contributing factors.
const (
	weightAmount      = 0.4
	weightDate        = 0.3
	weightDescription = 0.3

	thresholdAmount      = 0.95
	thresholdDate        = 0.5
	thresholdDescription = 0.5

	factorNormalizer = 0.33
)

// Config tunes the matching passes.
type Config struct {
	// ExactAmountTolerance is the maximum amount difference the exact pass
	// accepts.
	ExactAmountTolerance decimal.Decimal
	// ExactDateToleranceDays is the maximum day difference the exact pass
	// accepts.
	ExactDateToleranceDays int
	// BatchThreshold is the minimum fuzzy score for batch auto-matching.
	BatchThreshold float64
	// SuggestionThreshold is the minimum fuzzy score for interactive
	// suggestions.
	SuggestionThreshold float64
	// Workers bounds the goroutines scoring fuzzy candidates.
	Workers int
}

// DefaultConfig returns the standard tolerances and thresholds.
func DefaultConfig() Config {
	return Config{
		ExactAmountTolerance:   decimal.NewFromFloat(0.01),
		ExactDateToleranceDays: 1,
		BatchThreshold:         0.75,
		SuggestionThreshold:    0.6,
		Workers:                4,
	}
}

// Engine runs the matching passes. It carries no per-run state; Match is
// pure relative to its inputs.
type Engine struct {
	cfg Config
	log *slog.Logger
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Engine{cfg: cfg, log: log}
}

// Match runs the exact, rule-based, and fuzzy passes in that order over the
// given pools. Each pass removes the transactions it matched before the next
// pass runs. Exact and rule-based matches are zero-ambiguity and must not be
// pre-empted by a fuzzy guess, which is why fuzzy always runs last.
//
// Cancellation is honored between passes only, so a finished pass's results
// stay deterministic.
func (e *Engine) Match(ctx context.Context, bank []statement.BankTransaction, internal []statement.InternalTransaction, rules []Rule) Result {
	result := Result{
		UnmatchedBank:     bank,
		UnmatchedInternal: internal,
	}

	passes := []func(context.Context, []statement.BankTransaction, []statement.InternalTransaction) ([]Match, []statement.BankTransaction, []statement.InternalTransaction){
		e.exactPass,
		func(ctx context.Context, b []statement.BankTransaction, i []statement.InternalTransaction) ([]Match, []statement.BankTransaction, []statement.InternalTransaction) {
			return e.rulePass(b, i, rules)
		},
		e.fuzzyPass,
	}

	for _, pass := range passes {
		if ctx.Err() != nil {
			break
		}

		matches, remBank, remInternal := pass(ctx, result.UnmatchedBank, result.UnmatchedInternal)
		result.Matches = append(result.Matches, matches...)
		result.UnmatchedBank = remBank
		result.UnmatchedInternal = remInternal
	}

	return result
}

// exactPass pairs transactions whose amounts agree within the exact
// tolerance and whose dates fall within the exact day tolerance. When both
// sides carry a reference the references must also agree. The first
// qualifying candidate in input order wins.
func (e *Engine) exactPass(_ context.Context, bank []statement.BankTransaction, internal []statement.InternalTransaction) ([]Match, []statement.BankTransaction, []statement.InternalTransaction) {
	var matches []Match

	claimed := make(map[int]bool, len(internal))

	var remBank []statement.BankTransaction

	for _, btx := range bank {
		matched := false

		for i, itx := range internal {
			if claimed[i] || !e.isExact(btx, itx) {
				continue
			}

			matches = append(matches, Match{
				ID:         uuid.New(),
				Bank:       btx,
				Internal:   itx,
				Type:       MatchExact,
				Confidence: confidenceExact,
				MatchedBy:  MatchedBySystem,
				MatchedAt:  time.Now().UTC(),
			})
			claimed[i] = true
			matched = true

			break
		}

		if !matched {
			remBank = append(remBank, btx)
		}
	}

	return matches, remBank, unclaimed(internal, claimed)
}

func (e *Engine) isExact(btx statement.BankTransaction, itx statement.InternalTransaction) bool {
	if !similarity.AmountsClose(btx.Amount(), itx.SignedAmount(), e.cfg.ExactAmountTolerance) {
		return false
	}

	if !similarity.DatesClose(btx.Date, itx.Date, e.cfg.ExactDateToleranceDays) {
		return false
	}

	if btx.Reference != "" && itx.Reference != "" {
		return strings.EqualFold(btx.Reference, itx.Reference)
	}

	return true
}

// rulePass evaluates enabled rules in descending priority order. A rule
// whose condition set the engine cannot evaluate is skipped for that pair
// and logged; one bad rule never halts reconciliation.
func (e *Engine) rulePass(bank []statement.BankTransaction, internal []statement.InternalTransaction, rules []Rule) ([]Match, []statement.BankTransaction, []statement.InternalTransaction) {
	active := make([]Rule, 0, len(rules))

	for _, r := range rules {
		if r.Enabled && len(r.Conditions) > 0 {
			active = append(active, r)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	var matches []Match

	claimedBank := make(map[int]bool, len(bank))
	claimedInternal := make(map[int]bool, len(internal))

	for _, rule := range active {
		for bi, btx := range bank {
			if claimedBank[bi] {
				continue
			}

			for ii, itx := range internal {
				if claimedInternal[ii] {
					continue
				}

				ok, err := rule.Matches(btx, itx)
				if err != nil {
					e.log.Warn("skipping rule for pair",
						"rule", rule.Name,
						"bank_tx", btx.ID,
						"internal_tx", itx.ID,
						"error", err)

					continue
				}

				if !ok {
					continue
				}

				ruleID := rule.ID
				matches = append(matches, Match{
					ID:         uuid.New(),
					Bank:       btx,
					Internal:   itx,
					Type:       MatchRuleBased,
					Confidence: confidenceRuleBased,
					MatchedBy:  MatchedBySystem,
					MatchedAt:  time.Now().UTC(),
					RuleID:     &ruleID,
				})
				claimedBank[bi] = true
				claimedInternal[ii] = true

				break
			}
		}
	}

	return matches, unclaimed(bank, claimedBank), unclaimed(internal, claimedInternal)
}

type scoredCandidate struct {
	internalIdx int
	score       float64
	factors     fuzzyFactors
}

// fuzzyPass scores every remaining pair with the weighted blend and selects,
// per bank transaction in input order, the highest-scoring unclaimed
// candidate above the batch threshold. Scoring runs on a bounded worker pool
// over an immutable snapshot of the internal pool; selection is a sequential
// reduce so two workers can never claim the same internal transaction.
func (e *Engine) fuzzyPass(ctx context.Context, bank []statement.BankTransaction, internal []statement.InternalTransaction) ([]Match, []statement.BankTransaction, []statement.InternalTransaction) {
	candidates := make([][]scoredCandidate, len(bank))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for bi := range bank {
		bi := bi
		g.Go(func() error {
			candidates[bi] = e.scoreCandidates(bank[bi], internal, e.cfg.BatchThreshold)
			return nil
		})
	}

	_ = g.Wait() // scoring never returns an error

	var matches []Match

	claimed := make(map[int]bool, len(internal))

	var remBank []statement.BankTransaction

	for bi, btx := range bank {
		matched := false

		for _, cand := range candidates[bi] {
			if claimed[cand.internalIdx] {
				continue
			}

			matches = append(matches, Match{
				ID:         uuid.New(),
				Bank:       btx,
				Internal:   internal[cand.internalIdx],
				Type:       MatchFuzzy,
				Confidence: toConfidence(cand.score),
				MatchedBy:  MatchedBySystem,
				MatchedAt:  time.Now().UTC(),
			})
			claimed[cand.internalIdx] = true
			matched = true

			break
		}

		if !matched {
			remBank = append(remBank, btx)
		}
	}

	return matches, remBank, unclaimed(internal, claimed)
}

// scoreCandidates returns the candidates at or above threshold, best first.
// Ties break on internal pool order to keep runs deterministic.
func (e *Engine) scoreCandidates(btx statement.BankTransaction, internal []statement.InternalTransaction, threshold float64) []scoredCandidate {
	var list []scoredCandidate

	for ii, itx := range internal {
		score, factors := e.fuzzyScore(btx, itx)
		if score >= threshold {
			list = append(list, scoredCandidate{internalIdx: ii, score: score, factors: factors})
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score > list[j].score
	})

	return list
}

type fuzzyFactors struct {
	amount      bool
	date        bool
	description bool
}

// fuzzyScore blends amount, date, and description similarity. Only factors
// clearing their individual thresholds contribute; the weighted sum is
// normalized by (contributing factors × 0.33) and clamped to [0, 1], since
// several strong factors can push the raw value past 1.
func (e *Engine) fuzzyScore(btx statement.BankTransaction, itx statement.InternalTransaction) (float64, fuzzyFactors) {
	var (
		sum     float64
		count   int
		factors fuzzyFactors
	)

	if s := similarity.Amount(btx.Amount(), itx.SignedAmount()); s > thresholdAmount {
		sum += weightAmount * s
		count++
		factors.amount = true
	}

	if s := similarity.DateScore(btx.Date, itx.Date); s > thresholdDate {
		sum += weightDate * s
		count++
		factors.date = true
	}

	if s := similarity.String(btx.Description, itx.Description); s > thresholdDescription {
		sum += weightDescription * s
		count++
		factors.description = true
	}

	if count == 0 {
		return 0, factors
	}

	score := sum / (float64(count) * factorNormalizer)

	return math.Min(score, 1), factors
}

func toConfidence(score float64) int {
	return int(math.Round(math.Min(score, 1) * 100))
}

func (f fuzzyFactors) reasons() []string {
	var reasons []string

	if f.amount {
		reasons = append(reasons, "Amount matches")
	}

	if f.date {
		reasons = append(reasons, "Date is close")
	}

	if f.description {
		reasons = append(reasons, "Description is similar")
	}

	return reasons
}

// Suggestions returns up to limit ranked candidate pairings for a single
// bank transaction without committing anything. An exact candidate, if one
// exists, leads the list at confidence 100; fuzzy candidates at or above the
// suggestion threshold follow in score order.
func (e *Engine) Suggestions(btx statement.BankTransaction, internal []statement.InternalTransaction, limit int) []Suggestion {
	if limit <= 0 {
		return nil
	}

	var suggestions []Suggestion

	exactIdx := -1

	for i, itx := range internal {
		if e.isExact(btx, itx) {
			exactIdx = i
			suggestions = append(suggestions, Suggestion{
				Internal:   itx,
				Confidence: confidenceExact,
				Reasons:    []string{"Amount matches", "Date is close"},
			})

			break
		}
	}

	for _, cand := range e.scoreCandidates(btx, internal, e.cfg.SuggestionThreshold) {
		if len(suggestions) >= limit {
			break
		}

		if cand.internalIdx == exactIdx {
			continue
		}

		suggestions = append(suggestions, Suggestion{
			Internal:   internal[cand.internalIdx],
			Confidence: toConfidence(cand.score),
			Reasons:    cand.factors.reasons(),
		})
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	return suggestions
}

func unclaimed[T any](pool []T, claimed map[int]bool) []T {
	if len(claimed) == 0 {
		return pool
	}

	rem := make([]T, 0, len(pool)-len(claimed))

	for i, item := range pool {
		if !claimed[i] {
			rem = append(rem, item)
		}
	}

	return rem
}
