package matching

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile/internal/statement"
)

const (
	// promotionThreshold is how many times the same pattern must be matched
	// manually before it becomes a rule.
	promotionThreshold = 3
	// learnedRulePriority sits below typical user rules so explicit rules
	// keep winning.
	learnedRulePriority = 50
	// descriptionPrefixLen bounds the pattern key on the description side.
	descriptionPrefixLen = 12
	// defaultMaxPatterns caps tracked patterns per account before the
	// least-recently-seen entries are evicted.
	defaultMaxPatterns = 1000
)

type patternKey struct {
	amount string
	prefix string
}

type patternStat struct {
	count    int
	lastSeen time.Time
	promoted bool
}

// Learner counts recurring (amount, description-prefix) patterns from manual
// matches and promotes a pattern into a system rule on its third occurrence.
// Counters are scoped per account so tenants never contaminate each other,
// and each account's pattern set is bounded by least-recently-seen eviction.
type Learner struct {
	mu          sync.Mutex
	maxPatterns int
	accounts    map[string]map[patternKey]*patternStat
}

// NewLearner creates a learner. maxPatterns <= 0 selects the default cap.
func NewLearner(maxPatterns int) *Learner {
	if maxPatterns <= 0 {
		maxPatterns = defaultMaxPatterns
	}

	return &Learner{
		maxPatterns: maxPatterns,
		accounts:    make(map[string]map[patternKey]*patternStat),
	}
}

// Observe records one manual match for the account. When the pattern reaches
// the promotion threshold it returns the synthesized rule, exactly once per
// pattern; otherwise it returns nil.
func (l *Learner) Observe(accountID string, bank statement.BankTransaction, internal statement.InternalTransaction) *Rule {
	key := patternKey{
		amount: bank.Amount().Round(2).String(),
		prefix: descriptionPrefix(internal.Description),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	patterns, ok := l.accounts[accountID]
	if !ok {
		patterns = make(map[patternKey]*patternStat)
		l.accounts[accountID] = patterns
	}

	stat, ok := patterns[key]
	if !ok {
		if len(patterns) >= l.maxPatterns {
			evictOldest(patterns)
		}

		stat = &patternStat{}
		patterns[key] = stat
	}

	stat.count++
	stat.lastSeen = time.Now().UTC()

	if stat.count < promotionThreshold || stat.promoted {
		return nil
	}

	stat.promoted = true

	return &Rule{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      fmt.Sprintf("Learned: %s %s", key.prefix, key.amount),
		Conditions: []Condition{
			{
				Field:     FieldAmount,
				Operator:  OpEquals,
				Value:     key.amount,
				Tolerance: decimal.NewFromFloat(0.01),
			},
		},
		Priority:   learnedRulePriority,
		Enabled:    true,
		Provenance: ProvenanceSystem,
		CreatedAt:  time.Now().UTC(),
	}
}

func descriptionPrefix(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))
	if len(s) > descriptionPrefixLen {
		s = s[:descriptionPrefixLen]
	}

	return s
}

func evictOldest(patterns map[patternKey]*patternStat) {
	var (
		oldestKey patternKey
		oldest    time.Time
		found     bool
	)

	for key, stat := range patterns {
		if !found || stat.lastSeen.Before(oldest) {
			oldestKey = key
			oldest = stat.lastSeen
			found = true
		}
	}

	if found {
		delete(patterns, oldestKey)
	}
}
