package l2_service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"stratengine/internal/repository"
	l1_service "stratengine/internal/service/l1"

	"github.com/shopspring/decimal"
)

// DefaultVisitBudget caps node visits per evaluation so a runaway or
// adversarial strategy fails deterministically instead of spinning.
const DefaultVisitBudget = 50000

// EvalContext is the per-evaluation bundle of collaborator handles plus
// the scoped memoization cache. Build a fresh one for every top-level
// evaluation; the memo cache must never be shared across evaluations.
type EvalContext struct {
	Indicators l1_service.IndicatorService
	MarketData repository.MarketDataPort
	AsOf       time.Time

	// Universe is the candidate set selection operators fall back to
	// when a strategy names no explicit candidates.
	Universe []string

	visitBudget int
	visits      int
	memo        map[string]decimal.Decimal
}

type EvalContextOpts struct {
	Indicators  l1_service.IndicatorService
	MarketData  repository.MarketDataPort
	AsOf        time.Time
	Universe    []string
	VisitBudget int
}

func NewEvalContext(opts EvalContextOpts) *EvalContext {
	budget := opts.VisitBudget
	if budget <= 0 {
		budget = DefaultVisitBudget
	}
	return &EvalContext{
		Indicators:  opts.Indicators,
		MarketData:  opts.MarketData,
		AsOf:        opts.AsOf,
		Universe:    opts.Universe,
		visitBudget: budget,
		memo:        map[string]decimal.Decimal{},
	}
}

// chargeVisit consumes one unit of the visit budget.
func (ec *EvalContext) chargeVisit() error {
	ec.visits++
	if ec.visits > ec.visitBudget {
		return fmt.Errorf("evaluation exceeded budget of %d node visits", ec.visitBudget)
	}
	return nil
}

func (ec *EvalContext) memoGet(key string) (decimal.Decimal, bool) {
	v, ok := ec.memo[key]
	return v, ok
}

func (ec *EvalContext) memoPut(key string, v decimal.Decimal) {
	ec.memo[key] = v
}

// memoKey is the cache key for one indicator lookup. Params are sorted
// so equal lookups always collide.
func memoKey(symbol, indicator string, params map[string]decimal.Decimal, asOf time.Time) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, params[name].String()))
	}

	return fmt.Sprintf("%s|%s|%s|%d", symbol, indicator, strings.Join(parts, ","), asOf.Unix())
}
