package l2_service

import (
	"context"
	"fmt"
	"sort"

	"stratengine/internal/domain"
	"stratengine/internal/lang"

	"github.com/shopspring/decimal"
)

// operator is one registry entry. Eager operators receive evaluated
// args; lazy ones (control flow) drive evaluation themselves through
// the invocation callback.
type operator struct {
	name    string
	minArgs int
	maxArgs int // -1 = unbounded
	lazy    bool
	fn      func(ctx context.Context, inv *invocation) (domain.Value, error)
}

func (op operator) arityDescription() string {
	if op.maxArgs < 0 {
		return fmt.Sprintf("at least %d", op.minArgs)
	}
	if op.minArgs == op.maxArgs {
		return fmt.Sprintf("%d", op.minArgs)
	}
	return fmt.Sprintf("%d to %d", op.minArgs, op.maxArgs)
}

// invocation is the per-application bundle handed to operator bodies.
type invocation struct {
	node     *lang.Node
	argNodes []*lang.Node
	args     []domain.Value
	evalCtx  *EvalContext
	trace    *domain.TraceBuilder

	// recursive evaluation callback, used by lazy operators
	eval func(ctx context.Context, n *lang.Node) (domain.Value, error)

	// set by control-flow operators for the trace entry
	branchTaken string
}

func buildRegistry() map[string]*operator {
	ops := []*operator{
		comparisonOp(">", func(a, b decimal.Decimal) bool { return a.Cmp(b) > 0 }),
		comparisonOp("<", func(a, b decimal.Decimal) bool { return a.Cmp(b) < 0 }),
		comparisonOp(">=", func(a, b decimal.Decimal) bool { return a.Cmp(b) >= 0 }),
		comparisonOp("<=", func(a, b decimal.Decimal) bool { return a.Cmp(b) <= 0 }),
		comparisonOp("=", func(a, b decimal.Decimal) bool { return a.Equal(b) }),
		ifOp(),
		indicatorOp(),
		assetOp(),
		weightEqualOp(),
		weightSpecifiedOp(),
		mergeOp(),
		selectionOp("select-top", true),
		selectionOp("select-bottom", false),
	}

	registry := make(map[string]*operator, len(ops))
	for _, op := range ops {
		registry[op.name] = op
	}
	return registry
}

func comparisonOp(name string, cmp func(a, b decimal.Decimal) bool) *operator {
	return &operator{
		name:    name,
		minArgs: 2,
		maxArgs: 2,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			a, b := inv.args[0], inv.args[1]
			if a.Kind != domain.ValueNumber || b.Kind != domain.ValueNumber {
				return domain.Value{}, domain.NewEvaluationError(inv.node.Pos,
					"operator %q requires numeric arguments, got %s and %s", name, a.Kind, b.Kind)
			}
			return domain.BoolValue(cmp(a.Num, b.Num)), nil
		},
	}
}

// ifOp evaluates the condition first, then only the taken branch. The
// untaken branch contributes zero trace entries and zero indicator
// lookups.
func ifOp() *operator {
	return &operator{
		name:    "if",
		minArgs: 3,
		maxArgs: 3,
		lazy:    true,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			cond, err := inv.eval(ctx, inv.argNodes[0])
			if err != nil {
				return domain.Value{}, err
			}
			if cond.Kind != domain.ValueBool {
				return domain.Value{}, domain.NewEvaluationError(inv.argNodes[0].Pos,
					"if condition must be a bool, got %s", cond.Kind)
			}
			inv.args = []domain.Value{cond}

			branchNode := inv.argNodes[2]
			inv.branchTaken = "else"
			if cond.Bool {
				branchNode = inv.argNodes[1]
				inv.branchTaken = "then"
			}

			return inv.eval(ctx, branchNode)
		},
	}
}

func indicatorOp() *operator {
	return &operator{
		name:    "indicator",
		minArgs: 2,
		maxArgs: 3,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			symbol, err := requireSymbolArg(inv, 0, "indicator")
			if err != nil {
				return domain.Value{}, err
			}
			name, err := requireSymbolArg(inv, 1, "indicator")
			if err != nil {
				return domain.Value{}, err
			}
			params, err := optionalParamsArg(inv, 2)
			if err != nil {
				return domain.Value{}, err
			}

			value, err := fetchIndicator(ctx, inv, symbol, name, params)
			if err != nil {
				return domain.Value{}, err
			}
			return domain.NumberValue(value), nil
		},
	}
}

// fetchIndicator consults the per-evaluation memo cache before hitting
// the indicator service, so repeated references within one evaluation
// never re-trigger computation or I/O.
func fetchIndicator(ctx context.Context, inv *invocation, symbol, name string, params map[string]decimal.Decimal) (decimal.Decimal, error) {
	ec := inv.evalCtx
	key := memoKey(symbol, name, params, ec.AsOf)
	if v, ok := ec.memoGet(key); ok {
		return v, nil
	}

	v, err := ec.Indicators.Get(ctx, symbol, name, params, ec.AsOf)
	if err != nil {
		return decimal.Zero, domain.NewEvaluationError(inv.node.Pos, "indicator %s/%s: %s", symbol, name, err.Error())
	}

	ec.memoPut(key, v)
	return v, nil
}

func assetOp() *operator {
	return &operator{
		name:    "asset",
		minArgs: 1,
		maxArgs: 1,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			symbol, err := requireSymbolArg(inv, 0, "asset")
			if err != nil {
				return domain.Value{}, err
			}
			frag := domain.NewPortfolioFragment(inv.node.Pos)
			frag.AddWeight(symbol, decimal.NewFromInt(1))
			return domain.FragmentValue(frag), nil
		},
	}
}

func weightEqualOp() *operator {
	return &operator{
		name:    "weight-equal",
		minArgs: 1,
		maxArgs: -1,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			share := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(inv.args))))
			frag := domain.NewPortfolioFragment(inv.node.Pos)
			for i, arg := range inv.args {
				if err := addScaled(frag, arg, share, "weight-equal", inv.argNodes[i].Pos); err != nil {
					return domain.Value{}, err
				}
			}
			return domain.FragmentValue(frag), nil
		},
	}
}

// weightSpecifiedOp pairs (weight, target) args, e.g.
// (weight-specified 0.7 "AAPL" 0.3 (weight-equal "MSFT" "GOOG")).
func weightSpecifiedOp() *operator {
	return &operator{
		name:    "weight-specified",
		minArgs: 2,
		maxArgs: -1,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			if len(inv.args)%2 != 0 {
				return domain.Value{}, domain.NewEvaluationError(inv.node.Pos,
					"operator %q expects weight/target pairs, got %d arguments", "weight-specified", len(inv.args))
			}

			frag := domain.NewPortfolioFragment(inv.node.Pos)
			for i := 0; i < len(inv.args); i += 2 {
				weight := inv.args[i]
				if weight.Kind != domain.ValueNumber {
					return domain.Value{}, domain.NewEvaluationError(inv.argNodes[i].Pos,
						"weight must be a number, got %s", weight.Kind)
				}
				if weight.Num.IsNegative() {
					return domain.Value{}, domain.NewEvaluationError(inv.argNodes[i].Pos,
						"weight must be non-negative, got %s", weight.Num)
				}
				if err := addScaled(frag, inv.args[i+1], weight.Num, "weight-specified", inv.argNodes[i+1].Pos); err != nil {
					return domain.Value{}, err
				}
			}
			return domain.FragmentValue(frag), nil
		},
	}
}

func mergeOp() *operator {
	return &operator{
		name:    "merge",
		minArgs: 1,
		maxArgs: -1,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			frag := domain.NewPortfolioFragment(inv.node.Pos)
			for i, arg := range inv.args {
				switch arg.Kind {
				case domain.ValueSymbol:
					frag.AddWeight(arg.Symbol, decimal.NewFromInt(1))
				case domain.ValueFragment:
					frag.Merge(arg.Fragment)
				default:
					return domain.Value{}, domain.NewEvaluationError(inv.argNodes[i].Pos,
						"operator %q cannot merge %s value", "merge", arg.Kind)
				}
			}
			return domain.FragmentValue(frag), nil
		},
	}
}

// addScaled folds one composition target into frag with the given
// total weight. Nested fragments are normalized within their share so
// (weight-equal A (weight-equal B C)) gives A 1/2, B and C 1/4 each.
func addScaled(frag *domain.PortfolioFragment, v domain.Value, weight decimal.Decimal, opName string, pos lang.Pos) error {
	switch v.Kind {
	case domain.ValueSymbol:
		frag.AddWeight(v.Symbol, weight)
		return nil
	case domain.ValueFragment:
		total := v.Fragment.Total()
		if total.IsZero() {
			return domain.NewEvaluationError(pos, "operator %q cannot scale zero-total fragment", opName)
		}
		for _, symbol := range v.Fragment.Symbols() {
			frag.AddWeight(symbol, weight.Mul(v.Fragment.Weights[symbol]).Div(total))
		}
		return nil
	}
	return domain.NewEvaluationError(pos, "operator %q cannot weight %s value", opName, v.Kind)
}

// selectionOp ranks candidates by an indicator and equal-weights the
// best n. Ordering is deterministic: by score (descending for
// select-top, ascending for select-bottom), ties broken by ascending
// symbol name.
func selectionOp(name string, descending bool) *operator {
	return &operator{
		name:    name,
		minArgs: 2,
		maxArgs: -1,
		fn: func(ctx context.Context, inv *invocation) (domain.Value, error) {
			count := inv.args[0]
			if count.Kind != domain.ValueNumber {
				return domain.Value{}, domain.NewEvaluationError(inv.argNodes[0].Pos,
					"selection count must be a number, got %s", count.Kind)
			}
			n := int(count.Num.IntPart())
			if n <= 0 {
				return domain.Value{}, domain.NewEvaluationError(inv.argNodes[0].Pos,
					"selection count must be positive, got %s", count.Num)
			}

			indicatorName, err := requireSymbolArg(inv, 1, name)
			if err != nil {
				return domain.Value{}, err
			}

			rest := inv.args[2:]
			restNodes := inv.argNodes[2:]
			params := map[string]decimal.Decimal{}
			if len(rest) > 0 && rest[0].Kind == domain.ValueFragment {
				params = rest[0].Fragment.Weights
				rest = rest[1:]
				restNodes = restNodes[1:]
			}

			candidates, err := gatherCandidates(rest, restNodes, inv.evalCtx)
			if err != nil {
				return domain.Value{}, err
			}
			if len(candidates) == 0 {
				return domain.Value{}, domain.NewEvaluationError(inv.node.Pos,
					"operator %q has no candidate symbols and no universe is configured", name)
			}

			ranked, err := scoreCandidates(ctx, inv, candidates, indicatorName, params)
			if err != nil {
				return domain.Value{}, err
			}

			sort.SliceStable(ranked, func(i, j int) bool {
				cmp := ranked[i].score.Cmp(ranked[j].score)
				if cmp == 0 {
					return ranked[i].symbol < ranked[j].symbol
				}
				if descending {
					return cmp > 0
				}
				return cmp < 0
			})

			if n > len(ranked) {
				n = len(ranked)
			}
			share := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(n)))
			frag := domain.NewPortfolioFragment(inv.node.Pos)
			for _, s := range ranked[:n] {
				frag.AddWeight(s.symbol, share)
			}
			return domain.FragmentValue(frag), nil
		},
	}
}

type scoredSymbol struct {
	symbol string
	score  decimal.Decimal
}

// scoreCandidates computes the ranking score per candidate. Plain
// price rankings go through the market-data snapshot in one batch
// call; everything else is one indicator fetch per symbol.
func scoreCandidates(ctx context.Context, inv *invocation, candidates []string, indicatorName string, params map[string]decimal.Decimal) ([]scoredSymbol, error) {
	if indicatorName == "price" && len(params) == 0 && inv.evalCtx.MarketData != nil {
		return batchPriceScores(ctx, inv, candidates)
	}

	out := make([]scoredSymbol, 0, len(candidates))
	for _, symbol := range candidates {
		score, err := fetchIndicator(ctx, inv, symbol, indicatorName, params)
		if err != nil {
			return nil, err
		}
		out = append(out, scoredSymbol{symbol: symbol, score: score})
	}
	return out, nil
}

// batchPriceScores prices every candidate in a single snapshot call,
// feeding the memo cache so later price references within the same
// evaluation stay free.
func batchPriceScores(ctx context.Context, inv *invocation, candidates []string) ([]scoredSymbol, error) {
	ec := inv.evalCtx

	scores := map[string]decimal.Decimal{}
	missing := make([]string, 0, len(candidates))
	for _, symbol := range candidates {
		if v, ok := ec.memoGet(memoKey(symbol, "price", nil, ec.AsOf)); ok {
			scores[symbol] = v
			continue
		}
		missing = append(missing, symbol)
	}

	if len(missing) > 0 {
		prices, err := ec.MarketData.PricesAsOf(ctx, missing, ec.AsOf)
		if err != nil {
			return nil, domain.NewEvaluationError(inv.node.Pos, "failed to price candidates: %s", err.Error())
		}
		for _, p := range prices {
			scores[p.Symbol] = p.Price
			ec.memoPut(memoKey(p.Symbol, "price", nil, ec.AsOf), p.Price)
		}
	}

	out := make([]scoredSymbol, 0, len(candidates))
	for _, symbol := range candidates {
		score, ok := scores[symbol]
		if !ok {
			return nil, domain.NewEvaluationError(inv.node.Pos, "no price for candidate %s", symbol)
		}
		out = append(out, scoredSymbol{symbol: symbol, score: score})
	}
	return out, nil
}

// gatherCandidates flattens symbol and list-of-symbol args into a
// deduplicated, ascending candidate set. With no args it falls back to
// the context's configured universe.
func gatherCandidates(args []domain.Value, argNodes []*lang.Node, ec *EvalContext) ([]string, error) {
	symbols := []string{}
	appendValue := func(v domain.Value, pos lang.Pos) error {
		switch v.Kind {
		case domain.ValueSymbol:
			symbols = append(symbols, v.Symbol)
			return nil
		case domain.ValueList:
			for _, e := range v.List {
				if e.Kind != domain.ValueSymbol {
					return domain.NewEvaluationError(pos, "candidate lists may only contain symbols, got %s", e.Kind)
				}
				symbols = append(symbols, e.Symbol)
			}
			return nil
		}
		return domain.NewEvaluationError(pos, "cannot use %s value as selection candidate", v.Kind)
	}

	for i, arg := range args {
		if err := appendValue(arg, argNodes[i].Pos); err != nil {
			return nil, err
		}
	}
	if len(symbols) == 0 {
		symbols = append(symbols, ec.Universe...)
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func requireSymbolArg(inv *invocation, idx int, opName string) (string, error) {
	arg := inv.args[idx]
	if arg.Kind != domain.ValueSymbol {
		return "", domain.NewEvaluationError(inv.argNodes[idx].Pos,
			"operator %q expects a symbol at position %d, got %s", opName, idx+1, arg.Kind)
	}
	return arg.Symbol, nil
}

func optionalParamsArg(inv *invocation, idx int) (map[string]decimal.Decimal, error) {
	if idx >= len(inv.args) {
		return map[string]decimal.Decimal{}, nil
	}
	arg := inv.args[idx]
	if arg.Kind != domain.ValueFragment {
		return nil, domain.NewEvaluationError(inv.argNodes[idx].Pos,
			"indicator params must be a map literal, got %s", arg.Kind)
	}
	return arg.Fragment.Weights, nil
}
