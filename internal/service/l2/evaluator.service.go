package l2_service

import (
	"context"
	"errors"

	"stratengine/internal/domain"
	"stratengine/internal/lang"
	"stratengine/internal/logger"
)

// DSLEvaluator walks a parsed strategy expression and produces the raw
// DSL value it denotes. Every step - success or failure - appends one
// trace entry before returning.
type DSLEvaluator interface {
	Evaluate(ctx context.Context, node *lang.Node, evalCtx *EvalContext, trace *domain.TraceBuilder) (domain.Value, error)
}

type dslEvaluatorHandler struct {
	registry map[string]*operator
}

// NewDSLEvaluator builds the evaluator with its operator registry. The
// registry is constructed once and never mutated afterwards.
func NewDSLEvaluator() DSLEvaluator {
	return &dslEvaluatorHandler{
		registry: buildRegistry(),
	}
}

func (h *dslEvaluatorHandler) Evaluate(ctx context.Context, node *lang.Node, evalCtx *EvalContext, trace *domain.TraceBuilder) (domain.Value, error) {
	return h.eval(ctx, node, evalCtx, trace)
}

func (h *dslEvaluatorHandler) eval(ctx context.Context, node *lang.Node, ec *EvalContext, tb *domain.TraceBuilder) (domain.Value, error) {
	if err := ec.chargeVisit(); err != nil {
		evalErr := domain.NewEvaluationError(node.Pos, "%s", err.Error())
		tb.Append(domain.TraceEntry{Pos: node.Pos, Severity: domain.TraceError, Err: evalErr.Error()})
		return domain.Value{}, evalErr
	}

	switch node.Kind {
	case lang.NodeAtom:
		v := atomValue(node)
		tb.Append(domain.TraceEntry{Pos: node.Pos, Result: v.String()})
		return v, nil

	case lang.NodeSymbol:
		// a symbol outside head position is opaque data, e.g. a ticker
		v := domain.SymbolValue(node.Name)
		tb.Append(domain.TraceEntry{Pos: node.Pos, Result: v.String()})
		return v, nil

	case lang.NodeList:
		if node.Subtype == lang.ListMapLiteral {
			return h.evalMapLiteral(ctx, node, ec, tb)
		}
		if len(node.Children) == 0 {
			v := domain.ListValue([]domain.Value{})
			tb.Append(domain.TraceEntry{Pos: node.Pos, Result: v.String()})
			return v, nil
		}
		if node.Children[0].Kind == lang.NodeSymbol {
			return h.apply(ctx, node, ec, tb)
		}
		return h.evalElementwise(ctx, node, ec, tb)
	}

	evalErr := domain.NewEvaluationError(node.Pos, "cannot evaluate %s node", node.Kind)
	tb.Append(domain.TraceEntry{Pos: node.Pos, Severity: domain.TraceError, Err: evalErr.Error()})
	return domain.Value{}, evalErr
}

// atomValue maps a literal onto the value union. String literals and
// bare symbols evaluate alike: opaque symbol data.
func atomValue(node *lang.Node) domain.Value {
	switch {
	case node.Number != nil:
		return domain.NumberValue(*node.Number)
	case node.Str != nil:
		return domain.SymbolValue(*node.Str)
	case node.Bool != nil:
		return domain.BoolValue(*node.Bool)
	}
	return domain.Value{}
}

func (h *dslEvaluatorHandler) evalElementwise(ctx context.Context, node *lang.Node, ec *EvalContext, tb *domain.TraceBuilder) (domain.Value, error) {
	results := make([]domain.Value, 0, len(node.Children))
	for _, child := range node.Children {
		v, err := h.eval(ctx, child, ec, tb)
		if err != nil {
			tb.Append(domain.TraceEntry{Pos: node.Pos, Severity: domain.TraceError, Err: err.Error()})
			return domain.Value{}, err
		}
		results = append(results, v)
	}

	v := domain.ListValue(results)
	tb.Append(domain.TraceEntry{Pos: node.Pos, Result: v.String()})
	return v, nil
}

// mapKeySentinel replaces null/absent map keys so legacy data shapes
// evaluate instead of erroring. Its use is recorded as a low-severity
// trace event.
const mapKeySentinel = "unknown"

func (h *dslEvaluatorHandler) evalMapLiteral(ctx context.Context, node *lang.Node, ec *EvalContext, tb *domain.TraceBuilder) (domain.Value, error) {
	frag := domain.NewPortfolioFragment(node.Pos)

	for i := 0; i+1 < len(node.Children); i += 2 {
		keyNode := node.Children[i]
		valNode := node.Children[i+1]

		keyValue, err := h.eval(ctx, keyNode, ec, tb)
		if err != nil {
			tb.Append(domain.TraceEntry{Pos: node.Pos, Severity: domain.TraceError, Err: err.Error()})
			return domain.Value{}, err
		}
		key, usedSentinel, err := coerceMapKey(keyValue)
		if err != nil {
			evalErr := domain.NewEvaluationError(keyNode.Pos, "%s", err.Error())
			tb.Append(domain.TraceEntry{Pos: node.Pos, Severity: domain.TraceError, Err: evalErr.Error()})
			return domain.Value{}, evalErr
		}
		if usedSentinel {
			logger.FromContext(ctx).Debugw("null map key coerced to sentinel", "pos", keyNode.Pos.String())
			tb.Append(domain.TraceEntry{
				Pos:      keyNode.Pos,
				Severity: domain.TraceWarn,
				Result:   "null map key coerced to \"" + mapKeySentinel + "\"",
			})
		}

		value, err := h.eval(ctx, valNode, ec, tb)
		if err != nil {
			tb.Append(domain.TraceEntry{Pos: node.Pos, Severity: domain.TraceError, Err: err.Error()})
			return domain.Value{}, err
		}
		if value.Kind != domain.ValueNumber {
			evalErr := domain.NewEvaluationError(valNode.Pos, "map literal value for key %q must be a number, got %s", key, value.Kind)
			tb.Append(domain.TraceEntry{Pos: node.Pos, Severity: domain.TraceError, Err: evalErr.Error()})
			return domain.Value{}, evalErr
		}

		frag.AddWeight(key, value.Num)
	}

	v := domain.FragmentValue(frag)
	tb.Append(domain.TraceEntry{Pos: node.Pos, Result: v.String()})
	return v, nil
}

// coerceMapKey turns any evaluated key into a string. nil and empty
// keys map to the sentinel rather than erroring.
func coerceMapKey(v domain.Value) (key string, usedSentinel bool, err error) {
	switch v.Kind {
	case domain.ValueSymbol:
		name := v.Symbol
		if name == "nil" || name == "" {
			return mapKeySentinel, true, nil
		}
		if name[0] == ':' {
			name = name[1:]
		}
		if name == "" {
			return mapKeySentinel, true, nil
		}
		return name, false, nil
	case domain.ValueNumber:
		return v.Num.String(), false, nil
	case domain.ValueBool:
		if v.Bool {
			return "true", false, nil
		}
		return "false", false, nil
	}
	return "", false, errors.New("cannot use " + v.Kind.String() + " as map key")
}

func (h *dslEvaluatorHandler) apply(ctx context.Context, node *lang.Node, ec *EvalContext, tb *domain.TraceBuilder) (domain.Value, error) {
	head := node.Children[0]
	argNodes := node.Children[1:]

	op, ok := h.registry[head.Name]
	if !ok {
		evalErr := domain.NewEvaluationError(head.Pos, "unknown operator %q", head.Name)
		tb.Append(domain.TraceEntry{Pos: head.Pos, Operator: head.Name, Severity: domain.TraceError, Err: evalErr.Error()})
		return domain.Value{}, evalErr
	}

	if len(argNodes) < op.minArgs || (op.maxArgs >= 0 && len(argNodes) > op.maxArgs) {
		evalErr := domain.NewEvaluationError(node.Pos, "operator %q expects %s arguments, got %d", op.name, op.arityDescription(), len(argNodes))
		tb.Append(domain.TraceEntry{Pos: node.Pos, Operator: op.name, Severity: domain.TraceError, Err: evalErr.Error()})
		return domain.Value{}, evalErr
	}

	inv := &invocation{
		node:     node,
		argNodes: argNodes,
		evalCtx:  ec,
		trace:    tb,
		eval: func(ctx context.Context, n *lang.Node) (domain.Value, error) {
			return h.eval(ctx, n, ec, tb)
		},
	}

	// lazy operators control their own argument evaluation order
	if !op.lazy {
		for _, argNode := range argNodes {
			v, err := h.eval(ctx, argNode, ec, tb)
			if err != nil {
				tb.Append(domain.TraceEntry{Pos: node.Pos, Operator: op.name, Severity: domain.TraceError, Err: err.Error()})
				return domain.Value{}, err
			}
			inv.args = append(inv.args, v)
		}
	}

	result, err := op.fn(ctx, inv)
	if err != nil {
		evalErr := asEvaluationError(err, node)
		tb.Append(domain.TraceEntry{
			Pos:      node.Pos,
			Operator: op.name,
			Inputs:   renderValues(inv.args),
			Severity: domain.TraceError,
			Err:      evalErr.Error(),
		})
		return domain.Value{}, evalErr
	}

	tb.Append(domain.TraceEntry{
		Pos:         node.Pos,
		Operator:    op.name,
		Inputs:      renderValues(inv.args),
		Result:      result.String(),
		BranchTaken: inv.branchTaken,
	})
	return result, nil
}

// asEvaluationError attaches the application node's position to errors
// raised inside operator bodies, preserving already-positioned ones.
func asEvaluationError(err error, node *lang.Node) *domain.EvaluationError {
	var evalErr *domain.EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr
	}
	return domain.NewEvaluationError(node.Pos, "%s", err.Error())
}

func renderValues(values []domain.Value) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.String())
	}
	return out
}
