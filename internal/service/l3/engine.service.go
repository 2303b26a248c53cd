package l3_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stratengine/internal/cache"
	"stratengine/internal/db/models/postgres/public/model"
	"stratengine/internal/domain"
	"stratengine/internal/lang"
	"stratengine/internal/logger"
	"stratengine/internal/repository"
	l1_service "stratengine/internal/service/l1"
	l2_service "stratengine/internal/service/l2"
	"stratengine/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCashSymbol is where a failed evaluation parks the portfolio.
const DefaultCashSymbol = "BIL"

// EvaluationRequest is one ask to turn a strategy into an allocation.
// Source may be given inline, pre-parsed as AST, or resolved from a
// saved strategy by id.
type EvaluationRequest struct {
	CorrelationID   uuid.UUID
	Source          string
	AST             *lang.Node
	SavedStrategyID *uuid.UUID

	// AsOf defaults to now. Universe overrides the engine-wide
	// candidate universe for this request when non-empty.
	AsOf     time.Time
	Universe []string
}

type EvaluationResult struct {
	Allocation   *domain.StrategyAllocation
	Trace        domain.Trace
	FromFallback bool
	Duplicate    bool
}

// EngineService is the single entry point for strategy evaluation. It
// owns request deduplication, the fail-safe cash allocation, event
// publication and the audit row, so callers get exactly one allocation
// per accepted request no matter how the evaluation went.
type EngineService interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error)
}

type EngineServiceOpts struct {
	Indicators      l1_service.IndicatorService
	MarketData      repository.MarketDataPort
	Publisher       domain.EventPublisher
	SavedStrategies repository.SavedStrategyRepository // optional
	Runs            repository.EvaluationRunRepository // optional
	Requests        *cache.RequestCache
	Universe        []string
	CashSymbol      string
}

type engineServiceHandler struct {
	indicators      l1_service.IndicatorService
	marketData      repository.MarketDataPort
	evaluator       l2_service.DSLEvaluator
	allocations     l2_service.AllocationService
	publisher       domain.EventPublisher
	savedStrategies repository.SavedStrategyRepository
	runs            repository.EvaluationRunRepository
	requests        *cache.RequestCache
	universe        []string
	cashSymbol      string
}

func NewEngineService(opts EngineServiceOpts) EngineService {
	cashSymbol := opts.CashSymbol
	if cashSymbol == "" {
		cashSymbol = DefaultCashSymbol
	}
	requests := opts.Requests
	if requests == nil {
		requests = cache.NewRequestCache(cache.DefaultCapacity, cache.DefaultTTL)
	}
	return &engineServiceHandler{
		indicators:      opts.Indicators,
		marketData:      opts.MarketData,
		evaluator:       l2_service.NewDSLEvaluator(),
		allocations:     l2_service.NewAllocationService(),
		publisher:       opts.Publisher,
		savedStrategies: opts.SavedStrategies,
		runs:            opts.Runs,
		requests:        requests,
		universe:        opts.Universe,
		cashSymbol:      cashSymbol,
	}
}

func (h *engineServiceHandler) Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error) {
	log := logger.FromContext(ctx)

	if req.CorrelationID == uuid.Nil {
		req.CorrelationID = uuid.New()
	}
	if req.AsOf.IsZero() {
		req.AsOf = time.Now().UTC()
	}

	// resolve before recording the id: a transient repository failure
	// must leave the correlation id free for redelivery
	source, cashSymbol, err := h.resolveSource(req)
	if err != nil {
		return nil, err
	}

	if !h.requests.Add(req.CorrelationID) {
		log.Debugw("suppressed duplicate evaluation request", "correlationID", req.CorrelationID)
		return &EvaluationResult{Duplicate: true}, nil
	}

	tb := domain.NewTraceBuilder()
	allocation, fromFallback := h.run(ctx, source, req, cashSymbol, tb)
	trace := tb.Build()

	h.publish(ctx, req.CorrelationID, trace, *allocation)
	h.persistRun(ctx, req, allocation, trace, fromFallback)

	return &EvaluationResult{
		Allocation:   allocation,
		Trace:        trace,
		FromFallback: fromFallback,
	}, nil
}

// resolveSource prefers inline source; otherwise loads the saved
// strategy, which may also carry its own cash symbol.
func (h *engineServiceHandler) resolveSource(req EvaluationRequest) (string, string, error) {
	if req.AST != nil || req.Source != "" {
		return req.Source, h.cashSymbol, nil
	}
	if req.SavedStrategyID == nil {
		return "", "", fmt.Errorf("evaluation request %s has neither source nor saved strategy id", req.CorrelationID)
	}
	if h.savedStrategies == nil {
		return "", "", fmt.Errorf("no saved strategy repository configured to resolve %s", *req.SavedStrategyID)
	}

	strategy, err := h.savedStrategies.Get(*req.SavedStrategyID)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve strategy source: %w", err)
	}

	cashSymbol := h.cashSymbol
	if strategy.CashSymbol != nil && *strategy.CashSymbol != "" {
		cashSymbol = *strategy.CashSymbol
	}
	return strategy.StrategySource, cashSymbol, nil
}

// run always comes back with an allocation: the evaluated one, or the
// fail-safe cash allocation with the failure recorded in the trace.
func (h *engineServiceHandler) run(ctx context.Context, source string, req EvaluationRequest, cashSymbol string, tb *domain.TraceBuilder) (*domain.StrategyAllocation, bool) {
	node := req.AST
	if node == nil {
		parsed, err := lang.Parse(source)
		if err != nil {
			return h.fallback(ctx, req, cashSymbol, tb, err), true
		}
		node = parsed
	}

	universe := req.Universe
	if len(universe) == 0 {
		universe = h.universe
	}
	evalCtx := l2_service.NewEvalContext(l2_service.EvalContextOpts{
		Indicators: h.indicators,
		MarketData: h.marketData,
		AsOf:       req.AsOf,
		Universe:   universe,
	})

	value, err := h.evaluator.Evaluate(ctx, node, evalCtx, tb)
	if err != nil {
		return h.fallback(ctx, req, cashSymbol, tb, err), true
	}

	allocation, err := h.allocations.ToAllocation(value, req.CorrelationID, req.AsOf)
	if err != nil {
		return h.fallback(ctx, req, cashSymbol, tb, err), true
	}

	return allocation, false
}

// fallback records the failure as the final trace entry and allocates
// 100% to the cash symbol.
func (h *engineServiceHandler) fallback(ctx context.Context, req EvaluationRequest, cashSymbol string, tb *domain.TraceBuilder, cause error) *domain.StrategyAllocation {
	logger.FromContext(ctx).Warnw("evaluation failed, allocating to cash",
		"correlationID", req.CorrelationID,
		"cashSymbol", cashSymbol,
		"error", cause.Error(),
	)

	entry := domain.TraceEntry{
		Severity: domain.TraceError,
		Result:   fmt.Sprintf("fallback: 100%% %s", cashSymbol),
		Err:      cause.Error(),
	}

	var parseErr *lang.ParseError
	var evalErr *domain.EvaluationError
	switch {
	case errors.As(cause, &parseErr):
		entry.Pos = lang.Pos{Line: parseErr.Line, Col: parseErr.Col}
	case errors.As(cause, &evalErr):
		entry.Pos = evalErr.Pos
	}
	tb.Append(entry)

	return &domain.StrategyAllocation{
		CorrelationID: req.CorrelationID,
		AsOf:          req.AsOf,
		Weights: map[string]decimal.Decimal{
			cashSymbol: decimal.NewFromInt(1),
		},
	}
}

// publish emits the evaluation events. The engine is the root of this
// causal chain, so CausationID echoes the request's CorrelationID.
// Publish failures are logged, not surfaced: the allocation already
// exists and the caller should get it.
func (h *engineServiceHandler) publish(ctx context.Context, correlationID uuid.UUID, trace domain.Trace, allocation domain.StrategyAllocation) {
	if h.publisher == nil {
		return
	}
	log := logger.FromContext(ctx)
	now := time.Now().UTC()

	evaluated := domain.StrategyEvaluated{
		EventID:       uuid.New(),
		CorrelationID: correlationID,
		CausationID:   correlationID,
		Timestamp:     now,
		Trace:         trace,
	}
	if err := h.publisher.Publish(ctx, evaluated); err != nil {
		log.Errorw("failed to publish event", "event", evaluated.EventName(), "error", err)
	}

	produced := domain.PortfolioAllocationProduced{
		EventID:       uuid.New(),
		CorrelationID: correlationID,
		CausationID:   correlationID,
		Timestamp:     now,
		Allocation:    allocation,
	}
	if err := h.publisher.Publish(ctx, produced); err != nil {
		log.Errorw("failed to publish event", "event", produced.EventName(), "error", err)
	}
}

// persistRun writes the audit row. Best effort: a dead database must
// not fail an evaluation that already produced an allocation.
func (h *engineServiceHandler) persistRun(ctx context.Context, req EvaluationRequest, allocation *domain.StrategyAllocation, trace domain.Trace, fromFallback bool) {
	if h.runs == nil {
		return
	}
	log := logger.FromContext(ctx)

	status := repository.EvaluationRunStatusCompleted
	var errorMessage *string
	if fromFallback {
		status = repository.EvaluationRunStatusFallback
		if n := len(trace.Entries); n > 0 && trace.Entries[n-1].Err != "" {
			errorMessage = util.StringPointer(trace.Entries[n-1].Err)
		}
	}

	var allocationJSON *string
	if raw, err := json.Marshal(allocation); err != nil {
		log.Errorw("failed to marshal allocation for audit row", "error", err)
	} else {
		allocationJSON = util.StringPointer(string(raw))
	}

	run := model.EvaluationRun{
		CorrelationID:   req.CorrelationID,
		SavedStrategyID: req.SavedStrategyID,
		Status:          status,
		ErrorMessage:    errorMessage,
		Allocation:      allocationJSON,
	}
	if err := h.runs.Add(run); err != nil {
		log.Errorw("failed to persist evaluation run", "correlationID", req.CorrelationID, "error", err)
	}
}
