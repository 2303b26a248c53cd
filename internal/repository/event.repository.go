package repository

import (
	"context"
	"sync"

	"stratengine/internal/domain"
	"stratengine/internal/logger"
)

// loggingEventPublisher writes events to the structured log. It is the
// default publisher wiring when no transport is configured; delivery
// guarantees belong to whichever publisher is injected in production.
type loggingEventPublisher struct{}

func NewLoggingEventPublisher() domain.EventPublisher {
	return loggingEventPublisher{}
}

func (loggingEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	log := logger.FromContext(ctx)
	switch e := event.(type) {
	case domain.StrategyEvaluated:
		log.Infow("published event",
			"event", e.EventName(),
			"correlationID", e.CorrelationID,
			"traceEntries", len(e.Trace.Entries),
		)
	case domain.PortfolioAllocationProduced:
		log.Infow("published event",
			"event", e.EventName(),
			"correlationID", e.CorrelationID,
			"symbols", e.Allocation.Symbols(),
		)
	default:
		log.Infow("published event", "event", event.EventName())
	}
	return nil
}

// MemoryEventPublisher buffers published events in memory. Used by tests
// and the CLI evaluate command.
type MemoryEventPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewMemoryEventPublisher() *MemoryEventPublisher {
	return &MemoryEventPublisher{}
}

func (p *MemoryEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryEventPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Event, len(p.events))
	copy(out, p.events)
	return out
}
