package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is anything the engine can hand to the injected publisher.
// Delivery semantics (at-least-once, ordering) belong to the transport,
// not to this package.
type Event interface {
	EventName() string
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// StrategyEvaluated carries the full evaluation trace of one request,
// success or failure.
type StrategyEvaluated struct {
	EventID       uuid.UUID `json:"eventID"`
	CorrelationID uuid.UUID `json:"correlationID"`
	CausationID   uuid.UUID `json:"causationID"`
	Timestamp     time.Time `json:"timestamp"`
	Trace         Trace     `json:"trace"`
}

func (StrategyEvaluated) EventName() string {
	return "StrategyEvaluated"
}

// PortfolioAllocationProduced carries the allocation a request resolved
// to - either the evaluated result or the fail-safe cash allocation.
type PortfolioAllocationProduced struct {
	EventID       uuid.UUID          `json:"eventID"`
	CorrelationID uuid.UUID          `json:"correlationID"`
	CausationID   uuid.UUID          `json:"causationID"`
	Timestamp     time.Time          `json:"timestamp"`
	Allocation    StrategyAllocation `json:"allocation"`
}

func (PortfolioAllocationProduced) EventName() string {
	return "PortfolioAllocationProduced"
}
