package dispatcher

import (
	"context"
	"errors"

	"github.com/goliatone/go-orchestrator"
)

// EventPublisher adapts the dispatcher to the engine's Publisher contract.
// A status update with no subscribers is dropped silently; running without a
// ledger consumer is a valid deployment.
type EventPublisher struct {
	d *Dispatcher
}

func NewEventPublisher(d *Dispatcher) *EventPublisher {
	if d == nil {
		d = Default
	}
	return &EventPublisher{d: d}
}

func (p *EventPublisher) Publish(ctx context.Context, update orchestrator.StatusUpdate) error {
	err := Dispatch(ctx, p.d, update)
	if errors.Is(err, ErrNoHandlers) {
		return nil
	}
	return err
}
