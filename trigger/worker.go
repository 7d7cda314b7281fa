package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-orchestrator/engine"
)

// Worker ticks the engine's reconciliation pass at a fixed cadence.
type Worker struct {
	scheduler *Scheduler
	engine    *engine.Engine
	cadence   time.Duration
	handle    Handle
}

// NewWorker wires the engine to a scheduler. A nil scheduler gets a private
// one with default options.
func NewWorker(eng *engine.Engine, cadence time.Duration, scheduler *Scheduler) *Worker {
	if scheduler == nil {
		scheduler = NewScheduler()
	}
	return &Worker{
		scheduler: scheduler,
		engine:    eng,
		cadence:   cadence,
	}
}

// Start schedules the reconcile job and starts the clock.
func (w *Worker) Start(ctx context.Context) error {
	if w.engine == nil {
		return fmt.Errorf("worker has no engine")
	}
	handle, err := w.scheduler.ScheduleFunc(CadenceExpression(w.cadence), w.engine.Reconcile)
	if err != nil {
		return err
	}
	w.handle = handle
	return w.scheduler.Start(ctx)
}

// Stop halts the clock. In-flight reconcile passes run to completion.
func (w *Worker) Stop(ctx context.Context) error {
	return w.scheduler.Stop(ctx)
}

// Handle exposes the reconcile job's lifecycle handle, nil before Start.
func (w *Worker) Handle() Handle {
	return w.handle
}
