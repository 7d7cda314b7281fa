// Package engine implements the job execution lifecycle: create a tracked
// record per accepted request, launch it on its backend with bounded retry,
// and reconcile running records against backend status until they settle.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-orchestrator"
	"github.com/goliatone/go-orchestrator/backend"
	"github.com/goliatone/go-orchestrator/runner"
	"github.com/goliatone/go-orchestrator/store"
	"github.com/goliatone/go-orchestrator/translate"
)

// Publisher receives the engine's outbound status events. The dispatcher
// package provides the production implementation.
type Publisher interface {
	Publish(ctx context.Context, update orchestrator.StatusUpdate) error
}

type Option func(*Engine)

// WithAdapter registers the adapter serving a backend target.
func WithAdapter(target orchestrator.TargetType, adapter backend.Adapter) Option {
	return func(e *Engine) {
		e.adapters[target] = adapter
	}
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

func WithLogger(l orchestrator.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func WithLaunchRetry(cfg orchestrator.LaunchRetryConfig) Option {
	return func(e *Engine) {
		e.launch = cfg
	}
}

func WithPolling(cfg orchestrator.PollingConfig) Option {
	return func(e *Engine) {
		e.polling = cfg
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine is the orchestrator core. It is the sole writer of execution
// records; Reconcile passes are serialized so two overlapping ticks never
// double-poll the same record.
type Engine struct {
	mu sync.Mutex

	store     store.Store
	adapters  map[orchestrator.TargetType]backend.Adapter
	publisher Publisher
	launch    orchestrator.LaunchRetryConfig
	polling   orchestrator.PollingConfig
	logger    orchestrator.Logger
	now       func() time.Time
}

// New builds an engine over the given store. Retry and polling bounds
// default to DefaultConfig.
func New(st store.Store, opts ...Option) *Engine {
	defaults := orchestrator.DefaultConfig()
	e := &Engine{
		store:    st,
		adapters: make(map[orchestrator.TargetType]backend.Adapter),
		launch:   defaults.LaunchRetry,
		polling:  defaults.Polling,
		now:      time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	e.logger = orchestrator.LoggerWithFields(e.logger, map[string]any{"component": "engine"})
	return e
}

// Create validates the accepted request, translates its form data into the
// backend payload and persists a pending record. A request id seen before
// returns the existing record untouched, making delivery retries safe.
func (e *Engine) Create(ctx context.Context, msg orchestrator.RequestAccepted) (*orchestrator.JobExecution, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	payload := e.buildPayload(msg)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payload not serializable: %w", err)
	}

	now := e.now().UTC()
	rec := &orchestrator.JobExecution{
		ID:               uuid.NewString(),
		RequestID:        msg.RequestID,
		Target:           msg.Target,
		ResourceType:     msg.ResourceType,
		ResourceID:       msg.ResourceID,
		ExecutionPayload: encoded,
		Status:           orchestrator.StatusPending,
		CreatedAt:        now,
	}

	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateRequest) {
			existing, getErr := e.store.GetByRequestID(ctx, msg.RequestID)
			if getErr != nil {
				return nil, getErr
			}
			e.logger.Info("request %s already tracked as execution %s", msg.RequestID, existing.ID)
			return existing, nil
		}
		return nil, err
	}
	e.logger.Info("tracking request %s as execution %s on %s", msg.RequestID, rec.ID, rec.Target)
	return rec, nil
}

// HandleRequest is the bus entry point: create the record, then attempt the
// first launch. Launch failures do not bubble up; they land on the record as
// retry state and the reconciliation loop takes over.
func (e *Engine) HandleRequest(ctx context.Context, msg orchestrator.RequestAccepted) (*orchestrator.JobExecution, error) {
	rec, err := e.Create(ctx, msg)
	if err != nil {
		return nil, err
	}
	if rec.Status != orchestrator.StatusPending {
		return rec, nil
	}
	if err := e.launchOnce(ctx, rec); err != nil {
		e.logger.Warn("initial launch of execution %s deferred: %v", rec.ID, err)
	}
	return rec, nil
}

// Reconcile runs one pass over every non-terminal record: due retries are
// relaunched, running records are polled, exhausted ones are failed. Passes
// are serialized; a tick that fires while one is still running waits.
func (e *Engine) Reconcile(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.store.ListDue(ctx)
	if err != nil {
		return fmt.Errorf("reconcile list failed: %w", err)
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.reconcileOne(ctx, rec); err != nil {
			e.logger.Warn("reconcile of execution %s: %v", rec.ID, err)
		}
	}
	return nil
}

func (e *Engine) reconcileOne(ctx context.Context, rec *orchestrator.JobExecution) error {
	switch rec.Status {
	case orchestrator.StatusRetryPending:
		if rec.LaunchAttempts >= e.launch.MaxAttempts {
			return e.fail(ctx, rec, fmt.Sprintf("launch retries exhausted after %d attempts: %s",
				rec.LaunchAttempts, rec.LastLaunchError))
		}
		if e.now().Before(rec.NextLaunchAttemptAt) {
			return nil
		}
		return e.launchOnce(ctx, rec)
	case orchestrator.StatusPending, orchestrator.StatusRunning:
		// a record still pending here was created but never launched, e.g.
		// the host died mid-handle; poll fails it for the missing job id
		return e.poll(ctx, rec)
	default:
		return nil
	}
}

// launchOnce performs a single launch attempt and records the outcome.
// Success moves the record to running and publishes the first status event;
// failure schedules a backed-off retry. Exhaustion of the attempt ceiling is
// not decided here, the next reconcile pass fails the record.
func (e *Engine) launchOnce(ctx context.Context, rec *orchestrator.JobExecution) error {
	adapter, ok := e.adapters[rec.Target]
	if !ok {
		return e.fail(ctx, rec, fmt.Sprintf("no adapter registered for target %q", rec.Target))
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.ExecutionPayload, &payload); err != nil {
		return e.fail(ctx, rec, "stored payload unreadable: "+err.Error())
	}

	now := e.now().UTC()
	ack, err := adapter.Launch(ctx, payload)
	if err != nil {
		rec.LaunchAttempts++
		rec.LastLaunchError = err.Error()
		delay := runner.DelayForAttempt(e.launch.BaseDelay.Std(), e.launch.MaxDelay.Std(), rec.LaunchAttempts)
		rec.Status = orchestrator.StatusRetryPending
		rec.NextLaunchAttemptAt = now.Add(delay)
		e.logger.Warn("launch attempt %d/%d for execution %s failed, retrying in %s: %v",
			rec.LaunchAttempts, e.launch.MaxAttempts, rec.ID, delay, err)
		return e.persist(ctx, rec)
	}

	rec.Status = orchestrator.StatusRunning
	rec.BackendJobID = ack.JobID
	rec.ExecutionResponse = ack.Raw
	rec.SentAt = now
	rec.LastLaunchError = ""
	rec.NextLaunchAttemptAt = time.Time{}
	if err := e.persist(ctx, rec); err != nil {
		return err
	}
	e.logger.Info("execution %s launched on %s as job %s", rec.ID, rec.Target, rec.BackendJobID)
	e.publish(ctx, rec, orchestrator.CodeRunning, "")
	return nil
}

// poll reads the backend status once, respecting the per-record throttle and
// the hard attempt ceiling. Every poll counts against the ceiling, faulted
// ones included, so a permanently unreachable backend still terminates.
func (e *Engine) poll(ctx context.Context, rec *orchestrator.JobExecution) error {
	now := e.now().UTC()
	if !rec.LastPolledAt.IsZero() && now.Sub(rec.LastPolledAt) < e.polling.Throttle.Std() {
		return nil
	}
	if rec.PollingAttempts >= e.polling.MaxAttempts {
		return e.fail(ctx, rec, "polling timeout")
	}
	if rec.BackendJobID == "" {
		return e.fail(ctx, rec, "no execution id for polling")
	}

	adapter, ok := e.adapters[rec.Target]
	if !ok {
		return e.fail(ctx, rec, fmt.Sprintf("no adapter registered for target %q", rec.Target))
	}

	raw := adapter.Status(ctx, rec.BackendJobID)
	rec.PollingAttempts++
	rec.LastPolledAt = now
	rec.BackendStatusRaw = raw

	switch classifyStatus(raw) {
	case outcomeInProgress:
		return e.persist(ctx, rec)
	case outcomeSuccess:
		rec.Status = orchestrator.StatusSuccess
		rec.CompletedAt = now
		detail := e.resultDetail(ctx, rec)
		if err := e.persist(ctx, rec); err != nil {
			return err
		}
		e.logger.Info("execution %s succeeded with backend status %q", rec.ID, raw)
		e.publish(ctx, rec, orchestrator.CodeSuccess, detail)
		return nil
	case outcomeFailure:
		return e.fail(ctx, rec, "execution failed with status: "+raw)
	default:
		// StatusUnknown or a vocabulary we have not seen; keep the record
		// running and let the next tick retry, but the attempt still counts.
		e.logger.Warn("execution %s reported unrecognized status %q", rec.ID, raw)
		return e.persist(ctx, rec)
	}
}

// resultDetail fetches the fine-grained outcome for backends that have one.
func (e *Engine) resultDetail(ctx context.Context, rec *orchestrator.JobExecution) orchestrator.ResultDetail {
	adapter, ok := e.adapters[rec.Target]
	if !ok {
		return ""
	}
	raw, ok := adapter.ResultDetail(ctx, rec.BackendJobID)
	if !ok {
		return ""
	}
	detail, ok := mapResultDetail(raw)
	if !ok {
		e.logger.Warn("execution %s reported unrecognized result type %q", rec.ID, raw)
		return ""
	}
	return detail
}

func (e *Engine) fail(ctx context.Context, rec *orchestrator.JobExecution, msg string) error {
	rec.Status = orchestrator.StatusFailed
	rec.ErrorMessage = msg
	rec.CompletedAt = e.now().UTC()
	if err := e.persist(ctx, rec); err != nil {
		return err
	}
	e.logger.Error("execution %s failed: %s", rec.ID, msg)
	e.publish(ctx, rec, orchestrator.CodeFailed, "")
	return nil
}

// persist writes the record through the store's versioned update. A version
// conflict means another writer got there first; the record is left for the
// next tick to reload.
func (e *Engine) persist(ctx context.Context, rec *orchestrator.JobExecution) error {
	err := e.store.Update(ctx, rec, rec.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		e.logger.Warn("execution %s has a concurrent writer, reloading next tick", rec.ID)
	}
	return err
}

// publish emits one status event. Events fire only after the state change
// is durably persisted, so a lost race never produces a stray event.
func (e *Engine) publish(ctx context.Context, rec *orchestrator.JobExecution, code orchestrator.StatusCode, detail orchestrator.ResultDetail) {
	if e.publisher == nil {
		return
	}
	update := orchestrator.StatusUpdate{
		RequestID:        rec.RequestID,
		Status:           code,
		ResultDetail:     detail,
		RawBackendStatus: rec.BackendStatusRaw,
		BackendJobID:     rec.BackendJobID,
		ErrorMessage:     rec.ErrorMessage,
		UpdatedAt:        e.now().UTC(),
	}
	if err := e.publisher.Publish(ctx, update); err != nil {
		e.logger.Error("status event for request %s not delivered: %v", rec.RequestID, err)
	}
}

func (e *Engine) buildPayload(msg orchestrator.RequestAccepted) map[string]any {
	if msg.Target == orchestrator.TargetOO {
		return translate.ToOO(msg.FormData, msg.ResourceID)
	}
	return translate.ToAWX(msg.FormData, msg.ResourceType, msg.ResourceID)
}
