// Package dispatcher is the in-process message bus tying the transport edge
// to the engine: inbound request-accepted events fan in, outbound status
// events fan out to whoever subscribed.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-orchestrator"
	"github.com/goliatone/go-orchestrator/runner"
)

// ErrNoHandlers is returned when a message type has no subscribers.
var ErrNoHandlers = errors.New("no handlers registered")

// Dispatcher routes messages to subscribed handlers by message type.
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[string][]any
	exitOnErr bool
}

type Option func(*Dispatcher)

// WithExitOnError stops a dispatch at the first failing handler instead of
// collecting errors across all of them.
func WithExitOnError() Option {
	return func(d *Dispatcher) {
		d.exitOnErr = true
	}
}

// New builds a dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string][]any),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Default is the process-wide dispatcher instance.
var Default = New()

func (d *Dispatcher) register(msgType string, handler any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgType] = append(d.handlers[msgType], handler)
}

func (d *Dispatcher) get(msgType string) []any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[msgType]
}

// HandlerFunc handles one message of type T.
type HandlerFunc[T orchestrator.Message] func(context.Context, T) error

type wrapper[T orchestrator.Message] struct {
	runner *runner.Handler
	fn     HandlerFunc[T]
}

// Subscribe registers fn for T's message type. The runner options configure
// per-delivery retry; none means a single attempt.
func Subscribe[T orchestrator.Message](d *Dispatcher, fn HandlerFunc[T], runnerOpts ...runner.Option) Subscription {
	var msg T
	w := &wrapper[T]{
		runner: runner.NewHandler(runnerOpts...),
		fn:     fn,
	}
	d.register(msg.Type(), w)
	return &subscription{
		dispatcher: d,
		msgType:    msg.Type(),
		handler:    w,
	}
}

// Dispatch validates msg and runs every subscribed handler for its type.
// Handler failures are joined unless the dispatcher exits on first error.
func Dispatch[T orchestrator.Message](ctx context.Context, d *Dispatcher, msg T) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	wrappers, err := typedHandlers[T](d)
	if err != nil {
		return err
	}

	var errs error
	for _, w := range wrappers {
		w := w
		runErr := w.runner.Run(ctx, func(ctx context.Context) error {
			return w.fn(ctx, msg)
		})
		if runErr != nil {
			wrapped := fmt.Errorf("handler failed for type %s: %w", msg.Type(), runErr)
			if d.exitOnErr {
				return wrapped
			}
			errs = errors.Join(errs, wrapped)
		}
	}
	return errs
}

func typedHandlers[T orchestrator.Message](d *Dispatcher) ([]*wrapper[T], error) {
	var msg T
	handlers := d.get(msg.Type())
	if len(handlers) == 0 {
		return nil, fmt.Errorf("%w for message type %s", ErrNoHandlers, msg.Type())
	}

	typed := make([]*wrapper[T], 0, len(handlers))
	for _, h := range handlers {
		w, ok := h.(*wrapper[T])
		if !ok {
			return nil, fmt.Errorf("handler does not match message type %s", msg.Type())
		}
		typed = append(typed, w)
	}
	return typed, nil
}
