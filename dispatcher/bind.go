package dispatcher

import (
	"context"

	"github.com/goliatone/go-orchestrator"
	"github.com/goliatone/go-orchestrator/engine"
	"github.com/goliatone/go-orchestrator/runner"
)

// BindRequestConsumer subscribes the engine to inbound request-accepted
// events, making it the bus consumer that starts tracking.
func BindRequestConsumer(d *Dispatcher, eng *engine.Engine, runnerOpts ...runner.Option) Subscription {
	return Subscribe(d, func(ctx context.Context, msg orchestrator.RequestAccepted) error {
		_, err := eng.HandleRequest(ctx, msg)
		return err
	}, runnerOpts...)
}
