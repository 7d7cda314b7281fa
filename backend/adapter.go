// Package backend holds the execution backend adapters. Each adapter owns
// its backend's auth, endpoint shape and transient-fault retry; neither
// keeps local state.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-orchestrator"
	"github.com/goliatone/go-orchestrator/runner"
)

// StatusUnknown is the sentinel returned when a status poll cannot reach the
// backend or cannot make sense of its answer. Polling must never error out;
// the reconciliation loop treats the sentinel as an unrecognized status and
// revisits the record next tick.
const StatusUnknown = "unknown"

// LaunchAck is a successful launch acknowledgement: the backend job id plus
// the raw response body, stored opaque on the execution record for audit.
type LaunchAck struct {
	JobID string
	Raw   json.RawMessage
}

// Adapter is the uniform capability both backends implement.
type Adapter interface {
	Launch(ctx context.Context, payload map[string]any) (LaunchAck, error)
	// Status returns the backend's raw status string, StatusUnknown on any
	// fault. It never returns an error.
	Status(ctx context.Context, jobID string) string
	// ResultDetail returns the fine-grained outcome where the backend has
	// one. AWX always answers ("", false).
	ResultDetail(ctx context.Context, jobID string) (string, bool)
}

// transport retry bounds for launch calls: the first try plus up to 3
// retries backed off 2s/4s/8s. This inner policy covers only transient
// faults and is nested inside the engine's own launch-retry policy.
const launchTransportRetries = 3

func launchRetryHandler() *runner.Handler {
	return runner.NewHandler(
		runner.WithMaxRetries(launchTransportRetries),
		runner.WithRetryStrategy(runner.ExponentialBackoffStrategy{
			Base:   2 * time.Second,
			Factor: 2,
			Max:    8 * time.Second,
		}),
		runner.WithRetryIf(orchestrator.IsTransient),
	)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doRequest executes the call and classifies the outcome: 2xx returns the
// body, 5xx/timeouts/connection failures are transient, any other 4xx is a
// rejection the inner retry must not repeat.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	res, err := client.Do(req)
	if err != nil {
		return nil, orchestrator.WrapTransport(err, "backend call failed")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, orchestrator.WrapTransport(err, "backend response read failed")
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return raw, nil
	case res.StatusCode >= 500 || res.StatusCode == http.StatusRequestTimeout:
		return nil, orchestrator.WrapTransport(
			fmt.Errorf("status %d: %s", res.StatusCode, truncateBody(raw)),
			"backend unavailable",
		)
	default:
		return nil, orchestrator.NewRejected(
			fmt.Sprintf("backend rejected request: status %d: %s", res.StatusCode, truncateBody(raw)),
			map[string]any{"status": res.StatusCode},
		)
	}
}

func truncateBody(raw []byte) string {
	const maxLen = 512
	if len(raw) > maxLen {
		raw = raw[:maxLen]
	}
	return string(raw)
}
