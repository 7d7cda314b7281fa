// Package store persists JobExecution records. Implementations must hand
// out defensive copies and enforce two invariants the engine relies on:
// request ids are unique across records, and updates are compare-and-set
// on the record version.
package store

import (
	"context"
	"errors"

	"github.com/goliatone/go-orchestrator"
)

var (
	// ErrNotFound indicates no record matches the lookup.
	ErrNotFound = errors.New("execution not found")
	// ErrDuplicateRequest indicates the request id is already tracked.
	ErrDuplicateRequest = errors.New("request already tracked")
	// ErrVersionConflict indicates a compare-and-set update lost a race.
	ErrVersionConflict = errors.New("execution version conflict")
)

// ListOptions filters and pages the listing query surface.
type ListOptions struct {
	RequestID string
	Status    orchestrator.Status
	Page      int
	PerPage   int
}

// Store is the execution record boundary. ListDue returns every record the
// reconciliation loop must look at: pending, running or retry_pending.
type Store interface {
	Create(ctx context.Context, rec *orchestrator.JobExecution) error
	Get(ctx context.Context, id string) (*orchestrator.JobExecution, error)
	GetByRequestID(ctx context.Context, requestID string) (*orchestrator.JobExecution, error)
	List(ctx context.Context, opts ListOptions) ([]*orchestrator.JobExecution, int, error)
	ListDue(ctx context.Context) ([]*orchestrator.JobExecution, error)
	Update(ctx context.Context, rec *orchestrator.JobExecution, expectedVersion int) error
}

func normalizeListOptions(opts ListOptions) ListOptions {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = 50
	}
	if opts.PerPage > 500 {
		opts.PerPage = 500
	}
	return opts
}
