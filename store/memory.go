package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-orchestrator"
)

// Memory is a thread-safe in-memory Store, primarily for tests and
// single-process hosts that do not need durability.
type Memory struct {
	mu        sync.RWMutex
	records   map[string]*orchestrator.JobExecution
	byRequest map[string]string
}

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{
		records:   make(map[string]*orchestrator.JobExecution),
		byRequest: make(map[string]string),
	}
}

func (s *Memory) Create(_ context.Context, rec *orchestrator.JobExecution) error {
	if rec == nil || rec.ID == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRequest[rec.RequestID]; exists {
		return ErrDuplicateRequest
	}
	cp := rec.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	cp.UpdatedAt = time.Now().UTC()
	s.records[cp.ID] = cp
	s.byRequest[cp.RequestID] = cp.ID
	rec.Version = cp.Version
	rec.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *Memory) Get(_ context.Context, id string) (*orchestrator.JobExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Memory) GetByRequestID(_ context.Context, requestID string) (*orchestrator.JobExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRequest[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Memory) List(_ context.Context, opts ListOptions) ([]*orchestrator.JobExecution, int, error) {
	opts = normalizeListOptions(opts)

	s.mu.RLock()
	matched := make([]*orchestrator.JobExecution, 0, len(s.records))
	for _, rec := range s.records {
		if opts.RequestID != "" && rec.RequestID != opts.RequestID {
			continue
		}
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		matched = append(matched, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (opts.Page - 1) * opts.PerPage
	if start >= total {
		return []*orchestrator.JobExecution{}, total, nil
	}
	end := start + opts.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Memory) ListDue(_ context.Context) ([]*orchestrator.JobExecution, error) {
	s.mu.RLock()
	due := make([]*orchestrator.JobExecution, 0)
	for _, rec := range s.records {
		if rec.Status.IsTerminal() {
			continue
		}
		due = append(due, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	return due, nil
}

func (s *Memory) Update(_ context.Context, rec *orchestrator.JobExecution, expectedVersion int) error {
	if rec == nil {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	cp := rec.Clone()
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now().UTC()
	s.records[cp.ID] = cp
	rec.Version = cp.Version
	rec.UpdatedAt = cp.UpdatedAt
	return nil
}
