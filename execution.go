package orchestrator

import (
	"encoding/json"
	"time"
)

// Status is the engine's canonical lifecycle vocabulary, distinct from the
// native status strings each backend reports.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusRetryPending Status = "retry_pending"
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether no further launch or poll may touch the record.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusRetryPending, StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// StatusCode is the wire code published to the request ledger. Pending is
// never published; retry_pending is reported as running from the outside.
type StatusCode int

const (
	CodeRunning StatusCode = 1
	CodeSuccess StatusCode = 2
	CodeFailed  StatusCode = 3
)

// Code maps a lifecycle state to its published wire code. The boolean is
// false for states that are never published.
func (s Status) Code() (StatusCode, bool) {
	switch s {
	case StatusRunning, StatusRetryPending:
		return CodeRunning, true
	case StatusSuccess:
		return CodeSuccess, true
	case StatusFailed:
		return CodeFailed, true
	default:
		return 0, false
	}
}

// TargetType selects which backend adapter executes the request.
type TargetType string

const (
	// TargetAWX launches playbook-style job templates.
	TargetAWX TargetType = "awx"
	// TargetOO starts flow executions.
	TargetOO TargetType = "oo"
)

// Valid reports whether t names a known backend.
func (t TargetType) Valid() bool {
	return t == TargetAWX || t == TargetOO
}

// ResultDetail is the OO-only fine-grained success sub-classification,
// orthogonal to the canonical status. AWX executions never carry one.
type ResultDetail string

const (
	ResultResolved  ResultDetail = "resolved"
	ResultDiagnosed ResultDetail = "diagnosed"
	ResultNoAction  ResultDetail = "no_action"
)

// JobExecution is the single tracked record per accepted request. The engine
// is its sole writer; every mutation goes through the store's versioned
// update so a lost race surfaces as a conflict instead of silent clobbering.
type JobExecution struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"request_id"`
	Target       TargetType `json:"target"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   string     `json:"resource_id"`

	// ExecutionPayload holds the last payload sent to the backend. It is
	// written on every launch attempt, failed ones included, for audit.
	ExecutionPayload json.RawMessage `json:"execution_payload,omitempty"`
	// ExecutionResponse holds the raw launch acknowledgement; set only on
	// launch success. Stored opaque, never parsed by the store.
	ExecutionResponse json.RawMessage `json:"execution_response,omitempty"`

	Status           Status `json:"status"`
	BackendJobID     string `json:"backend_job_id,omitempty"`
	BackendStatusRaw string `json:"backend_status_raw,omitempty"`

	LaunchAttempts      int       `json:"launch_attempts"`
	LastLaunchError     string    `json:"last_launch_error,omitempty"`
	NextLaunchAttemptAt time.Time `json:"next_launch_attempt_at,omitempty"`

	PollingAttempts int       `json:"polling_attempts"`
	LastPolledAt    time.Time `json:"last_polled_at,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	SentAt      time.Time `json:"sent_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy so store implementations can hand out records
// without sharing mutable state with the engine.
func (j *JobExecution) Clone() *JobExecution {
	if j == nil {
		return nil
	}
	cp := *j
	if j.ExecutionPayload != nil {
		cp.ExecutionPayload = append(json.RawMessage(nil), j.ExecutionPayload...)
	}
	if j.ExecutionResponse != nil {
		cp.ExecutionResponse = append(json.RawMessage(nil), j.ExecutionResponse...)
	}
	return &cp
}
