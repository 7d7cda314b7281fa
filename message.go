package orchestrator

import (
	"time"

	"github.com/goliatone/go-errors"
)

// Message is the contract bus payloads must implement.
type Message interface {
	Type() string
	Validate() error
}

// RequestAccepted is the inbound event that starts tracking: the catalog
// service accepted a user request and wants it executed on a backend.
type RequestAccepted struct {
	RequestID        string         `json:"request_id"`
	OfferID          string         `json:"offer_id,omitempty"`
	FormDefinitionID string         `json:"form_definition_id,omitempty"`
	Target           TargetType     `json:"target"`
	ResourceType     string         `json:"resource_type,omitempty"`
	ResourceID       string         `json:"resource_id"`
	UserID           string         `json:"user_id,omitempty"`
	FormData         map[string]any `json:"form_data,omitempty"`
	CreatedAt        time.Time      `json:"created_at,omitempty"`
}

func (m RequestAccepted) Type() string { return "request.accepted" }

func (m RequestAccepted) Validate() error {
	if m.RequestID == "" {
		return errors.New("request id is required", errors.CategoryValidation).
			WithTextCode("MISSING_REQUEST_ID")
	}
	if !m.Target.Valid() {
		return errors.New("unknown target type", errors.CategoryValidation).
			WithTextCode("UNKNOWN_TARGET").
			WithMetadata(map[string]any{"target": string(m.Target)})
	}
	if m.ResourceID == "" {
		return errors.New("resource id is required", errors.CategoryValidation).
			WithTextCode("MISSING_RESOURCE_ID")
	}
	// resource type is an AWX-only discriminator
	if m.Target == TargetAWX && m.ResourceType == "" {
		return errors.New("resource type is required for awx targets", errors.CategoryValidation).
			WithTextCode("MISSING_RESOURCE_TYPE")
	}
	if m.Target == TargetOO && m.ResourceType != "" {
		return errors.New("resource type must be absent for oo targets", errors.CategoryValidation).
			WithTextCode("UNEXPECTED_RESOURCE_TYPE")
	}
	return nil
}

// StatusUpdate is the outbound event consumed by the request ledger. It is
// the engine's only externally observable side effect.
type StatusUpdate struct {
	RequestID        string       `json:"request_id"`
	Status           StatusCode   `json:"status"`
	ResultDetail     ResultDetail `json:"result_detail,omitempty"`
	RawBackendStatus string       `json:"raw_backend_status,omitempty"`
	BackendJobID     string       `json:"backend_job_id,omitempty"`
	ErrorMessage     string       `json:"error_message,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (m StatusUpdate) Type() string { return "request.status_updated" }

func (m StatusUpdate) Validate() error {
	if m.RequestID == "" {
		return errors.New("request id is required", errors.CategoryValidation).
			WithTextCode("MISSING_REQUEST_ID")
	}
	switch m.Status {
	case CodeRunning, CodeSuccess, CodeFailed:
		return nil
	default:
		return errors.New("unknown status code", errors.CategoryValidation).
			WithTextCode("UNKNOWN_STATUS_CODE").
			WithMetadata(map[string]any{"status": int(m.Status)})
	}
}
