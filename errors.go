package orchestrator

import (
	"github.com/goliatone/go-errors"
)

const (
	// TextCodeBackendUnavailable tags transient transport faults (5xx,
	// timeout, connection failure) from a backend call.
	TextCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	// TextCodeBackendRejected tags outright payload rejections (4xx).
	TextCodeBackendRejected = "BACKEND_REJECTED"
)

// WrapTransport marks err as a transient backend transport fault.
func WrapTransport(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryExternal, msg).
		WithTextCode(TextCodeBackendUnavailable)
}

// NewRejected builds a non-transient backend rejection error.
func NewRejected(msg string, meta map[string]any) error {
	e := errors.New(msg, errors.CategoryBadInput).
		WithTextCode(TextCodeBackendRejected)
	if len(meta) > 0 {
		e = e.WithMetadata(meta)
	}
	return e
}

// IsTransient reports whether err was tagged as a transport fault. Adapters
// use it to decide their inner retry; the engine's launch-retry policy does
// NOT consult it — rejections consume retry attempts exactly like transport
// faults, bounded by the attempt ceiling. That mirrors the upstream design
// rather than silently classifying 4xx as fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == TextCodeBackendUnavailable
	}
	return false
}
