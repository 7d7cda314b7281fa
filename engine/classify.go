package engine

import (
	"strings"

	"github.com/goliatone/go-orchestrator"
)

// outcome buckets the backend's native status vocabulary into the moves the
// reconciliation loop can make.
type outcome int

const (
	outcomeInProgress outcome = iota
	outcomeSuccess
	outcomeFailure
	outcomeUnrecognized
)

// classifyStatus folds both backends' vocabularies into one table. AWX
// reports pending/waiting/running/successful/failed/error/canceled; OO
// reports RUNNING/COMPLETED/SYSTEM_FAILURE/CANCELED. Comparison is
// case-insensitive so the OO uppercase forms land in the same rows.
func classifyStatus(raw string) outcome {
	switch strings.ToLower(raw) {
	case "running", "pending", "waiting":
		return outcomeInProgress
	case "successful", "completed":
		return outcomeSuccess
	case "failed", "error", "canceled", "cancelled", "system_failure":
		return outcomeFailure
	default:
		return outcomeUnrecognized
	}
}

// mapResultDetail translates OO's resultStatusType into the canonical
// fine-grained outcome. Unrecognized values map to nothing rather than
// guessing.
func mapResultDetail(raw string) (orchestrator.ResultDetail, bool) {
	switch strings.ToUpper(raw) {
	case "RESOLVED":
		return orchestrator.ResultResolved, true
	case "DIAGNOSED":
		return orchestrator.ResultDiagnosed, true
	case "NO_ACTION_TAKEN":
		return orchestrator.ResultNoAction, true
	default:
		return "", false
	}
}
