package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goliatone/go-orchestrator"
)

// OO drives an Operations Orchestration flow engine over its v1 REST API
// with basic auth. The execution summary endpoint serves both the coarse
// status and the fine-grained result type.
type OO struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   orchestrator.Logger
}

// NewOO builds an adapter from the backend section of the service config.
func NewOO(cfg orchestrator.HTTPBackendConfig, logger orchestrator.Logger) *OO {
	return &OO{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		client:   newHTTPClient(cfg.Timeout.Std()),
		logger:   orchestrator.LoggerWithFields(logger, map[string]any{"component": "oo"}),
	}
}

func (o *OO) Launch(ctx context.Context, payload map[string]any) (LaunchAck, error) {
	if flowUUID, _ := payload["flowUuid"].(string); flowUUID == "" {
		return LaunchAck{}, orchestrator.NewRejected("launch payload missing flowUuid", nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return LaunchAck{}, orchestrator.NewRejected("launch payload not serializable: "+err.Error(), nil)
	}

	var ack LaunchAck
	runErr := launchRetryHandler().Run(ctx, func(ctx context.Context) error {
		raw, err := o.send(ctx, http.MethodPost, "/api/v1/executions", body)
		if err != nil {
			o.logger.Warn("oo launch attempt failed: %v", err)
			return err
		}
		executionID := ooExecutionID(raw)
		if executionID == "" {
			return orchestrator.WrapTransport(
				fmt.Errorf("response: %s", truncateBody(raw)),
				"oo launch response missing execution id",
			)
		}
		ack = LaunchAck{JobID: executionID, Raw: raw}
		return nil
	})
	return ack, runErr
}

func (o *OO) Status(ctx context.Context, jobID string) string {
	summary, err := o.fetchSummary(ctx, jobID)
	if err != nil {
		o.logger.Warn("oo status poll failed for execution %s: %v", jobID, err)
		return StatusUnknown
	}
	if summary.Status == "" {
		return StatusUnknown
	}
	return summary.Status
}

func (o *OO) ResultDetail(ctx context.Context, jobID string) (string, bool) {
	summary, err := o.fetchSummary(ctx, jobID)
	if err != nil {
		o.logger.Warn("oo result detail fetch failed for execution %s: %v", jobID, err)
		return "", false
	}
	if summary.ResultStatusType == "" {
		return "", false
	}
	return summary.ResultStatusType, true
}

type ooSummary struct {
	Status           string `json:"status"`
	ResultStatusType string `json:"resultStatusType"`
}

// fetchSummary reads the execution summary, which OO wraps in a
// single-element array. A bare object is accepted too.
func (o *OO) fetchSummary(ctx context.Context, executionID string) (ooSummary, error) {
	raw, err := o.send(ctx, http.MethodGet, "/api/v1/executions/"+url.PathEscape(executionID)+"/summary", nil)
	if err != nil {
		return ooSummary{}, err
	}
	var list []ooSummary
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ooSummary{}, fmt.Errorf("empty summary for execution %s", executionID)
		}
		return list[0], nil
	}
	var single ooSummary
	if err := json.Unmarshal(raw, &single); err != nil {
		return ooSummary{}, fmt.Errorf("unreadable summary for execution %s: %w", executionID, err)
	}
	return single, nil
}

func (o *OO) send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, orchestrator.WrapTransport(err, "oo request build failed")
	}
	req.SetBasicAuth(o.username, o.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return doRequest(o.client, req)
}

// ooExecutionID parses the launch response: a bare id (quoted or numeric)
// or an object carrying executionId.
func ooExecutionID(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case map[string]any:
		if s, ok := id["executionId"].(string); ok {
			return s
		}
		if n, ok := id["executionId"].(float64); ok {
			return strconv.FormatInt(int64(n), 10)
		}
	}
	return ""
}
