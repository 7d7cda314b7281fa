package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goliatone/go-orchestrator"
)

// AWX drives an Ansible AWX / Tower instance over its v2 REST API with
// bearer-token auth. Launches go through the template launch endpoint picked
// by resource type; status polls read the unified jobs endpoint.
type AWX struct {
	baseURL string
	token   string
	client  *http.Client
	logger  orchestrator.Logger
}

// NewAWX builds an adapter from the backend section of the service config.
func NewAWX(cfg orchestrator.HTTPBackendConfig, logger orchestrator.Logger) *AWX {
	return &AWX{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  newHTTPClient(cfg.Timeout.Std()),
		logger:  orchestrator.LoggerWithFields(logger, map[string]any{"component": "awx"}),
	}
}

func (a *AWX) Launch(ctx context.Context, payload map[string]any) (LaunchAck, error) {
	resourceID, _ := payload["resourceId"].(string)
	if resourceID == "" {
		return LaunchAck{}, orchestrator.NewRejected("launch payload missing resourceId", nil)
	}
	resourceType, _ := payload["resourceType"].(string)

	launchBody, _ := payload["launch"].(map[string]any)
	if launchBody == nil {
		launchBody = map[string]any{}
	}
	body, err := json.Marshal(launchBody)
	if err != nil {
		return LaunchAck{}, orchestrator.NewRejected("launch payload not serializable: "+err.Error(), nil)
	}

	path := fmt.Sprintf("/api/v2/%s/%s/launch/", awxTemplatePath(resourceType), url.PathEscape(resourceID))

	var ack LaunchAck
	runErr := launchRetryHandler().Run(ctx, func(ctx context.Context) error {
		raw, err := a.send(ctx, http.MethodPost, path, body)
		if err != nil {
			a.logger.Warn("awx launch attempt failed: %v", err)
			return err
		}
		jobID := awxJobID(raw)
		if jobID == "" {
			return orchestrator.WrapTransport(
				fmt.Errorf("response: %s", truncateBody(raw)),
				"awx launch response missing job id",
			)
		}
		ack = LaunchAck{JobID: jobID, Raw: raw}
		return nil
	})
	return ack, runErr
}

// Status polls the unified jobs endpoint. There is no inner retry here; the
// reconciliation tick is the retry.
func (a *AWX) Status(ctx context.Context, jobID string) string {
	raw, err := a.send(ctx, http.MethodGet, "/api/v2/jobs/"+url.PathEscape(jobID)+"/", nil)
	if err != nil {
		a.logger.Warn("awx status poll failed for job %s: %v", jobID, err)
		return StatusUnknown
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Status == "" {
		a.logger.Warn("awx status response unreadable for job %s", jobID)
		return StatusUnknown
	}
	return resp.Status
}

// ResultDetail is a no-op for AWX; the job status is the whole outcome.
func (a *AWX) ResultDetail(ctx context.Context, jobID string) (string, bool) {
	return "", false
}

func (a *AWX) send(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, orchestrator.WrapTransport(err, "awx request build failed")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return doRequest(a.client, req)
}

// awxTemplatePath picks the launch endpoint family for the resource type.
// Workflow templates launch workflow jobs, everything else is a plain job
// template.
func awxTemplatePath(resourceType string) string {
	switch resourceType {
	case "WorkflowTemplate", "WorkflowJobTemplate", "workflow_job_template":
		return "workflow_job_templates"
	default:
		return "job_templates"
	}
}

// awxJobID pulls the job id out of a launch response. Plain launches answer
// with "job", workflow launches with "workflow_job"; "id" covers both.
func awxJobID(raw []byte) string {
	var resp struct {
		ID          json.Number `json:"id"`
		Job         json.Number `json:"job"`
		WorkflowJob json.Number `json:"workflow_job"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}
	for _, n := range []json.Number{resp.ID, resp.Job, resp.WorkflowJob} {
		if n.String() != "" {
			return n.String()
		}
	}
	return ""
}
