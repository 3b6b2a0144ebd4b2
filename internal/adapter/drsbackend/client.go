// Package drsbackend provides an HTTP client for the DRS orchestration
// backend, the external system that owns all execution state.
package drsbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recoverfleet/drsorch/internal/domain"
	"github.com/recoverfleet/drsorch/internal/domain/execution"
	"github.com/recoverfleet/drsorch/internal/port/executionstore"
	"github.com/recoverfleet/drsorch/internal/resilience"
)

// Client talks to the DRS backend execution API. It implements
// executionstore.Store.
type Client struct {
	baseURL    string
	apiKey     string
	keySource  func() string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new backend client. timeout bounds every request;
// zero means 10 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetKeySource attaches a dynamic API key source, consulted per request so
// the key can be rotated without restarting. An empty result falls back to
// the key given at construction.
func (c *Client) SetKeySource(fn func() string) {
	c.keySource = fn
}

func (c *Client) authKey() string {
	if c.keySource != nil {
		if k := c.keySource(); k != "" {
			return k
		}
	}
	return c.apiKey
}

// ListExecutions returns all executions known to the backend.
func (c *Client) ListExecutions(ctx context.Context) ([]execution.Execution, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/executions", nil)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	var result struct {
		Executions []execution.Execution `json:"executions"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal executions: %w", err)
	}
	return result.Executions, nil
}

// GetExecution returns one execution snapshot by ID.
func (c *Client) GetExecution(ctx context.Context, id string) (*execution.Execution, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/executions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}

	var e execution.Execution
	if err := json.Unmarshal(resp, &e); err != nil {
		return nil, fmt.Errorf("unmarshal execution: %w", err)
	}
	return &e, nil
}

// GetJobLogs returns the job-log event history for one DRS job of an execution.
func (c *Client) GetJobLogs(ctx context.Context, executionID, jobID string) ([]executionstore.JobLog, error) {
	path := "/executions/" + url.PathEscape(executionID) + "/jobs/" + url.PathEscape(jobID) + "/logs"
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get job logs %s/%s: %w", executionID, jobID, err)
	}

	var result struct {
		Logs []executionstore.JobLog `json:"logs"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal job logs: %w", err)
	}
	return result.Logs, nil
}

// StartExecution asks the backend to begin recovery for a plan.
func (c *Client) StartExecution(ctx context.Context, planID string) (*execution.Execution, error) {
	body, err := json.Marshal(map[string]string{"plan_id": planID})
	if err != nil {
		return nil, fmt.Errorf("marshal start request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/executions", body)
	if err != nil {
		return nil, fmt.Errorf("start execution for plan %s: %w", planID, err)
	}

	var e execution.Execution
	if err := json.Unmarshal(resp, &e); err != nil {
		return nil, fmt.Errorf("unmarshal execution: %w", err)
	}
	return &e, nil
}

// CancelExecution forwards a cancel command to the backend.
func (c *Client) CancelExecution(ctx context.Context, id string) error {
	path := "/executions/" + url.PathEscape(id) + "/cancel"
	if _, err := c.doRequest(ctx, http.MethodPost, path, nil); err != nil {
		return fmt.Errorf("cancel execution %s: %w", id, err)
	}
	return nil
}

// ResumeExecution forwards a resume command to the backend.
func (c *Client) ResumeExecution(ctx context.Context, id string) error {
	path := "/executions/" + url.PathEscape(id) + "/resume"
	if _, err := c.doRequest(ctx, http.MethodPost, path, nil); err != nil {
		return fmt.Errorf("resume execution %s: %w", id, err)
	}
	return nil
}

// TerminateRecoveryInstances asks the backend to terminate all instances
// launched by the execution.
func (c *Client) TerminateRecoveryInstances(ctx context.Context, id string) (*executionstore.TerminateResult, error) {
	path := "/executions/" + url.PathEscape(id) + "/terminate"
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, fmt.Errorf("terminate instances %s: %w", id, err)
	}

	var result executionstore.TerminateResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal terminate result: %w", err)
	}
	return &result, nil
}

// GetTerminationStatus returns aggregated progress of the given termination
// jobs in one region.
func (c *Client) GetTerminationStatus(ctx context.Context, id string, jobIDs []string, region string) (*executionstore.TerminationStatus, error) {
	q := url.Values{}
	q.Set("region", region)
	for _, jobID := range jobIDs {
		q.Add("job_id", jobID)
	}
	path := "/executions/" + url.PathEscape(id) + "/termination?" + q.Encode()

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get termination status %s: %w", id, err)
	}

	var status executionstore.TerminationStatus
	if err := json.Unmarshal(resp, &status); err != nil {
		return nil, fmt.Errorf("unmarshal termination status: %w", err)
	}
	return &status, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if key := c.authKey(); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("backend %s: %w", strings.TrimSpace(string(data)), domain.ErrNotFound)
		case resp.StatusCode == http.StatusConflict:
			return fmt.Errorf("backend %s: %w", strings.TrimSpace(string(data)), domain.ErrInvalidTransition)
		case resp.StatusCode >= 400:
			return fmt.Errorf("backend API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
