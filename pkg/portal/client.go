package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vesselworks/vesselctl/pkg/models"
)

// Client manages communication with the portal job-registry API. All
// calls carry bearer authorization and are single request/response;
// failures propagate, nothing is retried here.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new portal client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithTLS creates a portal client with a custom TLS configuration
func NewClientWithTLS(baseURL, apiKey string, tlsConfig *tls.Config) *Client {
	c := NewClient(baseURL, apiKey)
	c.httpClient.Transport = &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	return c
}

// SetHTTPClient overrides the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// ListProjects returns the projects visible to the API key
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var result struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return result.Projects, nil
}

// GetHMACKey fetches the signing secret for a project
func (c *Client) GetHMACKey(ctx context.Context, projectID string) (string, error) {
	body := map[string]string{"projectId": projectID}
	var result struct {
		HMACKey string `json:"hmacKey"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/projects/hmac-key", body, &result); err != nil {
		return "", fmt.Errorf("failed to fetch hmac key: %w", err)
	}
	return result.HMACKey, nil
}

// GetJob fetches one job record by id
func (c *Client) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	body := map[string]string{"jobId": jobID}
	var result struct {
		Job *models.Job `json:"job"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/get", body, &result); err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	if result.Job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return result.Job, nil
}

// CancelJob asks the portal to cancel a job. Cancellation is independent
// of any local poll loop; a poller only learns of it once it observes
// the terminal status.
func (c *Client) CancelJob(ctx context.Context, jobID string) (*models.CancelResponse, error) {
	body := map[string]string{"jobId": jobID}
	result := &models.CancelResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/cancel", body, result); err != nil {
		return nil, fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	if result.JobID == "" {
		result.JobID = jobID
	}
	return result, nil
}

// ListJobs returns up to size jobs, optionally filtered by status
func (c *Client) ListJobs(ctx context.Context, status models.JobStatus, size int) ([]models.Job, error) {
	body := map[string]any{"size": size}
	if status != "" {
		body["status"] = status
	}
	var result struct {
		Jobs  []models.Job `json:"jobs"`
		Count int          `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/list", body, &result); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return result.Jobs, nil
}

// do executes one JSON request against the portal and decodes the
// response into out when non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach portal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("portal error (status %d): %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
