package incubate

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

// Client posts job requests to the execution endpoint. The endpoint
// carries no bearer header: the freshly minted, budget-scoped token
// rides inside the request body's options instead.
type Client struct {
	incubateURL string
	httpClient  *http.Client
}

// NewClient creates a new execution submission client
func NewClient(incubateURL string) *Client {
	return &Client{
		incubateURL: strings.TrimRight(incubateURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithTLS creates a submission client with a custom TLS configuration
func NewClientWithTLS(incubateURL string, tlsConfig *tls.Config) *Client {
	c := NewClient(incubateURL)
	c.httpClient.Transport = &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	return c
}

// SetHTTPClient overrides the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// submitEnvelope is the synchronous /incubate response: either an
// acceptance or an error shape with embedded error/message fields
type submitEnvelope struct {
	Error          string            `json:"error,omitempty"`
	Message        string            `json:"message,omitempty"`
	VesselID       string            `json:"vesselId"`
	IdempotencyKey string            `json:"idempotencyKey"`
	Status         models.JobStatus  `json:"status"`
	ScheduledFor   *time.Time        `json:"scheduledFor,omitempty"`
}

// Submit posts the request and interprets the immediate response. A 2xx
// body carrying a non-empty error or message field is a submission
// failure. Transport failures propagate as-is; nothing is retried.
func (c *Client) Submit(ctx context.Context, req *models.JobRequest) (*models.SubmitResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.incubateURL+"/incubate", bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach execution endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("execution endpoint error (status %d): %s", resp.StatusCode, string(body))
	}

	var envelope submitEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if envelope.Error != "" {
		return nil, &SubmissionError{Message: envelope.Error}
	}
	if envelope.Message != "" {
		return nil, &SubmissionError{Message: envelope.Message}
	}
	if envelope.VesselID == "" {
		return nil, &SubmissionError{Message: "execution endpoint returned no job id"}
	}

	return &models.SubmitResponse{
		VesselID:       envelope.VesselID,
		IdempotencyKey: envelope.IdempotencyKey,
		Status:         envelope.Status,
		ScheduledFor:   envelope.ScheduledFor,
	}, nil
}
