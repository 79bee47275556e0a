package incubate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselworks/vesselctl/pkg/models"
)

func TestSubmit_AcceptedSubmission(t *testing.T) {
	var received models.JobRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/incubate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		// Token rides in the body, never in an Authorization header
		assert.Empty(t, r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"vesselId":"job-123","idempotencyKey":"key-1","status":"QUEUED"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Submit(context.Background(), &models.JobRequest{
		Message:        "do the thing",
		IdempotencyKey: "key-1",
		Options:        models.RequestOptions{Token: "tok", Model: ModelSonnet},
	})
	require.NoError(t, err)

	assert.Equal(t, "job-123", resp.VesselID)
	assert.Equal(t, "key-1", resp.IdempotencyKey)
	assert.Equal(t, models.JobStatusQueued, resp.Status)
	assert.Equal(t, "tok", received.Options.Token)
}

func TestSubmit_EmbeddedErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"budget exceeded"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Submit(context.Background(), &models.JobRequest{Message: "hi"})
	require.Error(t, err)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "budget exceeded", subErr.Message)
}

func TestSubmit_EmbeddedMessageField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Submit(context.Background(), &models.JobRequest{Message: "hi"})

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "invalid token", subErr.Message)
}

func TestSubmit_GenericFailureWithoutMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Submit(context.Background(), &models.JobRequest{Message: "hi"})

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.NotEmpty(t, subErr.Message)
}

func TestSubmit_TransportFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Submit(context.Background(), &models.JobRequest{Message: "hi"})
	require.Error(t, err)

	var subErr *SubmissionError
	assert.NotErrorAs(t, err, &subErr)
	assert.Contains(t, err.Error(), "502")
}
