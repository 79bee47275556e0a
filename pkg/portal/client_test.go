package portal

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

func TestListProjects_SendsBearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer vsl_testkey", r.Header.Get("Authorization"))

		w.Write([]byte(`{"projects":[{"id":"p1","name":"alpha"},{"id":"p2","name":"beta"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "vsl_testkey")
	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)

	require.Len(t, projects, 2)
	assert.Equal(t, "alpha", projects[0].Name)
}

func TestGetHMACKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/hmac-key", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p1", body["projectId"])

		w.Write([]byte(`{"hmacKey":"super-secret"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "vsl_testkey")
	key, err := client.GetHMACKey(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "super-secret", key)
}

func TestGetJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/get", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "job-7", body["jobId"])

		w.Write([]byte(`{"job":{"id":"job-7","status":"EXECUTING","isCompleted":false}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "vsl_testkey")
	job, err := client.GetJob(context.Background(), "job-7")
	require.NoError(t, err)

	assert.Equal(t, "job-7", job.ID)
	assert.Equal(t, models.JobStatusExecuting, job.Status)
	assert.False(t, job.Terminal())
}

func TestGetJob_MissingJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job":null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "vsl_testkey")
	_, err := client.GetJob(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCancelJob_SucceedsRegardlessOfPriorState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/cancel", r.URL.Path)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "vsl_testkey")
	resp, err := client.CancelJob(context.Background(), "job-7")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	// Job id is filled in locally when the portal omits it
	assert.Equal(t, "job-7", resp.JobID)
}

func TestListJobs_StatusFilterAndLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/list", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "FAILED", body["status"])
		assert.Equal(t, float64(5), body["size"])

		w.Write([]byte(`{"jobs":[{"id":"j1","status":"FAILED","isCompleted":true,"isFailed":true}],"count":1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "vsl_testkey")
	jobs, err := client.ListJobs(context.Background(), models.JobStatusFailed, 5)
	require.NoError(t, err)

	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].IsFailed)
}

func TestListJobs_NoStatusOmitsFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasStatus := body["status"]
		assert.False(t, hasStatus)

		w.Write([]byte(`{"jobs":[],"count":0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "vsl_testkey")
	jobs, err := client.ListJobs(context.Background(), "", 20)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestPortal_NonSuccessStatusPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong-key")
	_, err := client.ListProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
