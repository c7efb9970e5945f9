package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/updraft/internal/retry"
)

func testJob() Job {
	return Job{
		BuildID:        "b1",
		ProjectKey:     "acme/demo",
		ArchiveURL:     "http://localhost:3000/api/archives/b1",
		CallbackURL:    "http://localhost:3000/api/webhook/builds/b1",
		Platform:       "all",
		RuntimeVersion: "1.0.0",
	}
}

func fastPolicy(maxRetries int) retry.Policy {
	return retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, maxRetries)
}

func TestHTTPDispatchPostsJob(t *testing.T) {
	var got Job
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL)
	require.NoError(t, e.Dispatch(context.Background(), testJob()))
	assert.Equal(t, "b1", got.BuildID)
	assert.Equal(t, "http://localhost:3000/api/webhook/builds/b1", got.CallbackURL)
}

func TestHTTPDispatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL)
	e.policy = fastPolicy(3)

	require.NoError(t, e.Dispatch(context.Background(), testJob()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPDispatchRejectionIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL)
	e.policy = fastPolicy(3)

	err := e.Dispatch(context.Background(), testJob())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestHTTPDispatchGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL)
	e.policy = fastPolicy(2)

	err := e.Dispatch(context.Background(), testJob())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}
