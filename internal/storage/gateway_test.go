package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"prism/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxTries:        5,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Millisecond,
	}
}

// flakyServer fails the first `failures` requests with `failStatus`, then
// answers with `status` and `body`
func flakyServer(t *testing.T, failures int32, failStatus, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			w.WriteHeader(failStatus)
			return
		}
		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestHTTPGateway_Exists(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		status    int
		want      bool
		wantCalls int32
		wantErr   interface{}
	}{
		{name: "found", status: http.StatusOK, want: true, wantCalls: 1},
		{name: "not found", status: http.StatusNotFound, want: false, wantCalls: 1},
		{name: "forbidden counts as absent", status: http.StatusForbidden, want: false, wantCalls: 1},
		{name: "5xx is retried", failures: 2, status: http.StatusOK, want: true, wantCalls: 3},
		{name: "other 4xx is not retried", status: http.StatusBadRequest, wantCalls: 1, wantErr: models.StorageError{}},
		{name: "5xx until exhausted", failures: 10, status: http.StatusOK, wantCalls: 5, wantErr: models.UpstreamError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := flakyServer(t, tt.failures, http.StatusInternalServerError, tt.status, "")
			gw := NewHTTPGateway(srv.Client(), fastRetry())

			found, err := gw.Exists(context.Background(), srv.URL+"/acme/cat.jpg")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.IsType(t, tt.wantErr, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, found)
			}
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
		})
	}
}

func TestHTTPGateway_Fetch(t *testing.T) {
	t.Run("returns the body", func(t *testing.T) {
		srv, calls := flakyServer(t, 0, 0, http.StatusOK, "image-bytes")
		gw := NewHTTPGateway(srv.Client(), fastRetry())

		data, err := gw.Fetch(context.Background(), srv.URL+"/acme/cat.jpg")

		require.NoError(t, err)
		assert.Equal(t, []byte("image-bytes"), data)
		assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	})

	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		srv, calls := flakyServer(t, 3, http.StatusBadGateway, http.StatusOK, "image-bytes")
		gw := NewHTTPGateway(srv.Client(), fastRetry())

		data, err := gw.Fetch(context.Background(), srv.URL+"/acme/cat.jpg")

		require.NoError(t, err)
		assert.Equal(t, []byte("image-bytes"), data)
		assert.Equal(t, int32(4), atomic.LoadInt32(calls))
	})

	t.Run("404 is not found without retry", func(t *testing.T) {
		srv, calls := flakyServer(t, 0, 0, http.StatusNotFound, "")
		gw := NewHTTPGateway(srv.Client(), fastRetry())

		_, err := gw.Fetch(context.Background(), srv.URL+"/acme/missing.jpg")

		require.Error(t, err)
		assert.IsType(t, models.NotFoundError{}, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	})

	t.Run("403 is not found", func(t *testing.T) {
		srv, _ := flakyServer(t, 0, 0, http.StatusForbidden, "")
		gw := NewHTTPGateway(srv.Client(), fastRetry())

		_, err := gw.Fetch(context.Background(), srv.URL+"/acme/private.jpg")

		assert.IsType(t, models.NotFoundError{}, err)
	})

	t.Run("empty body", func(t *testing.T) {
		srv, _ := flakyServer(t, 0, 0, http.StatusOK, "")
		gw := NewHTTPGateway(srv.Client(), fastRetry())

		_, err := gw.Fetch(context.Background(), srv.URL+"/acme/empty.jpg")

		assert.IsType(t, models.EmptyOriginalError{}, err)
	})

	t.Run("persistent 5xx is an upstream error", func(t *testing.T) {
		srv, calls := flakyServer(t, 100, http.StatusInternalServerError, http.StatusOK, "x")
		gw := NewHTTPGateway(srv.Client(), fastRetry())

		_, err := gw.Fetch(context.Background(), srv.URL+"/acme/cat.jpg")

		assert.IsType(t, models.UpstreamError{}, err)
		assert.Equal(t, int32(5), atomic.LoadInt32(calls))
	})
}

func TestHTTPGateway_AttemptTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.Client(), RetryPolicy{MaxTries: 2, InitialInterval: time.Millisecond, Multiplier: 1, MaxInterval: time.Millisecond})
	gw.headTimeout = 10 * time.Millisecond

	_, err := gw.Exists(context.Background(), srv.URL+"/slow.jpg")

	assert.IsType(t, models.UpstreamError{}, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPGateway_IgnoresCallerCancellation(t *testing.T) {
	srv, _ := flakyServer(t, 0, 0, http.StatusOK, "image-bytes")
	gw := NewHTTPGateway(srv.Client(), fastRetry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := gw.Fetch(ctx, srv.URL+"/acme/cat.jpg")

	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}
