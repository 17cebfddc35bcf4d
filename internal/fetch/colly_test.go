package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobsignal/engine/internal/jobs"
)

func TestHTTPFetcherFetch(t *testing.T) {
	t.Parallel()

	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>cards</body></html>"))
	}))
	defer server.Close()

	f := NewHTTP(HTTPConfig{UserAgent: "test-agent", Timeout: 5 * time.Second})
	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, string(result.Body), "cards")
	assert.Equal(t, "test-agent", gotAgent)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestHTTPFetcherServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewHTTP(HTTPConfig{})
	_, err := f.Fetch(context.Background(), server.URL)
	assert.Error(t, err, "non-2xx must surface as an error for retry handling")
}

func TestHTTPFetcherCanceledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewHTTP(HTTPConfig{})
	_, err := f.Fetch(ctx, server.URL)
	assert.Error(t, err)
}

func TestSelectorForMode(t *testing.T) {
	t.Parallel()

	httpF := NewHTTP(HTTPConfig{})
	s := NewSelector(httpF, nil)

	got, err := s.ForMode(jobs.FetchModeHTTP)
	require.NoError(t, err)
	assert.Same(t, httpF, got)

	got, err = s.ForMode("")
	require.NoError(t, err)
	assert.Same(t, httpF, got)

	_, err = s.ForMode(jobs.FetchModeHeadless)
	assert.Error(t, err, "headless without a browser configured")

	_, err = s.ForMode("carrier-pigeon")
	assert.Error(t, err)
}
