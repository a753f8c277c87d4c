package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("/api/repos", 200, 30*time.Millisecond)
	c.RecordRequest("/api/repos", 200, 10*time.Millisecond)
	c.RecordRequest("/api/get_file", 404, 5*time.Millisecond)
	c.RecordGitHubCall("upload_file", nil)
	c.RecordGitHubCall("upload_file", errors.New("boom"))
	c.RecordResolverAttempt("api")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/repos", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/get_file", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.githubCalls.WithLabelValues("upload_file", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.githubCalls.WithLabelValues("upload_file", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.resolverAttempts.WithLabelValues("api")))
}

func TestHandler_scrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRequest("/health", 200, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gitsmart_http_requests_total")
}
