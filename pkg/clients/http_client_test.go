package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPClient_RecordsOperation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sfbridge/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client := NewHTTPClient(nil, zap.NewNop())
	defer client.Close()

	counter := metrics.UpstreamRequests.WithLabelValues(metrics.TargetCRM, "ping", "418")
	before := testutil.ToFloat64(counter)

	ctx := WithOperation(context.Background(), metrics.TargetCRM, "ping")
	resp, err := client.Get(ctx, server.URL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, int64(1), client.GetStats().TotalRequests)
}

func TestHTTPClient_CountsServerErrorsAsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(nil, zap.NewNop())
	resp, err := client.Post(context.Background(), server.URL, nil, map[string]string{"Content-Type": "application/json"})
	require.NoError(t, err)
	_ = resp.Body.Close()

	stats := client.GetStats()
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestOperationFrom_Default(t *testing.T) {
	op := operationFrom(context.Background())
	assert.Equal(t, "unknown", op.target)
	assert.Equal(t, "unknown", op.name)
}
