package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues(TargetCRM, "describe", "404"))

	ObserveUpstream(TargetCRM, "describe", "404", 15*time.Millisecond)

	after := testutil.ToFloat64(UpstreamRequests.WithLabelValues(TargetCRM, "describe", "404"))
	assert.Equal(t, before+1, after)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "error", StatusLabel(nil, errors.New("reset")))
	assert.Equal(t, "error", StatusLabel(nil, nil))
	assert.Equal(t, "201", StatusLabel(&http.Response{StatusCode: http.StatusCreated}, nil))
}

func TestHandlerExposesCollectors(t *testing.T) {
	SchemaMappingGaps.WithLabelValues("datetime").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sfbridge_schema_mapping_gaps_total{native_type="datetime"}`)
}
