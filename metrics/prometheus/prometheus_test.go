package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsCacheOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollectorWithRegistry(registry)

	collector.RecordCacheOperation("get", "filecache", "hit", time.Millisecond)
	collector.RecordCacheSize("filecache", 1024)
	collector.RecordCacheEntries("filecache", 3)

	families, err := registry.Gather()
	require.NoError(t, err)
	require.True(t, hasMetricFamily(families, "httpengine_cache_requests_total"))
	require.True(t, hasMetricFamily(families, "httpengine_cache_size_bytes"))
	require.True(t, hasMetricFamily(families, "httpengine_cache_entries_total"))
}

func TestInstrumentedListenerRecordsHit(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollectorWithRegistry(registry)
	listener := NewInstrumentedListener(collector)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/a", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"X-From-Cache": []string{"1"}}}

	listener.OnExchangeComplete(req, resp, nil)

	families, err := registry.Gather()
	require.NoError(t, err)
	require.True(t, hasMetricFamily(families, "httpengine_http_requests_total"))
}

func TestInstrumentedListenerIgnoresErrors(t *testing.T) {
	listener := NewInstrumentedListener(nil)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/a", nil)

	// Must not panic when the exchange failed.
	listener.OnExchangeComplete(req, nil, errors.New("exchange failed"))
}

func hasMetricFamily(families []*dto.MetricFamily, name string) bool {
	for _, f := range families {
		if f.GetName() == name {
			return true
		}
	}
	return false
}
