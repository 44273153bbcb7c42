package prometheus

import (
	"net/http"
	"strconv"

	"github.com/sandrolain/httpengine"
	"github.com/sandrolain/httpengine/metrics"
)

// InstrumentedListener adapts a metrics.Collector into an
// httpengine.Listener, grounded on the teacher's InstrumentedTransport —
// generalised from wrapping an http.RoundTripper (the teacher's
// Transport no longer exists) to observing the Engine's
// OnExchangeComplete callback, which is already told the final response
// once per Execute call including redirect hops.
type InstrumentedListener struct {
	collector metrics.Collector
}

// NewInstrumentedListener builds a Listener that records one
// RecordHTTPRequest (and, when Content-Length is known, one
// RecordHTTPResponseSize) per completed Execute call. If collector is
// nil, metrics.DefaultCollector is used, making this listener a
// zero-overhead no-op by default. The Engine's Listener callback carries
// no timing information, so duration is always recorded as zero; wrap
// the cache/file-system layers directly (see filecache's codec hooks)
// if per-call duration histograms are needed.
func NewInstrumentedListener(collector metrics.Collector) *InstrumentedListener {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedListener{collector: collector}
}

var _ httpengine.Listener = (*InstrumentedListener)(nil)

func (l *InstrumentedListener) OnExchangeComplete(req *http.Request, resp *http.Response, err error) {
	if err != nil || resp == nil {
		return
	}

	cacheStatus := "miss"
	if resp.Header.Get("X-From-Cache") == "1" {
		cacheStatus = "hit"
	} else if resp.StatusCode == http.StatusNotModified {
		cacheStatus = "revalidated"
	}

	l.collector.RecordHTTPRequest(req.Method, cacheStatus, resp.StatusCode, 0)

	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
			l.collector.RecordHTTPResponseSize(cacheStatus, size)
		}
	}
}
