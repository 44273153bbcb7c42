package httpengine

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustRequest(t *testing.T, method, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, rawURL, nil)
	require.NoError(t, err)
	return req
}

func TestIsAvailableToCacheRejectsNonGET(t *testing.T) {
	req := mustRequest(t, http.MethodPost, "http://example.com/a")
	require.False(t, IsAvailableToCache(req))
}

func TestIsAvailableToCacheRejectsAuthorization(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Authorization", "Bearer token")
	require.False(t, IsAvailableToCache(req))
}

func TestIsAvailableToCacheRejectsRequestNoCache(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Cache-Control", "no-cache")
	require.False(t, IsAvailableToCache(req))
}

func TestIsAvailableToCacheRejectsOwnValidators(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("If-None-Match", `"etag"`)
	require.False(t, IsAvailableToCache(req))
}

func TestIsAvailableToCacheAcceptsPlainGET(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	require.True(t, IsAvailableToCache(req))
}

func TestComputeAgeAddsResidentDuration(t *testing.T) {
	meta := Metadata{
		Header:        http.Header{"Date": []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)}},
		SentAtSec:     999,
		ReceivedAtSec: 1000,
	}
	require.Equal(t, int64(50), computeAge(meta, 1050))
}

func TestComputeAgeHonorsServerSentAgeHeader(t *testing.T) {
	meta := Metadata{
		Header:        http.Header{"Age": []string{"500"}},
		SentAtSec:     1000,
		ReceivedAtSec: 1000,
	}
	require.Equal(t, int64(500), computeAge(meta, 1000))
}

func TestFreshnessLifetimePrefersMaxAgeOverExpires(t *testing.T) {
	meta := Metadata{Header: http.Header{
		"Cache-Control": []string{"max-age=100"},
		"Expires":       []string{time.Unix(10000, 0).UTC().Format(http.TimeFormat)},
	}}
	require.Equal(t, int64(100), freshnessLifetime(meta))
}

func TestFreshnessLifetimeFallsBackToExpires(t *testing.T) {
	meta := Metadata{
		Header: http.Header{
			"Date":    []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)},
			"Expires": []string{time.Unix(1300, 0).UTC().Format(http.TimeFormat)},
		},
		ReceivedAtSec: 1000,
	}
	require.Equal(t, int64(300), freshnessLifetime(meta))
}

func TestFreshnessLifetimeHeuristicFromLastModifiedWithoutQuery(t *testing.T) {
	meta := Metadata{
		URL: "http://example.com/a",
		Header: http.Header{
			"Date":          []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)},
			"Last-Modified": []string{time.Unix(0, 0).UTC().Format(http.TimeFormat)},
		},
		SentAtSec: 1000,
	}
	require.Equal(t, int64(100), freshnessLifetime(meta))
}

func TestFreshnessLifetimeSkipsHeuristicWhenURLHasQuery(t *testing.T) {
	meta := Metadata{
		URL: "http://example.com/a?x=1",
		Header: http.Header{
			"Date":          []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)},
			"Last-Modified": []string{time.Unix(0, 0).UTC().Format(http.TimeFormat)},
		},
		SentAtSec: 1000,
	}
	require.Equal(t, int64(0), freshnessLifetime(meta))
}

func TestDecideReturnsNetworkRequestOnCacheMiss(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	decision := Decide(req, nil, nil, 1000)
	require.Same(t, req, decision.NetworkRequest)
	require.Nil(t, decision.CacheResponse)
}

func TestDecideOnlyIfCachedWithNoEntryReturnsEmpty(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Cache-Control", "only-if-cached")
	decision := Decide(req, nil, nil, 1000)
	require.Nil(t, decision.NetworkRequest)
	require.Nil(t, decision.CacheResponse)
}

func TestDecideServesFreshEntryDirectly(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	meta := &Metadata{
		Header: http.Header{
			"Cache-Control": []string{"max-age=100"},
			"Date":          []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)},
		},
		SentAtSec:     1000,
		ReceivedAtSec: 1000,
	}
	resp := &http.Response{Header: http.Header{}}
	decision := Decide(req, meta, resp, 1050)
	require.Nil(t, decision.NetworkRequest)
	require.Same(t, resp, decision.CacheResponse)
	require.Empty(t, resp.Header.Values("Warning"))
}

func TestDecideAddsStaleWarningNearExpiry(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Cache-Control", "max-stale=1000")
	meta := &Metadata{
		Header: http.Header{
			"Cache-Control": []string{"max-age=100"},
			"Date":          []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)},
		},
		SentAtSec:     1000,
		ReceivedAtSec: 1000,
	}
	resp := &http.Response{Header: http.Header{}}
	decision := Decide(req, meta, resp, 1200)
	require.Nil(t, decision.NetworkRequest)
	require.Same(t, resp, decision.CacheResponse)
	require.Contains(t, resp.Header.Values("Warning"), warningResponseIsStale)
}

func TestDecideRevalidatesStaleEntryWithETag(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	meta := &Metadata{
		Header: http.Header{
			"ETag": []string{`"v1"`},
			"Date": []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)},
		},
		SentAtSec:     1000,
		ReceivedAtSec: 1000,
	}
	resp := &http.Response{Header: http.Header{}}
	decision := Decide(req, meta, resp, 10000)
	require.NotNil(t, decision.NetworkRequest)
	require.Equal(t, `"v1"`, decision.NetworkRequest.Header.Get("If-None-Match"))
	require.Same(t, resp, decision.CacheResponse)
}

func TestDecideStaleOnlyIfCachedReturnsEmpty(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Cache-Control", "only-if-cached")
	meta := &Metadata{
		Header: http.Header{
			"Date": []string{time.Unix(1000, 0).UTC().Format(http.TimeFormat)},
		},
		SentAtSec:     1000,
		ReceivedAtSec: 1000,
	}
	decision := Decide(req, meta, &http.Response{Header: http.Header{}}, 10000)
	require.Nil(t, decision.NetworkRequest)
	require.Nil(t, decision.CacheResponse)
}

func TestIsValidCacheResponseAcceptsNotModified(t *testing.T) {
	meta := Metadata{Header: http.Header{}}
	resp := &http.Response{StatusCode: http.StatusNotModified, Header: http.Header{}}
	require.True(t, IsValidCacheResponse(meta, resp))
}

func TestIsValidCacheResponseRejectsOlderCachedEntry(t *testing.T) {
	meta := Metadata{Header: http.Header{"Last-Modified": []string{time.Unix(100, 0).UTC().Format(http.TimeFormat)}}}
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Last-Modified": []string{time.Unix(200, 0).UTC().Format(http.TimeFormat)}}}
	require.False(t, IsValidCacheResponse(meta, resp))
}

func TestIsCacheableRejectsNoStore(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": []string{"no-store"}}, ContentLength: 5}
	require.False(t, IsCacheable(req, resp))
}

func TestIsCacheableRejectsAuthorizationRequest(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Authorization", "Bearer token")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, ContentLength: 5}
	require.False(t, IsCacheable(req, resp))
}

func TestIsCacheableAcceptsPlain200(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, ContentLength: 5}
	require.True(t, IsCacheable(req, resp))
}

func TestIsCacheableRejectsUnknownContentLength(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, ContentLength: -1}
	require.False(t, IsCacheable(req, resp))
}

func TestIsCacheableAcceptsChunkedWithUnknownLength(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Transfer-Encoding": []string{"chunked"}}, ContentLength: -1}
	require.True(t, IsCacheable(req, resp))
}

func TestIsCacheableRejectsBareRedirectWithoutFreshnessSignal(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusTemporaryRedirect, Header: http.Header{}, ContentLength: 0}
	require.False(t, IsCacheable(req, resp))
}

func TestIsInvalidCacheMethodDetectsSuccessfulUnsafeMethod(t *testing.T) {
	req := mustRequest(t, http.MethodPost, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusOK}
	require.True(t, IsInvalidCacheMethod(req, resp))
}

func TestIsInvalidCacheMethodIgnoresFailedUnsafeMethod(t *testing.T) {
	req := mustRequest(t, http.MethodPost, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusInternalServerError}
	require.False(t, IsInvalidCacheMethod(req, resp))
}

func TestCombineCacheAndNetworkHeadersPrefersNetworkEndToEnd(t *testing.T) {
	cached := http.Header{"X-Custom": []string{"cached"}, "Content-Length": []string{"10"}}
	network := http.Header{"X-Custom": []string{"network"}, "Connection": []string{"close"}}
	combined := CombineCacheAndNetworkHeaders(cached, network)
	require.Equal(t, "network", combined.Get("X-Custom"))
	require.Equal(t, "10", combined.Get("Content-Length"))
	require.Empty(t, combined.Get("Connection"))
}

func TestCombineCacheAndNetworkHeadersDropsOneHundredWarnings(t *testing.T) {
	cached := http.Header{"Warning": []string{warningResponseIsStale, `299 - "Miscellaneous Persistent Warning"`}}
	combined := CombineCacheAndNetworkHeaders(cached, http.Header{})
	require.Equal(t, []string{`299 - "Miscellaneous Persistent Warning"`}, combined.Values("Warning"))
}
