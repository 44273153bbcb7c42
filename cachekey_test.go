package httpengine

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheKeyGETUsesBareURL(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	require.Equal(t, "http://example.com/a", cacheKey(req))
}

func TestCacheKeyNonGETPrefixesMethod(t *testing.T) {
	req := mustRequest(t, http.MethodHead, "http://example.com/a")
	require.Equal(t, "HEAD http://example.com/a", cacheKey(req))
}

func TestCacheKeyWithVaryIncludesNormalizedHeaderValues(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Accept-Encoding", "gzip, br")
	key := cacheKeyWithVary(req, []string{"Accept-Encoding"})
	require.Equal(t, "http://example.com/a|vary:Accept-Encoding:gzip,br", key)
}

func TestCacheKeyWithVarySortsMultipleHeaders(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept-Language", "en")
	key := cacheKeyWithVary(req, []string{"Accept-Language", "Accept-Encoding"})
	require.Equal(t, "http://example.com/a|vary:Accept-Encoding:gzip|vary:Accept-Language:en", key)
}

func TestCacheKeyWithVaryIgnoresWildcard(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	key := cacheKeyWithVary(req, []string{"*"})
	require.Equal(t, "http://example.com/a", key)
}

func TestCacheKeyWithVaryNoHeadersReturnsBareKey(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	require.Equal(t, cacheKey(req), cacheKeyWithVary(req, nil))
}
