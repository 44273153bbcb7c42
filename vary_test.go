package httpengine

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreVaryHeadersThenMatchesSameRequest(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	req.Header.Set("Accept-Encoding", "gzip, br")
	resp := &http.Response{Header: http.Header{"Vary": []string{"Accept-Encoding"}}}

	storeVaryHeaders(resp, req)
	require.Equal(t, "gzip,br", resp.Header.Get(headerXVariedPrefix+"Accept-Encoding"))
	require.True(t, varyMatches(resp, req))
}

func TestVaryMatchesRejectsDifferentRequestHeaderValue(t *testing.T) {
	req1 := mustRequest(t, http.MethodGet, "http://example.com/a")
	req1.Header.Set("Accept-Encoding", "gzip")
	resp := &http.Response{Header: http.Header{"Vary": []string{"Accept-Encoding"}}}
	storeVaryHeaders(resp, req1)

	req2 := mustRequest(t, http.MethodGet, "http://example.com/a")
	req2.Header.Set("Accept-Encoding", "br")
	require.False(t, varyMatches(resp, req2))
}

func TestVaryMatchesWildcardNeverMatches(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{Header: http.Header{"Vary": []string{"*"}}}
	require.False(t, varyMatches(resp, req))
}

func TestVaryMatchesIgnoresWhitespaceDifferences(t *testing.T) {
	req1 := mustRequest(t, http.MethodGet, "http://example.com/a")
	req1.Header.Set("Accept", "text/html, application/json")
	resp := &http.Response{Header: http.Header{"Vary": []string{"Accept"}}}
	storeVaryHeaders(resp, req1)

	req2 := mustRequest(t, http.MethodGet, "http://example.com/a")
	req2.Header.Set("Accept", "text/html,application/json")
	require.True(t, varyMatches(resp, req2))
}

func TestNoVaryHeaderAlwaysMatches(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{Header: http.Header{}}
	require.True(t, varyMatches(resp, req))
}
