package httpengine

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetRetryRequestFollowsLocationOnGET(t *testing.T) {
	prior := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{"Location": []string{"/b"}}}
	next := GetRetryRequest(prior, resp)
	require.NotNil(t, next)
	require.Equal(t, "http://example.com/b", next.URL.String())
}

func TestGetRetryRequestReturnsNilWithoutLocation(t *testing.T) {
	prior := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{}}
	require.Nil(t, GetRetryRequest(prior, resp))
}

func TestGetRetryRequestReturnsNilForNonRedirectStatus(t *testing.T) {
	prior := mustRequest(t, http.MethodGet, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Location": []string{"/b"}}}
	require.Nil(t, GetRetryRequest(prior, resp))
}

func TestGetRetryRequestReturnsNilForUnsafeMethod(t *testing.T) {
	prior := mustRequest(t, http.MethodPost, "http://example.com/a")
	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{"Location": []string{"/b"}}}
	require.Nil(t, GetRetryRequest(prior, resp))
}

func TestGetRetryRequestBlocksSchemeChange(t *testing.T) {
	prior := mustRequest(t, http.MethodGet, "https://example.com/a")
	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{"Location": []string{"http://example.com/b"}}}
	require.Nil(t, GetRetryRequest(prior, resp))
}

func TestGetRetryRequestDropsAuthorizationOnCrossHostRedirect(t *testing.T) {
	prior := mustRequest(t, http.MethodGet, "http://example.com/a")
	prior.Header.Set("Authorization", "Bearer token")
	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{"Location": []string{"http://other.example.com/b"}}}
	next := GetRetryRequest(prior, resp)
	require.NotNil(t, next)
	require.Empty(t, next.Header.Get("Authorization"))
}

func TestGetRetryRequestKeepsAuthorizationOnSameHostRedirect(t *testing.T) {
	prior := mustRequest(t, http.MethodGet, "http://example.com/a")
	prior.Header.Set("Authorization", "Bearer token")
	resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{"Location": []string{"/b"}}}
	next := GetRetryRequest(prior, resp)
	require.NotNil(t, next)
	require.Equal(t, "Bearer token", next.Header.Get("Authorization"))
}
