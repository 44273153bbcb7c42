package httpengine

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandrolain/httpengine/connpool"
)

func newTestEngineForInvalidation(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	pool, err := connpool.NewPool()
	require.NoError(t, err)
	engine, err := NewEngine(store, pool)
	require.NoError(t, err)
	return engine, store
}

func TestInvalidateCacheRemovesRequestURIEntry(t *testing.T) {
	engine, store := newTestEngineForInvalidation(t)
	req := mustRequest(t, http.MethodPost, "http://example.com/a")
	store.entries[cacheKey(&http.Request{Method: http.MethodGet, URL: req.URL})] = CacheEntry{}

	engine.invalidateCache(req, &http.Response{StatusCode: http.StatusOK, Header: http.Header{}})

	_, ok, _ := store.GetMetadata(context.Background(), cacheKey(&http.Request{Method: http.MethodGet, URL: req.URL}))
	require.False(t, ok)
}

func TestInvalidateCacheIgnoresErrorResponse(t *testing.T) {
	engine, store := newTestEngineForInvalidation(t)
	req := mustRequest(t, http.MethodPost, "http://example.com/a")
	getKey := cacheKey(&http.Request{Method: http.MethodGet, URL: req.URL})
	store.entries[getKey] = CacheEntry{}

	engine.invalidateCache(req, &http.Response{StatusCode: http.StatusInternalServerError, Header: http.Header{}})

	_, ok, _ := store.GetMetadata(context.Background(), getKey)
	require.True(t, ok)
}

func TestInvalidateCacheFollowsSameOriginLocationHeader(t *testing.T) {
	engine, store := newTestEngineForInvalidation(t)
	req := mustRequest(t, http.MethodPut, "http://example.com/a")
	locURL, err := req.URL.Parse("/b")
	require.NoError(t, err)
	locKey := cacheKey(&http.Request{Method: http.MethodGet, URL: locURL})
	store.entries[locKey] = CacheEntry{}

	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Location": []string{"/b"}}}
	engine.invalidateCache(req, resp)

	_, ok, _ := store.GetMetadata(context.Background(), locKey)
	require.False(t, ok)
}

func TestInvalidateCacheSkipsCrossOriginLocationHeader(t *testing.T) {
	engine, store := newTestEngineForInvalidation(t)
	req := mustRequest(t, http.MethodPut, "http://example.com/a")
	otherURL, err := req.URL.Parse("http://other.example.com/b")
	require.NoError(t, err)
	otherKey := cacheKey(&http.Request{Method: http.MethodGet, URL: otherURL})
	store.entries[otherKey] = CacheEntry{}

	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Location": []string{"http://other.example.com/b"}}}
	engine.invalidateCache(req, resp)

	_, ok, _ := store.GetMetadata(context.Background(), otherKey)
	require.True(t, ok)
}

func TestIsUnsafeMethodDetectsMutatingVerbs(t *testing.T) {
	require.True(t, isUnsafeMethod(http.MethodPost))
	require.True(t, isUnsafeMethod(http.MethodPut))
	require.True(t, isUnsafeMethod(http.MethodDelete))
	require.True(t, isUnsafeMethod(http.MethodPatch))
	require.False(t, isUnsafeMethod(http.MethodGet))
}
