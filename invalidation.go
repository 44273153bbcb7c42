package httpengine

import (
	"context"
	"net/http"
	"net/url"
)

func isUnsafeMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut ||
		method == http.MethodDelete || method == http.MethodPatch
}

// invalidateCache implements RFC 9111 §4.4: a non-error response to an
// unsafe method invalidates the effective Request-URI plus any
// same-origin URI named in the Location/Content-Location headers.
func (e *Engine) invalidateCache(req *http.Request, resp *http.Response) {
	ctx := req.Context()
	if resp.StatusCode >= 400 {
		return
	}

	e.invalidateURI(ctx, req.URL, "request-uri")

	if location := resp.Header.Get("Location"); location != "" {
		e.invalidateHeaderURI(ctx, req.URL, location, "Location")
	}
	if contentLocation := resp.Header.Get("Content-Location"); contentLocation != "" {
		e.invalidateHeaderURI(ctx, req.URL, contentLocation, "Content-Location")
	}
}

func (e *Engine) invalidateHeaderURI(ctx context.Context, requestURL *url.URL, headerValue, headerName string) {
	targetURL, err := requestURL.Parse(headerValue)
	if err != nil {
		return
	}
	if !isSameOrigin(requestURL, targetURL) {
		GetLogger().Debug("skipping cross-origin invalidation",
			"header", headerName, "request-origin", getOrigin(requestURL), "target-origin", getOrigin(targetURL))
		return
	}
	e.invalidateURI(ctx, targetURL, headerName)
}

func (e *Engine) invalidateURI(ctx context.Context, targetURL *url.URL, source string) {
	getReq := &http.Request{Method: http.MethodGet, URL: targetURL}
	getKey := cacheKey(getReq)
	if err := e.store.Remove(ctx, getKey); err != nil {
		GetLogger().Warn("failed to invalidate cache entry", "key", getKey, "error", err)
	} else {
		GetLogger().Debug("invalidated cache entry", "key", getKey, "source", source, "url", targetURL.String())
	}

	headReq := &http.Request{Method: http.MethodHead, URL: targetURL}
	headKey := cacheKey(headReq)
	if headKey != getKey {
		if err := e.store.Remove(ctx, headKey); err != nil {
			GetLogger().Warn("failed to invalidate HEAD cache entry", "key", headKey, "error", err)
		}
	}
}

func isSameOrigin(u1, u2 *url.URL) bool {
	return u1.Scheme == u2.Scheme && u1.Host == u2.Host
}

func getOrigin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
