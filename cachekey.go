package httpengine

import (
	"net/http"
	"sort"
	"strings"
)

// cacheKey returns the deterministic (method, url) cache key for req.
// Only GET requests are ever looked up or stored through the cache
// strategy (§4.1 is_available_to_cache); the method prefix still lets
// invalidation address a HEAD entry distinctly from its GET counterpart.
func cacheKey(req *http.Request) string {
	if req.Method == http.MethodGet {
		return req.URL.String()
	}
	return req.Method + " " + req.URL.String()
}

// cacheKeyWithVary extends cacheKey with normalized values of the request
// headers named by a stored response's Vary header, so that variants of
// the same URL occupy distinct cache entries.
func cacheKeyWithVary(req *http.Request, varyHeaders []string) string {
	key := cacheKey(req)
	if len(varyHeaders) == 0 {
		return key
	}

	var parts []string
	for _, h := range varyHeaders {
		canonical := http.CanonicalHeaderKey(strings.TrimSpace(h))
		if canonical == "" || canonical == "*" {
			continue
		}
		parts = append(parts, canonical+":"+normalizeHeaderValue(req.Header.Get(canonical)))
	}
	if len(parts) == 0 {
		return key
	}
	sort.Strings(parts)
	return key + "|vary:" + strings.Join(parts, "|")
}
