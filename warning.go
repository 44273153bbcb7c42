package httpengine

import "net/http"

// Warning codes per RFC 7234 §5.5 (obsoleted by RFC 9111, still widely
// emitted by caches for compatibility with older clients).
const (
	warningResponseIsStale     = `110 - "Response is Stale"`
	warningRevalidationFailed  = `111 - "Revalidation Failed"`
	warningHeuristicExpiration = `113 - "Heuristic Expiration"`
)

func addWarning(resp *http.Response, code string) {
	resp.Header.Add("Warning", code)
}
