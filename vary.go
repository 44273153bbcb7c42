package httpengine

import (
	"net/http"
	"strings"
)

const headerXVariedPrefix = "X-Varied-"

// headerAllCommaSepValues collects every comma-separated token across all
// occurrences of a header, trimmed of surrounding whitespace.
func headerAllCommaSepValues(h http.Header, name string) []string {
	var out []string
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// varyMatches reports whether the stored request-header values recorded on
// cached (under X-Varied-*) match the incoming request, per the Vary
// header cached alongside the response. This is an additional lookup-time
// admissibility check layered on top of the (method, url) cache key; it
// never changes the key itself.
func varyMatches(cached *http.Response, req *http.Request) bool {
	varyHeaders := headerAllCommaSepValues(cached.Header, "vary")

	for _, h := range varyHeaders {
		if strings.TrimSpace(h) == "*" {
			return false
		}
	}

	for _, h := range varyHeaders {
		canonical := http.CanonicalHeaderKey(strings.TrimSpace(h))
		if canonical == "" {
			continue
		}
		reqValue := req.Header.Get(canonical)
		storedValue := cached.Header.Get(headerXVariedPrefix + canonical)
		if !normalizedHeaderValuesMatch(reqValue, storedValue) {
			return false
		}
	}
	return true
}

func normalizedHeaderValuesMatch(a, b string) bool {
	if a == b {
		return true
	}
	return normalizeHeaderValue(a) == normalizeHeaderValue(b)
}

// normalizeHeaderValue collapses internal whitespace to single spaces and
// comma+space separators to bare commas, so that semantically identical
// header values compare equal.
func normalizeHeaderValue(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	prevSpace := false
	for _, r := range value {
		switch r {
		case ' ', '\t', '\n', '\r':
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.ReplaceAll(b.String(), ", ", ",")
}

// storeVaryHeaders records, on resp, the request header values named by
// resp's own Vary header, so a later lookup can tell whether a new
// request is a matching variant.
func storeVaryHeaders(resp *http.Response, req *http.Request) {
	for _, v := range headerAllCommaSepValues(resp.Header, "vary") {
		canonical := http.CanonicalHeaderKey(strings.TrimSpace(v))
		if canonical == "" || canonical == "*" {
			continue
		}
		resp.Header.Set(headerXVariedPrefix+canonical, normalizeHeaderValue(req.Header.Get(canonical)))
	}
}
