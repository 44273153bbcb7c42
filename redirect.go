package httpengine

import (
	"net/http"
	"net/url"
)

// redirectEnabled and schemeChangeRedirectEnabled reproduce the fixed
// policy the original engine hard-codes with no configuration hook
// (§9 Open Questions): redirects are followed, but never across a
// scheme change, https→http included.
const (
	redirectEnabled             = true
	schemeChangeRedirectEnabled = false
)

var redirectableStatus = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// GetRetryRequest implements §4.5's get_retry_request: given the response
// that just completed a chain step, it returns the request to retry with,
// or nil if the response is not a followable redirect.
func GetRetryRequest(prior *http.Request, resp *http.Response) *http.Request {
	if !redirectEnabled || !redirectableStatus[resp.StatusCode] {
		return nil
	}
	if prior.Method != http.MethodGet && prior.Method != http.MethodHead {
		return nil
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil
	}
	decoded, err := url.QueryUnescape(location)
	if err != nil {
		return nil
	}
	resolved, err := prior.URL.Parse(decoded)
	if err != nil {
		return nil
	}

	if prior.URL.Scheme != resolved.Scheme {
		if !schemeChangeRedirectEnabled {
			return nil
		}
	}

	next := cloneRequest(prior)
	next.URL = resolved
	if prior.URL.Scheme != resolved.Scheme || prior.URL.Host != resolved.Host {
		next.Header.Del("Authorization")
	}
	next.Host = ""
	return next
}
