package httpengine

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// hopByHopHeaders are stripped when folding network headers into a
// combined response; RFC 9111 §4.3.4.
var hopByHopHeaders = map[string]bool{
	http.CanonicalHeaderKey("Connection"):         true,
	http.CanonicalHeaderKey("Keep-Alive"):         true,
	http.CanonicalHeaderKey("Proxy-Authenticate"): true,
	http.CanonicalHeaderKey("Proxy-Authorization"): true,
	http.CanonicalHeaderKey("TE"):                 true,
	http.CanonicalHeaderKey("Trailers"):           true,
	http.CanonicalHeaderKey("Transfer-Encoding"):  true,
	http.CanonicalHeaderKey("Upgrade"):            true,
}

var unconditionalCacheableStatus = map[int]bool{
	200: true, 203: true, 204: true, 300: true, 301: true,
	404: true, 405: true, 410: true, 414: true, 501: true,
}

var conditionalCacheableStatus = map[int]bool{302: true, 307: true, 308: true}

// IsAvailableToCache is the request admissibility test (§4.1
// is_available_to_cache): only GET requests with no Authorization header,
// no no-cache directive and no conditional validators of their own are
// ever looked up against the cache.
func IsAvailableToCache(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if req.Header.Get("Authorization") != "" {
		return false
	}
	if parseCacheControl(req.Header).has(ccNoCache) {
		return false
	}
	if req.Header.Get("If-Modified-Since") != "" || req.Header.Get("If-None-Match") != "" {
		return false
	}
	return true
}

func parseDateHeaderSec(h http.Header) (int64, bool) {
	v := h.Get("Date")
	if v == "" {
		return 0, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

func parseAgeHeaderSec(h http.Header) (int64, bool) {
	v := strings.TrimSpace(h.Get("Age"))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func max0(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// computeAge implements the RFC 7234 §4.2.3 age formula from §4.1, over
// the explicit sent/received epoch fields the Cache Metadata carries
// instead of the request/response timestamps a header-based cache would
// reconstruct from wire round-tripping.
func computeAge(meta Metadata, now int64) int64 {
	var apparentAge int64
	if dateSec, ok := parseDateHeaderSec(meta.Header); ok {
		apparentAge = max0(meta.ReceivedAtSec - dateSec)
	}
	receivedAge := apparentAge
	if ageSec, ok := parseAgeHeaderSec(meta.Header); ok && ageSec > receivedAge {
		receivedAge = ageSec
	}
	responseDur := meta.ReceivedAtSec - meta.SentAtSec
	residentDur := now - meta.ReceivedAtSec
	return receivedAge + responseDur + residentDur
}

// freshnessLifetime implements §4.1's four-way fallback: response
// max-age, then Expires, then a tenth of the time since Last-Modified
// (only for query-less URLs), then zero.
func freshnessLifetime(meta Metadata) int64 {
	cc := parseCacheControl(meta.Header)
	if cc.has(ccMaxAge) {
		return cc.seconds(ccMaxAge, 0)
	}

	dateSec, dateOk := parseDateHeaderSec(meta.Header)

	if expires := meta.Header.Get("Expires"); expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			base := meta.ReceivedAtSec
			if dateOk {
				base = dateSec
			}
			return max0(t.Unix() - base)
		}
	}

	hasQuery := false
	if u, err := url.Parse(meta.URL); err == nil {
		hasQuery = u.RawQuery != ""
	}

	if lm := meta.Header.Get("Last-Modified"); lm != "" && !hasQuery {
		if t, err := http.ParseTime(lm); err == nil {
			responseSec := meta.SentAtSec
			if dateOk {
				responseSec = dateSec
			}
			return max0((responseSec - t.Unix()) / 10)
		}
	}

	return 0
}

// Decision is the Cache Strategy's two-valued output: the request to send
// over the network (nil if none should be sent) and the cached response
// to fall back on or serve directly (nil if there is none to use).
type Decision struct {
	NetworkRequest *http.Request
	CacheResponse  *http.Response
}

// Decide runs the §4.1 constructor logic. cachedMeta/cachedResp are both
// nil when there is no cache entry for req's key; cachedResp, if present,
// already carries the stored response headers (Warning headers may be
// appended to it in place, matching the "add Warning" steps below).
func Decide(req *http.Request, cachedMeta *Metadata, cachedResp *http.Response, now int64) Decision {
	reqCC := parseCacheControl(req.Header)

	if cachedMeta == nil {
		if reqCC.has(ccOnlyIfCached) {
			return Decision{}
		}
		return Decision{NetworkRequest: req}
	}

	age := computeAge(*cachedMeta, now)
	respCC := parseCacheControl(cachedMeta.Header)

	fresh := freshnessLifetime(*cachedMeta)
	if reqCC.has(ccMaxAge) {
		if v := reqCC.seconds(ccMaxAge, math.MaxInt64); v < fresh {
			fresh = v
		}
	}
	minFresh := reqCC.seconds(ccMinFresh, 0)
	var maxStale int64
	if !respCC.has(ccMustRevalidate) {
		maxStale = reqCC.seconds(ccMaxStale, 0)
	}

	if !respCC.has(ccNoCache) && age+minFresh < fresh+maxStale {
		if age+minFresh >= fresh {
			addWarning(cachedResp, warningResponseIsStale)
		}
		if age > 86400 && !respCC.has(ccMaxAge) && cachedMeta.Header.Get("Expires") == "" {
			addWarning(cachedResp, warningHeuristicExpiration)
		}
		return Decision{CacheResponse: cachedResp}
	}

	if reqCC.has(ccOnlyIfCached) {
		return Decision{}
	}

	conditional := cloneRequest(req)
	switch {
	case cachedMeta.Header.Get("ETag") != "":
		conditional.Header.Set("If-None-Match", cachedMeta.Header.Get("ETag"))
	case cachedMeta.Header.Get("Last-Modified") != "":
		conditional.Header.Set("If-Modified-Since", cachedMeta.Header.Get("Last-Modified"))
	case cachedMeta.Header.Get("Date") != "":
		conditional.Header.Set("If-Modified-Since", cachedMeta.Header.Get("Date"))
	default:
		return Decision{NetworkRequest: conditional}
	}
	return Decision{NetworkRequest: conditional, CacheResponse: cachedResp}
}

// IsValidCacheResponse is called once a conditional request returns
// (§4.1): the cached response may be reused if the network said 304, or
// if both sides carry a parseable Last-Modified and the cached one is
// strictly newer (a confused/misbehaving origin should not invalidate a
// response newer than what it just sent).
func IsValidCacheResponse(cachedMeta Metadata, networkResp *http.Response) bool {
	if networkResp.StatusCode == http.StatusNotModified {
		return true
	}
	cLM, cOk := http.ParseTime(cachedMeta.Header.Get("Last-Modified"))
	nLM, nOk := http.ParseTime(networkResp.Header.Get("Last-Modified"))
	return cOk == nil && nOk == nil && cLM.After(nLM)
}

// IsCacheable implements §4.1 is_cacheable.
func IsCacheable(req *http.Request, resp *http.Response) bool {
	if req.Method != http.MethodGet {
		return false
	}

	cc := parseCacheControl(resp.Header)
	reqCC := parseCacheControl(req.Header)

	okStatus := unconditionalCacheableStatus[resp.StatusCode]
	if !okStatus && conditionalCacheableStatus[resp.StatusCode] {
		okStatus = resp.Header.Get("Expires") != "" || cc.has(ccMaxAge) || cc.has(ccPublic) || cc.has(ccPrivate)
	}
	if !okStatus {
		return false
	}

	if cc.has(ccNoStore) || reqCC.has(ccNoStore) {
		return false
	}
	if req.Header.Get("Authorization") != "" {
		return false
	}

	if strings.EqualFold(resp.Header.Get("Transfer-Encoding"), "chunked") {
		return true
	}
	return resp.ContentLength >= 0
}

// IsInvalidCacheMethod implements §4.1 is_invalid_cache_method: a
// successful response to an unsafe method invalidates the GET cache
// entry for the same URL.
func IsInvalidCacheMethod(req *http.Request, resp *http.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	switch req.Method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// CombineCacheAndNetworkHeaders implements §4.1
// combine_cache_and_network_headers (RFC 9111 §4.3.4).
func CombineCacheAndNetworkHeaders(cached, network http.Header) http.Header {
	result := http.Header{}

	for name, values := range cached {
		if name == "Warning" {
			var kept []string
			for _, w := range values {
				if !strings.HasPrefix(w, "1") {
					kept = append(kept, w)
				}
			}
			if len(kept) > 0 {
				result[name] = kept
			}
			continue
		}
		if hopByHopHeaders[name] {
			continue
		}
		if name == "Content-Length" {
			continue // set explicitly below, always from cached
		}
		if _, overridden := network[name]; overridden {
			continue // network end-to-end header takes over
		}
		result[name] = append([]string(nil), values...)
	}

	if cl, ok := cached["Content-Length"]; ok {
		result["Content-Length"] = append([]string(nil), cl...)
	}

	for name, values := range network {
		if hopByHopHeaders[name] || name == "Content-Length" {
			continue
		}
		result[name] = append([]string(nil), values...)
	}

	return result
}

func cloneRequest(req *http.Request) *http.Request {
	r2 := new(http.Request)
	*r2 = *req
	r2.Header = req.Header.Clone()
	return r2
}
