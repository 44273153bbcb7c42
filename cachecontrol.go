package httpengine

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

const (
	ccOnlyIfCached         = "only-if-cached"
	ccNoCache              = "no-cache"
	ccNoStore              = "no-store"
	ccMaxAge               = "max-age"
	ccSMaxAge              = "s-maxage"
	ccMinFresh             = "min-fresh"
	ccMaxStale             = "max-stale"
	ccMustRevalidate       = "must-revalidate"
	ccMustUnderstand       = "must-understand"
	ccPublic               = "public"
	ccPrivate              = "private"
	ccStaleWhileRevalidate = "stale-while-revalidate"
	ccStaleIfError         = "stale-if-error"
)

// cacheControl is a parsed Cache-Control header: directive name to value
// (empty string for valueless directives such as no-cache).
type cacheControl map[string]string

// parseCacheControl parses the Cache-Control header. Duplicate directives
// keep their first occurrence; malformed max-age/s-maxage values are
// dropped rather than misread as a huge or negative freshness window.
func parseCacheControl(headers http.Header) cacheControl {
	cc := cacheControl{}
	seen := map[string]bool{}
	log := GetLogger()

	for _, part := range strings.Split(headers.Get("Cache-Control"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var directive, value string
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			directive = strings.TrimSpace(part[:idx])
			value = strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)
		} else {
			directive = part
		}
		if seen[directive] {
			log.Warn("duplicate Cache-Control directive, using first value", "directive", directive)
			continue
		}
		seen[directive] = true
		cc[directive] = value
	}

	validateMaxAgeDirective(cc, ccMaxAge, log)
	validateMaxAgeDirective(cc, ccSMaxAge, log)
	return cc
}

func validateMaxAgeDirective(cc cacheControl, name string, log *slog.Logger) {
	value, ok := cc[name]
	if !ok || value == "" {
		return
	}
	if strings.Contains(value, ".") {
		log.Warn("invalid Cache-Control value (float not allowed), ignoring", "directive", name, "value", value)
		delete(cc, name)
		return
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Warn("invalid Cache-Control value (non-numeric), ignoring", "directive", name, "value", value)
		delete(cc, name)
		return
	}
	if n < 0 {
		log.Warn("negative Cache-Control value, treating as 0", "directive", name, "value", value)
		cc[name] = "0"
	}
}

// seconds returns the integer-seconds value of a directive, or def if the
// directive is absent or unparsable.
func (cc cacheControl) seconds(name string, def int64) int64 {
	v, ok := cc[name]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (cc cacheControl) has(name string) bool {
	_, ok := cc[name]
	return ok
}

// understoodStatusCodes are the status codes is_cacheable and the
// must-understand directive (RFC 9111 §5.2.2.3) recognise unconditionally.
var understoodStatusCodes = map[int]bool{
	200: true, 203: true, 204: true, 300: true, 301: true,
	404: true, 405: true, 410: true, 414: true, 501: true,
}

// canStoreAuthorizedOrPrivate applies the two Cache-Control gates that
// depend on whether this is a shared cache: Authorization requests need
// public/must-revalidate/s-maxage on the response, and private responses
// are refused by a shared cache outright.
func canStoreAuthorizedOrPrivate(req *http.Request, respCC cacheControl, isPublicCache bool) bool {
	if isPublicCache && req.Header.Get("Authorization") != "" {
		if !respCC.has(ccPublic) && !respCC.has(ccMustRevalidate) && !respCC.has(ccSMaxAge) {
			return false
		}
	}
	if respCC.has(ccPrivate) && isPublicCache {
		return false
	}
	return true
}
