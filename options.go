package httpengine

import (
	"fmt"
	"net/http"
	"time"
)

// EngineOption configures an Engine. Use the With* functions to build one.
type EngineOption func(*Engine) error

// WithMarkCachedResponses configures whether responses served from
// cache carry the X-From-Cache header. Default: true.
func WithMarkCachedResponses(mark bool) EngineOption {
	return func(e *Engine) error {
		e.markCachedResponses = mark
		return nil
	}
}

// WithSkipServerErrorsFromCache configures whether 5xx responses are
// excluded from caching even when otherwise fresh. Default: false.
func WithSkipServerErrorsFromCache(skip bool) EngineOption {
	return func(e *Engine) error {
		e.skipServerErrors = skip
		return nil
	}
}

// WithAsyncRevalidateTimeout bounds the context used for background
// revalidation requests triggered by stale-while-revalidate. Zero means
// no timeout. Default: 0.
func WithAsyncRevalidateTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) error {
		e.asyncRevalidateTimeout = timeout
		return nil
	}
}

// WithPublicCache enables shared-cache semantics: responses carrying
// Cache-Control: private are refused, and Authorization-bearing
// requests are only cached when the response explicitly authorizes it
// (public, must-revalidate or s-maxage). Default: false (private cache).
func WithPublicCache(isPublic bool) EngineOption {
	return func(e *Engine) error {
		e.isPublicCache = isPublic
		return nil
	}
}

// WithShouldCache lets the caller widen caching to non-200 responses
// the Cache Strategy would otherwise refuse on status code alone; the
// function is only consulted for non-200 responses, and IsCacheable's
// other checks (no-store, Authorization, declared length) still apply.
func WithShouldCache(fn func(*http.Response) bool) EngineOption {
	return func(e *Engine) error {
		e.shouldCache = fn
		return nil
	}
}

// WithCacheKeyHeaders folds the named request headers into the cache
// key, in addition to whatever the response's own Vary header demands.
// Useful for per-Authorization or per-tenant cache partitioning that a
// Vary header can't express.
func WithCacheKeyHeaders(headers []string) EngineOption {
	return func(e *Engine) error {
		e.cacheKeyHeaders = headers
		return nil
	}
}

// WithDisableWarningHeader strips Warning headers (RFC 7234, obsoleted
// by RFC 9111) from cache-served responses instead of adding them.
// Default: false.
func WithDisableWarningHeader(disable bool) EngineOption {
	return func(e *Engine) error {
		e.disableWarningHeader = disable
		return nil
	}
}

// WithResilience installs a retry/circuit-breaker policy pair around
// every network leg the Engine sends.
func WithResilience(cfg *ResilienceConfig) EngineOption {
	return func(e *Engine) error {
		e.resilience = cfg
		return nil
	}
}

// WithListener installs a callback notified once each Execute call
// (including any redirect hops) completes.
func WithListener(l Listener) EngineOption {
	return func(e *Engine) error {
		e.listener = l
		return nil
	}
}

// WithProxy routes every connection the pool opens through the given
// HTTP proxy.
func WithProxy(host, port string) EngineOption {
	return func(e *Engine) error {
		e.proxyHost, e.proxyPort = host, port
		return nil
	}
}

// WithRootCA sets the CA directory and/or file carried on every https
// connection Endpoint, where they take part in endpoint equivalence and
// are passed to the pool's TLS config function. The pool's default
// dialer does not read them: they only take effect when the pool was
// built with connpool.WithTLSConfigFunc and that function uses them.
func WithRootCA(dir, file string) EngineOption {
	return func(e *Engine) error {
		e.rootCADir, e.rootCAFile = dir, file
		return nil
	}
}

// WithTimeout sets the per-connection timeout in seconds used both for
// dialing and as the endpoint-equivalence timeout_sec field. Default: 30.
func WithTimeout(seconds int64) EngineOption {
	return func(e *Engine) error {
		if seconds <= 0 {
			return fmt.Errorf("httpengine: timeout must be positive")
		}
		e.timeoutSec = seconds
		return nil
	}
}
