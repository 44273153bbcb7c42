package httpengine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandrolain/httpengine/connpool"
)

const maxRedirectHops = 10

// Listener is notified once an Execute call chain (including any
// redirect hops) finishes, successfully or not.
type Listener interface {
	OnExchangeComplete(req *http.Request, resp *http.Response, err error)
}

// Engine (H) orchestrates the Cache Strategy, the Connection Pool and a
// Store on every request: consult cache, send over the network with
// connection-reuse retry, classify and store the result, follow
// redirects, and report the outcome to an optional Listener.
type Engine struct {
	store Store
	pool  *connpool.Pool

	proxyHost, proxyPort   string
	rootCADir, rootCAFile  string
	timeoutSec             int64
	isPublicCache          bool
	markCachedResponses    bool
	skipServerErrors       bool
	disableWarningHeader   bool
	asyncRevalidateTimeout time.Duration
	shouldCache            func(*http.Response) bool
	cacheKeyHeaders        []string
	resilience             *ResilienceConfig
	listener               Listener
}

// NewEngine wires store and pool together behind the options given. A
// nil store is a valid, explicit "no cache configured" mode (§4.5 step
// 1/step 5): every request skips the cache consult and classification
// entirely and goes straight to the network, per spec.md §4.5's "If no
// cache is configured -> return network response directly".
func NewEngine(store Store, pool *connpool.Pool, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:               store,
		pool:                pool,
		markCachedResponses: true,
		timeoutSec:          30,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Execute runs the full §4.5 algorithm for req: cache consult, network
// send with retry-by-connection-reuse, response classification and
// storage, and redirect following.
func (e *Engine) Execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := e.executeChain(req.WithContext(ctx), 0)
	if e.listener != nil {
		e.listener.OnExchangeComplete(req, resp, err)
	}
	return resp, err
}

func (e *Engine) executeChain(req *http.Request, hop int) (*http.Response, error) {
	if hop > maxRedirectHops {
		return nil, newExecution("too many redirects", nil)
	}

	now := time.Now().Unix()
	var cachedMeta *Metadata
	var cachedResp *http.Response
	key := cacheKey(req)
	if len(e.cacheKeyHeaders) > 0 {
		key = cacheKeyWithVary(req, e.cacheKeyHeaders)
	}
	hasCache := e.store != nil

	if hasCache && IsAvailableToCache(req) {
		if meta, ok, err := e.store.GetMetadata(req.Context(), key); err == nil && ok {
			shell := meta.Response(req)
			if varyMatches(shell, req) {
				cachedMeta = &meta
				cachedResp = shell
			}
		}
	}

	decision := Decision{NetworkRequest: req}
	if hasCache {
		decision = Decide(req, cachedMeta, cachedResp, now)
	}

	if decision.NetworkRequest == nil {
		if decision.CacheResponse == nil {
			return newOnlyIfCachedMissResponse(req), nil
		}
		if err := e.attachStoredBody(req.Context(), key, decision.CacheResponse); err != nil {
			return nil, err
		}
		if e.markCachedResponses {
			decision.CacheResponse.Header.Set("X-From-Cache", "1")
		}
		if e.disableWarningHeader {
			decision.CacheResponse.Header.Del("Warning")
		}
		e.maybeAsyncRevalidate(req, cachedMeta, now)
		return decision.CacheResponse, nil
	}

	sentAt := time.Now().Unix()
	resp, _, sendErr := e.sendOverNetworkWithRetry(decision.NetworkRequest)
	receivedAt := time.Now().Unix()
	if sendErr != nil {
		if decision.CacheResponse != nil && e.allowStaleIfError(cachedMeta, now) {
			if err := e.attachStoredBody(req.Context(), key, decision.CacheResponse); err == nil {
				if !e.disableWarningHeader {
					addWarning(decision.CacheResponse, warningRevalidationFailed)
				}
				return decision.CacheResponse, nil
			}
		}
		return nil, sendErr
	}

	if decision.CacheResponse != nil && IsValidCacheResponse(*cachedMeta, resp) {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		updated := *cachedMeta
		updated.Header = CombineCacheAndNetworkHeaders(cachedMeta.Header, resp.Header)
		updated.ReceivedAtSec = now
		updated.LastAccessedSec = now

		result := updated.Response(req)
		if err := e.attachStoredBody(req.Context(), key, result); err != nil {
			return nil, err
		}
		if body, err := e.readStoredBody(req.Context(), key); err == nil {
			e.store.Put(req.Context(), key, updated, body)
		}
		if e.markCachedResponses {
			result.Header.Set("X-From-Cache", "1")
		}
		return result, nil
	}

	if hasCache {
		if isUnsafeMethod(req.Method) {
			e.invalidateCache(req, resp)
		}

		if e.isCacheableResponse(req, resp) {
			e.storeResponse(req, key, resp, sentAt, receivedAt)
		}
	}

	if next := GetRetryRequest(req, resp); next != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return e.executeChain(next, hop+1)
	}

	return resp, nil
}

func (e *Engine) isCacheableResponse(req *http.Request, resp *http.Response) bool {
	if e.skipServerErrors && resp.StatusCode >= 500 {
		return false
	}
	if !canStoreAuthorizedOrPrivate(req, parseCacheControl(resp.Header), e.isPublicCache) {
		return false
	}
	if e.shouldCache != nil && resp.StatusCode != http.StatusOK {
		if !e.shouldCache(resp) {
			return false
		}
		// Run IsCacheable's remaining checks without its status-code gate.
		asOK := *resp
		asOK.StatusCode = http.StatusOK
		return IsCacheable(req, &asOK)
	}
	return IsCacheable(req, resp)
}

// storeResponse buffers resp's body (so it can both be returned to the
// caller and written to the store), then persists metadata+body.
func (e *Engine) storeResponse(req *http.Request, key string, resp *http.Response, sentAt, receivedAt int64) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		GetLogger().Warn("failed to read response body for caching", "error", err)
		resp.Body = io.NopCloser(strings.NewReader(""))
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	storeVaryHeaders(resp, req)
	meta := NewMetadataFromResponse(key, req, resp, int64(len(body)), sentAt, receivedAt, receivedAt)
	if len(e.cacheKeyHeaders) > 0 {
		key = cacheKeyWithVary(req, e.cacheKeyHeaders)
		meta.Key = key
	}
	if err := e.store.Put(req.Context(), key, meta, body); err != nil {
		GetLogger().Warn("failed to store cache entry", "key", key, "error", err)
	}
}

func (e *Engine) attachStoredBody(ctx context.Context, key string, resp *http.Response) error {
	rc, err := e.store.GetBody(ctx, key)
	if err != nil {
		return newExecution("read cached body", err)
	}
	resp.Body = rc
	return nil
}

func (e *Engine) readStoredBody(ctx context.Context, key string) ([]byte, error) {
	rc, err := e.store.GetBody(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// allowStaleIfError reports whether a stale cached entry may stand in
// for a failed revalidation, per the response's stale-if-error budget.
func (e *Engine) allowStaleIfError(meta *Metadata, now int64) bool {
	if meta == nil {
		return false
	}
	cc := parseCacheControl(meta.Header)
	if !cc.has(ccStaleIfError) {
		return false
	}
	budget := cc.seconds(ccStaleIfError, 0)
	age := computeAge(*meta, now)
	fresh := freshnessLifetime(*meta)
	return age <= fresh+budget
}

// maybeAsyncRevalidate kicks off a best-effort background revalidation
// when a served-from-cache response is already stale but within its
// stale-while-revalidate budget.
func (e *Engine) maybeAsyncRevalidate(req *http.Request, meta *Metadata, now int64) {
	if meta == nil {
		return
	}
	cc := parseCacheControl(meta.Header)
	if !cc.has(ccStaleWhileRevalidate) {
		return
	}
	fresh := freshnessLifetime(*meta)
	age := computeAge(*meta, now)
	if age < fresh {
		return
	}
	budget := cc.seconds(ccStaleWhileRevalidate, 0)
	if age > fresh+budget {
		return
	}

	revalReq := cloneRequest(req)
	go func() {
		ctx := context.Background()
		if e.asyncRevalidateTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.asyncRevalidateTimeout)
			defer cancel()
		}
		sentAt := time.Now().Unix()
		resp, _, err := e.sendOverNetworkWithRetry(revalReq.WithContext(ctx))
		receivedAt := time.Now().Unix()
		if err != nil {
			return
		}
		defer resp.Body.Close()
		if e.isCacheableResponse(revalReq, resp) {
			e.storeResponse(revalReq, cacheKey(revalReq), resp, sentAt, receivedAt)
		}
	}()
}

func newOnlyIfCachedMissResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:     "504 Gateway Timeout",
		StatusCode: http.StatusGatewayTimeout,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}
}
