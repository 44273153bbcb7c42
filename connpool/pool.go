package connpool

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Dialer builds the *http.Client for a freshly admitted Endpoint. The
// default dialer applies a TLS context for https endpoints via
// tlsConfigFunc (nil means "use Go's system defaults"); callers that
// need root CA / CRL handling supply their own via WithTLSConfigFunc.
type Dialer func(Endpoint) (*http.Client, error)

type idleEntry struct {
	timer     *time.Timer
	expiresAt time.Time
}

// Pool is the Connection Pool (G): it hands out Connections keyed by
// Endpoint equivalence, arms an idle timer on release, and enforces an
// idle-count ceiling by evicting the soonest-to-expire idle entry when
// a new one would exceed it.
type Pool struct {
	mu    sync.Mutex
	idle  map[*Connection]*idleEntry
	inUse map[*Connection]struct{}

	keepAliveTimeout time.Duration
	idleCountMax     int
	dial             Dialer
}

// Option configures a Pool at construction time.
type Option func(*Pool) error

// WithKeepAliveTimeout sets how long a released Connection stays idle
// before on_keep_alive_timeout_expired removes it. Default 90s.
func WithKeepAliveTimeout(d time.Duration) Option {
	return func(p *Pool) error {
		if d <= 0 {
			return fmt.Errorf("connpool: keep-alive timeout must be positive")
		}
		p.keepAliveTimeout = d
		return nil
	}
}

// WithIdleCountMax caps how many idle connections the pool retains at
// once. Default 32.
func WithIdleCountMax(n int) Option {
	return func(p *Pool) error {
		if n <= 0 {
			return fmt.Errorf("connpool: idle count max must be positive")
		}
		p.idleCountMax = n
		return nil
	}
}

// WithDialer overrides how new Connections are created.
func WithDialer(d Dialer) Option {
	return func(p *Pool) error {
		if d == nil {
			return fmt.Errorf("connpool: dialer must not be nil")
		}
		p.dial = d
		return nil
	}
}

// WithTLSConfigFunc installs a per-endpoint *tls.Config builder used by
// the default dialer for https endpoints.
func WithTLSConfigFunc(f func(Endpoint) (*tls.Config, error)) Option {
	return func(p *Pool) error {
		p.dial = defaultDialer(f)
		return nil
	}
}

// NewPool constructs a Pool with the given options applied over the
// documented defaults.
func NewPool(opts ...Option) (*Pool, error) {
	p := &Pool{
		idle:             map[*Connection]*idleEntry{},
		inUse:            map[*Connection]struct{}{},
		keepAliveTimeout: 90 * time.Second,
		idleCountMax:     32,
	}
	p.dial = defaultDialer(nil)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func defaultDialer(tlsConfigFunc func(Endpoint) (*tls.Config, error)) Dialer {
	return func(ep Endpoint) (*http.Client, error) {
		if _, err := parsePort(ep.Port); err != nil {
			return nil, fmt.Errorf("connpool: invalid port %q: %w", ep.Port, err)
		}

		transport := &http.Transport{
			Proxy: proxyFunc(ep),
			DialContext: (&net.Dialer{
				Timeout: time.Duration(ep.TimeoutSec) * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost: 1,
		}
		if ep.Scheme == "https" {
			if tlsConfigFunc != nil {
				cfg, err := tlsConfigFunc(ep)
				if err != nil {
					return nil, err
				}
				transport.TLSClientConfig = cfg
			} else {
				transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: ep.Host}
			}
		}

		client := &http.Client{
			Transport: transport,
			// The Engine drives redirects itself (GetRetryRequest), so the
			// pooled client must hand back the redirect response as-is.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
		if ep.TimeoutSec > 0 {
			client.Timeout = time.Duration(ep.TimeoutSec) * time.Second
		}
		return client, nil
	}
}

func proxyFunc(ep Endpoint) func(*http.Request) (*url.URL, error) {
	if ep.ProxyHost == "" {
		return nil
	}
	proxyURL := &url.URL{Scheme: "http", Host: net_JoinHostPort(ep.ProxyHost, ep.ProxyPort)}
	return func(*http.Request) (*url.URL, error) { return proxyURL, nil }
}

// GetConnection implements §4.4's get_connection: reuse an idle,
// endpoint-equivalent Connection if one exists, otherwise create one.
// The returned bool reports whether the Connection was reused (the
// Engine retries a request exactly once when a reused connection fails
// with an Execution error; newly created connections are never retried).
func (p *Pool) GetConnection(ep Endpoint) (conn *Connection, reused bool, err error) {
	p.mu.Lock()
	for c := range p.idle {
		if c.TryReuse(ep) {
			p.removeIdleLocked(c)
			p.inUse[c] = struct{}{}
			p.mu.Unlock()
			return c, true, nil
		}
	}
	p.mu.Unlock()

	client, err := p.dial(ep)
	if err != nil {
		return nil, false, err
	}
	conn = NewConnection(ep, client)

	p.mu.Lock()
	p.inUse[conn] = struct{}{}
	p.mu.Unlock()
	return conn, false, nil
}

// ReleaseConnection implements §4.4's release_connection: a cancelled
// connection is removed outright, otherwise it is marked idle and an
// idle timer is armed for keepAliveTimeout. Returns false if conn was
// cancelled (and therefore discarded) rather than pooled.
func (p *Pool) ReleaseConnection(conn *Connection) bool {
	if conn.Cancelled() {
		p.RemoveConnection(conn)
		return false
	}
	conn.markIdle()

	p.mu.Lock()
	delete(p.inUse, conn)
	timer := time.AfterFunc(p.keepAliveTimeout, func() { p.onKeepAliveTimeoutExpired(conn) })
	p.idle[conn] = &idleEntry{timer: timer, expiresAt: time.Now().Add(p.keepAliveTimeout)}
	p.enforceIdleCountLocked()
	p.mu.Unlock()
	return true
}

// RemoveConnection implements §4.4's remove_connection: cancel and drop
// conn from the pool regardless of which map it currently lives in.
func (p *Pool) RemoveConnection(conn *Connection) bool {
	conn.Cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	_, wasIdle := p.idle[conn]
	_, wasInUse := p.inUse[conn]
	p.removeIdleLocked(conn)
	delete(p.inUse, conn)
	return wasIdle || wasInUse
}

func (p *Pool) removeIdleLocked(conn *Connection) {
	if entry, ok := p.idle[conn]; ok {
		entry.timer.Stop()
		delete(p.idle, conn)
	}
}

func (p *Pool) onKeepAliveTimeoutExpired(conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.idle[conn]; ok {
		delete(p.idle, conn)
		conn.Cancel()
	}
}

// enforceIdleCountLocked drops the soonest-to-expire idle connection(s)
// until the idle set no longer exceeds idleCountMax. Must be called
// with p.mu held.
func (p *Pool) enforceIdleCountLocked() {
	for len(p.idle) > p.idleCountMax {
		var oldest *Connection
		var oldestAt time.Time
		for c, entry := range p.idle {
			if oldest == nil || entry.expiresAt.Before(oldestAt) {
				oldest = c
				oldestAt = entry.expiresAt
			}
		}
		if oldest == nil {
			return
		}
		p.removeIdleLocked(oldest)
		oldest.Cancel()
	}
}

// IdleCount reports how many connections currently sit idle.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// InUseCount reports how many connections are currently checked out.
func (p *Pool) InUseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}
