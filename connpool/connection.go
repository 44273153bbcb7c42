// Package connpool implements the Connection Pool component: a set of
// reusable, endpoint-keyed HTTP connections with keep-alive idle timers
// and an idle-count ceiling, grounded on the spec's Connection (F) and
// Connection Pool (G) data model.
package connpool

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

// Status is a Connection's membership state within the pool.
type Status int

const (
	StatusInUse Status = iota
	StatusIdle
)

// Endpoint is the equivalence tuple a pooled Connection is keyed by:
// two requests reuse the same Connection only if every field matches.
// root_ca_dir/root_ca_file only participate in equivalence for https
// endpoints, matching the spec's "https only" qualifier.
type Endpoint struct {
	Scheme     string
	Host       string
	Port       string
	ProxyHost  string
	ProxyPort  string
	RootCADir  string
	RootCAFile string
	TimeoutSec int64
}

// EndpointFromRequest derives the pooling key for req.
func EndpointFromRequest(req *http.Request, proxyHost, proxyPort, rootCADir, rootCAFile string, timeoutSec int64) (Endpoint, error) {
	u := req.URL
	if u == nil {
		return Endpoint{}, fmt.Errorf("connpool: request has no URL")
	}
	scheme := u.Scheme
	if scheme != "http" && scheme != "https" {
		return Endpoint{}, fmt.Errorf("connpool: unsupported scheme %q", scheme)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = defaultPort(scheme)
	}

	ep := Endpoint{
		Scheme:     scheme,
		Host:       host,
		Port:       port,
		ProxyHost:  proxyHost,
		ProxyPort:  proxyPort,
		TimeoutSec: timeoutSec,
	}
	if scheme == "https" {
		ep.RootCADir = rootCADir
		ep.RootCAFile = rootCAFile
	}
	return ep, nil
}

func defaultPort(scheme string) string {
	if scheme == "https" {
		return "443"
	}
	return "80"
}

// Equivalent reports whether e and o identify the same pooled endpoint.
func (e Endpoint) Equivalent(o Endpoint) bool {
	return e == o
}

func (e Endpoint) String() string {
	addr := net_JoinHostPort(e.Host, e.Port)
	if e.ProxyHost == "" {
		return e.Scheme + "://" + addr
	}
	return e.Scheme + "://" + addr + " via " + net_JoinHostPort(e.ProxyHost, e.ProxyPort)
}

func net_JoinHostPort(host, port string) string {
	if port == "" {
		return host
	}
	return host + ":" + port
}

// Connection is a single pooled network session. The underlying
// *http.Client is reused across requests that target an equivalent
// Endpoint; its lifecycle (in-use, idle, cancelled) is tracked here so
// the pool can enforce its idle-count ceiling and keep-alive timers.
type Connection struct {
	mu       sync.Mutex
	Endpoint Endpoint
	Client   *http.Client

	status    Status
	cancelled bool
}

// NewConnection wraps client as a freshly created, in-use Connection.
func NewConnection(endpoint Endpoint, client *http.Client) *Connection {
	return &Connection{Endpoint: endpoint, Client: client, status: StatusInUse}
}

// TryReuse atomically claims c for target if c is idle, not cancelled,
// and endpoint-equivalent to target.
func (c *Connection) TryReuse(target Endpoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled || c.status != StatusIdle {
		return false
	}
	if !c.Endpoint.Equivalent(target) {
		return false
	}
	c.status = StatusInUse
	return true
}

func (c *Connection) markIdle() {
	c.mu.Lock()
	c.status = StatusIdle
	c.mu.Unlock()
}

// Cancel marks c so that it will never be reused or left idle again;
// a release racing a cancel always removes the connection from the pool.
func (c *Connection) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
}

func (c *Connection) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// parsePort is used by dialers building a Connection's *http.Client to
// turn Endpoint.Port back into an integer where net.Dial needs one.
func parsePort(port string) (int, error) {
	return strconv.Atoi(port)
}
