package connpool

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testEndpoint(t *testing.T, srv *httptest.Server) Endpoint {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	ep, err := EndpointFromRequest(req, "", "", "", "", 5)
	require.NoError(t, err)
	return ep
}

func TestPoolCreatesThenReusesConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewPool()
	require.NoError(t, err)

	ep := testEndpoint(t, srv)

	conn1, reused, err := p.GetConnection(ep)
	require.NoError(t, err)
	require.False(t, reused)
	require.Equal(t, 1, p.InUseCount())

	require.True(t, p.ReleaseConnection(conn1))
	require.Equal(t, 1, p.IdleCount())

	conn2, reused, err := p.GetConnection(ep)
	require.NoError(t, err)
	require.True(t, reused)
	require.Same(t, conn1, conn2)
	require.Equal(t, 0, p.IdleCount())
}

func TestPoolDoesNotReuseAcrossDifferentEndpoints(t *testing.T) {
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srvB.Close()

	p, err := NewPool()
	require.NoError(t, err)

	connA, _, err := p.GetConnection(testEndpoint(t, srvA))
	require.NoError(t, err)
	p.ReleaseConnection(connA)

	connB, reused, err := p.GetConnection(testEndpoint(t, srvB))
	require.NoError(t, err)
	require.False(t, reused)
	require.NotSame(t, connA, connB)
}

func TestKeepAliveTimeoutExpiresIdleConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p, err := NewPool(WithKeepAliveTimeout(20 * time.Millisecond))
	require.NoError(t, err)

	ep := testEndpoint(t, srv)
	conn, _, err := p.GetConnection(ep)
	require.NoError(t, err)
	p.ReleaseConnection(conn)
	require.Equal(t, 1, p.IdleCount())

	require.Eventually(t, func() bool {
		return p.IdleCount() == 0
	}, time.Second, 5*time.Millisecond)
	require.True(t, conn.Cancelled())
}

func TestIdleCountMaxEvictsSoonestExpiring(t *testing.T) {
	srvs := make([]*httptest.Server, 3)
	for i := range srvs {
		srvs[i] = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srvs[i].Close()
	}

	p, err := NewPool(WithKeepAliveTimeout(time.Minute), WithIdleCountMax(2))
	require.NoError(t, err)

	var conns []*Connection
	for _, srv := range srvs {
		conn, _, err := p.GetConnection(testEndpoint(t, srv))
		require.NoError(t, err)
		conns = append(conns, conn)
		p.ReleaseConnection(conn)
		time.Sleep(5 * time.Millisecond)
	}

	require.Equal(t, 2, p.IdleCount())
	require.True(t, conns[0].Cancelled())
	require.False(t, conns[2].Cancelled())
}

func TestRemoveConnectionCancelsAndDrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p, err := NewPool()
	require.NoError(t, err)

	conn, _, err := p.GetConnection(testEndpoint(t, srv))
	require.NoError(t, err)

	require.True(t, p.RemoveConnection(conn))
	require.True(t, conn.Cancelled())
	require.Equal(t, 0, p.InUseCount())

	require.False(t, p.ReleaseConnection(conn))
}
