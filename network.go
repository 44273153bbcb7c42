package httpengine

import (
	"net/http"

	"github.com/sandrolain/httpengine/connpool"
)

// sendOverNetworkWithRetry sends req over a pooled Connection and
// implements §4.5's retry-by-connection-reuse: an error on a reused
// connection is retried exactly once, with the request body reset
// first; a reused connection whose body can't be reset fails with
// ConnectionRetry instead of retrying; an error on a connection that was
// newly created is never retried and surfaces as a plain Execution
// error, and an error on the retry attempt is never retried either. The
// retry obtains its connection through Pool.GetConnection again, so it
// does not force a new connection: another idle, endpoint-equivalent
// connection is reused if the pool has one. A cancelled request
// re-raises immediately without attempting the retry (§4.5 step 3,
// Testable Scenario 5). The returned bool reports whether the first
// attempt's connection was reused when that attempt succeeded; it is
// always false for a response from the retry attempt.
func (e *Engine) sendOverNetworkWithRetry(req *http.Request) (*http.Response, bool, error) {
	ep, err := connpool.EndpointFromRequest(req, e.proxyHost, e.proxyPort, e.rootCADir, e.rootCAFile, e.timeoutSec)
	if err != nil {
		return nil, false, newIllegalArgument("derive connection endpoint", err)
	}

	conn, reused, err := e.pool.GetConnection(ep)
	if err != nil {
		return nil, false, newExecution("create connection", err)
	}

	resp, sendErr := e.doSend(conn, req)
	if sendErr == nil {
		e.pool.ReleaseConnection(conn)
		return resp, reused, nil
	}

	e.pool.RemoveConnection(conn)

	if req.Context().Err() != nil {
		return nil, false, newExecution("send request", sendErr)
	}
	if !reused {
		return nil, false, newExecution("send request", sendErr)
	}
	if !resetRequestBody(req) {
		return nil, false, newConnectionRetry("reused connection failed and request body could not be reset", sendErr)
	}

	conn2, _, err := e.pool.GetConnection(ep)
	if err != nil {
		return nil, false, newExecution("create connection", err)
	}
	resp2, retryErr := e.doSend(conn2, req)
	if retryErr != nil {
		e.pool.RemoveConnection(conn2)
		return nil, false, newExecution("retry after reused-connection failure", retryErr)
	}
	e.pool.ReleaseConnection(conn2)
	return resp2, false, nil
}

func (e *Engine) doSend(conn *connpool.Connection, req *http.Request) (*http.Response, error) {
	return e.executeWithResilience(func() (*http.Response, error) {
		return conn.Client.Do(req)
	})
}

// resetRequestBody rewinds req.Body via GetBody for a retry. Returns
// false (no retry possible) when the body is not resettable.
func resetRequestBody(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return true
	}
	if req.GetBody == nil {
		return false
	}
	body, err := req.GetBody()
	if err != nil {
		return false
	}
	req.Body = body
	return true
}
