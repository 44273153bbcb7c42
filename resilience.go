package httpengine

import (
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ResilienceConfig holds the network interceptor policies applied around
// the Engine's per-leg network send, independent of the connection-reuse
// retry the Engine always performs on its own (§4.5). Disabled by default.
type ResilienceConfig struct {
	// RetryPolicy configures retry behavior using failsafe-go. If nil,
	// retry is disabled.
	RetryPolicy retrypolicy.RetryPolicy[*http.Response]

	// CircuitBreaker configures circuit breaker behavior using
	// failsafe-go. If nil, circuit breaking is disabled.
	CircuitBreaker circuitbreaker.CircuitBreaker[*http.Response]
}

// RetryPolicyBuilder returns a pre-configured retry policy builder:
// retries on network errors or 5xx, up to 3 times, backing off
// exponentially from 100ms to 10s.
func RetryPolicyBuilder() retrypolicy.Builder[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 10*time.Second)
}

// CircuitBreakerBuilder returns a pre-configured circuit breaker
// builder: opens after 5 consecutive failures, half-opens after 60s,
// closes after 2 consecutive successes.
func CircuitBreakerBuilder() circuitbreaker.Builder[*http.Response] {
	return circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

// executeWithResilience wraps a single network leg with the configured
// retry/circuit-breaker policies. failsafe.With treats its first policy
// as the outermost, so the retry policy wraps the circuit breaker.
func (e *Engine) executeWithResilience(fn func() (*http.Response, error)) (*http.Response, error) {
	if e.resilience == nil {
		return fn()
	}

	var policies []failsafe.Policy[*http.Response]
	if e.resilience.RetryPolicy != nil {
		policies = append(policies, e.resilience.RetryPolicy)
	}
	if e.resilience.CircuitBreaker != nil {
		policies = append(policies, e.resilience.CircuitBreaker)
	}
	if len(policies) == 0 {
		return fn()
	}
	return failsafe.With(policies...).Get(fn)
}
