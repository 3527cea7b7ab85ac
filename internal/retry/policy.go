// Package retry implements bounded retries with exponential backoff
// and jitter, gated by status/method whitelists, wrapping a circuit
// breaker so every attempt is individually gated and counted.
package retry

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/neuragate/gateway/internal/breaker"
)

// Policy is the retry configuration for one route.
type Policy struct {
	MaxRetries        int
	BaseBackoff       time.Duration
	Multiplier        float64
	RetryableStatuses map[int]bool
	RetryableMethods  map[string]bool
}

// DefaultPolicy matches the defaults injected by the route compiler
// when no Retry filter is configured: retries=3, statuses={502,503},
// methods={GET,POST,PUT,DELETE}, base=500ms, multiplier=2.
func DefaultPolicy() *Policy {
	return New(3, 500*time.Millisecond, 2, []int{502, 503}, []string{"GET", "POST", "PUT", "DELETE"})
}

// New builds a Policy from explicit values.
func New(maxRetries int, base time.Duration, multiplier float64, statuses []int, methods []string) *Policy {
	p := &Policy{MaxRetries: maxRetries, BaseBackoff: base, Multiplier: multiplier}
	p.RetryableStatuses = make(map[int]bool, len(statuses))
	for _, s := range statuses {
		p.RetryableStatuses[s] = true
	}
	p.RetryableMethods = make(map[string]bool, len(methods))
	for _, m := range methods {
		p.RetryableMethods[m] = true
	}
	return p
}

// Attempt performs exactly one upstream call. It never writes to a
// ResponseWriter; it only returns the outcome so Policy can decide
// whether to retry and so the wrapped breaker can observe it.
type Attempt func(ctx context.Context) (*http.Response, error)

// Result is the outcome of Execute.
type Result struct {
	Response *http.Response
	Err      error
	// RetryCount is the number of additional attempts beyond the first.
	RetryCount int
	// ShortCircuited is true when the wrapped breaker denied an
	// attempt (it is OPEN); Response and Err are both nil in that
	// case and the caller must route to the fallback router instead.
	ShortCircuited bool
}

// Execute runs attempt, retrying up to p.MaxRetries additional times
// when the outcome is retryable for the given method. If br is
// non-nil, every attempt is gated by br.Allow() and its outcome is
// recorded via br.RecordSuccess/RecordFailure before the retryability
// decision is made, so the breaker sees every attempt regardless of
// whether the retry loop ultimately gives up.
func Execute(ctx context.Context, p *Policy, method string, br *breaker.Breaker, attempt Attempt) Result {
	methodRetryable := p.RetryableMethods[method]

	for k := 0; ; k++ {
		if k > 0 {
			wait := p.backoff(k)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Result{Err: ctx.Err(), RetryCount: k}
			case <-timer.C:
			}
		}

		if br != nil && !br.Allow() {
			return Result{ShortCircuited: true, RetryCount: k}
		}

		resp, err := attempt(ctx)

		if br != nil {
			if err != nil || (resp != nil && resp.StatusCode >= 500) {
				br.RecordFailure()
			} else {
				br.RecordSuccess()
			}
		}

		retryable := methodRetryable && p.isRetryableOutcome(resp, err)
		if !retryable || k >= p.MaxRetries {
			return Result{Response: resp, Err: err, RetryCount: k}
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return Result{Err: ctx.Err(), RetryCount: k}
		}
	}
}

func (p *Policy) isRetryableOutcome(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp != nil && p.RetryableStatuses[resp.StatusCode] {
		return true
	}
	return false
}

// backoff computes wait = base * multiplier^(k-1) + jitter, jitter
// uniform in [0, wait/2], for the wait preceding attempt k+1 (1-indexed
// as k here, matching the "between attempt k and attempt k+1" wording).
func (p *Policy) backoff(k int) time.Duration {
	base := float64(p.BaseBackoff)
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	wait := base
	for i := 1; i < k; i++ {
		wait *= mult
	}
	jitter := rand.Float64() * wait / 2
	return time.Duration(wait + jitter)
}
