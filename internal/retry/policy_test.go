package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/neuragate/gateway/internal/breaker"
)

func TestExecuteNoRetryOnSuccess(t *testing.T) {
	p := New(3, time.Millisecond, 2, []int{502, 503}, []string{"GET"})
	calls := 0
	res := Execute(context.Background(), p, "GET", nil, func(ctx context.Context) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 200}, nil
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if res.RetryCount != 0 {
		t.Fatalf("expected retry count 0, got %d", res.RetryCount)
	}
}

func TestExecuteRetriesOnRetryableStatus(t *testing.T) {
	p := New(3, time.Millisecond, 2, []int{502, 503}, []string{"GET"})
	calls := 0
	res := Execute(context.Background(), p, "GET", nil, func(ctx context.Context) (*http.Response, error) {
		calls++
		if calls < 3 {
			return &http.Response{StatusCode: 503}, nil
		}
		return &http.Response{StatusCode: 200}, nil
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if res.RetryCount != 2 {
		t.Fatalf("expected retry count 2, got %d", res.RetryCount)
	}
	if res.Response.StatusCode != 200 {
		t.Fatalf("expected eventual 200, got %d", res.Response.StatusCode)
	}
}

func TestExecuteNeverRetriesDisallowedMethod(t *testing.T) {
	p := New(3, time.Millisecond, 2, []int{502, 503}, []string{"GET"})
	calls := 0
	res := Execute(context.Background(), p, "DELETE", nil, func(ctx context.Context) (*http.Response, error) {
		calls++
		return nil, errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable method, got %d", calls)
	}
	if res.Err == nil {
		t.Fatal("expected the error to propagate")
	}
}

func TestExecuteStopsWhenBreakerOpens(t *testing.T) {
	p := New(5, time.Millisecond, 2, []int{502, 503}, []string{"GET"})
	br := breaker.New(breaker.Config{FailureRateThreshold: 0.1, MinimumNumberOfCalls: 1, SlidingWindowSize: 5, WaitDurationInOpenState: time.Hour})

	calls := 0
	res := Execute(context.Background(), p, "GET", br, func(ctx context.Context) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 503}, nil
	})

	if !res.ShortCircuited {
		t.Fatal("expected the retry loop to stop once the breaker opens")
	}
	if calls == 0 {
		t.Fatal("expected at least one attempt before the breaker opened")
	}
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	p := New(5, 50*time.Millisecond, 2, []int{502}, []string{"GET"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := Execute(ctx, p, "GET", nil, func(ctx context.Context) (*http.Response, error) {
		return &http.Response{StatusCode: 502}, nil
	})

	if res.Err == nil {
		t.Fatal("expected a context error once the deadline is reached")
	}
}
