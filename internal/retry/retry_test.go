package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"google.golang.org/genai"
)

func testPolicy(cfg Config) (*Policy, *[]time.Duration) {
	p := New("test", cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	p.jitter = func() float64 { return 0 }
	return p, &slept
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		retryable bool
		auth      bool
	}{
		{name: "server error", err: FromStatus(http.StatusBadGateway, "", nil), retryable: true},
		{name: "unauthorized", err: FromStatus(http.StatusUnauthorized, "", nil), auth: true},
		{name: "forbidden", err: FromStatus(http.StatusForbidden, "", nil), auth: true},
		{name: "rate limited", err: FromStatus(http.StatusTooManyRequests, "2", nil), retryable: true},
		{name: "bad request", err: FromStatus(http.StatusBadRequest, "", nil)},
		{name: "genai unavailable", err: genai.APIError{Code: 503, Message: "overloaded"}, retryable: true},
		{name: "genai forbidden pointer", err: &genai.APIError{Code: 403}, auth: true},
		{name: "wrapped genai", err: fmt.Errorf("generate: %w", genai.APIError{Code: 500}), retryable: true},
		{name: "deadline", err: context.DeadlineExceeded, retryable: true},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(tt.err)
			if IsRetryable(got) != tt.retryable {
				t.Errorf("IsRetryable(%v) = %v, want %v", got, !tt.retryable, tt.retryable)
			}
			var auth *AuthError
			if errors.As(got, &auth) != tt.auth {
				t.Errorf("auth classification of %v = %v, want %v", got, !tt.auth, tt.auth)
			}
		})
	}
}

func TestFromStatusSuccess(t *testing.T) {
	t.Parallel()

	if err := FromStatus(http.StatusOK, "", nil); err != nil {
		t.Errorf("FromStatus(200) = %v, want nil", err)
	}
}

func TestGenaiRetryDelay(t *testing.T) {
	t.Parallel()

	err := Classify(genai.APIError{
		Code: 429,
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"},
		},
	})

	var limited *RateLimitError
	if !errors.As(err, &limited) {
		t.Fatalf("Classify() = %v, want RateLimitError", err)
	}
	if limited.RetryAfter != 17*time.Second {
		t.Errorf("RetryAfter = %s, want 17s", limited.RetryAfter)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		input string
		want  time.Duration
	}{
		{input: "", want: 0},
		{input: "5", want: 5 * time.Second},
		{input: "-3", want: 0},
		{input: "Wed, 01 Jan 2025 12:00:10 GMT", want: 10 * time.Second},
		{input: "Wed, 01 Jan 2025 11:00:00 GMT", want: 0},
		{input: "soon", want: 0},
	}

	for _, tt := range tests {
		if got := ParseRetryAfter(tt.input, now); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestDoRetriesTransient(t *testing.T) {
	t.Parallel()

	p, slept := testPolicy(Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second})

	calls := 0
	got, err := Do(context.Background(), p, "rewrite", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", FromStatus(http.StatusServiceUnavailable, "", nil)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("Do() = %q after %d calls, want ok after 3", got, calls)
	}
	if want := []time.Duration{time.Second, 2 * time.Second}; len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("backoff = %v, want %v", *slept, want)
	}
}

func TestDoAuthNotRetried(t *testing.T) {
	t.Parallel()

	p, slept := testPolicy(Config{MaxAttempts: 3})

	calls := 0
	err := p.Do(context.Background(), "rewrite", func(context.Context) error {
		calls++
		return FromStatus(http.StatusUnauthorized, "", nil)
	})

	var auth *AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("Do() error = %v, want AuthError", err)
	}
	if calls != 1 || len(*slept) != 0 {
		t.Errorf("calls = %d, sleeps = %d; want 1 call and no sleep", calls, len(*slept))
	}
}

func TestDoHonoursRetryAfter(t *testing.T) {
	t.Parallel()

	p, slept := testPolicy(Config{MaxAttempts: 2})

	calls := 0
	err := p.Do(context.Background(), "rewrite", func(context.Context) error {
		calls++
		if calls == 1 {
			return FromStatus(http.StatusTooManyRequests, "7", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 7*time.Second {
		t.Errorf("slept %v, want [7s]", *slept)
	}
}

func TestDoGivesUp(t *testing.T) {
	t.Parallel()

	p, _ := testPolicy(Config{MaxAttempts: 3})

	calls := 0
	err := p.Do(context.Background(), "ocr", func(context.Context) error {
		calls++
		return FromStatus(http.StatusInternalServerError, "", nil)
	})

	var transient *TransientNetworkError
	if !errors.As(err, &transient) {
		t.Fatalf("Do() error = %v, want TransientNetworkError", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	t.Parallel()

	p, _ := testPolicy(Config{MaxAttempts: 5})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Do(ctx, "ocr", func(context.Context) error {
		calls++
		cancel()
		return FromStatus(http.StatusBadGateway, "", nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoCallTimeout(t *testing.T) {
	t.Parallel()

	p, _ := testPolicy(Config{MaxAttempts: 2, CallTimeout: 10 * time.Millisecond})

	calls := 0
	err := p.Do(context.Background(), "rewrite", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	var transient *TransientNetworkError
	if !errors.As(err, &transient) {
		t.Fatalf("Do() error = %v, want TransientNetworkError", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestBreakerOpensAndFailsFast(t *testing.T) {
	t.Parallel()

	p, _ := testPolicy(Config{MaxAttempts: 1, BreakerFailures: 2, BreakerTimeout: time.Hour})
	failing := func(context.Context) error { return FromStatus(http.StatusBadGateway, "", nil) }

	for range 2 {
		_ = p.Do(context.Background(), "rewrite", failing)
	}

	calls := 0
	err := p.Do(context.Background(), "rewrite", func(context.Context) error {
		calls++
		return nil
	})
	if err == nil || calls != 0 {
		t.Errorf("open breaker: err = %v, calls = %d; want error and no call", err, calls)
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	t.Parallel()

	p, _ := testPolicy(Config{MaxAttempts: 1, BreakerFailures: 1, BreakerTimeout: time.Hour})

	_ = p.Do(context.Background(), "rewrite", func(context.Context) error {
		return FromStatus(http.StatusUnauthorized, "", nil)
	})

	if err := p.Do(context.Background(), "rewrite", func(context.Context) error { return nil }); err != nil {
		t.Errorf("breaker tripped on auth error: %v", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	t.Parallel()

	p, _ := testPolicy(Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second})
	err := FromStatus(http.StatusBadGateway, "", nil)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i+1, err); got != w {
			t.Errorf("Backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}
