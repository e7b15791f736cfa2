package resilience

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestWithTimeout_CompletesInBound(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("WithTimeout() error = %v, want nil", err)
	}
}

func TestWithTimeout_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("WithTimeout() error = %v, want %v", err, want)
	}
}

func TestWithTimeout_ExceedsBound(t *testing.T) {
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("WithTimeout() error = %v, want ErrTimeout", err)
	}
}

func TestRetry_SucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection reset")}
		}
		return nil
	})
	if err != nil {
		t.Errorf("Retry() error = %v, want nil", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetry_DoesNotRetryDomainErrors(t *testing.T) {
	attempts := 0
	domainErr := errors.New("token endpoint returned invalid_grant")
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		return domainErr
	})
	if !errors.Is(err, domainErr) {
		t.Errorf("Retry() error = %v, want %v", err, domainErr)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (domain errors are not transient)", attempts)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryIf:      func(error) bool { return true },
	}, func(ctx context.Context) error {
		attempts++
		return errors.New("still failing")
	})
	if err == nil {
		t.Error("Retry() error = nil, want last error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		RetryIf:      func(error) bool { return true },
	}, func(ctx context.Context) error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("refused")}, true},
		{"domain error", errors.New("invalid_grant"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
