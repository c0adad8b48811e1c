package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := core.Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to retry to success: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestRetryExhaustionWrapsSentinel(t *testing.T) {
	calls := 0
	err := core.Retry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("still down")
	})
	if !errors.Is(err, core.ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
}

func TestRetryStopsOnContextExpiry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := core.Retry(ctx, 100, 5*time.Millisecond, func(context.Context) error {
		return errors.New("keep trying")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline, got %v", err)
	}
}
