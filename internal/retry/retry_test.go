package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/levchenko/complychat/internal/backend"
)

// recordSleep collects backoff delays instead of waiting them out.
func recordSleep(delays *[]time.Duration) Option {
	return withSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDo_ExponentialSchedule(t *testing.T) {
	var delays []time.Duration
	calls := 0
	failure := &backend.RemoteError{Status: 500}

	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return failure
	}, recordSleep(&delays))

	if !errors.Is(err, failure) {
		t.Fatalf("Do returned %v, want the last failure", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("got %d delays %v, want %d", len(delays), delays, len(want))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestDo_CustomBaseDelay(t *testing.T) {
	var delays []time.Duration
	Do(context.Background(), func(ctx context.Context) error {
		return &backend.RemoteError{Status: 502}
	}, BaseDelay(100*time.Millisecond), Attempts(4), recordSleep(&delays))

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("got delays %v, want %v", delays, want)
	}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestDo_IneligibleErrorReturnsImmediately(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		var delays []time.Duration
		calls := 0
		err := Do(context.Background(), func(ctx context.Context) error {
			calls++
			return &backend.RemoteError{Status: status}
		}, recordSleep(&delays))

		if err == nil {
			t.Fatalf("status %d: Do returned nil", status)
		}
		if calls != 1 {
			t.Errorf("status %d: op called %d times, want 1", status, calls)
		}
		if len(delays) != 0 {
			t.Errorf("status %d: slept %v, want no sleeps", status, delays)
		}
	}
}

func TestDo_EligibleStatusesRetry(t *testing.T) {
	for _, status := range []int{408, 429, 500, 503} {
		calls := 0
		Do(context.Background(), func(ctx context.Context) error {
			calls++
			return &backend.RemoteError{Status: status}
		}, recordSleep(new([]time.Duration)))

		if calls != 3 {
			t.Errorf("status %d: op called %d times, want 3", status, calls)
		}
	}
}

func TestDo_TransportFailureRetries(t *testing.T) {
	calls := 0
	Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &backend.TransportError{Reason: backend.ReasonNetwork, Err: errors.New("refused")}
	}, recordSleep(new([]time.Duration)))

	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDo_RecoversMidSchedule(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &backend.RemoteError{Status: 503}
		}
		return nil
	}, recordSleep(new([]time.Duration)))

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return &backend.RemoteError{Status: 500}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do returned %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	sentinel := errors.New("always retry")
	calls := 0
	Do(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	}, Classify(func(error) bool { return true }), recordSleep(new([]time.Duration)))

	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}
