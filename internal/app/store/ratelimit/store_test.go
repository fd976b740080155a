package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratanotify/internal/testutil"
)

// newClockedStore returns a Store whose clock only moves when advance is
// called.
func newClockedStore(t *testing.T, max int, window, lockout time.Duration) (*Store, func(time.Duration)) {
	t.Helper()
	s := New(testutil.SetupTestDB(t), max, window, lockout)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, func(d time.Duration) { now = now.Add(d) }
}

func TestStore_CountsDownThenLocks(t *testing.T) {
	s, advance := newClockedStore(t, 3, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	const client = "198.51.100.20"

	allowed, remaining, until := s.CheckAllowed(ctx, client)
	if !allowed || remaining != 3 || until != nil {
		t.Fatalf("fresh client: allowed=%v remaining=%d until=%v", allowed, remaining, until)
	}

	for want := 2; want >= 1; want-- {
		if locked, _ := s.RecordFailure(ctx, client); locked {
			t.Fatalf("locked early with %d remaining", want)
		}
		advance(time.Minute)
		if _, remaining, _ = s.CheckAllowed(ctx, client); remaining != want {
			t.Errorf("remaining = %d, want %d", remaining, want)
		}
	}

	locked, until := s.RecordFailure(ctx, client)
	if !locked || until == nil {
		t.Fatalf("third failure: locked=%v until=%v", locked, until)
	}
	if got := until.Sub(s.now()); got != 30*time.Minute {
		t.Errorf("lockout = %v, want 30m", got)
	}

	advance(29 * time.Minute)
	if allowed, remaining, _ = s.CheckAllowed(ctx, client); allowed || remaining != -1 {
		t.Errorf("during lockout: allowed=%v remaining=%d", allowed, remaining)
	}

	advance(2 * time.Minute)
	if allowed, _, _ = s.CheckAllowed(ctx, client); !allowed {
		t.Error("client should be allowed once the lockout ends")
	}
}

func TestStore_WindowResetsCounter(t *testing.T) {
	s, advance := newClockedStore(t, 3, time.Minute, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	const client = "198.51.100.21"

	s.RecordFailure(ctx, client)
	s.RecordFailure(ctx, client)
	advance(2 * time.Minute)

	if _, remaining, _ := s.CheckAllowed(ctx, client); remaining != 3 {
		t.Errorf("after window: remaining = %d, want 3", remaining)
	}
	// The next failure starts a new window rather than locking.
	if locked, _ := s.RecordFailure(ctx, client); locked {
		t.Error("first failure of a new window should not lock")
	}
	a, err := s.GetAttempt(ctx, client)
	if err != nil || a == nil {
		t.Fatalf("GetAttempt() = %v, %v", a, err)
	}
	if a.AttemptCount != 1 || !a.WindowStart.Equal(s.now()) {
		t.Errorf("attempt = %+v, want count 1 in a fresh window", a)
	}
}

func TestStore_KeysAreNormalized(t *testing.T) {
	s, _ := newClockedStore(t, 5, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s.RecordFailure(ctx, "2001:db8::1")
	if _, remaining, _ := s.CheckAllowed(ctx, " 2001:DB8::1 "); remaining != 4 {
		t.Errorf("remaining = %d, want 4", remaining)
	}
}

func TestStore_ClearOnSuccess(t *testing.T) {
	s, _ := newClockedStore(t, 5, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	const client = "198.51.100.22"

	if a, err := s.GetAttempt(ctx, client); err != nil || a != nil {
		t.Fatalf("GetAttempt() before failures = %v, %v", a, err)
	}
	s.RecordFailure(ctx, client)
	s.RecordFailure(ctx, client)
	if err := s.ClearOnSuccess(ctx, client); err != nil {
		t.Fatalf("ClearOnSuccess() error = %v", err)
	}
	if a, _ := s.GetAttempt(ctx, client); a != nil {
		t.Errorf("counter should be gone, got %+v", a)
	}
	// Clearing an unknown client is not an error.
	if err := s.ClearOnSuccess(ctx, "203.0.113.200"); err != nil {
		t.Errorf("ClearOnSuccess(unknown) error = %v", err)
	}
}

func TestStore_ConcurrentFailuresAllCount(t *testing.T) {
	s, _ := newClockedStore(t, 100, 15*time.Minute, 30*time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	const client = "198.51.100.23"

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordFailure(ctx, client)
		}()
	}
	wg.Wait()

	a, err := s.GetAttempt(ctx, client)
	if err != nil || a == nil {
		t.Fatalf("GetAttempt() = %v, %v", a, err)
	}
	if a.AttemptCount != 12 {
		t.Errorf("AttemptCount = %d, want 12", a.AttemptCount)
	}
}
