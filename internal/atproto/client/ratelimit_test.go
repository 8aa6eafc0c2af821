package client

import (
	"testing"
	"time"
)

// testLimiter wires a limiter to a fake clock. Sleeps advance the clock
// instead of blocking.
func testLimiter(ceiling int, window time.Duration) (*PointsLimiter, *time.Time, *[]time.Duration) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration
	l := NewPointsLimiter(ceiling, window)
	l.now = func() time.Time { return now }
	l.sleep = func(d time.Duration) {
		slept = append(slept, d)
		now = now.Add(d)
	}
	return l, &now, &slept
}

func TestAcquireWithinBudget(t *testing.T) {
	l, _, slept := testLimiter(10, time.Hour)

	l.Acquire(3)
	l.Acquire(4)
	if got := l.Used(); got != 7 {
		t.Fatalf("Used() = %d, want 7", got)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", *slept)
	}
}

func TestAcquireBlocksUntilWindowFrees(t *testing.T) {
	l, _, slept := testLimiter(10, time.Hour)

	l.Acquire(10)
	l.Acquire(5) // must wait for the first entry to expire

	if len(*slept) == 0 {
		t.Fatal("expected the second acquire to sleep")
	}
	if got := l.Used(); got != 5 {
		t.Fatalf("Used() after expiry = %d, want 5", got)
	}
}

func TestAcquireClampsCostToOne(t *testing.T) {
	l, _, _ := testLimiter(10, time.Hour)

	l.Acquire(0)
	l.Acquire(-5)
	if got := l.Used(); got != 2 {
		t.Fatalf("Used() = %d, want 2", got)
	}
}

func TestPruneDropsExpiredEntries(t *testing.T) {
	l, now, _ := testLimiter(10, time.Hour)

	l.Acquire(4)
	*now = now.Add(30 * time.Minute)
	l.Acquire(4)
	*now = now.Add(31 * time.Minute) // first entry now outside the window

	if got := l.Used(); got != 4 {
		t.Fatalf("Used() = %d, want 4", got)
	}
}

func TestNewPointsLimiterDefaults(t *testing.T) {
	l := NewPointsLimiter(0, 0)
	if l.ceiling != 3000 {
		t.Errorf("ceiling = %d, want 3000", l.ceiling)
	}
	if l.window != time.Hour {
		t.Errorf("window = %v, want 1h", l.window)
	}
}
