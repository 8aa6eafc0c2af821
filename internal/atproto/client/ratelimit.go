package client

import (
	"sync"
	"time"
)

// PointsLimiter is a sliding-window, points-based rate limiter matching the
// PDS budget (default 3000 points per rolling hour). Every XRPC call
// acquires at least one point before hitting the wire.
//
// The mutex is released while sleeping so unrelated callers are never
// blocked behind a waiter.
type PointsLimiter struct {
	ceiling int
	window  time.Duration

	mu     sync.Mutex
	ledger []ledgerEntry
	used   int

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

type ledgerEntry struct {
	at   time.Time
	cost int
}

// NewPointsLimiter creates a limiter with the given ceiling and window.
func NewPointsLimiter(ceiling int, window time.Duration) *PointsLimiter {
	if ceiling <= 0 {
		ceiling = 3000
	}
	if window <= 0 {
		window = time.Hour
	}
	return &PointsLimiter{
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Acquire blocks until cost points fit inside the window, then records them.
// A cost below 1 is treated as 1.
func (l *PointsLimiter) Acquire(cost int) {
	if cost < 1 {
		cost = 1
	}
	for {
		l.mu.Lock()
		l.prune()
		if l.used+cost <= l.ceiling {
			l.ledger = append(l.ledger, ledgerEntry{at: l.now(), cost: cost})
			l.used += cost
			l.mu.Unlock()
			return
		}
		// Sleep until the oldest in-window entry expires, then retry.
		wait := l.ledger[0].at.Add(l.window).Sub(l.now())
		l.mu.Unlock()
		if wait > 0 {
			l.sleep(wait)
		}
	}
}

// Used returns the points currently counted inside the window.
func (l *PointsLimiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	return l.used
}

// prune drops expired entries. Caller holds mu.
func (l *PointsLimiter) prune() {
	cutoff := l.now().Add(-l.window)
	i := 0
	for i < len(l.ledger) && l.ledger[i].at.Before(cutoff) {
		l.used -= l.ledger[i].cost
		i++
	}
	if i > 0 {
		l.ledger = append(l.ledger[:0], l.ledger[i:]...)
	}
}
