package node

import (
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// replyLimiter is a token bucket per controller address. It keeps a node from
// answering a flood of ArtPolls from one controller.
type replyLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	entries   map[netip.Addr]*limiterEntry
	lastSweep time.Time
}

func newReplyLimiter(perSec float64, burst int, idle time.Duration) *replyLimiter {
	if perSec <= 0 {
		perSec = 2
	}
	if burst <= 0 {
		burst = 4
	}
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &replyLimiter{
		limit:   rate.Limit(perSec),
		burst:   burst,
		idle:    idle,
		entries: make(map[netip.Addr]*limiterEntry),
	}
}

// Allow reports whether a reply to addr may be sent now
func (l *replyLimiter) Allow(addr netip.Addr, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	e, ok := l.entries[addr]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[addr] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweep drops controllers not heard from for the idle period. Caller holds mu.
func (l *replyLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now

	for addr, e := range l.entries {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.entries, addr)
		}
	}
}

// Len returns the number of tracked controllers
func (l *replyLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
