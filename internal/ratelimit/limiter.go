// Package ratelimit provides sliding-window rate limiting per identity key.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of requests admitted per window.
	DefaultLimit = 10
	// DefaultWindow is the rolling admission window.
	DefaultWindow = 60 * time.Second
	// idleCooldown is how long an empty window survives before its key is
	// swept, bounding memory under identity churn.
	idleCooldown = 5 * time.Minute

	sweepInterval = time.Minute
)

// Limiter admits or rejects requests for identity keys under a rolling
// window. Rate limiting is scoped to the validated identity, never to the
// raw token or session.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string][]time.Time
	stopCh  chan struct{}

	now func() time.Time
}

// NewLimiter creates a Limiter and starts its idle-key sweep.
func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go l.sweepLoop()

	return l
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	close(l.stopCh)
}

// Allow records a request for key and reports whether it is admitted. On
// rejection retryAfter is the fixed window length in seconds.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter int) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.windows[key]
	live := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}

	if len(live) >= l.limit {
		l.windows[key] = live
		return false, int(l.window.Seconds())
	}

	l.windows[key] = append(live, now)
	return true, 0
}

// Remaining reports how many requests key may still make in the current
// window.
func (l *Limiter) Remaining(key string) int {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			count++
		}
	}
	if count >= l.limit {
		return 0
	}
	return l.limit - count
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCh:
			return
		}
	}
}

// sweep removes keys whose newest timestamp is past the idle cooldown.
func (l *Limiter) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, stamps := range l.windows {
		if len(stamps) == 0 {
			delete(l.windows, key)
			continue
		}
		if now.Sub(stamps[len(stamps)-1]) > l.window+idleCooldown {
			delete(l.windows, key)
		}
	}
}

// Keys reports the number of tracked identity keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
