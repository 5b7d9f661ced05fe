package wallet

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// PINLimiter throttles T-PIN checks per partner
type PINLimiter struct {
	limiters map[uuid.UUID]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	lastSeen map[uuid.UUID]time.Time
}

// NewPINLimiter allows perMinute attempts per partner with the given burst
func NewPINLimiter(perMinute float64, burst int) *PINLimiter {
	return &PINLimiter{
		limiters: make(map[uuid.UUID]*rate.Limiter),
		lastSeen: make(map[uuid.UUID]time.Time),
		rate:     rate.Limit(perMinute / 60),
		burst:    burst,
		idle:     30 * time.Minute,
	}
}

// Allow consumes one attempt for userID
func (l *PINLimiter) Allow(userID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[userID] = limiter
	}
	l.lastSeen[userID] = now
	return limiter.AllowN(now, 1)
}

// Prune drops limiters idle for longer than the refill window
func (l *PINLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.idle)
	for id, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.lastSeen, id)
			delete(l.limiters, id)
		}
	}
}
