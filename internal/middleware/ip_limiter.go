package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const ipIdleThreshold = 1 * time.Hour

// ipLimiterEntry: tracks a rate limiter and its last use time
type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimit: manages connection rate limiters per IP address
type IPRateLimit struct {
	limiters map[string]*ipLimiterEntry
	every    time.Duration
	burst    int
	mu       sync.Mutex
	now      func() time.Time
}

// NewIPRateLimit allows perMinute connections per IP with the given burst.
func NewIPRateLimit(perMinute, burst int) *IPRateLimit {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimit{
		limiters: make(map[string]*ipLimiterEntry),
		every:    time.Minute / time.Duration(perMinute),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow: checks if an IP may open another connection
func (iprl *IPRateLimit) Allow(ip string) bool {
	iprl.mu.Lock()
	defer iprl.mu.Unlock()

	entry, exists := iprl.limiters[ip]
	if !exists {
		entry = &ipLimiterEntry{
			limiter: rate.NewLimiter(rate.Every(iprl.every), iprl.burst),
		}
		iprl.limiters[ip] = entry
	}
	entry.lastSeen = iprl.now()

	return entry.limiter.AllowN(entry.lastSeen, 1)
}

// Cleanup: removes limiters idle for more than an hour
func (iprl *IPRateLimit) Cleanup() int {
	iprl.mu.Lock()
	defer iprl.mu.Unlock()

	now := iprl.now()
	removed := 0
	for ip, entry := range iprl.limiters {
		if now.Sub(entry.lastSeen) > ipIdleThreshold {
			delete(iprl.limiters, ip)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (iprl *IPRateLimit) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			iprl.Cleanup()
		}
	}
}

// Len: number of tracked IPs
func (iprl *IPRateLimit) Len() int {
	iprl.mu.Lock()
	defer iprl.mu.Unlock()
	return len(iprl.limiters)
}
