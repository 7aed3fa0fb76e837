package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	KeyBy             string // "ip", "session", "global"
}

// RateLimiter enforces fixed-window request limits on the analyse endpoint.
type RateLimiter struct {
	config   RateLimitConfig
	counters map[string]*rateLimitCounter
	mu       sync.Mutex
	now      func() time.Time
	swept    time.Time
}

type rateLimitCounter struct {
	minuteCount int
	hourCount   int
	minuteReset time.Time
	hourReset   time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.RequestsPerHour <= 0 {
		config.RequestsPerHour = 1000
	}
	if config.KeyBy == "" {
		config.KeyBy = "ip"
	}
	return &RateLimiter{
		config:   config,
		counters: make(map[string]*rateLimitCounter),
		now:      time.Now,
	}
}

// Allow counts one request for the caller and reports whether it is within
// the limits. When it is not, retryAfter is the time until the window resets.
func (l *RateLimiter) Allow(r *http.Request, sessionID string) (ok bool, retryAfter time.Duration) {
	if l == nil || !l.config.Enabled {
		return true, 0
	}
	key := l.key(r, sessionID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= time.Minute {
		l.sweep(now)
	}

	counter, exists := l.counters[key]
	if !exists {
		counter = &rateLimitCounter{
			minuteReset: now.Add(time.Minute),
			hourReset:   now.Add(time.Hour),
		}
		l.counters[key] = counter
	}

	// Reset counters if windows have passed
	if now.After(counter.minuteReset) {
		counter.minuteCount = 0
		counter.minuteReset = now.Add(time.Minute)
	}
	if now.After(counter.hourReset) {
		counter.hourCount = 0
		counter.hourReset = now.Add(time.Hour)
	}

	if counter.minuteCount >= l.config.RequestsPerMinute {
		return false, counter.minuteReset.Sub(now)
	}
	if counter.hourCount >= l.config.RequestsPerHour {
		return false, counter.hourReset.Sub(now)
	}

	counter.minuteCount++
	counter.hourCount++
	return true, 0
}

// sweep drops callers whose hour window has expired. Caller holds l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	for key, c := range l.counters {
		if now.After(c.hourReset) {
			delete(l.counters, key)
		}
	}
	l.swept = now
}

func (l *RateLimiter) key(r *http.Request, sessionID string) string {
	switch l.config.KeyBy {
	case "session":
		if sessionID != "" {
			return "session:" + sessionID
		}
		return "session:anonymous"
	case "ip":
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return "ip:" + host
	default:
		return "global"
	}
}
