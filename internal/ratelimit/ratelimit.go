package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/HenGPlayZ/lavalink-status/internal/clientip"
	"github.com/HenGPlayZ/lavalink-status/internal/metrics"
	"github.com/HenGPlayZ/lavalink-status/internal/problem"
)

// Limiter implements per-IP rate limiting with automatic cleanup of stale entries.
type Limiter struct {
	mu              sync.Mutex
	clients         map[string]*clientEntry
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration
	staleAfter      time.Duration
	done            chan struct{}
	closeOnce       sync.Once
	resolver        *clientip.Resolver
	metrics         *metrics.Collector
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a new per-IP rate limiter.
// requestsPerInterval is the number of allowed requests per interval.
// cleanupInterval controls how often stale entries are removed, and
// staleAfter is how long a client must be inactive before its entry is removed.
func New(requestsPerInterval int, interval, cleanupInterval, staleAfter time.Duration) (*Limiter, error) {
	if requestsPerInterval <= 0 {
		return nil, fmt.Errorf("ratelimit: requests_per_interval must be positive")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("ratelimit: interval must be positive")
	}
	if cleanupInterval <= 0 {
		return nil, fmt.Errorf("ratelimit: cleanup_interval must be positive")
	}
	if staleAfter <= 0 {
		return nil, fmt.Errorf("ratelimit: stale_after must be positive")
	}

	l := &Limiter{
		clients:         make(map[string]*clientEntry),
		rate:            rate.Limit(float64(requestsPerInterval) / interval.Seconds()),
		burst:           requestsPerInterval,
		cleanupInterval: cleanupInterval,
		staleAfter:      staleAfter,
		done:            make(chan struct{}),
	}

	go l.cleanupLoop()
	return l, nil
}

// SetResolver sets how client IPs are derived from requests.
func (l *Limiter) SetResolver(r *clientip.Resolver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolver = r
}

// SetMetrics attaches a metrics collector for rejection counts.
func (l *Limiter) SetMetrics(m *metrics.Collector) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metrics = m
}

func (l *Limiter) getClient(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.clients[ip]
	if !exists {
		limiter := rate.NewLimiter(l.rate, l.burst)
		l.clients[ip] = &clientEntry{
			limiter:  limiter,
			lastSeen: time.Now(),
		}
		return limiter
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Allow checks if a request from the given IP is allowed.
func (l *Limiter) Allow(ip string) bool {
	return l.getClient(ip).Allow()
}

// RetryAfter returns the number of seconds until the next request from
// this IP would be allowed.
func (l *Limiter) RetryAfter(ip string) int {
	limiter := l.getClient(ip)
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return int(math.Ceil(delay.Seconds()))
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.staleAfter {
			delete(l.clients, ip)
		}
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Limiter) clientIP(r *http.Request) string {
	l.mu.Lock()
	resolver := l.resolver
	l.mu.Unlock()
	return resolver.FromRequest(r)
}

// Middleware returns an HTTP middleware that enforces rate limiting.
// When the limit is exceeded, it returns a 429 response with RFC 7807
// Problem Details format including a Retry-After header.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.clientIP(r)
		if !l.Allow(ip) {
			retryAfter := l.RetryAfter(ip)
			l.metrics.IncRateLimitRejectionsTotal()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			p := problem.New(http.StatusTooManyRequests, "Too Many Requests",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			p.RetryAfter = retryAfter
			p.Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
