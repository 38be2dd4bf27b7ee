package httpx

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines per-client rate limiting parameters.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// StrictLimit protects credential endpoints against brute force.
var StrictLimit = RateLimitConfig{
	RequestsPerWindow: 5,
	Window:            time.Minute,
	Burst:             5,
}

// ModerateLimit suits authenticated mutating operations.
var ModerateLimit = RateLimitConfig{
	RequestsPerWindow: 20,
	Window:            time.Minute,
	Burst:             20,
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	cfg     RateLimitConfig
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
	}
	go rl.evictStale()
	return rl
}

// Middleware rejects requests above the configured rate with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
				StatusCode: http.StatusTooManyRequests,
				Message:    "rate limit exceeded",
				ErrorText:  "Too Many Requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[ip]
	if !ok {
		limit := rate.Every(rl.cfg.Window / time.Duration(rl.cfg.RequestsPerWindow))
		cl = &clientLimiter{limiter: rate.NewLimiter(limit, rl.cfg.Burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = time.Now()

	return cl.limiter.Allow()
}

// evictStale drops buckets idle for more than three windows.
func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(rl.cfg.Window)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-3 * rl.cfg.Window)
		rl.mu.Lock()
		for ip, cl := range rl.clients {
			if cl.lastSeen.Before(cutoff) {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
