package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter allows a fixed number of requests per client within a one minute
// window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	now     func() time.Time

	requestsPerMinute int
	cleanupInterval   time.Duration
	staleAfter        time.Duration

	rejected     atomic.Int64
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type window struct {
	started  time.Time
	lastSeen time.Time
	requests int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// Metrics is a snapshot of limiter activity.
type Metrics struct {
	Rejected    int64
	ClientCount int64
}

// NewLimiter starts a limiter with a background sweep of idle clients.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	l := &Limiter{
		clients:           make(map[string]*window),
		now:               time.Now,
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
		staleAfter:        10 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}
	go l.runCleanup()
	return l
}

// Allow records a request from clientID and reports whether it is within
// the limit.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[clientID]
	if !ok || now.Sub(w.started) >= time.Minute {
		l.clients[clientID] = &window{started: now, lastSeen: now, requests: 1}
		return true
	}
	w.lastSeen = now
	w.requests++
	if w.requests > l.requestsPerMinute {
		l.rejected.Add(1)
		return false
	}
	return true
}

func (l *Limiter) runCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.removeStale()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) removeStale() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.staleAfter)
	removed := 0
	for id, w := range l.clients {
		if w.lastSeen.Before(cutoff) {
			delete(l.clients, id)
			removed++
		}
	}
	return removed
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Metrics() Metrics {
	return Metrics{
		Rejected:    l.rejected.Load(),
		ClientCount: int64(l.ActiveClients()),
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() { close(l.stopCleanup) })
}

// Middleware limits state-changing requests. Safe methods pass through
// untouched so browsing is never throttled.
func (l *Limiter) Middleware(clientID func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(clientID(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(60))
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
