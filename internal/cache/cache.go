package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps registered caches.
type Manager struct {
	mu      sync.Mutex
	caches  map[string]Cleaner
	stop    context.CancelFunc
	done    chan struct{}
	logger  *slog.Logger
	stopped sync.Once
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		caches: make(map[string]Cleaner),
		logger: logger,
	}
}

// Register adds a named cache to the sweep.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// Sweep cleans every registered cache once and returns the entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		n := c.CleanExpired()
		if n > 0 {
			m.logger.Debug("Cache cleanup completed", "cache", name, "entries_removed", n)
		}
		total += n
	}
	return total
}

// Start sweeps every interval until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	ctx, m.stop = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the sweep loop and waits for it to exit.
func (m *Manager) Stop() {
	m.stopped.Do(func() {
		if m.stop == nil {
			return
		}
		m.stop()
		<-m.done
	})
}
