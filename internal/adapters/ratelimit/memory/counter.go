package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

// sweepEvery bounds how often expired windows are dropped from the map.
const sweepEvery = time.Minute

// Counter is a process-local fixed-window counter. Suitable for a single
// relay instance; use the redis counter when running several.
type Counter struct {
	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
	now       func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

func NewCounter() *Counter {
	return &Counter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// NewCounterWithClock is NewCounter with an injected clock.
func NewCounterWithClock(now func() time.Time) *Counter {
	c := NewCounter()
	c.now = now
	return c
}

// Increment implements domain.Counter.
func (c *Counter) Increment(_ context.Context, key string, win time.Duration, ceiling int) (domain.Usage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		c.windows[key] = w
	}

	if w.count >= int64(ceiling) {
		return domain.Usage{Count: w.count, Allowed: false, ResetAt: w.resetAt}, nil
	}
	w.count++
	return domain.Usage{Count: w.count, Allowed: true, ResetAt: w.resetAt}, nil
}

func (c *Counter) sweepLocked(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	for k, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, k)
		}
	}
	c.nextSweep = now.Add(sweepEvery)
}

var _ domain.Counter = (*Counter)(nil)
