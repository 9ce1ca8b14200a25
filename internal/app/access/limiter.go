package access

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

const (
	DefaultMax    = 15
	DefaultWindow = time.Minute
)

// Decision is the outcome of one rate check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window per-caller limiter over a shared Counter.
type Limiter struct {
	counter domain.Counter
	max     int
	window  time.Duration
	now     func() time.Time
}

func NewLimiter(counter domain.Counter, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		counter: counter,
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

// Allow counts one request for key. If the counter backend fails the request
// is let through and the failure is logged.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	usage, err := l.counter.Increment(ctx, key, l.window, l.max)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("rate counter unavailable, allowing request",
			"caller", key, "error", fmt.Errorf("increment: %w", err))
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max, ResetAt: l.now().Add(l.window)}
	}

	remaining := l.max - int(usage.Count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   usage.Allowed,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   usage.ResetAt,
	}
}

func (l *Limiter) Window() time.Duration { return l.window }
