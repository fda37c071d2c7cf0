package domain

import (
	"context"
	"sync"
	"time"
)

const paceTick = time.Second

// Pacer enforces a minimum interval between consecutive provider calls.
// The wait counts down in one-second ticks so callers observe prompt
// cancellation even under long limits. Providers whose transport already
// rate-limits internally are not paced (the gateway checks
// HasBuiltInRateLimit before waiting).
type Pacer struct {
	mu   sync.Mutex
	min  time.Duration
	last time.Time
}

// NewPacer creates a pacer with the given minimum interval. A zero or
// negative interval disables pacing.
func NewPacer(min time.Duration) *Pacer {
	return &Pacer{min: min}
}

// Wait blocks until the minimum interval since the previous call has
// elapsed, then records the new call time. It returns the context error on
// cancellation without recording.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()

	if p.min > 0 && !last.IsZero() {
		for i := RemainingPace(p.min, time.Since(last)); i > 0; i-- {
			timer := time.NewTimer(paceTick)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
	return nil
}

// RemainingPace returns the number of whole one-second ticks left to wait
// when elapsed time has passed since the previous call, rounding up.
func RemainingPace(min, elapsed time.Duration) int {
	remaining := min - elapsed
	if remaining <= 0 {
		return 0
	}
	return int((remaining + paceTick - 1) / paceTick)
}
