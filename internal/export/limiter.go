package export

import (
	"context"
	"time"

	"github.com/coder/quartz"
)

// Limiter spaces submissions at least interval apart. One Limiter is shared
// by every caller that talks to the same service.
type Limiter struct {
	turn     chan struct{} // held while a caller is deciding or waiting
	interval time.Duration
	clock    quartz.Clock

	last    time.Time
	granted bool
}

// NewLimiter creates a Limiter. A nil clock uses the real clock.
func NewLimiter(interval time.Duration, clock quartz.Clock) *Limiter {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Limiter{
		turn:     make(chan struct{}, 1),
		interval: interval,
		clock:    clock,
	}
}

// Wait blocks until interval has passed since the previous granted turn.
// The first turn is granted immediately. A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	select {
	case l.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.turn }()

	if l.granted {
		if wait := l.interval - l.clock.Since(l.last); wait > 0 {
			t := l.clock.NewTimer(wait, "limiter", "wait")
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	l.last = l.clock.Now()
	l.granted = true
	return nil
}
