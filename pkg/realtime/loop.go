package realtime

import (
	"context"
	"time"
)

// TickFunc is called by Loop.Run when the loop wakes. It returns the next
// wake time; stop true ends the loop.
type TickFunc func(now time.Time) (next time.Time, stop bool)

// Loop is a timer-driven background task that can be woken early.
type Loop struct {
	wake chan struct{}
	now  func() time.Time
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Run sleeps until first, then calls tick and sleeps until the time it
// returns, repeating until ctx is cancelled or tick asks to stop.
func (l *Loop) Run(ctx context.Context, first time.Time, tick TickFunc) error {
	next := first
	for {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-l.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		var stop bool
		next, stop = tick(l.now())
		if stop {
			return nil
		}
	}
}

// Wake makes a sleeping Run call tick immediately. Extra wakes while one is
// pending are coalesced.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
