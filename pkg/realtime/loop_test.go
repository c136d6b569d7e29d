package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_RunTicksUntilStop(t *testing.T) {
	l := NewLoop()
	var ticks atomic.Int32
	err := l.Run(context.Background(), time.Now(), func(now time.Time) (time.Time, bool) {
		n := ticks.Add(1)
		return now.Add(5 * time.Millisecond), n >= 3
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := ticks.Load(); got != 3 {
		t.Errorf("ticks %d, want 3", got)
	}
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, time.Now().Add(time.Hour), func(now time.Time) (time.Time, bool) {
			t.Error("tick should not run")
			return now, true
		})
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run err %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_WakeRunsTickEarly(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticked := make(chan struct{}, 1)
	go func() {
		_ = l.Run(ctx, time.Now().Add(time.Hour), func(now time.Time) (time.Time, bool) {
			ticked <- struct{}{}
			return now.Add(time.Hour), false
		})
	}()
	l.Wake()
	select {
	case <-ticked:
	case <-time.After(time.Second):
		t.Fatal("Wake did not trigger a tick")
	}
}

func TestLoop_WakeNoPanicWhenNotRunning(t *testing.T) {
	l := NewLoop()
	l.Wake()
	l.Wake()
}
