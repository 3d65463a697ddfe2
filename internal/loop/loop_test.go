package loop_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/labi-le/clipsync/internal/loop"
	"github.com/rs/zerolog"
)

func TestFake_TimersFireInOrder(t *testing.T) {
	f := loop.NewFake()

	var fired []string
	f.AfterFunc(30*time.Millisecond, func() { fired = append(fired, "c") })
	f.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "a") })
	f.AfterFunc(20*time.Millisecond, func() { fired = append(fired, "b") })

	f.Advance(15 * time.Millisecond)
	if diff := cmp.Diff([]string{"a"}, fired); diff != "" {
		t.Fatalf("after 15ms (-want +got):\n%s", diff)
	}

	f.Advance(time.Second)
	if diff := cmp.Diff([]string{"a", "b", "c"}, fired); diff != "" {
		t.Fatalf("after 1s (-want +got):\n%s", diff)
	}
}

func TestFake_StoppedTimerNeverFires(t *testing.T) {
	f := loop.NewFake()

	fired := false
	tm := f.AfterFunc(time.Millisecond, func() { fired = true })
	if !tm.Stop() {
		t.Fatal("first Stop must report true")
	}
	if tm.Stop() {
		t.Fatal("second Stop must report false")
	}

	f.Advance(time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if n := f.Armed(); n != 0 {
		t.Fatalf("expected no armed timers, got %d", n)
	}
}

func TestFake_TimerCanArmAnotherTimer(t *testing.T) {
	f := loop.NewFake()

	var at []time.Duration
	start := f.Now()
	f.AfterFunc(10*time.Millisecond, func() {
		at = append(at, f.Now().Sub(start))
		f.AfterFunc(10*time.Millisecond, func() {
			at = append(at, f.Now().Sub(start))
		})
	})

	f.Advance(25 * time.Millisecond)
	if diff := cmp.Diff([]time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, at); diff != "" {
		t.Fatalf("fire times (-want +got):\n%s", diff)
	}
}

func TestLoop_RunsPostedWorkAndTimers(t *testing.T) {
	l := loop.New(zerolog.Nop())
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() { _ = l.Run(ctx) }()

	done := make(chan string, 2)
	l.Post(func() { done <- "posted" })
	l.Post(func() {
		l.AfterFunc(5*time.Millisecond, func() { done <- "timer" })
	})

	for _, want := range []string{"posted", "timer"} {
		select {
		case got := <-done:
			if got != want {
				t.Fatalf("expected %q, got %q", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func TestLoop_StopFromLoopCancels(t *testing.T) {
	l := loop.New(zerolog.Nop())
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() { _ = l.Run(ctx) }()

	fired := make(chan struct{}, 1)
	stopped := make(chan struct{})
	l.Post(func() {
		tm := l.AfterFunc(10*time.Millisecond, func() { fired <- struct{}{} })
		tm.Stop()
		close(stopped)
	})

	<-stopped
	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}
