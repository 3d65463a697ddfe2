package loop

import (
	"context"
	"sync"
	"time"

	"github.com/labi-le/clipsync/pkg/ctxlog"
	"github.com/rs/zerolog"
)

// Timer is a scheduled callback. Stop must be called from the loop goroutine;
// a stopped timer never runs its callback.
type Timer interface {
	Stop() bool
}

// Scheduler serializes work onto a single goroutine.
type Scheduler interface {
	// Post queues fn to run on the loop. Safe to call from any goroutine.
	Post(fn func())
	// AfterFunc runs fn on the loop after d.
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

var _ Scheduler = (*Loop)(nil)

// Loop is the single event loop every backend notification, inbound message
// and timer expiry is dispatched on.
type Loop struct {
	logger zerolog.Logger

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func New(logger zerolog.Logger) *Loop {
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := new(timer)
	t.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped {
				return
			}
			t.stopped = true
			fn()
		})
	})
	return t
}

func (l *Loop) Now() time.Time { return time.Now() }

// Run executes posted work until ctx is done. Work still queued at that point is dropped.
func (l *Loop) Run(ctx context.Context) error {
	ctxLog := ctxlog.Op(l.logger, "loop.Run")
	ctxLog.Trace().Msg("started")
	defer ctxLog.Trace().Msg("stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
			for _, fn := range l.drain() {
				fn()
			}
		}
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.queue
	l.queue = nil
	return batch
}

type timer struct {
	t       *time.Timer
	stopped bool
}

func (t *timer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.t.Stop()
	return true
}

// Stop cancels t if it is non-nil.
func Stop(t Timer) {
	if t != nil {
		t.Stop()
	}
}
