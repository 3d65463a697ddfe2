package loop

import (
	"sort"
	"time"
)

var _ Scheduler = (*Fake)(nil)

// Fake is a deterministic Scheduler with a virtual clock for tests.
// Posted work runs on Flush or Advance, on the caller's goroutine.
type Fake struct {
	now    time.Time
	queue  []func()
	timers []*fakeTimer
	seq    int
}

func NewFake() *Fake {
	return &Fake{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

type fakeTimer struct {
	at      time.Time
	seq     int
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (f *Fake) Post(fn func()) { f.queue = append(f.queue, fn) }

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.seq++
	t := &fakeTimer{at: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *Fake) Now() time.Time { return f.now }

// Flush runs queued work, including work queued while flushing.
func (f *Fake) Flush() {
	for len(f.queue) > 0 {
		fn := f.queue[0]
		f.queue = f.queue[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (f *Fake) Advance(d time.Duration) {
	end := f.now.Add(d)
	for {
		f.Flush()

		t := f.nextDue(end)
		if t == nil {
			break
		}
		f.now = t.at
		t.stopped = true
		t.fn()
	}
	f.now = end
	f.Flush()
}

// Armed counts timers that have neither fired nor been stopped.
func (f *Fake) Armed() int {
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (f *Fake) nextDue(end time.Time) *fakeTimer {
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	f.timers = live

	sort.Slice(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})

	if len(live) == 0 || live[0].at.After(end) {
		return nil
	}
	return live[0]
}
