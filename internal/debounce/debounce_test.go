package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleCoalescesRapidCalls(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	d := New(clock.AfterFunc)

	var got []string
	for _, v := range []string{"p", "ph", "pha"} {
		v := v
		d.Schedule("suggest", 300*time.Millisecond, func() { got = append(got, v) })
		clock.Advance(20 * time.Millisecond)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing fired inside quiet window, got %v", got)
	}

	clock.Advance(300 * time.Millisecond)
	if len(got) != 1 || got[0] != "pha" {
		t.Fatalf("expected only final value to fire, got %v", got)
	}
	if d.Pending("suggest") {
		t.Fatalf("expected slot cleared after firing")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	d := New(clock.AfterFunc)

	var a, b atomic.Int32
	d.Schedule("a", 100*time.Millisecond, func() { a.Add(1) })
	d.Schedule("b", 200*time.Millisecond, func() { b.Add(1) })

	clock.Advance(150 * time.Millisecond)
	if a.Load() != 1 || b.Load() != 0 {
		t.Fatalf("expected a fired only, got a=%d b=%d", a.Load(), b.Load())
	}
	clock.Advance(100 * time.Millisecond)
	if b.Load() != 1 {
		t.Fatalf("expected b fired, got %d", b.Load())
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	d := New(clock.AfterFunc)

	fired := false
	d.Schedule("k", 50*time.Millisecond, func() { fired = true })
	if !d.Cancel("k") {
		t.Fatalf("expected pending action to be cancelled")
	}
	if d.Cancel("k") {
		t.Fatalf("expected second cancel to report nothing pending")
	}
	clock.Advance(time.Second)
	if fired {
		t.Fatalf("cancelled action fired")
	}
}

func TestStaleCallbackIsDropped(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	clock.ignoreStop = true
	d := New(clock.AfterFunc)

	var got []int
	d.Schedule("k", 10*time.Millisecond, func() { got = append(got, 1) })
	d.Schedule("k", 10*time.Millisecond, func() { got = append(got, 2) })
	clock.Advance(20 * time.Millisecond)

	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected only replacement to run, got %v", got)
	}
}

func TestRealTimer(t *testing.T) {
	t.Parallel()

	d := New(nil)
	done := make(chan struct{})
	d.Schedule("k", 5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced action did not fire")
	}
}

// --- stubs ---

type fakeClock struct {
	mu         sync.Mutex
	now        time.Duration
	timers     []*fakeTimer
	ignoreStop bool
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock { return &fakeClock{} }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.clock.ignoreStop || t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
