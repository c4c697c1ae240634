package arena

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestArmReplacesExistingTimer(t *testing.T) {
	r := newTimerRegistry()
	key := timerKey{sessionID: "s1", kind: timerDeadline}

	var first, second atomic.Int32
	r.arm(key, 10*time.Millisecond, func() { first.Add(1) })
	r.arm(key, 30*time.Millisecond, func() { second.Add(1) })

	time.Sleep(80 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced timer still fired")
	}
	if second.Load() != 1 {
		t.Fatalf("replacement fired %d times, want 1", second.Load())
	}
	if r.live(key) {
		t.Fatal("fired timer still registered")
	}
}

func TestArmIfAbsent(t *testing.T) {
	r := newTimerRegistry()
	key := timerKey{sessionID: "s1", kind: timerDisconnect, userID: "u1"}

	if !r.armIfAbsent(key, time.Hour, func() {}) {
		t.Fatal("first arm rejected")
	}
	if r.armIfAbsent(key, time.Hour, func() {}) {
		t.Fatal("second arm accepted while first pending")
	}
	if !r.cancel(key) {
		t.Fatal("cancel found nothing")
	}
	if !r.armIfAbsent(key, time.Hour, func() {}) {
		t.Fatal("arm after cancel rejected")
	}
}

// A timer that fired but has not yet cleaned up must not remove a
// replacement armed under the same key in the meantime.
func TestLateFiredTimerKeepsReplacement(t *testing.T) {
	r := newTimerRegistry()
	key := timerKey{sessionID: "s1", kind: timerDeadline}

	fired := make(chan struct{})
	r.arm(key, 5*time.Millisecond, func() { close(fired) })

	// Hold the lock so the fired callback blocks before its map cleanup,
	// then swap in a replacement the way a concurrent arm would.
	r.mu.Lock()
	time.Sleep(30 * time.Millisecond)
	old := r.timers[key]
	old.Stop()
	replacement := time.AfterFunc(time.Hour, func() {})
	r.timers[key] = replacement
	r.mu.Unlock()

	<-fired
	if !r.live(key) {
		t.Fatal("late callback removed the replacement timer")
	}
	if !r.cancel(key) {
		t.Fatal("replacement no longer cancellable")
	}
}

func TestCancelSessionStopsEveryKind(t *testing.T) {
	r := newTimerRegistry()
	var fired atomic.Int32
	fn := func() { fired.Add(1) }

	r.arm(timerKey{sessionID: "s1", kind: timerDeadline}, 20*time.Millisecond, fn)
	r.arm(timerKey{sessionID: "s1", kind: timerGrace}, 20*time.Millisecond, fn)
	r.arm(timerKey{sessionID: "s1", kind: timerDisconnect, userID: "u1"}, 20*time.Millisecond, fn)
	r.arm(timerKey{sessionID: "s2", kind: timerDeadline}, 20*time.Millisecond, fn)

	r.cancelSession("s1")
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("fired = %d, want only the other session's timer", fired.Load())
	}
}
