package arena

import (
	"sync"
	"time"
)

type timerKind string

const (
	timerDeadline   timerKind = "deadline"
	timerGrace      timerKind = "grace"
	timerDisconnect timerKind = "disconnect"
)

type timerKey struct {
	sessionID string
	kind      timerKind
	userID    string // set for disconnect timers only
}

// timerRegistry guarantees at most one live timer per key. It is owned by a
// Coordinator instance, never a package global, so tests can run isolated
// coordinators side by side.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: map[timerKey]*time.Timer{}}
}

// arm schedules fn after d, replacing any live timer under the same key.
func (r *timerRegistry) arm(key timerKey, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.timers[key]; ok {
		old.Stop()
	}
	r.timers[key] = r.schedule(key, d, fn)
}

// armIfAbsent schedules fn only when no timer is live under the key.
// Returns false when one already was: a second disconnect while the grace
// window is pending is a no-op.
func (r *timerRegistry) armIfAbsent(key timerKey, d time.Duration, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.timers[key]; ok {
		return false
	}
	r.timers[key] = r.schedule(key, d, fn)
	return true
}

// schedule is called with r.mu held. The fired callback drops the map entry
// only if it still points at this timer: a callback that fired but lost the
// lock to a concurrent arm must not delete the replacement out from under
// cancel.
func (r *timerRegistry) schedule(key timerKey, d time.Duration, fn func()) *time.Timer {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		if cur, ok := r.timers[key]; ok && cur == t {
			delete(r.timers, key)
		}
		r.mu.Unlock()
		fn()
	})
	return t
}

func (r *timerRegistry) cancel(key timerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(r.timers, key)
	return true
}

// cancelSession stops every timer belonging to a session, whatever the
// kind. Called on any path into ended so a stale timer can never re-trigger
// termination.
func (r *timerRegistry) cancelSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, t := range r.timers {
		if key.sessionID == sessionID {
			t.Stop()
			delete(r.timers, key)
		}
	}
}

func (r *timerRegistry) live(key timerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[key]
	return ok
}
