package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"arena-server/internal/content"
	"arena-server/internal/mode"
	"arena-server/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	c := New(mem, mode.DefaultRegistry(), content.DefaultLibrary(), opts...)
	return c, mem
}

func createWaiting(t *testing.T, c *Coordinator, gameMode string, capacity int) *SessionSnapshot {
	t.Helper()
	snap, err := c.Create(context.Background(), CreateRequest{
		Mode:       gameMode,
		HostUserID: "host",
		HostName:   "Host",
		Capacity:   capacity,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return snap
}

func joinReady(t *testing.T, c *Coordinator, sessionID string, users ...string) {
	t.Helper()
	ctx := context.Background()
	for _, u := range users {
		if _, err := c.Join(ctx, sessionID, u, u); err != nil {
			t.Fatalf("Join %s: %v", u, err)
		}
		if err := c.SetReady(ctx, sessionID, u, true); err != nil {
			t.Fatalf("SetReady %s: %v", u, err)
		}
	}
}

func cmdAction(command string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"command": command})
	return raw
}

func TestCreateDefaults(t *testing.T) {
	c, _ := newTestCoordinator(t)
	snap := createWaiting(t, c, "commandrace", 0)

	if snap.Status != store.StatusWaiting {
		t.Fatalf("status = %s, want waiting", snap.Status)
	}
	if snap.Capacity != 8 {
		t.Fatalf("capacity = %d, want mode max 8", snap.Capacity)
	}
	if snap.ScenarioID != "cr-basics" {
		t.Fatalf("scenario = %s, want cr-basics", snap.ScenarioID)
	}
	if len(snap.Participants) != 1 || !snap.Participants[0].IsHost {
		t.Fatalf("host not seated: %+v", snap.Participants)
	}
}

func TestCreateUnknownModeAndScenarioMismatch(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	_, err := c.Create(ctx, CreateRequest{Mode: "chess", HostUserID: "h"})
	if !errors.Is(err, mode.ErrUnknownMode) {
		t.Fatalf("err = %v, want unknown_mode", err)
	}
	_, err = c.Create(ctx, CreateRequest{Mode: "siege", ScenarioID: "cr-basics", HostUserID: "h"})
	if !errors.Is(err, content.ErrScenarioNotFound) {
		t.Fatalf("err = %v, want scenario_not_found", err)
	}
}

func TestJoinCapacityRace(t *testing.T) {
	c, _ := newTestCoordinator(t)
	snap := createWaiting(t, c, "commandrace", 4)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			u := fmt.Sprintf("u%d", n)
			_, err := c.Join(context.Background(), snap.ID, u, u)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	ok, full := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrSessionFull):
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	// Host already holds one of the four seats.
	if ok != 3 || full != 7 {
		t.Fatalf("joined=%d full=%d, want 3/7", ok, full)
	}
}

func TestJoinWhileStartedAndRejoin(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := c.Join(ctx, snap.ID, "late", "Late"); !errors.Is(err, store.ErrNotAccepting) {
		t.Fatalf("late join err = %v, want not_accepting", err)
	}
	// A seated participant rejoining is a plain reattach.
	if _, err := c.Join(ctx, snap.ID, "p2", "p2"); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	// A participant who left a started session gets the seat back.
	if err := c.Leave(ctx, snap.ID, "p2"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	got, err := c.Join(ctx, snap.ID, "p2", "p2")
	if err != nil {
		t.Fatalf("rejoin after leave: %v", err)
	}
	for _, p := range got.Participants {
		if p.UserID == "p2" && p.HasLeft {
			t.Fatal("p2 still marked left after rejoin")
		}
	}
}

func TestStartRequirements(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)

	if _, err := c.Start(ctx, snap.ID, "host"); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("solo start err = %v, want not_enough_players", err)
	}
	if _, err := c.Join(ctx, snap.ID, "p2", "p2"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := c.Start(ctx, snap.ID, "p2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host start err = %v, want not_host", err)
	}
	if _, err := c.Start(ctx, snap.ID, "host"); !errors.Is(err, ErrNotAllReady) {
		t.Fatalf("unready start err = %v, want not_all_ready", err)
	}
	if err := c.SetReady(ctx, snap.ID, "p2", true); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	started, err := c.Start(ctx, snap.ID, "host")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != store.StatusStarted || started.EndsAt == nil {
		t.Fatalf("started snapshot: %+v", started)
	}
	if !c.timers.live(timerKey{sessionID: snap.ID, kind: timerDeadline}) {
		t.Fatal("deadline timer not armed")
	}
	if _, err := c.Start(ctx, snap.ID, "host"); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("double start err = %v, want not_waiting", err)
	}
}

func TestCommandRaceToGraceAndAllCompleted(t *testing.T) {
	c, mem := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	commands := []string{"ls -la", "cd /var/log", "grep -r error .", "tail -f syslog", "chmod 600 id_rsa"}

	if _, err := c.SubmitAction(ctx, snap.ID, "host", cmdAction("rm -rf /")); err == nil {
		t.Fatal("wrong command accepted")
	}
	for _, cmd := range commands {
		res, err := c.SubmitAction(ctx, snap.ID, "host", cmdAction(cmd))
		if err != nil {
			t.Fatalf("host %q: %v", cmd, err)
		}
		if cmd == commands[len(commands)-1] && !res.Completed {
			t.Fatal("final command did not complete")
		}
	}

	// First completion arms the grace window but does not end the session.
	mid, err := c.Snapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if mid.Status != store.StatusStarted || mid.GraceEndsAt == nil {
		t.Fatalf("after first completion: status=%s grace=%v", mid.Status, mid.GraceEndsAt)
	}
	if !c.timers.live(timerKey{sessionID: snap.ID, kind: timerGrace}) {
		t.Fatal("grace timer not armed")
	}

	for _, cmd := range commands {
		if _, err := c.SubmitAction(ctx, snap.ID, "p2", cmdAction(cmd)); err != nil {
			t.Fatalf("p2 %q: %v", cmd, err)
		}
	}

	final, err := c.Snapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if final.Status != store.StatusEnded {
		t.Fatalf("status = %s, want ended after everyone completed", final.Status)
	}
	if final.WinnerUserID != "host" {
		t.Fatalf("winner = %s, want host (earlier finish on equal score)", final.WinnerUserID)
	}
	if len(final.Ranking) != 2 || final.Ranking[0].Rank != 1 {
		t.Fatalf("ranking: %+v", final.Ranking)
	}
	if c.timers.live(timerKey{sessionID: snap.ID, kind: timerGrace}) {
		t.Fatal("grace timer survived termination")
	}
	w, err := mem.GetWallet(ctx, "host")
	if err != nil || w.XP == 0 || w.Coins == 0 {
		t.Fatalf("winner wallet: %+v err=%v", w, err)
	}
	if _, err := c.SubmitAction(ctx, snap.ID, "p2", cmdAction("ls -la")); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("action after end err = %v, want session_ended", err)
	}
}

func TestSiegeFlagEndsImmediately(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "siege", 2)
	joinReady(t, c, snap.ID, "def")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	raw, _ := json.Marshal(map[string]string{"op": "flag", "flag": "FLAG{webshop-pwned}"})
	res, err := c.SubmitAction(ctx, snap.ID, "host", raw)
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if !res.Completed {
		t.Fatal("flag did not complete")
	}
	final, err := c.Snapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if final.Status != store.StatusEnded || final.WinnerUserID != "host" {
		t.Fatalf("end-immediately: status=%s winner=%s", final.Status, final.WinnerUserID)
	}
}

func TestForceEndIdempotentRewards(t *testing.T) {
	c, mem := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.SubmitAction(ctx, snap.ID, "p2", cmdAction("ls -la")); err != nil {
		t.Fatalf("action: %v", err)
	}

	if err := c.ForceEnd(ctx, snap.ID, "p2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host force end err = %v, want not_host", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.ForceEnd(context.Background(), snap.ID, "host"); err != nil {
				t.Errorf("ForceEnd: %v", err)
			}
		}()
	}
	wg.Wait()

	w, err := mem.GetWallet(ctx, "p2")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	single := w.XP
	// A third end attempt must not pay again.
	if err := c.Terminate(ctx, snap.ID, "deadline"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	w, _ = mem.GetWallet(ctx, "p2")
	if w.XP != single {
		t.Fatalf("XP grew from %d to %d on repeat end", single, w.XP)
	}
}

// terminateOnApply ends the session right before the first progress write
// lands, the narrowest interleaving of an action against the end gate.
type terminateOnApply struct {
	*store.Memory
	terminate func()
	once      sync.Once
}

func (s *terminateOnApply) ApplyProgress(ctx context.Context, sessionID, userID string, d store.ProgressDelta) (*store.Progress, error) {
	if s.terminate != nil {
		s.once.Do(s.terminate)
	}
	return s.Memory.ApplyProgress(ctx, sessionID, userID, d)
}

func TestActionRacingTerminationIsRejected(t *testing.T) {
	st := &terminateOnApply{Memory: store.NewMemory()}
	c := New(st, mode.DefaultRegistry(), content.DefaultLibrary())
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st.terminate = func() {
		if err := c.Terminate(context.Background(), snap.ID, "deadline"); err != nil {
			t.Errorf("Terminate: %v", err)
		}
	}

	// The action passed the status gate before termination won; it must be
	// rejected, not silently dropped from the frozen ranking.
	_, err := c.SubmitAction(ctx, snap.ID, "p2", cmdAction("ls -la"))
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("racing action err = %v, want session_ended", err)
	}
	final, err := c.Snapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if final.Status != store.StatusEnded {
		t.Fatalf("status = %s, want ended", final.Status)
	}
	for _, entry := range final.Ranking {
		if entry.Score != 0 {
			t.Fatalf("rejected action still scored: %+v", final.Ranking)
		}
	}
}

// grantChecksCtx fails reward grants on a dead context, the way the Postgres
// store would.
type grantChecksCtx struct {
	*store.Memory
}

func (s *grantChecksCtx) GrantReward(ctx context.Context, g store.RewardGrant) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Memory.GrantReward(ctx, g)
}

func TestRewardsSurviveCallerCancellation(t *testing.T) {
	st := &grantChecksCtx{Memory: store.NewMemory()}
	c := New(st, mode.DefaultRegistry(), content.DefaultLibrary())
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.SubmitAction(ctx, snap.ID, "p2", cmdAction("ls -la")); err != nil {
		t.Fatalf("action: %v", err)
	}

	// The requester hangs up mid-end; grants must not ride that context,
	// because termination never re-runs to retry them.
	gone, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.ForceEnd(gone, snap.ID, "host"); err != nil {
		t.Fatalf("ForceEnd: %v", err)
	}
	for _, u := range []string{"host", "p2"} {
		w, err := st.GetWallet(ctx, u)
		if err != nil || w.XP == 0 {
			t.Fatalf("wallet %s = %+v (%v), want reward granted", u, w, err)
		}
	}
}

func TestLeaveAfterEndIsNoOp(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.ForceEnd(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("ForceEnd: %v", err)
	}

	// Ended sessions are a read-only record; a late leave changes nothing.
	if err := c.Leave(ctx, snap.ID, "p2"); err != nil {
		t.Fatalf("Leave after end: %v", err)
	}
	final, err := c.Snapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, p := range final.Participants {
		if p.UserID == "p2" && p.HasLeft {
			t.Fatal("leave mutated an ended session")
		}
	}
	if len(final.Ranking) != 2 {
		t.Fatalf("ranking: %+v", final.Ranking)
	}
}

func TestHostMigrationChain(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2", "p3")

	if err := c.Leave(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("host leave: %v", err)
	}
	s, err := c.Snapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.HostUserID != "p2" {
		t.Fatalf("host = %s, want p2 (earliest remaining seat)", s.HostUserID)
	}
	if err := c.Leave(ctx, snap.ID, "p2"); err != nil {
		t.Fatalf("p2 leave: %v", err)
	}
	s, _ = c.Snapshot(ctx, snap.ID)
	if s.HostUserID != "p3" {
		t.Fatalf("host = %s, want p3", s.HostUserID)
	}
	if err := c.Leave(ctx, snap.ID, "p3"); err != nil {
		t.Fatalf("p3 leave: %v", err)
	}
	if _, err := c.Snapshot(ctx, snap.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("empty session err = %v, want not_found", err)
	}
}

func TestKickRules(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2", "p3")

	if err := c.Kick(ctx, snap.ID, "p2", "p3"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host kick err = %v, want not_host", err)
	}
	if err := c.Kick(ctx, snap.ID, "host", "host"); !errors.Is(err, ErrKickHost) {
		t.Fatalf("self kick err = %v, want kick_host", err)
	}
	if err := c.Kick(ctx, snap.ID, "host", "ghost"); !errors.Is(err, store.ErrNotParticipant) {
		t.Fatalf("ghost kick err = %v, want not_participant", err)
	}
	if err := c.Kick(ctx, snap.ID, "host", "p3"); err != nil {
		t.Fatalf("Kick: %v", err)
	}
	s, _ := c.Snapshot(ctx, snap.ID)
	if len(s.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(s.Participants))
	}

	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Kick(ctx, snap.ID, "host", "p2"); !errors.Is(err, ErrKickAfterStart) {
		t.Fatalf("started kick err = %v, want kick_after_start", err)
	}
}

func TestLeaveAfterStartKeepsScoreInRanking(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.SubmitAction(ctx, snap.ID, "p2", cmdAction("ls -la")); err != nil {
		t.Fatalf("action: %v", err)
	}
	if err := c.Leave(ctx, snap.ID, "p2"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := c.ForceEnd(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("ForceEnd: %v", err)
	}
	s, _ := c.Snapshot(ctx, snap.ID)
	if len(s.Ranking) != 2 {
		t.Fatalf("ranking entries = %d, want leaver included", len(s.Ranking))
	}
	if s.Ranking[0].UserID != "p2" || s.Ranking[0].Score != 100 {
		t.Fatalf("top entry: %+v, want p2 with 100", s.Ranking[0])
	}
}

func TestDisconnectGraceWindow(t *testing.T) {
	c, _ := newTestCoordinator(t, WithDisconnectGrace(40*time.Millisecond))
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")

	// Reconnect inside the window leaves everything untouched.
	c.Disconnected(snap.ID, "p2")
	if !c.Reconnected(snap.ID, "p2") {
		t.Fatal("no pending disconnect timer to cancel")
	}
	time.Sleep(80 * time.Millisecond)
	s, _ := c.Snapshot(ctx, snap.ID)
	if len(s.Participants) != 2 {
		t.Fatalf("participants = %d after cancelled disconnect, want 2", len(s.Participants))
	}

	// A second disconnect while one is pending must not restart the window.
	c.Disconnected(snap.ID, "p2")
	if c.timers.armIfAbsent(timerKey{snap.ID, timerDisconnect, "p2"}, time.Hour, func() {}) {
		t.Fatal("second timer armed while first pending")
	}
	c.Disconnected(snap.ID, "p2")

	deadline := time.Now().Add(2 * time.Second)
	for {
		s, _ = c.Snapshot(ctx, snap.ID)
		if len(s.Participants) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("disconnected participant never removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUpdateSettings(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")

	if err := c.UpdateSettings(ctx, snap.ID, "p2", json.RawMessage(`{"x":1}`)); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host settings err = %v, want not_host", err)
	}
	if err := c.UpdateSettings(ctx, snap.ID, "host", json.RawMessage(`{"x":1}`)); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.UpdateSettings(ctx, snap.ID, "host", json.RawMessage(`{"x":2}`)); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("started settings err = %v, want not_waiting", err)
	}
}

func TestSweepEndsOverdueSessions(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c, _ := newTestCoordinator(t, WithClock(clk.Now))
	ctx := context.Background()
	snap := createWaiting(t, c, "commandrace", 4)
	joinReady(t, c, snap.ID, "p2")
	if _, err := c.Start(ctx, snap.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clk.Advance(6 * time.Minute) // past the 5 minute round
	c.sweepExpired()

	s, err := c.Snapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.Status != store.StatusEnded {
		t.Fatalf("status = %s, want ended after sweep", s.Status)
	}
}

func TestListOpen(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	a := createWaiting(t, c, "commandrace", 4)
	b := createWaiting(t, c, "siege", 0)
	_ = b

	open, err := c.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open = %d, want 2", len(open))
	}
	// Started sessions stay listed (spectatable), ended ones drop out.
	joinReady(t, c, a.ID, "p2")
	if _, err := c.Start(ctx, a.ID, "host"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.ForceEnd(ctx, a.ID, "host"); err != nil {
		t.Fatalf("ForceEnd: %v", err)
	}
	open, _ = c.ListOpen(ctx)
	if len(open) != 1 || open[0].Mode != "siege" {
		t.Fatalf("open after end: %+v", open)
	}
}
