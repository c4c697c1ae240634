// Package arena coordinates competitive session lifecycles: membership while
// waiting, the started clock and its grace window, action scoring through the
// mode engines, and reward issuance when a session ends. All shared state
// lives in the store; the coordinator holds no session cache, so every
// decision point is a conditional store operation and concurrent instances
// (or a restart) cannot disagree.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"arena-server/internal/content"
	"arena-server/internal/mode"
	"arena-server/internal/reward"
	"arena-server/internal/store"
)

const (
	rewardKindResult = "session_result"

	defaultDisconnectGrace = 3 * time.Second
	defaultOpTimeout       = 5 * time.Second

	settingsRetries = 3
)

// Store is the persistence surface the coordinator needs. Both store.Store
// (Postgres) and store.Memory satisfy it.
type Store interface {
	CreateSession(ctx context.Context, sess store.Session, host store.Participant) error
	GetSession(ctx context.Context, id string) (*store.Session, error)
	ListOpenSessions(ctx context.Context) ([]store.Session, error)
	ListExpiredSessions(ctx context.Context, now time.Time) ([]store.Session, error)
	DeleteSession(ctx context.Context, id string) error

	AddParticipant(ctx context.Context, sessionID string, p store.Participant) error
	ReactivateParticipant(ctx context.Context, sessionID, userID string) error
	RemoveParticipant(ctx context.Context, sessionID, userID string) error
	MarkParticipantLeft(ctx context.Context, sessionID, userID string) error
	SetParticipantReady(ctx context.Context, sessionID, userID string, ready bool) error
	TransferHost(ctx context.Context, sessionID, fromUserID, toUserID string) error

	StartSession(ctx context.Context, id, hostUserID string, startedAt, endsAt time.Time) error
	SetGraceDeadlineIfUnset(ctx context.Context, id string, deadline time.Time) error
	EndSession(ctx context.Context, id string, endedAt time.Time) error
	SetSessionResult(ctx context.Context, id, winnerUserID string, ranking []store.RankEntry) error
	CASSettings(ctx context.Context, id string, old, updated json.RawMessage) error

	GetProgress(ctx context.Context, sessionID, userID string) (*store.Progress, error)
	ListProgress(ctx context.Context, sessionID string) ([]store.Progress, error)
	ApplyProgress(ctx context.Context, sessionID, userID string, d store.ProgressDelta) (*store.Progress, error)

	GrantReward(ctx context.Context, g store.RewardGrant) (bool, error)
	MarkScenarioClear(ctx context.Context, scenarioID, userID, sessionID string) (bool, error)
}

type Coordinator struct {
	store  Store
	modes  *mode.Registry
	lib    content.Provider
	bc     Broadcaster
	timers *timerRegistry

	disconnectGrace time.Duration
	opTimeout       time.Duration
	now             func() time.Time
}

type Option func(*Coordinator)

// WithDisconnectGrace sets how long a dropped connection keeps its seat.
func WithDisconnectGrace(d time.Duration) Option {
	return func(c *Coordinator) { c.disconnectGrace = d }
}

// WithOpTimeout bounds store calls made from timer callbacks and the
// janitor, which have no request context of their own.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.opTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(st Store, modes *mode.Registry, lib content.Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:           st,
		modes:           modes,
		lib:             lib,
		bc:              NopBroadcaster{},
		timers:          newTimerRegistry(),
		disconnectGrace: defaultDisconnectGrace,
		opTimeout:       defaultOpTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetBroadcaster attaches the realtime hub. Call before serving traffic; the
// hub needs the coordinator first, hence the two-step wiring.
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	if b != nil {
		c.bc = b
	}
}

type CreateRequest struct {
	Name       string
	Mode       string
	ScenarioID string
	HostUserID string
	HostName   string
	Capacity   int
	Settings   json.RawMessage
}

// Create opens a new waiting session with the requester seated as host.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (*SessionSnapshot, error) {
	eng, err := c.modes.Get(req.Mode)
	if err != nil {
		return nil, err
	}
	cfg := eng.Config()

	var scenario *content.Scenario
	if req.ScenarioID == "" {
		scenario, err = c.lib.Pick(req.Mode)
	} else {
		scenario, err = c.lib.Get(req.ScenarioID)
	}
	if err != nil {
		return nil, err
	}
	if scenario.Mode != req.Mode {
		return nil, content.ErrScenarioNotFound
	}

	capacity := req.Capacity
	if capacity <= 0 {
		capacity = cfg.MaxPlayers
	}
	if capacity < cfg.MinPlayers {
		capacity = cfg.MinPlayers
	}
	if capacity > cfg.MaxPlayers {
		capacity = cfg.MaxPlayers
	}

	name := req.Name
	if name == "" {
		name = scenario.Name
	}
	settings := req.Settings
	if len(settings) == 0 {
		settings = json.RawMessage(`{}`)
	}

	now := c.now()
	sess := store.Session{
		ID:         store.NewID(),
		Name:       name,
		Mode:       req.Mode,
		ScenarioID: scenario.ID,
		HostUserID: req.HostUserID,
		Capacity:   capacity,
		Settings:   settings,
		CreatedAt:  now,
	}
	host := store.Participant{
		SessionID: sess.ID,
		UserID:    req.HostUserID,
		Name:      req.HostName,
		Pos:       1,
		JoinedAt:  now,
	}
	if err := c.store.CreateSession(ctx, sess, host); err != nil {
		return nil, err
	}
	log.Info().Str("session_id", sess.ID).Str("mode", sess.Mode).
		Str("scenario_id", sess.ScenarioID).Str("host", req.HostUserID).
		Msg("session created")
	c.bc.SessionListChanged()
	return c.Snapshot(ctx, sess.ID)
}

// Join seats a user. Rejoining while still listed is a reattach: any pending
// disconnect timer is cancelled and no state changes. A participant who left
// a started session gets their seat back; their progress was kept.
func (c *Coordinator) Join(ctx context.Context, sessionID, userID, name string) (*SessionSnapshot, error) {
	c.timers.cancel(timerKey{sessionID, timerDisconnect, userID})

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p := sess.Participant(userID); p != nil {
		if !p.HasLeft {
			return c.Snapshot(ctx, sessionID)
		}
		if sess.Status != store.StatusStarted {
			return nil, store.ErrNotAccepting
		}
		if err := c.store.ReactivateParticipant(ctx, sessionID, userID); err != nil {
			return nil, err
		}
	} else {
		if sess.Status != store.StatusWaiting {
			return nil, store.ErrNotAccepting
		}
		err := c.store.AddParticipant(ctx, sessionID, store.Participant{
			SessionID: sessionID,
			UserID:    userID,
			Name:      name,
			JoinedAt:  c.now(),
		})
		if err != nil {
			return nil, err
		}
	}
	log.Info().Str("session_id", sessionID).Str("user", userID).Msg("joined")
	c.broadcastState(ctx, sessionID)
	c.bc.SessionListChanged()
	return c.Snapshot(ctx, sessionID)
}

// Leave removes a participant. While waiting the seat is freed entirely;
// after start the participant is marked left and keeps their score in the
// final ranking. The last active participant leaving deletes the session.
func (c *Coordinator) Leave(ctx context.Context, sessionID, userID string) error {
	c.timers.cancel(timerKey{sessionID, timerDisconnect, userID})

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	p := sess.Participant(userID)
	if p == nil {
		return store.ErrNotParticipant
	}
	switch sess.Status {
	case store.StatusWaiting:
		if err := c.store.RemoveParticipant(ctx, sessionID, userID); err != nil {
			return err
		}
	case store.StatusStarted:
		if p.HasLeft {
			return nil
		}
		err := c.store.MarkParticipantLeft(ctx, sessionID, userID)
		if err != nil && !errors.Is(err, store.ErrNotParticipant) {
			return err
		}
	default:
		// ended sessions are a read-only record; a late leave changes nothing
		return nil
	}
	log.Info().Str("session_id", sessionID).Str("user", userID).Msg("left")
	return c.afterDeparture(ctx, sessionID, userID)
}

// afterDeparture re-reads the session and handles the two consequences a
// departure can have: an empty session is deleted, a departed host is
// replaced by the longest-seated remaining participant.
func (c *Coordinator) afterDeparture(ctx context.Context, sessionID, departed string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	active := sess.ActiveParticipants()
	if len(active) == 0 {
		c.timers.cancelSession(sessionID)
		if err := c.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		log.Info().Str("session_id", sessionID).Msg("session deleted, no participants left")
		c.bc.SessionListChanged()
		return nil
	}
	if sess.HostUserID == departed {
		next := active[0].UserID
		err := c.store.TransferHost(ctx, sessionID, departed, next)
		switch {
		case err == nil:
			log.Info().Str("session_id", sessionID).Str("from", departed).
				Str("to", next).Msg("host migrated")
		case errors.Is(err, store.ErrConflict):
			// another departure already moved it
		default:
			return err
		}
	}
	c.broadcastState(ctx, sessionID)
	c.bc.SessionListChanged()
	return nil
}

// Kick removes another participant. Host only, waiting only, never the host
// themselves.
func (c *Coordinator) Kick(ctx context.Context, sessionID, hostID, targetID string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != store.StatusWaiting {
		return ErrKickAfterStart
	}
	if sess.HostUserID != hostID {
		return ErrNotHost
	}
	if targetID == hostID {
		return ErrKickHost
	}
	if sess.Participant(targetID) == nil {
		return store.ErrNotParticipant
	}
	if err := c.store.RemoveParticipant(ctx, sessionID, targetID); err != nil {
		return err
	}
	c.timers.cancel(timerKey{sessionID, timerDisconnect, targetID})
	log.Info().Str("session_id", sessionID).Str("user", targetID).
		Str("by", hostID).Msg("kicked")
	c.bc.SessionEvent(sessionID, EventKicked, map[string]any{"user_id": targetID})
	return c.afterDeparture(ctx, sessionID, targetID)
}

// SetReady flips a participant's ready flag while the session is waiting.
func (c *Coordinator) SetReady(ctx context.Context, sessionID, userID string, ready bool) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != store.StatusWaiting {
		return ErrNotWaiting
	}
	if err := c.store.SetParticipantReady(ctx, sessionID, userID, ready); err != nil {
		return err
	}
	c.broadcastState(ctx, sessionID)
	return nil
}

// UpdateSettings replaces the shared settings blob. Host only, waiting only.
// Compare-and-swap with a short retry so a concurrent writer is never
// silently overwritten.
func (c *Coordinator) UpdateSettings(ctx context.Context, sessionID, hostID string, settings json.RawMessage) error {
	if len(settings) == 0 {
		settings = json.RawMessage(`{}`)
	}
	for attempt := 0; attempt < settingsRetries; attempt++ {
		sess, err := c.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != store.StatusWaiting {
			return ErrNotWaiting
		}
		if sess.HostUserID != hostID {
			return ErrNotHost
		}
		err = c.store.CASSettings(ctx, sessionID, sess.Settings, settings)
		if err == nil {
			c.broadcastState(ctx, sessionID)
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return store.ErrConflict
}

// Start moves the session to started. Requires the host, the mode's player
// minimum, and every non-host participant ready. The waiting->started edge
// is a store CAS, so exactly one of two racing starts wins.
func (c *Coordinator) Start(ctx context.Context, sessionID, requesterID string) (*SessionSnapshot, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != store.StatusWaiting {
		return nil, ErrNotWaiting
	}
	if sess.HostUserID != requesterID {
		return nil, ErrNotHost
	}
	eng, err := c.modes.Get(sess.Mode)
	if err != nil {
		return nil, err
	}
	cfg := eng.Config()
	active := sess.ActiveParticipants()
	if len(active) < cfg.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}
	for _, p := range active {
		if p.UserID != sess.HostUserID && !p.Ready {
			return nil, ErrNotAllReady
		}
	}

	startedAt := c.now()
	endsAt := startedAt.Add(cfg.Duration)
	if err := c.store.StartSession(ctx, sessionID, requesterID, startedAt, endsAt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrNotWaiting
		}
		return nil, err
	}
	c.timers.arm(timerKey{sessionID: sessionID, kind: timerDeadline}, cfg.Duration, func() {
		c.expire(sessionID, "deadline")
	})
	log.Info().Str("session_id", sessionID).Time("ends_at", endsAt).Msg("session started")
	c.broadcastState(ctx, sessionID)
	c.bc.SessionListChanged()
	return c.Snapshot(ctx, sessionID)
}

// ActionResult is what the acting participant gets back; shared consequences
// go out as broadcasts.
type ActionResult struct {
	ScoreDelta int64          `json:"score_delta"`
	Score      int64          `json:"score"`
	Stage      int            `json:"stage"`
	Completed  bool           `json:"completed"`
	Effects    map[string]any `json:"effects,omitempty"`
}

// SubmitAction runs one gameplay action through the session's mode engine
// and applies the result atomically. When the engine writes shared settings
// the write is a CAS: on conflict the engine re-runs against the fresh blob,
// a bounded number of times.
func (c *Coordinator) SubmitAction(ctx context.Context, sessionID, userID string, raw json.RawMessage) (*ActionResult, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case store.StatusStarted:
	case store.StatusEnded:
		return nil, ErrSessionEnded
	default:
		return nil, ErrNotStarted
	}
	p := sess.Participant(userID)
	if p == nil || p.HasLeft {
		return nil, store.ErrNotParticipant
	}
	eng, err := c.modes.Get(sess.Mode)
	if err != nil {
		return nil, err
	}
	scenario, err := c.lib.Get(sess.ScenarioID)
	if err != nil {
		return nil, err
	}

	settings := sess.Settings
	var (
		res         mode.Result
		wasComplete bool
	)
	for attempt := 0; ; attempt++ {
		prog, err := c.store.GetProgress(ctx, sessionID, userID)
		if errors.Is(err, store.ErrNotFound) {
			prog = &store.Progress{SessionID: sessionID, UserID: userID}
		} else if err != nil {
			return nil, err
		}
		wasComplete = prog.Completed

		res, err = eng.Apply(ctx, mode.ActionContext{
			Scenario: scenario,
			Settings: settings,
			State:    prog.State,
			Stage:    prog.Stage,
			Score:    prog.Score,
			Complete: prog.Completed,
			UserID:   userID,
			Now:      c.now(),
			Raw:      raw,
		})
		if err != nil {
			return nil, err
		}
		if res.Settings == nil {
			break
		}
		err = c.store.CASSettings(ctx, sessionID, settings, res.Settings)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= settingsRetries-1 {
			return nil, err
		}
		fresh, err := c.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if fresh.Status != store.StatusStarted {
			return nil, ErrSessionEnded
		}
		settings = fresh.Settings
	}

	applied, err := c.store.ApplyProgress(ctx, sessionID, userID, store.ProgressDelta{
		ScoreDelta: res.ScoreDelta,
		StageDelta: res.StageDelta,
		Completed:  res.Completed,
		State:      res.State,
		At:         c.now(),
	})
	if errors.Is(err, store.ErrConflict) {
		// a terminator won the end gate between the status check above and
		// the write; the action never happened
		return nil, ErrSessionEnded
	}
	if err != nil {
		return nil, err
	}
	out := &ActionResult{
		ScoreDelta: res.ScoreDelta,
		Score:      applied.Score,
		Stage:      applied.Stage,
		Completed:  applied.Completed,
		Effects:    res.Effects,
	}
	c.bc.SessionEvent(sessionID, EventProgress, map[string]any{
		"user_id":   userID,
		"score":     applied.Score,
		"stage":     applied.Stage,
		"completed": applied.Completed,
	})
	if applied.Completed && !wasComplete {
		c.handleCompletion(ctx, sessionID, eng.Config())
	}
	return out, nil
}

// handleCompletion applies the mode's end policy after a participant's first
// completion. The grace deadline is set-if-unset in the store, so when two
// participants complete back to back only the first arms the window.
func (c *Coordinator) handleCompletion(ctx context.Context, sessionID string, cfg mode.Config) {
	if cfg.Policy == mode.EndImmediately {
		if err := c.Terminate(ctx, sessionID, "first_completion"); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("end on completion failed")
		}
		return
	}
	deadline := c.now().Add(cfg.Grace)
	switch err := c.store.SetGraceDeadlineIfUnset(ctx, sessionID, deadline); {
	case err == nil:
		c.timers.arm(timerKey{sessionID: sessionID, kind: timerGrace}, cfg.Grace, func() {
			c.expire(sessionID, "grace_elapsed")
		})
		log.Info().Str("session_id", sessionID).Time("grace_ends_at", deadline).Msg("grace window armed")
		c.bc.SessionEvent(sessionID, EventGraceStarted, map[string]any{
			"grace_seconds": int(cfg.Grace / time.Second),
			"grace_ends_at": deadline,
		})
	case errors.Is(err, store.ErrConflict):
		// already armed by an earlier completion
	default:
		log.Error().Err(err).Str("session_id", sessionID).Msg("arm grace failed")
	}
	if c.allCompleted(ctx, sessionID) {
		if err := c.Terminate(ctx, sessionID, "all_completed"); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("end on all completed failed")
		}
	}
}

func (c *Coordinator) allCompleted(ctx context.Context, sessionID string) bool {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil || sess.Status != store.StatusStarted {
		return false
	}
	progress, err := c.store.ListProgress(ctx, sessionID)
	if err != nil {
		return false
	}
	done := make(map[string]bool, len(progress))
	for _, prog := range progress {
		done[prog.UserID] = prog.Completed
	}
	active := sess.ActiveParticipants()
	for _, p := range active {
		if !done[p.UserID] {
			return false
		}
	}
	return len(active) > 0
}

// ForceEnd lets the host cut a started session short.
func (c *Coordinator) ForceEnd(ctx context.Context, sessionID, requesterID string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.HostUserID != requesterID {
		return ErrNotHost
	}
	if sess.Status == store.StatusWaiting {
		return ErrNotStarted
	}
	return c.Terminate(ctx, sessionID, "host_ended")
}

// Terminate moves a started session to ended, ranks everyone, and issues
// rewards. The started->ended store CAS makes this idempotent: whichever
// caller loses the race (timer, janitor, host, last completion) returns nil
// without ranking or rewarding a second time.
func (c *Coordinator) Terminate(ctx context.Context, sessionID, cause string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	switch sess.Status {
	case store.StatusEnded:
		return nil
	case store.StatusWaiting:
		return ErrNotStarted
	}

	if err := c.store.EndSession(ctx, sessionID, c.now()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return err
	}
	c.timers.cancelSession(sessionID)

	// From here on the session is ended and ApplyProgress refuses further
	// writes, so the progress read below is the final word. The work also
	// switches to a coordinator-owned context: the caller may be an HTTP
	// request whose client already went away, and since termination never
	// re-runs, a cancelled context here would strand rewards for good.
	octx, cancel := c.opCtx()
	defer cancel()

	progress, err := c.store.ListProgress(octx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("read final progress failed")
		return err
	}
	ranking := computeRanking(sess.Participants, progress)
	winner := ""
	if len(ranking) > 0 {
		winner = ranking[0].UserID
	}
	if err := c.store.SetSessionResult(octx, sessionID, winner, ranking); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("persist ranking failed")
		return err
	}
	log.Info().Str("session_id", sessionID).Str("cause", cause).
		Str("winner", winner).Msg("session ended")

	c.applyRewards(octx, sess, ranking, progress)
	c.bc.SessionEvent(sessionID, EventSessionEnded, map[string]any{
		"cause":          cause,
		"winner_user_id": winner,
		"ranking":        ranking,
	})
	c.bc.SessionListChanged()
	return nil
}

// applyRewards issues one grant per ranked participant. Failures are logged
// and skipped; one broken wallet never blocks the rest, and the unique grant
// key in the store means a retry cannot double-pay.
func (c *Coordinator) applyRewards(ctx context.Context, sess *store.Session, ranking []store.RankEntry, progress []store.Progress) {
	eng, err := c.modes.Get(sess.Mode)
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Msg("reward pass skipped")
		return
	}
	cfg := eng.Config()
	byUser := make(map[string]*store.Progress, len(progress))
	for i := range progress {
		byUser[progress[i].UserID] = &progress[i]
	}
	for _, entry := range ranking {
		var (
			completed      bool
			completionTime time.Duration
		)
		if prog := byUser[entry.UserID]; prog != nil && prog.Completed {
			completed = true
			if prog.CompletedAt != nil && sess.StartedAt != nil {
				completionTime = prog.CompletedAt.Sub(*sess.StartedAt)
			}
		}
		firstClear := false
		if completed {
			firstClear, err = c.store.MarkScenarioClear(ctx, sess.ScenarioID, entry.UserID, sess.ID)
			if err != nil {
				log.Warn().Err(err).Str("session_id", sess.ID).
					Str("user", entry.UserID).Msg("first clear check failed")
				firstClear = false
			}
		}
		g := reward.Compute(reward.Input{
			Rank:           entry.Rank,
			Score:          entry.Score,
			Difficulty:     cfg.Difficulty,
			BaseCoins:      cfg.BaseCoins,
			Completed:      completed,
			CompletionTime: completionTime,
			FirstClear:     firstClear,
		})
		granted, err := c.store.GrantReward(ctx, store.RewardGrant{
			SessionID: sess.ID,
			UserID:    entry.UserID,
			Kind:      rewardKindResult,
			XP:        g.XP,
			Coins:     g.Coins,
		})
		if err != nil {
			log.Error().Err(err).Str("session_id", sess.ID).
				Str("user", entry.UserID).Msg("reward grant failed")
			continue
		}
		if !granted {
			log.Debug().Str("session_id", sess.ID).Str("user", entry.UserID).
				Msg("reward already granted")
		}
	}
}

// Disconnected arms the per-participant grace timer. A second disconnect
// while one is pending is a no-op; the original window keeps counting.
func (c *Coordinator) Disconnected(sessionID, userID string) {
	key := timerKey{sessionID, timerDisconnect, userID}
	armed := c.timers.armIfAbsent(key, c.disconnectGrace, func() {
		ctx, cancel := c.opCtx()
		defer cancel()
		err := c.Leave(ctx, sessionID, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrNotParticipant) {
			log.Warn().Err(err).Str("session_id", sessionID).
				Str("user", userID).Msg("disconnect leave failed")
		}
	})
	if armed {
		log.Debug().Str("session_id", sessionID).Str("user", userID).Msg("disconnect grace armed")
	}
}

// Reconnected cancels a pending disconnect timer. Returns whether one was
// live.
func (c *Coordinator) Reconnected(sessionID, userID string) bool {
	return c.timers.cancel(timerKey{sessionID, timerDisconnect, userID})
}

// Snapshot builds the client view of one session.
func (c *Coordinator) Snapshot(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	progress, err := c.store.ListProgress(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(sess, progress), nil
}

// ListOpen returns lobby summaries for joinable sessions.
func (c *Coordinator) ListOpen(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := c.store.ListOpenSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(sessions))
	for i := range sessions {
		out = append(out, summarize(&sessions[i]))
	}
	return out, nil
}

func (c *Coordinator) broadcastState(ctx context.Context, sessionID string) {
	snap, err := c.Snapshot(ctx, sessionID)
	if err != nil {
		return
	}
	c.bc.SessionEvent(sessionID, EventSessionState, snap)
}

func (c *Coordinator) expire(sessionID, cause string) {
	ctx, cancel := c.opCtx()
	defer cancel()
	if err := c.Terminate(ctx, sessionID, cause); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("cause", cause).Msg("timed end failed")
	}
}

func (c *Coordinator) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opTimeout)
}
