package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory implements the same repository surface as Store without Postgres.
// It backs tests and DSN-less local runs. Semantics mirror the SQL
// implementation exactly: every conditional mutation is checked and applied
// under one lock acquisition.
type Memory struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	progress  map[string]map[string]*Progress
	rewards   map[string]bool // session|user|kind
	wallets   map[string]*Wallet
	clears    map[string]bool // scenario|user
	rewardLog []RewardEntry
}

func NewMemory() *Memory {
	return &Memory{
		sessions: map[string]*Session{},
		progress: map[string]map[string]*Progress{},
		rewards:  map[string]bool{},
		wallets:  map[string]*Wallet{},
		clears:   map[string]bool{},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateSession(ctx context.Context, sess Session, host Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess.Settings == nil {
		sess.Settings = json.RawMessage(`{}`)
	}
	sess.Status = StatusWaiting
	sess.CreatedAt = time.Now()
	host.SessionID = sess.ID
	host.Pos = 0
	host.JoinedAt = sess.CreatedAt
	sess.Participants = []Participant{host}
	cp := copySession(&sess)
	m.sessions[sess.ID] = cp
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(sess), nil
}

func (m *Memory) ListOpenSessions(ctx context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Session{}
	for _, sess := range m.sessions {
		if sess.Status != StatusEnded {
			out = append(out, *copySession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListExpiredSessions(ctx context.Context, now time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Session{}
	for _, sess := range m.sessions {
		if sess.Status != StatusStarted {
			continue
		}
		if (sess.EndsAt != nil && !sess.EndsAt.After(now)) ||
			(sess.GraceEndsAt != nil && !sess.GraceEndsAt.After(now)) {
			out = append(out, *copySession(sess))
		}
	}
	return out, nil
}

func (m *Memory) AddParticipant(ctx context.Context, sessionID string, p Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Status != StatusWaiting {
		return ErrNotAccepting
	}
	active := 0
	maxPos := -1
	for _, q := range sess.Participants {
		if q.UserID == p.UserID {
			return ErrAlreadyJoined
		}
		if !q.HasLeft {
			active++
		}
		if q.Pos > maxPos {
			maxPos = q.Pos
		}
	}
	if active >= sess.Capacity {
		return ErrSessionFull
	}
	p.SessionID = sessionID
	p.Pos = maxPos + 1
	p.Ready = false
	p.HasLeft = false
	p.JoinedAt = time.Now()
	sess.Participants = append(sess.Participants, p)
	return nil
}

func (m *Memory) ReactivateParticipant(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.Status != StatusStarted {
		return ErrNotParticipant
	}
	for i := range sess.Participants {
		if sess.Participants[i].UserID == userID {
			sess.Participants[i].HasLeft = false
			return nil
		}
	}
	return ErrNotParticipant
}

func (m *Memory) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.Status != StatusWaiting {
		return ErrNotParticipant
	}
	for i := range sess.Participants {
		if sess.Participants[i].UserID == userID {
			sess.Participants = append(sess.Participants[:i], sess.Participants[i+1:]...)
			return nil
		}
	}
	return ErrNotParticipant
}

func (m *Memory) MarkParticipantLeft(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotParticipant
	}
	for i := range sess.Participants {
		if sess.Participants[i].UserID == userID && !sess.Participants[i].HasLeft {
			sess.Participants[i].HasLeft = true
			return nil
		}
	}
	return ErrNotParticipant
}

func (m *Memory) SetParticipantReady(ctx context.Context, sessionID, userID string, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotParticipant
	}
	for i := range sess.Participants {
		if sess.Participants[i].UserID == userID && !sess.Participants[i].HasLeft {
			sess.Participants[i].Ready = ready
			return nil
		}
	}
	return ErrNotParticipant
}

func (m *Memory) TransferHost(ctx context.Context, sessionID, fromUserID, toUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.HostUserID != fromUserID {
		return ErrConflict
	}
	sess.HostUserID = toUserID
	return nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.progress, id)
	return nil
}

func (m *Memory) StartSession(ctx context.Context, id, hostUserID string, startedAt, endsAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.Status != StatusWaiting || sess.HostUserID != hostUserID {
		return ErrConflict
	}
	sess.Status = StatusStarted
	sa, ea := startedAt, endsAt
	sess.StartedAt = &sa
	sess.EndsAt = &ea
	return nil
}

func (m *Memory) SetGraceDeadlineIfUnset(ctx context.Context, id string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.Status != StatusStarted || sess.GraceEndsAt != nil {
		return ErrConflict
	}
	d := deadline
	sess.GraceEndsAt = &d
	return nil
}

func (m *Memory) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.Status != StatusStarted {
		return ErrConflict
	}
	sess.Status = StatusEnded
	ea := endedAt
	sess.EndedAt = &ea
	sess.GraceEndsAt = nil
	return nil
}

func (m *Memory) SetSessionResult(ctx context.Context, id, winnerUserID string, ranking []RankEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.WinnerUserID = winnerUserID
	sess.Ranking = append([]RankEntry(nil), ranking...)
	return nil
}

func (m *Memory) CASSettings(ctx context.Context, id string, old, updated json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if string(sess.Settings) != string(old) {
		return ErrConflict
	}
	sess.Settings = append(json.RawMessage(nil), updated...)
	return nil
}

func (m *Memory) GetProgress(ctx context.Context, sessionID, userID string) (*Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[sessionID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyProgress(p), nil
}

func (m *Memory) ListProgress(ctx context.Context, sessionID string) ([]Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Progress{}
	for _, p := range m.progress[sessionID] {
		out = append(out, *copyProgress(p))
	}
	return out, nil
}

// ApplyProgress writes only while the session is started; a write racing the
// end gate gets ErrConflict instead of scoring onto a frozen ranking.
func (m *Memory) ApplyProgress(ctx context.Context, sessionID, userID string, d ProgressDelta) (*Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.Status != StatusStarted {
		return nil, ErrConflict
	}
	byUser := m.progress[sessionID]
	if byUser == nil {
		byUser = map[string]*Progress{}
		m.progress[sessionID] = byUser
	}
	p, ok := byUser[userID]
	if !ok {
		p = &Progress{SessionID: sessionID, UserID: userID, State: json.RawMessage(`{}`)}
		byUser[userID] = p
	}
	p.Score += d.ScoreDelta
	p.Stage += d.StageDelta
	if d.Completed && !p.Completed {
		p.Completed = true
		at := d.At
		p.CompletedAt = &at
	}
	at := d.At
	p.LastActionAt = &at
	if d.State != nil {
		p.State = append(json.RawMessage(nil), d.State...)
	}
	return copyProgress(p), nil
}

func (m *Memory) GrantReward(ctx context.Context, g RewardGrant) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := g.SessionID + "|" + g.UserID + "|" + g.Kind
	if m.rewards[key] {
		return false, nil
	}
	m.rewards[key] = true
	w := m.wallets[g.UserID]
	if w == nil {
		w = &Wallet{UserID: g.UserID}
		m.wallets[g.UserID] = w
	}
	w.Coins += g.Coins
	w.XP += g.XP
	w.UpdatedAt = time.Now()
	if p, ok := m.progress[g.SessionID][g.UserID]; ok {
		p.RewardXP = g.XP
		p.RewardCoins = g.Coins
	}
	m.rewardLog = append(m.rewardLog, RewardEntry{
		ID: NewID(), SessionID: g.SessionID, UserID: g.UserID,
		Kind: g.Kind, XP: g.XP, Coins: g.Coins, CreatedAt: time.Now(),
	})
	return true, nil
}

func (m *Memory) MarkScenarioClear(ctx context.Context, scenarioID, userID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scenarioID + "|" + userID
	if m.clears[key] {
		return false, nil
	}
	m.clears[key] = true
	return true, nil
}

func (m *Memory) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func copySession(s *Session) *Session {
	cp := *s
	cp.Participants = append([]Participant(nil), s.Participants...)
	cp.Ranking = append([]RankEntry(nil), s.Ranking...)
	cp.Settings = append(json.RawMessage(nil), s.Settings...)
	if s.StartedAt != nil {
		v := *s.StartedAt
		cp.StartedAt = &v
	}
	if s.EndsAt != nil {
		v := *s.EndsAt
		cp.EndsAt = &v
	}
	if s.GraceEndsAt != nil {
		v := *s.GraceEndsAt
		cp.GraceEndsAt = &v
	}
	if s.EndedAt != nil {
		v := *s.EndedAt
		cp.EndedAt = &v
	}
	return &cp
}

func copyProgress(p *Progress) *Progress {
	cp := *p
	cp.State = append(json.RawMessage(nil), p.State...)
	if p.CompletedAt != nil {
		v := *p.CompletedAt
		cp.CompletedAt = &v
	}
	if p.LastActionAt != nil {
		v := *p.LastActionAt
		cp.LastActionAt = &v
	}
	return &cp
}
