package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps DB access. Every mutation the coordinator relies on is a
// single conditional statement; rows-affected == 0 means the caller lost
// the race and gets ErrConflict (or a more specific sentinel).
type Store struct {
	DB *sql.DB
}

func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

func (s *Store) CreateSession(ctx context.Context, sess Session, host Participant) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	settings := sess.Settings
	if settings == nil {
		settings = json.RawMessage(`{}`)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO arena_sessions (id, name, mode, scenario_id, status, host_user_id, capacity, settings)
		VALUES ($1,$2,$3,$4,'waiting',$5,$6,$7)`,
		sess.ID, sess.Name, sess.Mode, sess.ScenarioID, sess.HostUserID, sess.Capacity, []byte(settings))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO arena_participants (session_id, user_id, name, pos, ready)
		VALUES ($1,$2,$3,0,false)`,
		sess.ID, host.UserID, host.Name)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, mode, scenario_id, status, host_user_id, capacity,
		       winner_user_id, ranking, settings, created_at, started_at,
		       ends_at, grace_ends_at, ended_at
		FROM arena_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	parts, err := s.listParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Participants = parts
	return sess, nil
}

func (s *Store) ListOpenSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, mode, scenario_id, status, host_user_id, capacity,
		       winner_user_id, ranking, settings, created_at, started_at,
		       ends_at, grace_ends_at, ended_at
		FROM arena_sessions WHERE status <> 'ended' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		parts, err := s.listParticipants(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Participants = parts
	}
	return out, nil
}

// ListExpiredSessions returns started sessions whose hard deadline or grace
// deadline has passed. The janitor uses this as a fallback for timers lost
// to a crash or restart.
func (s *Store) ListExpiredSessions(ctx context.Context, now time.Time) ([]Session, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, mode, scenario_id, status, host_user_id, capacity,
		       winner_user_id, ranking, settings, created_at, started_at,
		       ends_at, grace_ends_at, ended_at
		FROM arena_sessions
		WHERE status = 'started'
		  AND ((ends_at IS NOT NULL AND ends_at <= $1)
		    OR (grace_ends_at IS NOT NULL AND grace_ends_at <= $1))`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// AddParticipant admits a user into a waiting session. The status check,
// duplicate check, capacity check and insert happen under a row lock so two
// joins racing for the last slot cannot both pass.
func (s *Store) AddParticipant(ctx context.Context, sessionID string, p Participant) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	var capacity int
	row := tx.QueryRowContext(ctx, `SELECT status, capacity FROM arena_sessions WHERE id = $1 FOR UPDATE`, sessionID)
	if err := row.Scan(&status, &capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if status != StatusWaiting {
		return ErrNotAccepting
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM arena_participants WHERE session_id = $1 AND user_id = $2)`, sessionID, p.UserID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrAlreadyJoined
	}
	var active int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM arena_participants WHERE session_id = $1 AND NOT has_left`, sessionID).Scan(&active); err != nil {
		return err
	}
	if active >= capacity {
		return ErrSessionFull
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO arena_participants (session_id, user_id, name, pos, ready)
		SELECT $1, $2, $3, COALESCE(MAX(pos)+1, 0), false
		FROM arena_participants WHERE session_id = $1`,
		sessionID, p.UserID, p.Name)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ReactivateParticipant clears has-left for a previously listed member of a
// started session.
func (s *Store) ReactivateParticipant(ctx context.Context, sessionID, userID string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_participants SET has_left = false
		WHERE session_id = $1 AND user_id = $2
		  AND EXISTS (SELECT 1 FROM arena_sessions WHERE id = $1 AND status = 'started')`,
		sessionID, userID)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrNotParticipant)
}

// RemoveParticipant deletes a member outright; only legal while waiting.
func (s *Store) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM arena_participants
		WHERE session_id = $1 AND user_id = $2
		  AND EXISTS (SELECT 1 FROM arena_sessions WHERE id = $1 AND status = 'waiting')`,
		sessionID, userID)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrNotParticipant)
}

func (s *Store) MarkParticipantLeft(ctx context.Context, sessionID, userID string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_participants SET has_left = true
		WHERE session_id = $1 AND user_id = $2 AND NOT has_left`,
		sessionID, userID)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrNotParticipant)
}

func (s *Store) SetParticipantReady(ctx context.Context, sessionID, userID string, ready bool) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_participants SET ready = $3
		WHERE session_id = $1 AND user_id = $2 AND NOT has_left`,
		sessionID, userID, ready)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrNotParticipant)
}

func (s *Store) TransferHost(ctx context.Context, sessionID, fromUserID, toUserID string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_sessions SET host_user_id = $3
		WHERE id = $1 AND host_user_id = $2`,
		sessionID, fromUserID, toUserID)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrConflict)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM arena_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrNotFound)
}

// StartSession is the waiting→started gate: the conditional update admits
// exactly one start request.
func (s *Store) StartSession(ctx context.Context, id, hostUserID string, startedAt, endsAt time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_sessions SET status = 'started', started_at = $3, ends_at = $4
		WHERE id = $1 AND status = 'waiting' AND host_user_id = $2`,
		id, hostUserID, startedAt, endsAt)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrConflict)
}

// SetGraceDeadlineIfUnset records the grace-period deadline; only the first
// completion wins, duplicates get ErrConflict.
func (s *Store) SetGraceDeadlineIfUnset(ctx context.Context, id string, deadline time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_sessions SET grace_ends_at = $2
		WHERE id = $1 AND status = 'started' AND grace_ends_at IS NULL`,
		id, deadline)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrConflict)
}

// EndSession is the started→ended gate. Exactly one terminator wins; the
// rest get ErrConflict and must treat termination as already done. The
// winner and ranking are written by SetSessionResult once the gate holder
// has read the frozen progress.
func (s *Store) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_sessions
		SET status = 'ended', ended_at = $2, grace_ends_at = NULL
		WHERE id = $1 AND status = 'started'`,
		id, endedAt)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrConflict)
}

// SetSessionResult persists the final ranking on an already-ended session.
func (s *Store) SetSessionResult(ctx context.Context, id, winnerUserID string, ranking []RankEntry) error {
	blob, err := json.Marshal(ranking)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_sessions SET winner_user_id = $2, ranking = $3
		WHERE id = $1`,
		id, winnerUserID, blob)
	if err != nil {
		return err
	}
	return rowsOr(res, ErrNotFound)
}

// CASSettings swaps the session settings blob only if it still matches the
// value the caller read. Mode engines that mutate shared settings (the hill
// holder) retry on ErrConflict.
func (s *Store) CASSettings(ctx context.Context, id string, old, updated json.RawMessage) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE arena_sessions SET settings = $3
		WHERE id = $1 AND settings = $2::jsonb`,
		id, []byte(old), []byte(updated))
	if err != nil {
		return err
	}
	return rowsOr(res, ErrConflict)
}

func (s *Store) GetProgress(ctx context.Context, sessionID, userID string) (*Progress, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT session_id, user_id, score, stage, completed, completed_at,
		       last_action_at, state, reward_xp, reward_coins
		FROM arena_progress WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID)
	return scanProgress(row)
}

func (s *Store) ListProgress(ctx context.Context, sessionID string) ([]Progress, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT session_id, user_id, score, stage, completed, completed_at,
		       last_action_at, state, reward_xp, reward_coins
		FROM arena_progress WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ApplyProgress upserts and mutates the progress record in one statement:
// score and stage are incremented, completed latches on, completed_at is
// written once. The insert source is conditioned on the session still being
// started, so a write racing the end gate returns ErrConflict instead of
// scoring onto a frozen ranking.
func (s *Store) ApplyProgress(ctx context.Context, sessionID, userID string, d ProgressDelta) (*Progress, error) {
	var state any
	if d.State != nil {
		state = []byte(d.State)
	}
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO arena_progress (session_id, user_id, score, stage, completed, completed_at, last_action_at, state)
		SELECT $1, $2, $3::bigint, $4::int, $5::boolean,
		       CASE WHEN $5::boolean THEN $6::timestamptz END, $6::timestamptz,
		       COALESCE($7, '{}'::jsonb)
		WHERE EXISTS (SELECT 1 FROM arena_sessions WHERE id = $1 AND status = 'started')
		ON CONFLICT (session_id, user_id) DO UPDATE SET
			score = arena_progress.score + EXCLUDED.score,
			stage = arena_progress.stage + EXCLUDED.stage,
			completed = arena_progress.completed OR EXCLUDED.completed,
			completed_at = CASE
				WHEN NOT arena_progress.completed AND EXCLUDED.completed THEN EXCLUDED.last_action_at
				ELSE arena_progress.completed_at
			END,
			last_action_at = EXCLUDED.last_action_at,
			state = COALESCE($7, arena_progress.state)
		RETURNING session_id, user_id, score, stage, completed, completed_at,
		          last_action_at, state, reward_xp, reward_coins`,
		sessionID, userID, d.ScoreDelta, d.StageDelta, d.Completed, d.At, state)
	p, err := scanProgress(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	return p, err
}

// GrantReward credits a participant at most once per (session, user, kind).
// Returns false when the grant was already issued.
func (s *Store) GrantReward(ctx context.Context, g RewardGrant) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO reward_entries (id, session_id, user_id, kind, xp, coins)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id, user_id, kind) DO NOTHING`,
		NewID(), g.SessionID, g.UserID, g.Kind, g.XP, g.Coins)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, coins, xp) VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET
			coins = wallets.coins + EXCLUDED.coins,
			xp = wallets.xp + EXCLUDED.xp,
			updated_at = now()`,
		g.UserID, g.Coins, g.XP)
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE arena_progress SET reward_xp = $3, reward_coins = $4
		WHERE session_id = $1 AND user_id = $2`,
		g.SessionID, g.UserID, g.XP, g.Coins)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// MarkScenarioClear records the first completed run of a scenario by a user.
// Returns true only for the first clear.
func (s *Store) MarkScenarioClear(ctx context.Context, scenarioID, userID, sessionID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO scenario_clears (scenario_id, user_id, session_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (scenario_id, user_id) DO NOTHING`,
		scenarioID, userID, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT user_id, coins, xp, updated_at FROM wallets WHERE user_id = $1`, userID)
	var w Wallet
	if err := row.Scan(&w.UserID, &w.Coins, &w.XP, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (s *Store) listParticipants(ctx context.Context, sessionID string) ([]Participant, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT session_id, user_id, name, pos, ready, has_left, joined_at
		FROM arena_participants WHERE session_id = $1 ORDER BY pos ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Participant{}
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.SessionID, &p.UserID, &p.Name, &p.Pos, &p.Ready, &p.HasLeft, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var ranking, settings []byte
	err := row.Scan(&sess.ID, &sess.Name, &sess.Mode, &sess.ScenarioID, &sess.Status,
		&sess.HostUserID, &sess.Capacity, &sess.WinnerUserID, &ranking, &settings,
		&sess.CreatedAt, &sess.StartedAt, &sess.EndsAt, &sess.GraceEndsAt, &sess.EndedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ranking != nil {
		if err := json.Unmarshal(ranking, &sess.Ranking); err != nil {
			return nil, err
		}
	}
	sess.Settings = json.RawMessage(settings)
	return &sess, nil
}

func scanProgress(row rowScanner) (*Progress, error) {
	var p Progress
	var state []byte
	err := row.Scan(&p.SessionID, &p.UserID, &p.Score, &p.Stage, &p.Completed,
		&p.CompletedAt, &p.LastActionAt, &state, &p.RewardXP, &p.RewardCoins)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.State = json.RawMessage(state)
	return &p, nil
}

func rowsOr(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
