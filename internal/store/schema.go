package store

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS arena_sessions (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	mode           TEXT NOT NULL,
	scenario_id    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'waiting',
	host_user_id   TEXT NOT NULL,
	capacity       INT NOT NULL,
	winner_user_id TEXT NOT NULL DEFAULT '',
	ranking        JSONB,
	settings       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at     TIMESTAMPTZ,
	ends_at        TIMESTAMPTZ,
	grace_ends_at  TIMESTAMPTZ,
	ended_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS arena_participants (
	session_id TEXT NOT NULL REFERENCES arena_sessions(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	pos        INT NOT NULL,
	ready      BOOLEAN NOT NULL DEFAULT false,
	has_left   BOOLEAN NOT NULL DEFAULT false,
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, user_id)
);

CREATE TABLE IF NOT EXISTS arena_progress (
	session_id     TEXT NOT NULL REFERENCES arena_sessions(id) ON DELETE CASCADE,
	user_id        TEXT NOT NULL,
	score          BIGINT NOT NULL DEFAULT 0,
	stage          INT NOT NULL DEFAULT 0,
	completed      BOOLEAN NOT NULL DEFAULT false,
	completed_at   TIMESTAMPTZ,
	last_action_at TIMESTAMPTZ,
	state          JSONB NOT NULL DEFAULT '{}'::jsonb,
	reward_xp      BIGINT NOT NULL DEFAULT 0,
	reward_coins   BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, user_id)
);

CREATE TABLE IF NOT EXISTS reward_entries (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	kind       TEXT NOT NULL,
	xp         BIGINT NOT NULL DEFAULT 0,
	coins      BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, user_id, kind)
);

CREATE TABLE IF NOT EXISTS wallets (
	user_id    TEXT PRIMARY KEY,
	coins      BIGINT NOT NULL DEFAULT 0,
	xp         BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scenario_clears (
	scenario_id TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scenario_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_arena_sessions_status ON arena_sessions (status);
CREATE INDEX IF NOT EXISTS idx_arena_sessions_deadlines ON arena_sessions (status, ends_at, grace_ends_at);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, schema)
	return err
}
