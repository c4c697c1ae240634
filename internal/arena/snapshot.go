package arena

import (
	"time"

	"arena-server/internal/store"
)

// SessionSnapshot is the full client-facing view of one session, sent on
// every membership or lifecycle change and on sync requests.
type SessionSnapshot struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Mode         string            `json:"mode"`
	ScenarioID   string            `json:"scenario_id"`
	Status       string            `json:"status"`
	HostUserID   string            `json:"host_user_id"`
	Capacity     int               `json:"capacity"`
	WinnerUserID string            `json:"winner_user_id,omitempty"`
	Ranking      []store.RankEntry `json:"ranking,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	EndsAt       *time.Time        `json:"ends_at,omitempty"`
	GraceEndsAt  *time.Time        `json:"grace_ends_at,omitempty"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	Participants []ParticipantView `json:"participants"`
}

type ParticipantView struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"is_host"`
	Ready     bool   `json:"ready"`
	HasLeft   bool   `json:"has_left"`
	Score     int64  `json:"score"`
	Stage     int    `json:"stage"`
	Completed bool   `json:"completed"`
}

// SessionSummary is the lobby listing row.
type SessionSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Mode       string    `json:"mode"`
	ScenarioID string    `json:"scenario_id"`
	Status     string    `json:"status"`
	Players    int       `json:"players"`
	Capacity   int       `json:"capacity"`
	HostUserID string    `json:"host_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func buildSnapshot(sess *store.Session, progress []store.Progress) *SessionSnapshot {
	byUser := make(map[string]*store.Progress, len(progress))
	for i := range progress {
		byUser[progress[i].UserID] = &progress[i]
	}
	snap := &SessionSnapshot{
		ID:           sess.ID,
		Name:         sess.Name,
		Mode:         sess.Mode,
		ScenarioID:   sess.ScenarioID,
		Status:       sess.Status,
		HostUserID:   sess.HostUserID,
		Capacity:     sess.Capacity,
		WinnerUserID: sess.WinnerUserID,
		Ranking:      sess.Ranking,
		StartedAt:    sess.StartedAt,
		EndsAt:       sess.EndsAt,
		GraceEndsAt:  sess.GraceEndsAt,
		EndedAt:      sess.EndedAt,
		Participants: make([]ParticipantView, 0, len(sess.Participants)),
	}
	for _, p := range sess.Participants {
		v := ParticipantView{
			UserID:  p.UserID,
			Name:    p.Name,
			IsHost:  p.UserID == sess.HostUserID,
			Ready:   p.Ready,
			HasLeft: p.HasLeft,
		}
		if prog := byUser[p.UserID]; prog != nil {
			v.Score = prog.Score
			v.Stage = prog.Stage
			v.Completed = prog.Completed
		}
		snap.Participants = append(snap.Participants, v)
	}
	return snap
}

func summarize(sess *store.Session) SessionSummary {
	return SessionSummary{
		ID:         sess.ID,
		Name:       sess.Name,
		Mode:       sess.Mode,
		ScenarioID: sess.ScenarioID,
		Status:     sess.Status,
		Players:    len(sess.ActiveParticipants()),
		Capacity:   sess.Capacity,
		HostUserID: sess.HostUserID,
		CreatedAt:  sess.CreatedAt,
	}
}
