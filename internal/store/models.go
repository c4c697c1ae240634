package store

import (
	"encoding/json"
	"time"
)

const (
	StatusWaiting = "waiting"
	StatusStarted = "started"
	StatusEnded   = "ended"
)

type Session struct {
	ID           string
	Name         string
	Mode         string
	ScenarioID   string
	Status       string
	HostUserID   string
	Capacity     int
	WinnerUserID string
	Ranking      []RankEntry
	Settings     json.RawMessage
	CreatedAt    time.Time
	StartedAt    *time.Time
	EndsAt       *time.Time
	GraceEndsAt  *time.Time
	EndedAt      *time.Time

	Participants []Participant
}

// ActiveParticipants returns the listed members that have not left, in list
// order.
func (s *Session) ActiveParticipants() []Participant {
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if !p.HasLeft {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) Participant(userID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

type Participant struct {
	SessionID string
	UserID    string
	Name      string
	Pos       int
	Ready     bool
	HasLeft   bool
	JoinedAt  time.Time
}

type Progress struct {
	SessionID    string
	UserID       string
	Score        int64
	Stage        int
	Completed    bool
	CompletedAt  *time.Time
	LastActionAt *time.Time
	State        json.RawMessage
	RewardXP     int64
	RewardCoins  int64
}

// ProgressDelta is applied to a progress record in one atomic statement.
type ProgressDelta struct {
	ScoreDelta int64
	StageDelta int
	Completed  bool
	State      json.RawMessage
	At         time.Time
}

type RankEntry struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Rank      int    `json:"rank"`
	Score     int64  `json:"score"`
	Completed bool   `json:"completed"`
}

// RewardGrant is issued at most once per (session, user, kind).
type RewardGrant struct {
	SessionID string
	UserID    string
	Kind      string
	XP        int64
	Coins     int64
}

type RewardEntry struct {
	ID        string
	SessionID string
	UserID    string
	Kind      string
	XP        int64
	Coins     int64
	CreatedAt time.Time
}

type Wallet struct {
	UserID    string    `json:"user_id"`
	Coins     int64     `json:"coins"`
	XP        int64     `json:"xp"`
	UpdatedAt time.Time `json:"updated_at"`
}
