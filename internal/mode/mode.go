// Package mode holds the pluggable scoring engines. The coordinator stays
// mode-agnostic: engines turn a raw action into a score delta, a completion
// flag and updated state blobs, and never touch storage themselves.
package mode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"arena-server/internal/content"
)

var (
	ErrUnknownMode = errors.New("unknown_mode")

	errWrongCommand    = errors.New("wrong_command")
	errWrongAnswer     = errors.New("wrong_answer")
	errAlreadyAnswered = errors.New("already_answered")
	errUnknownQuestion = errors.New("unknown_question")
	errUnknownVuln     = errors.New("unknown_vuln")
	errAlreadyBreached = errors.New("already_breached")
	errVulnPatched     = errors.New("vuln_patched")
	errCooldownActive  = errors.New("cooldown_active")
	errWrongFlag       = errors.New("wrong_flag")
	errBadAction       = errors.New("bad_action")
	errNotHillHolder   = errors.New("not_hill_holder")
)

var rejections = []error{
	errWrongCommand, errWrongAnswer, errAlreadyAnswered, errUnknownQuestion,
	errUnknownVuln, errAlreadyBreached, errVulnPatched, errCooldownActive,
	errWrongFlag, errBadAction, errNotHillHolder,
}

// Rejected reports whether err is a gameplay rejection rather than an
// infrastructure failure. Rejections go back to the acting participant;
// everything else is a server problem.
func Rejected(err error) bool {
	for _, e := range rejections {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// EndPolicy declares what a participant's first completion does to the
// session. Per-mode configuration, not hardcoded behavior; new modes default
// to EndAfterGrace.
type EndPolicy int

const (
	// EndAfterGrace arms a grace window so the rest can still finish.
	EndAfterGrace EndPolicy = iota
	// EndImmediately terminates the session on the first completion.
	EndImmediately
)

type Config struct {
	ID         string
	Name       string
	MinPlayers int
	MaxPlayers int
	Duration   time.Duration
	Policy     EndPolicy
	Grace      time.Duration
	Difficulty float64
	BaseCoins  int64
}

// ActionContext carries everything an engine may read. State is the
// participant's mode blob, Settings the session-shared one.
type ActionContext struct {
	Scenario *content.Scenario
	Settings json.RawMessage
	State    json.RawMessage
	Stage    int
	Score    int64
	Complete bool
	UserID   string
	Now      time.Time
	Raw      json.RawMessage
}

// Result is what the coordinator applies atomically. Nil State/Settings
// mean "unchanged".
type Result struct {
	ScoreDelta int64
	StageDelta int
	Completed  bool
	State      json.RawMessage
	Settings   json.RawMessage
	Effects    map[string]any
}

type Engine interface {
	Config() Config
	Apply(ctx context.Context, ac ActionContext) (Result, error)
}

type Registry struct {
	engines map[string]Engine
}

func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: map[string]Engine{}}
	for _, e := range engines {
		r.engines[e.Config().ID] = e
	}
	return r
}

// DefaultRegistry wires every built-in engine.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewCommandRace(),
		NewSiege(),
		NewForensics(),
		NewHillHold(),
	)
}

func (r *Registry) Get(id string) (Engine, error) {
	e, ok := r.engines[id]
	if !ok {
		return nil, ErrUnknownMode
	}
	return e, nil
}

func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.engines))
	for id := range r.engines {
		out = append(out, id)
	}
	return out
}
