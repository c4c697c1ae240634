// Package content holds the read-only scenario data sessions reference by
// id: command sets, vulnerability definitions, question banks, hill
// parameters. Authoring lives elsewhere; this is the serving copy.
package content

import (
	"errors"
	"sync"
)

var ErrScenarioNotFound = errors.New("scenario_not_found")

type Scenario struct {
	ID   string
	Mode string
	Name string

	Commands  []Command
	Vulns     []Vulnerability
	Questions []Question
	Hill      *HillSettings

	FinalFlag string
}

// Command is one step of a command-race scenario, in required order.
type Command struct {
	Text   string
	Points int64
}

type Vulnerability struct {
	ID       string
	Name     string
	Points   int64
	MinLevel int // defense level at or above this masks the vuln
}

type Question struct {
	ID     string
	Prompt string
	Answer string
	Points int64
}

type HillSettings struct {
	CapturePoints int64
	TickPoints    int64
}

type Provider interface {
	Get(id string) (*Scenario, error)
	Pick(mode string) (*Scenario, error)
}

// Library is an in-memory Provider seeded at startup.
type Library struct {
	mu        sync.RWMutex
	byID      map[string]*Scenario
	modeOrder map[string][]string
}

func NewLibrary() *Library {
	return &Library{byID: map[string]*Scenario{}, modeOrder: map[string][]string{}}
}

func (l *Library) Register(s *Scenario) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[s.ID]; !ok {
		l.modeOrder[s.Mode] = append(l.modeOrder[s.Mode], s.ID)
	}
	l.byID[s.ID] = s
}

func (l *Library) Get(id string) (*Scenario, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.byID[id]
	if !ok {
		return nil, ErrScenarioNotFound
	}
	return s, nil
}

// Pick returns the first registered scenario for a mode.
func (l *Library) Pick(mode string) (*Scenario, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.modeOrder[mode]
	if len(ids) == 0 {
		return nil, ErrScenarioNotFound
	}
	return l.byID[ids[0]], nil
}
