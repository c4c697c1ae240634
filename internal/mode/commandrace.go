package mode

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// CommandRace: every participant works through the same ordered command
// list; the stage counter is the index of the next expected command.
type CommandRace struct {
	cfg Config
}

func NewCommandRace() *CommandRace {
	return &CommandRace{cfg: Config{
		ID:         "commandrace",
		Name:       "Command Race",
		MinPlayers: 2,
		MaxPlayers: 8,
		Duration:   5 * time.Minute,
		Policy:     EndAfterGrace,
		Grace:      30 * time.Second,
		Difficulty: 1.0,
		BaseCoins:  100,
	}}
}

func (e *CommandRace) Config() Config { return e.cfg }

type commandRaceAction struct {
	Command string `json:"command"`
}

func (e *CommandRace) Apply(_ context.Context, ac ActionContext) (Result, error) {
	var act commandRaceAction
	if err := json.Unmarshal(ac.Raw, &act); err != nil || strings.TrimSpace(act.Command) == "" {
		return Result{}, errBadAction
	}
	cmds := ac.Scenario.Commands
	if ac.Stage >= len(cmds) {
		return Result{}, errAlreadyAnswered
	}
	expected := cmds[ac.Stage]
	if strings.TrimSpace(act.Command) != expected.Text {
		return Result{}, errWrongCommand
	}
	completed := ac.Stage+1 >= len(cmds)
	return Result{
		ScoreDelta: expected.Points,
		StageDelta: 1,
		Completed:  completed,
		Effects: map[string]any{
			"command": expected.Text,
			"stage":   ac.Stage + 1,
			"total":   len(cmds),
		},
	}, nil
}
